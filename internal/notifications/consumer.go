package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	"github.com/soundcrate/backend/pkg/logger"
	"github.com/soundcrate/backend/pkg/outbox"
	"github.com/soundcrate/backend/pkg/outbox/idempotency"
	"github.com/soundcrate/backend/pkg/outbox/payloads"
)

const domainNotificationConsumer = "domain-notifications"

type notifier interface {
	Notify(ctx context.Context, input NotifyInput) (*models.Notification, error)
}

type creatorLookup interface {
	FindCreators(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}

// Consumer watches domain events and fans them out into per-user
// notifications. One purchase event produces a purchase notification for
// the buyer and a sale notification for each distinct creator involved.
type Consumer struct {
	service      notifier
	creators     creatorLookup
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the domain notification consumer.
func NewConsumer(service notifier, creators creatorLookup, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if service == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if creators == nil {
		return nil, fmt.Errorf("creator lookup required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		service:      service,
		creators:     creators,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

var handledEvents = map[string]struct{}{
	string(enums.EventPurchaseCompleted): {},
	string(enums.EventPurchaseExpired):   {},
	string(enums.EventPurchaseFailed):    {},
	string(enums.EventRatingReceived):    {},
	string(enums.EventCommentReceived):   {},
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if _, ok := handledEvents[eventType]; !ok {
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, enums.OutboxEventType(eventType), envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification fan-out failed", err)
		_ = c.idempotency.Delete(ctx, domainNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventPurchaseCompleted:
		var payload payloads.PurchaseCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handlePurchaseCompleted(ctx, payload, logCtx)
	case enums.EventPurchaseExpired:
		var payload payloads.PurchaseExpiredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handlePurchaseExpired(ctx, payload)
	case enums.EventPurchaseFailed:
		var payload payloads.PurchaseFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handlePurchaseFailed(ctx, payload)
	case enums.EventRatingReceived:
		var payload payloads.RatingReceivedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handleRatingReceived(ctx, payload)
	case enums.EventCommentReceived:
		var payload payloads.CommentReceivedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.handleCommentReceived(ctx, payload)
	default:
		return nil
	}
}

func (c *Consumer) handlePurchaseCompleted(ctx context.Context, payload payloads.PurchaseCompletedEvent, logCtx context.Context) error {
	if payload.BuyerID == uuid.Nil {
		return fmt.Errorf("buyer id missing")
	}

	link := fmt.Sprintf("/purchases/%s", payload.PurchaseID)
	_, err := c.service.Notify(ctx, NotifyInput{
		UserID:   payload.BuyerID,
		Category: enums.NotificationCategoryPurchase,
		Title:    "Purchase complete",
		Message:  fmt.Sprintf("Your purchase of %d item(s) is confirmed. Downloads are unlocked.", len(payload.ProductIDs)),
		Link:     link,
	})
	if err != nil {
		return err
	}

	creators, err := c.creators.FindCreators(ctx, payload.ProductIDs)
	if err != nil {
		return err
	}
	notified := make(map[uuid.UUID]struct{}, len(creators))
	for productID, creatorID := range creators {
		if creatorID == uuid.Nil {
			continue
		}
		// One sale notification per creator even when several of their
		// products are in the purchase.
		if _, done := notified[creatorID]; done {
			continue
		}
		notified[creatorID] = struct{}{}
		_, err := c.service.Notify(ctx, NotifyInput{
			UserID:   creatorID,
			Category: enums.NotificationCategorySale,
			Title:    "You made a sale",
			Message:  fmt.Sprintf("One of your products sold for %s %s.", payload.Total, payload.Currency),
			Link:     fmt.Sprintf("/products/%s", productID),
		})
		if err != nil {
			return err
		}
	}

	c.logg.Info(logCtx, "purchase notifications created")
	return nil
}

func (c *Consumer) handlePurchaseExpired(ctx context.Context, payload payloads.PurchaseExpiredEvent) error {
	if payload.BuyerID == uuid.Nil {
		return fmt.Errorf("buyer id missing")
	}
	_, err := c.service.Notify(ctx, NotifyInput{
		UserID:   payload.BuyerID,
		Category: enums.NotificationCategoryPurchase,
		Title:    "Purchase expired",
		Message:  "A pending purchase expired before payment was confirmed.",
		Link:     fmt.Sprintf("/purchases/%s", payload.PurchaseID),
	})
	return err
}

func (c *Consumer) handlePurchaseFailed(ctx context.Context, payload payloads.PurchaseFailedEvent) error {
	if payload.BuyerID == uuid.Nil {
		return fmt.Errorf("buyer id missing")
	}
	message := "A purchase could not be completed."
	if payload.Reason != "" {
		message = fmt.Sprintf("A purchase could not be completed: %s", payload.Reason)
	}
	_, err := c.service.Notify(ctx, NotifyInput{
		UserID:   payload.BuyerID,
		Category: enums.NotificationCategoryPurchase,
		Title:    "Purchase failed",
		Message:  message,
		Link:     fmt.Sprintf("/purchases/%s", payload.PurchaseID),
	})
	return err
}

func (c *Consumer) handleRatingReceived(ctx context.Context, payload payloads.RatingReceivedEvent) error {
	if payload.CreatorID == uuid.Nil {
		return fmt.Errorf("creator id missing")
	}
	_, err := c.service.Notify(ctx, NotifyInput{
		UserID:   payload.CreatorID,
		Category: enums.NotificationCategoryRating,
		Title:    "New rating",
		Message:  fmt.Sprintf("Your product received a %d-star rating.", payload.Rating),
		Link:     fmt.Sprintf("/products/%s", payload.ProductID),
	})
	return err
}

func (c *Consumer) handleCommentReceived(ctx context.Context, payload payloads.CommentReceivedEvent) error {
	if payload.CreatorID == uuid.Nil {
		return fmt.Errorf("creator id missing")
	}
	_, err := c.service.Notify(ctx, NotifyInput{
		UserID:   payload.CreatorID,
		Category: enums.NotificationCategoryComment,
		Title:    "New comment",
		Message:  "A buyer left a comment on one of your products.",
		Link:     fmt.Sprintf("/products/%s", payload.ProductID),
	})
	return err
}

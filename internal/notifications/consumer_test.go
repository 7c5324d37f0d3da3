package notifications

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	"github.com/soundcrate/backend/pkg/logger"
	"github.com/soundcrate/backend/pkg/outbox/payloads"
)

type fanoutRecorder struct {
	notified []NotifyInput
	err      error
}

func (f *fanoutRecorder) Notify(ctx context.Context, input NotifyInput) (*models.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.notified = append(f.notified, input)
	return &models.Notification{ID: uuid.New(), UserID: input.UserID}, nil
}

type fakeCreatorLookup struct {
	creators map[uuid.UUID]uuid.UUID
}

func (f *fakeCreatorLookup) FindCreators(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range productIDs {
		if creator, ok := f.creators[id]; ok {
			out[id] = creator
		}
	}
	return out, nil
}

func newConsumerFixture(creators map[uuid.UUID]uuid.UUID) (*fanoutRecorder, *Consumer) {
	recorder := &fanoutRecorder{}
	consumer := &Consumer{
		service:  recorder,
		creators: &fakeCreatorLookup{creators: creators},
		logg:     logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard}),
	}
	return recorder, consumer
}

func marshalPayload(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func TestConsumerPurchaseCompletedFanOut(t *testing.T) {
	buyerID := uuid.New()
	creatorA := uuid.New()
	creatorB := uuid.New()
	productA := uuid.New()
	productB := uuid.New()

	recorder, consumer := newConsumerFixture(map[uuid.UUID]uuid.UUID{
		productA: creatorA,
		productB: creatorB,
	})

	payload := payloads.PurchaseCompletedEvent{
		PurchaseID: uuid.New(),
		BuyerID:    buyerID,
		ProductIDs: []uuid.UUID{productA, productB},
		Total:      "25.00",
		Currency:   "USD",
	}
	err := consumer.handle(context.Background(), enums.EventPurchaseCompleted, marshalPayload(t, payload), context.Background())
	require.NoError(t, err)

	require.Len(t, recorder.notified, 3)
	assert.Equal(t, buyerID, recorder.notified[0].UserID)
	assert.Equal(t, enums.NotificationCategoryPurchase, recorder.notified[0].Category)

	sellers := map[uuid.UUID]bool{}
	for _, input := range recorder.notified[1:] {
		assert.Equal(t, enums.NotificationCategorySale, input.Category)
		sellers[input.UserID] = true
	}
	assert.True(t, sellers[creatorA])
	assert.True(t, sellers[creatorB])
}

func TestConsumerPurchaseCompletedDedupesCreators(t *testing.T) {
	buyerID := uuid.New()
	creator := uuid.New()
	productA := uuid.New()
	productB := uuid.New()

	recorder, consumer := newConsumerFixture(map[uuid.UUID]uuid.UUID{
		productA: creator,
		productB: creator,
	})

	payload := payloads.PurchaseCompletedEvent{
		PurchaseID: uuid.New(),
		BuyerID:    buyerID,
		ProductIDs: []uuid.UUID{productA, productB},
		Total:      "20.00",
		Currency:   "USD",
	}
	err := consumer.handle(context.Background(), enums.EventPurchaseCompleted, marshalPayload(t, payload), context.Background())
	require.NoError(t, err)

	// Buyer plus exactly one sale notification for the shared creator.
	assert.Len(t, recorder.notified, 2)
}

func TestConsumerRatingReceivedNotifiesCreator(t *testing.T) {
	creator := uuid.New()
	recorder, consumer := newConsumerFixture(nil)

	payload := payloads.RatingReceivedEvent{
		ReviewID:  uuid.New(),
		ProductID: uuid.New(),
		CreatorID: creator,
		AuthorID:  uuid.New(),
		Rating:    4,
	}
	err := consumer.handle(context.Background(), enums.EventRatingReceived, marshalPayload(t, payload), context.Background())
	require.NoError(t, err)

	require.Len(t, recorder.notified, 1)
	assert.Equal(t, creator, recorder.notified[0].UserID)
	assert.Equal(t, enums.NotificationCategoryRating, recorder.notified[0].Category)
	assert.Contains(t, recorder.notified[0].Message, "4-star")
}

func TestConsumerPurchaseExpiredNotifiesBuyer(t *testing.T) {
	buyerID := uuid.New()
	recorder, consumer := newConsumerFixture(nil)

	payload := payloads.PurchaseExpiredEvent{PurchaseID: uuid.New(), BuyerID: buyerID}
	err := consumer.handle(context.Background(), enums.EventPurchaseExpired, marshalPayload(t, payload), context.Background())
	require.NoError(t, err)

	require.Len(t, recorder.notified, 1)
	assert.Equal(t, buyerID, recorder.notified[0].UserID)
}

func TestConsumerRejectsMissingBuyer(t *testing.T) {
	_, consumer := newConsumerFixture(nil)

	payload := payloads.PurchaseExpiredEvent{PurchaseID: uuid.New()}
	err := consumer.handle(context.Background(), enums.EventPurchaseExpired, marshalPayload(t, payload), context.Background())
	assert.Error(t, err)
}

package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/soundcrate/backend/internal/purchases"
	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	"github.com/soundcrate/backend/pkg/logger"
	"github.com/soundcrate/backend/pkg/outbox"
	"github.com/soundcrate/backend/pkg/outbox/payloads"
)

const (
	defaultPendingTTL = 24 * time.Hour
	expiryBatchLimit  = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type purchaseExpirer interface {
	ExpirePendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Purchase, error)
}

type expiryRepoFactory func(tx *gorm.DB) purchaseExpirer

func defaultExpiryRepo(tx *gorm.DB) purchaseExpirer {
	return purchases.NewRepository(tx)
}

// PurchaseExpiryJobParams configure the pending purchase sweeper.
type PurchaseExpiryJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Outbox      outboxEmitter
	PendingTTL  time.Duration
	RepoFactory expiryRepoFactory
}

// NewPurchaseExpiryJob builds the cron job that expires aged pending
// purchases and queues the buyer-facing events.
func NewPurchaseExpiryJob(params PurchaseExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	repoFactory := params.RepoFactory
	if repoFactory == nil {
		repoFactory = defaultExpiryRepo
	}
	return &purchaseExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		outbox:      params.Outbox,
		pendingTTL:  ttl,
		repoFactory: repoFactory,
		now:         time.Now,
	}, nil
}

type purchaseExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	outbox      outboxEmitter
	pendingTTL  time.Duration
	repoFactory expiryRepoFactory
	now         func() time.Time
}

func (j *purchaseExpiryJob) Name() string { return "purchase-expiry" }

func (j *purchaseExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.pendingTTL)
	var expired []models.Purchase
	var errs error

	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		rows, err := repo.ExpirePendingBefore(ctx, cutoff, expiryBatchLimit)
		if err != nil {
			return fmt.Errorf("expire pending purchases: %w", err)
		}
		now := j.now().UTC()
		for _, purchase := range rows {
			event := outbox.DomainEvent{
				EventType:     enums.EventPurchaseExpired,
				AggregateType: enums.AggregatePurchase,
				AggregateID:   purchase.ID,
				Version:       1,
				OccurredAt:    now,
				Data: payloads.PurchaseExpiredEvent{
					PurchaseID: purchase.ID,
					BuyerID:    purchase.BuyerID,
					ExpiredAt:  now,
				},
			}
			if err := j.outbox.Emit(ctx, tx, event); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("queue expiry event for %s: %w", purchase.ID, err))
			}
		}
		expired = rows
		return errs
	})
	if err != nil {
		return err
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_expired": len(expired),
	})
	j.logg.Info(logCtx, "pending purchase sweep complete")
	return nil
}

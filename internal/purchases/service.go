package purchases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/soundcrate/backend/pkg/db"
	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
	"github.com/soundcrate/backend/pkg/logger"
	"github.com/soundcrate/backend/pkg/metrics"
	"github.com/soundcrate/backend/pkg/outbox"
	"github.com/soundcrate/backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ConfirmInput carries everything needed to settle a pending purchase.
type ConfirmInput struct {
	PurchaseID uuid.UUID
	BuyerID    uuid.UUID
	TxHash     string
}

// CreateInput opens a new pending purchase for a buyer.
type CreateInput struct {
	BuyerID    uuid.UUID
	ProductIDs []uuid.UUID
	PendingTTL time.Duration
}

// Service defines purchase lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Purchase, error)
	Confirm(ctx context.Context, input ConfirmInput) (*models.Purchase, error)
	Get(ctx context.Context, buyerID, purchaseID uuid.UUID) (*models.Purchase, error)
	ListMine(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Purchase, error)
}

// ProductPricer loads the products referenced by a new purchase.
type ProductPricer interface {
	FindMany(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type service struct {
	repo     Repository
	products ProductPricer
	tx       txRunner
	outbox   outboxPublisher
	verifier SettlementVerifier
	logg     *logger.Logger
	metrics  *metrics.PurchaseMetrics
	feeRate  decimal.Decimal
}

// NewService builds a purchase service with the required dependencies.
func NewService(repo Repository, products ProductPricer, tx txRunner, publisher outboxPublisher, verifier SettlementVerifier, logg *logger.Logger, purchaseMetrics *metrics.PurchaseMetrics) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "purchases repository required")
	}
	if products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product pricer required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	if verifier == nil {
		verifier = NewOfflineVerifier()
	}
	return &service{
		repo:     repo,
		products: products,
		tx:       tx,
		outbox:   publisher,
		verifier: verifier,
		logg:     logg,
		metrics:  purchaseMetrics,
		feeRate:  decimal.NewFromFloat(0.05),
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Purchase, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if len(input.ProductIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one product required")
	}

	products, err := s.products.FindMany(ctx, input.ProductIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	if len(products) != len(dedupe(input.ProductIDs)) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more products not found")
	}

	total := decimal.Zero
	items := make([]models.PurchaseItem, 0, len(products))
	for _, product := range products {
		if product.CreatorID == input.BuyerID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "creators cannot purchase their own products")
		}
		total = total.Add(product.Price)
		items = append(items, models.PurchaseItem{
			ID:        uuid.New(),
			ProductID: product.ID,
			UnitPrice: product.Price,
		})
	}

	purchase := &models.Purchase{
		ID:          uuid.New(),
		BuyerID:     input.BuyerID,
		Status:      enums.PurchaseStatusPending,
		Total:       total,
		PlatformFee: total.Mul(s.feeRate).Round(2),
		Currency:    "USD",
		Items:       items,
	}
	if input.PendingTTL > 0 {
		expires := time.Now().UTC().Add(input.PendingTTL)
		purchase.ExpiresAt = &expires
	}
	for i := range purchase.Items {
		purchase.Items[i].PurchaseID = purchase.ID
	}

	if err := s.repo.Create(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase")
	}
	return purchase, nil
}

// Confirm applies the pending→completed transition. The status change and
// the settlement hash recording happen in one conditional update inside a
// transaction together with the outbox emit, so concurrent confirmations of
// the same purchase or of the same hash cannot both succeed.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*models.Purchase, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	txHash := strings.TrimSpace(input.TxHash)
	if err := s.verifier.Verify(ctx, txHash); err != nil {
		s.countConfirm("rejected_hash")
		return nil, err
	}

	var confirmed *models.Purchase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		purchase, err := repo.FindByID(ctx, input.PurchaseID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
		}
		// A purchase owned by someone else is reported exactly like a
		// missing one.
		if purchase == nil || purchase.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		if purchase.Status != enums.PurchaseStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase is not pending")
		}

		holder, err := repo.FindByTxHash(ctx, txHash)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check settlement hash")
		}
		if holder != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "transaction hash already recorded")
		}

		now := time.Now().UTC()
		updated, err := repo.ConfirmPending(ctx, purchase.ID, txHash, now)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_purchases_tx_hash") {
				return pkgerrors.New(pkgerrors.CodeConflict, "transaction hash already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm purchase")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase is not pending")
		}

		purchase.Status = enums.PurchaseStatusCompleted
		purchase.TxHash = &txHash
		purchase.ConfirmedAt = &now

		productIDs := make([]uuid.UUID, 0, len(purchase.Items))
		for _, item := range purchase.Items {
			productIDs = append(productIDs, item.ProductID)
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPurchaseCompleted,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchase.ID,
			Actor:         &outbox.ActorRef{UserID: purchase.BuyerID},
			Version:       1,
			OccurredAt:    now,
			Data: payloads.PurchaseCompletedEvent{
				PurchaseID:  purchase.ID,
				BuyerID:     purchase.BuyerID,
				ProductIDs:  productIDs,
				TxHash:      txHash,
				Total:       purchase.Total.String(),
				Currency:    purchase.Currency,
				ConfirmedAt: now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue purchase event")
		}

		confirmed = purchase
		return nil
	})
	if err != nil {
		s.countConfirmError(err)
		return nil, err
	}

	s.countConfirm("confirmed")
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"purchase_id": confirmed.ID.String(),
			"tx_hash":     txHash,
		})
		s.logg.Info(logCtx, "purchase confirmed")
	}
	return confirmed, nil
}

func (s *service) Get(ctx context.Context, buyerID, purchaseID uuid.UUID) (*models.Purchase, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	purchase, err := s.repo.FindByID(ctx, purchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if purchase == nil || purchase.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	return purchase, nil
}

func (s *service) ListMine(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Purchase, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	rows, err := s.repo.ListByBuyer(ctx, buyerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchases")
	}
	return rows, nil
}

func (s *service) countConfirm(outcome string) {
	if s.metrics != nil {
		s.metrics.IncConfirmation(outcome)
	}
}

func (s *service) countConfirmError(err error) {
	var code pkgerrors.Code
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	switch code {
	case pkgerrors.CodeConflict:
		s.countConfirm("duplicate_hash")
	case pkgerrors.CodeStateConflict:
		s.countConfirm("not_pending")
	case pkgerrors.CodeNotFound:
		s.countConfirm("not_found")
	default:
		s.countConfirm("error")
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

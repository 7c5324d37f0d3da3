package purchases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
)

// Repository exposes persistence helpers for purchases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindByTxHash(ctx context.Context, txHash string) (*models.Purchase, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Purchase, error)
	HasCompletedPurchase(ctx context.Context, buyerID, productID uuid.UUID) (bool, error)
	ConfirmPending(ctx context.Context, id uuid.UUID, txHash string, now time.Time) (bool, error)
	ExpirePendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Purchase, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a purchases repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repositoryImpl) FindByTxHash(ctx context.Context, txHash string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repositoryImpl) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Purchase, error) {
	if limit <= 0 {
		limit = 25
	}
	var rows []models.Purchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) HasCompletedPurchase(ctx context.Context, buyerID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PurchaseItem{}).
		Joins("JOIN purchases ON purchases.id = purchase_items.purchase_id").
		Where("purchases.buyer_id = ? AND purchases.status = ? AND purchase_items.product_id = ?",
			buyerID, enums.PurchaseStatusCompleted, productID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConfirmPending performs the pending→completed transition as a single
// conditional update. Two concurrent confirmations can never both see
// RowsAffected > 0.
func (r *repositoryImpl) ConfirmPending(ctx context.Context, id uuid.UUID, txHash string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ?", id, enums.PurchaseStatusPending).
		Updates(map[string]any{
			"status":       enums.PurchaseStatusCompleted,
			"tx_hash":      txHash,
			"confirmed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpirePendingBefore sweeps due pending purchases into the expired state
// and returns the rows it transitioned. A purchase carrying its own
// expires_at deadline is due once that passes; rows without one fall back
// to the caller's created_at cutoff.
func (r *repositoryImpl) ExpirePendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	now := time.Now().UTC()
	var candidates []models.Purchase
	err := r.db.WithContext(ctx).
		Where("status = ? AND ((expires_at IS NOT NULL AND expires_at <= ?) OR (expires_at IS NULL AND created_at < ?))",
			enums.PurchaseStatusPending, now, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	expired := make([]models.Purchase, 0, len(candidates))
	for _, purchase := range candidates {
		result := r.db.WithContext(ctx).
			Model(&models.Purchase{}).
			Where("id = ? AND status = ?", purchase.ID, enums.PurchaseStatusPending).
			Updates(map[string]any{
				"status":     enums.PurchaseStatusExpired,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return expired, result.Error
		}
		if result.RowsAffected > 0 {
			purchase.Status = enums.PurchaseStatusExpired
			expired = append(expired, purchase)
		}
	}
	return expired, nil
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ?", id, enums.PurchaseStatusPending).
		Updates(map[string]any{
			"status":     enums.PurchaseStatusFailed,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

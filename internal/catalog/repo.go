package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundcrate/backend/pkg/db/models"
)

// Repository exposes key-to-product lookups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByKey(ctx context.Context, key string) ([]models.ProductFile, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// FindByKey returns every file row referencing the key. The unique index
// keeps this to a single row in healthy data; more than one row means the
// catalog is corrupted and the caller picks the safe class.
func (r *repositoryImpl) FindByKey(ctx context.Context, key string) ([]models.ProductFile, error) {
	var rows []models.ProductFile
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", productID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

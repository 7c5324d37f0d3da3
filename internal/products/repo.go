package products

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/pagination"
)

// Repository exposes persistence helpers for products and their file keys.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindMany(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindCreators(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	CountByCreator(ctx context.Context, creatorID uuid.UUID) (int64, error)
	List(ctx context.Context, params listProductsParams) ([]models.Product, *pagination.Cursor, error)
	Update(ctx context.Context, product *models.Product) error
	ReplaceFiles(ctx context.Context, productID uuid.UUID, files []models.ProductFile) error
	KeysInUse(ctx context.Context, keys []string, excludeProductID uuid.UUID) ([]string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a products repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listProductsParams struct {
	CreatorID     uuid.UUID
	PublishedOnly bool
	Limit         int
	Cursor        *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Files").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *repositoryImpl) FindMany(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) FindCreators(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]uuid.UUID{}, nil
	}
	type row struct {
		ID        uuid.UUID
		CreatorID uuid.UUID
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("id, creator_id").
		Where("id IN ?", productIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	creators := make(map[uuid.UUID]uuid.UUID, len(rows))
	for _, item := range rows {
		creators[item.ID] = item.CreatorID
	}
	return creators, nil
}

func (r *repositoryImpl) CountByCreator(ctx context.Context, creatorID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("creator_id = ?", creatorID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listProductsParams) ([]models.Product, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Product{}).Preload("Files")
	if params.CreatorID != uuid.Nil {
		query = query.Where("creator_id = ?", params.CreatorID)
	}
	if params.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Product
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"title":        product.Title,
			"description":  product.Description,
			"genre":        product.Genre,
			"price":        product.Price,
			"currency":     product.Currency,
			"is_published": product.IsPublished,
			"updated_at":   product.UpdatedAt,
		}).Error
}

// ReplaceFiles swaps a product's key bindings in one shot. The unique index
// on product_files.key rejects any key already bound elsewhere.
func (r *repositoryImpl) ReplaceFiles(ctx context.Context, productID uuid.UUID, files []models.ProductFile) error {
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&models.ProductFile{}).Error; err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&files).Error
}

// KeysInUse reports which of the given keys are already bound to a product
// other than the excluded one.
func (r *repositoryImpl) KeysInUse(ctx context.Context, keys []string, excludeProductID uuid.UUID) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var used []string
	query := r.db.WithContext(ctx).
		Model(&models.ProductFile{}).
		Where("key IN ?", keys)
	if excludeProductID != uuid.Nil {
		query = query.Where("product_id <> ?", excludeProductID)
	}
	if err := query.Pluck("key", &used).Error; err != nil {
		return nil, err
	}
	return used, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", id).
		Delete(&models.ProductFile{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Product{}).Error
}

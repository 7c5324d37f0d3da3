package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
	"github.com/soundcrate/backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes creator product management operations.
type Service interface {
	Create(ctx context.Context, creatorID uuid.UUID, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, creatorID, productID uuid.UUID, input UpdateInput) (*models.Product, error)
	Get(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Delete(ctx context.Context, creatorID, productID uuid.UUID) error
}

// KeyBindings groups the three content-key collections of a product. A key
// lives in exactly one collection of exactly one product; the layers below
// enforce this with a unique index, the service enforces it up front so the
// caller gets a useful error.
type KeyBindings struct {
	DigitalFiles []string `json:"digitalFiles"`
	PreviewFiles []string `json:"previewFiles"`
	Images       []string `json:"images"`
}

// CreateInput holds the validated payload to create a product.
type CreateInput struct {
	Title       string
	Description *string
	Genre       *string
	Price       decimal.Decimal
	Currency    string
	IsPublished bool
	Keys        KeyBindings
}

// UpdateInput holds optional mutation values for a product.
type UpdateInput struct {
	Title       *string
	Description *string
	Genre       *string
	Price       *decimal.Decimal
	IsPublished *bool
	Keys        *KeyBindings
}

// ListParams configures product listing.
type ListParams struct {
	CreatorID     uuid.UUID
	PublishedOnly bool
	Limit         int
	Cursor        string
}

// ListResult wraps returned products and the cursor for the next page.
type ListResult struct {
	Items  []models.Product `json:"items"`
	Cursor string           `json:"cursor"`
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires product dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "products repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, creatorID uuid.UUID, input CreateInput) (*models.Product, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "creator identity missing")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	files, err := buildFileRows(input.Keys)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	product := &models.Product{
		ID:          uuid.New(),
		CreatorID:   creatorID,
		Title:       title,
		Description: input.Description,
		Genre:       input.Genre,
		Price:       input.Price,
		Currency:    currency,
		IsPublished: input.IsPublished,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.ensureKeysFree(ctx, repo, files, uuid.Nil); err != nil {
			return err
		}
		for i := range files {
			files[i].ID = uuid.New()
			files[i].ProductID = product.ID
		}
		product.Files = files
		if err := repo.Create(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, creatorID, productID uuid.UUID, input UpdateInput) (*models.Product, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "creator identity missing")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if product.CreatorID != creatorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the product creator")
		}

		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "title required")
			}
			product.Title = title
		}
		if input.Description != nil {
			product.Description = input.Description
		}
		if input.Genre != nil {
			product.Genre = input.Genre
		}
		if input.Price != nil {
			if input.Price.IsNegative() {
				return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
			}
			product.Price = *input.Price
		}
		if input.IsPublished != nil {
			product.IsPublished = *input.IsPublished
		}

		if input.Keys != nil {
			files, err := buildFileRows(*input.Keys)
			if err != nil {
				return err
			}
			if err := s.ensureKeysFree(ctx, repo, files, product.ID); err != nil {
				return err
			}
			for i := range files {
				files[i].ID = uuid.New()
				files[i].ProductID = product.ID
			}
			if err := repo.ReplaceFiles(ctx, product.ID, files); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace product files")
			}
			product.Files = files
		}

		if err := repo.Update(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listProductsParams{
		CreatorID:     params.CreatorID,
		PublishedOnly: params.PublishedOnly,
		Limit:         params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Delete(ctx context.Context, creatorID, productID uuid.UUID) error {
	if creatorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "creator identity missing")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if product.CreatorID != creatorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not the product creator")
		}
		if err := repo.Delete(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		return nil
	})
}

// buildFileRows flattens the three collections into rows, rejecting blank
// keys and keys listed in more than one collection.
func buildFileRows(keys KeyBindings) ([]models.ProductFile, error) {
	seen := make(map[string]struct{})
	var rows []models.ProductFile

	add := func(list []string, class enums.KeyClass) error {
		for _, key := range list {
			key = strings.TrimSpace(key)
			if key == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "content key must not be blank")
			}
			if _, dup := seen[key]; dup {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("content key %q listed more than once", key))
			}
			seen[key] = struct{}{}
			rows = append(rows, models.ProductFile{Key: key, Class: class})
		}
		return nil
	}

	if err := add(keys.DigitalFiles, enums.KeyClassDigital); err != nil {
		return nil, err
	}
	if err := add(keys.PreviewFiles, enums.KeyClassPreview); err != nil {
		return nil, err
	}
	if err := add(keys.Images, enums.KeyClassImage); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *service) ensureKeysFree(ctx context.Context, repo Repository, files []models.ProductFile, excludeProductID uuid.UUID) error {
	if len(files) == 0 {
		return nil
	}
	keys := make([]string, 0, len(files))
	for _, file := range files {
		keys = append(keys, file.Key)
	}
	used, err := repo.KeysInUse(ctx, keys, excludeProductID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check key usage")
	}
	if len(used) > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("content key %q already bound to another product", used[0]))
	}
	return nil
}

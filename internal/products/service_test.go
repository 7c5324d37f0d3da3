package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
	"github.com/soundcrate/backend/pkg/pagination"
)

type fakeRepository struct {
	products map[uuid.UUID]*models.Product
	usedKeys map[string]uuid.UUID
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		products: map[uuid.UUID]*models.Product{},
		usedKeys: map[string]uuid.UUID{},
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, product *models.Product) error {
	f.products[product.ID] = product
	for _, file := range product.Files {
		f.usedKeys[file.Key] = product.ID
	}
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return f.products[id], nil
}

func (f *fakeRepository) FindMany(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			rows = append(rows, *p)
		}
	}
	return rows, nil
}

func (f *fakeRepository) FindCreators(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := map[uuid.UUID]uuid.UUID{}
	for _, id := range productIDs {
		if p, ok := f.products[id]; ok {
			out[id] = p.CreatorID
		}
	}
	return out, nil
}

func (f *fakeRepository) List(ctx context.Context, params listProductsParams) ([]models.Product, *pagination.Cursor, error) {
	var rows []models.Product
	for _, p := range f.products {
		if params.CreatorID != uuid.Nil && p.CreatorID != params.CreatorID {
			continue
		}
		if params.PublishedOnly && !p.IsPublished {
			continue
		}
		rows = append(rows, *p)
	}
	return rows, nil, nil
}

func (f *fakeRepository) Update(ctx context.Context, product *models.Product) error {
	f.products[product.ID] = product
	return nil
}

func (f *fakeRepository) ReplaceFiles(ctx context.Context, productID uuid.UUID, files []models.ProductFile) error {
	for key, owner := range f.usedKeys {
		if owner == productID {
			delete(f.usedKeys, key)
		}
	}
	for _, file := range files {
		f.usedKeys[file.Key] = productID
	}
	return nil
}

func (f *fakeRepository) KeysInUse(ctx context.Context, keys []string, excludeProductID uuid.UUID) ([]string, error) {
	var used []string
	for _, key := range keys {
		owner, ok := f.usedKeys[key]
		if ok && owner != excludeProductID {
			used = append(used, key)
		}
	}
	return used, nil
}

func (f *fakeRepository) CountByCreator(ctx context.Context, creatorID uuid.UUID) (int64, error) {
	var count int64
	for _, p := range f.products {
		if p.CreatorID == creatorID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.products, id)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newProductsFixture(t *testing.T) (*fakeRepository, Service) {
	t.Helper()
	repo := newFakeRepository()
	svc, err := NewService(repo, fakeTxRunner{})
	require.NoError(t, err)
	return repo, svc
}

func TestCreateProductBindsKeysByClass(t *testing.T) {
	_, svc := newProductsFixture(t)
	creatorID := uuid.New()

	product, err := svc.Create(context.Background(), creatorID, CreateInput{
		Title: "Lo-fi Drum Kit",
		Price: decimal.NewFromFloat(14.99),
		Keys: KeyBindings{
			DigitalFiles: []string{"a1_kit.zip"},
			PreviewFiles: []string{"a1_preview.mp3"},
			Images:       []string{"a1_cover.png"},
		},
	})
	require.NoError(t, err)
	require.Len(t, product.Files, 3)

	classes := map[string]enums.KeyClass{}
	for _, file := range product.Files {
		classes[file.Key] = file.Class
	}
	assert.Equal(t, enums.KeyClassDigital, classes["a1_kit.zip"])
	assert.Equal(t, enums.KeyClassPreview, classes["a1_preview.mp3"])
	assert.Equal(t, enums.KeyClassImage, classes["a1_cover.png"])
}

func TestCreateProductRejectsKeyInTwoCollections(t *testing.T) {
	_, svc := newProductsFixture(t)

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Title: "Kit",
		Price: decimal.NewFromFloat(5),
		Keys: KeyBindings{
			DigitalFiles: []string{"same_key.wav"},
			PreviewFiles: []string{"same_key.wav"},
		},
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCreateProductRejectsKeyBoundElsewhere(t *testing.T) {
	_, svc := newProductsFixture(t)
	creatorID := uuid.New()

	_, err := svc.Create(context.Background(), creatorID, CreateInput{
		Title: "First",
		Price: decimal.NewFromFloat(5),
		Keys:  KeyBindings{DigitalFiles: []string{"shared_kit.zip"}},
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), creatorID, CreateInput{
		Title: "Second",
		Price: decimal.NewFromFloat(5),
		Keys:  KeyBindings{PreviewFiles: []string{"shared_kit.zip"}},
	})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestUpdateProductEnforcesOwnership(t *testing.T) {
	_, svc := newProductsFixture(t)
	creatorID := uuid.New()

	product, err := svc.Create(context.Background(), creatorID, CreateInput{
		Title: "Kit",
		Price: decimal.NewFromFloat(5),
	})
	require.NoError(t, err)

	newTitle := "Renamed"
	_, err = svc.Update(context.Background(), uuid.New(), product.ID, UpdateInput{Title: &newTitle})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	updated, err := svc.Update(context.Background(), creatorID, product.ID, UpdateInput{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
}

func TestUpdateProductReplacesKeys(t *testing.T) {
	repo, svc := newProductsFixture(t)
	creatorID := uuid.New()

	product, err := svc.Create(context.Background(), creatorID, CreateInput{
		Title: "Kit",
		Price: decimal.NewFromFloat(5),
		Keys:  KeyBindings{DigitalFiles: []string{"v1_kit.zip"}},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), creatorID, product.ID, UpdateInput{
		Keys: &KeyBindings{DigitalFiles: []string{"v2_kit.zip"}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Files, 1)
	assert.Equal(t, "v2_kit.zip", updated.Files[0].Key)

	// The old key is released for reuse.
	_, inUse := repo.usedKeys["v1_kit.zip"]
	assert.False(t, inUse)
}

func TestDeleteProductEnforcesOwnership(t *testing.T) {
	repo, svc := newProductsFixture(t)
	creatorID := uuid.New()

	product, err := svc.Create(context.Background(), creatorID, CreateInput{
		Title: "Kit",
		Price: decimal.NewFromFloat(5),
	})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), uuid.New(), product.ID)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	require.NoError(t, svc.Delete(context.Background(), creatorID, product.ID))
	assert.Empty(t, repo.products)
}

func TestGetUnknownProductIsNotFound(t *testing.T) {
	_, svc := newProductsFixture(t)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
)

func setupProductsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  creator_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  genre TEXT,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  is_published INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS product_files (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  key TEXT NOT NULL UNIQUE,
  class TEXT NOT NULL,
  size_bytes INTEGER,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedProduct(t *testing.T, repo Repository, creatorID uuid.UUID, keys ...string) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:        uuid.New(),
		CreatorID: creatorID,
		Title:     "Kit",
		Price:     decimal.NewFromFloat(9.99),
		Currency:  "USD",
	}
	for _, key := range keys {
		product.Files = append(product.Files, models.ProductFile{
			ID:        uuid.New(),
			ProductID: product.ID,
			Key:       key,
			Class:     enums.KeyClassDigital,
		})
	}
	require.NoError(t, repo.Create(context.Background(), product))
	return product
}

func TestUniqueKeyIndexRejectsRebinding(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	seedProduct(t, repo, uuid.New(), "one_kit.zip")

	second := &models.Product{
		ID:        uuid.New(),
		CreatorID: uuid.New(),
		Title:     "Other",
		Price:     decimal.NewFromFloat(1),
		Currency:  "USD",
		Files: []models.ProductFile{
			{ID: uuid.New(), Key: "one_kit.zip", Class: enums.KeyClassPreview},
		},
	}
	second.Files[0].ProductID = second.ID
	err := repo.Create(context.Background(), second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")
}

func TestKeysInUse(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	product := seedProduct(t, repo, uuid.New(), "a_kit.zip", "b_kit.zip")

	used, err := repo.KeysInUse(ctx, []string{"a_kit.zip", "free_key.zip"}, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_kit.zip"}, used)

	// A product's own keys do not collide with itself.
	used, err = repo.KeysInUse(ctx, []string{"a_kit.zip", "b_kit.zip"}, product.ID)
	require.NoError(t, err)
	assert.Empty(t, used)
}

func TestFindCreators(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	creatorA := uuid.New()
	creatorB := uuid.New()
	productA := seedProduct(t, repo, creatorA, "pa_kit.zip")
	productB := seedProduct(t, repo, creatorB, "pb_kit.zip")

	creators, err := repo.FindCreators(ctx, []uuid.UUID{productA.ID, productB.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, creators, 2)
	assert.Equal(t, creatorA, creators[productA.ID])
	assert.Equal(t, creatorB, creators[productB.ID])
}

func TestCountByCreator(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	creator := uuid.New()
	seedProduct(t, repo, creator, "ca_kit.zip")
	seedProduct(t, repo, creator, "cb_kit.zip")
	seedProduct(t, repo, uuid.New(), "cc_kit.zip")

	count, err := repo.CountByCreator(ctx, creator)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = repo.CountByCreator(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReplaceFilesSwapsBindings(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	product := seedProduct(t, repo, uuid.New(), "old_kit.zip")

	err := repo.ReplaceFiles(ctx, product.ID, []models.ProductFile{
		{ID: uuid.New(), ProductID: product.ID, Key: "new_kit.zip", Class: enums.KeyClassDigital},
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Files, 1)
	assert.Equal(t, "new_kit.zip", reloaded.Files[0].Key)

	// The released key can be bound by a different product now.
	seedProduct(t, repo, uuid.New(), "old_kit.zip")
}

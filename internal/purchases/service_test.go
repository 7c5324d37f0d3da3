package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
	"github.com/soundcrate/backend/pkg/outbox"
)

type fakeRepository struct {
	purchases      map[uuid.UUID]*models.Purchase
	byTxHash       map[string]*models.Purchase
	confirmCalls   int
	confirmUpdated bool
	confirmErr     error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		purchases:      map[uuid.UUID]*models.Purchase{},
		byTxHash:       map[string]*models.Purchase{},
		confirmUpdated: true,
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	f.purchases[purchase.ID] = purchase
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	return f.purchases[id], nil
}

func (f *fakeRepository) FindByTxHash(ctx context.Context, txHash string) (*models.Purchase, error) {
	return f.byTxHash[txHash], nil
}

func (f *fakeRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Purchase, error) {
	var rows []models.Purchase
	for _, p := range f.purchases {
		if p.BuyerID == buyerID {
			rows = append(rows, *p)
		}
	}
	return rows, nil
}

func (f *fakeRepository) HasCompletedPurchase(ctx context.Context, buyerID, productID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeRepository) ConfirmPending(ctx context.Context, id uuid.UUID, txHash string, now time.Time) (bool, error) {
	f.confirmCalls++
	if f.confirmErr != nil {
		return false, f.confirmErr
	}
	if !f.confirmUpdated {
		return false, nil
	}
	if p, ok := f.purchases[id]; ok {
		p.Status = enums.PurchaseStatusCompleted
		p.TxHash = &txHash
		p.ConfirmedAt = &now
		f.byTxHash[txHash] = p
	}
	return true, nil
}

func (f *fakeRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Purchase, error) {
	return nil, nil
}

func (f *fakeRepository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

type fakeProductPricer struct {
	products map[uuid.UUID]models.Product
}

func (f *fakeProductPricer) FindMany(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			rows = append(rows, p)
		}
	}
	return rows, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

const validHash = "0x4e3a1c9f2b8d7e6a5c4b3a2918070605f4e3d2c1b0a99887766554433221100f"

func newServiceFixture(t *testing.T) (*fakeRepository, *fakeOutbox, Service) {
	t.Helper()
	repo := newFakeRepository()
	publisher := &fakeOutbox{}
	pricer := &fakeProductPricer{products: map[uuid.UUID]models.Product{}}
	svc, err := NewService(repo, pricer, fakeTxRunner{}, publisher, nil, nil, nil)
	require.NoError(t, err)
	return repo, publisher, svc
}

func pendingPurchase(buyerID uuid.UUID) *models.Purchase {
	productID := uuid.New()
	id := uuid.New()
	return &models.Purchase{
		ID:       id,
		BuyerID:  buyerID,
		Status:   enums.PurchaseStatusPending,
		Total:    decimal.NewFromFloat(19.99),
		Currency: "USD",
		Items: []models.PurchaseItem{
			{ID: uuid.New(), PurchaseID: id, ProductID: productID, UnitPrice: decimal.NewFromFloat(19.99)},
		},
	}
}

func TestConfirmHappyPath(t *testing.T) {
	repo, publisher, svc := newServiceFixture(t)
	buyerID := uuid.New()
	purchase := pendingPurchase(buyerID)
	repo.purchases[purchase.ID] = purchase

	got, err := svc.Confirm(context.Background(), ConfirmInput{
		PurchaseID: purchase.ID,
		BuyerID:    buyerID,
		TxHash:     validHash,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PurchaseStatusCompleted, got.Status)
	require.NotNil(t, got.TxHash)
	assert.Equal(t, validHash, *got.TxHash)
	require.NotNil(t, got.ConfirmedAt)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, enums.EventPurchaseCompleted, publisher.events[0].EventType)
	assert.Equal(t, purchase.ID, publisher.events[0].AggregateID)
}

func TestConfirmRejectsMalformedHash(t *testing.T) {
	repo, _, svc := newServiceFixture(t)
	buyerID := uuid.New()
	purchase := pendingPurchase(buyerID)
	repo.purchases[purchase.ID] = purchase

	_, err := svc.Confirm(context.Background(), ConfirmInput{
		PurchaseID: purchase.ID,
		BuyerID:    buyerID,
		TxHash:     "not-a-hash",
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	assert.Zero(t, repo.confirmCalls)
}

func TestConfirmUnknownPurchaseIsNotFound(t *testing.T) {
	_, _, svc := newServiceFixture(t)

	_, err := svc.Confirm(context.Background(), ConfirmInput{
		PurchaseID: uuid.New(),
		BuyerID:    uuid.New(),
		TxHash:     validHash,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestConfirmOtherBuyersPurchaseIsNotFound(t *testing.T) {
	repo, _, svc := newServiceFixture(t)
	purchase := pendingPurchase(uuid.New())
	repo.purchases[purchase.ID] = purchase

	_, err := svc.Confirm(context.Background(), ConfirmInput{
		PurchaseID: purchase.ID,
		BuyerID:    uuid.New(),
		TxHash:     validHash,
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestConfirmTwiceIsStateConflict(t *testing.T) {
	repo, publisher, svc := newServiceFixture(t)
	buyerID := uuid.New()
	purchase := pendingPurchase(buyerID)
	repo.purchases[purchase.ID] = purchase

	input := ConfirmInput{PurchaseID: purchase.ID, BuyerID: buyerID, TxHash: validHash}
	_, err := svc.Confirm(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), input)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Len(t, publisher.events, 1)
}

func TestConfirmReusedHashIsConflict(t *testing.T) {
	repo, _, svc := newServiceFixture(t)
	buyerID := uuid.New()
	first := pendingPurchase(buyerID)
	second := pendingPurchase(buyerID)
	repo.purchases[first.ID] = first
	repo.purchases[second.ID] = second

	_, err := svc.Confirm(context.Background(), ConfirmInput{PurchaseID: first.ID, BuyerID: buyerID, TxHash: validHash})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), ConfirmInput{PurchaseID: second.ID, BuyerID: buyerID, TxHash: validHash})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestConfirmLosingRaceIsStateConflict(t *testing.T) {
	// The conditional update reports zero rows when another confirmation
	// already flipped the status between the read and the write.
	repo, publisher, svc := newServiceFixture(t)
	buyerID := uuid.New()
	purchase := pendingPurchase(buyerID)
	repo.purchases[purchase.ID] = purchase
	repo.confirmUpdated = false

	_, err := svc.Confirm(context.Background(), ConfirmInput{
		PurchaseID: purchase.ID,
		BuyerID:    buyerID,
		TxHash:     validHash,
	})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	assert.Empty(t, publisher.events)
}

func TestCreateComputesTotalsAndFee(t *testing.T) {
	repo := newFakeRepository()
	publisher := &fakeOutbox{}
	productA := models.Product{ID: uuid.New(), CreatorID: uuid.New(), Price: decimal.NewFromFloat(10.00)}
	productB := models.Product{ID: uuid.New(), CreatorID: uuid.New(), Price: decimal.NewFromFloat(5.50)}
	pricer := &fakeProductPricer{products: map[uuid.UUID]models.Product{
		productA.ID: productA,
		productB.ID: productB,
	}}
	svc, err := NewService(repo, pricer, fakeTxRunner{}, publisher, nil, nil, nil)
	require.NoError(t, err)

	buyerID := uuid.New()
	purchase, err := svc.Create(context.Background(), CreateInput{
		BuyerID:    buyerID,
		ProductIDs: []uuid.UUID{productA.ID, productB.ID},
		PendingTTL: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PurchaseStatusPending, purchase.Status)
	assert.True(t, purchase.Total.Equal(decimal.NewFromFloat(15.50)))
	assert.True(t, purchase.PlatformFee.Equal(decimal.NewFromFloat(0.78)))
	require.NotNil(t, purchase.ExpiresAt)
	assert.Len(t, purchase.Items, 2)
}

func TestCreateRejectsOwnProduct(t *testing.T) {
	repo := newFakeRepository()
	creatorID := uuid.New()
	product := models.Product{ID: uuid.New(), CreatorID: creatorID, Price: decimal.NewFromFloat(10)}
	pricer := &fakeProductPricer{products: map[uuid.UUID]models.Product{product.ID: product}}
	svc, err := NewService(repo, pricer, fakeTxRunner{}, &fakeOutbox{}, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{
		BuyerID:    creatorID,
		ProductIDs: []uuid.UUID{product.ID},
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCreateUnknownProductIsNotFound(t *testing.T) {
	repo := newFakeRepository()
	pricer := &fakeProductPricer{products: map[uuid.UUID]models.Product{}}
	svc, err := NewService(repo, pricer, fakeTxRunner{}, &fakeOutbox{}, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{
		BuyerID:    uuid.New(),
		ProductIDs: []uuid.UUID{uuid.New()},
	})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestGetEnforcesOwnership(t *testing.T) {
	repo, _, svc := newServiceFixture(t)
	buyerID := uuid.New()
	purchase := pendingPurchase(buyerID)
	repo.purchases[purchase.ID] = purchase

	got, err := svc.Get(context.Background(), buyerID, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.ID, got.ID)

	_, err = svc.Get(context.Background(), uuid.New(), purchase.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

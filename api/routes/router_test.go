package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	deliverysvc "github.com/soundcrate/backend/internal/delivery"
	"github.com/soundcrate/backend/internal/notifications"
	"github.com/soundcrate/backend/internal/products"
	"github.com/soundcrate/backend/internal/purchases"
	"github.com/soundcrate/backend/internal/reviews"
	"github.com/soundcrate/backend/internal/users"
	pkgAuth "github.com/soundcrate/backend/pkg/auth"
	"github.com/soundcrate/backend/pkg/config"
	"github.com/soundcrate/backend/pkg/db/models"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
	"github.com/soundcrate/backend/pkg/logger"
	"github.com/soundcrate/backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubUsersService struct {
	user *models.User
}

func (s stubUsersService) Resolve(ctx context.Context, accountID string) (*models.User, error) {
	if s.user != nil {
		return s.user, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "no user configured")
}

func (s stubUsersService) Lookup(ctx context.Context, accountID string) (*models.User, error) {
	return s.user, nil
}

func (s stubUsersService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user != nil {
		return s.user, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

func (s stubUsersService) Profile(ctx context.Context, id uuid.UUID) (*users.Profile, error) {
	if s.user != nil {
		return &users.Profile{User: *s.user}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

type stubProductsService struct{}

func (stubProductsService) Create(ctx context.Context, creatorID uuid.UUID, input products.CreateInput) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubProductsService) Update(ctx context.Context, creatorID, productID uuid.UUID, input products.UpdateInput) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubProductsService) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (stubProductsService) List(ctx context.Context, params products.ListParams) (*products.ListResult, error) {
	return &products.ListResult{Items: []models.Product{}}, nil
}

func (stubProductsService) Delete(ctx context.Context, creatorID, productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

type stubPurchasesService struct{}

func (stubPurchasesService) Create(ctx context.Context, input purchases.CreateInput) (*models.Purchase, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubPurchasesService) Confirm(ctx context.Context, input purchases.ConfirmInput) (*models.Purchase, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubPurchasesService) Get(ctx context.Context, buyerID, purchaseID uuid.UUID) (*models.Purchase, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
}

func (stubPurchasesService) ListMine(ctx context.Context, buyerID uuid.UUID, limit int) ([]models.Purchase, error) {
	return []models.Purchase{}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) Notify(ctx context.Context, input notifications.NotifyInput) (*models.Notification, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{Items: []models.Notification{}}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type stubReviewsService struct{}

func (stubReviewsService) Create(ctx context.Context, input reviews.CreateInput) (*models.Review, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

func (stubReviewsService) ListByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]models.Review, error) {
	return []models.Review{}, nil
}

type stubDeliveryService struct{}

func (stubDeliveryService) DeliverFile(ctx context.Context, accountID, key string) (*deliverysvc.Content, error) {
	if accountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required for gated content")
	}
	return &deliverysvc.Content{
		Body:        io.NopCloser(strings.NewReader("bytes")),
		ContentType: "application/octet-stream",
		Class:       enums.KeyClassDigital,
	}, nil
}

func (stubDeliveryService) DeliverImage(ctx context.Context, key string) (*deliverysvc.Content, error) {
	return &deliverysvc.Content{
		Body:        io.NopCloser(strings.NewReader("png")),
		ContentType: "image/png",
		Class:       enums.KeyClassImage,
	}, nil
}

func (stubDeliveryService) AcceptUpload(ctx context.Context, userID uuid.UUID, filename, contentType string, body io.Reader) (string, error) {
	return userID.String() + "/stub_" + filename, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "soundcrate-test",
			ExpirationMinutes: 60,
		},
		Purchases: config.PurchasesConfig{PendingTTL: 24 * time.Hour},
	}
}

func newTestRouter(cfg *config.Config, user *models.User) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubPinger{},
		stubUsersService{user: user},
		stubProductsService{},
		stubPurchasesService{},
		stubNotificationsService{},
		stubReviewsService{},
		stubDeliveryService{},
	)
}

func mintToken(t *testing.T, cfg *config.Config, accountID string) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{AccountID: accountID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestPublicPing(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupAcceptsValidJWT(t *testing.T) {
	cfg := testConfig()
	user := &models.User{ID: uuid.New(), AccountID: "acct-1", DisplayName: "Producer"}
	router := newTestRouter(cfg, user)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, "acct-1"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestProductListingIsPublic(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestImageRouteIsPublic(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/images/kit_cover.png", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestFileRouteRequiresIdentityForGatedContent(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/kit_stems.zip", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestUploadRouteRequiresAuth(t *testing.T) {
	cfg := testConfig()
	user := &models.User{ID: uuid.New(), AccountID: "acct-1", DisplayName: "Producer"}
	router := newTestRouter(cfg, user)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/kit.zip", strings.NewReader("bytes"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/uploads/kit.zip", strings.NewReader("bytes"))
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, "acct-1"))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/does-not-exist", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

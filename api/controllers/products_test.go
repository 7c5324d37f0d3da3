package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	productsvc "github.com/soundcrate/backend/internal/products"
	"github.com/soundcrate/backend/pkg/db/models"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
)

type testProductsService struct {
	createFn func(ctx context.Context, creatorID uuid.UUID, input productsvc.CreateInput) (*models.Product, error)
	updateFn func(ctx context.Context, creatorID, productID uuid.UUID, input productsvc.UpdateInput) (*models.Product, error)
	getFn    func(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	listFn   func(ctx context.Context, params productsvc.ListParams) (*productsvc.ListResult, error)
	deleteFn func(ctx context.Context, creatorID, productID uuid.UUID) error
}

func (s *testProductsService) Create(ctx context.Context, creatorID uuid.UUID, input productsvc.CreateInput) (*models.Product, error) {
	if s.createFn != nil {
		return s.createFn(ctx, creatorID, input)
	}
	return nil, nil
}

func (s *testProductsService) Update(ctx context.Context, creatorID, productID uuid.UUID, input productsvc.UpdateInput) (*models.Product, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, creatorID, productID, input)
	}
	return nil, nil
}

func (s *testProductsService) Get(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if s.getFn != nil {
		return s.getFn(ctx, productID)
	}
	return nil, nil
}

func (s *testProductsService) List(ctx context.Context, params productsvc.ListParams) (*productsvc.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, nil
}

func (s *testProductsService) Delete(ctx context.Context, creatorID, productID uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, creatorID, productID)
	}
	return nil
}

func TestCreateProductParsesPayload(t *testing.T) {
	creatorID := uuid.New()
	svc := &testProductsService{
		createFn: func(ctx context.Context, gotCreator uuid.UUID, input productsvc.CreateInput) (*models.Product, error) {
			if gotCreator != creatorID {
				t.Fatalf("unexpected creator %s", gotCreator)
			}
			if input.Title != "Lo-fi Drum Kit" {
				t.Fatalf("unexpected title %q", input.Title)
			}
			if !input.Price.Equal(decimal.RequireFromString("19.99")) {
				t.Fatalf("unexpected price %s", input.Price)
			}
			if len(input.Keys.DigitalFiles) != 1 || input.Keys.DigitalFiles[0] != "kit_stems.zip" {
				t.Fatalf("unexpected digital keys %v", input.Keys.DigitalFiles)
			}
			if len(input.Keys.Images) != 1 {
				t.Fatalf("unexpected images %v", input.Keys.Images)
			}
			return &models.Product{ID: uuid.New(), CreatorID: creatorID, Title: input.Title}, nil
		},
	}

	body := `{
		"title": "Lo-fi Drum Kit",
		"price": "19.99",
		"currency": "USD",
		"is_published": true,
		"keys": {
			"digital_files": ["kit_stems.zip"],
			"preview_files": ["kit_preview.mp3"],
			"images": ["kit_cover.png"]
		}
	}`
	req := authedRequest(http.MethodPost, "/api/v1/products", body, creatorID)
	resp := httptest.NewRecorder()
	CreateProduct(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateProductRejectsBadPrice(t *testing.T) {
	req := authedRequest(http.MethodPost, "/api/v1/products", `{"title":"Kit","price":"not-a-number"}`, uuid.New())
	resp := httptest.NewRecorder()
	CreateProduct(&testProductsService{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUpdateProductMapsOwnershipError(t *testing.T) {
	productID := uuid.New()
	svc := &testProductsService{
		updateFn: func(ctx context.Context, creatorID, gotProduct uuid.UUID, input productsvc.UpdateInput) (*models.Product, error) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another creator")
		},
	}

	req := authedRequest(http.MethodPatch, "/api/v1/products/"+productID.String(), `{"title":"Renamed"}`, uuid.New())
	req = addRouteParam(req, "productId", productID.String())
	resp := httptest.NewRecorder()
	UpdateProduct(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestListProductsDefaultsToPublished(t *testing.T) {
	svc := &testProductsService{
		listFn: func(ctx context.Context, params productsvc.ListParams) (*productsvc.ListResult, error) {
			if !params.PublishedOnly {
				t.Fatal("public listing must only expose published products")
			}
			return &productsvc.ListResult{Items: []models.Product{}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp := httptest.NewRecorder()
	ListProducts(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestDeleteProductRequiresAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+uuid.NewString(), nil)
	req = addRouteParam(req, "productId", uuid.NewString())
	resp := httptest.NewRecorder()
	DeleteProduct(&testProductsService{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

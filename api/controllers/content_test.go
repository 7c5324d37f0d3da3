package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/soundcrate/backend/api/middleware"
	deliverysvc "github.com/soundcrate/backend/internal/delivery"
	"github.com/soundcrate/backend/pkg/enums"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
)

type testDeliveryService struct {
	deliverFileFn  func(ctx context.Context, accountID, key string) (*deliverysvc.Content, error)
	deliverImageFn func(ctx context.Context, key string) (*deliverysvc.Content, error)
	acceptUploadFn func(ctx context.Context, userID uuid.UUID, filename, contentType string, body io.Reader) (string, error)
}

func (s *testDeliveryService) DeliverFile(ctx context.Context, accountID, key string) (*deliverysvc.Content, error) {
	if s.deliverFileFn != nil {
		return s.deliverFileFn(ctx, accountID, key)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not configured")
}

func (s *testDeliveryService) DeliverImage(ctx context.Context, key string) (*deliverysvc.Content, error) {
	if s.deliverImageFn != nil {
		return s.deliverImageFn(ctx, key)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not configured")
}

func (s *testDeliveryService) AcceptUpload(ctx context.Context, userID uuid.UUID, filename, contentType string, body io.Reader) (string, error) {
	if s.acceptUploadFn != nil {
		return s.acceptUploadFn(ctx, userID, filename, contentType, body)
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "not configured")
}

func contentRequest(t *testing.T, path, key string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("*", key)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestDeliverFileStreamsGatedContent(t *testing.T) {
	body := "riff riff riff"
	svc := &testDeliveryService{
		deliverFileFn: func(ctx context.Context, accountID, key string) (*deliverysvc.Content, error) {
			if accountID != "acct-1" {
				t.Fatalf("unexpected account %q", accountID)
			}
			if key != "kit_stems.zip" {
				t.Fatalf("unexpected key %q", key)
			}
			return &deliverysvc.Content{
				Body:          io.NopCloser(strings.NewReader(body)),
				ContentLength: int64(len(body)),
				ContentType:   "application/octet-stream",
				Disposition:   `inline; filename="stems.zip"`,
				Class:         enums.KeyClassDigital,
			}, nil
		},
	}

	req := contentRequest(t, "/api/v1/files/kit_stems.zip", "kit_stems.zip")
	req = req.WithContext(middleware.WithAccountID(req.Context(), "acct-1"))
	resp := httptest.NewRecorder()
	DeliverFile(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if resp.Body.String() != body {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
	if got := resp.Header().Get("Content-Type"); got != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := resp.Header().Get("Content-Disposition"); got != `inline; filename="stems.zip"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if got := resp.Header().Get("Content-Length"); got != "14" {
		t.Fatalf("unexpected content length %q", got)
	}
}

func TestDeliverFileMapsDenials(t *testing.T) {
	svc := &testDeliveryService{
		deliverFileFn: func(ctx context.Context, accountID, key string) (*deliverysvc.Content, error) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "content not purchased")
		},
	}

	req := contentRequest(t, "/api/v1/files/kit_stems.zip", "kit_stems.zip")
	resp := httptest.NewRecorder()
	DeliverFile(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestUploadFileReturnsKey(t *testing.T) {
	userID := uuid.New()
	svc := &testDeliveryService{
		acceptUploadFn: func(ctx context.Context, uid uuid.UUID, filename, contentType string, body io.Reader) (string, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			if filename != "stems.zip" {
				t.Fatalf("unexpected filename %q", filename)
			}
			if contentType != "application/zip" {
				t.Fatalf("unexpected content type %q", contentType)
			}
			payload, err := io.ReadAll(body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if string(payload) != "zip-bytes" {
				t.Fatalf("unexpected payload %q", payload)
			}
			return userID.String() + "/abc_stems.zip", nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/uploads/stems.zip", "zip-bytes", userID)
	req.Header.Set("Content-Type", "application/zip")
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("*", "stems.zip")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	resp := httptest.NewRecorder()
	UploadFile(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["key"] != userID.String()+"/abc_stems.zip" {
		t.Fatalf("unexpected key %q", envelope.Data["key"])
	}
}

func TestUploadFileMissingUser(t *testing.T) {
	req := contentRequest(t, "/api/v1/uploads/stems.zip", "stems.zip")
	req.Method = http.MethodPost
	resp := httptest.NewRecorder()
	UploadFile(&testDeliveryService{}, testLogger(t))(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestDeliverImageServesAnonymously(t *testing.T) {
	svc := &testDeliveryService{
		deliverImageFn: func(ctx context.Context, key string) (*deliverysvc.Content, error) {
			return &deliverysvc.Content{
				Body:        io.NopCloser(strings.NewReader("png-bytes")),
				ContentType: "image/png",
				Class:       enums.KeyClassImage,
			}, nil
		},
	}

	req := contentRequest(t, "/api/v1/images/cover_art.png", "cover_art.png")
	resp := httptest.NewRecorder()
	DeliverImage(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("unexpected content type %q", got)
	}
}

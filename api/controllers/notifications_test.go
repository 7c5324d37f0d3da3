package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	notificationsvc "github.com/soundcrate/backend/internal/notifications"
	"github.com/soundcrate/backend/pkg/db/models"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
)

type testNotificationsService struct {
	notifyFn      func(ctx context.Context, input notificationsvc.NotifyInput) (*models.Notification, error)
	listFn        func(ctx context.Context, params notificationsvc.ListParams) (*notificationsvc.ListResult, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (s *testNotificationsService) Notify(ctx context.Context, input notificationsvc.NotifyInput) (*models.Notification, error) {
	if s.notifyFn != nil {
		return s.notifyFn(ctx, input)
	}
	return nil, nil
}

func (s *testNotificationsService) List(ctx context.Context, params notificationsvc.ListParams) (*notificationsvc.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return nil, nil
}

func (s *testNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, userID, notificationID)
	}
	return nil
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func TestListNotificationsForwardsParams(t *testing.T) {
	userID := uuid.New()
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notificationsvc.ListParams) (*notificationsvc.ListResult, error) {
			if params.UserID != userID {
				t.Fatalf("unexpected user %s", params.UserID)
			}
			if params.Limit != 25 {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			if !params.UnreadOnly {
				t.Fatal("expected unreadOnly filter")
			}
			return &notificationsvc.ListResult{Items: []models.Notification{}, UnreadCount: 3}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/notifications?limit=25&unreadOnly=true", "", userID)
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data notificationsvc.ListResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.UnreadCount != 3 {
		t.Fatalf("unexpected unread count %d", envelope.Data.UnreadCount)
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	for _, limit := range []string{"zero", "0", "-5", "101", "500"} {
		req := authedRequest(http.MethodGet, "/api/v1/notifications?limit="+limit, "", uuid.New())
		resp := httptest.NewRecorder()
		svc := &testNotificationsService{
			listFn: func(ctx context.Context, params notificationsvc.ListParams) (*notificationsvc.ListResult, error) {
				t.Fatalf("service must not be called for limit=%s", limit)
				return nil, nil
			},
		}
		ListNotifications(svc, testLogger(t))(resp, req)

		if resp.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400 got %d", limit, resp.Code)
		}
	}
}

func TestMarkNotificationReadSuccess(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	called := false
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, uid, nid uuid.UUID) error {
			called = true
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			if nid != notificationID {
				t.Fatalf("unexpected notification %s", nid)
			}
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", "", userID)
	req = addRouteParam(req, "notificationId", notificationID.String())
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data["read"] {
		t.Fatal("response missing read flag")
	}
}

func TestMarkNotificationReadMissingUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", nil)
	req = addRouteParam(req, "notificationId", uuid.NewString())
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger(t))(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, uid, nid uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", "", uuid.New())
	req = addRouteParam(req, "notificationId", uuid.NewString())
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestMarkAllNotificationsReadReturnsCount(t *testing.T) {
	userID := uuid.New()
	svc := &testNotificationsService{
		markAllReadFn: func(ctx context.Context, uid uuid.UUID) (int64, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			return 4, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/read-all", "", userID)
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["updated"] != 4 {
		t.Fatalf("unexpected count %d", envelope.Data["updated"])
	}
}

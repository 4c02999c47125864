package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/notify-api-nosql/internal/application/notification"
	"github.com/notify-api-nosql/internal/domain"
	jwtinfra "github.com/notify-api-nosql/internal/infrastructure/jwt"
	"github.com/notify-api-nosql/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockNotificationSvc struct{ mock.Mock }

func (m *mockNotificationSvc) CreateForUser(ctx context.Context, op domain.Operation, userID, name string, opts notification.CreateOptions) (*domain.Notification, error) {
	args := m.Called(ctx, op, userID, name, opts)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) TryClearBadge(ctx context.Context, userID, deviceID string, notificationID int64) (bool, error) {
	args := m.Called(ctx, userID, deviceID, notificationID)
	return args.Bool(0), args.Error(1)
}

func (m *mockNotificationSvc) QueryLast(ctx context.Context, userID string, consistent bool) (*domain.Notification, error) {
	args := m.Called(ctx, userID, consistent)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) Get(ctx context.Context, userID string, notificationID int64) (*domain.Notification, error) {
	args := m.Called(ctx, userID, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationSvc) List(ctx context.Context, userID string, beforeID int64, limit int32) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, beforeID, limit)
	if ns, _ := args.Get(0).([]domain.Notification); ns != nil {
		return ns, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

// withClaims injects authenticated claims the way the auth middleware would.
func withClaims(req *http.Request, userID, deviceID string) *http.Request {
	claims := &jwtinfra.Claims{UserID: userID, DeviceID: deviceID}
	return req.WithContext(context.WithValue(req.Context(), middleware.ClaimsKey, claims))
}

// --- Create ---

func TestCreateNotification_OK(t *testing.T) {
	svc := &mockNotificationSvc{}
	committed := &domain.Notification{
		UserID:         "u-1",
		NotificationID: 3,
		Name:           "share",
		Badge:          2,
		Timestamp:      time.Now().UTC(),
	}
	svc.On("CreateForUser", mock.Anything, mock.MatchedBy(func(op domain.Operation) bool {
		return op.UserID == "u-1" && op.DeviceID == "dev-1" && op.OperationID != ""
	}), "u-1", "share", mock.MatchedBy(func(opts notification.CreateOptions) bool {
		return opts.IncBadge
	})).Return(committed, nil)

	body, _ := json.Marshal(CreateNotificationRequest{Name: "share", IncBadge: true})
	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/notifications", bytes.NewReader(body)), "u-1", "dev-1")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).Create(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var env NotificationEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NotNil(t, env.Notification)
	assert.Equal(t, int64(3), env.Notification.NotificationID)
	svc.AssertExpectations(t)
}

func TestCreateNotification_MissingName(t *testing.T) {
	svc := &mockNotificationSvc{}
	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/notifications", bytes.NewBufferString(`{"inc_badge":true}`)), "u-1", "dev-1")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).Create(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "CreateForUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateNotification_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/notifications", bytes.NewBufferString(`{"name":"share"}`))
	rr := httptest.NewRecorder()
	NewNotificationHandler(&mockNotificationSvc{}).Create(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateNotification_ContentionMapsToConflict(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("CreateForUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrContentionExceeded)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/notifications", bytes.NewBufferString(`{"name":"share"}`)), "u-1", "dev-1")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).Create(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

// --- ClearBadges ---

func TestClearBadges_UsesSlotAfterLast(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("QueryLast", mock.Anything, "u-1", true).
		Return(&domain.Notification{UserID: "u-1", NotificationID: 7, Name: "share", Badge: 3}, nil)
	svc.On("TryClearBadge", mock.Anything, "u-1", "dev-1", int64(8)).Return(true, nil)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/notifications/clear-badges", nil), "u-1", "dev-1")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).ClearBadges(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var env ClearBadgesEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Cleared)
	assert.Equal(t, int64(8), env.NotificationID)
	svc.AssertExpectations(t)
}

func TestClearBadges_AlreadyClear_ReusesMarkerID(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("QueryLast", mock.Anything, "u-1", true).
		Return(&domain.Notification{UserID: "u-1", NotificationID: 8, Name: domain.NameClearBadges, Badge: 0}, nil)
	svc.On("TryClearBadge", mock.Anything, "u-1", "dev-1", int64(8)).Return(false, nil)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/notifications/clear-badges", nil), "u-1", "dev-1")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).ClearBadges(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var env ClearBadgesEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.False(t, env.Cleared)
}

func TestClearBadges_EmptyUser_StartsAtOne(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("QueryLast", mock.Anything, "u-1", true).Return(nil, nil)
	svc.On("TryClearBadge", mock.Anything, "u-1", "dev-1", int64(1)).Return(true, nil)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/notifications/clear-badges", nil), "u-1", "dev-1")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).ClearBadges(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- Get / GetLast / List ---

// withURLParam routes the request through a chi context carrying a path param.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetNotification_OK(t *testing.T) {
	n := &domain.Notification{UserID: "u-1", NotificationID: 5, Name: "share", Badge: 2}
	require.NoError(t, n.SetInvalidate(map[string]interface{}{"episodes": []interface{}{"e1"}}))

	svc := &mockNotificationSvc{}
	svc.On("Get", mock.Anything, "u-1", int64(5)).Return(n, nil)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications/5", nil), "u-1", "dev-1")
	req = withURLParam(req, "id", "5")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).Get(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var env NotificationEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NotNil(t, env.Notification)
	assert.Equal(t, int64(5), env.Notification.NotificationID)
	assert.Equal(t, map[string]interface{}{"episodes": []interface{}{"e1"}}, env.Invalidate)
	svc.AssertExpectations(t)
}

func TestGetNotification_InvalidID(t *testing.T) {
	svc := &mockNotificationSvc{}
	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications/abc", nil), "u-1", "dev-1")
	req = withURLParam(req, "id", "abc")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).Get(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetNotification_NotFound(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("Get", mock.Anything, "u-1", int64(9)).Return(nil, domain.ErrNotFound)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications/9", nil), "u-1", "dev-1")
	req = withURLParam(req, "id", "9")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).Get(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetLast_Empty(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("QueryLast", mock.Anything, "u-1", false).Return(nil, nil)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications/last", nil), "u-1", "dev-1")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).GetLast(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetLast_DecodesInvalidate(t *testing.T) {
	n := &domain.Notification{UserID: "u-1", NotificationID: 2, Name: "share", Badge: 1}
	require.NoError(t, n.SetInvalidate(map[string]interface{}{"viewpoints": "all"}))

	svc := &mockNotificationSvc{}
	svc.On("QueryLast", mock.Anything, "u-1", false).Return(n, nil)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications/last", nil), "u-1", "dev-1")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).GetLast(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var env NotificationEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, map[string]interface{}{"viewpoints": "all"}, env.Invalidate)
}

func TestList_DefaultsAndCursor(t *testing.T) {
	svc := &mockNotificationSvc{}
	svc.On("List", mock.Anything, "u-1", int64(9), int32(2)).
		Return([]domain.Notification{{NotificationID: 8}, {NotificationID: 7}}, nil)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/notifications?before=9&limit=2", nil), "u-1", "dev-1")
	rr := httptest.NewRecorder()
	NewNotificationHandler(svc).List(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var got []domain.Notification
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(8), got[0].NotificationID)
}

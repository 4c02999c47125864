package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/notify-api-nosql/internal/application/notification"
	"github.com/notify-api-nosql/internal/domain"
	"github.com/notify-api-nosql/internal/pkg/id"
	"github.com/notify-api-nosql/internal/pkg/validate"
	"github.com/notify-api-nosql/internal/transport/http/middleware"
)

// CreateNotificationRequest is the POST /notifications payload.
type CreateNotificationRequest struct {
	Name        string                 `json:"name" validate:"required"`
	Invalidate  map[string]interface{} `json:"invalidate"`
	ActivityID  *string                `json:"activity_id"`
	ViewpointID *string                `json:"viewpoint_id"`
	UpdateSeq   *int64                 `json:"update_seq"`
	ViewedSeq   *int64                 `json:"viewed_seq"`
	IncBadge    bool                   `json:"inc_badge"`
}

// NotificationHandler handles notification endpoints.
type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Create allocates the next notification for the authenticated user. The
// operation context is derived from the caller's claims and server time.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	op := domain.Operation{
		UserID:      claims.UserID,
		DeviceID:    claims.DeviceID,
		OperationID: id.New(),
		Timestamp:   time.Now().UTC(),
	}
	n, err := h.svc.CreateForUser(r.Context(), op, claims.UserID, req.Name, notification.CreateOptions{
		Invalidate:  req.Invalidate,
		ActivityID:  req.ActivityID,
		ViewpointID: req.ViewpointID,
		UpdateSeq:   req.UpdateSeq,
		ViewedSeq:   req.ViewedSeq,
		IncBadge:    req.IncBadge,
	})
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NotificationEnvelope{Notification: n, Invalidate: req.Invalidate})
}

// List returns a descending page of the caller's notifications. Cursor is the
// lowest notification_id of the previous page, passed as ?before=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	before, _ := strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)
	limit, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}
	notifications, err := h.svc.List(r.Context(), claims.UserID, before, int32(limit))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// GetLast returns the caller's newest notification, or 404 when none exists.
func (h *NotificationHandler) GetLast(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	n, err := h.svc.QueryLast(r.Context(), claims.UserID, false)
	if err != nil {
		httpError(w, err)
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "no notifications")
		return
	}
	inv, err := n.GetInvalidate()
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NotificationEnvelope{Notification: n, Invalidate: inv})
}

// Get returns one of the caller's notifications by id.
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	nid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || nid <= 0 {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	n, err := h.svc.Get(r.Context(), claims.UserID, nid)
	if err != nil {
		httpError(w, err)
		return
	}
	inv, err := n.GetInvalidate()
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NotificationEnvelope{Notification: n, Invalidate: inv})
}

// ClearBadges marks the caller's badge count as cleared. The marker id is the
// slot after the newest visible notification, so repeated clears while nothing
// new arrived collapse onto the same id and the duplicates report cleared=false.
func (h *NotificationHandler) ClearBadges(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	// Strong read: deriving the marker id from a lagging view would target
	// an already-occupied id and the single-shot create would lose even
	// though the badge was never cleared.
	last, err := h.svc.QueryLast(r.Context(), claims.UserID, true)
	if err != nil {
		httpError(w, err)
		return
	}
	var markerID int64 = 1
	if last != nil {
		if last.Name == domain.NameClearBadges && last.Badge == 0 {
			// Badge is already clear; repeating the last marker id keeps
			// the call idempotent.
			markerID = last.NotificationID
		} else {
			markerID = last.NotificationID + 1
		}
	}
	cleared, err := h.svc.TryClearBadge(r.Context(), claims.UserID, claims.DeviceID, markerID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearBadgesEnvelope{Cleared: cleared, NotificationID: markerID})
}

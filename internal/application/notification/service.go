package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/notify-api-nosql/internal/domain"
)

const (
	defaultMaxAttempts = 16
	baseBackoff        = 10 * time.Millisecond
	maxBackoff         = 640 * time.Millisecond
)

// Store is the notifications-table contract the allocation protocol needs:
// a descending last-record query and an atomic create-if-absent write.
type Store interface {
	QueryLast(ctx context.Context, userID string, consistent bool) (*domain.Notification, error)
	Insert(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, userID string, notificationID int64) (*domain.Notification, error)
	ListDescending(ctx context.Context, userID string, beforeID int64, limit int32) ([]domain.Notification, error)
}

// Alerter pushes a badge alert to a user's registered devices after a
// badge-incrementing notification commits.
type Alerter interface {
	PushBadge(ctx context.Context, n *domain.Notification) error
}

// CreateOptions carries the optional parts of a notification create.
type CreateOptions struct {
	Invalidate  map[string]interface{}
	ActivityID  *string
	ViewpointID *string
	UpdateSeq   *int64
	ViewedSeq   *int64
	IncBadge    bool

	// Consistent forces the first last-record read to be strongly
	// consistent. The loop escalates to consistent reads on its own after
	// any write conflict.
	Consistent bool
}

type Service interface {
	CreateForUser(ctx context.Context, op domain.Operation, userID, name string, opts CreateOptions) (*domain.Notification, error)
	TryClearBadge(ctx context.Context, userID, deviceID string, notificationID int64) (bool, error)
	QueryLast(ctx context.Context, userID string, consistent bool) (*domain.Notification, error)
	Get(ctx context.Context, userID string, notificationID int64) (*domain.Notification, error)
	List(ctx context.Context, userID string, beforeID int64, limit int32) ([]domain.Notification, error)
}

type service struct {
	store       Store
	alerts      Alerter // nil disables pushing
	maxAttempts int
}

// NewService wires the allocation protocol. alerts may be nil when no push
// platform is configured. maxAttempts <= 0 selects the default retry budget.
func NewService(store Store, alerts Alerter, maxAttempts int) Service {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &service{store: store, alerts: alerts, maxAttempts: maxAttempts}
}

// CreateForUser allocates the next notification_id for userID and commits a
// record under it. Concurrent callers for the same user are resolved purely by
// the store's conditional write: whoever commits an id first wins it, losers
// re-read the last record (now with strong consistency) and advance to a
// higher id. No lock is held anywhere; taking one in-process would not help,
// since writers on other machines race through the same table.
func (s *service) CreateForUser(ctx context.Context, op domain.Operation, userID, name string, opts CreateOptions) (*domain.Notification, error) {
	consistent := opts.Consistent
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		last, err := s.store.QueryLast(ctx, userID, consistent)
		if err != nil {
			return nil, err
		}

		n, err := s.assemble(op, userID, name, last, opts)
		if err != nil {
			return nil, err
		}

		err = s.store.Insert(ctx, n)
		if err == nil {
			s.pushBadge(ctx, n, opts.IncBadge)
			return n, nil
		}
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrUnavailable) {
			// Re-reading under eventual consistency tends to return the
			// same stale last record and re-collide on the same id, so
			// all retries read consistently.
			consistent = true
			slog.Debug("notification create retry", "user_id", userID, "notification_id", n.NotificationID, "attempt", attempt, "err", err)
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("create notification for user %s: %w", userID, domain.ErrContentionExceeded)
}

// assemble builds the candidate record for the id slot after last.
func (s *service) assemble(op domain.Operation, userID, name string, last *domain.Notification, opts CreateOptions) (*domain.Notification, error) {
	var nextID, badge int64 = 1, 0
	if last != nil {
		nextID = last.NotificationID + 1
		badge = last.Badge
	}
	if opts.IncBadge {
		badge++
	}

	n := &domain.Notification{
		UserID:         userID,
		NotificationID: nextID,
		Name:           name,
		Timestamp:      op.Timestamp,
		SenderID:       op.UserID,
		SenderDeviceID: op.DeviceID,
		OpID:           op.OperationID,
		Badge:          badge,
		ActivityID:     opts.ActivityID,
		ViewpointID:    opts.ViewpointID,
		UpdateSeq:      opts.UpdateSeq,
	}

	// viewed_seq applies only to the user that submitted the operation.
	if opts.ViewedSeq != nil && op.UserID == userID {
		n.ViewedSeq = opts.ViewedSeq
	}

	if opts.Invalidate != nil {
		if err := n.SetInvalidate(opts.Invalidate); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// TryClearBadge attempts exactly one conditional create of a clear_badges
// marker at the caller-chosen id. Returns false without retrying when another
// notification already took that id; deriving the id deterministically from
// context is what makes repeated clear requests collapse into one record.
func (s *service) TryClearBadge(ctx context.Context, userID, deviceID string, notificationID int64) (bool, error) {
	n := &domain.Notification{
		UserID:         userID,
		NotificationID: notificationID,
		Name:           domain.NameClearBadges,
		Timestamp:      time.Now().UTC(),
		SenderID:       userID,
		SenderDeviceID: deviceID,
		Badge:          0,
	}
	err := s.store.Insert(ctx, n)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrConflict) {
		return false, nil
	}
	return false, err
}

// QueryLast returns the user's newest notification. Callers that derive a
// write target from the result (the clear-badges marker id) must request a
// consistent read, or a lagging replica can hand them an already-taken id.
func (s *service) QueryLast(ctx context.Context, userID string, consistent bool) (*domain.Notification, error) {
	return s.store.QueryLast(ctx, userID, consistent)
}

func (s *service) Get(ctx context.Context, userID string, notificationID int64) (*domain.Notification, error) {
	return s.store.Get(ctx, userID, notificationID)
}

func (s *service) List(ctx context.Context, userID string, beforeID int64, limit int32) ([]domain.Notification, error) {
	return s.store.ListDescending(ctx, userID, beforeID, limit)
}

// pushBadge fires the device alert after a badge-incrementing commit. Push
// failures never affect the already-committed allocation.
func (s *service) pushBadge(ctx context.Context, n *domain.Notification, incBadge bool) {
	if s.alerts == nil || !incBadge {
		return
	}
	if err := s.alerts.PushBadge(ctx, n); err != nil {
		slog.Warn("badge alert push failed", "user_id", n.UserID, "notification_id", n.NotificationID, "err", err)
	}
}

// sleepBackoff waits an exponentially growing, jittered interval before the
// next allocation attempt, bailing out early if ctx is cancelled.
func sleepBackoff(ctx context.Context, attempt int) error {
	if attempt > 6 {
		attempt = 6
	}
	d := baseBackoff << uint(attempt)
	if d > maxBackoff {
		d = maxBackoff
	}
	d = d/2 + time.Duration(rand.Int63n(int64(d/2+1)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

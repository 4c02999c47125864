package domain

import "time"

// Operation is the context of the triggering change: who did what, from which
// device, and when. Notification records copy these fields verbatim so that
// clients can trace a notification back to its cause.
type Operation struct {
	UserID      string
	DeviceID    string
	OperationID string
	Timestamp   time.Time
}

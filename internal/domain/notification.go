package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Notification name used by badge-clear markers.
const NameClearBadges = "clear_badges"

// Notification tells a client that assets visible to a user changed and which
// of its cached assets to re-query. Records are keyed by (user_id,
// notification_id) where notification_id is a per-user strictly increasing
// sequence allocated at create time. A record is never updated after creation.
type Notification struct {
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	NotificationID int64     `json:"notification_id" dynamodbav:"notification_id"`
	Name           string    `json:"name" dynamodbav:"name"`
	Timestamp      time.Time `json:"timestamp" dynamodbav:"timestamp"`
	SenderID       string    `json:"sender_id" dynamodbav:"sender_id"`
	SenderDeviceID string    `json:"sender_device_id" dynamodbav:"sender_device_id"`
	OpID           string    `json:"op_id" dynamodbav:"op_id"`

	// Badge is the count of notifications the receiving user has not yet
	// acknowledged. It is carried forward from the previous record and is
	// best-effort under concurrency: two racing writers may both read the
	// same predecessor and compute the same increment.
	Badge int64 `json:"badge" dynamodbav:"badge"`

	// Invalidate holds the serialized invalidation payload. Stored opaque;
	// use SetInvalidate/GetInvalidate instead of touching it directly.
	Invalidate *string `json:"-" dynamodbav:"invalidate"`

	ActivityID  *string `json:"activity_id,omitempty" dynamodbav:"activity_id"`
	ViewpointID *string `json:"viewpoint_id,omitempty" dynamodbav:"viewpoint_id"`

	// UpdateSeq and ViewedSeq coordinate with a viewpoint-level sequence.
	// ViewedSeq is only set on records created for the user who triggered
	// the operation.
	UpdateSeq *int64 `json:"update_seq,omitempty" dynamodbav:"update_seq"`
	ViewedSeq *int64 `json:"viewed_seq,omitempty" dynamodbav:"viewed_seq"`
}

// SetInvalidate serializes the invalidation payload onto the record.
func (n *Notification) SetInvalidate(invalidate map[string]interface{}) error {
	raw, err := json.Marshal(invalidate)
	if err != nil {
		return fmt.Errorf("encode invalidate: %w: %v", ErrEncoding, err)
	}
	s := string(raw)
	n.Invalidate = &s
	return nil
}

// GetInvalidate deserializes the invalidation payload. Returns nil when the
// record was created without one.
func (n *Notification) GetInvalidate() (map[string]interface{}, error) {
	if n.Invalidate == nil {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(*n.Invalidate), &m); err != nil {
		return nil, fmt.Errorf("decode invalidate: %w: %v", ErrEncoding, err)
	}
	return m, nil
}

package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/notify-api-nosql/internal/domain"
)

// DeviceLister yields the devices a user's alerts fan out to.
type DeviceLister interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
}

// Publisher delivers a raw alert message to one platform endpoint.
type Publisher interface {
	PublishEndpoint(ctx context.Context, endpointARN, message string) error
}

// Pusher fans a badge alert out to every registered device of the receiving
// user. Delivery is best-effort: the notification record is already committed
// by the time this runs.
type Pusher struct {
	devices   DeviceLister
	publisher Publisher
}

func NewPusher(devices DeviceLister, publisher Publisher) *Pusher {
	return &Pusher{devices: devices, publisher: publisher}
}

func (p *Pusher) PushBadge(ctx context.Context, n *domain.Notification) error {
	devices, err := p.devices.ListByUser(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("list devices for alert: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"name":            n.Name,
		"badge":           n.Badge,
		"notification_id": n.NotificationID,
	})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}

	var firstErr error
	for _, d := range devices {
		if d.EndpointARN == nil {
			continue
		}
		if err := p.publisher.PublishEndpoint(ctx, *d.EndpointARN, string(payload)); err != nil {
			slog.Warn("alert publish failed", "device_id", d.DeviceID, "user_id", n.UserID, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

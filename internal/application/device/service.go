package device

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/notify-api-nosql/internal/domain"
	"github.com/notify-api-nosql/internal/infrastructure/sns"
	"github.com/notify-api-nosql/internal/pkg/id"
)

// Store is the devices-table contract.
type Store interface {
	Put(ctx context.Context, d *domain.Device) error
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	Update(ctx context.Context, deviceID string, updates map[string]interface{}) error
}

type Service interface {
	Register(ctx context.Context, userID string, req domain.RegisterDeviceRequest) (*domain.Device, error)
	Update(ctx context.Context, userID, deviceID string, req domain.UpdateDeviceRequest) (*domain.Device, error)
	List(ctx context.Context, userID string) ([]domain.Device, error)
}

type service struct {
	repo   Store
	sender sns.Sender // nil when no push platform is configured
}

func NewService(repo Store, sender sns.Sender) Service {
	return &service{repo: repo, sender: sender}
}

// Register persists the device and, when a push token was supplied and SNS is
// configured, provisions a platform endpoint for it. Endpoint registration
// failures are logged but do not fail device registration.
func (s *service) Register(ctx context.Context, userID string, req domain.RegisterDeviceRequest) (*domain.Device, error) {
	now := time.Now().UTC()
	d := &domain.Device{
		DeviceID:  id.New(),
		UserID:    userID,
		Name:      req.Name,
		PushToken: req.PushToken,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.PushToken != nil && s.sender != nil {
		if arn, err := s.sender.RegisterEndpoint(ctx, *req.PushToken); err != nil {
			slog.Warn("could not register push endpoint", "device_id", d.DeviceID, "err", err)
		} else {
			d.EndpointARN = &arn
		}
	}
	if err := s.repo.Put(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Update refreshes a device's push token and/or toggles it. A rotated token
// gets a fresh platform endpoint so alerts keep reaching the device.
func (s *service) Update(ctx context.Context, userID, deviceID string, req domain.UpdateDeviceRequest) (*domain.Device, error) {
	d, err := s.repo.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, fmt.Errorf("device belongs to another user: %w", domain.ErrForbidden)
	}

	updates := map[string]interface{}{}
	if req.PushToken != nil {
		updates["push_token"] = *req.PushToken
		d.PushToken = req.PushToken
		if s.sender != nil {
			if arn, err := s.sender.RegisterEndpoint(ctx, *req.PushToken); err != nil {
				slog.Warn("could not register push endpoint", "device_id", d.DeviceID, "err", err)
			} else {
				updates["endpoint_arn"] = arn
				d.EndpointARN = &arn
			}
		}
	}
	if req.Enable != nil {
		updates["enable"] = *req.Enable
		d.Enable = *req.Enable
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("nothing to update: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, deviceID, updates); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Device, error) {
	return s.repo.ListByUser(ctx, userID)
}

package domain

import "time"

// Device is a registered client device that receives pushed badge alerts.
type Device struct {
	DeviceID    string    `json:"id" dynamodbav:"device_id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	Name        string    `json:"name" dynamodbav:"name"`
	PushToken   *string   `json:"push_token" dynamodbav:"push_token"`
	EndpointARN *string   `json:"-" dynamodbav:"endpoint_arn"`
	Enable      bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

type RegisterDeviceRequest struct {
	Name      string  `json:"name" validate:"required"`
	PushToken *string `json:"push_token"`
}

type UpdateDeviceRequest struct {
	PushToken *string `json:"push_token"`
	Enable    *bool   `json:"enable"`
}

package http

import (
	"github.com/notify-api-nosql/internal/infrastructure/dynamo"
	jwtinfra "github.com/notify-api-nosql/internal/infrastructure/jwt"
	"github.com/notify-api-nosql/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	NotificationRepo *dynamo.NotificationRepo
	DeviceRepo       *dynamo.DeviceRepo
	AlertSender      sns.Sender
	JWTProvider      *jwtinfra.Provider
}

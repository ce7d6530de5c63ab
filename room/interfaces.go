package room

//go:generate go tool mockgen -destination=./mocks/broadcaster_mock.go -package=mocks . Broadcaster

import (
	"context"

	"github.com/mtnptrsn/zon/models"
)

// Broadcaster pushes room updates and player events to connected clients.
// This is defined here to break the import cycle between room and broadcast.
// Delivery is best-effort; the service logs errors and moves on.
type Broadcaster interface {
	// BroadcastRoom publishes on room:<id>:onUpdate.
	BroadcastRoom(ctx context.Context, room *models.Room) error
	// SendEvent publishes on player:<id>:onEvent.
	SendEvent(ctx context.Context, playerID string, event models.Event) error
}

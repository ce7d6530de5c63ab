// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mtnptrsn/zon/models"
)

// RoomStore is the document store behind the lifecycle engine. Saves are
// single-document and versioned: Save succeeds only when room.Version matches
// the stored version (0 for a new room) and bumps room.Version on success.
type RoomStore interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
	FindByShortID(ctx context.Context, shortID string) (*models.Room, error)
	FindByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Room, error)
	FindByPlayer(ctx context.Context, playerID string) ([]*models.Room, error)
	Save(ctx context.Context, room *models.Room) error

	AppendPosition(ctx context.Context, pos models.PlayerPosition) error
	Positions(ctx context.Context, roomID, playerID string) ([]models.PlayerPosition, error)

	Close() error
}

// 错误定义
var (
	ErrRecordNotFound  = models.ErrRoomNotFound
	ErrVersionConflict = models.ErrVersionConflict
)

// unavailable maps a driver error to ErrStoreUnavailable, keeping the cause
// in the message.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrStoreUnavailable) {
		return err
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s timed out: %v", models.ErrStoreUnavailable, op, err)
	case errors.As(err, &netErr):
		return fmt.Errorf("%w: %s network error: %v", models.ErrStoreUnavailable, op, err)
	default:
		return fmt.Errorf("%w: %s: %v", models.ErrStoreUnavailable, op, err)
	}
}

// bounded limits a store round trip so callers never hang on the database.
func bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

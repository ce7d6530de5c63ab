// capture/capture.go
package capture

import (
	"time"

	"github.com/google/uuid"
	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
)

// Result is the outcome of a capture attempt.
type Result int

const (
	Captured Result = iota
	OutOfRange
	NotCapturable
	AlreadyOwned
	Locked
)

func (r Result) String() string {
	switch r {
	case Captured:
		return "captured"
	case OutOfRange:
		return "out_of_range"
	case NotCapturable:
		return "not_capturable"
	case AlreadyOwned:
		return "already_owned"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// Engine decides zone captures. It holds configuration only; all state lives
// in the point's capture log.
type Engine struct {
	PointHitbox float64
	HomeHitbox  float64
	ZoneLock    time.Duration
}

func NewEngine(pointHitbox, homeHitbox float64, zoneLock time.Duration) *Engine {
	return &Engine{
		PointHitbox: pointHitbox,
		HomeHitbox:  homeHitbox,
		ZoneLock:    zoneLock,
	}
}

// InRange reports whether at is inside the point's hitbox.
func (e *Engine) InRange(point *models.Point, at geo.Coordinate) bool {
	hitbox := e.PointHitbox
	if point.IsHome() {
		hitbox = e.HomeHitbox
	}
	return geo.Distance(point.Location, at) < hitbox
}

// TryCapture appends a capture for playerID when the rules allow it. The
// outcome depends only on the point's log and now, so replaying a report is
// safe.
func (e *Engine) TryCapture(point *models.Point, playerID string, at geo.Coordinate, now time.Time) Result {
	if !e.InRange(point, at) {
		return OutOfRange
	}
	if point.IsHome() {
		return NotCapturable
	}
	if last, ok := point.LastCapture(); ok {
		if last.PlayerID == playerID {
			return AlreadyOwned
		}
		if now.Sub(last.CreatedAt) < e.ZoneLock {
			return Locked
		}
	}
	point.Captures = append(point.Captures, models.Capture{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		CreatedAt: now,
	})
	return Captured
}

// Owner returns the player holding the point, if anyone.
func Owner(point *models.Point) (string, bool) {
	last, ok := point.LastCapture()
	if !ok {
		return "", false
	}
	return last.PlayerID, true
}

package state

import (
	"time"

	"github.com/mtnptrsn/zon/models"
)

// NewRoomLifecycle builds the room graph:
//
//	ARRANGING -> COUNTDOWN -> PLAYING -> FINISHED
//	ARRANGING -> CANCELLED
func NewRoomLifecycle() *Machine {
	m := NewMachine()

	m.AddTransition(models.StatusArranging, models.StatusCountdown, func(r *models.Room, _ time.Time) bool {
		return r.Map != nil && len(r.Map.Points) > 0 && !r.StartedAt.IsZero() && r.FinishedAt.After(r.StartedAt)
	})
	m.AddTransition(models.StatusArranging, models.StatusCancelled, nil)
	m.AddTransition(models.StatusCountdown, models.StatusPlaying, func(r *models.Room, now time.Time) bool {
		return !now.Before(r.StartedAt)
	})
	m.AddTransition(models.StatusPlaying, models.StatusFinished, nil)

	m.OnEnter(models.StatusCancelled, func(r *models.Room, _ time.Time) {
		r.Map = nil
	})
	m.OnEnter(models.StatusFinished, func(r *models.Room, now time.Time) {
		r.FinishedAt = now
	})
	return m
}

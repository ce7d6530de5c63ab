package state

import (
	"errors"
	"testing"
	"time"

	"github.com/mtnptrsn/zon/models"
)

func newRoom() *models.Room {
	return &models.Room{
		ID:      "room",
		Status:  models.StatusArranging,
		Players: []models.Player{{ID: "host", IsHost: true}},
	}
}

func withMap(r *models.Room, start time.Time) *models.Room {
	r.Map = &models.GameMap{
		Radius: 1000,
		Homes:  []models.Point{{ID: "home"}},
		Points: []models.Point{{ID: "p", Weight: models.IntPtr(1)}},
	}
	r.StartedAt = start
	r.FinishedAt = start.Add(time.Hour)
	return r
}

func TestMachine_AddAndUseTransition(t *testing.T) {
	m := NewMachine()
	allowed := true
	m.AddTransition(models.StatusArranging, models.StatusCountdown, func(*models.Room, time.Time) bool { return allowed })

	r := newRoom()
	allowed = false
	if err := m.ChangeState(r, models.StatusCountdown, time.Now()); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("expected ErrTransitionNotAllowed, got %v", err)
	}
	if r.Status != models.StatusArranging {
		t.Fatalf("blocked transition must not change status, got %s", r.Status)
	}

	allowed = true
	if err := m.ChangeState(r, models.StatusCountdown, time.Now()); err != nil {
		t.Fatalf("expected transition to be allowed, got %v", err)
	}
	if r.Status != models.StatusCountdown {
		t.Fatalf("expected COUNTDOWN, got %s", r.Status)
	}
}

func TestMachine_UnknownTransition(t *testing.T) {
	m := NewMachine()
	err := m.ChangeState(newRoom(), models.StatusPlaying, time.Now())
	if !errors.Is(err, models.ErrWrongPhase) {
		t.Fatalf("expected ErrWrongPhase, got %v", err)
	}
}

func TestRoomLifecycle_HappyPath(t *testing.T) {
	m := NewRoomLifecycle()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r := withMap(newRoom(), now.Add(5*time.Second))

	if err := m.ChangeState(r, models.StatusCountdown, now); err != nil {
		t.Fatalf("ARRANGING -> COUNTDOWN: %v", err)
	}
	if err := m.ChangeState(r, models.StatusPlaying, now); err == nil {
		t.Fatal("COUNTDOWN -> PLAYING must wait for startedAt")
	}
	if err := m.ChangeState(r, models.StatusPlaying, now.Add(5*time.Second)); err != nil {
		t.Fatalf("COUNTDOWN -> PLAYING: %v", err)
	}
	end := now.Add(10 * time.Minute)
	if err := m.ChangeState(r, models.StatusFinished, end); err != nil {
		t.Fatalf("PLAYING -> FINISHED: %v", err)
	}
	if !r.FinishedAt.Equal(end) {
		t.Errorf("finishedAt should be the end instant, got %v", r.FinishedAt)
	}
}

func TestRoomLifecycle_NoRevisits(t *testing.T) {
	m := NewRoomLifecycle()
	now := time.Now()
	r := withMap(newRoom(), now)
	r.Status = models.StatusFinished

	for _, to := range []models.Status{models.StatusArranging, models.StatusCountdown, models.StatusPlaying, models.StatusCancelled} {
		if err := m.ChangeState(r, to, now); !errors.Is(err, ErrTransitionNotAllowed) {
			t.Errorf("FINISHED -> %s should be rejected, got %v", to, err)
		}
	}

	r.Status = models.StatusPlaying
	if err := m.ChangeState(r, models.StatusCancelled, now); err == nil {
		t.Error("PLAYING -> CANCELLED should be rejected")
	}
}

func TestRoomLifecycle_CountdownNeedsMap(t *testing.T) {
	m := NewRoomLifecycle()
	if err := m.ChangeState(newRoom(), models.StatusCountdown, time.Now()); err == nil {
		t.Fatal("ARRANGING -> COUNTDOWN without a map should be rejected")
	}
}

func TestRoomLifecycle_CancelClearsMap(t *testing.T) {
	m := NewRoomLifecycle()
	r := newRoom()
	if err := m.ChangeState(r, models.StatusCancelled, time.Now()); err != nil {
		t.Fatalf("ARRANGING -> CANCELLED: %v", err)
	}
	if r.Map != nil {
		t.Error("cancelled room must not carry a map")
	}
}

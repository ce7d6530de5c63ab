package room

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mtnptrsn/zon/logger"
	"github.com/mtnptrsn/zon/models"
)

// WarningDue reports whether the time-remaining warning should fire now.
// Games no longer than the warning lead never get one.
func (s *Service) WarningDue(r *models.Room, now time.Time) bool {
	if r.Status != models.StatusPlaying || r.Flags.Fired(models.TimeWarning) {
		return false
	}
	lead := s.cfg.WarningLead
	if lead <= 0 || r.FinishedAt.Sub(r.StartedAt) <= lead {
		return false
	}
	remaining := r.FinishedAt.Sub(now)
	return remaining > 0 && remaining <= lead
}

// AnnounceTimeRemaining sends the warning to every player at most once per
// room. The flag is saved before anything is sent.
func (s *Service) AnnounceTimeRemaining(ctx context.Context, roomID string) (bool, error) {
	room, err := s.mutate(ctx, roomID, func(r *models.Room, now time.Time) error {
		if !s.WarningDue(r, now) {
			return errUnchanged
		}
		r.Flags.Fire(models.TimeWarning, now)
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnchanged) {
			return false, nil
		}
		return false, err
	}

	minutes := int(s.cfg.WarningLead.Round(time.Minute) / time.Minute)
	ev := models.Announcement{
		Message: fmt.Sprintf("%d minutes left", minutes),
		Sound:   "warning",
		Vibrate: true,
	}
	logger.Log.Infof("Room %s: %s", roomID, ev.Message)
	for _, p := range room.Players {
		s.notify(ctx, p.ID, ev)
	}
	return true, nil
}

type ghostCapture struct {
	point   models.Point
	capture models.Capture
}

// ReplayChallenge emits the challenge room's captures whose offset from its
// start has been reached by this room's elapsed time. Each historical capture
// is emitted once, tracked by a per-capture flag.
func (s *Service) ReplayChallenge(ctx context.Context, roomID string) (int, error) {
	current, err := s.store.FindByID(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if current.ChallengeRoomID == "" || current.Status != models.StatusPlaying {
		return 0, nil
	}
	challenge, err := s.store.FindByID(ctx, current.ChallengeRoomID)
	if err != nil {
		return 0, fmt.Errorf("load challenge room: %w", err)
	}
	if challenge.Map == nil {
		return 0, nil
	}

	var replayed []ghostCapture
	room, err := s.mutate(ctx, roomID, func(r *models.Room, now time.Time) error {
		replayed = replayed[:0]
		if r.Status != models.StatusPlaying {
			return errUnchanged
		}
		elapsed := now.Sub(r.StartedAt)
		for _, pt := range challenge.Map.Points {
			for _, c := range pt.Captures {
				if c.CreatedAt.Sub(challenge.StartedAt) > elapsed {
					continue
				}
				if r.Flags.Fire(models.GhostCapture(c.ID), now) {
					replayed = append(replayed, ghostCapture{point: pt, capture: c})
				}
			}
		}
		if len(replayed) == 0 {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errUnchanged) {
			return 0, nil
		}
		return 0, err
	}

	sort.Slice(replayed, func(i, j int) bool {
		return replayed[i].capture.CreatedAt.Before(replayed[j].capture.CreatedAt)
	})
	for _, g := range replayed {
		ev := models.CaptureEvent{
			PointID:  g.point.ID,
			PlayerID: g.capture.PlayerID,
			Weight:   g.point.Value(),
			Ghost:    true,
		}
		for _, p := range room.Players {
			s.notify(ctx, p.ID, ev)
		}
	}
	return len(replayed), nil
}

// Package ticker drives the time-based parts of every active room.
package ticker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mtnptrsn/zon/config"
	"github.com/mtnptrsn/zon/logger"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/monitor"
	"github.com/mtnptrsn/zon/room"
	"github.com/mtnptrsn/zon/timer"
)

// Ticker scans COUNTDOWN and PLAYING rooms on a fixed interval. A tick that
// is still running when the next one is due makes the next one a no-op.
type Ticker struct {
	rooms    *room.Service
	clock    timer.Clock
	interval time.Duration
	workers  int
	monitor  *monitor.Monitor

	busy atomic.Bool

	mu      sync.Mutex
	timers  *timer.TimerManager
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

type Option func(*Ticker)

func WithMonitor(m *monitor.Monitor) Option {
	return func(t *Ticker) { t.monitor = m }
}

func New(rooms *room.Service, cfg config.GameConfig, opts ...Option) *Ticker {
	t := &Ticker{
		rooms:    rooms,
		clock:    rooms.Clock(),
		interval: cfg.TickInterval,
		workers:  cfg.TickWorkers,
	}
	if t.interval <= 0 {
		t.interval = config.DefaultGame().TickInterval
	}
	if t.workers <= 0 {
		t.workers = config.DefaultGame().TickWorkers
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start registers the repeating tick. Calling it twice is a no-op.
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timers != nil || t.stopped {
		return
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.timers = timer.NewTimerManager(t.clock, min(t.interval/4, 100*time.Millisecond))
	t.timers.AddTimer(t.interval, t.interval, func() {
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			return
		}
		t.wg.Add(1)
		t.mu.Unlock()
		defer t.wg.Done()

		if err := t.Tick(ctx); err != nil {
			logger.Log.Errorf("Tick failed: %v", err)
		}
	})
	logger.Log.Infof("Ticker started, interval %s", t.interval)
}

// Stop waits for an in-flight tick to finish. Ticks are never cut short.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	timers, cancel := t.timers, t.cancel
	t.mu.Unlock()

	if timers != nil {
		timers.Stop()
	}
	t.wg.Wait()
	if cancel != nil {
		cancel()
	}
	logger.Log.Info("Ticker stopped")
}

// Tick runs one scan. Only failing to list the active rooms is returned;
// per-room failures are logged and counted.
func (t *Ticker) Tick(ctx context.Context) error {
	if !t.busy.CompareAndSwap(false, true) {
		logger.Log.Debug("previous tick still running, skipping")
		return nil
	}
	defer t.busy.Store(false)

	start := time.Now()
	defer func() { t.monitor.ObserveTick(time.Since(start)) }()

	rooms, err := t.rooms.Active(ctx)
	if err != nil {
		return fmt.Errorf("list active rooms: %w", err)
	}

	counts := make(map[string]int, len(models.ActiveStatuses))
	for _, r := range rooms {
		counts[string(r.Status)]++
	}
	t.monitor.SetRooms(counts)

	var g errgroup.Group
	g.SetLimit(t.workers)
	for _, r := range rooms {
		g.Go(func() error {
			t.process(ctx, r)
			return nil
		})
	}
	return g.Wait()
}

func (t *Ticker) process(ctx context.Context, r *models.Room) {
	defer func() {
		if p := recover(); p != nil {
			t.monitor.IncTickFailures()
			logger.Log.Errorw("tick panicked", "room", r.ID, "panic", p)
		}
	}()
	if err := t.advance(ctx, r); err != nil {
		t.monitor.IncTickFailures()
		logger.Log.Errorw("tick failed", "room", r.ID, "status", r.Status, "error", err)
	}
}

// advance does at most one thing per room and tick, in priority order.
func (t *Ticker) advance(ctx context.Context, r *models.Room) error {
	now := t.clock.Now()
	switch {
	case r.Status == models.StatusCountdown:
		if now.Before(r.StartedAt) {
			return nil
		}
		_, _, err := t.rooms.BeginPlay(ctx, r.ID)
		return err
	case !now.Before(r.FinishedAt):
		_, _, err := t.rooms.End(ctx, r.ID, "", models.EndTimeUp)
		return err
	case t.rooms.WarningDue(r, now):
		_, err := t.rooms.AnnounceTimeRemaining(ctx, r.ID)
		return err
	case r.ChallengeRoomID != "":
		_, err := t.rooms.ReplayChallenge(ctx, r.ID)
		return err
	}
	return nil
}

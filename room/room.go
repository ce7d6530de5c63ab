// room/room.go
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mtnptrsn/zon/capture"
	"github.com/mtnptrsn/zon/config"
	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/logger"
	"github.com/mtnptrsn/zon/mapgen"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/monitor"
	"github.com/mtnptrsn/zon/persistence"
	"github.com/mtnptrsn/zon/scoring"
	"github.com/mtnptrsn/zon/state"
	"github.com/mtnptrsn/zon/timer"
)

// errUnchanged tells mutate the room needs no save.
var errUnchanged = errors.New("room unchanged")

const shortIDAttempts = 5

// NewPlayer describes someone creating or joining a room. An empty ID gets a
// fresh uuid.
type NewPlayer struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Location *geo.Coordinate `json:"location,omitempty"`
}

type StartRequest struct {
	RoomID       string         `json:"roomId"`
	CallerID     string         `json:"callerId"`
	HostLocation geo.Coordinate `json:"hostLocation"`
	// Radius of the map in meters.
	Radius   float64       `json:"radius"`
	Duration time.Duration `json:"duration"`
}

// Service 负责房间的生命周期
//
// Every write loads the room, applies the change and saves it against the
// loaded version. Broadcasts only happen after the save landed.
type Service struct {
	store       persistence.RoomStore
	generator   mapgen.Generator
	broadcaster Broadcaster
	clock       timer.Clock
	cfg         config.GameConfig
	captures    *capture.Engine
	scores      *scoring.Engine
	machine     *state.Machine
	monitor     *monitor.Monitor
}

type Option func(*Service)

func WithClock(c timer.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithMonitor(m *monitor.Monitor) Option {
	return func(s *Service) { s.monitor = m }
}

func NewService(store persistence.RoomStore, generator mapgen.Generator, broadcaster Broadcaster, cfg config.GameConfig, opts ...Option) *Service {
	s := &Service{
		store:       store,
		generator:   generator,
		broadcaster: broadcaster,
		clock:       timer.RealClock(),
		cfg:         cfg,
		captures:    capture.NewEngine(cfg.PointHitbox, cfg.HomeHitbox, cfg.ZoneLock),
		scores:      scoring.NewEngine(cfg.HomeHitbox),
		machine:     state.NewRoomLifecycle(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Clock() timer.Clock { return s.clock }

// Create opens a room in ARRANGING with host as its only player. A non-empty
// challengeRoomID must name a FINISHED room.
func (s *Service) Create(ctx context.Context, host NewPlayer, challengeRoomID string) (*models.Room, error) {
	player, err := s.newPlayer(host)
	if err != nil {
		return nil, err
	}
	player.IsHost = true
	player.Color = models.Palette[0]

	if challengeRoomID != "" {
		challenge, err := s.store.FindByID(ctx, challengeRoomID)
		if errors.Is(err, models.ErrRoomNotFound) {
			return nil, fmt.Errorf("%w: challenge room %s not found", models.ErrInvalidArgument, challengeRoomID)
		}
		if err != nil {
			return nil, err
		}
		if challenge.Status != models.StatusFinished {
			return nil, fmt.Errorf("%w: challenge room %s is %s", models.ErrInvalidArgument, challengeRoomID, challenge.Status)
		}
	}

	for range shortIDAttempts {
		shortID, err := newShortID()
		if err != nil {
			return nil, err
		}
		room := &models.Room{
			ID:              uuid.NewString(),
			ShortID:         shortID,
			Status:          models.StatusArranging,
			Players:         []models.Player{player},
			CreatedAt:       s.clock.Now(),
			ChallengeRoomID: challengeRoomID,
		}
		err = s.store.Save(ctx, room)
		if errors.Is(err, models.ErrVersionConflict) {
			// short id collision
			continue
		}
		if err != nil {
			return nil, err
		}
		s.monitor.ObserveTransition(string(models.StatusArranging))
		logger.Log.Infof("Room %s (%s) created by %s", room.ID, room.ShortID, player.ID)
		return s.present(room), nil
	}
	return nil, fmt.Errorf("%w: no free short id after %d attempts", models.ErrStoreUnavailable, shortIDAttempts)
}

func (s *Service) newPlayer(p NewPlayer) (models.Player, error) {
	if p.Location != nil {
		if err := p.Location.Validate(); err != nil {
			return models.Player{}, err
		}
	}
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	player := models.Player{ID: id, Name: p.Name}
	if p.Location != nil {
		loc := *p.Location
		player.Location = &loc
	}
	return player, nil
}

// Join adds the player to an ARRANGING room found by id or short id. Joining
// twice is a no-op.
func (s *Service) Join(ctx context.Context, ref string, p NewPlayer) (*models.Room, error) {
	player, err := s.newPlayer(p)
	if err != nil {
		return nil, err
	}
	roomID, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	room, err := s.mutate(ctx, roomID, func(r *models.Room, _ time.Time) error {
		if r.Status != models.StatusArranging {
			return fmt.Errorf("%w: room is %s", models.ErrRoomNotJoinable, r.Status)
		}
		if _, ok := r.Player(player.ID); ok {
			return errUnchanged
		}
		color, ok := r.NextColor()
		if !ok {
			return fmt.Errorf("%w: room is full", models.ErrRoomNotJoinable)
		}
		joined := player
		joined.Color = color
		r.Players = append(r.Players, joined)
		return nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		return s.present(room), nil
	case err != nil:
		return nil, err
	}

	logger.Log.Infof("Player %s joined room %s", player.ID, roomID)
	s.publish(ctx, room)
	return s.present(room), nil
}

// Leave removes the player from an ARRANGING room. The host leaving cancels
// the room.
func (s *Service) Leave(ctx context.Context, roomID, playerID string) (*models.Room, error) {
	room, err := s.mutate(ctx, roomID, func(r *models.Room, now time.Time) error {
		if r.Status != models.StatusArranging {
			return fmt.Errorf("%w: cannot leave a %s room", models.ErrWrongPhase, r.Status)
		}
		if _, ok := r.Player(playerID); !ok {
			return models.ErrPlayerNotInRoom
		}
		if r.IsHost(playerID) {
			return s.machine.ChangeState(r, models.StatusCancelled, now)
		}
		r.RemovePlayer(playerID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if room.Status == models.StatusCancelled {
		s.monitor.ObserveTransition(string(models.StatusCancelled))
		logger.Log.Infof("Room %s cancelled, host %s left", roomID, playerID)
	}
	s.publish(ctx, room)
	return s.present(room), nil
}

// Start generates the map and moves the room to COUNTDOWN. The map is built
// once before any write, so a generator failure leaves the room as it was.
func (s *Service) Start(ctx context.Context, req StartRequest) (*models.Room, error) {
	if err := req.HostLocation.Validate(); err != nil {
		return nil, err
	}
	if req.Radius <= 0 || req.Duration <= 0 {
		return nil, fmt.Errorf("%w: radius %v duration %v", models.ErrInvalidArgument, req.Radius, req.Duration)
	}

	current, err := s.store.FindByID(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if err := checkStart(current, req.CallerID); err != nil {
		return nil, err
	}

	layout, err := s.buildMap(ctx, current, req)
	if err != nil {
		return nil, err
	}

	room, err := s.mutate(ctx, req.RoomID, func(r *models.Room, now time.Time) error {
		if err := checkStart(r, req.CallerID); err != nil {
			return err
		}
		r.Map = &models.GameMap{
			Radius: layout.Radius,
			Homes:  mapgen.CopyPoints(layout.Homes),
			Points: mapgen.CopyPoints(layout.Points),
		}
		r.StartedAt = now.Add(s.cfg.StartDelay)
		r.FinishedAt = r.StartedAt.Add(req.Duration)
		for i := range r.Players {
			p := &r.Players[i]
			if p.Location == nil {
				loc := req.HostLocation
				p.Location = &loc
			}
			start := *p.Location
			p.StartLocation = &start
		}
		return s.machine.ChangeState(r, models.StatusCountdown, now)
	})
	if err != nil {
		return nil, err
	}

	s.monitor.ObserveTransition(string(models.StatusCountdown))
	logger.Log.Infof("Room %s counting down, starts at %s with %d points", room.ID, room.StartedAt.Format(time.RFC3339), len(room.Map.Points))
	s.publish(ctx, room)
	return s.present(room), nil
}

func checkStart(r *models.Room, callerID string) error {
	if r.Status != models.StatusArranging {
		return fmt.Errorf("%w: cannot start a %s room", models.ErrWrongPhase, r.Status)
	}
	if !r.IsHost(callerID) {
		return models.ErrNotHost
	}
	return nil
}

// buildMap copies the challenge room's layout or asks the generator for a
// fresh one around the host.
func (s *Service) buildMap(ctx context.Context, r *models.Room, req StartRequest) (*models.GameMap, error) {
	if r.ChallengeRoomID != "" {
		challenge, err := s.store.FindByID(ctx, r.ChallengeRoomID)
		if err != nil {
			return nil, fmt.Errorf("load challenge room: %w", err)
		}
		if challenge.Map == nil || len(challenge.Map.Points) == 0 {
			return nil, fmt.Errorf("%w: challenge room %s has no map", models.ErrMapGenerationFailed, challenge.ID)
		}
		return challenge.Map, nil
	}

	genCtx := ctx
	if s.cfg.MapTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.cfg.MapTimeout)
		defer cancel()
	}
	points, err := s.generator.Generate(genCtx, []geo.Coordinate{req.HostLocation}, req.Radius)
	if err != nil {
		logger.Log.Warnf("Map generation for room %s failed: %v", r.ID, err)
		return nil, fmt.Errorf("%w: %v", models.ErrMapGenerationFailed, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: generator returned no points", models.ErrMapGenerationFailed)
	}
	return &models.GameMap{
		Radius: req.Radius,
		Homes: []models.Point{{
			ID:       uuid.NewString(),
			Location: req.HostLocation,
			Captures: []models.Capture{},
		}},
		Points: points,
	}, nil
}

// BeginPlay moves a COUNTDOWN room whose start time has passed to PLAYING.
// It reports false when the room was already PLAYING.
func (s *Service) BeginPlay(ctx context.Context, roomID string) (*models.Room, bool, error) {
	room, err := s.mutate(ctx, roomID, func(r *models.Room, now time.Time) error {
		if r.Status == models.StatusPlaying {
			return errUnchanged
		}
		return s.machine.ChangeState(r, models.StatusPlaying, now)
	})
	switch {
	case errors.Is(err, errUnchanged):
		return s.present(room), false, nil
	case err != nil:
		return nil, false, err
	}

	s.monitor.ObserveTransition(string(models.StatusPlaying))
	logger.Log.Infof("Room %s is playing", roomID)
	s.publish(ctx, room)
	return s.present(room), true, nil
}

// End finishes a PLAYING room and applies end-of-game scoring. A host request
// only penalizes players far from home, a timeout only rewards held zones.
// Ending a FINISHED room reports ended == false and no error, so the loser
// of a race between the host and the ticker sees a no-op.
func (s *Service) End(ctx context.Context, roomID, callerID string, reason models.EndReason) (room *models.Room, ended bool, err error) {
	if reason != models.EndHostRequested && reason != models.EndTimeUp {
		return nil, false, fmt.Errorf("%w: end reason %q", models.ErrInvalidArgument, reason)
	}

	var before map[string]int
	room, err = s.mutate(ctx, roomID, func(r *models.Room, now time.Time) error {
		if reason == models.EndHostRequested {
			if _, ok := r.Player(callerID); !ok {
				return models.ErrPlayerNotInRoom
			}
			if !r.IsHost(callerID) {
				return models.ErrNotHost
			}
		}
		if r.Status == models.StatusFinished {
			return errUnchanged
		}
		if r.Status != models.StatusPlaying {
			return fmt.Errorf("%w: cannot end a %s room", models.ErrWrongPhase, r.Status)
		}
		if reason == models.EndTimeUp && now.Before(r.FinishedAt) {
			return fmt.Errorf("%w: room %s has time left", models.ErrWrongPhase, r.ID)
		}

		before = make(map[string]int, len(r.Players))
		for _, p := range r.Players {
			before[p.ID] = p.Score
		}
		scoring.Apply(r, s.scores.EndOfGame(r, reason))
		return s.machine.ChangeState(r, models.StatusFinished, now)
	})
	switch {
	case errors.Is(err, errUnchanged):
		return s.present(room), false, nil
	case err != nil:
		return nil, false, err
	}

	s.monitor.ObserveTransition(string(models.StatusFinished))
	logger.Log.Infof("Room %s finished (%s)", roomID, reason)
	s.publish(ctx, room)
	for _, p := range room.Players {
		s.notify(ctx, p.ID, models.GameEnded{
			Reason:     reason,
			ScoreDelta: p.Score - before[p.ID],
			FinalScore: p.Score,
		})
	}
	return s.present(room), true, nil
}

// UpdatePosition records a position sample, moves the player and captures
// every zone in range. Captures are announced to everyone in the room.
func (s *Service) UpdatePosition(ctx context.Context, roomID, playerID string, at geo.Coordinate) (*models.Room, []models.CaptureEvent, error) {
	if err := at.Validate(); err != nil {
		return nil, nil, err
	}

	current, err := s.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkPlaying(current, playerID); err != nil {
		return nil, nil, err
	}

	if err := s.store.AppendPosition(ctx, models.PlayerPosition{
		RoomID:     roomID,
		PlayerID:   playerID,
		Coordinate: at,
		CreatedAt:  s.clock.Now(),
	}); err != nil {
		return nil, nil, err
	}

	var captured []models.CaptureEvent
	room, err := s.mutate(ctx, roomID, func(r *models.Room, now time.Time) error {
		captured = captured[:0]
		if err := checkPlaying(r, playerID); err != nil {
			return err
		}
		p, _ := r.Player(playerID)
		loc := at
		p.Location = &loc

		for i := range r.Map.Points {
			point := &r.Map.Points[i]
			if point.IsHome() {
				continue
			}
			if s.captures.TryCapture(point, playerID, at, now) != capture.Captured {
				continue
			}
			p.Score += point.Value()
			captured = append(captured, models.CaptureEvent{
				PointID:  point.ID,
				PlayerID: playerID,
				Weight:   point.Value(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.monitor.AddCaptures(len(captured))
	s.publish(ctx, room)
	for _, ev := range captured {
		logger.Log.Debugw("zone captured", "room", roomID, "point", ev.PointID, "player", playerID)
		for _, p := range room.Players {
			s.notify(ctx, p.ID, ev)
		}
	}
	return s.present(room), captured, nil
}

func checkPlaying(r *models.Room, playerID string) error {
	if r.Status != models.StatusPlaying {
		return fmt.Errorf("%w: room is %s", models.ErrWrongPhase, r.Status)
	}
	if _, ok := r.Player(playerID); !ok {
		return models.ErrPlayerNotInRoom
	}
	return nil
}

// Get returns the room by id or short id.
func (s *Service) Get(ctx context.Context, ref string) (*models.Room, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: missing room id", models.ErrInvalidArgument)
	}
	room, err := s.store.FindByID(ctx, ref)
	if errors.Is(err, models.ErrRoomNotFound) {
		room, err = s.store.FindByShortID(ctx, normalizeShortID(ref))
	}
	if err != nil {
		return nil, err
	}
	return s.present(room), nil
}

// RoomsForPlayer lists every room the player is part of, oldest first.
func (s *Service) RoomsForPlayer(ctx context.Context, playerID string) ([]*models.Room, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: missing player id", models.ErrInvalidArgument)
	}
	rooms, err := s.store.FindByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	for _, r := range rooms {
		s.present(r)
	}
	return rooms, nil
}

// Active returns the rooms the ticker drives.
func (s *Service) Active(ctx context.Context) ([]*models.Room, error) {
	return s.store.FindByStatus(ctx, models.ActiveStatuses...)
}

func (s *Service) resolve(ctx context.Context, ref string) (string, error) {
	room, err := s.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	return room.ID, nil
}

// mutate loads the room, applies fn and saves it against the loaded version.
// On a version conflict fn runs again on a fresh copy. When fn returns an
// error nothing is saved and the loaded room comes back with it.
func (s *Service) mutate(ctx context.Context, roomID string, fn func(r *models.Room, now time.Time) error) (*models.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("%w: missing room id", models.ErrInvalidArgument)
	}
	attempts := max(s.cfg.SaveRetries, 1)
	for range attempts {
		room, err := s.store.FindByID(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if err := fn(room, s.clock.Now()); err != nil {
			return room, err
		}
		if err := room.Validate(); err != nil {
			return nil, err
		}
		err = s.store.Save(ctx, room)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return nil, err
		}
		s.monitor.IncSaveConflicts()
		logger.Log.Debugw("version conflict, retrying", "room", roomID, "version", room.Version)
	}
	return nil, fmt.Errorf("%w: room %s kept conflicting after %d attempts", models.ErrStoreUnavailable, roomID, attempts)
}

// present refreshes the derived fields before a room leaves the service.
func (s *Service) present(room *models.Room) *models.Room {
	if room != nil {
		room.DeriveHomeProximity(s.cfg.HomeHitbox)
	}
	return room
}

func (s *Service) publish(ctx context.Context, room *models.Room) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.BroadcastRoom(ctx, s.present(room)); err != nil {
		logger.Log.Warnf("Broadcast of room %s failed: %v", room.ID, err)
	}
}

func (s *Service) notify(ctx context.Context, playerID string, ev models.Event) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.SendEvent(ctx, playerID, ev); err != nil {
		logger.Log.Warnf("Event %s to player %s failed: %v", ev.Kind(), playerID, err)
	}
}

package persistence

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/mtnptrsn/zon/models"
)

// MemoryStore keeps rooms in process. It clones on every read and write so
// callers can never mutate stored state without a Save.
type MemoryStore struct {
	rooms     map[string]*models.Room
	byShortID map[string]string
	positions map[string][]models.PlayerPosition // roomID -> samples
	mu        sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:     make(map[string]*models.Room),
		byShortID: make(map[string]string),
		positions: make(map[string][]models.PlayerPosition),
	}
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("find room", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return room.Clone(), nil
}

func (s *MemoryStore) FindByShortID(ctx context.Context, shortID string) (*models.Room, error) {
	s.mu.RLock()
	id, ok := s.byShortID[shortID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *MemoryStore) FindByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Room, error) {
	return s.filter(ctx, func(r *models.Room) bool {
		return slices.Contains(statuses, r.Status)
	})
}

func (s *MemoryStore) FindByPlayer(ctx context.Context, playerID string) ([]*models.Room, error) {
	return s.filter(ctx, func(r *models.Room) bool {
		_, ok := r.Player(playerID)
		return ok
	})
}

func (s *MemoryStore) filter(ctx context.Context, keep func(*models.Room) bool) ([]*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("scan rooms", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Room
	for _, r := range s.rooms {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, room *models.Room) error {
	if err := ctx.Err(); err != nil {
		return unavailable("save room", err)
	}
	if err := room.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.rooms[room.ID]
	switch {
	case !exists && room.Version != 0:
		return ErrVersionConflict
	case exists && current.Version != room.Version:
		return ErrVersionConflict
	}
	if owner, taken := s.byShortID[room.ShortID]; taken && owner != room.ID {
		return ErrVersionConflict
	}

	room.Version++
	s.rooms[room.ID] = room.Clone()
	s.byShortID[room.ShortID] = room.ID
	return nil
}

func (s *MemoryStore) AppendPosition(ctx context.Context, pos models.PlayerPosition) error {
	if err := ctx.Err(); err != nil {
		return unavailable("append position", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.RoomID] = append(s.positions[pos.RoomID], pos)
	return nil
}

func (s *MemoryStore) Positions(ctx context.Context, roomID, playerID string) ([]models.PlayerPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list positions", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PlayerPosition
	for _, p := range s.positions[roomID] {
		if playerID == "" || p.PlayerID == playerID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

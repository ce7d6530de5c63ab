package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
)

func arrangingRoom(id, shortID, hostID string, created time.Time) *models.Room {
	return &models.Room{
		ID:        id,
		ShortID:   shortID,
		Status:    models.StatusArranging,
		CreatedAt: created,
		Players: []models.Player{
			{ID: hostID, Name: hostID, Color: models.Palette[0], IsHost: true},
		},
	}
}

func TestMemoryStore_SaveBumpsVersion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	room := arrangingRoom("r1", "ABC234", "host", time.Now())
	require.NoError(t, store.Save(ctx, room))
	assert.Equal(t, int64(1), room.Version)

	room.Players = append(room.Players, models.Player{ID: "p2", Color: models.Palette[1]})
	require.NoError(t, store.Save(ctx, room))
	assert.Equal(t, int64(2), room.Version)

	loaded, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	assert.Len(t, loaded.Players, 2)
}

func TestMemoryStore_StaleSaveConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, arrangingRoom("r1", "ABC234", "host", time.Now())))

	first, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)
	second, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)

	first.Status = models.StatusCancelled
	require.NoError(t, store.Save(ctx, first))

	second.Status = models.StatusCancelled
	err = store.Save(ctx, second)
	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.Equal(t, int64(1), second.Version, "failed save must not bump the version")
}

func TestMemoryStore_NewRoomConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, arrangingRoom("r1", "ABC234", "host", time.Now())))

	// Same id saved again as new.
	err := store.Save(ctx, arrangingRoom("r1", "XYZ234", "host", time.Now()))
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Short id taken by another room.
	err = store.Save(ctx, arrangingRoom("r2", "ABC234", "host", time.Now()))
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStore_RejectsInvalidRoom(t *testing.T) {
	store := NewMemoryStore()
	room := arrangingRoom("r1", "ABC234", "host", time.Now())
	room.Status = models.StatusPlaying // no map

	err := store.Save(context.Background(), room)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	assert.Zero(t, room.Version)

	_, err = store.FindByID(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryStore_ReadsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	room := arrangingRoom("r1", "ABC234", "host", time.Now())
	require.NoError(t, store.Save(ctx, room))

	room.Players[0].Name = "mutated after save"
	loaded, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "host", loaded.Players[0].Name)

	loaded.Players[0].Score = 99
	again, err := store.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, again.Players[0].Score)
}

func TestMemoryStore_Finders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	a := arrangingRoom("a", "AAAAAA", "alice", base)
	b := arrangingRoom("b", "BBBBBB", "bob", base.Add(time.Minute))
	b.Players = append(b.Players, models.Player{ID: "alice", Color: models.Palette[1]})
	c := arrangingRoom("c", "CCCCCC", "carol", base.Add(2*time.Minute))
	c.Status = models.StatusCancelled
	for _, r := range []*models.Room{b, a, c} {
		require.NoError(t, store.Save(ctx, r))
	}

	byShort, err := store.FindByShortID(ctx, "BBBBBB")
	require.NoError(t, err)
	assert.Equal(t, "b", byShort.ID)

	_, err = store.FindByShortID(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)

	arranging, err := store.FindByStatus(ctx, models.StatusArranging)
	require.NoError(t, err)
	require.Len(t, arranging, 2)
	assert.Equal(t, "a", arranging[0].ID, "results are ordered by creation time")
	assert.Equal(t, "b", arranging[1].ID)

	active, err := store.FindByStatus(ctx, models.ActiveStatuses...)
	require.NoError(t, err)
	assert.Empty(t, active)

	aliceRooms, err := store.FindByPlayer(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceRooms, 2)
	assert.Equal(t, "a", aliceRooms[0].ID)
	assert.Equal(t, "b", aliceRooms[1].ID)
}

func TestMemoryStore_Positions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	samples := []models.PlayerPosition{
		{RoomID: "r1", PlayerID: "a", Coordinate: geo.Coordinate{Longitude: 18, Latitude: 59}, CreatedAt: base.Add(2 * time.Second)},
		{RoomID: "r1", PlayerID: "b", Coordinate: geo.Coordinate{Longitude: 18, Latitude: 59}, CreatedAt: base.Add(time.Second)},
		{RoomID: "r1", PlayerID: "a", Coordinate: geo.Coordinate{Longitude: 18, Latitude: 59}, CreatedAt: base},
		{RoomID: "r2", PlayerID: "a", Coordinate: geo.Coordinate{Longitude: 18, Latitude: 59}, CreatedAt: base},
	}
	for _, s := range samples {
		require.NoError(t, store.AppendPosition(ctx, s))
	}

	all, err := store.Positions(ctx, "r1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := store.Positions(ctx, "r1", "a")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[0].CreatedAt.Before(mine[1].CreatedAt))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().FindByID(ctx, "r1")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

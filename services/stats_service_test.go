package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/persistence"
)

func TestStatsService_PlayerStats(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	home := geo.Coordinate{Longitude: 18.0686, Latitude: 59.3293}

	room := &models.Room{
		ID:         "r1",
		ShortID:    "STATS2",
		Status:     models.StatusFinished,
		Players:    []models.Player{{ID: "alice", IsHost: true, Score: 5}, {ID: "bob"}},
		StartedAt:  start,
		FinishedAt: start.Add(time.Hour),
		Map: &models.GameMap{
			Radius: 1000,
			Points: []models.Point{
				{ID: "p1", Weight: models.IntPtr(2), Captures: []models.Capture{
					{ID: "c1", PlayerID: "alice"}, {ID: "c2", PlayerID: "bob"}, {ID: "c3", PlayerID: "alice"},
				}},
			},
		},
	}
	require.NoError(t, store.Save(ctx, room))

	// 1km north in 6 minutes, split over two legs.
	half := geo.Destination(home, 500, 0)
	full := geo.Destination(home, 1000, 0)
	for i, c := range []geo.Coordinate{home, half, full} {
		require.NoError(t, store.AppendPosition(ctx, models.PlayerPosition{
			RoomID: "r1", PlayerID: "alice", Coordinate: c, CreatedAt: start.Add(time.Duration(i) * 3 * time.Minute),
		}))
	}

	stats, err := NewStatsService(store).PlayerStats(ctx, "r1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Score)
	assert.Equal(t, 2, stats.Captures)
	assert.Equal(t, 3, stats.Samples)
	assert.InDelta(t, 1000, stats.Distance, 0.5)
	assert.Equal(t, 6*time.Minute, stats.Elapsed)
	assert.InDelta(t, 6.0, stats.Pace, 0.01)
}

func TestStatsService_NoSamples(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	require.NoError(t, store.Save(ctx, &models.Room{
		ID: "r1", ShortID: "STATS2", Status: models.StatusArranging,
		Players: []models.Player{{ID: "alice", IsHost: true}},
	}))

	svc := NewStatsService(store)
	stats, err := svc.PlayerStats(ctx, "r1", "alice")
	require.NoError(t, err)
	assert.Zero(t, stats.Distance)
	assert.Zero(t, stats.Pace)

	_, err = svc.PlayerStats(ctx, "r1", "mallory")
	assert.ErrorIs(t, err, models.ErrPlayerNotInRoom)

	_, err = svc.PlayerStats(ctx, "missing", "alice")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

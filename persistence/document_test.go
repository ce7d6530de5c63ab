package persistence

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
)

func TestDocument_RoundTripKeepsFlagsAndCaptures(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	room := &models.Room{
		ID:         "r1",
		ShortID:    "ABC234",
		Status:     models.StatusPlaying,
		CreatedAt:  start.Add(-time.Minute),
		StartedAt:  start,
		FinishedAt: start.Add(time.Hour),
		Players:    []models.Player{{ID: "host", IsHost: true}},
		Map: &models.GameMap{
			Radius: 1000,
			Homes:  []models.Point{{ID: "home", Location: geo.Coordinate{Longitude: 18, Latitude: 59}}},
			Points: []models.Point{{
				ID:       "p1",
				Location: geo.Coordinate{Longitude: 18.001, Latitude: 59},
				Weight:   models.IntPtr(2),
				Captures: []models.Capture{{ID: "c1", PlayerID: "host", CreatedAt: start}},
			}},
		},
		Version: 3,
	}
	room.Flags.Fire(models.TimeWarning, start)

	doc, err := encodeRoom(room, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), room.Version, "encoding must not touch the caller's room")

	decoded, err := decodeRoom(doc, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), decoded.Version)
	assert.True(t, decoded.Flags.Fired(models.TimeWarning))
	assert.True(t, decoded.Map.Homes[0].IsHome())
	assert.Equal(t, 2, decoded.Map.Points[0].Value())
	assert.Equal(t, "host", decoded.Map.Points[0].Captures[0].PlayerID)
}

func TestDocument_ProbeMatchesPlayerShape(t *testing.T) {
	probe, err := playerProbe("alice")
	require.NoError(t, err)

	var parsed struct {
		Players []models.Player `json:"players"`
	}
	require.NoError(t, json.Unmarshal([]byte(probe), &parsed))
	require.Len(t, parsed.Players, 1)
	assert.Equal(t, "alice", parsed.Players[0].ID)
}

func TestDocument_EncodeValidates(t *testing.T) {
	_, err := encodeRoom(&models.Room{ID: "r1", Status: models.StatusArranging}, 1)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

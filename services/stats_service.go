// services/stats_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
	"github.com/mtnptrsn/zon/persistence"
)

// PlayerStats summarizes one player's movement and captures in a room.
type PlayerStats struct {
	RoomID   string        `json:"roomId"`
	PlayerID string        `json:"playerId"`
	Score    int           `json:"score"`
	Captures int           `json:"captures"`
	Samples  int           `json:"samples"`
	Distance float64       `json:"distance"` // meters
	Elapsed  time.Duration `json:"elapsed"`
	// Pace in minutes per kilometer, zero until the player has moved.
	Pace float64 `json:"pace"`
}

type StatsService struct {
	store persistence.RoomStore
}

func NewStatsService(store persistence.RoomStore) *StatsService {
	return &StatsService{store: store}
}

// PlayerStats 根据位置历史计算玩家统计
func (s *StatsService) PlayerStats(ctx context.Context, roomID, playerID string) (*PlayerStats, error) {
	room, err := s.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	player, ok := room.Player(playerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", models.ErrPlayerNotInRoom, playerID, roomID)
	}

	positions, err := s.store.Positions(ctx, roomID, playerID)
	if err != nil {
		return nil, err
	}

	stats := &PlayerStats{
		RoomID:   roomID,
		PlayerID: playerID,
		Score:    player.Score,
		Captures: countCaptures(room, playerID),
		Samples:  len(positions),
	}
	if len(positions) == 0 {
		return stats, nil
	}

	stats.Distance = PathLength(positions)
	stats.Elapsed = positions[len(positions)-1].CreatedAt.Sub(positions[0].CreatedAt)
	if stats.Distance > 0 {
		stats.Pace = stats.Elapsed.Minutes() / (stats.Distance / 1000)
	}
	return stats, nil
}

// PathLength is the distance along consecutive samples.
func PathLength(positions []models.PlayerPosition) float64 {
	total := 0.0
	for i := 1; i < len(positions); i++ {
		total += geo.Distance(positions[i-1].Coordinate, positions[i].Coordinate)
	}
	return total
}

func countCaptures(room *models.Room, playerID string) int {
	if room.Map == nil {
		return 0
	}
	n := 0
	for _, p := range room.Map.Points {
		for _, c := range p.Captures {
			if c.PlayerID == playerID {
				n++
			}
		}
	}
	return n
}

// scoring/scoring.go
package scoring

import (
	"math"

	"github.com/mtnptrsn/zon/capture"
	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
)

// Penalty is the end-of-game deduction for a player distance meters from the
// nearest home. It is zero inside the home hitbox and never exceeds score.
func Penalty(score int, distance, radius, homeHitbox float64) int {
	if score <= 0 || distance < homeHitbox {
		return 0
	}
	if radius <= 0 {
		return score
	}
	p := int(math.Round(float64(score) * distance / radius))
	return max(0, min(score, p))
}

// Bonus scales the value of held zones by how close the player is to home.
func Bonus(held int, distance, radius float64) int {
	if held <= 0 || radius <= 0 {
		return 0
	}
	factor := math.Max(0, 1-distance/radius)
	return int(math.Round(float64(held) * factor))
}

type Engine struct {
	HomeHitbox float64
}

func NewEngine(homeHitbox float64) *Engine {
	return &Engine{HomeHitbox: homeHitbox}
}

// Penalties returns a non-positive delta per player for a host-ended game.
func (e *Engine) Penalties(room *models.Room) map[string]int {
	deltas := make(map[string]int, len(room.Players))
	for _, p := range room.Players {
		d, ok := distanceHome(room, &p)
		if !ok {
			deltas[p.ID] = 0
			continue
		}
		deltas[p.ID] = -Penalty(p.Score, d, room.Map.Radius, e.HomeHitbox)
	}
	return deltas
}

// Bonuses returns a non-negative delta per player for a game that ran out of
// time.
func (e *Engine) Bonuses(room *models.Room) map[string]int {
	held := HeldValue(room)
	deltas := make(map[string]int, len(room.Players))
	for _, p := range room.Players {
		d, ok := distanceHome(room, &p)
		if !ok {
			deltas[p.ID] = 0
			continue
		}
		deltas[p.ID] = Bonus(held[p.ID], d, room.Map.Radius)
	}
	return deltas
}

// EndOfGame picks the scoring path for reason. Host-ended games only
// penalize, timed-out games only reward.
func (e *Engine) EndOfGame(room *models.Room, reason models.EndReason) map[string]int {
	if reason == models.EndTimeUp {
		return e.Bonuses(room)
	}
	return e.Penalties(room)
}

// Apply adds deltas to the players' scores. Scores never go negative.
func Apply(room *models.Room, deltas map[string]int) {
	for i := range room.Players {
		p := &room.Players[i]
		p.Score = max(0, p.Score+deltas[p.ID])
	}
}

// HeldValue sums the weight of the zones each player currently owns.
func HeldValue(room *models.Room) map[string]int {
	held := make(map[string]int)
	if room.Map == nil {
		return held
	}
	for i := range room.Map.Points {
		pt := &room.Map.Points[i]
		if owner, ok := capture.Owner(pt); ok {
			held[owner] += pt.Value()
		}
	}
	return held
}

func distanceHome(room *models.Room, p *models.Player) (float64, bool) {
	if room.Map == nil || len(room.Map.Homes) == 0 {
		return 0, false
	}
	loc := p.Location
	if loc == nil {
		loc = p.StartLocation
	}
	if loc == nil {
		return 0, false
	}
	_, d, err := geo.NearestHome(*loc, room.Map.HomeLocations())
	return d, err == nil
}

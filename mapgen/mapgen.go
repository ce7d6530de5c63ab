// Package mapgen places capturable points around the homes of a room.
package mapgen

//go:generate go tool mockgen -destination=./mocks/generator_mock.go -package=mocks . Generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/mtnptrsn/zon/config"
	"github.com/mtnptrsn/zon/geo"
	"github.com/mtnptrsn/zon/models"
)

// Generator produces the weighted points of a map. Implementations may call
// out to slow services and must honour ctx.
type Generator interface {
	Generate(ctx context.Context, homes []geo.Coordinate, radius float64) ([]models.Point, error)
}

var ErrNoPoints = errors.New("no points generated")

// RandomGenerator scatters points uniformly over the annulus
// [MinFactor*radius, radius] around a randomly chosen home.
type RandomGenerator struct {
	points    int
	minFactor float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomGenerator(cfg config.MapGenConfig) *RandomGenerator {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	minFactor := cfg.MinFactor
	if minFactor < 0 || minFactor >= 1 {
		minFactor = 0
	}
	return &RandomGenerator{
		points:    cfg.Points,
		minFactor: minFactor,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (g *RandomGenerator) Generate(ctx context.Context, homes []geo.Coordinate, radius float64) ([]models.Point, error) {
	if len(homes) == 0 {
		return nil, fmt.Errorf("%w: no homes", models.ErrInvalidArgument)
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: radius %v", models.ErrInvalidArgument, radius)
	}
	if g.points <= 0 {
		return nil, ErrNoPoints
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	inner := g.minFactor * radius
	out := make([]models.Point, 0, g.points)
	for range g.points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		home := homes[g.rng.IntN(len(homes))]
		// sqrt keeps the density uniform over the area.
		d := math.Sqrt(g.rng.Float64()*(radius*radius-inner*inner) + inner*inner)
		bearing := g.rng.Float64() * 360
		out = append(out, models.Point{
			ID:       uuid.NewString(),
			Location: geo.Destination(home, d, bearing),
			Weight:   models.IntPtr(Weight(d, radius)),
			Captures: []models.Capture{},
		})
	}
	return out, nil
}

// Weight grows with distance from home: 1 in the inner third, 3 in the outer.
func Weight(distance, radius float64) int {
	switch {
	case distance < radius/3:
		return 1
	case distance < 2*radius/3:
		return 2
	default:
		return 3
	}
}

// CopyPoints clones a previous map's points with empty capture logs, for a
// room that replays a challenge on the same layout.
func CopyPoints(src []models.Point) []models.Point {
	out := make([]models.Point, len(src))
	for i, p := range src {
		out[i] = models.Point{ID: p.ID, Location: p.Location, Captures: []models.Capture{}}
		if p.Weight != nil {
			out[i].Weight = models.IntPtr(*p.Weight)
		}
	}
	return out
}

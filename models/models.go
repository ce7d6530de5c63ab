// models/models.go
package models

import (
	"fmt"
	"time"

	"github.com/mtnptrsn/zon/geo"
)

// Room is one game session.
type Room struct {
	ID              string    `json:"id"`
	ShortID         string    `json:"shortId"`
	Status          Status    `json:"status"`
	Players         []Player  `json:"players"`
	Map             *GameMap  `json:"map,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	StartedAt       time.Time `json:"startedAt,omitzero"`
	FinishedAt      time.Time `json:"finishedAt,omitzero"`
	Flags           Flags     `json:"flags,omitempty"`
	ChallengeRoomID string    `json:"challengeRoomId,omitempty"`

	// Version is owned by the store and bumped on every successful save.
	Version int64 `json:"version"`
}

// Player is embedded in a Room.
type Player struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Color         string          `json:"color"`
	IsHost        bool            `json:"isHost"`
	Score         int             `json:"score"`
	IsWithinHome  bool            `json:"isWithinHome"`
	Location      *geo.Coordinate `json:"location,omitempty"`
	StartLocation *geo.Coordinate `json:"startLocation,omitempty"`
}

// GameMap is generated once when the room starts.
type GameMap struct {
	Radius float64 `json:"radius"`
	Homes  []Point `json:"homes"`
	Points []Point `json:"points"`
}

// Point is a capturable zone, or a home when Weight is nil.
type Point struct {
	ID       string         `json:"id"`
	Location geo.Coordinate `json:"location"`
	Weight   *int           `json:"weight"`
	Captures []Capture      `json:"captures"`
}

type Capture struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"playerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlayerPosition is an append-only position sample.
type PlayerPosition struct {
	RoomID     string         `json:"roomId"`
	PlayerID   string         `json:"playerId"`
	Coordinate geo.Coordinate `json:"coordinate"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (p *Point) IsHome() bool { return p.Weight == nil }

// LastCapture returns the most recent capture, if any.
func (p *Point) LastCapture() (Capture, bool) {
	if len(p.Captures) == 0 {
		return Capture{}, false
	}
	return p.Captures[len(p.Captures)-1], true
}

func (p *Point) Value() int {
	if p.Weight == nil {
		return 0
	}
	return *p.Weight
}

// HomeLocations returns the coordinates of every home on the map.
func (m *GameMap) HomeLocations() []geo.Coordinate {
	out := make([]geo.Coordinate, 0, len(m.Homes))
	for _, h := range m.Homes {
		out = append(out, h.Location)
	}
	return out
}

// Host returns the hosting player.
func (r *Room) Host() (*Player, bool) {
	for i := range r.Players {
		if r.Players[i].IsHost {
			return &r.Players[i], true
		}
	}
	return nil, false
}

func (r *Room) Player(id string) (*Player, bool) {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i], true
		}
	}
	return nil, false
}

func (r *Room) IsHost(playerID string) bool {
	p, ok := r.Player(playerID)
	return ok && p.IsHost
}

// RemovePlayer drops the player keeping the order of the others.
func (r *Room) RemovePlayer(id string) bool {
	for i := range r.Players {
		if r.Players[i].ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

// DeriveHomeProximity recomputes IsWithinHome for every player. It is not
// persisted authoritatively and must be refreshed before a room leaves the
// server.
func (r *Room) DeriveHomeProximity(homeHitbox float64) {
	for i := range r.Players {
		p := &r.Players[i]
		p.IsWithinHome = false
		if r.Map == nil || p.Location == nil || len(r.Map.Homes) == 0 {
			continue
		}
		_, d, err := geo.NearestHome(*p.Location, r.Map.HomeLocations())
		p.IsWithinHome = err == nil && d < homeHitbox
	}
}

// Validate checks the structural invariants every stored room must hold.
func (r *Room) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: room id is empty", ErrInvalidArgument)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, r.Status)
	}
	if len(r.Players) == 0 {
		return fmt.Errorf("%w: room %s has no players", ErrInvalidArgument, r.ID)
	}
	hosts := 0
	seen := make(map[string]struct{}, len(r.Players))
	for _, p := range r.Players {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate player %s", ErrInvalidArgument, p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.IsHost {
			hosts++
		}
	}
	if hosts != 1 {
		return fmt.Errorf("%w: room %s has %d hosts", ErrInvalidArgument, r.ID, hosts)
	}

	needsMap := r.Status != StatusArranging && r.Status != StatusCancelled
	hasMap := r.Map != nil && len(r.Map.Points) > 0
	if needsMap != hasMap {
		return fmt.Errorf("%w: room %s in %s with map=%t", ErrInvalidArgument, r.ID, r.Status, hasMap)
	}
	if needsMap && (r.StartedAt.IsZero() || r.FinishedAt.IsZero()) {
		return fmt.Errorf("%w: room %s in %s without timestamps", ErrInvalidArgument, r.ID, r.Status)
	}
	return nil
}

// Clone returns a deep copy so stored rooms never alias caller memory.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Players = make([]Player, len(r.Players))
	for i, p := range r.Players {
		cp.Players[i] = p
		cp.Players[i].Location = cloneCoordinate(p.Location)
		cp.Players[i].StartLocation = cloneCoordinate(p.StartLocation)
	}
	if r.Map != nil {
		m := GameMap{
			Radius: r.Map.Radius,
			Homes:  clonePoints(r.Map.Homes),
			Points: clonePoints(r.Map.Points),
		}
		cp.Map = &m
	}
	cp.Flags = r.Flags.Clone()
	return &cp
}

func cloneCoordinate(c *geo.Coordinate) *geo.Coordinate {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

func clonePoints(src []Point) []Point {
	if src == nil {
		return nil
	}
	out := make([]Point, len(src))
	for i, p := range src {
		out[i] = p
		if p.Weight != nil {
			w := *p.Weight
			out[i].Weight = &w
		}
		out[i].Captures = append([]Capture(nil), p.Captures...)
	}
	return out
}

// IntPtr is a helper for building weighted points.
func IntPtr(v int) *int { return &v }

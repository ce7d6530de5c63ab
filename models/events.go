// models/events.go
package models

import "encoding/json"

type EventKind string

const (
	EventAnnouncement EventKind = "announcement"
	EventCapture      EventKind = "capture"
	EventGameEnded    EventKind = "game_ended"
)

// Event is a player-facing notification. Each kind carries only its own fields.
type Event interface {
	Kind() EventKind
}

type Announcement struct {
	Message string `json:"message"`
	Sound   string `json:"sound,omitempty"`
	Vibrate bool   `json:"vibrate"`
}

type CaptureEvent struct {
	PointID  string `json:"pointId"`
	PlayerID string `json:"playerId"`
	Weight   int    `json:"weight"`
	// Ghost is set for captures replayed from a challenge room.
	Ghost bool `json:"ghost"`
}

type EndReason string

const (
	EndHostRequested EndReason = "host"
	EndTimeUp        EndReason = "time_up"
)

type GameEnded struct {
	Reason     EndReason `json:"reason"`
	ScoreDelta int       `json:"scoreDelta"`
	FinalScore int       `json:"finalScore"`
}

func (Announcement) Kind() EventKind { return EventAnnouncement }
func (CaptureEvent) Kind() EventKind { return EventCapture }
func (GameEnded) Kind() EventKind { return EventGameEnded }

// MarshalEvent encodes e with a "type" discriminator next to its fields.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(struct {
		Type EventKind `json:"type"`
		Data Event     `json:"data"`
	}{Type: e.Kind(), Data: e})
}

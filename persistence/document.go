package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/mtnptrsn/zon/models"
)

// encodeRoom serializes the room as it will look after the save lands.
func encodeRoom(room *models.Room, version int64) ([]byte, error) {
	if err := room.Validate(); err != nil {
		return nil, err
	}
	cp := room.Clone()
	cp.Version = version
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", room.ID, err)
	}
	return data, nil
}

// decodeRoom trusts the version column over the document copy.
func decodeRoom(doc []byte, version int64) (*models.Room, error) {
	var room models.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return nil, fmt.Errorf("%w: decode room: %v", models.ErrStoreUnavailable, err)
	}
	room.Version = version
	return &room, nil
}

// playerProbe is the jsonb containment document matching rooms that list
// playerID among their players.
func playerProbe(playerID string) (string, error) {
	probe := map[string]any{
		"players": []map[string]string{{"id": playerID}},
	}
	data, err := json.Marshal(probe)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

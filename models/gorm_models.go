// models/gorm_models.go
package models

import (
	"time"
)

// GormRoom stores the room document next to the columns we query on.
type GormRoom struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ShortID   string    `gorm:"uniqueIndex;size:16;not null"`
	Status    string    `gorm:"index;size:16;not null"`
	Version   int64     `gorm:"not null;default:1"`
	Document  []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (GormRoom) TableName() string { return "rooms" }

// GormPlayerPosition 玩家位置记录, append-only
type GormPlayerPosition struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    string    `gorm:"index:idx_positions_room_player;size:36;not null"`
	PlayerID  string    `gorm:"index:idx_positions_room_player;size:64;not null"`
	Longitude float64   `gorm:"not null"`
	Latitude  float64   `gorm:"not null"`
	CreatedAt time.Time `gorm:"index;not null"`
}

func (GormPlayerPosition) TableName() string { return "player_positions" }

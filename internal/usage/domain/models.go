// Package domain contains persistence models for raw power readings.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Reading stores one instantaneous power sample reported by a room's meter.
// Readings are append-only.
type Reading struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	RoomID     snowflake.ID `json:"room_id" gorm:"not null;index:idx_readings_room_recorded,priority:1"`
	Watts      float64      `json:"watts" gorm:"not null"`
	RecordedAt time.Time    `json:"recorded_at" gorm:"not null;index:idx_readings_room_recorded,priority:2"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Reading) TableName() string { return "readings" }

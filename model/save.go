package model

import "time"

// SaveSlot is one numbered save file.
type SaveSlot struct {
	Slot       int       `gorm:"primaryKey;autoIncrement:false" json:"slot"`
	PlayerName string    `gorm:"size:64;not null" json:"player_name"`
	Progress   int       `gorm:"not null;default:0" json:"progress"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:milli" json:"updated_at"`
}

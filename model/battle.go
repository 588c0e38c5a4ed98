package model

import (
	"time"

	"gorm.io/datatypes"
)

// BattleRecord is the summary written when a battle ends.
type BattleRecord struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	Result     string         `gorm:"size:16;not null;index:idx_battle_result" json:"result"`
	Ticks      int64          `json:"ticks"`
	Seed       int64          `json:"seed"`
	Slot       int            `gorm:"index:idx_battle_slot" json:"slot"`
	Survivors  datatypes.JSON `json:"survivors"`
	Messages   datatypes.JSON `json:"messages"`
	DurationMs int64          `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_battle_created;autoCreateTime:milli" json:"created_at"`
}

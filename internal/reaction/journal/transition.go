package journal

import "time"

// Transition is one row of the transitions table.
type Transition struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"not null;uniqueIndex" json:"event_id"`
	Kind        string    `gorm:"not null;index" json:"kind"`
	DisplayID   string    `json:"display_id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	At          time.Time `gorm:"not null;index" json:"at"`
	// BreakSeconds is set on "ended" rows: how long the break lasted.
	BreakSeconds float64   `gorm:"not null;default:0" json:"break_seconds,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Transition) TableName() string { return "transitions" }

package models

import "time"

type VotingPeriodStatus string

const (
	VotingPeriodActive    VotingPeriodStatus = "active"
	VotingPeriodCompleted VotingPeriodStatus = "completed"
)

type VotingPhase string

const (
	VotingPhaseSelection VotingPhase = "selection"
)

// VotingPeriod is the time-boxed window for one day's memes.
// Date carries a unique index so two racing open-voting calls cannot both
// create a period; the insert, not a pre-check, is the guard.
type VotingPeriod struct {
	ID        string             `gorm:"primaryKey;type:uuid" json:"id"`
	Date      string             `gorm:"type:varchar(10);not null;uniqueIndex" json:"date"` // UTC "2006-01-02"
	StartTime time.Time          `gorm:"not null" json:"start_time"`
	EndTime   time.Time          `gorm:"not null" json:"end_time"`
	Status    VotingPeriodStatus `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	Phase     VotingPhase        `gorm:"type:varchar(16);not null;default:'selection'" json:"phase"`

	// Comma-separated meme IDs for the day (small, bounded list)
	MemeIDs string `gorm:"type:text" json:"meme_ids"`

	// Snapshot of per-meme results written at close
	ResultsJSON *string `gorm:"type:text" json:"results_json,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

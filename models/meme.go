package models

import (
	"time"

	"gorm.io/gorm"
)

// MemeType distinguishes the daily scheduled batch from ad-hoc generations
type MemeType string

const (
	MemeTypeDaily     MemeType = "daily"
	MemeTypeGenerated MemeType = "generated"
)

// MemeStatus follows the daily cycle: active → voting_active → voting_completed → archived
type MemeStatus string

const (
	MemeStatusActive           MemeStatus = "active"
	MemeStatusVotingActive     MemeStatus = "voting_active"
	MemeStatusVotingCompleted  MemeStatus = "voting_completed"
	MemeStatusArchived         MemeStatus = "archived"
)

// RarityTier is the classification produced by the rarity engine
type RarityTier string

const (
	RarityCommon    RarityTier = "common"
	RarityUncommon  RarityTier = "uncommon"
	RarityRare      RarityTier = "rare"
	RarityEpic      RarityTier = "epic"
	RarityLegendary RarityTier = "legendary"
)

// RarityMethod records which classification mode produced the tier
type RarityMethod string

const (
	RarityMethodColdStart  RarityMethod = "cold_start"
	RarityMethodPercentile RarityMethod = "percentile"
)

// Meme is a generated meme moving through the daily voting cycle.
// Vote counters and rarity fields are denormalized here for cheap reads;
// the votes table stays the source of truth.
type Meme struct {
	ID       string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title    string     `gorm:"not null" json:"title"`
	Prompt   string     `gorm:"type:text" json:"prompt"`
	ImageURL string     `gorm:"type:text" json:"image_url"`
	Type     MemeType   `gorm:"type:varchar(16);not null;default:'daily'" json:"type"`
	Status   MemeStatus `gorm:"type:varchar(24);not null;default:'active';index" json:"status"`

	GeneratedAt  time.Time  `gorm:"not null;index" json:"generated_at"`
	VotingEndsAt *time.Time `json:"voting_ends_at,omitempty"`

	// DayKey/Slot pin a daily meme to one generation slot. The unique index is
	// the batch-size guard: racing generation runs contend on the insert, not
	// on an advisory count. DayKey stays nil for non-daily memes.
	DayKey *string `gorm:"type:varchar(10);uniqueIndex:idx_memes_day_slot" json:"day_key,omitempty"`
	Slot   int     `gorm:"uniqueIndex:idx_memes_day_slot" json:"slot"`

	// Selection vote counters (yes/no on "should this win today")
	SelectionYes int `gorm:"default:0" json:"selection_yes"`
	SelectionNo  int `gorm:"default:0" json:"selection_no"`

	// Rarity classification (recomputed after every rarity vote)
	RarityAverageScore float64      `gorm:"default:0" json:"rarity_average_score"`
	RarityTotalVotes   int          `gorm:"default:0" json:"rarity_total_votes"`
	RarityTier         RarityTier   `gorm:"type:varchar(16)" json:"rarity_tier,omitempty"`
	RarityPercentile   *float64     `json:"rarity_percentile,omitempty"` // nil in cold-start mode
	RarityMethod       RarityMethod `gorm:"type:varchar(16)" json:"rarity_method,omitempty"`
	RarityCalculatedAt *time.Time   `json:"rarity_calculated_at,omitempty"`

	IsWinner bool `gorm:"default:false" json:"is_winner"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

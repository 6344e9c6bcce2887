package models

import "time"

// VoteType: selection = yes/no winner vote, rarity = 1-10 score vote
type VoteType string

const (
	VoteTypeSelection VoteType = "selection"
	VoteTypeRarity    VoteType = "rarity"
)

type VoteStatus string

const (
	VoteStatusActive VoteStatus = "active"
	VoteStatusVoid   VoteStatus = "void"
)

// Vote is immutable after creation except Status.
// The composite unique index is the duplicate-vote guard: a second vote for
// the same (user, meme, type) fails at insert instead of racing a pre-check.
type Vote struct {
	ID       string   `gorm:"primaryKey;type:uuid" json:"id"`
	MemeID   string   `gorm:"type:uuid;not null;uniqueIndex:idx_votes_user_meme_type;index" json:"meme_id"`
	UserID   string   `gorm:"not null;uniqueIndex:idx_votes_user_meme_type;index" json:"user_id"` // wallet address
	VoteType VoteType `gorm:"type:varchar(16);not null;uniqueIndex:idx_votes_user_meme_type" json:"vote_type"`

	Choice *string `gorm:"type:varchar(8)" json:"choice,omitempty"` // yes|no, selection votes only
	Score  *int    `json:"score,omitempty"`                         // 1-10, rarity votes only

	// Ticket award breakdown (rarity votes only, zero for selection)
	TicketsEarned int `gorm:"default:0" json:"tickets_earned"`
	BaseTickets   int `gorm:"default:0" json:"base_tickets"`
	StreakBonus   int `gorm:"default:0" json:"streak_bonus"`

	Status    VoteStatus `gorm:"type:varchar(8);not null;default:'active'" json:"status"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

package models

import "time"

type MintIntentStatus string

const (
	MintIntentPending MintIntentStatus = "pending_mint"
)

// MintIntent is enqueued at voting close for rare/legendary winners.
// Actual chain-side minting is another service's job; this row is only the
// hand-off record, unique per meme.
type MintIntent struct {
	ID         string           `gorm:"primaryKey;type:uuid" json:"id"`
	MemeID     string           `gorm:"type:uuid;not null;uniqueIndex" json:"meme_id"`
	RarityTier RarityTier       `gorm:"type:varchar(16);not null" json:"rarity_tier"`
	Status     MintIntentStatus `gorm:"type:varchar(16);not null;default:'pending_mint'" json:"status"`
	CreatedAt  time.Time        `json:"created_at" gorm:"autoCreateTime"`
}

package models

import "time"

type LotteryDrawStatus string

const (
	LotteryDrawPending   LotteryDrawStatus = "pending"
	LotteryDrawCompleted LotteryDrawStatus = "completed"
)

// LotteryDraw is the audit record for one weekly draw. DrawDate is unique:
// executing the same period twice fails at insert, which is the idempotency
// guarantee. A draw with no eligible tickets still completes (empty pool).
type LotteryDraw struct {
	ID       string            `gorm:"primaryKey;type:uuid" json:"id"`
	DrawDate string            `gorm:"type:varchar(10);not null;uniqueIndex" json:"draw_date"` // UTC "2006-01-02"
	Status   LotteryDrawStatus `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`

	WinnerWallet       string `gorm:"type:varchar(128)" json:"winner_wallet,omitempty"`
	TotalTicketsInPool int    `gorm:"default:0" json:"total_tickets_in_pool"`
	WinningTicket      int    `gorm:"default:0" json:"winning_ticket"` // index into the cumulative ticket range
	Forced             bool   `gorm:"default:false" json:"forced"`

	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// LotteryParticipant snapshots one wallet's ticket weight at draw time,
// enough to replay the probability distribution afterwards.
type LotteryParticipant struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	DrawID        string    `gorm:"type:uuid;not null;index" json:"draw_id"`
	WalletAddress string    `gorm:"type:varchar(128);not null" json:"wallet_address"`
	Tickets       int       `gorm:"not null" json:"tickets"`
	IsWinner      bool      `gorm:"default:false" json:"is_winner"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

package models

import "time"

// User is keyed by wallet address (signature auth happens upstream at the gateway).
// WeeklyTickets accumulates per rarity vote and is reset by the lottery draw;
// TotalTicketsAllTime never resets.
type User struct {
	WalletAddress string `gorm:"primaryKey;type:varchar(128)" json:"wallet_address"`

	WeeklyTickets       int `gorm:"default:0" json:"weekly_tickets"`
	TotalTicketsAllTime int `gorm:"default:0" json:"total_tickets_all_time"`

	// Streak: consecutive UTC days with at least one rarity vote.
	// LastVoteDate is a UTC date string ("2006-01-02") so day arithmetic is
	// timezone-proof.
	StreakDays   int    `gorm:"default:0" json:"streak_days"`
	LastVoteDate string `gorm:"type:varchar(10)" json:"last_vote_date"`
	TotalVotes   int    `gorm:"default:0" json:"total_votes"`

	// Lottery participation. Opted-out balances carry forward across draws.
	LotteryOptIn bool `gorm:"default:true" json:"lottery_opt_in"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

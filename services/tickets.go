// services/tickets.go
package services

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"meme-vote-system/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxStreakBonus = 10

// TicketAward is the breakdown persisted onto the vote row.
type TicketAward struct {
	BaseTickets   int `json:"base_tickets"`
	StreakBonus   int `json:"streak_bonus"`
	TicketsEarned int `json:"tickets_earned"`
	StreakDays    int `json:"streak_days"`
}

// TicketService computes and applies ticket rewards per rarity vote.
// Selection votes never earn tickets.
type TicketService struct {
	DB    *gorm.DB
	Clock clockwork.Clock

	// randInt(n) returns a value in [0,n); swapped out in tests
	randInt func(n int) int
}

func NewTicketService(db *gorm.DB, clock clockwork.Clock) *TicketService {
	return &TicketService{DB: db, Clock: clock, randInt: rand.Intn}
}

// utcDate formats t as the UTC calendar date ("2006-01-02"). All streak
// arithmetic happens on these strings so local timezones can never skew a day.
func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// AwardTickets runs inside the caller's vote transaction: the user row is
// locked FOR UPDATE, streak state is advanced, and the balances are written
// in the same atomic step. The vote insert in the same tx is what makes the
// award durable or not at all.
func (s *TicketService) AwardTickets(tx *gorm.DB, walletAddress string) (*TicketAward, error) {
	now := s.Clock.Now()
	today := utcDate(now)
	yesterday := utcDate(now.AddDate(0, 0, -1))

	base := s.randInt(10) + 1 // uniform [1,10]

	lock := clause.Locking{Strength: "UPDATE"}

	var user models.User
	err := tx.Clauses(lock).
		Where("wallet_address = ?", walletAddress).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		// First vote ever. Seed a bare row with a conditional insert: when a
		// concurrent first vote wins the insert, this one locks the row it
		// left behind and takes the update path like any repeat voter.
		seed := models.User{WalletAddress: walletAddress, LotteryOptIn: true}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", walletAddress, err)
		}
		if err := tx.Clauses(lock).
			Where("wallet_address = ?", walletAddress).
			First(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to load user %s: %w", walletAddress, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", walletAddress, err)
	}

	// Streak: +1 only when the previous vote day was exactly yesterday;
	// a gap (or a fresh row with no vote date) resets to 1; a same-day
	// repeat leaves it unchanged.
	switch user.LastVoteDate {
	case yesterday:
		user.StreakDays++
	case today:
		// already voted today
	default:
		user.StreakDays = 1
	}

	bonus := user.StreakDays
	if bonus > maxStreakBonus {
		bonus = maxStreakBonus
	}

	award := &TicketAward{
		BaseTickets:   base,
		StreakBonus:   bonus,
		TicketsEarned: base + bonus,
		StreakDays:    user.StreakDays,
	}

	user.WeeklyTickets += award.TicketsEarned
	user.TotalTicketsAllTime += award.TicketsEarned
	user.LastVoteDate = today
	user.TotalVotes++

	if err := tx.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to update user %s: %w", walletAddress, err)
	}
	return award, nil
}

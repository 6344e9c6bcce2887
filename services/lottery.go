// services/lottery.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"

	"meme-vote-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResetScope controls whose weeklyTickets are zeroed after a successful draw.
type ResetScope string

const (
	ResetAllParticipants ResetScope = "all_participants"
	ResetWinnersOnly     ResetScope = "winners_only"
)

// LotteryService runs the weekly weighted draw. Win probability is
// proportional to weeklyTickets; opted-out wallets neither join the pool nor
// lose their balance.
type LotteryService struct {
	DB         *gorm.DB
	Clock      clockwork.Clock
	ResetScope ResetScope

	randInt func(n int) int
}

func NewLotteryService(db *gorm.DB, clock clockwork.Clock, resetScope ResetScope) *LotteryService {
	if resetScope != ResetWinnersOnly {
		resetScope = ResetAllParticipants
	}
	return &LotteryService{DB: db, Clock: clock, ResetScope: resetScope, randInt: rand.Intn}
}

// ExecuteDraw runs the draw for drawDate (UTC "2006-01-02"). The draw row's
// unique date index makes the operation idempotent-by-key: a second call
// finds the completed draw and refuses. force re-runs only a draw stuck in
// pending (crash recovery); a completed draw is never executed twice.
//
// Balances are snapshotted FOR UPDATE inside the same transaction, so ticket
// awards landing mid-draw cannot bias the outcome.
func (s *LotteryService) ExecuteDraw(drawDate string, force bool) (*models.LotteryDraw, error) {
	var draw models.LotteryDraw

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		draw = models.LotteryDraw{
			ID:       uuid.NewString(),
			DrawDate: drawDate,
			Status:   models.LotteryDrawPending,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "draw_date"}},
			DoNothing: true,
		}).Create(&draw)
		if res.Error != nil {
			return fmt.Errorf("failed to create draw record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var existing models.LotteryDraw
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("draw_date = ?", drawDate).
				First(&existing).Error; err != nil {
				return fmt.Errorf("failed to load existing draw: %w", err)
			}
			if existing.Status == models.LotteryDrawCompleted || !force {
				return ErrDrawAlreadyExecuted
			}
			// stuck pending draw; take it over
			existing.Forced = true
			draw = existing
		}

		// Consistent snapshot of the eligible pool
		var users []models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lottery_opt_in = ? AND weekly_tickets > 0", true).
			Order("wallet_address ASC").
			Find(&users).Error; err != nil {
			return fmt.Errorf("failed to snapshot ticket balances: %w", err)
		}

		now := s.Clock.Now().UTC()
		if len(users) == 0 {
			log.Printf("[Lottery] Empty pool for %s, completing draw with no winner", drawDate)
			draw.Status = models.LotteryDrawCompleted
			draw.ExecutedAt = &now
			return tx.Save(&draw).Error
		}

		total := 0
		for _, u := range users {
			total += u.WeeklyTickets
		}

		winning := s.randInt(total)
		winner := users[pickWeighted(users, winning)]

		for _, u := range users {
			p := models.LotteryParticipant{
				ID:            uuid.NewString(),
				DrawID:        draw.ID,
				WalletAddress: u.WalletAddress,
				Tickets:       u.WeeklyTickets,
				IsWinner:      u.WalletAddress == winner.WalletAddress,
			}
			if err := tx.Create(&p).Error; err != nil {
				return fmt.Errorf("failed to snapshot participant %s: %w", u.WalletAddress, err)
			}
		}

		draw.WinnerWallet = winner.WalletAddress
		draw.TotalTicketsInPool = total
		draw.WinningTicket = winning
		draw.Status = models.LotteryDrawCompleted
		draw.ExecutedAt = &now
		if err := tx.Save(&draw).Error; err != nil {
			return fmt.Errorf("failed to finalize draw: %w", err)
		}

		// Reset per policy; opted-out balances are untouched either way.
		switch s.ResetScope {
		case ResetWinnersOnly:
			return tx.Model(&models.User{}).
				Where("wallet_address = ?", winner.WalletAddress).
				Update("weekly_tickets", 0).Error
		default:
			wallets := make([]string, len(users))
			for i, u := range users {
				wallets[i] = u.WalletAddress
			}
			return tx.Model(&models.User{}).
				Where("wallet_address IN ?", wallets).
				Update("weekly_tickets", 0).Error
		}
	})
	if err != nil {
		return nil, err
	}

	if draw.WinnerWallet != "" {
		log.Printf("[Lottery] 🎟️ Draw %s complete: winner %s (%d of %d tickets)", drawDate, draw.WinnerWallet, draw.WinningTicket, draw.TotalTicketsInPool)
	}
	return &draw, nil
}

// pickWeighted maps a winning ticket index onto the participant owning it,
// walking cumulative weights in slice order. winning must be in [0, total).
func pickWeighted(users []models.User, winning int) int {
	cumulative := 0
	for i, u := range users {
		cumulative += u.WeeklyTickets
		if winning < cumulative {
			return i
		}
	}
	return len(users) - 1
}

// --- Fiber handlers ---

// GetDraws handles GET /lottery/draws, most recent first.
func (s *LotteryService) GetDraws(c *fiber.Ctx) error {
	var draws []models.LotteryDraw
	if err := s.DB.Order("draw_date DESC").Limit(20).Find(&draws).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch draws"})
	}
	return c.JSON(fiber.Map{"success": true, "draws": draws})
}

// GetDraw handles GET /lottery/draws/:date, one draw plus its weight snapshot.
func (s *LotteryService) GetDraw(c *fiber.Ctx) error {
	date := c.Params("date")

	var draw models.LotteryDraw
	if err := s.DB.Where("draw_date = ?", date).First(&draw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Draw not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	var participants []models.LotteryParticipant
	if err := s.DB.Where("draw_id = ?", draw.ID).Order("tickets DESC").Find(&participants).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}

	return c.JSON(fiber.Map{"success": true, "draw": draw, "participants": participants})
}

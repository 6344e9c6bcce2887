// services/votes.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"meme-vote-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

type VoteService struct {
	DB      *gorm.DB
	Tickets *TicketService
	Rarity  *RarityService
	Clock   clockwork.Clock
}

func NewVoteService(db *gorm.DB, tickets *TicketService, rarity *RarityService, clock clockwork.Clock) *VoteService {
	return &VoteService{DB: db, Tickets: tickets, Rarity: rarity, Clock: clock}
}

type SubmitVoteRequest struct {
	MemeID   string          `json:"meme_id"`
	VoteType models.VoteType `json:"vote_type"`
	Choice   string          `json:"choice,omitempty"` // yes|no for selection votes
	Score    int             `json:"score,omitempty"`  // 1-10 for rarity votes
}

// SubmitVote validates and persists a vote. The vote insert, the selection
// counter bump and the ticket award all live in one transaction, so a
// duplicate (caught by the unique index) persists nothing and awards nothing,
// and a crash can never award tickets without the vote row.
func (s *VoteService) SubmitVote(walletAddress string, req SubmitVoteRequest) (*models.Vote, error) {
	choice, score, err := validateVotePayload(req)
	if err != nil {
		return nil, err
	}

	var meme models.Meme
	if err := s.DB.First(&meme, "id = ?", req.MemeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemeNotFound
		}
		return nil, fmt.Errorf("failed to load meme %s: %w", req.MemeID, err)
	}
	if meme.Status != models.MemeStatusVotingActive {
		return nil, ErrVotingClosed
	}
	if meme.VotingEndsAt != nil && s.Clock.Now().After(*meme.VotingEndsAt) {
		return nil, ErrVotingClosed
	}

	vote := &models.Vote{
		ID:       uuid.NewString(),
		MemeID:   meme.ID,
		UserID:   walletAddress,
		VoteType: req.VoteType,
		Choice:   choice,
		Score:    score,
		Status:   models.VoteStatusActive,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(vote).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateVote
			}
			return fmt.Errorf("failed to persist vote: %w", err)
		}

		switch req.VoteType {
		case models.VoteTypeSelection:
			column := "selection_no"
			if *choice == "yes" {
				column = "selection_yes"
			}
			if err := tx.Model(&models.Meme{}).
				Where("id = ?", meme.ID).
				UpdateColumn(column, gorm.Expr(column+" + 1")).Error; err != nil {
				return fmt.Errorf("failed to bump selection counter: %w", err)
			}

		case models.VoteTypeRarity:
			award, err := s.Tickets.AwardTickets(tx, walletAddress)
			if err != nil {
				return err
			}
			vote.TicketsEarned = award.TicketsEarned
			vote.BaseTickets = award.BaseTickets
			vote.StreakBonus = award.StreakBonus
			if err := tx.Model(&models.Vote{}).
				Where("id = ?", vote.ID).
				Updates(map[string]interface{}{
					"tickets_earned": award.TicketsEarned,
					"base_tickets":   award.BaseTickets,
					"streak_bonus":   award.StreakBonus,
				}).Error; err != nil {
				return fmt.Errorf("failed to record ticket award: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The vote is durable; a failed recompute here is repaired later.
	if req.VoteType == models.VoteTypeRarity {
		s.Rarity.RecomputeAfterVote(meme.ID)
	}
	return vote, nil
}

func validateVotePayload(req SubmitVoteRequest) (*string, *int, error) {
	if req.MemeID == "" {
		return nil, nil, ErrInvalidVote
	}
	switch req.VoteType {
	case models.VoteTypeSelection:
		choice := strings.ToLower(req.Choice)
		if choice != "yes" && choice != "no" {
			return nil, nil, ErrInvalidVote
		}
		return &choice, nil, nil
	case models.VoteTypeRarity:
		if req.Score < 1 || req.Score > 10 {
			return nil, nil, ErrInvalidVote
		}
		score := req.Score
		return nil, &score, nil
	default:
		return nil, nil, ErrInvalidVote
	}
}

// --- Fiber handlers ---

// SubmitVoteHandler handles POST /votes. Wallet identity comes from the
// gateway headers set by middleware.
func (s *VoteService) SubmitVoteHandler(c *fiber.Ctx) error {
	walletAddress := c.Locals("wallet_address").(string)

	var req SubmitVoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}

	vote, err := s.SubmitVote(walletAddress, req)
	switch {
	case errors.Is(err, ErrDuplicateVote):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "error": "You already voted on this meme"})
	case errors.Is(err, ErrMemeNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Meme not found"})
	case errors.Is(err, ErrVotingClosed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Voting is closed for this meme"})
	case errors.Is(err, ErrInvalidVote):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid vote payload"})
	case err != nil:
		log.Printf("[Votes] ❌ submit failed for %s: %v", walletAddress, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to submit vote"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "vote": vote})
}

// GetTodayMemes handles GET /memes/today: the memes in the current window.
func (s *VoteService) GetTodayMemes(c *fiber.Ctx) error {
	today := utcDate(s.Clock.Now())

	var memes []models.Meme
	if err := s.DB.
		Where("day_key = ?", today).
		Order("slot ASC").
		Find(&memes).Error; err != nil {
		log.Printf("[Votes] DB error fetching today's memes: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch memes"})
	}
	return c.JSON(fiber.Map{"success": true, "memes": memes})
}

// GetMeme handles GET /memes/:id.
func (s *VoteService) GetMeme(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid meme ID"})
	}

	var meme models.Meme
	if err := s.DB.First(&meme, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Meme not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	return c.JSON(fiber.Map{"success": true, "meme": meme})
}

// GetUserStatus handles GET /users/me: ticket balance and streak state.
func (s *VoteService) GetUserStatus(c *fiber.Ctx) error {
	walletAddress := c.Locals("wallet_address").(string)

	var user models.User
	if err := s.DB.First(&user, "wallet_address = ?", walletAddress).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Not an error: the user simply hasn't voted yet
			return c.JSON(fiber.Map{"success": true, "user": models.User{WalletAddress: walletAddress, LotteryOptIn: true}})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "DB error"})
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

// SetLotteryOptIn handles PUT /users/me/lottery-opt.
func (s *VoteService) SetLotteryOptIn(c *fiber.Ctx) error {
	walletAddress := c.Locals("wallet_address").(string)

	var req struct {
		OptIn *bool `json:"opt_in"`
	}
	if err := c.BodyParser(&req); err != nil || req.OptIn == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "opt_in is required"})
	}

	result := s.DB.Model(&models.User{}).
		Where("wallet_address = ?", walletAddress).
		Update("lottery_opt_in", *req.OptIn)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to update opt-in"})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "No ticket balance yet, vote first"})
	}
	return c.JSON(fiber.Map{"success": true, "opt_in": *req.OptIn})
}

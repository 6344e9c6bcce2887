// services/orchestrator.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"meme-vote-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImageUploader pushes generated image bytes to object storage and returns
// the public URL. Production wiring is utils.UploadImageToR2.
type ImageUploader func(data []byte, key, contentType string) (string, error)

// PhaseResult is what every orchestrator phase reports back to the scheduler.
type PhaseResult struct {
	Task          string `json:"task"`
	Skipped       bool   `json:"skipped"`
	AlreadyExists bool   `json:"already_exists"`
	Message       string `json:"message"`
}

// Orchestrator sequences the daily cycle:
// generate → open voting → close voting/score → (weekly) draw → cleanup.
// Every phase is idempotent against persisted state so a manual re-trigger
// after a failure is always safe.
type Orchestrator struct {
	DB       *gorm.DB
	Provider ContentProvider
	Upload   ImageUploader
	Rarity   *RarityService
	Clock    clockwork.Clock

	MemeCount       int           // memes generated per day
	GenerationDelay time.Duration // courtesy pause between provider calls
	VotingWindow    time.Duration
	RetentionDays   int // voting_completed memes older than this get archived
}

func NewOrchestrator(db *gorm.DB, provider ContentProvider, upload ImageUploader, rarity *RarityService, clock clockwork.Clock) *Orchestrator {
	return &Orchestrator{
		DB:              db,
		Provider:        provider,
		Upload:          upload,
		Rarity:          rarity,
		Clock:           clock,
		MemeCount:       3,
		GenerationDelay: 2 * time.Second,
		VotingWindow:    12 * time.Hour,
		RetentionDays:   7,
	}
}

// GenerateDailyMemes creates the day's batch. Every meme claims one of the
// day's slots under the (day_key, slot) unique index, so two racing triggers
// contend on the insert itself and a day can never exceed MemeCount: the
// losing insert observes zero rows written and moves on. A partial batch from
// an earlier failed run is topped up slot by slot.
func (o *Orchestrator) GenerateDailyMemes(ctx context.Context, date time.Time) (*PhaseResult, error) {
	dateStr := utcDate(date)

	var taken []int
	err := o.DB.Model(&models.Meme{}).
		Where("type = ? AND day_key = ?", models.MemeTypeDaily, dateStr).
		Pluck("slot", &taken).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan existing slots: %w", err)
	}
	if len(taken) >= o.MemeCount {
		log.Printf("[Orchestrator] %d memes already exist for %s, skipping generation", len(taken), dateStr)
		return &PhaseResult{Task: TaskGenerate, AlreadyExists: true, Message: fmt.Sprintf("%d memes already exist for %s", len(taken), dateStr)}, nil
	}
	claimed := make(map[int]bool, len(taken))
	for _, s := range taken {
		claimed[s] = true
	}

	created := 0
	calls := 0
	for slot := 0; slot < o.MemeCount; slot++ {
		if claimed[slot] {
			continue
		}
		if calls > 0 {
			o.Clock.Sleep(o.GenerationDelay) // rate-limit courtesy between provider calls
		}
		calls++

		prompt := fmt.Sprintf("Daily crypto meme %d of %d for %s", slot+1, o.MemeCount, dateStr)
		concept, err := o.Provider.GenerateConcept(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("concept generation failed (meme %d): %w", slot+1, err)
		}

		imageData, contentType, err := o.Provider.GenerateImage(ctx, concept.Caption)
		if err != nil {
			return nil, fmt.Errorf("image generation failed (%q): %w", concept.Title, err)
		}

		id := uuid.NewString()
		key := fmt.Sprintf("memes/%s/%s-%s%s", dateStr, slug.Make(concept.Title), id[:8], imageExt(contentType))
		imageURL, err := o.Upload(imageData, key, contentType)
		if err != nil {
			return nil, fmt.Errorf("image upload failed (%q): %w", concept.Title, err)
		}

		meme := models.Meme{
			ID:          id,
			Title:       concept.Title,
			Prompt:      concept.Caption,
			ImageURL:    imageURL,
			Type:        models.MemeTypeDaily,
			Status:      models.MemeStatusActive,
			GeneratedAt: o.Clock.Now().UTC(),
			DayKey:      &dateStr,
			Slot:        slot,
		}
		res := o.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day_key"}, {Name: "slot"}},
			DoNothing: true,
		}).Create(&meme)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to persist meme %q: %w", concept.Title, res.Error)
		}
		if res.RowsAffected == 0 {
			log.Printf("[Orchestrator] Slot %d for %s was claimed by a concurrent run, skipping", slot, dateStr)
			continue
		}
		log.Printf("[Orchestrator] ✅ Generated meme %q (%s)", concept.Title, id)
		created++
	}

	return &PhaseResult{Task: TaskGenerate, Message: fmt.Sprintf("generated %d memes for %s", created, dateStr)}, nil
}

// OpenVoting moves the day's memes into their voting window and creates the
// day's VotingPeriod. The period insert carries the date's unique index, so a
// concurrent second open observes zero rows written and backs off.
func (o *Orchestrator) OpenVoting(ctx context.Context, date time.Time) (*PhaseResult, error) {
	dateStr := utcDate(date)

	var memes []models.Meme
	err := o.DB.
		Where("type = ? AND day_key = ?", models.MemeTypeDaily, dateStr).
		Order("slot ASC").
		Find(&memes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch memes for %s: %w", dateStr, err)
	}
	if len(memes) == 0 {
		log.Printf("[Orchestrator] ⚠️ No memes to open voting for %s", dateStr)
		return &PhaseResult{Task: TaskOpenVoting, Skipped: true, Message: "no memes generated for " + dateStr}, nil
	}

	now := o.Clock.Now().UTC()
	endsAt := now.Add(o.VotingWindow)
	ids := make([]string, len(memes))
	for i, m := range memes {
		ids[i] = m.ID
	}

	period := models.VotingPeriod{
		ID:        uuid.NewString(),
		Date:      dateStr,
		StartTime: now,
		EndTime:   endsAt,
		Status:    models.VotingPeriodActive,
		Phase:     models.VotingPhaseSelection,
		MemeIDs:   strings.Join(ids, ","),
	}

	var opened bool
	err = o.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoNothing: true,
		}).Create(&period)
		if res.Error != nil {
			return fmt.Errorf("failed to create voting period: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil // a period for this date already exists
		}
		opened = true

		return tx.Model(&models.Meme{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":         models.MemeStatusVotingActive,
				"voting_ends_at": endsAt,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	if !opened {
		log.Printf("[Orchestrator] Voting period for %s already exists, skipping", dateStr)
		return &PhaseResult{Task: TaskOpenVoting, AlreadyExists: true, Message: "voting period already exists for " + dateStr}, nil
	}

	log.Printf("[Orchestrator] ✅ Voting open for %s (%d memes, closes %s)", dateStr, len(memes), endsAt.Format(time.RFC3339))
	return &PhaseResult{Task: TaskOpenVoting, Message: fmt.Sprintf("voting open for %d memes", len(memes))}, nil
}

type memeResult struct {
	MemeID       string            `json:"meme_id"`
	Title        string            `json:"title"`
	YesVotes     int               `json:"yes_votes"`
	NoVotes      int               `json:"no_votes"`
	RarityTier   models.RarityTier `json:"rarity_tier,omitempty"`
	AverageScore float64           `json:"average_score"`
	IsWinner     bool              `json:"is_winner"`
}

type periodResults struct {
	WinnerID     string            `json:"winner_id"`
	WinnerRarity models.RarityTier `json:"winner_rarity"`
	Memes        []memeResult      `json:"memes"`
}

// CloseVoting finalizes the day: tallies selection votes, resolves the winner,
// fixes the winner's rarity, enqueues a mint intent for rare/legendary and
// snapshots everything onto the period.
//
// Tie-break is deterministic and documented: highest yes count wins; on a tie
// the earliest-generated meme wins, then the lexicographically lowest ID.
func (o *Orchestrator) CloseVoting(ctx context.Context, date time.Time) (*PhaseResult, error) {
	dateStr := utcDate(date)

	var period models.VotingPeriod
	err := o.DB.Where("date = ? AND status = ?", dateStr, models.VotingPeriodActive).First(&period).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[Orchestrator] No active voting period for %s, nothing to close", dateStr)
		return &PhaseResult{Task: TaskCloseVoting, Skipped: true, Message: "no active voting period for " + dateStr}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load voting period: %w", err)
	}

	ids := strings.Split(period.MemeIDs, ",")
	var memes []models.Meme
	if err := o.DB.Where("id IN ?", ids).Find(&memes).Error; err != nil {
		return nil, fmt.Errorf("failed to load period memes: %w", err)
	}
	if len(memes) == 0 {
		return nil, fmt.Errorf("voting period %s references no memes", period.ID)
	}

	// Tally from the votes table; the counters on memes are a cache.
	type tally struct {
		MemeID string
		Choice string
		N      int
	}
	var tallies []tally
	err = o.DB.Model(&models.Vote{}).
		Select("meme_id, choice, COUNT(*) as n").
		Where("meme_id IN ? AND vote_type = ? AND status = ?", ids, models.VoteTypeSelection, models.VoteStatusActive).
		Group("meme_id, choice").
		Scan(&tallies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to tally selection votes: %w", err)
	}

	yes := map[string]int{}
	no := map[string]int{}
	for _, t := range tallies {
		if t.Choice == "yes" {
			yes[t.MemeID] = t.N
		} else {
			no[t.MemeID] = t.N
		}
	}

	sort.Slice(memes, func(i, j int) bool {
		yi, yj := yes[memes[i].ID], yes[memes[j].ID]
		if yi != yj {
			return yi > yj
		}
		if !memes[i].GeneratedAt.Equal(memes[j].GeneratedAt) {
			return memes[i].GeneratedAt.Before(memes[j].GeneratedAt)
		}
		return memes[i].ID < memes[j].ID
	})
	winner := memes[0]

	// Final rarity for the winner: refresh from its rarity votes; a meme that
	// never got a rarity vote is common.
	winnerRarity := models.RarityCommon
	if err := o.Rarity.RecomputeMemeRarity(winner.ID); err != nil {
		log.Printf("[Orchestrator] ⚠️ final rarity recompute failed for winner %s: %v", winner.ID, err)
	}
	var refreshed models.Meme
	if err := o.DB.First(&refreshed, "id = ?", winner.ID).Error; err == nil && refreshed.RarityTier != "" {
		winnerRarity = refreshed.RarityTier
		winner = refreshed
	}

	results := periodResults{WinnerID: winner.ID, WinnerRarity: winnerRarity}
	for _, m := range memes {
		results.Memes = append(results.Memes, memeResult{
			MemeID:       m.ID,
			Title:        m.Title,
			YesVotes:     yes[m.ID],
			NoVotes:      no[m.ID],
			RarityTier:   m.RarityTier,
			AverageScore: m.RarityAverageScore,
			IsWinner:     m.ID == winner.ID,
		})
	}
	snapshot, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results snapshot: %w", err)
	}
	snapshotStr := string(snapshot)

	err = o.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Meme{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":    models.MemeStatusVotingCompleted,
				"is_winner": false,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Meme{}).
			Where("id = ?", winner.ID).
			Update("is_winner", true).Error; err != nil {
			return err
		}

		if winnerRarity == models.RarityRare || winnerRarity == models.RarityLegendary {
			intent := models.MintIntent{
				ID:         uuid.NewString(),
				MemeID:     winner.ID,
				RarityTier: winnerRarity,
				Status:     models.MintIntentPending,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "meme_id"}},
				DoNothing: true,
			}).Create(&intent).Error; err != nil {
				return fmt.Errorf("failed to enqueue mint intent: %w", err)
			}
		}

		return tx.Model(&models.VotingPeriod{}).
			Where("id = ?", period.ID).
			Updates(map[string]interface{}{
				"status":       models.VotingPeriodCompleted,
				"results_json": snapshotStr,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to close voting period: %w", err)
	}

	log.Printf("[Orchestrator] 🏆 Voting closed for %s, winner %q (%s, %d yes votes)", dateStr, winner.Title, winnerRarity, yes[winner.ID])
	return &PhaseResult{Task: TaskCloseVoting, Message: fmt.Sprintf("winner %s (%s)", winner.ID, winnerRarity)}, nil
}

// Cleanup archives old completed memes and prunes aged scheduler logs.
func (o *Orchestrator) Cleanup(ctx context.Context, date time.Time) (*PhaseResult, error) {
	cutoff := o.Clock.Now().UTC().AddDate(0, 0, -o.RetentionDays)

	res := o.DB.Model(&models.Meme{}).
		Where("status = ? AND generated_at < ?", models.MemeStatusVotingCompleted, cutoff).
		Update("status", models.MemeStatusArchived)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to archive memes: %w", res.Error)
	}

	logCutoff := o.Clock.Now().UTC().AddDate(0, 0, -30)
	if err := o.DB.Where("created_at < ?", logCutoff).Delete(&models.SchedulerLog{}).Error; err != nil {
		return nil, fmt.Errorf("failed to prune scheduler logs: %w", err)
	}

	log.Printf("[Orchestrator] 🧹 Cleanup archived %d memes", res.RowsAffected)
	return &PhaseResult{Task: TaskCleanup, Message: fmt.Sprintf("archived %d memes", res.RowsAffected)}, nil
}

func imageExt(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

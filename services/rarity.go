// services/rarity.go
package services

import (
	"errors"
	"fmt"
	"log"
	"math"

	"meme-vote-system/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// coldStartMinSamples: below this many historical scored memes the engine
// falls back to fixed thresholds instead of percentiles.
const coldStartMinSamples = 30

// RarityService aggregates per-meme rarity votes into a tier.
type RarityService struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewRarityService(db *gorm.DB, clock clockwork.Clock) *RarityService {
	return &RarityService{DB: db, Clock: clock}
}

// classifyColdStart maps a 1-10 average onto fixed thresholds.
func classifyColdStart(score float64) models.RarityTier {
	switch {
	case score < 4:
		return models.RarityCommon
	case score < 5.5:
		return models.RarityUncommon
	case score < 7:
		return models.RarityRare
	case score < 8.5:
		return models.RarityEpic
	default:
		return models.RarityLegendary
	}
}

// classifyPercentile maps a 0-100 percentile onto tier ranges.
func classifyPercentile(percentile float64) models.RarityTier {
	switch {
	case percentile < 40:
		return models.RarityCommon
	case percentile < 65:
		return models.RarityUncommon
	case percentile < 85:
		return models.RarityRare
	case percentile < 95:
		return models.RarityEpic
	default:
		return models.RarityLegendary
	}
}

// ClassifyScore picks the mode from the size of the historical sample
// (scored memes other than the one being classified) and returns the tier,
// the percentile (nil in cold start) and the method used.
func (s *RarityService) ClassifyScore(db *gorm.DB, score float64, excludeMemeID string) (models.RarityTier, *float64, models.RarityMethod, error) {
	var history []float64
	err := db.Model(&models.Meme{}).
		Where("rarity_total_votes > 0 AND id <> ?", excludeMemeID).
		Pluck("rarity_average_score", &history).Error
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to load historical scores: %w", err)
	}

	if len(history) < coldStartMinSamples {
		return classifyColdStart(score), nil, models.RarityMethodColdStart, nil
	}

	below := 0
	for _, h := range history {
		if h < score {
			below++
		}
	}
	percentile := float64(below) / float64(len(history)) * 100
	return classifyPercentile(percentile), &percentile, models.RarityMethodPercentile, nil
}

// RecomputeMemeRarity rescans the meme's active rarity votes and persists the
// refreshed average, count, tier and method. A full rescan is fine at daily
// meme volume.
func (s *RarityService) RecomputeMemeRarity(memeID string) error {
	var scores []int
	err := s.DB.Model(&models.Vote{}).
		Where("meme_id = ? AND vote_type = ? AND status = ?", memeID, models.VoteTypeRarity, models.VoteStatusActive).
		Pluck("score", &scores).Error
	if err != nil {
		return fmt.Errorf("failed to load rarity votes for meme %s: %w", memeID, err)
	}
	if len(scores) == 0 {
		return nil
	}

	sum := 0
	for _, sc := range scores {
		sum += sc
	}
	avg := math.Round(float64(sum)/float64(len(scores))*10) / 10

	tier, percentile, method, err := s.ClassifyScore(s.DB, avg, memeID)
	if err != nil {
		return err
	}

	now := s.Clock.Now().UTC()
	err = s.DB.Model(&models.Meme{}).
		Where("id = ?", memeID).
		Updates(map[string]interface{}{
			"rarity_average_score": avg,
			"rarity_total_votes":   len(scores),
			"rarity_tier":          tier,
			"rarity_percentile":    percentile,
			"rarity_method":        method,
			"rarity_calculated_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to persist rarity for meme %s: %w", memeID, err)
	}
	return nil
}

// RecomputeAfterVote is the post-commit hook for rarity votes. The vote is
// already durable; a failure here is logged and left for the repair worker.
func (s *RarityService) RecomputeAfterVote(memeID string) {
	if err := s.RecomputeMemeRarity(memeID); err != nil {
		log.Printf("[Rarity] ⚠️ recompute failed for meme %s: %v", memeID, err)
	}
}

// FindStaleMemes returns meme IDs whose denormalized rarity_total_votes no
// longer matches the actual vote count (a swallowed recompute failure).
func (s *RarityService) FindStaleMemes(limit int) ([]string, error) {
	var ids []string
	err := s.DB.Raw(`
		SELECT m.id FROM memes m
		JOIN (
			SELECT meme_id, COUNT(*) AS n FROM votes
			WHERE vote_type = ? AND status = ?
			GROUP BY meme_id
		) v ON v.meme_id = m.id
		WHERE m.rarity_total_votes <> v.n AND m.deleted_at IS NULL
		LIMIT ?`,
		models.VoteTypeRarity, models.VoteStatusActive, limit).
		Scan(&ids).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return ids, nil
}

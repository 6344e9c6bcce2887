package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"meme-vote-system/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens an in-memory sqlite with the full schema. TranslateError is
// on so unique violations surface as gorm.ErrDuplicatedKey like in postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // each in-memory connection is its own database

	require.NoError(t, db.AutoMigrate(
		&models.Meme{},
		&models.Vote{},
		&models.User{},
		&models.VotingPeriod{},
		&models.LotteryDraw{},
		&models.LotteryParticipant{},
		&models.MintIntent{},
		&models.SchedulerLog{},
	))
	return db
}

// testClock starts on a fixed mid-week UTC morning.
func testClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC))
}

type stubProvider struct {
	concepts  int
	images    int
	failImage bool
}

func (p *stubProvider) GenerateConcept(ctx context.Context, prompt string) (*MemeConcept, error) {
	p.concepts++
	return &MemeConcept{
		Title:   fmt.Sprintf("Test Meme %d", p.concepts),
		Caption: fmt.Sprintf("caption %d", p.concepts),
	}, nil
}

func (p *stubProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	if p.failImage {
		return nil, "", fmt.Errorf("image provider down")
	}
	p.images++
	return []byte{0x89, 0x50, 0x4e, 0x47}, "image/png", nil
}

func stubUploader(data []byte, key, contentType string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func newTestOrchestrator(t *testing.T, db *gorm.DB, clock clockwork.Clock) (*Orchestrator, *stubProvider) {
	t.Helper()
	provider := &stubProvider{}
	orch := NewOrchestrator(db, provider, stubUploader, NewRarityService(db, clock), clock)
	orch.GenerationDelay = 0 // no inter-call pause in tests
	return orch, provider
}

func createVotingMeme(t *testing.T, db *gorm.DB, clock clockwork.Clock, id, title string) *models.Meme {
	t.Helper()
	endsAt := clock.Now().UTC().Add(12 * time.Hour)
	meme := &models.Meme{
		ID:           id,
		Title:        title,
		Type:         models.MemeTypeDaily,
		Status:       models.MemeStatusVotingActive,
		GeneratedAt:  clock.Now().UTC(),
		VotingEndsAt: &endsAt,
	}
	require.NoError(t, db.Create(meme).Error)
	return meme
}

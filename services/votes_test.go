package services

import (
	"testing"
	"time"

	"meme-vote-system/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestVoteService(t *testing.T) (*VoteService, *gorm.DB, *clockwork.FakeClock) {
	t.Helper()
	db := newTestDB(t)
	clock := testClock()
	tickets := NewTicketService(db, clock)
	tickets.randInt = func(n int) int { return 4 } // base = 5
	rarity := NewRarityService(db, clock)
	return NewVoteService(db, tickets, rarity, clock), db, clock
}

func TestSubmitSelectionVoteBumpsCounterWithoutTickets(t *testing.T) {
	svc, db, clock := newTestVoteService(t)
	meme := createVotingMeme(t, db, clock, uuid.NewString(), "Pick me")

	vote, err := svc.SubmitVote("0xvoter", SubmitVoteRequest{
		MemeID:   meme.ID,
		VoteType: models.VoteTypeSelection,
		Choice:   "yes",
	})
	require.NoError(t, err)
	require.Equal(t, 0, vote.TicketsEarned)

	var got models.Meme
	require.NoError(t, db.First(&got, "id = ?", meme.ID).Error)
	require.Equal(t, 1, got.SelectionYes)
	require.Equal(t, 0, got.SelectionNo)

	// Selection votes never create a ticket balance
	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	require.Zero(t, userCount)
}

func TestSubmitRarityVoteAwardsTicketsAndRecomputes(t *testing.T) {
	svc, db, clock := newTestVoteService(t)
	meme := createVotingMeme(t, db, clock, uuid.NewString(), "Score me")

	vote, err := svc.SubmitVote("0xvoter", SubmitVoteRequest{
		MemeID:   meme.ID,
		VoteType: models.VoteTypeRarity,
		Score:    8,
	})
	require.NoError(t, err)
	require.Equal(t, 5, vote.BaseTickets)
	require.Equal(t, 1, vote.StreakBonus)
	require.Equal(t, 6, vote.TicketsEarned)

	// Ticket fields also persisted on the row, not just in the return value
	var stored models.Vote
	require.NoError(t, db.First(&stored, "id = ?", vote.ID).Error)
	require.Equal(t, 6, stored.TicketsEarned)

	var user models.User
	require.NoError(t, db.First(&user, "wallet_address = ?", "0xvoter").Error)
	require.Equal(t, 6, user.WeeklyTickets)

	// Rarity recomputed post-commit
	var got models.Meme
	require.NoError(t, db.First(&got, "id = ?", meme.ID).Error)
	require.InDelta(t, 8, got.RarityAverageScore, 0.001)
	require.Equal(t, 1, got.RarityTotalVotes)
	require.Equal(t, models.RarityEpic, got.RarityTier)
}

func TestDuplicateVoteRejectedAtomically(t *testing.T) {
	svc, db, clock := newTestVoteService(t)
	meme := createVotingMeme(t, db, clock, uuid.NewString(), "Once only")

	req := SubmitVoteRequest{MemeID: meme.ID, VoteType: models.VoteTypeRarity, Score: 7}
	_, err := svc.SubmitVote("0xdupe", req)
	require.NoError(t, err)

	_, err = svc.SubmitVote("0xdupe", req)
	require.ErrorIs(t, err, ErrDuplicateVote)

	// Exactly one vote row, exactly one award
	var voteCount int64
	require.NoError(t, db.Model(&models.Vote{}).
		Where("user_id = ? AND meme_id = ?", "0xdupe", meme.ID).
		Count(&voteCount).Error)
	require.EqualValues(t, 1, voteCount)

	var user models.User
	require.NoError(t, db.First(&user, "wallet_address = ?", "0xdupe").Error)
	require.Equal(t, 6, user.WeeklyTickets)
	require.Equal(t, 1, user.TotalVotes)
}

func TestSameUserMayCastBothVoteTypes(t *testing.T) {
	svc, db, clock := newTestVoteService(t)
	meme := createVotingMeme(t, db, clock, uuid.NewString(), "Both types")

	_, err := svc.SubmitVote("0xboth", SubmitVoteRequest{MemeID: meme.ID, VoteType: models.VoteTypeSelection, Choice: "no"})
	require.NoError(t, err)
	_, err = svc.SubmitVote("0xboth", SubmitVoteRequest{MemeID: meme.ID, VoteType: models.VoteTypeRarity, Score: 3})
	require.NoError(t, err)

	var voteCount int64
	require.NoError(t, db.Model(&models.Vote{}).Where("user_id = ?", "0xboth").Count(&voteCount).Error)
	require.EqualValues(t, 2, voteCount)
}

func TestVoteRejectedWhenMemeNotInVoting(t *testing.T) {
	svc, db, clock := newTestVoteService(t)

	meme := models.Meme{
		ID:          uuid.NewString(),
		Title:       "Not open",
		Type:        models.MemeTypeDaily,
		Status:      models.MemeStatusActive,
		GeneratedAt: clock.Now().UTC(),
	}
	require.NoError(t, db.Create(&meme).Error)

	_, err := svc.SubmitVote("0xearly", SubmitVoteRequest{MemeID: meme.ID, VoteType: models.VoteTypeSelection, Choice: "yes"})
	require.ErrorIs(t, err, ErrVotingClosed)
}

func TestVoteRejectedAfterWindowExpires(t *testing.T) {
	svc, db, clock := newTestVoteService(t)
	meme := createVotingMeme(t, db, clock, uuid.NewString(), "Expired")

	clock.Advance(13 * time.Hour)

	_, err := svc.SubmitVote("0xlate", SubmitVoteRequest{MemeID: meme.ID, VoteType: models.VoteTypeRarity, Score: 5})
	require.ErrorIs(t, err, ErrVotingClosed)
}

func TestVoteValidation(t *testing.T) {
	svc, db, clock := newTestVoteService(t)
	meme := createVotingMeme(t, db, clock, uuid.NewString(), "Validate")

	_, err := svc.SubmitVote("0xv", SubmitVoteRequest{MemeID: meme.ID, VoteType: models.VoteTypeSelection, Choice: "maybe"})
	require.ErrorIs(t, err, ErrInvalidVote)

	_, err = svc.SubmitVote("0xv", SubmitVoteRequest{MemeID: meme.ID, VoteType: models.VoteTypeRarity, Score: 11})
	require.ErrorIs(t, err, ErrInvalidVote)

	_, err = svc.SubmitVote("0xv", SubmitVoteRequest{MemeID: meme.ID, VoteType: models.VoteTypeRarity, Score: 0})
	require.ErrorIs(t, err, ErrInvalidVote)

	_, err = svc.SubmitVote("0xv", SubmitVoteRequest{MemeID: meme.ID, VoteType: "bogus"})
	require.ErrorIs(t, err, ErrInvalidVote)

	_, err = svc.SubmitVote("0xv", SubmitVoteRequest{MemeID: uuid.NewString(), VoteType: models.VoteTypeSelection, Choice: "yes"})
	require.ErrorIs(t, err, ErrMemeNotFound)
}

package services

import (
	"math/rand"
	"testing"

	"meme-vote-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, db *gorm.DB, wallet string, tickets int, optIn bool) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		WalletAddress:       wallet,
		WeeklyTickets:       tickets,
		TotalTicketsAllTime: tickets,
		LotteryOptIn:        optIn,
		LastVoteDate:        "2026-08-26",
	}).Error)
}

func TestExecuteDrawSelectsWeightedWinner(t *testing.T) {
	db := newTestDB(t)
	svc := NewLotteryService(db, testClock(), ResetAllParticipants)
	svc.randInt = func(n int) int { return 5 } // lands on the second wallet's range [3,10)

	seedUser(t, db, "0xaaa", 3, true)
	seedUser(t, db, "0xbbb", 7, true)

	draw, err := svc.ExecuteDraw("2026-08-30", false)
	require.NoError(t, err)
	require.Equal(t, models.LotteryDrawCompleted, draw.Status)
	require.Equal(t, "0xbbb", draw.WinnerWallet)
	require.Equal(t, 10, draw.TotalTicketsInPool)
	require.Equal(t, 5, draw.WinningTicket)
	require.NotNil(t, draw.ExecutedAt)

	// participants snapshot preserves each wallet's weight
	var participants []models.LotteryParticipant
	require.NoError(t, db.Where("draw_id = ?", draw.ID).Order("wallet_address ASC").Find(&participants).Error)
	require.Len(t, participants, 2)
	require.Equal(t, 3, participants[0].Tickets)
	require.False(t, participants[0].IsWinner)
	require.Equal(t, 7, participants[1].Tickets)
	require.True(t, participants[1].IsWinner)
}

func TestExecuteDrawIdempotentPerPeriod(t *testing.T) {
	db := newTestDB(t)
	svc := NewLotteryService(db, testClock(), ResetAllParticipants)
	svc.randInt = func(n int) int { return 0 }
	seedUser(t, db, "0xaaa", 5, true)

	_, err := svc.ExecuteDraw("2026-08-30", false)
	require.NoError(t, err)

	_, err = svc.ExecuteDraw("2026-08-30", false)
	require.ErrorIs(t, err, ErrDrawAlreadyExecuted)

	var count int64
	require.NoError(t, db.Model(&models.LotteryDraw{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestForceNeverReRunsCompletedDraw(t *testing.T) {
	db := newTestDB(t)
	svc := NewLotteryService(db, testClock(), ResetAllParticipants)
	svc.randInt = func(n int) int { return 0 }
	seedUser(t, db, "0xaaa", 5, true)

	_, err := svc.ExecuteDraw("2026-08-30", false)
	require.NoError(t, err)

	_, err = svc.ExecuteDraw("2026-08-30", true)
	require.ErrorIs(t, err, ErrDrawAlreadyExecuted)
}

func TestForceRecoversStuckPendingDraw(t *testing.T) {
	db := newTestDB(t)
	clock := testClock()
	svc := NewLotteryService(db, clock, ResetAllParticipants)
	svc.randInt = func(n int) int { return 0 }
	seedUser(t, db, "0xaaa", 5, true)

	// a crashed run left the draw row pending
	require.NoError(t, db.Create(&models.LotteryDraw{
		ID:       "stuck-draw",
		DrawDate: "2026-08-30",
		Status:   models.LotteryDrawPending,
	}).Error)

	_, err := svc.ExecuteDraw("2026-08-30", false)
	require.ErrorIs(t, err, ErrDrawAlreadyExecuted)

	draw, err := svc.ExecuteDraw("2026-08-30", true)
	require.NoError(t, err)
	require.Equal(t, "stuck-draw", draw.ID)
	require.Equal(t, models.LotteryDrawCompleted, draw.Status)
	require.True(t, draw.Forced)
	require.Equal(t, "0xaaa", draw.WinnerWallet)
}

func TestOptedOutUsersExcludedAndBalanceCarried(t *testing.T) {
	db := newTestDB(t)
	svc := NewLotteryService(db, testClock(), ResetAllParticipants)
	svc.randInt = func(n int) int { return 0 }

	seedUser(t, db, "0xin", 5, true)
	seedUser(t, db, "0xout", 100, false)

	draw, err := svc.ExecuteDraw("2026-08-30", false)
	require.NoError(t, err)
	require.Equal(t, "0xin", draw.WinnerWallet)
	require.Equal(t, 5, draw.TotalTicketsInPool)

	var out models.User
	require.NoError(t, db.First(&out, "wallet_address = ?", "0xout").Error)
	require.Equal(t, 100, out.WeeklyTickets) // carried forward unchanged
}

func TestResetScopeAllParticipants(t *testing.T) {
	db := newTestDB(t)
	svc := NewLotteryService(db, testClock(), ResetAllParticipants)
	svc.randInt = func(n int) int { return 0 }

	seedUser(t, db, "0xwin", 5, true)
	seedUser(t, db, "0xlose", 3, true)

	_, err := svc.ExecuteDraw("2026-08-30", false)
	require.NoError(t, err)

	var users []models.User
	require.NoError(t, db.Where("lottery_opt_in = ?", true).Find(&users).Error)
	require.Len(t, users, 2)
	for _, u := range users {
		require.Zero(t, u.WeeklyTickets, u.WalletAddress)
		require.NotZero(t, u.TotalTicketsAllTime) // all-time totals untouched by the reset
	}
}

func TestResetScopeWinnersOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewLotteryService(db, testClock(), ResetWinnersOnly)
	svc.randInt = func(n int) int { return 0 } // first wallet in order wins

	seedUser(t, db, "0xaaa", 5, true)
	seedUser(t, db, "0xbbb", 3, true)

	draw, err := svc.ExecuteDraw("2026-08-30", false)
	require.NoError(t, err)
	require.Equal(t, "0xaaa", draw.WinnerWallet)

	var winner, loser models.User
	require.NoError(t, db.First(&winner, "wallet_address = ?", "0xaaa").Error)
	require.NoError(t, db.First(&loser, "wallet_address = ?", "0xbbb").Error)
	require.Zero(t, winner.WeeklyTickets)
	require.Equal(t, 3, loser.WeeklyTickets)
}

func TestEmptyPoolCompletesWithoutWinner(t *testing.T) {
	db := newTestDB(t)
	svc := NewLotteryService(db, testClock(), ResetAllParticipants)

	draw, err := svc.ExecuteDraw("2026-08-30", false)
	require.NoError(t, err)
	require.Equal(t, models.LotteryDrawCompleted, draw.Status)
	require.Empty(t, draw.WinnerWallet)
	require.Zero(t, draw.TotalTicketsInPool)

	// and the period still cannot run twice
	_, err = svc.ExecuteDraw("2026-08-30", false)
	require.ErrorIs(t, err, ErrDrawAlreadyExecuted)
}

func TestWeightedSelectionFrequency(t *testing.T) {
	// Weights [1,1,98]: the heavy wallet should win ≈98% of simulated draws.
	users := []models.User{
		{WalletAddress: "0xa", WeeklyTickets: 1},
		{WalletAddress: "0xb", WeeklyTickets: 1},
		{WalletAddress: "0xc", WeeklyTickets: 98},
	}

	rng := rand.New(rand.NewSource(42))
	const draws = 20000
	wins := map[string]int{}
	for i := 0; i < draws; i++ {
		idx := pickWeighted(users, rng.Intn(100))
		wins[users[idx].WalletAddress]++
	}

	heavy := float64(wins["0xc"]) / draws
	require.InDelta(t, 0.98, heavy, 0.01)
	require.Greater(t, wins["0xa"], 0)
	require.Greater(t, wins["0xb"], 0)
}

func TestPickWeightedCoversFullRange(t *testing.T) {
	users := []models.User{
		{WalletAddress: "0xa", WeeklyTickets: 3},
		{WalletAddress: "0xb", WeeklyTickets: 7},
	}
	require.Equal(t, 0, pickWeighted(users, 0))
	require.Equal(t, 0, pickWeighted(users, 2))
	require.Equal(t, 1, pickWeighted(users, 3))
	require.Equal(t, 1, pickWeighted(users, 9))
}

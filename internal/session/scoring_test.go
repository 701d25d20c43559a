package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyashhp/sim-exchange/internal/common"
	"github.com/yyashhp/sim-exchange/internal/config"
	"github.com/yyashhp/sim-exchange/internal/ledger"
)

func TestFinalScoreSettlement(t *testing.T) {
	g := config.Default().Game
	led := ledger.New()
	led.Admit("alice", "Alice", 0, map[common.Product]int64{
		"bread": 2, "veggies": 2, "cheese": 1, "meat": 1,
	})
	acct, _ := led.Account("alice")
	acct.Cash = 20 // final cash after trading

	scores := FinalScores(led, &g)
	require.Len(t, scores, 1)
	score := scores[0]

	assert.Equal(t, int64(1), score.CompleteSets)
	assert.Equal(t, int64(30), score.SetsValue)
	assert.Equal(t, int64(2+4), score.ScrapValue, "leftover bread and veggies at scrap")
	assert.Equal(t, int64(56), score.Total)
	assert.Equal(t, 1, score.Rank)
}

func TestFinalScorePnL(t *testing.T) {
	g := config.Default().Game
	led := ledger.New()
	led.Admit("alice", "Alice", 100, map[common.Product]int64{"bread": 5})

	// No trading happened: total = cash + scrap of untouched inventory,
	// so pnl is zero.
	scores := FinalScores(led, &g)
	require.Len(t, scores, 1)
	assert.Equal(t, int64(100+5*2), scores[0].Total)
	assert.Equal(t, int64(0), scores[0].PnL)
}

func TestLeaderboardRankingAndTies(t *testing.T) {
	g := config.Default().Game
	led := ledger.New()
	led.Admit("a", "A", 10, nil)
	led.Admit("b", "B", 50, nil)
	led.Admit("c", "C", 10, nil)

	scores := FinalScores(led, &g)
	require.Len(t, scores, 3)
	assert.Equal(t, "b", scores[0].ParticipantID)
	assert.Equal(t, 1, scores[0].Rank)

	// Equal totals keep admission order.
	assert.Equal(t, "a", scores[1].ParticipantID)
	assert.Equal(t, "c", scores[2].ParticipantID)
	assert.Equal(t, 2, scores[1].Rank)
	assert.Equal(t, 3, scores[2].Rank)
}

func TestLiveScoresUndervalueSets(t *testing.T) {
	g := config.Default().Game
	led := ledger.New()
	// A full set in hand counts at scrap, not at set value, while running.
	led.Admit("setter", "Setter", 0, map[common.Product]int64{
		"bread": 1, "veggies": 1, "cheese": 1, "meat": 1,
	})
	led.Admit("hoarder", "Hoarder", 0, map[common.Product]int64{"meat": 3})

	scores := LiveScores(led, &g)
	require.Len(t, scores, 2)
	assert.Equal(t, "hoarder", scores[0].ParticipantID, "scrap-rich hoarder ranks above the set holder")
	assert.Equal(t, int64(24), scores[0].EstimatedValue)
	assert.Equal(t, "setter", scores[1].ParticipantID)
	assert.Equal(t, int64(20), scores[1].EstimatedValue)
	assert.Equal(t, int64(1), scores[1].CompleteSets)
}

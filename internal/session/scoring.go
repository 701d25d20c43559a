package session

import (
	"sort"

	"github.com/yyashhp/sim-exchange/internal/config"
	"github.com/yyashhp/sim-exchange/internal/ledger"
)

// Score is one participant's final settlement: whole sets redeem at the
// set value, leftovers at scrap.
type Score struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Rank          int    `json:"rank"`
	Cash          int64  `json:"cash"`
	CompleteSets  int64  `json:"complete_sets"`
	SetsValue     int64  `json:"sets_value"`
	ScrapValue    int64  `json:"scrap_value"`
	Total         int64  `json:"total_score"`
	PnL           int64  `json:"pnl"`
}

// FinalScores settles every account and ranks them by total score
// descending. Ties keep admission order (stable sort).
func FinalScores(led *ledger.Ledger, g *config.Game) []Score {
	accounts := led.Accounts()
	scores := make([]Score, 0, len(accounts))
	for _, acct := range accounts {
		k := acct.CompleteSets(g.SetRecipe)

		var leftoverScrap int64
		for p, n := range acct.Inventory {
			leftoverScrap += (n - k*g.SetRecipe[p]) * g.ScrapValues[p]
		}

		setsValue := k * g.SetValue
		total := acct.Cash + setsValue + leftoverScrap
		scores = append(scores, Score{
			ParticipantID: acct.ID,
			Name:          acct.Name,
			Cash:          acct.Cash,
			CompleteSets:  k,
			SetsValue:     setsValue,
			ScrapValue:    leftoverScrap,
			Total:         total,
			PnL:           total - (acct.InitialCash + acct.InitialScrapValue(g.ScrapValues)),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Total > scores[j].Total
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
	return scores
}

// LiveScore is the running-game leaderboard entry. Sets are not realized
// until end, so EstimatedValue deliberately undervalues near-complete sets.
type LiveScore struct {
	ParticipantID  string `json:"participant_id"`
	Name           string `json:"name"`
	EstimatedValue int64  `json:"estimated_value"`
	CompleteSets   int64  `json:"complete_sets"`
}

// LiveScores ranks accounts by cash plus current scrap value, descending,
// admission order on ties.
func LiveScores(led *ledger.Ledger, g *config.Game) []LiveScore {
	accounts := led.Accounts()
	scores := make([]LiveScore, 0, len(accounts))
	for _, acct := range accounts {
		scores = append(scores, LiveScore{
			ParticipantID:  acct.ID,
			Name:           acct.Name,
			EstimatedValue: acct.Cash + acct.ScrapValue(g.ScrapValues),
			CompleteSets:   acct.CompleteSets(g.SetRecipe),
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].EstimatedValue > scores[j].EstimatedValue
	})
	return scores
}

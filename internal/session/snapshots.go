package session

import (
	"time"

	"github.com/yyashhp/sim-exchange/internal/book"
	"github.com/yyashhp/sim-exchange/internal/common"
)

// ConfigView is pushed once to every new observer.
type ConfigView struct {
	GameDurationSeconds int                      `json:"game_duration_seconds"`
	StartingCash        int64                    `json:"starting_cash"`
	MaxPlayers          int                      `json:"max_players"`
	Products            []common.Product         `json:"products"`
	ScrapValues         map[common.Product]int64 `json:"scrap_values"`
	SetValue            int64                    `json:"set_value"`
	SetRecipe           map[common.Product]int64 `json:"set_recipe"`
	MinOrderSize        int64                    `json:"min_order_size"`
	MaxOrderSize        int64                    `json:"max_order_size"`
	ShowOrderNames      bool                     `json:"show_order_names"`
}

// ParticipantSummary is the public slice of a participant.
type ParticipantSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionView is the lifecycle snapshot broadcast on every transition and
// participant set change.
type SessionView struct {
	ID               string               `json:"id,omitempty"`
	Status           string               `json:"status"`
	HostID           string               `json:"host_id,omitempty"`
	Participants     []ParticipantSummary `json:"participants"`
	RemainingSeconds int64                `json:"remaining_seconds"`
}

// PlayerView is the targeted private snapshot of one participant.
type PlayerView struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	Cash         int64                    `json:"cash"`
	Inventory    map[common.Product]int64 `json:"inventory"`
	CompleteSets int64                    `json:"complete_sets"`
	OpenOrders   []*common.Order          `json:"open_orders"`
}

// TimerView ticks once a second while running.
type TimerView struct {
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// BooksView snapshots every product book.
type BooksView struct {
	Books []book.DepthView `json:"books"`
}

// TradesView carries the executions of one submission.
type TradesView struct {
	Trades []*common.Trade `json:"trades"`
}

// GameEndedView carries the final ranked leaderboard.
type GameEndedView struct {
	Leaderboard []Score `json:"leaderboard"`
}

func (m *Manager) configView() ConfigView {
	g := m.cfg.Game
	return ConfigView{
		GameDurationSeconds: g.DurationSeconds,
		StartingCash:        g.StartingCash,
		MaxPlayers:          g.MaxPlayers,
		Products:            g.Products,
		ScrapValues:         g.ScrapValues,
		SetValue:            g.SetValue,
		SetRecipe:           g.SetRecipe,
		MinOrderSize:        g.MinOrderSize,
		MaxOrderSize:        g.MaxOrderSize,
		ShowOrderNames:      g.ShowOrderNames,
	}
}

func (m *Manager) sessionView() SessionView {
	if m.session == nil {
		return SessionView{Status: "none", Participants: []ParticipantSummary{}}
	}
	view := SessionView{
		ID:               m.session.UUID,
		Status:           m.session.Status.String(),
		HostID:           m.session.HostID,
		Participants:     []ParticipantSummary{},
		RemainingSeconds: int64(m.session.Remaining(time.Now()) / time.Second),
	}
	for _, pid := range m.session.Participants {
		if acct, ok := m.ledger.Account(pid); ok {
			view.Participants = append(view.Participants, ParticipantSummary{ID: acct.ID, Name: acct.Name})
		}
	}
	return view
}

func (m *Manager) playerView(pid string) (PlayerView, bool) {
	acct, ok := m.ledger.Account(pid)
	if !ok {
		return PlayerView{}, false
	}
	open := []*common.Order{}
	for oid := range acct.OpenOrders {
		if o, found := m.engine.Order(oid); found {
			open = append(open, o)
		}
	}
	return PlayerView{
		ID:           acct.ID,
		Name:         acct.Name,
		Cash:         acct.Cash,
		Inventory:    acct.InventoryCopy(),
		CompleteSets: acct.CompleteSets(m.cfg.Game.SetRecipe),
		OpenOrders:   open,
	}, true
}

func (m *Manager) booksView() BooksView {
	return BooksView{Books: m.engine.Depth()}
}

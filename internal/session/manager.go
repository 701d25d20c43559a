// Package session owns the game lifecycle: lobby admission, the running
// clock, endgame scoring, and the serialization of every command.
//
// The manager is the single writer over the engine, ledger and session.
// Each command runs to completion under one mutex — match loop, settlement
// and fan-out enqueue included — before the next begins. Fan-out and
// persistence only enqueue here; their own goroutines do the pushing.
package session

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yyashhp/sim-exchange/internal/common"
	"github.com/yyashhp/sim-exchange/internal/config"
	"github.com/yyashhp/sim-exchange/internal/engine"
	"github.com/yyashhp/sim-exchange/internal/fanout"
	"github.com/yyashhp/sim-exchange/internal/ledger"
	"github.com/yyashhp/sim-exchange/internal/metrics"
	"github.com/yyashhp/sim-exchange/internal/store"
)

var (
	ErrNoSession     = errors.New("no session")
	ErrSessionActive = errors.New("a session is already active")
	ErrNotLobby      = errors.New("session is not in lobby")
	ErrNotRunning    = errors.New("session is not running")
	ErrSessionFull   = errors.New("session is full")
	ErrNameTaken     = errors.New("name already in use")
	ErrEmptyName     = errors.New("name must not be empty")
	ErrNotHost       = errors.New("only the host can start the game")
	ErrTooFewPlayers = errors.New("need at least two players to start")
)

const leaderboardEveryTicks = 5

type Manager struct {
	mu    sync.Mutex
	cfg   *config.Config
	hub   *fanout.Hub
	store *store.Store
	rng   *rand.Rand

	ledger  *ledger.Ledger
	engine  *engine.Engine
	session *common.Session

	timer     *time.Timer
	tickStop  chan struct{}
	tickCount int
}

func New(cfg *config.Config, hub *fanout.Hub, st *store.Store) *Manager {
	return NewSeeded(cfg, hub, st, time.Now().UnixNano())
}

// NewSeeded fixes the inventory RNG seed, for deterministic tests.
func NewSeeded(cfg *config.Config, hub *fanout.Hub, st *store.Store, seed int64) *Manager {
	m := &Manager{
		cfg:   cfg,
		hub:   hub,
		store: st,
		rng:   rand.New(rand.NewSource(seed)),
	}
	m.ledger = ledger.New()
	m.engine = engine.New(&cfg.Game, m.ledger, st)
	return m
}

// Subscribe registers an observer and hands it the config snapshot plus
// the current session state.
func (m *Manager) Subscribe(observerID string) <-chan fanout.Event {
	ch := m.hub.Subscribe(observerID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hub.SendToObserver(observerID, fanout.Event{Type: fanout.EventConfig, Data: m.configView()})
	m.hub.SendToObserver(observerID, fanout.Event{Type: fanout.EventSessionState, Data: m.sessionView()})
	return ch
}

func (m *Manager) Unsubscribe(observerID string) {
	m.hub.Unsubscribe(observerID)
}

// CreateSession opens a fresh lobby. Only one session exists per server;
// an ended one is replaced, a live one blocks creation.
func (m *Manager) CreateSession(hostID string) (string, error) {
	defer m.track("create_session")()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.session.Status != common.SessionEnded {
		return "", ErrSessionActive
	}

	m.stopClockLocked()
	m.ledger = ledger.New()
	m.engine = engine.New(&m.cfg.Game, m.ledger, m.store)
	m.session = &common.Session{
		UUID:      uuid.New().String(),
		HostID:    hostID,
		Status:    common.SessionLobby,
		CreatedAt: time.Now().UTC(),
		Duration:  m.cfg.Game.Duration(),
	}
	m.tickCount = 0

	m.store.RecordSession(m.session)
	m.hub.Broadcast(fanout.Event{Type: fanout.EventSessionState, Data: m.sessionView()})
	log.Info().Str("session", m.session.UUID).Msg("session created")
	return m.session.UUID, nil
}

// Join admits a participant into the lobby, rolls their starting
// inventory, and binds the observer to the new participant id. Names are
// unique case-insensitively among currently joined participants; a name
// freed by a leave is reusable.
func (m *Manager) Join(observerID, name string) (PlayerView, error) {
	defer m.track("join")()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return PlayerView{}, ErrNoSession
	}
	if m.session.Status != common.SessionLobby {
		return PlayerView{}, ErrNotLobby
	}
	if len(m.session.Participants) >= m.cfg.Game.MaxPlayers {
		return PlayerView{}, ErrSessionFull
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return PlayerView{}, ErrEmptyName
	}
	if m.ledger.HasName(name) {
		return PlayerView{}, ErrNameTaken
	}

	pid := uuid.New().String()
	inventory := GenerateInventory(m.rng, &m.cfg.Game)
	acct := m.ledger.Admit(pid, name, m.cfg.Game.StartingCash, inventory)
	m.session.Participants = append(m.session.Participants, pid)
	if m.session.HostID == "" {
		m.session.HostID = pid
	}
	m.hub.Bind(observerID, pid)

	m.store.RecordParticipant(m.session.UUID, pid, name, acct.Cash, acct.Inventory)
	m.store.RecordEvent(m.session.UUID, "join", pid)
	m.hub.Broadcast(fanout.Event{Type: fanout.EventSessionState, Data: m.sessionView()})
	view, _ := m.playerView(pid)
	m.hub.SendTo(pid, fanout.Event{Type: fanout.EventPlayerState, Data: view})
	log.Info().Str("participant", pid).Str("name", name).Msg("participant joined")
	return view, nil
}

// Leave removes a lobby participant. While running it only sweeps the
// participant's resting orders; their holdings stay in the game and are
// scored at the end.
func (m *Manager) Leave(pid string) error {
	defer m.track("leave")()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return ErrNoSession
	}
	m.leaveLocked(pid)
	return nil
}

func (m *Manager) leaveLocked(pid string) {
	switch m.session.Status {
	case common.SessionLobby:
		m.ledger.Remove(pid)
		for i, id := range m.session.Participants {
			if id == pid {
				m.session.Participants = append(m.session.Participants[:i], m.session.Participants[i+1:]...)
				break
			}
		}
		if m.session.HostID == pid {
			m.session.HostID = ""
			if len(m.session.Participants) > 0 {
				m.session.HostID = m.session.Participants[0]
			}
		}
		m.store.RecordEvent(m.session.UUID, "leave", pid)
		m.hub.Broadcast(fanout.Event{Type: fanout.EventSessionState, Data: m.sessionView()})
	case common.SessionRunning:
		m.sweepParticipantLocked(pid)
	}
}

// Start moves the lobby into the running state, arms the single-fire game
// timer and the tick loop.
func (m *Manager) Start(pid string) error {
	defer m.track("start")()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return ErrNoSession
	}
	if m.session.Status != common.SessionLobby {
		return ErrNotLobby
	}
	if m.session.HostID != pid {
		return ErrNotHost
	}
	if len(m.session.Participants) < 2 {
		return ErrTooFewPlayers
	}

	m.session.Status = common.SessionRunning
	m.session.StartedAt = time.Now().UTC()
	m.timer = time.AfterFunc(m.session.Duration, m.onTimerFire)
	m.tickStop = make(chan struct{})
	go m.runTicker(m.tickStop)

	metrics.Get().SessionsStarted.Inc()
	m.store.RecordSession(m.session)
	m.store.RecordEvent(m.session.UUID, "start", pid)
	m.hub.Broadcast(fanout.Event{Type: fanout.EventSessionState, Data: m.sessionView()})
	m.hub.Broadcast(fanout.Event{Type: fanout.EventOrderBooks, Data: m.booksView()})
	log.Info().Str("session", m.session.UUID).Dur("duration", m.session.Duration).Msg("game started")
	return nil
}

// SubmitOrder gates a submission on session state, delegates to the
// engine, and fans out the resulting snapshots.
func (m *Manager) SubmitOrder(pid string, product common.Product, side common.Side, typ common.OrderType, qty, price int64) (*common.Order, []*common.Trade, error) {
	defer m.track("submit_order")()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, nil, ErrNoSession
	}
	if m.session.Status != common.SessionRunning {
		return nil, nil, ErrNotRunning
	}

	order, trades, err := m.engine.Submit(m.session.UUID, pid, product, side, typ, qty, price)
	if err != nil {
		metrics.Get().OrdersRejected.WithLabelValues(err.Error()).Inc()
		return nil, nil, err
	}

	metrics.Get().OrdersSubmitted.WithLabelValues(string(product), side.String()).Inc()
	for _, t := range trades {
		metrics.Get().TradesTotal.WithLabelValues(string(t.Product)).Inc()
		metrics.Get().TradeVolume.WithLabelValues(string(t.Product)).Add(float64(t.Quantity))
	}

	m.hub.Broadcast(fanout.Event{Type: fanout.EventOrderBooks, Data: m.booksView()})
	if len(trades) > 0 {
		m.hub.Broadcast(fanout.Event{Type: fanout.EventTrades, Data: TradesView{Trades: trades}})
	}
	m.pushPlayerStatesLocked(affectedParticipants(pid, trades))
	return order, trades, nil
}

// CancelOrder cancels one resting order on behalf of its owner.
func (m *Manager) CancelOrder(pid, orderID string) error {
	defer m.track("cancel_order")()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return ErrNoSession
	}
	if _, err := m.engine.Cancel(orderID, pid); err != nil {
		return err
	}
	m.hub.Broadcast(fanout.Event{Type: fanout.EventOrderBooks, Data: m.booksView()})
	m.pushPlayerStatesLocked([]string{pid})
	return nil
}

// Reset tears the current session down. A running game is ended and
// scored first so its results still reach observers and the record sink.
func (m *Manager) Reset() error {
	defer m.track("reset")()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.session.Status == common.SessionRunning {
		m.endLocked()
	}
	m.stopClockLocked()
	m.session = nil
	m.ledger = ledger.New()
	m.engine = engine.New(&m.cfg.Game, m.ledger, m.store)
	m.hub.Broadcast(fanout.Event{Type: fanout.EventSessionState, Data: m.sessionView()})
	log.Info().Msg("session reset")
	return nil
}

// Disconnect handles an observer dropping. Disconnect is not an error: in
// lobby the participant leaves, while running their resting orders are
// swept and the holdings remain for scoring.
func (m *Manager) Disconnect(pid string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || pid == "" {
		return
	}
	if _, ok := m.ledger.Account(pid); !ok {
		return
	}
	m.leaveLocked(pid)
}

func (m *Manager) sweepParticipantLocked(pid string) {
	swept := m.engine.SweepParticipant(pid)
	if len(swept) == 0 {
		return
	}
	m.hub.Broadcast(fanout.Event{Type: fanout.EventOrderBooks, Data: m.booksView()})
	m.pushPlayerStatesLocked([]string{pid})
	log.Info().Str("participant", pid).Int("orders", len(swept)).Msg("swept resting orders")
}

// onTimerFire is the single-fire game clock callback. It takes the command
// lock like any other command, so the end path is serialized with order
// handling.
func (m *Manager) onTimerFire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
}

func (m *Manager) endLocked() {
	if m.session == nil || m.session.Status != common.SessionRunning {
		return
	}

	m.stopClockLocked()
	m.engine.SweepSession()
	m.session.Status = common.SessionEnded
	m.session.EndedAt = time.Now().UTC()

	scores := FinalScores(m.ledger, &m.cfg.Game)
	m.hub.Broadcast(fanout.Event{Type: fanout.EventSessionState, Data: m.sessionView()})
	m.hub.Broadcast(fanout.Event{Type: fanout.EventOrderBooks, Data: m.booksView()})
	m.hub.Broadcast(fanout.Event{Type: fanout.EventLeaderboard, Data: scores})
	m.hub.Broadcast(fanout.Event{Type: fanout.EventGameEnded, Data: GameEndedView{Leaderboard: scores}})
	for _, score := range scores {
		m.hub.SendTo(score.ParticipantID, fanout.Event{Type: fanout.EventFinalScore, Data: score})
	}

	m.store.RecordSession(m.session)
	m.store.RecordEvent(m.session.UUID, "end", "")
	for _, acct := range m.ledger.Accounts() {
		m.store.RecordParticipant(m.session.UUID, acct.ID, acct.Name, acct.Cash, acct.Inventory)
	}
	log.Info().Str("session", m.session.UUID).Int("participants", len(scores)).Msg("game ended")
}

func (m *Manager) stopClockLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.tickStop != nil {
		close(m.tickStop)
		m.tickStop = nil
	}
	m.tickCount = 0
}

// runTicker emits a timer snapshot every second and a live leaderboard
// every fifth tick while the game runs.
func (m *Manager) runTicker(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.session == nil || m.session.Status != common.SessionRunning {
				m.mu.Unlock()
				return
			}
			m.tickCount++
			remaining := int64(m.session.Remaining(time.Now()) / time.Second)
			m.hub.Broadcast(fanout.Event{Type: fanout.EventTimer, Data: TimerView{RemainingSeconds: remaining}})
			if m.tickCount%leaderboardEveryTicks == 0 {
				m.hub.Broadcast(fanout.Event{Type: fanout.EventLeaderboard, Data: LiveScores(m.ledger, &m.cfg.Game)})
			}
			m.mu.Unlock()
		}
	}
}

func (m *Manager) pushPlayerStatesLocked(pids []string) {
	for _, pid := range pids {
		if view, ok := m.playerView(pid); ok {
			m.hub.SendTo(pid, fanout.Event{Type: fanout.EventPlayerState, Data: view})
		}
	}
}

// affectedParticipants collects the submitter and every counterparty of
// the produced trades, deduplicated.
func affectedParticipants(submitter string, trades []*common.Trade) []string {
	seen := map[string]bool{submitter: true}
	out := []string{submitter}
	for _, t := range trades {
		for _, pid := range []string{t.BuyerID, t.SellerID} {
			if !seen[pid] {
				seen[pid] = true
				out = append(out, pid)
			}
		}
	}
	return out
}

func (m *Manager) track(cmd string) func() {
	start := time.Now()
	return func() {
		metrics.Get().CommandDuration.WithLabelValues(cmd).Observe(time.Since(start).Seconds())
	}
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyashhp/sim-exchange/internal/common"
	"github.com/yyashhp/sim-exchange/internal/config"
	"github.com/yyashhp/sim-exchange/internal/engine"
	"github.com/yyashhp/sim-exchange/internal/fanout"
)

// --- Setup & Helpers --------------------------------------------------------

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewSeeded(config.Default(), fanout.NewHub(), nil, 1)
	t.Cleanup(func() { m.Reset() })
	return m
}

// lobbyWith creates a session and joins the given names, returning the
// participant ids in admission order.
func lobbyWith(t *testing.T, m *Manager, names ...string) []string {
	t.Helper()
	_, err := m.CreateSession("")
	require.NoError(t, err)

	ids := make([]string, 0, len(names))
	for _, name := range names {
		view, err := m.Join("obs-"+name, name)
		require.NoError(t, err)
		ids = append(ids, view.ID)
	}
	return ids
}

func startedGame(t *testing.T, m *Manager, names ...string) []string {
	t.Helper()
	ids := lobbyWith(t, m, names...)
	require.NoError(t, m.Start(ids[0]))
	return ids
}

// --- Lifecycle --------------------------------------------------------------

func TestCreateSession(t *testing.T) {
	m := newTestManager(t)

	id, err := m.CreateSession("")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = m.CreateSession("")
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestJoinRules(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Join("obs", "Alice")
	assert.ErrorIs(t, err, ErrNoSession)

	lobbyWith(t, m, "Alice")

	_, err = m.Join("obs", "  ")
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = m.Join("obs", "ALICE")
	assert.ErrorIs(t, err, ErrNameTaken, "names are unique case-insensitively")

	view, err := m.Join("obs", "Bob")
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.Cash)
	assert.NotEmpty(t, view.Inventory)
}

func TestJoinAssignsHostAndFull(t *testing.T) {
	cfg := config.Default()
	cfg.Game.MaxPlayers = 2
	m := NewSeeded(cfg, fanout.NewHub(), nil, 1)

	ids := lobbyWith(t, m, "Alice", "Bob")
	assert.Equal(t, ids[0], m.session.HostID, "first joiner becomes host")

	_, err := m.Join("obs", "Carol")
	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestNameReusableAfterLeave(t *testing.T) {
	m := newTestManager(t)
	ids := lobbyWith(t, m, "Alice", "Bob")

	require.NoError(t, m.Leave(ids[0]))
	view, err := m.Join("obs2", "alice")
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], view.ID)
}

func TestLeaveReassignsHost(t *testing.T) {
	m := newTestManager(t)
	ids := lobbyWith(t, m, "Alice", "Bob")

	require.NoError(t, m.Leave(ids[0]))
	assert.Equal(t, ids[1], m.session.HostID)
}

func TestStartRules(t *testing.T) {
	m := newTestManager(t)
	ids := lobbyWith(t, m, "Alice")

	assert.ErrorIs(t, m.Start(ids[0]), ErrTooFewPlayers)

	bob, err := m.Join("obs-bob", "Bob")
	require.NoError(t, err)
	assert.ErrorIs(t, m.Start(bob.ID), ErrNotHost)

	require.NoError(t, m.Start(ids[0]))
	assert.Equal(t, common.SessionRunning, m.session.Status)

	assert.ErrorIs(t, m.Start(ids[0]), ErrNotLobby)
	_, err = m.Join("obs-late", "Carol")
	assert.ErrorIs(t, err, ErrNotLobby)
}

// --- Trading through the manager --------------------------------------------

func TestSubmitOrderGating(t *testing.T) {
	m := newTestManager(t)

	_, _, err := m.SubmitOrder("x", "bread", common.Buy, common.LimitOrder, 1, 1)
	assert.ErrorIs(t, err, ErrNoSession)

	ids := lobbyWith(t, m, "Alice", "Bob")
	_, _, err = m.SubmitOrder(ids[0], "bread", common.Buy, common.LimitOrder, 1, 1)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestSubmitAndCancelFlow(t *testing.T) {
	m := newTestManager(t)
	ids := startedGame(t, m, "Alice", "Bob")

	order, trades, err := m.SubmitOrder(ids[0], "bread", common.Buy, common.LimitOrder, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, trades)

	require.NoError(t, m.CancelOrder(ids[0], order.UUID))
	assert.ErrorIs(t, m.CancelOrder(ids[0], order.UUID), engine.ErrOrderTerminal)
}

func TestGameEndScoresAndFreezes(t *testing.T) {
	m := newTestManager(t)
	ids := startedGame(t, m, "Alice", "Bob")

	_, _, err := m.SubmitOrder(ids[0], "bread", common.Buy, common.LimitOrder, 1, 2)
	require.NoError(t, err)

	// Drive the single-fire game clock directly.
	m.onTimerFire()
	assert.Equal(t, common.SessionEnded, m.session.Status)

	// Resting orders were swept at the end.
	acct, ok := m.ledger.Account(ids[0])
	require.True(t, ok)
	assert.Empty(t, acct.OpenOrders)

	_, _, err = m.SubmitOrder(ids[0], "bread", common.Buy, common.LimitOrder, 1, 2)
	assert.ErrorIs(t, err, ErrNotRunning)

	// An ended session can be replaced.
	_, err = m.CreateSession("")
	require.NoError(t, err)
}

func TestDisconnectInLobbyLeaves(t *testing.T) {
	m := newTestManager(t)
	ids := lobbyWith(t, m, "Alice", "Bob")

	m.Disconnect(ids[1])
	require.Len(t, m.session.Participants, 1)
	assert.Equal(t, ids[0], m.session.Participants[0])
}

func TestDisconnectWhileRunningSweepsOnly(t *testing.T) {
	m := newTestManager(t)
	ids := startedGame(t, m, "Alice", "Bob")

	_, _, err := m.SubmitOrder(ids[1], "bread", common.Buy, common.LimitOrder, 1, 2)
	require.NoError(t, err)

	m.Disconnect(ids[1])
	assert.Len(t, m.session.Participants, 2, "holdings stay in the game for scoring")
	acct, _ := m.ledger.Account(ids[1])
	assert.Empty(t, acct.OpenOrders)
}

func TestResetClearsSession(t *testing.T) {
	m := newTestManager(t)
	startedGame(t, m, "Alice", "Bob")

	require.NoError(t, m.Reset())
	assert.Nil(t, m.session)

	_, err := m.CreateSession("")
	require.NoError(t, err)
}

// --- Fan-out ----------------------------------------------------------------

func drainEvents(ch <-chan fanout.Event) map[string]int {
	counts := map[string]int{}
	for {
		select {
		case evt := <-ch:
			counts[evt.Type]++
		default:
			return counts
		}
	}
}

func TestSubscriberReceivesSnapshots(t *testing.T) {
	m := newTestManager(t)

	ch := m.Subscribe("watcher")
	defer m.Unsubscribe("watcher")

	counts := drainEvents(ch)
	assert.Equal(t, 1, counts[fanout.EventConfig], "config arrives once on subscribe")
	assert.Equal(t, 1, counts[fanout.EventSessionState])

	ids := startedGame(t, m, "Alice", "Bob")
	_, _, err := m.SubmitOrder(ids[0], "bread", common.Buy, common.LimitOrder, 1, 2)
	require.NoError(t, err)

	counts = drainEvents(ch)
	assert.Greater(t, counts[fanout.EventSessionState], 0)
	assert.Greater(t, counts[fanout.EventOrderBooks], 0)

	m.onTimerFire()
	counts = drainEvents(ch)
	assert.Equal(t, 1, counts[fanout.EventGameEnded])
}

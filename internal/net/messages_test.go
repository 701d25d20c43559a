package net

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyashhp/sim-exchange/internal/engine"
	"github.com/yyashhp/sim-exchange/internal/session"
)

func TestErrorCodes(t *testing.T) {
	cases := map[error]string{
		session.ErrSessionActive:         "already_active",
		session.ErrNoSession:             "no_session",
		session.ErrNotLobby:              "not_lobby",
		session.ErrSessionFull:           "full",
		session.ErrNameTaken:             "name_taken",
		session.ErrEmptyName:             "empty_name",
		session.ErrNotHost:               "not_host",
		session.ErrTooFewPlayers:         "too_few_players",
		session.ErrNotRunning:            "session_not_running",
		engine.ErrUnknownProduct:         "unknown_product",
		engine.ErrQuantityOutOfBounds:    "quantity_out_of_bounds",
		engine.ErrInvalidLimitPrice:      "invalid_price",
		engine.ErrInsufficientCash:       "insufficient_cash",
		engine.ErrInsufficientInventory:  "insufficient_inventory",
		engine.ErrOrderNotFound:          "not_found",
		engine.ErrNotOrderOwner:          "not_owner",
		engine.ErrOrderTerminal:          "already_terminal",
	}
	for err, code := range cases {
		assert.Equal(t, code, errorCode(err))
	}

	// Wrapped errors keep their code; unknown ones collapse to internal.
	assert.Equal(t, "not_found", errorCode(fmt.Errorf("cancel: %w", engine.ErrOrderNotFound)))
	assert.Equal(t, "internal", errorCode(fmt.Errorf("disk on fire")))
}

func TestReplyShapes(t *testing.T) {
	raw, err := json.Marshal(okReply("7", map[string]string{"session_id": "s1"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"req_id":"7","ok":true,"data":{"session_id":"s1"}}`, string(raw))

	raw, err = json.Marshal(errReply("8", session.ErrNotHost))
	require.NoError(t, err)
	assert.JSONEq(t, `{"req_id":"8","ok":false,"error":{"code":"not_host","message":"only the host can start the game"}}`, string(raw))
}

func TestCommandRoundTrip(t *testing.T) {
	payload, _ := json.Marshal(SubmitOrderPayload{Product: "bread", Side: "buy", Type: "limit", Quantity: 5, Price: 3})
	raw, err := json.Marshal(Command{Cmd: CmdSubmitOrder, ReqID: "1", Payload: payload})
	require.NoError(t, err)

	var decoded Command
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, CmdSubmitOrder, decoded.Cmd)

	var p SubmitOrderPayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &p))
	assert.Equal(t, int64(5), p.Quantity)
}

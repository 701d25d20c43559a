package net

import (
	"encoding/json"
	"errors"

	"github.com/yyashhp/sim-exchange/internal/engine"
	"github.com/yyashhp/sim-exchange/internal/session"
)

// Command is the inbound client frame. All replies are synchronous from
// the client's point of view, matched by ReqID.
type Command struct {
	Cmd     string          `json:"cmd"`
	ReqID   string          `json:"req_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command names of the wire surface.
const (
	CmdCreateSession = "create_session"
	CmdJoin          = "join"
	CmdLeave         = "leave"
	CmdStart         = "start"
	CmdSubmitOrder   = "submit_order"
	CmdCancelOrder   = "cancel_order"
	CmdReset         = "reset"
)

type JoinPayload struct {
	Name string `json:"name"`
}

type SubmitOrderPayload struct {
	Product  string `json:"product"`
	Side     string `json:"side"`
	Type     string `json:"type"`
	Quantity int64  `json:"qty"`
	Price    int64  `json:"price,omitempty"`
}

type CancelOrderPayload struct {
	OrderID string `json:"order_id"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Reply struct {
	ReqID string     `json:"req_id,omitempty"`
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

func okReply(reqID string, data any) Reply {
	return Reply{ReqID: reqID, OK: true, Data: data}
}

func errReply(reqID string, err error) Reply {
	return Reply{ReqID: reqID, Error: &ErrorBody{Code: errorCode(err), Message: err.Error()}}
}

var errInvalidPayload = errors.New("invalid payload")

// errorCode maps command errors onto the wire taxonomy. Anything
// unrecognized is an internal error; those never leave the server with
// detail beyond the message.
func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionActive):
		return "already_active"
	case errors.Is(err, session.ErrNoSession):
		return "no_session"
	case errors.Is(err, session.ErrNotLobby):
		return "not_lobby"
	case errors.Is(err, session.ErrSessionFull):
		return "full"
	case errors.Is(err, session.ErrNameTaken):
		return "name_taken"
	case errors.Is(err, session.ErrEmptyName):
		return "empty_name"
	case errors.Is(err, session.ErrNotHost):
		return "not_host"
	case errors.Is(err, session.ErrTooFewPlayers):
		return "too_few_players"
	case errors.Is(err, session.ErrNotRunning):
		return "session_not_running"
	case errors.Is(err, engine.ErrUnknownProduct):
		return "unknown_product"
	case errors.Is(err, engine.ErrQuantityOutOfBounds):
		return "quantity_out_of_bounds"
	case errors.Is(err, engine.ErrInvalidLimitPrice):
		return "invalid_price"
	case errors.Is(err, engine.ErrInsufficientCash):
		return "insufficient_cash"
	case errors.Is(err, engine.ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, engine.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrNotOrderOwner):
		return "not_owner"
	case errors.Is(err, engine.ErrOrderTerminal):
		return "already_terminal"
	case errors.Is(err, engine.ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, errInvalidPayload):
		return "invalid_payload"
	}
	return "internal"
}

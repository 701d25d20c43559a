// Package net is the WebSocket transport: it parses client commands,
// dispatches them to the session manager, and pumps fan-out events back.
package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/yyashhp/sim-exchange/internal/common"
	"github.com/yyashhp/sim-exchange/internal/fanout"
	"github.com/yyashhp/sim-exchange/internal/metrics"
	"github.com/yyashhp/sim-exchange/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

type Server struct {
	addr     string
	mgr      *session.Manager
	upgrader websocket.Upgrader
	srv      *http.Server
}

func New(addr string, mgr *session.Manager) *Server {
	s := &Server{
		addr: addr,
		mgr:  mgr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The game is served same-origin or over a trusted LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", metrics.Handler())

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	t.Go(func() error {
		log.Info().Str("addr", s.addr).Msg("server running")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	t.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})

	return t.Wait()
}

// client is one connected observer, possibly bound to a participant after
// a join.
type client struct {
	observerID    string
	participantID string
	conn          *websocket.Conn
	replies       chan Reply
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		observerID: uuid.New().String(),
		conn:       conn,
		replies:    make(chan Reply, 16),
	}
	events := s.mgr.Subscribe(c.observerID)
	metrics.Get().WSClients.Inc()
	log.Info().Str("observer", c.observerID).Str("remote", conn.RemoteAddr().String()).Msg("client connected")

	done := make(chan struct{})
	go c.writePump(events, done)
	s.readPump(c)

	// Read side is gone: the observer is dropped and any resting orders
	// of its participant are swept.
	close(done)
	s.mgr.Unsubscribe(c.observerID)
	s.mgr.Disconnect(c.participantID)
	metrics.Get().WSClients.Dec()
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Str("observer", c.observerID).Msg("connection close")
	}
	log.Info().Str("observer", c.observerID).Msg("client disconnected")
}

func (s *Server) readPump(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("observer", c.observerID).Msg("read error")
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.send(errReply("", fmt.Errorf("%w: %v", errInvalidPayload, err)))
			continue
		}
		c.send(s.dispatch(c, cmd))
	}
}

// send hands a reply to the write pump. If the pump is gone the
// connection is already dying; dropping beats blocking the reader.
func (c *client) send(r Reply) {
	select {
	case c.replies <- r:
	default:
		log.Warn().Str("observer", c.observerID).Msg("reply queue full, dropping reply")
	}
}

// dispatch runs one command against the session manager and shapes the
// reply. Errors never propagate past here; they become error replies.
func (s *Server) dispatch(c *client, cmd Command) Reply {
	switch cmd.Cmd {
	case CmdCreateSession:
		sessionID, err := s.mgr.CreateSession(c.participantID)
		if err != nil {
			return errReply(cmd.ReqID, err)
		}
		return okReply(cmd.ReqID, map[string]string{"session_id": sessionID})

	case CmdJoin:
		var p JoinPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return errReply(cmd.ReqID, errInvalidPayload)
		}
		view, err := s.mgr.Join(c.observerID, p.Name)
		if err != nil {
			return errReply(cmd.ReqID, err)
		}
		c.participantID = view.ID
		return okReply(cmd.ReqID, view)

	case CmdLeave:
		if err := s.mgr.Leave(c.participantID); err != nil {
			return errReply(cmd.ReqID, err)
		}
		c.participantID = ""
		return okReply(cmd.ReqID, nil)

	case CmdStart:
		if err := s.mgr.Start(c.participantID); err != nil {
			return errReply(cmd.ReqID, err)
		}
		return okReply(cmd.ReqID, nil)

	case CmdSubmitOrder:
		var p SubmitOrderPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return errReply(cmd.ReqID, errInvalidPayload)
		}
		side, ok := common.ParseSide(p.Side)
		if !ok {
			return errReply(cmd.ReqID, fmt.Errorf("%w: side %q", errInvalidPayload, p.Side))
		}
		typ, ok := common.ParseOrderType(p.Type)
		if !ok {
			return errReply(cmd.ReqID, fmt.Errorf("%w: type %q", errInvalidPayload, p.Type))
		}
		order, trades, err := s.mgr.SubmitOrder(c.participantID, common.Product(p.Product), side, typ, p.Quantity, p.Price)
		if err != nil {
			return errReply(cmd.ReqID, err)
		}
		return okReply(cmd.ReqID, map[string]any{"order": order, "trades": trades})

	case CmdCancelOrder:
		var p CancelOrderPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return errReply(cmd.ReqID, errInvalidPayload)
		}
		if err := s.mgr.CancelOrder(c.participantID, p.OrderID); err != nil {
			return errReply(cmd.ReqID, err)
		}
		return okReply(cmd.ReqID, nil)

	case CmdReset:
		if err := s.mgr.Reset(); err != nil {
			return errReply(cmd.ReqID, err)
		}
		return okReply(cmd.ReqID, nil)
	}

	return errReply(cmd.ReqID, fmt.Errorf("%w: unknown command %q", errInvalidPayload, cmd.Cmd))
}

// writePump serializes everything going to the peer: command replies,
// fan-out events, and keepalive pings.
func (c *client) writePump(events <-chan fanout.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case reply := <-c.replies:
			if err := c.writeJSON(reply); err != nil {
				return
			}
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := c.writeJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) writeJSON(v any) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

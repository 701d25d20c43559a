// Package fanout delivers engine state snapshots to session observers.
//
// Every event is a coherent point-in-time projection, never a delta that
// assumes client-side reconciliation. Delivery is best-effort: a slow
// observer loses events rather than stalling the engine.
package fanout

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Event types pushed to observers.
const (
	EventConfig       = "config"
	EventSessionState = "session_state"
	EventPlayerState  = "player_state"
	EventOrderBooks   = "order_books"
	EventLeaderboard  = "leaderboard"
	EventTimer        = "timer"
	EventTrades       = "trades"
	EventGameEnded    = "game_ended"
	EventFinalScore   = "final_score"
)

// Event is the envelope every observer frame carries.
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

const sendBuffer = 64

type subscriber struct {
	id            string
	participantID string
	ch            chan Event
}

// Hub tracks observers and fans events out to them. Observers hold no
// handles into engine state; they only ever see marshalled snapshots.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*subscriber)}
}

// Subscribe registers an observer and returns its event channel.
func (h *Hub) Subscribe(observerID string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{id: observerID, ch: make(chan Event, sendBuffer)}
	h.subs[observerID] = sub
	log.Debug().Str("observer", observerID).Int("count", len(h.subs)).Msg("observer subscribed")
	return sub.ch
}

// Bind associates an observer with a participant so targeted events reach
// it. Called once the observer joins the session.
func (h *Hub) Bind(observerID, participantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[observerID]; ok {
		sub.participantID = participantID
	}
}

// Unsubscribe drops an observer and closes its channel.
func (h *Hub) Unsubscribe(observerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[observerID]; ok {
		delete(h.subs, observerID)
		close(sub.ch)
	}
}

// Broadcast pushes an event to every observer.
func (h *Hub) Broadcast(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		h.push(sub, evt)
	}
}

// SendTo pushes a targeted event to the observers bound to one participant.
func (h *Hub) SendTo(participantID string, evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.participantID == participantID {
			h.push(sub, evt)
		}
	}
}

// SendToObserver pushes an event to a single observer, bound or not.
func (h *Hub) SendToObserver(observerID string, evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sub, ok := h.subs[observerID]; ok {
		h.push(sub, evt)
	}
}

func (h *Hub) push(sub *subscriber, evt Event) {
	select {
	case sub.ch <- evt:
	default:
		// Observer can't keep up. Best-effort delivery: drop.
		log.Warn().Str("observer", sub.id).Str("event", evt.Type).Msg("observer queue full, dropping event")
	}
}

// Package store is the append-only persistence sink. Records are enqueued
// by the engine thread and drained here on a dedicated goroutine so a slow
// disk never stalls command handling.
package store

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yyashhp/sim-exchange/internal/common"
)

const iso8601 = time.RFC3339Nano

// SessionRecord is one lifecycle row per session state change.
type SessionRecord struct {
	RowID     uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"index"`
	HostID    string
	Status    string
	CreatedAt string
	StartedAt string
	EndedAt   string
}

type ParticipantRecord struct {
	RowID         uint   `gorm:"primaryKey;autoIncrement"`
	ParticipantID string `gorm:"index"`
	SessionID     string `gorm:"index"`
	Name          string
	Cash          int64
	Inventory     string // JSON product -> count
	RecordedAt    string
}

type OrderRecord struct {
	RowID      uint   `gorm:"primaryKey;autoIncrement"`
	OrderID    string `gorm:"index"`
	SessionID  string `gorm:"index"`
	OwnerID    string
	Product    string
	Side       string
	Type       string
	Price      int64
	Quantity   int64
	Remaining  int64
	Status     string
	CreatedAt  string
	RecordedAt string
}

type TradeRecord struct {
	RowID       uint   `gorm:"primaryKey;autoIncrement"`
	TradeID     string `gorm:"uniqueIndex"`
	SessionID   string `gorm:"index"`
	BuyOrderID  string
	SellOrderID string
	BuyerID     string
	SellerID    string
	Product     string
	Quantity    int64
	Price       int64
	Value       int64
	ExecutedAt  string
}

// EventRecord captures admissions, departures, starts and ends.
type EventRecord struct {
	RowID         uint   `gorm:"primaryKey;autoIncrement"`
	SessionID     string `gorm:"index"`
	Kind          string
	ParticipantID string
	OccurredAt    string
}

const queueSize = 1024

// Store wraps the database behind a buffered queue. A nil *Store is a
// valid no-op sink, the server runs without persistence when no database
// path is configured.
type Store struct {
	db    *gorm.DB
	queue chan any
	done  chan struct{}
}

// Open connects to the sqlite file, migrates, and starts the drainer. An
// empty path disables persistence.
func Open(path string) (*Store, error) {
	if path == "" {
		log.Warn().Msg("no database path set, running without persistence")
		return nil, nil
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&SessionRecord{}, &ParticipantRecord{}, &OrderRecord{},
		&TradeRecord{}, &EventRecord{},
	); err != nil {
		return nil, err
	}

	s := &Store{
		db:    db,
		queue: make(chan any, queueSize),
		done:  make(chan struct{}),
	}
	go s.drain()
	log.Info().Str("path", path).Msg("database connected")
	return s, nil
}

// Close flushes the queue and stops the drainer.
func (s *Store) Close() {
	if s == nil {
		return
	}
	close(s.queue)
	<-s.done
}

func (s *Store) drain() {
	defer close(s.done)
	for rec := range s.queue {
		if err := s.db.Create(rec).Error; err != nil {
			log.Error().Err(err).Type("record", rec).Msg("persist failed")
		}
	}
}

func (s *Store) enqueue(rec any) {
	if s == nil {
		return
	}
	select {
	case s.queue <- rec:
	default:
		log.Warn().Type("record", rec).Msg("persistence queue full, dropping record")
	}
}

func now() string { return time.Now().UTC().Format(iso8601) }

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(iso8601)
}

func (s *Store) RecordSession(sess *common.Session) {
	s.enqueue(&SessionRecord{
		SessionID: sess.UUID,
		HostID:    sess.HostID,
		Status:    sess.Status.String(),
		CreatedAt: stamp(sess.CreatedAt),
		StartedAt: stamp(sess.StartedAt),
		EndedAt:   stamp(sess.EndedAt),
	})
}

func (s *Store) RecordParticipant(sessionID, participantID, name string, cash int64, inventory map[common.Product]int64) {
	raw, _ := json.Marshal(inventory)
	s.enqueue(&ParticipantRecord{
		ParticipantID: participantID,
		SessionID:     sessionID,
		Name:          name,
		Cash:          cash,
		Inventory:     string(raw),
		RecordedAt:    now(),
	})
}

func (s *Store) RecordOrder(o *common.Order) {
	s.enqueue(&OrderRecord{
		OrderID:    o.UUID,
		SessionID:  o.SessionID,
		OwnerID:    o.OwnerID,
		Product:    string(o.Product),
		Side:       o.Side.String(),
		Type:       o.OrderType.String(),
		Price:      o.LimitPrice,
		Quantity:   o.TotalQuantity,
		Remaining:  o.Quantity,
		Status:     o.Status.String(),
		CreatedAt:  stamp(o.CreatedAt),
		RecordedAt: now(),
	})
}

func (s *Store) RecordTrade(t *common.Trade) {
	s.enqueue(&TradeRecord{
		TradeID:     t.UUID,
		SessionID:   t.SessionID,
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		Product:     string(t.Product),
		Quantity:    t.Quantity,
		Price:       t.Price,
		Value:       t.Value,
		ExecutedAt:  stamp(t.Timestamp),
	})
}

func (s *Store) RecordEvent(sessionID, kind, participantID string) {
	s.enqueue(&EventRecord{
		SessionID:     sessionID,
		Kind:          kind,
		ParticipantID: participantID,
		OccurredAt:    now(),
	})
}

// Package engine is the matching engine: order validation, the price-time
// match loop, settlement against the ledger, and cancellation.
//
// The engine is single-writer. The session manager serializes every call
// in here under its command lock; nothing in this package locks.
package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yyashhp/sim-exchange/internal/book"
	"github.com/yyashhp/sim-exchange/internal/common"
	"github.com/yyashhp/sim-exchange/internal/config"
	"github.com/yyashhp/sim-exchange/internal/ledger"
)

var (
	ErrUnknownProduct        = errors.New("unknown product")
	ErrQuantityOutOfBounds   = errors.New("quantity out of bounds")
	ErrInvalidLimitPrice     = errors.New("limit orders need a positive price")
	ErrInsufficientCash      = errors.New("insufficient cash")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrOrderNotFound         = errors.New("order not found")
	ErrNotOrderOwner         = errors.New("order belongs to another participant")
	ErrOrderTerminal         = errors.New("order already terminal")
	ErrUnknownParticipant    = errors.New("unknown participant")
)

// MarketBuyCeiling is the synthetic per-unit price assigned to unfilled
// market-buy remainder, and the pessimistic price for estimate quantity not
// covered by visible liquidity. MarketSellFloor is the sell-side twin.
const (
	MarketBuyCeiling int64 = 1_000_000
	MarketSellFloor  int64 = 1
)

// Recorder is the append-only persistence sink the engine emits into. It
// must never block; the store buffers and drains on its own goroutine.
type Recorder interface {
	RecordOrder(o *common.Order)
	RecordTrade(t *common.Trade)
}

type Engine struct {
	cfg    *config.Game
	ledger *ledger.Ledger
	books  map[common.Product]*book.Book
	orders map[string]*common.Order
	trades []*common.Trade
	seq    *Sequence
	sink   Recorder
}

func New(cfg *config.Game, led *ledger.Ledger, sink Recorder) *Engine {
	e := &Engine{
		cfg:    cfg,
		ledger: led,
		seq:    &Sequence{},
		sink:   sink,
	}
	e.Reset()
	return e
}

// Reset clears all books and order state for a fresh session.
func (e *Engine) Reset() {
	e.books = make(map[common.Product]*book.Book, len(e.cfg.Products))
	for _, p := range e.cfg.Products {
		e.books[p] = book.New(p)
	}
	e.orders = make(map[string]*common.Order)
	e.trades = nil
}

func (e *Engine) Book(p common.Product) *book.Book { return e.books[p] }

// Order looks up any order the engine has seen, resting or terminal.
func (e *Engine) Order(id string) (*common.Order, bool) {
	o, ok := e.orders[id]
	return o, ok
}

// Trades returns every trade of the current session in execution order.
func (e *Engine) Trades() []*common.Trade { return e.trades }

// Depth projects every book, bids descending and asks ascending.
func (e *Engine) Depth() []book.DepthView {
	out := make([]book.DepthView, 0, len(e.cfg.Products))
	for _, p := range e.cfg.Products {
		out = append(out, e.books[p].Depth(e.cfg.ShowOrderNames))
	}
	return out
}

// Submit validates, matches and settles one incoming order. It returns the
// order (nil if validation rejected it) and the trades it produced.
func (e *Engine) Submit(sessionID, ownerID string, product common.Product, side common.Side, typ common.OrderType, qty, price int64) (*common.Order, []*common.Trade, error) {
	acct, ok := e.ledger.Account(ownerID)
	if !ok {
		return nil, nil, ErrUnknownParticipant
	}

	// Validation order matters: first failure short-circuits.
	if _, ok := e.books[product]; !ok {
		return nil, nil, ErrUnknownProduct
	}
	if qty < e.cfg.MinOrderSize || qty > e.cfg.MaxOrderSize {
		return nil, nil, ErrQuantityOutOfBounds
	}
	if typ == common.LimitOrder && price <= 0 {
		return nil, nil, ErrInvalidLimitPrice
	}

	// Pre-reservation check. Resting orders hold nothing in escrow, so
	// this bounds a single submission only; every match re-checks.
	if side == common.Buy {
		required := qty * price
		if typ == common.MarketOrder {
			required = e.books[product].AskLiquidityCost(qty, MarketBuyCeiling)
		}
		if acct.Cash < required {
			return nil, nil, ErrInsufficientCash
		}
	} else if acct.Inventory[product] < qty {
		return nil, nil, ErrInsufficientInventory
	}

	now := time.Now().UTC()
	order := &common.Order{
		UUID:          uuid.New().String(),
		SessionID:     sessionID,
		OwnerID:       ownerID,
		OwnerName:     acct.Name,
		Product:       product,
		Side:          side,
		OrderType:     typ,
		LimitPrice:    price,
		Quantity:      qty,
		TotalQuantity: qty,
		Status:        common.OrderOpen,
		Seq:           e.seq.Next(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if typ == common.MarketOrder {
		order.LimitPrice = 0
	}
	e.orders[order.UUID] = order

	trades := e.match(order)

	if order.Quantity > 0 && order.Status != common.OrderCancelled {
		if order.OrderType == common.MarketOrder {
			// Convert the unfilled remainder to an aggressive resting
			// limit so the queue holds only priced orders; late
			// liquidity may still fill it.
			if order.Side == common.Buy {
				order.LimitPrice = MarketBuyCeiling
			} else {
				order.LimitPrice = MarketSellFloor
			}
		}
		e.books[product].Add(order)
		e.ledger.AddOpenOrder(ownerID, order.UUID)
	}

	if e.sink != nil {
		e.sink.RecordOrder(order)
	}
	log.Debug().
		Str("order", order.UUID).
		Str("owner", acct.Name).
		Str("product", string(product)).
		Str("side", side.String()).
		Int64("quantity", qty).
		Int64("remaining", order.Quantity).
		Int("trades", len(trades)).
		Msg("order submitted")
	return order, trades, nil
}

// match runs the taker loop for one incoming order. It consumes opposing
// liquidity in price-time order until the order fills, prices stop
// crossing, or a halt condition (self-trade, settlement re-check) hits.
func (e *Engine) match(incoming *common.Order) []*common.Trade {
	bk := e.books[incoming.Product]
	var trades []*common.Trade

	for incoming.Quantity > 0 {
		var resting *common.Order
		if incoming.Side == common.Buy {
			resting = bk.BestAsk()
		} else {
			resting = bk.BestBid()
		}
		if resting == nil {
			break
		}

		// Self-trade prevention: halt matching for this submission
		// entirely rather than skipping to the next level.
		if resting.OwnerID == incoming.OwnerID {
			break
		}

		if incoming.OrderType == common.LimitOrder {
			if incoming.Side == common.Buy && incoming.LimitPrice < resting.LimitPrice {
				break
			}
			if incoming.Side == common.Sell && incoming.LimitPrice > resting.LimitPrice {
				break
			}
		}

		trade, ok := e.execute(incoming, resting)
		if !ok {
			break
		}
		trades = append(trades, trade)

		if resting.Status == common.OrderFilled {
			bk.Remove(resting.UUID)
			e.ledger.RemoveOpenOrder(resting.OwnerID, resting.UUID)
			if e.sink != nil {
				e.sink.RecordOrder(resting)
			}
		}
	}
	return trades
}

// execute settles a single trade between the incoming taker and a resting
// maker. Trades print at the maker's price. Resources are re-checked at
// execution time because resting orders hold no escrow: a participant can
// rest more than they can cover. A re-check failure aborts this one trade
// and the caller halts the loop.
func (e *Engine) execute(incoming, resting *common.Order) (*common.Trade, bool) {
	qty := min(incoming.Quantity, resting.Quantity)
	price := resting.LimitPrice

	buyOrder, sellOrder := incoming, resting
	if incoming.Side == common.Sell {
		buyOrder, sellOrder = resting, incoming
	}

	buyer, buyerOk := e.ledger.Account(buyOrder.OwnerID)
	seller, sellerOk := e.ledger.Account(sellOrder.OwnerID)
	if !buyerOk || !sellerOk {
		log.Error().
			Str("buy_order", buyOrder.UUID).
			Str("sell_order", sellOrder.UUID).
			Msg("match against order with missing participant")
		return nil, false
	}
	if buyer.Cash < qty*price || seller.Inventory[incoming.Product] < qty {
		log.Error().
			Str("buyer", buyer.ID).
			Str("seller", seller.ID).
			Int64("quantity", qty).
			Int64("price", price).
			Msg("settlement re-check failed, aborting trade")
		return nil, false
	}

	// Double entry: the buyer's debit is the seller's credit, in cash and
	// in kind.
	e.ledger.DebitCash(buyer.ID, qty*price)
	e.ledger.CreditCash(seller.ID, qty*price)
	e.ledger.CreditInventory(buyer.ID, incoming.Product, qty)
	e.ledger.DebitInventory(seller.ID, incoming.Product, qty)

	now := time.Now().UTC()
	trade := &common.Trade{
		UUID:        uuid.New().String(),
		SessionID:   incoming.SessionID,
		BuyOrderID:  buyOrder.UUID,
		SellOrderID: sellOrder.UUID,
		BuyerID:     buyer.ID,
		SellerID:    seller.ID,
		Product:     incoming.Product,
		Quantity:    qty,
		Price:       price,
		Value:       qty * price,
		Seq:         e.seq.Next(),
		Timestamp:   now,
	}
	e.trades = append(e.trades, trade)
	e.ledger.AppendTrade(buyer.ID, trade.UUID)
	e.ledger.AppendTrade(seller.ID, trade.UUID)

	fill := common.Fill{TradeID: trade.UUID, Quantity: qty, Price: price, Timestamp: now}
	incoming.ApplyFill(fill)
	resting.ApplyFill(fill)
	e.books[incoming.Product].ReduceQuantity(resting.Side, qty)

	if e.sink != nil {
		e.sink.RecordTrade(trade)
	}
	log.Info().
		Str("trade", trade.UUID).
		Str("product", string(trade.Product)).
		Int64("quantity", qty).
		Int64("price", price).
		Str("buyer", buyer.Name).
		Str("seller", seller.Name).
		Msg("trade executed")
	return trade, true
}

// Cancel marks a resting order cancelled and drops it from the book and
// its owner's open-order set. Resting orders hold no escrow, so balances
// are untouched. Cancelling a terminal order is a no-op error.
func (e *Engine) Cancel(orderID, requesterID string) (*common.Order, error) {
	order, ok := e.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if order.OwnerID != requesterID {
		return nil, ErrNotOrderOwner
	}
	if order.Status.Terminal() {
		return nil, ErrOrderTerminal
	}

	order.Status = common.OrderCancelled
	order.UpdatedAt = time.Now().UTC()
	e.books[order.Product].Remove(order.UUID)
	e.ledger.RemoveOpenOrder(order.OwnerID, order.UUID)
	if e.sink != nil {
		e.sink.RecordOrder(order)
	}
	return order, nil
}

// SweepParticipant cancels every resting order of one participant, the
// disconnect handler path.
func (e *Engine) SweepParticipant(participantID string) []*common.Order {
	var swept []*common.Order
	for _, p := range e.cfg.Products {
		for _, o := range e.books[p].OrdersOwnedBy(participantID) {
			if cancelled, err := e.Cancel(o.UUID, participantID); err == nil {
				swept = append(swept, cancelled)
			}
		}
	}
	return swept
}

// SweepSession cancels every resting order across all books, the session
// end path.
func (e *Engine) SweepSession() []*common.Order {
	var swept []*common.Order
	for _, p := range e.cfg.Products {
		for _, o := range e.books[p].SweepCancel() {
			o.UpdatedAt = time.Now().UTC()
			e.ledger.RemoveOpenOrder(o.OwnerID, o.UUID)
			if e.sink != nil {
				e.sink.RecordOrder(o)
			}
			swept = append(swept, o)
		}
	}
	return swept
}

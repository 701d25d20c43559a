// Package book implements the per-product price-time order book.
package book

import (
	"github.com/tidwall/btree"

	"github.com/yyashhp/sim-exchange/internal/common"
)

// PriceLevel groups resting orders at one price, sorted by time added as
// they will be push-back'd.
type PriceLevel struct {
	Price  int64
	Orders []*common.Order
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// Book holds the resting limit orders for a single product. Only orders
// with status open or partial may rest here; the engine removes an order
// the moment it fills or cancels.
type Book struct {
	product common.Product

	bids *PriceLevels
	asks *PriceLevels

	// Resting volume per side. AskLiquidityCost walks the levels and does
	// not read these.
	askQuantity int64
	bidQuantity int64
}

func New(product common.Product) *Book {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price
	})
	return &Book{
		product: product,
		bids:    bids,
		asks:    asks,
	}
}

func (b *Book) Product() common.Product { return b.product }

func (b *Book) side(s common.Side) *PriceLevels {
	if s == common.Buy {
		return b.bids
	}
	return b.asks
}

// Add rests an order at its limit price. The caller guarantees the order
// is a limit with status open or partial.
func (b *Book) Add(order *common.Order) {
	levels := b.side(order.Side)

	// Levels comparator only accounts for price, so a dummy level works
	// for the lookup.
	level, ok := levels.GetMut(&PriceLevel{Price: order.LimitPrice})
	if ok {
		level.Orders = append(level.Orders, order)
	} else {
		levels.Set(&PriceLevel{
			Price:  order.LimitPrice,
			Orders: []*common.Order{order},
		})
	}

	if order.Side == common.Buy {
		b.bidQuantity += order.Quantity
	} else {
		b.askQuantity += order.Quantity
	}
}

// Remove drops an order from the book by id, regardless of its status.
// O(n) within the side; books in a short game stay small.
func (b *Book) Remove(orderID string) bool {
	for _, s := range []common.Side{common.Buy, common.Sell} {
		if b.removeFromSide(s, orderID) {
			return true
		}
	}
	return false
}

func (b *Book) removeFromSide(s common.Side, orderID string) bool {
	levels := b.side(s)

	var hit *PriceLevel
	var idx int
	levels.Scan(func(level *PriceLevel) bool {
		for i, o := range level.Orders {
			if o.UUID == orderID {
				hit, idx = level, i
				return false
			}
		}
		return true
	})
	if hit == nil {
		return false
	}

	removed := hit.Orders[idx]
	hit.Orders = append(hit.Orders[:idx], hit.Orders[idx+1:]...)
	if len(hit.Orders) == 0 {
		levels.Delete(hit)
	}
	if s == common.Buy {
		b.bidQuantity -= removed.Quantity
	} else {
		b.askQuantity -= removed.Quantity
	}
	return true
}

// ReduceQuantity adjusts the side-volume bookkeeping after a resting order
// was partially consumed in place.
func (b *Book) ReduceQuantity(s common.Side, n int64) {
	if s == common.Buy {
		b.bidQuantity -= n
	} else {
		b.askQuantity -= n
	}
}

// BestBid returns the highest-price resting bid, nil if none.
func (b *Book) BestBid() *common.Order { return b.best(b.bids) }

// BestAsk returns the lowest-price resting ask, nil if none.
func (b *Book) BestAsk() *common.Order { return b.best(b.asks) }

func (b *Book) best(levels *PriceLevels) *common.Order {
	// Min here accounts for bids and asks being in inverse order, based
	// on their comparison method.
	level, ok := levels.MinMut()
	if !ok || len(level.Orders) == 0 {
		return nil
	}
	return level.Orders[0]
}

// AskLiquidityCost walks the ask queue in price-time order consuming qty
// units and returns the cash needed. Quantity not covered by visible
// liquidity is priced at ceiling per unit, forcing a pessimistic estimate.
func (b *Book) AskLiquidityCost(qty, ceiling int64) int64 {
	var cost int64
	remaining := qty
	b.asks.Scan(func(level *PriceLevel) bool {
		for _, o := range level.Orders {
			take := min(remaining, o.Quantity)
			cost += take * level.Price
			remaining -= take
			if remaining == 0 {
				return false
			}
		}
		return true
	})
	return cost + remaining*ceiling
}

// LevelView is one aggregated price level of the depth projection.
type LevelView struct {
	Price    int64       `json:"price"`
	Quantity int64       `json:"quantity"`
	Orders   []OrderView `json:"orders,omitempty"`
}

// OrderView is the per-order summary optionally exposed inside a level.
type OrderView struct {
	Quantity  int64  `json:"quantity"`
	OwnerName string `json:"owner_name,omitempty"`
}

// DepthView is a point-in-time projection of one book.
type DepthView struct {
	Product common.Product `json:"product"`
	Bids    []LevelView    `json:"bids"`
	Asks    []LevelView    `json:"asks"`
}

// Depth aggregates remaining quantity per price level, bids descending and
// asks ascending. Owner names are exposed only when revealNames is set.
func (b *Book) Depth(revealNames bool) DepthView {
	return DepthView{
		Product: b.product,
		Bids:    depthSide(b.bids, revealNames),
		Asks:    depthSide(b.asks, revealNames),
	}
}

func depthSide(levels *PriceLevels, revealNames bool) []LevelView {
	out := []LevelView{}
	levels.Scan(func(level *PriceLevel) bool {
		view := LevelView{Price: level.Price}
		for _, o := range level.Orders {
			view.Quantity += o.Quantity
			ov := OrderView{Quantity: o.Quantity}
			if revealNames {
				ov.OwnerName = o.OwnerName
			}
			view.Orders = append(view.Orders, ov)
		}
		out = append(out, view)
		return true
	})
	return out
}

// SweepCancel marks every resting order cancelled and empties the book.
// The cancelled orders are returned for ledger and persistence cleanup.
func (b *Book) SweepCancel() []*common.Order {
	swept := b.collect(func(*common.Order) bool { return true })
	for _, o := range swept {
		o.Status = common.OrderCancelled
		b.Remove(o.UUID)
	}
	return swept
}

// OrdersOwnedBy returns the resting orders belonging to one participant.
func (b *Book) OrdersOwnedBy(ownerID string) []*common.Order {
	return b.collect(func(o *common.Order) bool { return o.OwnerID == ownerID })
}

func (b *Book) collect(keep func(*common.Order) bool) []*common.Order {
	var out []*common.Order
	for _, levels := range []*PriceLevels{b.bids, b.asks} {
		levels.Scan(func(level *PriceLevel) bool {
			for _, o := range level.Orders {
				if keep(o) {
					out = append(out, o)
				}
			}
			return true
		})
	}
	return out
}

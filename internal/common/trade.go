package common

import "time"

// Trade accounts for the two orders that matched. Immutable once created.
type Trade struct {
	UUID        string    `json:"id"`
	SessionID   string    `json:"session_id"`
	BuyOrderID  string    `json:"buy_order_id"`
	SellOrderID string    `json:"sell_order_id"`
	BuyerID     string    `json:"buyer_id"`
	SellerID    string    `json:"seller_id"`
	Product     Product   `json:"product"`
	Quantity    int64     `json:"quantity"`
	Price       int64     `json:"price"` // Maker's resting price
	Value       int64     `json:"value"` // Quantity * Price
	Seq         uint64    `json:"seq"`   // Monotonic, unique within the engine
	Timestamp   time.Time `json:"timestamp"`
}

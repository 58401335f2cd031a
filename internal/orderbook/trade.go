package orderbook

import (
	"github.com/google/uuid"
)

// Trade is an immutable execution record. Buy and Sell are pre-trade
// snapshots of the two orders, which is what makes rollback-by-replay
// possible: re-inserting a snapshot restores the exact pre-trade book entry.
type Trade struct {
	ID       string
	Isin     string
	Price    int64
	Quantity int64
	Buy      *Order
	Sell     *Order
}

// NewTrade pairs the two orders by side and snapshots them.
func NewTrade(isin string, price, quantity int64, a, b *Order) Trade {
	buy, sell := a, b
	if a.Side == Sell {
		buy, sell = b, a
	}
	return Trade{
		ID:       uuid.New().String(),
		Isin:     isin,
		Price:    price,
		Quantity: quantity,
		Buy:      buy.Snapshot(),
		Sell:     sell.Snapshot(),
	}
}

// Value is the traded notional.
func (t Trade) Value() int64 {
	return t.Price * t.Quantity
}

package orderbook

import (
	"fmt"
	"time"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type Kind int

const (
	Limit Kind = iota
	Iceberg
	StopLimit
)

// Broker is the buying-power ledger an order draws on. Amounts are always
// non-negative notionals (price times quantity).
type Broker interface {
	HasEnoughCredit(amount int64) bool
	IncreaseCreditBy(amount int64)
	DecreaseCreditBy(amount int64)
}

// Shareholder is the position ledger checked before sells are accepted.
type Shareholder interface {
	HasEnoughPositionsOn(isin string, required int64) bool
	IncPosition(isin string, qty int64)
	DecPosition(isin string, qty int64)
}

// Order is a resting or incoming limit order. Iceberg and stop-limit
// behavior hang off the Kind tag rather than subtypes; the book only ever
// sees an iceberg's displayed slice through Quantity.
type Order struct {
	ID          int64
	Side        Side
	Price       int64
	Kind        Kind
	Isin        string
	Broker      Broker
	Shareholder Shareholder
	EntryTime   time.Time

	// MinExecQty is enforced once, on first entry, never on re-matches.
	MinExecQty int64
	PeakSize   int64 // iceberg visible slice cap
	StopPrice  int64 // stop-limit trigger
	RequestID  int64 // originating request, reported on stop-limit activation

	total     int64 // remaining quantity across all slices
	displayed int64 // quantity the book sees; equals total for non-icebergs
	isNew     bool  // gates the minimum-execution check
}

func NewOrder(id int64, isin string, side Side, qty, price int64, broker Broker, shareholder Shareholder, entryTime time.Time, minExecQty int64) *Order {
	return &Order{
		ID:          id,
		Side:        side,
		Price:       price,
		Kind:        Limit,
		Isin:        isin,
		Broker:      broker,
		Shareholder: shareholder,
		EntryTime:   entryTime,
		MinExecQty:  minExecQty,
		total:       qty,
		displayed:   qty,
		isNew:       true,
	}
}

func NewIcebergOrder(id int64, isin string, side Side, qty, price int64, broker Broker, shareholder Shareholder, entryTime time.Time, peakSize, minExecQty int64) *Order {
	o := NewOrder(id, isin, side, qty, price, broker, shareholder, entryTime, minExecQty)
	o.Kind = Iceberg
	o.PeakSize = peakSize
	o.displayed = min64(qty, peakSize)
	return o
}

func NewStopLimitOrder(id int64, isin string, side Side, qty, price int64, broker Broker, shareholder Shareholder, entryTime time.Time, stopPrice, requestID int64) *Order {
	o := NewOrder(id, isin, side, qty, price, broker, shareholder, entryTime, 0)
	o.Kind = StopLimit
	o.StopPrice = stopPrice
	o.RequestID = requestID
	return o
}

// Quantity is the quantity visible to matching: the displayed slice for an
// iceberg, the whole remainder otherwise.
func (o *Order) Quantity() int64 { return o.displayed }

// TotalQuantity is the full remaining quantity, hidden slices included.
func (o *Order) TotalQuantity() int64 { return o.total }

// Value is the resting notional of the order.
func (o *Order) Value() int64 { return o.Price * o.total }

func (o *Order) IsNew() bool { return o.isNew }

// MarkTraded clears the first-entry marker once the order has been through a
// matching pass or re-enters via an update.
func (o *Order) MarkTraded() { o.isNew = false }

// DecreaseQuantity consumes traded quantity. Taking more than the visible
// quantity is a matching-algorithm bug, not a recoverable condition.
func (o *Order) DecreaseQuantity(n int64) {
	if n > o.displayed {
		panic(fmt.Sprintf("order %d: decrease %d exceeds visible quantity %d", o.ID, n, o.displayed))
	}
	o.total -= n
	o.displayed -= n
}

func (o *Order) MakeQuantityZero() {
	o.total = 0
	o.displayed = 0
}

// Replenish draws a fresh visible slice from the hidden remainder. Only
// meaningful for icebergs; a no-op otherwise.
func (o *Order) Replenish() {
	if o.Kind != Iceberg {
		return
	}
	o.displayed = min64(o.total, o.PeakSize)
}

// Matches reports whether the two sides price-cross.
func (o *Order) Matches(counter *Order) bool {
	if o.Side == Buy {
		return o.Price >= counter.Price
	}
	return o.Price <= counter.Price
}

// QueuesBefore is the price leg of price-time priority: strictly better
// price outranks. Ties resolve by insertion order, so time priority falls
// out of the linear enqueue scan.
func (o *Order) QueuesBefore(other *Order) bool {
	if o.Side == Buy {
		return o.Price > other.Price
	}
	return o.Price < other.Price
}

// TriggersBefore orders dormant stop-limit orders by trigger proximity: the
// stop the last-transaction price reaches first queues first.
func (o *Order) TriggersBefore(other *Order) bool {
	if o.Side == Buy {
		return o.StopPrice < other.StopPrice
	}
	return o.StopPrice > other.StopPrice
}

// MustBeActive reports whether the stop trigger condition holds at the given
// last-transaction price.
func (o *Order) MustBeActive(lastTransactionPrice int64) bool {
	if o.Side == Buy {
		return o.StopPrice <= lastTransactionPrice
	}
	return o.StopPrice >= lastTransactionPrice
}

// Snapshot copies the order for rollback re-insertion.
func (o *Order) Snapshot() *Order {
	cp := *o
	return &cp
}

// UpdateRequest carries the mutable fields of an order update.
type UpdateRequest struct {
	Quantity  int64
	Price     int64
	PeakSize  int64
	StopPrice int64
}

// UpdateFromRequest replaces price, quantity and peak size in place. The
// caller decides, before calling, whether the change costs queue priority.
func (o *Order) UpdateFromRequest(req UpdateRequest) {
	o.Price = req.Price
	o.total = req.Quantity
	if o.Kind == Iceberg {
		o.PeakSize = req.PeakSize
		o.displayed = min64(o.total, o.PeakSize)
	} else {
		o.displayed = o.total
	}
	if o.Kind == StopLimit {
		o.StopPrice = req.StopPrice
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

package orderbook

// OrderBook keeps the two active queues of one instrument in strict
// price-time priority: buys by descending price, sells by ascending price,
// ties by arrival. It is not safe for concurrent use; the owning security
// serializes access.
type OrderBook struct {
	buyQueue  []*Order
	sellQueue []*Order
}

func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

func (b *OrderBook) queue(side Side) *[]*Order {
	if side == Buy {
		return &b.buyQueue
	}
	return &b.sellQueue
}

// Enqueue inserts the order immediately before the first resting order it
// outranks, so equal-priced orders keep arrival order.
func (b *OrderBook) Enqueue(o *Order) {
	q := b.queue(o.Side)
	at := len(*q)
	for i, resting := range *q {
		if o.QueuesBefore(resting) {
			at = i
			break
		}
	}
	*q = append(*q, nil)
	copy((*q)[at+1:], (*q)[at:])
	(*q)[at] = o
}

func (b *OrderBook) FindByOrderID(side Side, orderID int64) *Order {
	for _, o := range *b.queue(side) {
		if o.ID == orderID {
			return o
		}
	}
	return nil
}

// RemoveByOrderID removes the order if present; absent is not an error.
func (b *OrderBook) RemoveByOrderID(side Side, orderID int64) bool {
	q := b.queue(side)
	for i, o := range *q {
		if o.ID == orderID {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}

// MatchWithFirst peeks the opposite head if the incoming order price-crosses
// it. Pure peek; the book is not mutated.
func (b *OrderBook) MatchWithFirst(incoming *Order) *Order {
	q := *b.queue(incoming.Side.Opposite())
	if len(q) == 0 {
		return nil
	}
	if incoming.Matches(q[0]) {
		return q[0]
	}
	return nil
}

// PutBack re-inserts at the head of the order's side. Used only when
// unwinding trades: the order must regain its prior front position exactly,
// bypassing priority placement.
func (b *OrderBook) PutBack(o *Order) {
	q := b.queue(o.Side)
	*q = append([]*Order{o}, *q...)
}

// RestoreOrder replaces any live entry for the order with the given
// (pre-trade) state at the head of its queue.
func (b *OrderBook) RestoreOrder(o *Order) {
	b.RemoveByOrderID(o.Side, o.ID)
	b.PutBack(o)
}

func (b *OrderBook) HasOrders(side Side) bool {
	return len(*b.queue(side)) > 0
}

func (b *OrderBook) First(side Side) *Order {
	q := *b.queue(side)
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (b *OrderBook) RemoveFirst(side Side) {
	q := b.queue(side)
	if len(*q) > 0 {
		*q = (*q)[1:]
	}
}

// TotalSellQuantityByShareholder aggregates resting sell exposure, hidden
// iceberg quantity included, for position-sufficiency checks.
func (b *OrderBook) TotalSellQuantityByShareholder(sh Shareholder) int64 {
	var total int64
	for _, o := range b.sellQueue {
		if o.Shareholder == sh {
			total += o.TotalQuantity()
		}
	}
	return total
}

func (b *OrderBook) BuyQueue() []*Order  { return b.buyQueue }
func (b *OrderBook) SellQueue() []*Order { return b.sellQueue }

// LevelSnapshot aggregates visible quantity at one price.
type LevelSnapshot struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// BookSnapshot is the externally reported depth view.
type BookSnapshot struct {
	Isin string          `json:"isin"`
	Bids []LevelSnapshot `json:"bids"`
	Asks []LevelSnapshot `json:"asks"`
}

// Snapshot aggregates the queues into per-price levels. Only displayed
// quantity is reported, so iceberg reserves stay hidden.
func (b *OrderBook) Snapshot(isin string) BookSnapshot {
	snap := BookSnapshot{Isin: isin}
	snap.Bids = levels(b.buyQueue)
	snap.Asks = levels(b.sellQueue)
	return snap
}

func levels(q []*Order) []LevelSnapshot {
	var out []LevelSnapshot
	for _, o := range q {
		if n := len(out); n > 0 && out[n-1].Price == o.Price {
			out[n-1].Quantity += o.Quantity()
			continue
		}
		out = append(out, LevelSnapshot{Price: o.Price, Quantity: o.Quantity()})
	}
	return out
}

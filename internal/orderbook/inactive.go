package orderbook

// InactiveOrderBook holds stop-limit orders whose trigger has not fired yet.
// Each side is kept in trigger-proximity order (ascending stop price for
// buys, descending for sells), so activation can stop at the first
// non-qualifying order.
type InactiveOrderBook struct {
	OrderBook
}

func NewInactiveOrderBook() *InactiveOrderBook {
	return &InactiveOrderBook{}
}

// Enqueue places the order by trigger proximity, arrival order on ties.
func (b *InactiveOrderBook) Enqueue(o *Order) {
	q := b.queue(o.Side)
	at := len(*q)
	for i, resting := range *q {
		if o.TriggersBefore(resting) {
			at = i
			break
		}
	}
	*q = append(*q, nil)
	copy((*q)[at+1:], (*q)[at:])
	(*q)[at] = o
}

// CheckFirst returns the head of the side if its trigger condition holds at
// the given last-transaction price, else nil.
func (b *InactiveOrderBook) CheckFirst(side Side, lastTransactionPrice int64) *Order {
	head := b.First(side)
	if head == nil || !head.MustBeActive(lastTransactionPrice) {
		return nil
	}
	return head
}

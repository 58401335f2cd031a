package match

import (
	"go.uber.org/zap"

	"venue/internal/orderbook"
)

// Matcher walks an incoming order against the opposite queue of its
// security's book, producing trades and moving broker credit as it goes.
// Every call to Execute is all-or-nothing: an economic failure mid-pass
// rolls back ledgers and book order to their exact pre-call state.
type Matcher struct {
	log *zap.Logger
}

func NewMatcher(log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{log: log}
}

// Match consumes the incoming order against the opposite queue while a
// price crossing holds. Trades price at the resting order in continuous
// trading and at the discovered opening price in an auction. Buyers are
// charged per trade in continuous mode only; auction buyers pre-paid their
// full notional at entry and get the price improvement refunded per trade.
func (m *Matcher) Match(sec *Security, incoming *orderbook.Order) MatchResult {
	book := sec.book
	var trades []orderbook.Trade

	for book.HasOrders(incoming.Side.Opposite()) && incoming.Quantity() > 0 {
		counter := book.MatchWithFirst(incoming)
		if counter == nil {
			break
		}

		price := counter.Price
		if sec.state == Auction {
			price = sec.opening.Price
		}
		qty := min64(incoming.Quantity(), counter.Quantity())
		trade := orderbook.NewTrade(sec.isin, price, qty, incoming, counter)

		if incoming.Side == orderbook.Buy && sec.state == Continuous {
			if !incoming.Broker.HasEnoughCredit(trade.Value()) {
				m.rollback(sec, incoming, trades)
				return notEnoughCredit()
			}
			incoming.Broker.DecreaseCreditBy(trade.Value())
		}
		if sec.state == Auction {
			// Auction buys were debited at their own limit price on entry.
			if refund := (trade.Buy.Price - price) * qty; refund > 0 {
				trade.Buy.Broker.IncreaseCreditBy(refund)
			}
		}
		trade.Sell.Broker.IncreaseCreditBy(trade.Value())
		trades = append(trades, trade)

		if incoming.Quantity() >= counter.Quantity() {
			take := counter.Quantity()
			incoming.DecreaseQuantity(take)
			book.RemoveFirst(counter.Side)
			counter.DecreaseQuantity(take)
			if counter.Kind == orderbook.Iceberg {
				counter.Replenish()
				if counter.Quantity() > 0 {
					book.Enqueue(counter)
				}
			}
		} else {
			counter.DecreaseQuantity(incoming.Quantity())
			incoming.MakeQuantityZero()
		}
	}
	return executed(incoming, trades)
}

// Execute runs a full matching pass: match, then the remainder checks
// (minimum execution on first entry, resting-notional credit for continuous
// buys), then re-enqueue of any remainder and the position transfers for the
// trades produced.
func (m *Matcher) Execute(sec *Security, order *orderbook.Order) MatchResult {
	initialQty := order.TotalQuantity()

	result := m.Match(sec, order)
	if result.Outcome == NotEnoughCredit {
		return result
	}

	// An incoming iceberg that exhausted its displayed slice still carries
	// hidden quantity; draw the next slice before deciding on the remainder.
	if order.Kind == orderbook.Iceberg && order.Quantity() == 0 && order.TotalQuantity() > 0 {
		order.Replenish()
	}

	if order.TotalQuantity() > 0 {
		filled := initialQty - order.TotalQuantity()
		if order.IsNew() && order.MinExecQty > filled {
			m.rollback(sec, order, result.Trades)
			m.log.Debug("minimum execution unmet",
				zap.Int64("order_id", order.ID),
				zap.Int64("filled", filled),
				zap.Int64("min", order.MinExecQty))
			return notEnoughInitialTransaction()
		}
		if order.Side == orderbook.Buy && sec.state == Continuous {
			if !order.Broker.HasEnoughCredit(order.Value()) {
				m.rollback(sec, order, result.Trades)
				return notEnoughCredit()
			}
			order.Broker.DecreaseCreditBy(order.Value())
		}
		sec.book.Enqueue(result.Remainder)
	}
	order.MarkTraded()

	for _, trade := range result.Trades {
		trade.Buy.Shareholder.IncPosition(trade.Isin, trade.Quantity)
		trade.Sell.Shareholder.DecPosition(trade.Isin, trade.Quantity)
	}
	return result
}

// rollback unwinds a partially applied match: ledger deltas are recomputed
// from the trade log and every consumed counter order is re-inserted at the
// head of its queue in reverse trade order, restoring exact price-time
// positions.
func (m *Matcher) rollback(sec *Security, incoming *orderbook.Order, trades []orderbook.Trade) {
	var total int64
	for _, t := range trades {
		total += t.Value()
	}
	if incoming.Side == orderbook.Buy {
		incoming.Broker.IncreaseCreditBy(total)
		for _, t := range trades {
			t.Sell.Broker.DecreaseCreditBy(t.Value())
		}
	} else {
		incoming.Broker.DecreaseCreditBy(total)
	}

	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if incoming.Side == orderbook.Buy {
			sec.book.RestoreOrder(t.Sell)
		} else {
			sec.book.RestoreOrder(t.Buy)
		}
	}
	if len(trades) > 0 {
		m.log.Debug("rolled back trades", zap.Int("count", len(trades)), zap.Int64("order_id", incoming.ID))
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

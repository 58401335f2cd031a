package match

import "venue/internal/orderbook"

// Outcome classifies how a matching pass ended. Economic failures
// (credit, positions, initial fill) are outcomes, not errors: they surface
// from deep inside a partially applied match and drive a rollback.
type Outcome int

const (
	Executed Outcome = iota
	NotEnoughCredit
	NotEnoughPositions
	NotEnoughInitialTransaction
	QueuedAsInactiveOrder
	Auctioned
)

func (o Outcome) String() string {
	switch o {
	case Executed:
		return "executed"
	case NotEnoughCredit:
		return "not_enough_credit"
	case NotEnoughPositions:
		return "not_enough_positions"
	case NotEnoughInitialTransaction:
		return "not_enough_initial_transaction"
	case QueuedAsInactiveOrder:
		return "queued_as_inactive_order"
	case Auctioned:
		return "auctioned"
	default:
		return "unknown"
	}
}

// MatchResult is the terminal state of one execute call: the outcome, the
// order the pass ran for (possibly partially filled) when one is available,
// and the trades in execution order. Trades may be empty but never carries
// a partial rollback's trades.
type MatchResult struct {
	Outcome   Outcome
	Remainder *orderbook.Order
	Trades    []orderbook.Trade
}

func executed(remainder *orderbook.Order, trades []orderbook.Trade) MatchResult {
	return MatchResult{Outcome: Executed, Remainder: remainder, Trades: trades}
}

func notEnoughCredit() MatchResult {
	return MatchResult{Outcome: NotEnoughCredit}
}

func notEnoughPositions() MatchResult {
	return MatchResult{Outcome: NotEnoughPositions}
}

func notEnoughInitialTransaction() MatchResult {
	return MatchResult{Outcome: NotEnoughInitialTransaction}
}

func queuedAsInactiveOrder(order *orderbook.Order) MatchResult {
	return MatchResult{Outcome: QueuedAsInactiveOrder, Remainder: order}
}

func auctioned(order *orderbook.Order) MatchResult {
	return MatchResult{Outcome: Auctioned, Remainder: order}
}

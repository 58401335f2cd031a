package match

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"venue/internal/orderbook"
)

// State is the trading regime of a security.
type State int

const (
	Continuous State = iota
	Auction
)

func (s State) String() string {
	if s == Auction {
		return "auction"
	}
	return "continuous"
}

var (
	ErrOrderNotFound      = errors.New("order id not found")
	ErrStopAndIceberg     = errors.New("order cannot be both a stop-limit and an iceberg")
	ErrPeakSizeMismatch   = errors.New("peak size does not match order type")
	ErrMinExecQtyChanged  = errors.New("minimum execution quantity cannot be changed")
	ErrDeleteStopInAuction = errors.New("cannot delete an inactive stop-limit order in auction state")
)

// EnterOrderRequest is a normalized order-entry or order-update request.
// Shape and range validation happen in the handler; the security assumes a
// well-formed request.
type EnterOrderRequest struct {
	RequestID  int64
	OrderID    int64
	Side       orderbook.Side
	Quantity   int64
	Price      int64
	PeakSize   int64
	StopPrice  int64
	MinExecQty int64
	EntryTime  time.Time
}

// DeleteOrderRequest identifies an order to remove.
type DeleteOrderRequest struct {
	RequestID int64
	OrderID   int64
	Side      orderbook.Side
}

// Security owns one instrument's books, trading state and last transaction
// price, and orchestrates order entry, update, deletion, state transitions
// and the stop-limit activation cascade. All operations on one security run
// inside its critical section: callers take Lock around a whole request,
// including any cascade that follows it.
type Security struct {
	mu sync.Mutex

	isin     string
	tickSize int64
	lotSize  int64

	book     *orderbook.OrderBook
	inactive *orderbook.InactiveOrderBook

	state                State
	lastTransactionPrice int64
	opening              orderbook.OpeningData

	// executable stages stop orders that qualified for activation but have
	// not been matched yet.
	executable []*orderbook.Order

	log *zap.Logger
}

func NewSecurity(isin string, tickSize, lotSize int64, log *zap.Logger) *Security {
	if log == nil {
		log = zap.NewNop()
	}
	return &Security{
		isin:     isin,
		tickSize: tickSize,
		lotSize:  lotSize,
		book:     orderbook.NewOrderBook(),
		inactive: orderbook.NewInactiveOrderBook(),
		state:    Continuous,
		log:      log,
	}
}

func (s *Security) Lock()   { s.mu.Lock() }
func (s *Security) Unlock() { s.mu.Unlock() }

func (s *Security) Isin() string                { return s.isin }
func (s *Security) TickSize() int64             { return s.tickSize }
func (s *Security) LotSize() int64              { return s.lotSize }
func (s *Security) State() State                { return s.state }
func (s *Security) LastTransactionPrice() int64 { return s.lastTransactionPrice }

func (s *Security) Book() *orderbook.OrderBook             { return s.book }
func (s *Security) InactiveBook() *orderbook.InactiveOrderBook { return s.inactive }

// SetLastTransactionPrice seeds the reference price, e.g. at session start.
func (s *Security) SetLastTransactionPrice(price int64) { s.lastTransactionPrice = price }

// FindOpeningData recomputes the auction clearing price and quantity from
// the current book and caches it; the matcher prices auction trades off the
// cached value so one clearing pass trades at one price.
func (s *Security) FindOpeningData() orderbook.OpeningData {
	s.opening = s.book.FindOpeningRange().ClosestTo(s.lastTransactionPrice)
	return s.opening
}

// NewOrder classifies and executes an order-entry request. In auction state
// qualifying orders are enqueued without matching, buys pre-paying their
// full notional; in continuous state the order goes straight to the matcher.
func (s *Security) NewOrder(req EnterOrderRequest, broker orderbook.Broker, shareholder orderbook.Shareholder, m *Matcher) (MatchResult, error) {
	if req.Side == orderbook.Sell &&
		!shareholder.HasEnoughPositionsOn(s.isin, s.book.TotalSellQuantityByShareholder(shareholder)+req.Quantity) {
		return notEnoughPositions(), nil
	}

	var order *orderbook.Order
	switch {
	case req.PeakSize == 0 && req.StopPrice == 0:
		order = orderbook.NewOrder(req.OrderID, s.isin, req.Side, req.Quantity, req.Price, broker, shareholder, req.EntryTime, req.MinExecQty)
	case req.PeakSize != 0 && req.StopPrice == 0:
		order = orderbook.NewIcebergOrder(req.OrderID, s.isin, req.Side, req.Quantity, req.Price, broker, shareholder, req.EntryTime, req.PeakSize, req.MinExecQty)
	case req.StopPrice != 0 && req.PeakSize == 0:
		stop := orderbook.NewStopLimitOrder(req.OrderID, s.isin, req.Side, req.Quantity, req.Price, broker, shareholder, req.EntryTime, req.StopPrice, req.RequestID)
		if !stop.MustBeActive(s.lastTransactionPrice) {
			// Dormant stop orders hold no credit, but a buy must at least be
			// feasible at entry.
			if stop.Side == orderbook.Buy && !broker.HasEnoughCredit(stop.Value()) {
				return notEnoughCredit(), nil
			}
			s.inactive.Enqueue(stop)
			return queuedAsInactiveOrder(stop), nil
		}
		order = stop
	default:
		return MatchResult{}, ErrStopAndIceberg
	}

	if s.state == Auction {
		if order.Side == orderbook.Buy {
			if !broker.HasEnoughCredit(order.Value()) {
				return notEnoughCredit(), nil
			}
			broker.DecreaseCreditBy(order.Value())
		}
		order.MarkTraded()
		s.book.Enqueue(order)
		return auctioned(order), nil
	}

	result := m.Execute(s, order)
	s.stageActivations(result)
	return result, nil
}

// UpdateOrder applies an order update. A stop price on the request selects
// the inactive book; type consistency is enforced, never silently coerced.
func (s *Security) UpdateOrder(req EnterOrderRequest, m *Matcher) (MatchResult, error) {
	if req.StopPrice != 0 {
		return s.updateInactiveOrder(req, m)
	}

	order := s.book.FindByOrderID(req.Side, req.OrderID)
	if order == nil {
		return MatchResult{}, ErrOrderNotFound
	}
	if (order.Kind == orderbook.Iceberg) != (req.PeakSize != 0) {
		return MatchResult{}, ErrPeakSizeMismatch
	}
	if order.MinExecQty != req.MinExecQty {
		return MatchResult{}, ErrMinExecQtyChanged
	}

	if req.Side == orderbook.Sell &&
		!order.Shareholder.HasEnoughPositionsOn(s.isin,
			s.book.TotalSellQuantityByShareholder(order.Shareholder)-order.TotalQuantity()+req.Quantity) {
		return notEnoughPositions(), nil
	}

	losesPriority := req.Quantity > order.TotalQuantity() ||
		req.Price != order.Price ||
		(order.Kind == orderbook.Iceberg && req.PeakSize > order.PeakSize)

	// Release the resting notional up front; it is re-taken at the new value
	// below, so an in-place update nets out to an adjustment.
	if req.Side == orderbook.Buy {
		order.Broker.IncreaseCreditBy(order.Value())
	}
	original := order.Snapshot()
	order.UpdateFromRequest(orderbook.UpdateRequest{Quantity: req.Quantity, Price: req.Price, PeakSize: req.PeakSize})
	order.MarkTraded() // re-submission is exempt from the minimum-execution entry check

	if !losesPriority {
		if req.Side == orderbook.Buy {
			order.Broker.DecreaseCreditBy(order.Value())
		}
		return executed(nil, nil), nil
	}

	s.book.RemoveByOrderID(req.Side, req.OrderID)
	if s.state == Auction {
		// Auction orders never match on entry; the updated order re-commits
		// its full notional and waits for the clearing pass like a new entry.
		if order.Side == orderbook.Buy {
			if !order.Broker.HasEnoughCredit(order.Value()) {
				s.book.Enqueue(original)
				original.Broker.DecreaseCreditBy(original.Value())
				return notEnoughCredit(), nil
			}
			order.Broker.DecreaseCreditBy(order.Value())
		}
		s.book.Enqueue(order)
		return auctioned(order), nil
	}
	result := m.Execute(s, order)
	if result.Outcome != Executed {
		s.book.Enqueue(original)
		if req.Side == orderbook.Buy {
			original.Broker.DecreaseCreditBy(original.Value())
		}
		return result, nil
	}
	s.stageActivations(result)
	return result, nil
}

// updateInactiveOrder updates a dormant stop-limit order. If the update
// makes the trigger hold, the order leaves the inactive book and matches
// immediately; otherwise a changed stop price re-positions it.
func (s *Security) updateInactiveOrder(req EnterOrderRequest, m *Matcher) (MatchResult, error) {
	order := s.inactive.FindByOrderID(req.Side, req.OrderID)
	if order == nil {
		return MatchResult{}, ErrOrderNotFound
	}
	if req.PeakSize != 0 {
		return MatchResult{}, ErrStopAndIceberg
	}
	if order.MinExecQty != req.MinExecQty {
		return MatchResult{}, ErrMinExecQtyChanged
	}

	stopPriceChanged := req.StopPrice != order.StopPrice
	order.UpdateFromRequest(orderbook.UpdateRequest{Quantity: req.Quantity, Price: req.Price, StopPrice: req.StopPrice})

	if order.MustBeActive(s.lastTransactionPrice) {
		s.inactive.RemoveByOrderID(req.Side, req.OrderID)
		order.MarkTraded()
		result := m.Execute(s, order)
		s.stageActivations(result)
		return result, nil
	}
	if stopPriceChanged {
		s.inactive.RemoveByOrderID(req.Side, req.OrderID)
		s.inactive.Enqueue(order)
	}
	return executed(nil, nil), nil
}

// DeleteOrder removes an order from whichever book holds it. Deleting an
// active buy refunds its resting notional; dormant stop orders held no
// committed credit.
func (s *Security) DeleteOrder(req DeleteOrderRequest) error {
	order := s.book.FindByOrderID(req.Side, req.OrderID)
	if order != nil {
		if order.Side == orderbook.Buy {
			order.Broker.IncreaseCreditBy(order.Value())
		}
		s.book.RemoveByOrderID(req.Side, req.OrderID)
		return nil
	}
	order = s.inactive.FindByOrderID(req.Side, req.OrderID)
	if order == nil {
		return ErrOrderNotFound
	}
	if s.state == Auction {
		return ErrDeleteStopInAuction
	}
	s.inactive.RemoveByOrderID(req.Side, req.OrderID)
	return nil
}

// CheckExecutableOrders compares the new last-transaction price to the
// previous one and stages every stop order the move newly qualifies. The
// inactive book is ordered by trigger proximity, so the drain stops at the
// first order whose trigger still does not hold.
func (s *Security) CheckExecutableOrders(latestTradePrice int64) {
	previous := s.lastTransactionPrice
	s.lastTransactionPrice = latestTradePrice
	if latestTradePrice == previous {
		return
	}
	side := orderbook.Sell
	if latestTradePrice > previous {
		side = orderbook.Buy
	}
	for {
		order := s.inactive.CheckFirst(side, s.lastTransactionPrice)
		if order == nil {
			return
		}
		s.executable = append(s.executable, order)
		s.inactive.RemoveFirst(side)
		s.log.Debug("stop order staged for activation",
			zap.Int64("order_id", order.ID), zap.Int64("stop_price", order.StopPrice))
	}
}

// RunExecutableOrders drains the staging queue in FIFO order through the
// matcher. A resulting trade re-runs the qualification check, so one call
// carries a full activation cascade; the staged set only ever shrinks the
// inactive book, so the cascade is finite.
func (s *Security) RunExecutableOrders(m *Matcher) []MatchResult {
	var results []MatchResult
	for len(s.executable) > 0 {
		order := s.executable[0]
		s.executable = s.executable[1:]
		order.MarkTraded() // activation is not a first entry
		result := m.Execute(s, order)
		if result.Remainder == nil {
			result.Remainder = order
		}
		if len(result.Trades) > 0 {
			s.CheckExecutableOrders(result.Trades[len(result.Trades)-1].Price)
		}
		results = append(results, result)
	}
	return results
}

// EnqueueExecutableOrders moves staged activations straight into the order
// book without matching; used when the security is entering (or staying in)
// auction, where activated orders wait for the clearing pass. Buys pre-pay
// their notional like any auction entry.
func (s *Security) EnqueueExecutableOrders() []MatchResult {
	var results []MatchResult
	for len(s.executable) > 0 {
		order := s.executable[0]
		s.executable = s.executable[1:]
		order.MarkTraded()
		if order.Side == orderbook.Buy {
			if !order.Broker.HasEnoughCredit(order.Value()) {
				res := notEnoughCredit()
				res.Remainder = order
				results = append(results, res)
				continue
			}
			order.Broker.DecreaseCreditBy(order.Value())
		}
		s.book.Enqueue(order)
		results = append(results, auctioned(order))
	}
	return results
}

// RunAuctionedOrders executes the auction clearing pass: buy-side heads
// priced at or above the discovered opening price run through the matcher
// at the uniform clearing price until the head falls below it or a pass
// produces no trade.
func (s *Security) RunAuctionedOrders(m *Matcher) []MatchResult {
	opening := s.FindOpeningData()
	if opening.TradableQuantity == 0 {
		return nil
	}
	var results []MatchResult
	for s.book.HasOrders(orderbook.Buy) && s.book.HasOrders(orderbook.Sell) {
		head := s.book.First(orderbook.Buy)
		if head.Price < opening.Price {
			break
		}
		s.book.RemoveFirst(orderbook.Buy)
		result := m.Execute(s, head)
		results = append(results, result)
		if len(result.Trades) == 0 {
			break
		}
	}
	return results
}

// ChangeMatchingState flips the trading regime. Leaving auction (to either
// target) first clears the book at the opening price, then resolves the
// stop activations the clearing trades triggered: into the book when the
// target is auction, through the matcher when it is continuous.
func (s *Security) ChangeMatchingState(target State, m *Matcher) (clearing, activations []MatchResult) {
	wasAuction := s.state == Auction
	if wasAuction {
		clearing = s.RunAuctionedOrders(m)
	}
	s.state = target
	if wasAuction {
		if last, ok := lastTradePrice(clearing); ok {
			s.CheckExecutableOrders(last)
			if target == Auction {
				activations = s.EnqueueExecutableOrders()
			} else {
				activations = s.RunExecutableOrders(m)
			}
		}
	}
	s.log.Info("matching state changed", zap.String("isin", s.isin), zap.String("state", target.String()))
	return clearing, activations
}

// stageActivations records the trades' closing price and stages any stop
// orders the move qualifies. The caller drains the staging queue with
// RunExecutableOrders once its own result is settled.
func (s *Security) stageActivations(result MatchResult) {
	if result.Outcome == Executed && len(result.Trades) > 0 {
		s.CheckExecutableOrders(result.Trades[len(result.Trades)-1].Price)
	}
}

func lastTradePrice(results []MatchResult) (int64, bool) {
	for i := len(results) - 1; i >= 0; i-- {
		if n := len(results[i].Trades); n > 0 {
			return results[i].Trades[n-1].Price, true
		}
	}
	return 0, false
}

package handler

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"venue/internal/ledger"
	"venue/internal/match"
	"venue/internal/orderbook"
)

// ErrUnknownSecurity is returned for requests naming an isin the venue
// does not trade.
var ErrUnknownSecurity = errors.New("unknown security isin")

// EntryType distinguishes a fresh order from an update to a resting one.
type EntryType int

const (
	NewOrderEntry EntryType = iota
	UpdateOrderEntry
)

// EnterOrderRequest is the external shape of an order-entry or update
// request, before validation.
type EnterOrderRequest struct {
	RequestID     int64
	OrderID       int64
	Isin          string
	Side          orderbook.Side
	Quantity      int64
	Price         int64
	BrokerID      int64
	ShareholderID int64
	PeakSize      int64
	MinExecQty    int64
	StopPrice     int64
	EntryTime     time.Time
	Type          EntryType
}

type DeleteOrderRequest struct {
	RequestID int64
	OrderID   int64
	Isin      string
	Side      orderbook.Side
}

type ChangeStateRequest struct {
	Isin   string
	Target match.State
}

// TradeStore persists executed trades. The handler writes through it on
// every trade; persistence failures are logged, never rolled into matching.
type TradeStore interface {
	SaveTrade(trade orderbook.Trade) error
}

// OrderHandler validates incoming requests, routes them to the right
// security under its lock, and turns match results into published events.
// It owns the registries of securities, brokers and shareholders.
type OrderHandler struct {
	securities   map[string]*match.Security
	brokers      map[int64]*ledger.Broker
	shareholders map[int64]*ledger.Shareholder

	matcher *match.Matcher
	pub     Publisher
	trades  TradeStore
	log     *zap.Logger
}

func NewOrderHandler(matcher *match.Matcher, pub Publisher, trades TradeStore, log *zap.Logger) *OrderHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderHandler{
		securities:   make(map[string]*match.Security),
		brokers:      make(map[int64]*ledger.Broker),
		shareholders: make(map[int64]*ledger.Shareholder),
		matcher:      matcher,
		pub:          pub,
		trades:       trades,
		log:          log,
	}
}

func (h *OrderHandler) AddSecurity(sec *match.Security) { h.securities[sec.Isin()] = sec }

func (h *OrderHandler) AddBroker(b *ledger.Broker) { h.brokers[b.ID] = b }

func (h *OrderHandler) AddShareholder(sh *ledger.Shareholder) { h.shareholders[sh.ID] = sh }

func (h *OrderHandler) Security(isin string) *match.Security { return h.securities[isin] }

func (h *OrderHandler) Broker(id int64) *ledger.Broker { return h.brokers[id] }

func (h *OrderHandler) Shareholder(id int64) *ledger.Shareholder { return h.shareholders[id] }

func (h *OrderHandler) Securities() []*match.Security {
	out := make([]*match.Security, 0, len(h.securities))
	for _, sec := range h.securities {
		out = append(out, sec)
	}
	return out
}

// HandleEnterOrder runs one order-entry or update request end to end:
// validation, matching under the security's lock, event publication, and
// the stop-limit activation cascade the trades may set off. An order that
// lands in an auction book immediately triggers a clearing pass, so a
// crossing entry trades at the opening price at submission time.
func (h *OrderHandler) HandleEnterOrder(req EnterOrderRequest) {
	reasons := validateShape(req)

	sec := h.securities[req.Isin]
	broker := h.brokers[req.BrokerID]
	shareholder := h.shareholders[req.ShareholderID]
	if sec == nil {
		reasons = append(reasons, ReasonUnknownSecurityIsin)
	}
	if broker == nil {
		reasons = append(reasons, ReasonUnknownBrokerID)
	}
	if shareholder == nil {
		reasons = append(reasons, ReasonUnknownShareholderID)
	}
	if len(reasons) > 0 && sec == nil {
		h.reject(req.RequestID, req.OrderID, reasons)
		return
	}

	sec.Lock()
	defer sec.Unlock()

	reasons = append(reasons, validateAgainstSecurity(req, sec)...)
	if len(reasons) > 0 {
		h.reject(req.RequestID, req.OrderID, reasons)
		return
	}

	if req.EntryTime.IsZero() {
		req.EntryTime = time.Now()
	}
	mreq := match.EnterOrderRequest{
		RequestID:  req.RequestID,
		OrderID:    req.OrderID,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		PeakSize:   req.PeakSize,
		StopPrice:  req.StopPrice,
		MinExecQty: req.MinExecQty,
		EntryTime:  req.EntryTime,
	}

	var result match.MatchResult
	var err error
	if req.Type == UpdateOrderEntry {
		result, err = sec.UpdateOrder(mreq, h.matcher)
	} else {
		result, err = sec.NewOrder(mreq, broker, shareholder, h.matcher)
	}
	if err != nil {
		h.reject(req.RequestID, req.OrderID, []string{reasonForError(err)})
		return
	}

	switch result.Outcome {
	case match.NotEnoughCredit:
		h.reject(req.RequestID, req.OrderID, []string{ReasonNotEnoughCredit})
	case match.NotEnoughPositions:
		h.reject(req.RequestID, req.OrderID, []string{ReasonNotEnoughPositions})
	case match.NotEnoughInitialTransaction:
		h.reject(req.RequestID, req.OrderID, []string{ReasonMinimumExecQtyNotMet})
	case match.QueuedAsInactiveOrder:
		h.ack(req)
	case match.Auctioned:
		h.ack(req)
		h.publishOpeningPrice(sec)
		h.clearAuction(sec)
	case match.Executed:
		h.ack(req)
		if req.Type == UpdateOrderEntry && sec.State() == match.Auction {
			h.publishOpeningPrice(sec)
		}
		if len(result.Trades) > 0 {
			h.recordTrades(result.Trades)
			h.pub.Publish(OrderExecuted{RequestID: req.RequestID, OrderID: req.OrderID, Trades: tradeInfos(result.Trades)})
		}
		h.runCascade(sec)
	}
}

// HandleDeleteOrder removes an order from its security's books and reports
// the result. During an auction a delete moves the indicative opening
// price, so it is re-published.
func (h *OrderHandler) HandleDeleteOrder(req DeleteOrderRequest) {
	var reasons []string
	if req.OrderID <= 0 {
		reasons = append(reasons, ReasonInvalidOrderID)
	}
	sec := h.securities[req.Isin]
	if sec == nil {
		reasons = append(reasons, ReasonUnknownSecurityIsin)
	}
	if len(reasons) > 0 {
		h.reject(req.RequestID, req.OrderID, reasons)
		return
	}

	sec.Lock()
	defer sec.Unlock()

	err := sec.DeleteOrder(match.DeleteOrderRequest{RequestID: req.RequestID, OrderID: req.OrderID, Side: req.Side})
	if err != nil {
		h.reject(req.RequestID, req.OrderID, []string{reasonForError(err)})
		return
	}
	h.pub.Publish(OrderDeleted{RequestID: req.RequestID, OrderID: req.OrderID})
	if sec.State() == match.Auction {
		h.publishOpeningPrice(sec)
	}
}

// HandleChangeMatchingState flips a security's trading regime. Leaving an
// auction clears the book at the opening price first; the clearing trades
// and any stop activations they trigger are published before the state
// change event.
func (h *OrderHandler) HandleChangeMatchingState(req ChangeStateRequest) error {
	sec := h.securities[req.Isin]
	if sec == nil {
		return ErrUnknownSecurity
	}

	sec.Lock()
	defer sec.Unlock()

	clearing, activations := sec.ChangeMatchingState(req.Target, h.matcher)
	for _, res := range clearing {
		h.recordTrades(res.Trades)
		for _, t := range res.Trades {
			h.pub.Publish(TradeEvent{Isin: t.Isin, Price: t.Price, Quantity: t.Quantity, BuyOrderID: t.Buy.ID, SellOrderID: t.Sell.ID})
		}
	}
	for _, res := range activations {
		h.publishActivation(res)
	}
	h.pub.Publish(SecurityStateChanged{Isin: sec.Isin(), State: sec.State().String()})
	return nil
}

// clearAuction runs the auction clearing pass and publishes its trades,
// then moves any stop orders the clearing price triggered into the book.
// Called whenever an entry or update leaves the auction book crossed.
func (h *OrderHandler) clearAuction(sec *match.Security) {
	var last int64
	var traded bool
	for _, res := range sec.RunAuctionedOrders(h.matcher) {
		h.recordTrades(res.Trades)
		for _, t := range res.Trades {
			h.pub.Publish(TradeEvent{Isin: t.Isin, Price: t.Price, Quantity: t.Quantity, BuyOrderID: t.Buy.ID, SellOrderID: t.Sell.ID})
			last, traded = t.Price, true
		}
	}
	if !traded {
		return
	}
	sec.CheckExecutableOrders(last)
	for _, res := range sec.EnqueueExecutableOrders() {
		h.publishActivation(res)
	}
}

// runCascade drains every staged stop activation through the matcher and
// publishes activation and execution events per activated order.
func (h *OrderHandler) runCascade(sec *match.Security) {
	for _, res := range sec.RunExecutableOrders(h.matcher) {
		h.publishActivation(res)
	}
}

func (h *OrderHandler) publishActivation(res match.MatchResult) {
	order := res.Remainder
	if order == nil {
		return
	}
	switch res.Outcome {
	case match.Executed:
		h.pub.Publish(OrderActivated{RequestID: order.RequestID, OrderID: order.ID})
		if len(res.Trades) > 0 {
			h.recordTrades(res.Trades)
			h.pub.Publish(OrderExecuted{RequestID: order.RequestID, OrderID: order.ID, Trades: tradeInfos(res.Trades)})
		}
	case match.Auctioned:
		h.pub.Publish(OrderActivated{RequestID: order.RequestID, OrderID: order.ID})
	case match.NotEnoughCredit:
		h.reject(order.RequestID, order.ID, []string{ReasonNotEnoughCredit})
	}
}

func (h *OrderHandler) publishOpeningPrice(sec *match.Security) {
	opening := sec.FindOpeningData()
	h.pub.Publish(OpeningPriceEvent{Isin: sec.Isin(), Price: opening.Price, TradableQuantity: opening.TradableQuantity})
}

func (h *OrderHandler) recordTrades(trades []orderbook.Trade) {
	if h.trades == nil {
		return
	}
	for _, t := range trades {
		if err := h.trades.SaveTrade(t); err != nil {
			h.log.Error("failed to persist trade", zap.String("trade_id", t.ID), zap.Error(err))
		}
	}
}

func (h *OrderHandler) ack(req EnterOrderRequest) {
	if req.Type == UpdateOrderEntry {
		h.pub.Publish(OrderUpdated{RequestID: req.RequestID, OrderID: req.OrderID})
		return
	}
	h.pub.Publish(OrderAccepted{RequestID: req.RequestID, OrderID: req.OrderID})
}

func (h *OrderHandler) reject(requestID, orderID int64, reasons []string) {
	h.pub.Publish(OrderRejected{RequestID: requestID, OrderID: orderID, Reasons: reasons})
	h.log.Debug("order rejected", zap.Int64("order_id", orderID), zap.Strings("reasons", reasons))
}

// validateShape checks the request fields that need no security context.
func validateShape(req EnterOrderRequest) []string {
	var reasons []string
	if req.OrderID <= 0 {
		reasons = append(reasons, ReasonInvalidOrderID)
	}
	if req.Quantity <= 0 {
		reasons = append(reasons, ReasonOrderQuantityNotPositive)
	}
	if req.Price <= 0 {
		reasons = append(reasons, ReasonOrderPriceNotPositive)
	}
	if req.StopPrice < 0 {
		reasons = append(reasons, ReasonStopPriceNegative)
	}
	if req.PeakSize != 0 && (req.PeakSize < 0 || req.PeakSize >= req.Quantity) {
		reasons = append(reasons, ReasonInvalidPeakSize)
	}
	if req.MinExecQty < 0 || req.MinExecQty > req.Quantity {
		reasons = append(reasons, ReasonInvalidMinimumExecQty)
	}
	if req.StopPrice > 0 && req.MinExecQty > 0 {
		reasons = append(reasons, ReasonStopLimitWithMinimumExec)
	}
	if req.StopPrice > 0 && req.PeakSize > 0 {
		reasons = append(reasons, ReasonStopLimitWithIcebergPeak)
	}
	return reasons
}

// validateAgainstSecurity checks lot and tick conformance and the auction
// restrictions. Caller holds the security's lock.
func validateAgainstSecurity(req EnterOrderRequest, sec *match.Security) []string {
	var reasons []string
	if req.Quantity%sec.LotSize() != 0 {
		reasons = append(reasons, ReasonQuantityNotMultipleOfLot)
	}
	if req.Price%sec.TickSize() != 0 {
		reasons = append(reasons, ReasonPriceNotMultipleOfTick)
	}
	if sec.State() == match.Auction {
		if req.StopPrice > 0 {
			reasons = append(reasons, ReasonStopLimitInAuction)
		}
		if req.MinExecQty > 0 {
			reasons = append(reasons, ReasonMinimumExecQtyInAuction)
		}
	}
	return reasons
}

func reasonForError(err error) string {
	switch err {
	case match.ErrOrderNotFound:
		return ReasonOrderNotFound
	case match.ErrStopAndIceberg:
		return ReasonStopLimitWithIcebergPeak
	case match.ErrPeakSizeMismatch:
		return ReasonIcebergPeakMismatch
	case match.ErrMinExecQtyChanged:
		return ReasonCannotUpdateMinimumExecQty
	case match.ErrDeleteStopInAuction:
		return ReasonCannotDeleteStopInAuction
	default:
		return err.Error()
	}
}

package handler

import "venue/internal/orderbook"

// Event is anything the handler reports outward. Kind is the wire
// discriminator the hub puts on the envelope.
type Event interface {
	Kind() string
}

// Publisher fans events out to whoever listens (websocket hub, log sink).
type Publisher interface {
	Publish(event Event)
}

// TradeInfo is the outward projection of one trade.
type TradeInfo struct {
	TradeID     string `json:"trade_id"`
	Isin        string `json:"isin"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	BuyOrderID  int64  `json:"buy_order_id"`
	SellOrderID int64  `json:"sell_order_id"`
}

func tradeInfo(t orderbook.Trade) TradeInfo {
	return TradeInfo{
		TradeID:     t.ID,
		Isin:        t.Isin,
		Price:       t.Price,
		Quantity:    t.Quantity,
		BuyOrderID:  t.Buy.ID,
		SellOrderID: t.Sell.ID,
	}
}

func tradeInfos(trades []orderbook.Trade) []TradeInfo {
	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = tradeInfo(t)
	}
	return out
}

type OrderAccepted struct {
	RequestID int64 `json:"request_id"`
	OrderID   int64 `json:"order_id"`
}

func (OrderAccepted) Kind() string { return "order_accepted" }

type OrderRejected struct {
	RequestID int64    `json:"request_id"`
	OrderID   int64    `json:"order_id"`
	Reasons   []string `json:"reasons"`
}

func (OrderRejected) Kind() string { return "order_rejected" }

type OrderUpdated struct {
	RequestID int64 `json:"request_id"`
	OrderID   int64 `json:"order_id"`
}

func (OrderUpdated) Kind() string { return "order_updated" }

type OrderDeleted struct {
	RequestID int64 `json:"request_id"`
	OrderID   int64 `json:"order_id"`
}

func (OrderDeleted) Kind() string { return "order_deleted" }

type OrderActivated struct {
	RequestID int64 `json:"request_id"`
	OrderID   int64 `json:"order_id"`
}

func (OrderActivated) Kind() string { return "order_activated" }

type OrderExecuted struct {
	RequestID int64       `json:"request_id"`
	OrderID   int64       `json:"order_id"`
	Trades    []TradeInfo `json:"trades"`
}

func (OrderExecuted) Kind() string { return "order_executed" }

type TradeEvent struct {
	Isin        string `json:"isin"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	BuyOrderID  int64  `json:"buy_order_id"`
	SellOrderID int64  `json:"sell_order_id"`
}

func (TradeEvent) Kind() string { return "trade" }

type OpeningPriceEvent struct {
	Isin             string `json:"isin"`
	Price            int64  `json:"price"`
	TradableQuantity int64  `json:"tradable_quantity"`
}

func (OpeningPriceEvent) Kind() string { return "opening_price" }

type SecurityStateChanged struct {
	Isin  string `json:"isin"`
	State string `json:"state"`
}

func (SecurityStateChanged) Kind() string { return "security_state_changed" }

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"venue/internal/handler"
	"venue/internal/match"
	"venue/internal/orderbook"
	"venue/internal/store"
)

type Server struct {
	handler    *handler.OrderHandler
	dispatcher *Dispatcher
	hub        *Hub
	store      *store.Store
	sessions   *SessionStore
	limiter    *RateLimiter
	upgrader   websocket.Upgrader
	log        *zap.Logger

	corsOrigins []string
	reqSeq      atomic.Int64
}

func NewServer(h *handler.OrderHandler, dispatcher *Dispatcher, hub *Hub, st *store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		handler:    h,
		dispatcher: dispatcher,
		hub:        hub,
		store:      st,
		sessions:   NewSessionStore(st),
		limiter:    NewRateLimiter(600, 1*time.Minute),
		log:        log,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// SetCORSOrigins sets the allowed CORS origins. Empty allows all origins,
// for development.
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

func (s *Server) checkCORSOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return true
	}
	if origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware)
			r.Post("/orders", s.submitOrder)
			r.Put("/orders", s.updateOrder)
			r.Delete("/orders/{id}", s.deleteOrder)
		})

		r.Get("/securities", s.listSecurities)
		r.Post("/securities/{isin}/state", s.changeState)
		r.Get("/securities/{isin}/book", s.getBook)
		r.Get("/securities/{isin}/opening", s.getOpening)
		r.Get("/securities/{isin}/trades", s.getTrades)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

// OrderRequest is the JSON shape of an order-entry or update request.
type OrderRequest struct {
	RequestID     int64  `json:"request_id"`
	OrderID       int64  `json:"order_id"`
	Isin          string `json:"isin"`
	Side          string `json:"side"`
	Quantity      int64  `json:"quantity"`
	Price         int64  `json:"price"`
	BrokerID      int64  `json:"broker_id"`
	ShareholderID int64  `json:"shareholder_id"`
	PeakSize      int64  `json:"peak_size"`
	MinExecQty    int64  `json:"min_exec_qty"`
	StopPrice     int64  `json:"stop_price"`
}

// OrderResponse carries the events the request itself produced; cascade
// events reach clients over the WebSocket feed.
type OrderResponse struct {
	RequestID int64           `json:"request_id"`
	Events    []handler.Event `json:"events"`
}

func (s *Server) submitOrder(w http.ResponseWriter, r *http.Request) {
	s.enterOrder(w, r, handler.NewOrderEntry)
}

func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	s.enterOrder(w, r, handler.UpdateOrderEntry)
}

func (s *Server) enterOrder(w http.ResponseWriter, r *http.Request, entryType handler.EntryType) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	side, ok := parseSide(req.Side)
	if !ok {
		http.Error(w, "side must be 'buy' or 'sell'", http.StatusBadRequest)
		return
	}
	requestID := req.RequestID
	if requestID == 0 {
		requestID = s.reqSeq.Add(1)
	}

	rec := s.dispatcher.Capture(requestID)
	defer s.dispatcher.Release(rec)

	s.handler.HandleEnterOrder(handler.EnterOrderRequest{
		RequestID:     requestID,
		OrderID:       req.OrderID,
		Isin:          req.Isin,
		Side:          side,
		Quantity:      req.Quantity,
		Price:         req.Price,
		BrokerID:      req.BrokerID,
		ShareholderID: req.ShareholderID,
		PeakSize:      req.PeakSize,
		MinExecQty:    req.MinExecQty,
		StopPrice:     req.StopPrice,
		EntryTime:     time.Now(),
		Type:          entryType,
	})

	writeJSON(w, OrderResponse{RequestID: requestID, Events: rec.Events()})
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	side, ok := parseSide(r.URL.Query().Get("side"))
	if !ok {
		http.Error(w, "side must be 'buy' or 'sell'", http.StatusBadRequest)
		return
	}
	isin := r.URL.Query().Get("isin")

	requestID := s.reqSeq.Add(1)
	rec := s.dispatcher.Capture(requestID)
	defer s.dispatcher.Release(rec)

	s.handler.HandleDeleteOrder(handler.DeleteOrderRequest{
		RequestID: requestID,
		OrderID:   orderID,
		Isin:      isin,
		Side:      side,
	})

	writeJSON(w, OrderResponse{RequestID: requestID, Events: rec.Events()})
}

type StateRequest struct {
	State string `json:"state"`
}

func (s *Server) changeState(w http.ResponseWriter, r *http.Request) {
	var req StateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var target match.State
	switch req.State {
	case "auction":
		target = match.Auction
	case "continuous":
		target = match.Continuous
	default:
		http.Error(w, handler.ReasonUnknownTargetState, http.StatusBadRequest)
		return
	}

	if err := s.handler.HandleChangeMatchingState(handler.ChangeStateRequest{
		Isin:   chi.URLParam(r, "isin"),
		Target: target,
	}); err != nil {
		http.Error(w, "unknown security isin", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "state": req.State})
}

type SecurityInfo struct {
	Isin      string `json:"isin"`
	TickSize  int64  `json:"tick_size"`
	LotSize   int64  `json:"lot_size"`
	State     string `json:"state"`
	LastPrice int64  `json:"last_price"`
}

func (s *Server) listSecurities(w http.ResponseWriter, r *http.Request) {
	var out []SecurityInfo
	for _, sec := range s.handler.Securities() {
		sec.Lock()
		out = append(out, SecurityInfo{
			Isin:      sec.Isin(),
			TickSize:  sec.TickSize(),
			LotSize:   sec.LotSize(),
			State:     sec.State().String(),
			LastPrice: sec.LastTransactionPrice(),
		})
		sec.Unlock()
	}
	writeJSON(w, out)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	sec := s.handler.Security(chi.URLParam(r, "isin"))
	if sec == nil {
		http.Error(w, "unknown security isin", http.StatusNotFound)
		return
	}
	sec.Lock()
	snap := sec.Book().Snapshot(sec.Isin())
	sec.Unlock()
	writeJSON(w, snap)
}

type OpeningResponse struct {
	Isin             string `json:"isin"`
	Price            int64  `json:"price"`
	TradableQuantity int64  `json:"tradable_quantity"`
}

func (s *Server) getOpening(w http.ResponseWriter, r *http.Request) {
	sec := s.handler.Security(chi.URLParam(r, "isin"))
	if sec == nil {
		http.Error(w, "unknown security isin", http.StatusNotFound)
		return
	}
	sec.Lock()
	opening := sec.FindOpeningData()
	sec.Unlock()
	writeJSON(w, OpeningResponse{Isin: sec.Isin(), Price: opening.Price, TradableQuantity: opening.TradableQuantity})
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	isin := chi.URLParam(r, "isin")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	trades, err := s.store.ListTrades(isin, limit)
	if err != nil {
		s.log.Error("failed to list trades", zap.String("isin", isin), zap.Error(err))
		http.Error(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	writeJSON(w, trades)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.Register(client)

	// Send the current book of every security as the initial state.
	for _, sec := range s.handler.Securities() {
		sec.Lock()
		snap := sec.Book().Snapshot(sec.Isin())
		sec.Unlock()
		data, _ := json.Marshal(map[string]interface{}{
			"type": "book",
			"data": snap,
		})
		client.send <- data
	}

	go client.WritePump()
	go client.ReadPump()
}

// Shutdown stops internal goroutines (session cleanup, rate limiter).
func (s *Server) Shutdown() {
	s.sessions.Stop()
	s.limiter.Stop()
}

func parseSide(v string) (orderbook.Side, bool) {
	switch v {
	case "buy":
		return orderbook.Buy, true
	case "sell":
		return orderbook.Sell, true
	default:
		return 0, false
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

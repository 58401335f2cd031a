package store

import (
	"time"

	"venue/internal/orderbook"
)

// TradeRecord is one row of the persisted trade tape.
type TradeRecord struct {
	ID          string
	Isin        string
	Price       int64
	Quantity    int64
	BuyOrderID  int64
	SellOrderID int64
	CreatedAt   time.Time
}

// SaveTrade appends one executed trade to the tape.
func (s *Store) SaveTrade(t orderbook.Trade) error {
	_, err := s.db.Exec(
		"INSERT INTO trades (id, isin, price, quantity, buy_order_id, sell_order_id) VALUES (?, ?, ?, ?, ?, ?)",
		t.ID, t.Isin, t.Price, t.Quantity, t.Buy.ID, t.Sell.ID,
	)
	return err
}

// ListTrades returns the most recent trades for an instrument, newest first.
func (s *Store) ListTrades(isin string, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, isin, price, quantity, buy_order_id, sell_order_id, created_at
		 FROM trades WHERE isin = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		isin, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var r TradeRecord
		if err := rows.Scan(&r.ID, &r.Isin, &r.Price, &r.Quantity, &r.BuyOrderID, &r.SellOrderID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

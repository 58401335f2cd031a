package store

import (
	"path/filepath"
	"testing"
	"time"

	"venue/internal/ledger"
	"venue/internal/orderbook"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "venue_test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReferenceDataRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveBroker(ledger.NewBroker(1, "alpha", 5000)); err != nil {
		t.Fatalf("save broker: %v", err)
	}
	sh := ledger.NewShareholder(2, "holder")
	sh.IncPosition("IRO1TEST0001", 300)
	if err := s.SaveShareholder(sh); err != nil {
		t.Fatalf("save shareholder: %v", err)
	}
	if err := s.SaveSecurity(SecurityRow{Isin: "IRO1TEST0001", TickSize: 5, LotSize: 10, LastPrice: 1500}); err != nil {
		t.Fatalf("save security: %v", err)
	}

	brokers, err := s.LoadBrokers()
	if err != nil {
		t.Fatalf("load brokers: %v", err)
	}
	if len(brokers) != 1 || brokers[0].ID != 1 || brokers[0].Credit() != 5000 {
		t.Errorf("unexpected brokers: %+v", brokers)
	}

	shareholders, err := s.LoadShareholders()
	if err != nil {
		t.Fatalf("load shareholders: %v", err)
	}
	if len(shareholders) != 1 || shareholders[0].PositionOn("IRO1TEST0001") != 300 {
		t.Errorf("unexpected shareholders: %+v", shareholders)
	}

	securities, err := s.LoadSecurities()
	if err != nil {
		t.Fatalf("load securities: %v", err)
	}
	if len(securities) != 1 || securities[0].LastPrice != 1500 || securities[0].TickSize != 5 {
		t.Errorf("unexpected securities: %+v", securities)
	}
}

func TestSaveBrokerUpsertsCredit(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveBroker(ledger.NewBroker(1, "alpha", 5000)); err != nil {
		t.Fatalf("save broker: %v", err)
	}
	if err := s.SaveBroker(ledger.NewBroker(1, "alpha", 4200)); err != nil {
		t.Fatalf("update broker: %v", err)
	}

	brokers, err := s.LoadBrokers()
	if err != nil {
		t.Fatalf("load brokers: %v", err)
	}
	if len(brokers) != 1 || brokers[0].Credit() != 4200 {
		t.Errorf("expected single broker with credit 4200, got %+v", brokers)
	}
}

func TestTradeTape(t *testing.T) {
	s := newTestStore(t)

	buy := orderbook.NewOrder(11, "IRO1TEST0001", orderbook.Buy, 10, 100, nil, nil, time.Now(), 0)
	sell := orderbook.NewOrder(12, "IRO1TEST0001", orderbook.Sell, 10, 100, nil, nil, time.Now(), 0)
	trade := orderbook.NewTrade("IRO1TEST0001", 100, 10, buy, sell)
	if err := s.SaveTrade(trade); err != nil {
		t.Fatalf("save trade: %v", err)
	}

	trades, err := s.ListTrades("IRO1TEST0001", 10)
	if err != nil {
		t.Fatalf("list trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	r := trades[0]
	if r.Price != 100 || r.Quantity != 10 || r.BuyOrderID != 11 || r.SellOrderID != 12 {
		t.Errorf("unexpected trade record: %+v", r)
	}

	if other, _ := s.ListTrades("IRO1OTHER001", 10); len(other) != 0 {
		t.Errorf("trades must filter by isin")
	}
}

func TestUserAuthentication(t *testing.T) {
	s := newTestStore(t)

	user, err := s.CreateUser("trader1", "secret123")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := s.CreateUser("trader1", "other"); err != ErrUserExists {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
	if _, err := s.AuthenticateUser("trader1", "wrong"); err != ErrInvalidPassword {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	got, err := s.AuthenticateUser("trader1", "secret123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, got.ID)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("trader1", "secret123")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := s.CreateSession("tok1", user.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create session: %v", err)
	}
	session, err := s.GetSession("tok1")
	if err != nil || session == nil {
		t.Fatalf("get session: %v, %v", session, err)
	}
	if session.UserID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, session.UserID)
	}

	// Expired sessions are invisible and removed on read.
	if err := s.CreateSession("tok2", user.ID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("create expired session: %v", err)
	}
	if got, _ := s.GetSession("tok2"); got != nil {
		t.Errorf("expired session must not resolve")
	}

	s.DeleteSession("tok1")
	if got, _ := s.GetSession("tok1"); got != nil {
		t.Errorf("deleted session must not resolve")
	}
}

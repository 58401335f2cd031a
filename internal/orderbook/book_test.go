package orderbook

import (
	"testing"
	"time"
)

type fakeBroker struct {
	credit int64
}

func (b *fakeBroker) HasEnoughCredit(amount int64) bool { return b.credit >= amount }
func (b *fakeBroker) IncreaseCreditBy(amount int64)     { b.credit += amount }
func (b *fakeBroker) DecreaseCreditBy(amount int64)     { b.credit -= amount }

type fakeShareholder struct {
	positions map[string]int64
}

func newFakeShareholder() *fakeShareholder {
	return &fakeShareholder{positions: make(map[string]int64)}
}

func (s *fakeShareholder) HasEnoughPositionsOn(isin string, required int64) bool {
	return s.positions[isin] >= required
}
func (s *fakeShareholder) IncPosition(isin string, qty int64) { s.positions[isin] += qty }
func (s *fakeShareholder) DecPosition(isin string, qty int64) { s.positions[isin] -= qty }

func limitOrder(id int64, side Side, qty, price int64) *Order {
	return NewOrder(id, "IRO1TEST0001", side, qty, price, &fakeBroker{}, newFakeShareholder(), time.Now(), 0)
}

func TestEnqueueKeepsPriceTimePriority(t *testing.T) {
	book := NewOrderBook()

	book.Enqueue(limitOrder(1, Buy, 10, 100))
	book.Enqueue(limitOrder(2, Buy, 10, 110))
	book.Enqueue(limitOrder(3, Buy, 10, 100))
	book.Enqueue(limitOrder(4, Buy, 10, 105))

	want := []int64{2, 4, 1, 3}
	got := book.BuyQueue()
	if len(got) != len(want) {
		t.Fatalf("expected %d orders, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected order %d, got %d", i, id, got[i].ID)
		}
	}

	book.Enqueue(limitOrder(5, Sell, 10, 200))
	book.Enqueue(limitOrder(6, Sell, 10, 190))
	book.Enqueue(limitOrder(7, Sell, 10, 200))

	wantSell := []int64{6, 5, 7}
	gotSell := book.SellQueue()
	for i, id := range wantSell {
		if gotSell[i].ID != id {
			t.Errorf("sell position %d: expected order %d, got %d", i, id, gotSell[i].ID)
		}
	}
}

func TestIcebergDisplaysPeakOnly(t *testing.T) {
	o := NewIcebergOrder(1, "IRO1TEST0001", Sell, 100, 50, &fakeBroker{}, newFakeShareholder(), time.Now(), 10, 0)

	if o.Quantity() != 10 {
		t.Errorf("expected displayed 10, got %d", o.Quantity())
	}
	if o.TotalQuantity() != 100 {
		t.Errorf("expected total 100, got %d", o.TotalQuantity())
	}

	o.DecreaseQuantity(10)
	if o.Quantity() != 0 || o.TotalQuantity() != 90 {
		t.Fatalf("after consuming slice: displayed %d total %d", o.Quantity(), o.TotalQuantity())
	}
	o.Replenish()
	if o.Quantity() != 10 {
		t.Errorf("expected replenished slice 10, got %d", o.Quantity())
	}

	// The last slice is capped by what remains.
	o.total = 4
	o.displayed = 0
	o.Replenish()
	if o.Quantity() != 4 {
		t.Errorf("expected final slice 4, got %d", o.Quantity())
	}
}

func TestMatchWithFirstIsPurePeek(t *testing.T) {
	book := NewOrderBook()
	book.Enqueue(limitOrder(1, Sell, 10, 100))

	buy := limitOrder(2, Buy, 5, 100)
	counter := book.MatchWithFirst(buy)
	if counter == nil || counter.ID != 1 {
		t.Fatalf("expected counter order 1, got %v", counter)
	}
	if len(book.SellQueue()) != 1 {
		t.Errorf("peek must not mutate the book")
	}

	cheapBuy := limitOrder(3, Buy, 5, 90)
	if book.MatchWithFirst(cheapBuy) != nil {
		t.Errorf("non-crossing order must not match")
	}
}

func TestRestoreOrderRegainsHeadPosition(t *testing.T) {
	book := NewOrderBook()
	first := limitOrder(1, Sell, 10, 100)
	second := limitOrder(2, Sell, 10, 100)
	book.Enqueue(first)
	book.Enqueue(second)

	snapshot := first.Snapshot()
	first.DecreaseQuantity(6)
	book.RemoveFirst(Sell)

	book.RestoreOrder(snapshot)

	head := book.First(Sell)
	if head.ID != 1 {
		t.Fatalf("expected restored order at head, got %d", head.ID)
	}
	if head.Quantity() != 10 {
		t.Errorf("expected pre-trade quantity 10, got %d", head.Quantity())
	}
}

func TestTotalSellQuantityByShareholder(t *testing.T) {
	book := NewOrderBook()
	sh := newFakeShareholder()
	other := newFakeShareholder()

	book.Enqueue(NewOrder(1, "IRO1TEST0001", Sell, 30, 100, &fakeBroker{}, sh, time.Now(), 0))
	book.Enqueue(NewIcebergOrder(2, "IRO1TEST0001", Sell, 50, 101, &fakeBroker{}, sh, time.Now(), 10, 0))
	book.Enqueue(NewOrder(3, "IRO1TEST0001", Sell, 20, 100, &fakeBroker{}, other, time.Now(), 0))

	if got := book.TotalSellQuantityByShareholder(sh); got != 80 {
		t.Errorf("expected 80 including hidden iceberg quantity, got %d", got)
	}
}

func TestSnapshotAggregatesDisplayedQuantity(t *testing.T) {
	book := NewOrderBook()
	book.Enqueue(limitOrder(1, Buy, 10, 100))
	book.Enqueue(limitOrder(2, Buy, 5, 100))
	book.Enqueue(NewIcebergOrder(3, "IRO1TEST0001", Sell, 100, 110, &fakeBroker{}, newFakeShareholder(), time.Now(), 7, 0))

	snap := book.Snapshot("IRO1TEST0001")
	if len(snap.Bids) != 1 || snap.Bids[0].Quantity != 15 {
		t.Fatalf("expected one bid level of 15, got %+v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Quantity != 7 {
		t.Fatalf("expected iceberg to show its peak only, got %+v", snap.Asks)
	}
}

func stopOrder(id int64, side Side, qty, price, stopPrice int64) *Order {
	return NewStopLimitOrder(id, "IRO1TEST0001", side, qty, price, &fakeBroker{}, newFakeShareholder(), time.Now(), stopPrice, id)
}

func TestInactiveBookOrdersByTriggerProximity(t *testing.T) {
	book := NewInactiveOrderBook()

	// Buys activate as the price rises: lowest stop price first.
	book.Enqueue(stopOrder(1, Buy, 10, 100, 70))
	book.Enqueue(stopOrder(2, Buy, 10, 100, 50))
	book.Enqueue(stopOrder(3, Buy, 10, 100, 70))

	want := []int64{2, 1, 3}
	for i, o := range book.BuyQueue() {
		if o.ID != want[i] {
			t.Errorf("buy position %d: expected %d, got %d", i, want[i], o.ID)
		}
	}

	// Sells activate as the price falls: highest stop price first.
	book.Enqueue(stopOrder(4, Sell, 10, 100, 40))
	book.Enqueue(stopOrder(5, Sell, 10, 100, 60))

	if book.First(Sell).ID != 5 {
		t.Errorf("expected sell stop 60 at head, got %d", book.First(Sell).ID)
	}
}

func TestInactiveBookCheckFirst(t *testing.T) {
	book := NewInactiveOrderBook()
	book.Enqueue(stopOrder(1, Buy, 10, 100, 70))

	if book.CheckFirst(Buy, 60) != nil {
		t.Errorf("stop 70 must stay dormant at last price 60")
	}
	if got := book.CheckFirst(Buy, 70); got == nil || got.ID != 1 {
		t.Errorf("stop 70 must qualify at last price 70")
	}
	if book.CheckFirst(Sell, 100) != nil {
		t.Errorf("empty side must report no activation")
	}
}

func TestUpdateFromRequestRecomputesDisplayed(t *testing.T) {
	o := NewIcebergOrder(1, "IRO1TEST0001", Sell, 100, 50, &fakeBroker{}, newFakeShareholder(), time.Now(), 10, 0)
	o.DecreaseQuantity(10)

	o.UpdateFromRequest(UpdateRequest{Quantity: 40, Price: 55, PeakSize: 25})
	if o.TotalQuantity() != 40 || o.Quantity() != 25 || o.Price != 55 {
		t.Errorf("after update: total %d displayed %d price %d", o.TotalQuantity(), o.Quantity(), o.Price)
	}
}

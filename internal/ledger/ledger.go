// Package ledger holds the buying-power and position ledgers the matching
// core mutates during trades. Both are plain single-writer structures: the
// owning security's critical section is the only place they are touched,
// and a buyer's credit and seller's position always move together inside it.
package ledger

import "fmt"

// Broker tracks one broker's available buying power.
type Broker struct {
	ID     int64
	Name   string
	credit int64
}

func NewBroker(id int64, name string, credit int64) *Broker {
	return &Broker{ID: id, Name: name, credit: credit}
}

func (b *Broker) Credit() int64 { return b.credit }

func (b *Broker) HasEnoughCredit(amount int64) bool {
	return b.credit >= amount
}

func (b *Broker) IncreaseCreditBy(amount int64) {
	b.credit += amount
}

func (b *Broker) DecreaseCreditBy(amount int64) {
	if amount > b.credit {
		panic(fmt.Sprintf("broker %d: debit %d exceeds credit %d", b.ID, amount, b.credit))
	}
	b.credit -= amount
}

// Shareholder tracks one shareholder's share balances per instrument.
type Shareholder struct {
	ID        int64
	Name      string
	positions map[string]int64
}

func NewShareholder(id int64, name string) *Shareholder {
	return &Shareholder{ID: id, Name: name, positions: make(map[string]int64)}
}

func (s *Shareholder) PositionOn(isin string) int64 {
	return s.positions[isin]
}

func (s *Shareholder) HasEnoughPositionsOn(isin string, required int64) bool {
	return s.positions[isin] >= required
}

// Positions returns a copy of all non-zero holdings.
func (s *Shareholder) Positions() map[string]int64 {
	out := make(map[string]int64, len(s.positions))
	for isin, qty := range s.positions {
		if qty != 0 {
			out[isin] = qty
		}
	}
	return out
}

func (s *Shareholder) IncPosition(isin string, qty int64) {
	s.positions[isin] += qty
}

func (s *Shareholder) DecPosition(isin string, qty int64) {
	if qty > s.positions[isin] {
		panic(fmt.Sprintf("shareholder %d: position on %s would go negative", s.ID, isin))
	}
	s.positions[isin] -= qty
}

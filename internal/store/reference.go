package store

import (
	"venue/internal/ledger"
)

// SecurityRow is the persisted reference data for one instrument.
type SecurityRow struct {
	Isin      string
	TickSize  int64
	LotSize   int64
	LastPrice int64
}

// SaveBroker upserts one broker's row, including its current credit.
func (s *Store) SaveBroker(b *ledger.Broker) error {
	_, err := s.db.Exec(
		`INSERT INTO brokers (id, name, credit) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, credit = excluded.credit`,
		b.ID, b.Name, b.Credit(),
	)
	return err
}

// SaveShareholder upserts one shareholder and all its non-zero positions.
func (s *Store) SaveShareholder(sh *ledger.Shareholder) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO shareholders (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		sh.ID, sh.Name,
	); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM shareholder_positions WHERE shareholder_id = ?", sh.ID); err != nil {
		return err
	}
	for isin, qty := range sh.Positions() {
		if _, err := tx.Exec(
			"INSERT INTO shareholder_positions (shareholder_id, isin, quantity) VALUES (?, ?, ?)",
			sh.ID, isin, qty,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveSecurity upserts one security's reference row.
func (s *Store) SaveSecurity(row SecurityRow) error {
	_, err := s.db.Exec(
		`INSERT INTO securities (isin, tick_size, lot_size, last_price) VALUES (?, ?, ?, ?)
		 ON CONFLICT(isin) DO UPDATE SET tick_size = excluded.tick_size,
			lot_size = excluded.lot_size, last_price = excluded.last_price`,
		row.Isin, row.TickSize, row.LotSize, row.LastPrice,
	)
	return err
}

// LoadBrokers reconstructs every broker ledger from its persisted row.
func (s *Store) LoadBrokers() ([]*ledger.Broker, error) {
	rows, err := s.db.Query("SELECT id, name, credit FROM brokers ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brokers []*ledger.Broker
	for rows.Next() {
		var id, credit int64
		var name string
		if err := rows.Scan(&id, &name, &credit); err != nil {
			return nil, err
		}
		brokers = append(brokers, ledger.NewBroker(id, name, credit))
	}
	return brokers, rows.Err()
}

// LoadShareholders reconstructs every shareholder ledger with its positions.
func (s *Store) LoadShareholders() ([]*ledger.Shareholder, error) {
	rows, err := s.db.Query("SELECT id, name FROM shareholders ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*ledger.Shareholder)
	var shareholders []*ledger.Shareholder
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		sh := ledger.NewShareholder(id, name)
		byID[id] = sh
		shareholders = append(shareholders, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	posRows, err := s.db.Query("SELECT shareholder_id, isin, quantity FROM shareholder_positions")
	if err != nil {
		return nil, err
	}
	defer posRows.Close()
	for posRows.Next() {
		var id, qty int64
		var isin string
		if err := posRows.Scan(&id, &isin, &qty); err != nil {
			return nil, err
		}
		if sh := byID[id]; sh != nil {
			sh.IncPosition(isin, qty)
		}
	}
	return shareholders, posRows.Err()
}

// LoadSecurities loads the reference rows for every listed instrument.
func (s *Store) LoadSecurities() ([]SecurityRow, error) {
	rows, err := s.db.Query("SELECT isin, tick_size, lot_size, last_price FROM securities ORDER BY isin")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SecurityRow
	for rows.Next() {
		var row SecurityRow
		if err := rows.Scan(&row.Isin, &row.TickSize, &row.LotSize, &row.LastPrice); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

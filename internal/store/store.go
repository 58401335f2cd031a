package store

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// Store provides SQLite persistence for the venue: reference data (brokers,
// shareholders, securities), the trade tape, and API users and sessions.
// The matching core never reads it on the hot path; state is loaded once at
// startup and written through as trades happen.
type Store struct {
	db *sql.DB
}

// New opens the database and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS brokers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		credit INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS shareholders (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shareholder_positions (
		shareholder_id INTEGER NOT NULL REFERENCES shareholders(id),
		isin TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		UNIQUE(shareholder_id, isin)
	);

	CREATE TABLE IF NOT EXISTS securities (
		isin TEXT PRIMARY KEY,
		tick_size INTEGER NOT NULL DEFAULT 1,
		lot_size INTEGER NOT NULL DEFAULT 1,
		last_price INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		isin TEXT NOT NULL,
		price INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		buy_order_id INTEGER NOT NULL,
		sell_order_id INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_positions_shareholder ON shareholder_positions(shareholder_id);
	CREATE INDEX IF NOT EXISTS idx_trades_isin ON trades(isin, created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

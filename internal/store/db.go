package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type Store struct {
	DB *sql.DB

	// writeMu serializes order-completion writes (order insert + stock
	// decrement + outbox enqueue). SQLite would otherwise allow two
	// checkouts to read the same pre-decrement quantity and lose one
	// update.
	writeMu sync.Mutex
}

func NewStore(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &Store{DB: db}, nil
}

// RunInOrderTx runs fn inside a transaction while holding the single-writer
// lock. Used for every write that touches product quantities.
func (s *Store) RunInOrderTx(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

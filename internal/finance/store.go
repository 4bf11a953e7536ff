package finance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store persists finance operations.
type Store interface {
	AddIncome(ctx context.Context, chatID int64, amount float64) error
	AddSpend(ctx context.Context, chatID int64, amount float64) error
}

// PostgresStore writes to the incomes and spends tables.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AddIncome(ctx context.Context, chatID int64, amount float64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO incomes (chat_id, amount) VALUES ($1, $2)`, chatID, amount); err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddSpend(ctx context.Context, chatID int64, amount float64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO spends (chat_id, amount) VALUES ($1, $2)`, chatID, amount); err != nil {
		return fmt.Errorf("insert spend: %w", err)
	}
	return nil
}

// Operation is one recorded amount.
type Operation struct {
	ChatID    int64     `db:"chat_id"`
	Kind      Kind      `db:"kind"`
	Amount    float64   `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// MemoryStore keeps operations in process. Used when no database is
// configured.
type MemoryStore struct {
	mu  sync.Mutex
	ops []Operation
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AddIncome(_ context.Context, chatID int64, amount float64) error {
	s.add(chatID, Income, amount)
	return nil
}

func (s *MemoryStore) AddSpend(_ context.Context, chatID int64, amount float64) error {
	s.add(chatID, Spend, amount)
	return nil
}

func (s *MemoryStore) add(chatID int64, kind Kind, amount float64) {
	s.mu.Lock()
	s.ops = append(s.ops, Operation{ChatID: chatID, Kind: kind, Amount: amount, CreatedAt: time.Now()})
	s.mu.Unlock()
}

// Operations returns a copy of everything recorded so far.
func (s *MemoryStore) Operations() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Operation, len(s.ops))
	copy(out, s.ops)
	return out
}

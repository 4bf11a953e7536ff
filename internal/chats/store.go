// Package chats keeps the set of chats that have talked to the bot.
package chats

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Store is the active-chat set. Insert is idempotent.
type Store interface {
	Exists(ctx context.Context, chatID int64) (bool, error)
	Insert(ctx context.Context, chatID int64) error
	List(ctx context.Context) ([]int64, error)
}

// PostgresStore keeps chats in the active_chats table.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Exists(ctx context.Context, chatID int64) (bool, error) {
	var exists bool
	if err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM active_chats WHERE chat_id = $1)`, chatID); err != nil {
		return false, fmt.Errorf("active chat exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Insert(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO active_chats (chat_id) VALUES ($1) ON CONFLICT (chat_id) DO NOTHING`, chatID); err != nil {
		return fmt.Errorf("active chat insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT chat_id FROM active_chats ORDER BY chat_id`); err != nil {
		return nil, fmt.Errorf("active chat list: %w", err)
	}
	return ids, nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[int64]struct{})}
}

func (s *MemoryStore) Exists(_ context.Context, chatID int64) (bool, error) {
	s.mu.RLock()
	_, ok := s.ids[chatID]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStore) Insert(_ context.Context, chatID int64) error {
	s.mu.Lock()
	s.ids[chatID] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Set converts a list of ids into the recipient set used for broadcasts.
func Set(ids []int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

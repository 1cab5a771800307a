package repositories

import (
	"context"

	"gorm.io/gorm"
)

// GORMStore is a Store backed by a GORM connection.
type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore creates a new instance of GORMStore.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

func (s *GORMStore) Users() UserRepository   { return NewGORMUserRepository(s.db) }
func (s *GORMStore) Books() BookRepository   { return NewGORMBookRepository(s.db) }
func (s *GORMStore) Orders() OrderRepository { return NewGORMOrderRepository(s.db) }

// Transaction runs fn inside a database transaction; any error rolls it back.
func (s *GORMStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGORMStore(tx))
	})
}

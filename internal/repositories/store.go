package repositories

import "context"

// Store groups the repositories behind one lifecycle-scoped handle.
type Store interface {
	Users() UserRepository
	Books() BookRepository
	Orders() OrderRepository
	// Transaction runs fn against a transactional view of the store. If fn returns an
	// error every write made through that view is undone.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

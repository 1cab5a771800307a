package repositories

import (
	"context"
	"sync"
	"time"

	"pageturner/internal/models"
)

// MemoryStore is a Store kept entirely in process memory.
//
// Each write is atomic on its own. Transaction records an undo action for every
// successful write made through the transactional view and replays them in reverse
// when fn fails, so multi-book orders are all-or-nothing even without a database.
type MemoryStore struct {
	users  *MemoryUserRepository
	books  *MemoryBookRepository
	orders *MemoryOrderRepository
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	users := NewMemoryUserRepository()
	books := NewMemoryBookRepository()
	return &MemoryStore{
		users:  users,
		books:  books,
		orders: NewMemoryOrderRepository(users, books),
	}
}

func (s *MemoryStore) Users() UserRepository   { return s.users }
func (s *MemoryStore) Books() BookRepository   { return s.books }
func (s *MemoryStore) Orders() OrderRepository { return s.orders }

// Transaction runs fn and compensates its writes if it fails.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memoryTx is the transactional view handed to Transaction callbacks.
type memoryTx struct {
	store *MemoryStore
	mu    sync.Mutex
	undo  []func()
}

func (tx *memoryTx) record(undo func()) {
	tx.mu.Lock()
	tx.undo = append(tx.undo, undo)
	tx.mu.Unlock()
}

func (tx *memoryTx) rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memoryTx) Users() UserRepository   { return tx.store.users }
func (tx *memoryTx) Books() BookRepository   { return &journaledBooks{BookRepository: tx.store.books, repo: tx.store.books, tx: tx} }
func (tx *memoryTx) Orders() OrderRepository { return &journaledOrders{OrderRepository: tx.store.orders, repo: tx.store.orders, tx: tx} }

// Nested transactions join the outer one.
func (tx *memoryTx) Transaction(_ context.Context, fn func(tx Store) error) error {
	return fn(tx)
}

type journaledBooks struct {
	BookRepository
	repo *MemoryBookRepository
	tx   *memoryTx
}

func (j *journaledBooks) Create(ctx context.Context, book *models.Book) error {
	if err := j.repo.Create(ctx, book); err != nil {
		return err
	}
	id := book.ID
	j.tx.record(func() { _ = j.repo.Delete(context.Background(), id) })
	return nil
}

func (j *journaledBooks) Update(ctx context.Context, book *models.Book, fields ...string) error {
	prev, err := j.repo.GetByID(ctx, book.ID)
	if err != nil {
		return err
	}
	if err := j.repo.Update(ctx, book, fields...); err != nil {
		return err
	}
	j.tx.record(func() { _ = j.repo.Update(context.Background(), prev, fields...) })
	return nil
}

func (j *journaledBooks) Delete(ctx context.Context, id string) error {
	prev, err := j.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := j.repo.Delete(ctx, id); err != nil {
		return err
	}
	j.tx.record(func() { j.repo.restore(*prev) })
	return nil
}

func (j *journaledBooks) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	ok, err := j.repo.DecrementStock(ctx, id, quantity)
	if err != nil || !ok {
		return ok, err
	}
	j.tx.record(func() { _ = j.repo.IncrementStock(context.Background(), id, quantity) })
	return true, nil
}

func (j *journaledBooks) IncrementStock(ctx context.Context, id string, quantity int) error {
	if err := j.repo.IncrementStock(ctx, id, quantity); err != nil {
		return err
	}
	j.tx.record(func() { _, _ = j.repo.DecrementStock(context.Background(), id, quantity) })
	return nil
}

func (j *journaledBooks) AddReview(ctx context.Context, review *models.Review) error {
	if err := j.repo.AddReview(ctx, review); err != nil {
		return err
	}
	bookID, reviewID := review.BookID, review.ID
	j.tx.record(func() { j.repo.removeReview(bookID, reviewID) })
	return nil
}

type journaledOrders struct {
	OrderRepository
	repo *MemoryOrderRepository
	tx   *memoryTx
}

func (j *journaledOrders) Create(ctx context.Context, order *models.Order) error {
	if err := j.repo.Create(ctx, order); err != nil {
		return err
	}
	id := order.ID
	j.tx.record(func() { j.repo.remove(id) })
	return nil
}

func (j *journaledOrders) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus, deliveredAt *time.Time) (bool, error) {
	prev, ok := j.repo.transition(id, from, to, deliveredAt)
	if !ok {
		return false, nil
	}
	j.tx.record(func() { j.repo.revertStatus(prev, to) })
	return true, nil
}

func (j *journaledOrders) MarkPaid(_ context.Context, id string, paidAt time.Time, result models.PaymentResult) (bool, error) {
	prev, ok := j.repo.pay(id, paidAt, result)
	if !ok {
		return false, nil
	}
	j.tx.record(func() { j.repo.revertPayment(prev) })
	return true, nil
}

func (j *journaledOrders) Delete(ctx context.Context, id string) error {
	prev, err := j.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := j.repo.Delete(ctx, id); err != nil {
		return err
	}
	j.tx.record(func() { j.repo.restore(*prev) })
	return nil
}

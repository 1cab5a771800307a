package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pageturner/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryOrderRepository is an in-memory implementation of OrderRepository.
// User and book references are resolved against the sibling repositories on read.
type MemoryOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex

	users *MemoryUserRepository
	books *MemoryBookRepository
}

// NewMemoryOrderRepository creates a new instance of MemoryOrderRepository.
func NewMemoryOrderRepository(users *MemoryUserRepository, books *MemoryBookRepository) *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]models.Order),
		users:  users,
		books:  books,
	}
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	o.User = nil
	for i := range o.Items {
		o.Items[i].Book = nil
	}
	return o
}

func (r *MemoryOrderRepository) populate(ctx context.Context, o models.Order) models.Order {
	if r.users != nil {
		if u, err := r.users.GetByID(ctx, o.UserID); err == nil {
			o.User = u
		}
	}
	if r.books != nil {
		for i := range o.Items {
			if b, err := r.books.GetByID(ctx, o.Items[i].BookID); err == nil {
				b.Reviews = nil
				o.Items[i].Book = b
			}
		}
	}
	return o
}

func (r *MemoryOrderRepository) collect(ctx context.Context, keep func(models.Order) bool) []models.Order {
	r.mu.RLock()
	list := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if keep(o) {
			list = append(list, cloneOrder(o))
		}
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	for i := range list {
		list[i] = r.populate(ctx, list[i])
	}
	return list
}

// GetAll returns all orders, newest first.
func (r *MemoryOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	return r.collect(ctx, func(models.Order) bool { return true }), nil
}

// GetByUser returns the orders placed by userID.
func (r *MemoryOrderRepository) GetByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return r.collect(ctx, func(o models.Order) bool { return o.UserID == userID }), nil
}

// GetByID returns an order by its ID.
func (r *MemoryOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	order, ok := r.orders[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	order = r.populate(ctx, cloneOrder(order))
	return &order, nil
}

// Create adds a new order.
func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = cloneOrder(*order)
	return nil
}

// UpdateStatus changes the status when the order is still in from.
func (r *MemoryOrderRepository) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus, deliveredAt *time.Time) (bool, error) {
	_, ok := r.transition(id, from, to, deliveredAt)
	return ok, nil
}

// MarkPaid records a payment on any order that is not cancelled.
func (r *MemoryOrderRepository) MarkPaid(_ context.Context, id string, paidAt time.Time, result models.PaymentResult) (bool, error) {
	_, ok := r.pay(id, paidAt, result)
	return ok, nil
}

// transition is the check-and-set behind UpdateStatus. It returns the order as it was.
func (r *MemoryOrderRepository) transition(id string, from, to models.OrderStatus, deliveredAt *time.Time) (models.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.orders[id]
	if !ok || prev.Status != from {
		return models.Order{}, false
	}
	order := prev
	order.Status = to
	if deliveredAt != nil {
		at := *deliveredAt
		order.IsDelivered = true
		order.DeliveredAt = &at
	}
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return prev, true
}

func (r *MemoryOrderRepository) pay(id string, paidAt time.Time, result models.PaymentResult) (models.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.orders[id]
	if !ok || prev.Status == models.OrderStatusCancelled {
		return models.Order{}, false
	}
	order := prev
	order.IsPaid = true
	order.PaidAt = &paidAt
	order.PaymentResult = result
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return prev, true
}

// Delete removes an order by its ID.
func (r *MemoryOrderRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	delete(r.orders, id)
	return nil
}

// TotalSales sums the total price of paid orders.
func (r *MemoryOrderRepository) TotalSales(_ context.Context) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sum := decimal.Zero
	for _, o := range r.orders {
		if o.IsPaid {
			sum = sum.Add(o.TotalPrice)
		}
	}
	return sum, nil
}

// restore puts back a previous version of an order, used to undo writes.
func (r *MemoryOrderRepository) restore(order models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = cloneOrder(order)
}

// revertStatus undoes a transition made from prev, unless the order has moved on since.
func (r *MemoryOrderRepository) revertStatus(prev models.Order, to models.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[prev.ID]
	if !ok || order.Status != to {
		return
	}
	order.Status = prev.Status
	order.IsDelivered = prev.IsDelivered
	order.DeliveredAt = prev.DeliveredAt
	r.orders[prev.ID] = order
}

// revertPayment puts back the payment fields of prev.
func (r *MemoryOrderRepository) revertPayment(prev models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[prev.ID]
	if !ok {
		return
	}
	order.IsPaid = prev.IsPaid
	order.PaidAt = prev.PaidAt
	order.PaymentResult = prev.PaymentResult
	r.orders[prev.ID] = order
}

// remove deletes an order without reporting absence, used to undo creates.
func (r *MemoryOrderRepository) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
}

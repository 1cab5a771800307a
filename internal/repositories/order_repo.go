package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pageturner/internal/models"
)

// OrderRepository defines the interface for order data access.
// Reads resolve the user and book references of each order.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, order *models.Order) error
	// UpdateStatus moves the order from status from to status to, stamping the delivery
	// when deliveredAt is set. It reports false, without error, when the order is gone
	// or no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, deliveredAt *time.Time) (bool, error)
	// MarkPaid records a payment unless the order is cancelled or gone, which it reports as false.
	MarkPaid(ctx context.Context, id string, paidAt time.Time, result models.PaymentResult) (bool, error)
	Delete(ctx context.Context, id string) error
	// TotalSales sums the total price of paid orders.
	TotalSales(ctx context.Context) (decimal.Decimal, error)
}

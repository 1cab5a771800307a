package repositories

import (
	"context"
	"fmt"
	"time"

	"pageturner/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// populated preloads the user and each line item's book.
func (r *GORMOrderRepository) populated(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("User").
		Preload("Items").
		Preload("Items.Book")
}

// GetAll returns every order, newest first.
func (r *GORMOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.populated(ctx).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByUser returns the orders placed by userID, newest first.
func (r *GORMOrderRepository) GetByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.populated(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get orders of user %s: %w", userID, err)
	}
	return orders, nil
}

// GetByID returns a single order.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.populated(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, gormError(err, "order with ID %s", id)
	}
	return &order, nil
}

// Create inserts the order together with its line items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	if err := r.db.WithContext(ctx).Omit("User", "Items.Book").Create(order).Error; err != nil {
		return gormError(err, "failed to create order")
	}
	return nil
}

// UpdateStatus changes the status with a conditional UPDATE, so two writers racing
// from the same status cannot both win.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, deliveredAt *time.Time) (bool, error) {
	changes := map[string]any{"status": to}
	if deliveredAt != nil {
		changes["is_delivered"] = true
		changes["delivered_at"] = *deliveredAt
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(changes)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update status of order %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkPaid writes only the payment columns.
func (r *GORMOrderRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time, result models.PaymentResult) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status <> ?", id, models.OrderStatusCancelled).
		Updates(map[string]any{
			"is_paid":                true,
			"paid_at":                paidAt,
			"payment_transaction_id": result.TransactionID,
			"payment_status":         result.Status,
			"payment_update_time":    result.UpdateTime,
			"payment_email_address":  result.EmailAddress,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark order %s paid: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes an order and its line items.
func (r *GORMOrderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete items of order %s: %w", id, err)
		}
		return nil
	})
}

// TotalSales sums total_price over paid orders.
func (r *GORMOrderRepository) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	row := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("SUM(total_price)").
		Where("is_paid = ?", true).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute total sales: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal.Round(2), nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pageturner/internal/apperror"
	"pageturner/internal/models"
	"pageturner/internal/repositories"
	"pageturner/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Routing keys of the order events.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

// EventPublisher delivers domain events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// OrderEvent is the body of every order event.
type OrderEvent struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"orderId"`
	UserID     string             `json:"userId"`
	Status     models.OrderStatus `json:"status"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// OrderLine is one requested book and quantity.
type OrderLine struct {
	Book     string `json:"book" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

// PlaceOrderRequest is the checkout payload.
type PlaceOrderRequest struct {
	Items           []OrderLine            `json:"items" validate:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"omitempty,oneof='Credit Card' PayPal Stripe"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	store     repositories.Store
	publisher EventPublisher
	pricing   models.Pricing
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewOrderService creates a new OrderService. publisher may be nil, which disables events.
func NewOrderService(store repositories.Store, publisher EventPublisher, pricing models.Pricing, log logrus.FieldLogger) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
		pricing:   pricing,
		log:       log,
		now:       time.Now,
	}
}

// PlaceOrder reserves stock for every line and records the order, all or nothing.
func (s *OrderService) PlaceOrder(ctx context.Context, user *models.User, req PlaceOrderRequest) (*models.Order, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          user.ID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Status:          models.OrderStatusPending,
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		books := make([]*models.Book, len(req.Items))
		for i, line := range req.Items {
			book, err := tx.Books().GetByID(ctx, line.Book)
			if err != nil {
				return notFound(err, "Book not found: %s", line.Book)
			}
			if book.StockQuantity < line.Quantity {
				return apperror.InsufficientStock(book.Title, book.StockQuantity, line.Quantity)
			}
			books[i] = book
		}

		order.Items = make([]models.OrderItem, len(req.Items))
		for i, line := range req.Items {
			order.Items[i] = models.OrderItem{
				BookID:   books[i].ID,
				Quantity: line.Quantity,
				Price:    decimal.NewFromFloat(books[i].Price).Round(2),
			}
		}
		s.pricing.Apply(order)

		for i, line := range req.Items {
			ok, err := tx.Books().DecrementStock(ctx, line.Book, line.Quantity)
			if err != nil {
				return fmt.Errorf("failed to reserve stock: %w", err)
			}
			if !ok {
				available := 0
				if current, err := tx.Books().GetByID(ctx, line.Book); err == nil {
					available = current.StockQuantity
				}
				return apperror.InsufficientStock(books[i].Title, available, line.Quantity)
			}
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  user.ID,
		"total":    order.TotalPrice.StringFixed(2),
	}).Info("order placed")
	s.publish(ctx, EventOrderCreated, order)

	created, err := s.store.Orders().GetByID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load created order: %w", err)
	}
	return created, nil
}

// ListOrders returns every order, newest first.
func (s *OrderService) ListOrders(ctx context.Context, actor *models.User) ([]models.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	orders, err := s.store.Orders().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return nonNil(orders), nil
}

// ListMyOrders returns the orders placed by user.
func (s *OrderService) ListMyOrders(ctx context.Context, user *models.User) ([]models.Order, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	orders, err := s.store.Orders().GetByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders of user %s: %w", user.ID, err)
	}
	return nonNil(orders), nil
}

// GetOrder returns an order to its owner or an admin.
func (s *OrderService) GetOrder(ctx context.Context, requester *models.User, id string) (*models.Order, error) {
	if err := requireUser(requester); err != nil {
		return nil, err
	}
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Order not found")
	}
	if !requester.IsAdmin && !order.OwnedBy(requester.ID) {
		return nil, apperror.AccessDenied("Not authorized to view this order")
	}
	return order, nil
}

// UpdateOrderStatus moves an order along its lifecycle. Cancelling returns the items to stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor *models.User, id, status string) (*models.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	next, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, apperror.Validation("Invalid order status", map[string]string{"status": err.Error()})
	}

	changed := false
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "Order not found")
		}
		if order.Status == next {
			return nil
		}
		if !order.Status.CanTransitionTo(next) {
			return apperror.Validationf("Cannot change order status from %s to %s", order.Status, next)
		}

		var deliveredAt *time.Time
		if next == models.OrderStatusDelivered {
			now := s.now()
			deliveredAt = &now
		}
		// The status write goes first: only the request that moved the order out of
		// its current status may restock it.
		ok, err := tx.Orders().UpdateStatus(ctx, id, order.Status, next, deliveredAt)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if !ok {
			return apperror.Conflictf("Order status changed while updating, reload and retry")
		}
		if next == models.OrderStatusCancelled {
			if err := s.restock(ctx, tx, order); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Order not found")
	}
	if changed {
		s.log.WithFields(logrus.Fields{"order_id": id, "status": next}).Info("order status changed")
		s.publish(ctx, EventOrderStatusChanged, updated)
	}
	return updated, nil
}

func (s *OrderService) restock(ctx context.Context, tx repositories.Store, order *models.Order) error {
	for _, item := range order.Items {
		err := tx.Books().IncrementStock(ctx, item.BookID, item.Quantity)
		if errors.Is(err, repositories.ErrNotFound) {
			s.log.WithFields(logrus.Fields{"order_id": order.ID, "book_id": item.BookID}).
				Warn("cannot restock removed book")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to restock book %s: %w", item.BookID, err)
		}
	}
	return nil
}

// MarkPaid records the payment provider's result on an order.
func (s *OrderService) MarkPaid(ctx context.Context, actor *models.User, id string, result models.PaymentResult) (*models.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "Order not found")
		}
		if order.Status == models.OrderStatusCancelled {
			return apperror.Validationf("Cancelled orders cannot be paid")
		}
		ok, err := tx.Orders().MarkPaid(ctx, id, s.now(), result)
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		if !ok {
			// cancelled after the read
			return apperror.Validationf("Cancelled orders cannot be paid")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Order not found")
	}
	s.log.WithField("order_id", id).Info("order paid")
	return order, nil
}

// DeleteOrder removes an order. Stock is not returned.
func (s *OrderService) DeleteOrder(ctx context.Context, actor *models.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return notFound(err, "Order not found")
	}
	if err := s.store.Orders().Delete(ctx, id); err != nil {
		return notFound(err, "Order not found")
	}
	s.log.WithField("order_id", id).Info("order deleted")
	s.publish(ctx, EventOrderDeleted, order)
	return nil
}

// TotalSales sums the totals of paid orders.
func (s *OrderService) TotalSales(ctx context.Context, actor *models.User) (decimal.Decimal, error) {
	if err := requireAdmin(actor); err != nil {
		return decimal.Zero, err
	}
	total, err := s.store.Orders().TotalSales(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute total sales: %w", err)
	}
	return total.Round(2), nil
}

// publish is best-effort: a broker failure never fails the order operation.
func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	event := OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), eventType, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"order_id": order.ID, "event": eventType}).
			Warn("failed to publish order event")
	}
}

func nonNil(orders []models.Order) []models.Order {
	if orders == nil {
		return []models.Order{}
	}
	return orders
}

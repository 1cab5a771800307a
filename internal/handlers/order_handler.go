package handlers

import (
	"pageturner/internal/middleware"
	"pageturner/internal/models"
	"pageturner/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
	gate    *middleware.Gate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, gate *middleware.Gate) *OrderHandler {
	return &OrderHandler{
		service: service,
		gate:    gate,
	}
}

// RegisterRoutes registers the order routes with the Fiber app. Every route needs a token.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders", h.gate.RequireAuth)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", h.gate.RequireAdmin, h.HandleGetOrders)
	orderRoutes.Get("/myorders", h.HandleGetMyOrders)
	orderRoutes.Get("/stats/sales", h.gate.RequireAdmin, h.HandleTotalSales)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/status", h.gate.RequireAdmin, h.HandleUpdateOrderStatus)
	orderRoutes.Put("/:id/pay", h.gate.RequireAdmin, h.HandleMarkPaid)
	orderRoutes.Delete("/:id", h.gate.RequireAdmin, h.HandleDeleteOrder)
}

// HandleCreateOrder places an order for the current user.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.PlaceOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.service.PlaceOrder(c.UserContext(), middleware.CurrentUser(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleGetOrders retrieves all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListMyOrders(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order. Only its owner and admins may see it.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), middleware.CurrentUser(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var updateData struct {
		Status string `json:"status"`
	}
	if err := parseBody(c, &updateData); err != nil {
		return err
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), updateData.Status)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleMarkPaid(c *fiber.Ctx) error {
	var result models.PaymentResult
	if err := parseBody(c, &result); err != nil {
		return err
	}

	order, err := h.service.MarkPaid(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), result)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	if err := h.service.DeleteOrder(c.UserContext(), middleware.CurrentUser(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Order removed"})
}

func (h *OrderHandler) HandleTotalSales(c *fiber.Ctx) error {
	total, err := h.service.TotalSales(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"totalSales": total})
}

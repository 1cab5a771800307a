package handlers

import (
	"pageturner/internal/middleware"
	"pageturner/internal/services"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles HTTP requests for the catalog.
type BookHandler struct {
	service *services.CatalogService
	gate    *middleware.Gate
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(service *services.CatalogService, gate *middleware.Gate) *BookHandler {
	return &BookHandler{
		service: service,
		gate:    gate,
	}
}

// RegisterRoutes registers the book routes with the Fiber app.
func (h *BookHandler) RegisterRoutes(router fiber.Router) {
	books := router.Group("/books")
	books.Get("/", h.HandleListBooks)
	books.Get("/search", h.HandleSearch)
	books.Get("/:id", h.HandleGetBook)
	books.Post("/", h.gate.RequireAuth, h.gate.RequireAdmin, h.HandleCreateBook)
	books.Put("/:id", h.gate.RequireAuth, h.gate.RequireAdmin, h.HandleUpdateBook)
	books.Delete("/:id", h.gate.RequireAuth, h.gate.RequireAdmin, h.HandleDeleteBook)
	books.Post("/:id/reviews", h.gate.RequireAuth, h.HandleAddReview)
}

// HandleListBooks returns one page of the catalog.
// Missing or malformed page and limit fall back to their defaults.
func (h *BookHandler) HandleListBooks(c *fiber.Ctx) error {
	list, err := h.service.ListBooks(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// HandleSearch proxies a search to Open Library.
func (h *BookHandler) HandleSearch(c *fiber.Ctx) error {
	results, err := h.service.SearchExternal(c.UserContext(), c.Query("q"), c.QueryInt("limit", 10))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"results": results})
}

func (h *BookHandler) HandleGetBook(c *fiber.Ctx) error {
	book, err := h.service.GetBook(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(book)
}

func (h *BookHandler) HandleCreateBook(c *fiber.Ctx) error {
	var req services.CreateBookRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	book, err := h.service.CreateBook(c.UserContext(), middleware.CurrentUser(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(book)
}

func (h *BookHandler) HandleUpdateBook(c *fiber.Ctx) error {
	var req services.UpdateBookRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	book, err := h.service.UpdateBook(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(book)
}

func (h *BookHandler) HandleDeleteBook(c *fiber.Ctx) error {
	if err := h.service.DeleteBook(c.UserContext(), middleware.CurrentUser(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Book removed"})
}

// HandleAddReview records the current user's review and returns the updated book.
func (h *BookHandler) HandleAddReview(c *fiber.Ctx) error {
	var req services.ReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	book, err := h.service.AddReview(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(book)
}

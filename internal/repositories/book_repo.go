package repositories

import (
	"context"

	"pageturner/internal/models"
)

// BookRepository defines the interface for catalog data access.
type BookRepository interface {
	// List returns a page of books, newest first, and the total number of books.
	List(ctx context.Context, offset, limit int) ([]models.Book, int64, error)
	GetByID(ctx context.Context, id string) (*models.Book, error)
	GetByISBN(ctx context.Context, isbn string) (*models.Book, error)
	Create(ctx context.Context, book *models.Book) error
	// Update writes the named fields of book (Go field names) and leaves the others as stored.
	Update(ctx context.Context, book *models.Book, fields ...string) error
	Delete(ctx context.Context, id string) error

	// DecrementStock atomically subtracts quantity when at least quantity is in stock.
	// It reports false, without error, when stock is insufficient or the book is gone.
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id string, quantity int) error

	// AddReview stores the review and refreshes the book's average rating.
	AddReview(ctx context.Context, review *models.Review) error
}

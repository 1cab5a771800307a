package repositories

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"pageturner/internal/models"

	"github.com/google/uuid"
)

// MemoryBookRepository is an in-memory implementation of BookRepository.
type MemoryBookRepository struct {
	books map[string]models.Book
	mu    sync.RWMutex
}

// NewMemoryBookRepository creates a new instance of MemoryBookRepository.
func NewMemoryBookRepository() *MemoryBookRepository {
	return &MemoryBookRepository{
		books: make(map[string]models.Book),
	}
}

func cloneBook(b models.Book) models.Book {
	if b.Reviews != nil {
		b.Reviews = append([]models.Review(nil), b.Reviews...)
	}
	return b
}

// List returns one page of books, newest first.
func (r *MemoryBookRepository) List(_ context.Context, offset, limit int) ([]models.Book, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]models.Book, 0, len(r.books))
	for _, b := range r.books {
		b.Reviews = nil
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []models.Book{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// GetByID returns a book by its ID.
func (r *MemoryBookRepository) GetByID(_ context.Context, id string) (*models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[id]
	if !ok {
		return nil, fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	book = cloneBook(book)
	return &book, nil
}

// GetByISBN returns a book by its ISBN.
func (r *MemoryBookRepository) GetByISBN(_ context.Context, isbn string) (*models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.books {
		if b.ISBN == isbn {
			b = cloneBook(b)
			return &b, nil
		}
	}
	return nil, fmt.Errorf("book with ISBN %s: %w", isbn, ErrNotFound)
}

// Create adds a new book, enforcing ISBN uniqueness.
func (r *MemoryBookRepository) Create(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkISBN(book.ID, book.ISBN); err != nil {
		return err
	}
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	r.books[book.ID] = cloneBook(*book)
	return nil
}

// Update copies the named fields of book onto the stored copy.
func (r *MemoryBookRepository) Update(_ context.Context, book *models.Book, fields ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.books[book.ID]
	if !ok {
		return fmt.Errorf("book with ID %s: %w", book.ID, ErrNotFound)
	}
	if slices.Contains(fields, "ISBN") {
		if err := r.checkISBN(book.ID, book.ISBN); err != nil {
			return err
		}
	}
	if err := copyBookFields(&existing, book, fields); err != nil {
		return err
	}
	existing.UpdatedAt = time.Now()
	r.books[book.ID] = existing
	book.UpdatedAt = existing.UpdatedAt
	return nil
}

func copyBookFields(dst, src *models.Book, fields []string) error {
	for _, field := range fields {
		switch field {
		case "Title":
			dst.Title = src.Title
		case "Author":
			dst.Author = src.Author
		case "Description":
			dst.Description = src.Description
		case "Price":
			dst.Price = src.Price
		case "ISBN":
			dst.ISBN = src.ISBN
		case "CoverImage":
			dst.CoverImage = src.CoverImage
		case "Category":
			dst.Category = src.Category
		case "StockQuantity":
			dst.StockQuantity = src.StockQuantity
		case "Publisher":
			dst.Publisher = src.Publisher
		case "PublicationDate":
			dst.PublicationDate = src.PublicationDate
		case "PublicationYear":
			dst.PublicationYear = src.PublicationYear
		case "Language":
			dst.Language = src.Language
		case "Pages":
			dst.Pages = src.Pages
		case "Featured":
			dst.Featured = src.Featured
		default:
			return fmt.Errorf("book field %q cannot be updated", field)
		}
	}
	return nil
}

// checkISBN must be called with the write lock held.
func (r *MemoryBookRepository) checkISBN(id, isbn string) error {
	for _, b := range r.books {
		if b.ISBN == isbn && b.ID != id {
			return fmt.Errorf("book with ISBN %s: %w", isbn, ErrDuplicate)
		}
	}
	return nil
}

// Delete removes a book by its ID.
func (r *MemoryBookRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.books[id]; !ok {
		return fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	delete(r.books, id)
	return nil
}

// DecrementStock checks and subtracts under the write lock.
func (r *MemoryBookRepository) DecrementStock(_ context.Context, id string, quantity int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok || book.StockQuantity < quantity {
		return false, nil
	}
	book.StockQuantity -= quantity
	r.books[id] = book
	return true, nil
}

// IncrementStock adds quantity units back to stock.
func (r *MemoryBookRepository) IncrementStock(_ context.Context, id string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	book.StockQuantity += quantity
	r.books[id] = book
	return nil
}

// AddReview appends a review and recomputes the rating.
func (r *MemoryBookRepository) AddReview(_ context.Context, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[review.BookID]
	if !ok {
		return fmt.Errorf("book with ID %s: %w", review.BookID, ErrNotFound)
	}
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	review.CreatedAt = time.Now()
	book = cloneBook(book)
	book.Reviews = append(book.Reviews, *review)
	book.Rating = models.AverageRating(book.Reviews)
	r.books[book.ID] = book
	return nil
}

// removeReview is the undo of AddReview.
func (r *MemoryBookRepository) removeReview(bookID, reviewID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[bookID]
	if !ok {
		return
	}
	kept := make([]models.Review, 0, len(book.Reviews))
	for _, rv := range book.Reviews {
		if rv.ID != reviewID {
			kept = append(kept, rv)
		}
	}
	book.Reviews = kept
	book.Rating = models.AverageRating(kept)
	r.books[bookID] = book
}

// restore puts back a previous version of a book, used to undo writes.
func (r *MemoryBookRepository) restore(book models.Book) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[book.ID] = cloneBook(book)
}

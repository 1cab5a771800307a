package repositories

import (
	"context"
	"fmt"

	"pageturner/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMBookRepository is a GORM implementation of BookRepository.
type GORMBookRepository struct {
	db *gorm.DB
}

// NewGORMBookRepository creates a new instance of GORMBookRepository.
func NewGORMBookRepository(db *gorm.DB) *GORMBookRepository {
	return &GORMBookRepository{
		db: db,
	}
}

// List retrieves one page of books, newest first.
func (r *GORMBookRepository) List(ctx context.Context, offset, limit int) ([]models.Book, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Book{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count books: %w", err)
	}

	books := make([]models.Book, 0, limit)
	if err := db.Order("created_at DESC").Order("id").Offset(offset).Limit(limit).Find(&books).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list books: %w", err)
	}
	return books, total, nil
}

// GetByID retrieves a single book, with its reviews, by its ID.
func (r *GORMBookRepository) GetByID(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).
		Preload("Reviews", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&book, "id = ?", id).Error
	if err != nil {
		return nil, gormError(err, "book with ID %s", id)
	}
	return &book, nil
}

// GetByISBN retrieves a single book by its ISBN.
func (r *GORMBookRepository) GetByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "isbn = ?", isbn).Error; err != nil {
		return nil, gormError(err, "book with ISBN %s", isbn)
	}
	return &book, nil
}

// Create creates a new book in the database.
func (r *GORMBookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Omit("Reviews").Create(book).Error; err != nil {
		return gormError(err, "failed to create book %s", book.ISBN)
	}
	return nil
}

// Update writes only the named fields. stock_quantity is written only when StockQuantity is named.
func (r *GORMBookRepository) Update(ctx context.Context, book *models.Book, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(book).Select(fields).Updates(book)
	if res.Error != nil {
		return gormError(res.Error, "failed to update book %s", book.ID)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book with ID %s: %w", book.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a book and its reviews.
func (r *GORMBookRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Book{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete book: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
		}
		if err := tx.Where("book_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return fmt.Errorf("failed to delete reviews of book %s: %w", id, err)
		}
		return nil
	})
}

// DecrementStock issues a single conditional UPDATE so concurrent orders cannot oversell.
func (r *GORMBookRepository) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return false, fmt.Errorf("failed to decrement stock of book %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// IncrementStock returns quantity units to stock.
func (r *GORMBookRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	res := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", id).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to increment stock of book %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddReview inserts the review and recomputes the book rating from all of its reviews.
func (r *GORMBookRepository) AddReview(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(review).Error; err != nil {
			return gormError(err, "failed to create review for book %s", review.BookID)
		}
		var reviews []models.Review
		if err := tx.Select("rating").Where("book_id = ?", review.BookID).Find(&reviews).Error; err != nil {
			return fmt.Errorf("failed to load reviews of book %s: %w", review.BookID, err)
		}
		res := tx.Model(&models.Book{}).Where("id = ?", review.BookID).
			UpdateColumn("rating", models.AverageRating(reviews))
		if res.Error != nil {
			return fmt.Errorf("failed to update rating of book %s: %w", review.BookID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("book with ID %s: %w", review.BookID, ErrNotFound)
		}
		return nil
	})
}

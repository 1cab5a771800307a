package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pageturner/internal/apperror"
	"pageturner/internal/models"
	"pageturner/internal/openlibrary"
	"pageturner/internal/repositories"
	"pageturner/internal/validation"

	"github.com/sirupsen/logrus"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

// MetadataFetcher looks up book metadata from an external catalog.
type MetadataFetcher interface {
	FetchByISBN(ctx context.Context, isbn string) (*openlibrary.Metadata, error)
	Search(ctx context.Context, query string, limit int) []openlibrary.SearchResult
}

// BookList is one page of the catalog.
type BookList struct {
	Books       []models.Book `json:"books"`
	CurrentPage int           `json:"currentPage"`
	TotalPages  int           `json:"totalPages"`
	TotalBooks  int64         `json:"totalBooks"`
}

// CreateBookRequest is the payload for adding a book.
// Price and stock are pointers so that a missing value is told apart from zero.
type CreateBookRequest struct {
	Title           string     `json:"title" validate:"required"`
	Author          string     `json:"author" validate:"required"`
	Description     string     `json:"description" validate:"required"`
	Price           *float64   `json:"price" validate:"required,gte=0"`
	ISBN            string     `json:"isbn" validate:"required"`
	CoverImage      string     `json:"coverImage"`
	Category        string     `json:"category" validate:"required"`
	StockQuantity   *int       `json:"stockQuantity" validate:"required,gte=0"`
	Publisher       string     `json:"publisher"`
	PublicationDate *time.Time `json:"publicationDate"`
	PublicationYear int        `json:"publicationYear"`
	Language        string     `json:"language"`
	Pages           int        `json:"pages"`
	Featured        bool       `json:"featured"`
}

// UpdateBookRequest carries only the fields a client sent.
type UpdateBookRequest struct {
	Title           *string    `json:"title"`
	Author          *string    `json:"author"`
	Description     *string    `json:"description"`
	Price           *float64   `json:"price"`
	ISBN            *string    `json:"isbn"`
	CoverImage      *string    `json:"coverImage"`
	Category        *string    `json:"category"`
	StockQuantity   *int       `json:"stockQuantity"`
	Publisher       *string    `json:"publisher"`
	PublicationDate *time.Time `json:"publicationDate"`
	PublicationYear *int       `json:"publicationYear"`
	Language        *string    `json:"language"`
	Pages           *int       `json:"pages"`
	Featured        *bool      `json:"featured"`
}

// ReviewRequest is the payload for reviewing a book.
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

// CatalogService handles business logic related to books.
type CatalogService struct {
	store       repositories.Store
	metadata    MetadataFetcher
	maxLimit    int
	log         logrus.FieldLogger
	placeholder string
}

// CatalogOption configures a CatalogService.
type CatalogOption func(*CatalogService)

// WithPlaceholderCover sets the cover given to books created without one.
func WithPlaceholderCover(url string) CatalogOption {
	return func(s *CatalogService) { s.placeholder = url }
}

// NewCatalogService creates a new CatalogService. metadata may be nil, which disables enrichment.
func NewCatalogService(store repositories.Store, metadata MetadataFetcher, maxLimit int, log logrus.FieldLogger, opts ...CatalogOption) *CatalogService {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	s := &CatalogService{
		store:       store,
		metadata:    metadata,
		maxLimit:    maxLimit,
		log:         log,
		placeholder: openlibrary.PlaceholderCover(openlibrary.DefaultCoversURL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListBooks returns one page of books, newest first.
// Non-positive page or limit fall back to 1 and 10; limit is capped.
func (s *CatalogService) ListBooks(ctx context.Context, page, limit int) (*BookList, error) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	books, total, err := s.store.Books().List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	if books == nil {
		books = []models.Book{}
	}
	return &BookList{
		Books:       books,
		CurrentPage: page,
		TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
		TotalBooks:  total,
	}, nil
}

// GetBook returns a book with its reviews.
func (s *CatalogService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.store.Books().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Book not found")
	}
	if book.Reviews == nil {
		book.Reviews = []models.Review{}
	}
	return book, nil
}

// CreateBook adds a book to the catalog, filling blank optional fields from external metadata.
func (s *CatalogService) CreateBook(ctx context.Context, actor *models.User, req CreateBookRequest) (*models.Book, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:           strings.TrimSpace(req.Title),
		Author:          strings.TrimSpace(req.Author),
		Description:     req.Description,
		Price:           *req.Price,
		ISBN:            strings.TrimSpace(req.ISBN),
		CoverImage:      req.CoverImage,
		Category:        req.Category,
		StockQuantity:   *req.StockQuantity,
		Publisher:       req.Publisher,
		PublicationDate: req.PublicationDate,
		PublicationYear: req.PublicationYear,
		Language:        req.Language,
		Pages:           req.Pages,
		Featured:        req.Featured,
	}
	s.enrich(ctx, book)
	if book.CoverImage == "" {
		book.CoverImage = s.placeholder
	}

	if err := validation.Struct(book); err != nil {
		return nil, err
	}

	if err := s.store.Books().Create(ctx, book); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, duplicateISBN()
		}
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	book.Reviews = []models.Review{}

	s.log.WithFields(logrus.Fields{"book_id": book.ID, "isbn": book.ISBN}).Info("book created")
	return book, nil
}

// enrich fills blank fields from the metadata service. Failures leave the book as is.
func (s *CatalogService) enrich(ctx context.Context, book *models.Book) {
	if s.metadata == nil {
		return
	}
	meta, err := s.metadata.FetchByISBN(ctx, book.ISBN)
	if err != nil || meta == nil {
		s.log.WithError(err).WithField("isbn", book.ISBN).Info("no external metadata for book")
		return
	}

	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&book.Title, meta.Title)
	fill(&book.Author, meta.Author)
	fill(&book.Description, meta.Description)
	fill(&book.CoverImage, meta.CoverImage)
	fill(&book.Publisher, meta.Publisher)
	fill(&book.Category, meta.Category)
	if book.PublicationYear == 0 {
		book.PublicationYear = meta.PublicationYear
	}
	if book.Pages == 0 {
		book.Pages = meta.Pages
	}
}

// UpdateBook applies the supplied fields to an existing book.
func (s *CatalogService) UpdateBook(ctx context.Context, actor *models.User, id string, req UpdateBookRequest) (*models.Book, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	book, err := s.store.Books().GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Book not found")
	}
	fields := applyBookPatch(book, req)

	if err := validation.Struct(book); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return s.GetBook(ctx, id)
	}

	if req.ISBN != nil {
		other, err := s.store.Books().GetByISBN(ctx, book.ISBN)
		switch {
		case err == nil && other.ID != book.ID:
			return nil, duplicateISBN()
		case err != nil && !errors.Is(err, repositories.ErrNotFound):
			return nil, fmt.Errorf("failed to check isbn: %w", err)
		}
	}

	if err := s.store.Books().Update(ctx, book, fields...); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, duplicateISBN()
		}
		return nil, notFound(err, "Book not found")
	}
	return s.GetBook(ctx, id)
}

// applyBookPatch copies the supplied values onto book and returns the names of the fields it set.
func applyBookPatch(book *models.Book, req UpdateBookRequest) []string {
	var fields []string
	setString := func(name string, dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
			fields = append(fields, name)
		}
	}
	setString("Title", &book.Title, req.Title)
	setString("Author", &book.Author, req.Author)
	setString("ISBN", &book.ISBN, req.ISBN)
	setString("CoverImage", &book.CoverImage, req.CoverImage)
	setString("Category", &book.Category, req.Category)
	setString("Publisher", &book.Publisher, req.Publisher)
	setString("Language", &book.Language, req.Language)
	if req.Description != nil {
		book.Description = *req.Description
		fields = append(fields, "Description")
	}
	if req.Price != nil {
		book.Price = *req.Price
		fields = append(fields, "Price")
	}
	if req.StockQuantity != nil {
		book.StockQuantity = *req.StockQuantity
		fields = append(fields, "StockQuantity")
	}
	if req.PublicationDate != nil {
		book.PublicationDate = req.PublicationDate
		fields = append(fields, "PublicationDate")
	}
	if req.PublicationYear != nil {
		book.PublicationYear = *req.PublicationYear
		fields = append(fields, "PublicationYear")
	}
	if req.Pages != nil {
		book.Pages = *req.Pages
		fields = append(fields, "Pages")
	}
	if req.Featured != nil {
		book.Featured = *req.Featured
		fields = append(fields, "Featured")
	}
	return fields
}

// DeleteBook removes a book and its reviews.
func (s *CatalogService) DeleteBook(ctx context.Context, actor *models.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.Books().Delete(ctx, id); err != nil {
		return notFound(err, "Book not found")
	}
	s.log.WithField("book_id", id).Info("book deleted")
	return nil
}

// AddReview records a review by user. Each user reviews a book at most once.
func (s *CatalogService) AddReview(ctx context.Context, user *models.User, bookID string, req ReviewRequest) (*models.Book, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		book, err := tx.Books().GetByID(ctx, bookID)
		if err != nil {
			return notFound(err, "Book not found")
		}
		if book.HasReviewFrom(user.ID) {
			return apperror.Conflictf("Book already reviewed")
		}
		review := &models.Review{
			BookID:  book.ID,
			UserID:  user.ID,
			Name:    user.Name,
			Rating:  req.Rating,
			Comment: req.Comment,
		}
		if err := tx.Books().AddReview(ctx, review); err != nil {
			return notFound(err, "Book not found")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetBook(ctx, bookID)
}

// SearchExternal proxies a free-text search to the metadata service.
func (s *CatalogService) SearchExternal(ctx context.Context, query string, limit int) ([]openlibrary.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Validation("Search query is required", map[string]string{"q": "is required"})
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if s.metadata == nil {
		return []openlibrary.SearchResult{}, nil
	}
	return s.metadata.Search(ctx, query, limit), nil
}

func duplicateISBN() error {
	return apperror.Validation("Book with this ISBN already exists", map[string]string{"isbn": "already exists"})
}

package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"pageturner/internal/apperror"
	"pageturner/internal/logger"
	"pageturner/internal/models"
	"pageturner/internal/openlibrary"
	"pageturner/internal/repositories"
	"pageturner/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMetadataFetcher is a mock implementation of services.MetadataFetcher
type MockMetadataFetcher struct {
	mock.Mock
}

func (m *MockMetadataFetcher) FetchByISBN(ctx context.Context, isbn string) (*openlibrary.Metadata, error) {
	args := m.Called(ctx, isbn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openlibrary.Metadata), args.Error(1)
}

func (m *MockMetadataFetcher) Search(ctx context.Context, query string, limit int) []openlibrary.SearchResult {
	args := m.Called(ctx, query, limit)
	return args.Get(0).([]openlibrary.SearchResult)
}

func validCreateRequest(isbn string) services.CreateBookRequest {
	return services.CreateBookRequest{
		Title:         "Dune",
		Author:        "Frank Herbert",
		Description:   "Spice",
		Price:         ptr(9.99),
		ISBN:          isbn,
		Category:      models.CategoryFiction,
		StockQuantity: ptr(4),
	}
}

func TestCatalogService_ListBooksPagination(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := services.NewCatalogService(store, nil, 100, logger.Discard())
			for i := 0; i < 12; i++ {
				seedBook(t, store, fmt.Sprintf("%010d", i), 10, 1)
			}

			page, err := svc.ListBooks(ctx, 2, 5)
			require.NoError(t, err)
			assert.Len(t, page.Books, 5)
			assert.Equal(t, 2, page.CurrentPage)
			assert.Equal(t, 3, page.TotalPages)
			assert.EqualValues(t, 12, page.TotalBooks)

			page, err = svc.ListBooks(ctx, 0, -1)
			require.NoError(t, err)
			assert.Equal(t, 1, page.CurrentPage)
			assert.Len(t, page.Books, 10)

			page, err = svc.ListBooks(ctx, 9, 5)
			require.NoError(t, err)
			assert.Empty(t, page.Books)
			assert.NotNil(t, page.Books)
		})
	}
}

func TestCatalogService_ListBooksCapsLimit(t *testing.T) {
	store := testStores(t)["memory"]
	svc := services.NewCatalogService(store, nil, 3, logger.Discard())
	for i := 0; i < 5; i++ {
		seedBook(t, store, fmt.Sprintf("%010d", i), 10, 1)
	}

	page, err := svc.ListBooks(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Len(t, page.Books, 3)
	assert.Equal(t, 2, page.TotalPages)
}

func TestCatalogService_CreateBook(t *testing.T) {
	ctx := context.Background()
	store := testStores(t)["memory"]
	fetcher := new(MockMetadataFetcher)
	svc := services.NewCatalogService(store, fetcher, 100, logger.Discard())

	fetcher.On("FetchByISBN", ctx, "9780441172719").Return(&openlibrary.Metadata{
		Title:           "Ignored Title",
		Author:          "Ignored Author",
		Description:     "Ignored",
		CoverImage:      "https://covers.test/b/id/1-M.jpg",
		Publisher:       "Ace",
		PublicationYear: 1990,
		Pages:           535,
		Category:        models.CategoryOther,
	}, nil).Once()

	book, err := svc.CreateBook(ctx, admin, validCreateRequest("9780441172719"))
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "Dune", book.Title, "request fields win")
	assert.Equal(t, "Frank Herbert", book.Author)
	assert.Equal(t, models.CategoryFiction, book.Category)
	assert.Equal(t, "https://covers.test/b/id/1-M.jpg", book.CoverImage, "blanks are filled")
	assert.Equal(t, "Ace", book.Publisher)
	assert.Equal(t, 1990, book.PublicationYear)
	assert.Equal(t, 535, book.Pages)
	fetcher.AssertExpectations(t)

	fetcher.On("FetchByISBN", ctx, "9780441172719").Return(nil, errors.New("offline")).Once()
	_, err = svc.CreateBook(ctx, admin, validCreateRequest("9780441172719"))
	require.True(t, apperror.IsKind(err, apperror.KindValidation), "duplicate ISBN")
}

func TestCatalogService_CreateBookWithoutMetadata(t *testing.T) {
	ctx := context.Background()
	store := testStores(t)["memory"]
	fetcher := new(MockMetadataFetcher)
	svc := services.NewCatalogService(store, fetcher, 100, logger.Discard())

	fetcher.On("FetchByISBN", ctx, "0-306-40615-2").Return(nil, errors.New("status 404")).Once()
	book, err := svc.CreateBook(ctx, admin, validCreateRequest("0-306-40615-2"))
	require.NoError(t, err)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/-1-M.jpg", book.CoverImage)
	assert.Equal(t, 4, book.StockQuantity)

	mirrored := services.NewCatalogService(store, nil, 100, logger.Discard(),
		services.WithPlaceholderCover("https://covers.example.com/b/id/-1-M.jpg"))
	book, err = mirrored.CreateBook(ctx, admin, validCreateRequest("9780306406157"))
	require.NoError(t, err)
	assert.Equal(t, "https://covers.example.com/b/id/-1-M.jpg", book.CoverImage)

	req := validCreateRequest("0000000009")
	req.CoverImage = "https://example.com/own.jpg"
	book, err = mirrored.CreateBook(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/own.jpg", book.CoverImage)
}

func TestCatalogService_CreateBookRejects(t *testing.T) {
	ctx := context.Background()
	store := testStores(t)["memory"]
	svc := services.NewCatalogService(store, nil, 100, logger.Discard())

	_, err := svc.CreateBook(ctx, nil, validCreateRequest("9780441172719"))
	assert.True(t, apperror.IsKind(err, apperror.KindAuthentication))

	_, err = svc.CreateBook(ctx, customer, validCreateRequest("9780441172719"))
	assert.True(t, apperror.IsKind(err, apperror.KindAccessDenied))

	cases := map[string]func(r *services.CreateBookRequest){
		"missing price":    func(r *services.CreateBookRequest) { r.Price = nil },
		"negative price":   func(r *services.CreateBookRequest) { r.Price = ptr(-1.0) },
		"missing stock":    func(r *services.CreateBookRequest) { r.StockQuantity = nil },
		"negative stock":   func(r *services.CreateBookRequest) { r.StockQuantity = ptr(-2) },
		"missing title":    func(r *services.CreateBookRequest) { r.Title = "" },
		"bad isbn":         func(r *services.CreateBookRequest) { r.ISBN = "12ab" },
		"unknown category": func(r *services.CreateBookRequest) { r.Category = "Poetry" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validCreateRequest("9780441172719")
			mutate(&req)
			_, err := svc.CreateBook(ctx, admin, req)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation), err)
		})
	}

	zero := validCreateRequest("9780441172719")
	zero.Price = ptr(0.0)
	zero.StockQuantity = ptr(0)
	_, err = svc.CreateBook(ctx, admin, zero)
	assert.NoError(t, err, "zero price and stock are valid")
}

func TestCatalogService_UpdateBook(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := services.NewCatalogService(store, nil, 100, logger.Discard())
			book := seedBook(t, store, "0000000001", 10, 1)
			other := seedBook(t, store, "0000000002", 10, 1)

			updated, err := svc.UpdateBook(ctx, admin, book.ID, services.UpdateBookRequest{
				Price:         ptr(12.5),
				StockQuantity: ptr(7),
			})
			require.NoError(t, err)
			assert.Equal(t, 12.5, updated.Price)
			assert.Equal(t, 7, updated.StockQuantity)
			assert.Equal(t, book.Title, updated.Title, "unsent fields are kept")

			_, err = svc.UpdateBook(ctx, admin, book.ID, services.UpdateBookRequest{ISBN: ptr(other.ISBN)})
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))

			_, err = svc.UpdateBook(ctx, admin, book.ID, services.UpdateBookRequest{Category: ptr("Poetry")})
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))

			_, err = svc.UpdateBook(ctx, admin, "missing", services.UpdateBookRequest{Title: ptr("x")})
			assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

			_, err = svc.UpdateBook(ctx, customer, book.ID, services.UpdateBookRequest{Title: ptr("x")})
			assert.True(t, apperror.IsKind(err, apperror.KindAccessDenied))

			got, err := svc.GetBook(ctx, book.ID)
			require.NoError(t, err)
			assert.Equal(t, 7, got.StockQuantity)
		})
	}
}

func TestCatalogService_DeleteBook(t *testing.T) {
	ctx := context.Background()
	store := testStores(t)["memory"]
	svc := services.NewCatalogService(store, nil, 100, logger.Discard())
	book := seedBook(t, store, "0000000001", 10, 1)

	assert.True(t, apperror.IsKind(svc.DeleteBook(ctx, customer, book.ID), apperror.KindAccessDenied))
	require.NoError(t, svc.DeleteBook(ctx, admin, book.ID))
	assert.True(t, apperror.IsKind(svc.DeleteBook(ctx, admin, book.ID), apperror.KindNotFound))

	_, err := svc.GetBook(ctx, book.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestCatalogService_AddReview(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := services.NewCatalogService(store, nil, 100, logger.Discard())
			book := seedBook(t, store, "0000000001", 10, 1)

			got, err := svc.AddReview(ctx, customer, book.ID, services.ReviewRequest{Rating: 5, Comment: "Loved it"})
			require.NoError(t, err)
			require.Len(t, got.Reviews, 1)
			assert.Equal(t, customer.Name, got.Reviews[0].Name)
			assert.Equal(t, 5.0, got.Rating)

			got, err = svc.AddReview(ctx, stranger, book.ID, services.ReviewRequest{Rating: 2, Comment: "Meh"})
			require.NoError(t, err)
			assert.Equal(t, 3.5, got.Rating)

			_, err = svc.AddReview(ctx, customer, book.ID, services.ReviewRequest{Rating: 1, Comment: "Changed my mind"})
			assert.True(t, apperror.IsKind(err, apperror.KindConflict))

			_, err = svc.AddReview(ctx, customer, book.ID, services.ReviewRequest{Rating: 6, Comment: "Too good"})
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))

			_, err = svc.AddReview(ctx, customer, "missing", services.ReviewRequest{Rating: 4, Comment: "?"})
			assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
		})
	}
}

func TestCatalogService_SearchExternal(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockMetadataFetcher)
	svc := services.NewCatalogService(testStores(t)["memory"], fetcher, 20, logger.Discard())

	fetcher.On("Search", ctx, "dune", 20).Return([]openlibrary.SearchResult{{Title: "Dune"}}).Once()
	results, err := svc.SearchExternal(ctx, " dune ", 50)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	_, err = svc.SearchExternal(ctx, "  ", 5)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	disabled := services.NewCatalogService(testStores(t)["memory"], nil, 20, logger.Discard())
	results, err = disabled.SearchExternal(ctx, "dune", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	fetcher.AssertExpectations(t)
}

// interleavedStore runs afterRead once, right after the first book read.
type interleavedStore struct {
	repositories.Store
	once      *sync.Once
	afterRead func()
}

func (s interleavedStore) Books() repositories.BookRepository {
	return interleavedBooks{BookRepository: s.Store.Books(), once: s.once, afterRead: s.afterRead}
}

type interleavedBooks struct {
	repositories.BookRepository
	once      *sync.Once
	afterRead func()
}

func (b interleavedBooks) GetByID(ctx context.Context, id string) (*models.Book, error) {
	book, err := b.BookRepository.GetByID(ctx, id)
	b.once.Do(b.afterRead)
	return book, err
}

func TestCatalogService_UpdateBookKeepsReservedStock(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			book := seedBook(t, store, "0000000001", 10, 5)
			wrapped := interleavedStore{Store: store, once: new(sync.Once), afterRead: func() {
				ok, err := store.Books().DecrementStock(ctx, book.ID, 3)
				require.NoError(t, err)
				require.True(t, ok)
			}}
			svc := services.NewCatalogService(wrapped, nil, 100, logger.Discard())

			updated, err := svc.UpdateBook(ctx, admin, book.ID, services.UpdateBookRequest{Title: ptr("Renamed")})
			require.NoError(t, err)
			assert.Equal(t, "Renamed", updated.Title)
			assert.Equal(t, 2, updated.StockQuantity)
			assert.Equal(t, 2, stock(t, store, book.ID))
		})
	}
}

func TestCatalogService_UpdateBookWhileOrdering(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			catalog := services.NewCatalogService(store, nil, 100, logger.Discard())
			orders := newOrderService(store, nil)
			book := seedBook(t, store, "0000000001", 10, 20)

			const rounds = 10
			var wg sync.WaitGroup
			for i := 0; i < rounds; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					_, err := orders.PlaceOrder(ctx, customer, orderFor(services.OrderLine{Book: book.ID, Quantity: 1}))
					assert.NoError(t, err)
				}()
				go func(i int) {
					defer wg.Done()
					_, err := catalog.UpdateBook(ctx, admin, book.ID, services.UpdateBookRequest{Title: ptr(fmt.Sprintf("Edition %d", i))})
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			assert.Equal(t, 20-rounds, stock(t, store, book.ID))
		})
	}
}

package services_test

import (
	"context"
	"fmt"
	"testing"

	"pageturner/internal/database"
	"pageturner/internal/logger"
	"pageturner/internal/models"
	"pageturner/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	admin    = &models.User{ID: "admin-1", Name: "Admin", Email: "admin@example.com", IsAdmin: true}
	customer = &models.User{ID: "user-1", Name: "Reader", Email: "reader@example.com"}
	stranger = &models.User{ID: "user-2", Name: "Other", Email: "other@example.com"}
)

// testStores returns a fresh in-memory store and a fresh sqlite-backed store,
// both seeded with the fixture users.
func testStores(t *testing.T) map[string]repositories.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open("sqlite", dsn, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	stores := map[string]repositories.Store{
		"memory": repositories.NewMemoryStore(),
		"gorm":   repositories.NewGORMStore(db),
	}
	for _, store := range stores {
		for _, u := range []*models.User{admin, customer, stranger} {
			clone := *u
			clone.Password = "hash"
			require.NoError(t, store.Users().Create(context.Background(), &clone))
		}
	}
	return stores
}

func seedBook(t *testing.T, store repositories.Store, isbn string, price float64, stock int) *models.Book {
	t.Helper()
	book := &models.Book{
		Title:         "Title " + isbn,
		Author:        "Author",
		Description:   "Description",
		Price:         price,
		ISBN:          isbn,
		Category:      models.CategoryFiction,
		StockQuantity: stock,
	}
	require.NoError(t, store.Books().Create(context.Background(), book))
	return book
}

func stock(t *testing.T, store repositories.Store, id string) int {
	t.Helper()
	book, err := store.Books().GetByID(context.Background(), id)
	require.NoError(t, err)
	return book.StockQuantity
}

func ptr[T any](v T) *T { return &v }

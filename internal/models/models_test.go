package models_test

import (
	"testing"

	"pageturner/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserPasswordHashing(t *testing.T) {
	var user models.User
	require.NoError(t, user.SetPassword("password123", bcrypt.MinCost))
	assert.NotEqual(t, "password123", user.Password)
	assert.True(t, user.CheckPassword("password123"))
	assert.False(t, user.CheckPassword("password124"))

	first := user.Password
	require.NoError(t, user.SetPassword("password123", bcrypt.MinCost))
	assert.NotEqual(t, first, user.Password, "each hash gets a fresh salt")
	assert.Len(t, user.Password, len(first))
}

func TestParseOrderStatus(t *testing.T) {
	for _, s := range []string{"Pending", "Processing", "Shipped", "Delivered", "Cancelled"} {
		status, err := models.ParseOrderStatus(s)
		assert.NoError(t, err)
		assert.Equal(t, models.OrderStatus(s), status)
	}
	_, err := models.ParseOrderStatus("pending")
	assert.Error(t, err)
	_, err = models.ParseOrderStatus("")
	assert.Error(t, err)
}

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to models.OrderStatus
		allowed  bool
	}{
		{models.OrderStatusPending, models.OrderStatusProcessing, true},
		{models.OrderStatusPending, models.OrderStatusShipped, true},
		{models.OrderStatusProcessing, models.OrderStatusDelivered, true},
		{models.OrderStatusShipped, models.OrderStatusCancelled, true},
		{models.OrderStatusPending, models.OrderStatusPending, true},
		{models.OrderStatusShipped, models.OrderStatusProcessing, false},
		{models.OrderStatusDelivered, models.OrderStatusPending, false},
		{models.OrderStatusDelivered, models.OrderStatusCancelled, false},
		{models.OrderStatusCancelled, models.OrderStatusProcessing, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestPricingApply(t *testing.T) {
	pricing := models.DefaultPricing()

	small := &models.Order{Items: []models.OrderItem{
		{Quantity: 2, Price: decimal.RequireFromString("12.50")},
		{Quantity: 1, Price: decimal.RequireFromString("9.99")},
	}}
	pricing.Apply(small)
	assert.Equal(t, "34.99", small.ItemsPrice.StringFixed(2))
	assert.Equal(t, "5.25", small.TaxPrice.StringFixed(2))
	assert.Equal(t, "10.00", small.ShippingPrice.StringFixed(2))
	assert.Equal(t, "50.24", small.TotalPrice.StringFixed(2))

	large := &models.Order{Items: []models.OrderItem{
		{Quantity: 3, Price: decimal.RequireFromString("40")},
	}}
	pricing.Apply(large)
	assert.Equal(t, "120.00", large.ItemsPrice.StringFixed(2))
	assert.True(t, large.ShippingPrice.IsZero())
	assert.Equal(t, "138.00", large.TotalPrice.StringFixed(2))
}

func TestAverageRating(t *testing.T) {
	assert.Equal(t, 0.0, models.AverageRating(nil))
	reviews := []models.Review{{UserID: "a", Rating: 5}, {UserID: "b", Rating: 4}, {UserID: "c", Rating: 4}}
	assert.Equal(t, 4.3, models.AverageRating(reviews))

	book := models.Book{Reviews: reviews}
	assert.True(t, book.HasReviewFrom("b"))
	assert.False(t, book.HasReviewFrom("z"))
}

package validation_test

import (
	"encoding/json"
	"testing"

	"pageturner/internal/apperror"
	"pageturner/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string `json:"email" validate:"required,email"`
	ISBN     string `json:"isbn" validate:"required,isbn_format"`
	Quantity int    `json:"quantity" validate:"min=1"`
	Method   string `json:"paymentMethod" validate:"omitempty,oneof='Credit Card' PayPal Stripe"`
	Internal string `json:"-" validate:"omitempty,max=3"`
}

func TestIsISBN(t *testing.T) {
	assert.True(t, validation.IsISBN("0451526538"))
	assert.True(t, validation.IsISBN("978-0-451-52653-5"))
	assert.False(t, validation.IsISBN("12345"))
	assert.False(t, validation.IsISBN("978-0-451-52653-X"))
	assert.False(t, validation.IsISBN(""))
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := validation.Struct(sample{Email: "nope", ISBN: "123", Quantity: 0, Method: "Cash"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	details := appErr.Details.(map[string]string)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must be a valid ISBN", details["isbn"])
	assert.Equal(t, "must be at least 1", details["quantity"])
	assert.Equal(t, "must be one of: Credit Card, PayPal, Stripe", details["paymentMethod"])
}

func TestStructAcceptsValidInput(t *testing.T) {
	err := validation.Struct(sample{Email: "reader@example.com", ISBN: "9780451526535", Quantity: 2, Method: "Credit Card"})
	assert.NoError(t, err)
}

func TestToDetailsForDecodingErrors(t *testing.T) {
	var dst map[string]any
	err := json.Unmarshal([]byte("{not json"), &dst)
	assert.Equal(t, map[string]string{"payload": "invalid json"}, validation.ToDetails(err))
	assert.Nil(t, validation.ToDetails(nil))
}

package api

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCart_BareListFlatItems(t *testing.T) {
	data := []byte(`[
		{"id": 11, "productId": 2, "name": "Espresso", "category": "Hot Coffee", "price": 90, "quantity": 2},
		{"id": 12, "productId": 5, "name": "Tiramisu", "price": 180.00, "quantity": 1}
	]`)

	items, err := NormalizeCart(data)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, int64(11), items[0].ID)
	assert.Equal(t, int64(2), items[0].ProductID)
	assert.Equal(t, "Espresso", items[0].Name)
	assert.True(t, items[0].UnitPrice.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, 2, items[0].Quantity)
}

func TestNormalizeCart_WrapperWithNestedProducts(t *testing.T) {
	data := []byte(`{"cartItems": [
		{"id": 7, "quantity": 1, "price": "₱1,234.50",
		 "product": {"id": 3, "name": "Iced Caramel Macchiato", "category": "Iced Coffee", "price": "₱1,234.50"}}
	]}`)

	items, err := NormalizeCart(data)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, int64(7), items[0].ID)
	assert.Equal(t, int64(3), items[0].ProductID, "product id resolves from the nested object")
	assert.Equal(t, "Iced Caramel Macchiato", items[0].Name)
	assert.True(t, items[0].UnitPrice.Equal(decimal.RequireFromString("1234.50")),
		"display-string price normalizes, got %s", items[0].UnitPrice)
}

func TestNormalizeCart_ItemsKeyWrapper(t *testing.T) {
	data := []byte(`{"items": [{"id": 1, "productId": 4, "name": "Latte", "price": 130, "quantity": 3}]}`)

	items, err := NormalizeCart(data)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Latte", items[0].Name)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestNormalizeCart_EmptyShapes(t *testing.T) {
	for _, data := range []string{"", "[]", `{"cartItems": []}`, `{}`} {
		items, err := NormalizeCart([]byte(data))
		require.NoError(t, err, "payload %q", data)
		assert.NotNil(t, items)
		assert.Empty(t, items, "payload %q", data)
	}
}

func TestNormalizeCart_LegacyFlatRowUsesIDAsProductID(t *testing.T) {
	data := []byte(`[{"id": 4, "name": "Latte", "price": 130, "quantity": 1}]`)

	items, err := NormalizeCart(data)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(4), items[0].ProductID)
}

func TestNormalizeCart_NullPriceIsZero(t *testing.T) {
	data := []byte(`[{"id": 1, "productId": 2, "name": "Espresso", "price": null, "quantity": 1}]`)

	items, err := NormalizeCart(data)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].UnitPrice.IsZero())
}

func TestNormalizeCart_RejectsGarbage(t *testing.T) {
	for _, data := range []string{"<html>oops</html>", `"just a string"`, `[{"price": "not money", "quantity": 1}]`} {
		_, err := NormalizeCart([]byte(data))
		assert.Error(t, err, "payload %q", data)
	}
}

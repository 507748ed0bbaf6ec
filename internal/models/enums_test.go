package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	s, ok := ParseOrderStatus(" Processing ")
	assert.True(t, ok)
	assert.Equal(t, OrderStatusProcessing, s)

	_, ok = ParseOrderStatus("shipped")
	assert.False(t, ok)
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusProcessing))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusCancelled))
	assert.True(t, OrderStatusProcessing.CanTransitionTo(OrderStatusCompleted))
	assert.False(t, OrderStatusProcessing.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusCancelled.CanTransitionTo(OrderStatusProcessing))
	assert.False(t, OrderStatusCompleted.CanTransitionTo(OrderStatusCancelled))
}

func TestParsePaymentMethod(t *testing.T) {
	m, ok := ParsePaymentMethod("")
	assert.True(t, ok)
	assert.Equal(t, PaymentCOD, m)

	m, ok = ParsePaymentMethod("ewallet")
	assert.True(t, ok)
	assert.Equal(t, PaymentEWallet, m)

	_, ok = ParsePaymentMethod("CARD")
	assert.False(t, ok)
}

func TestStringListAlwaysJSONArray(t *testing.T) {
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = StringList{"/orders", "/products"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["/orders","/products"]`, v)

	b, err := json.Marshal(Staff{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"routes":[]`)
}

func TestStringListScan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["/a","/b"]`)))
	assert.Equal(t, StringList{"/a", "/b"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Equal(t, StringList{}, l)

	assert.Error(t, l.Scan("/a,/b"))
	assert.Error(t, l.Scan(42))
}

func TestProductUnitPrice(t *testing.T) {
	sale := decimal.NewFromInt(80)
	p := Product{Price: decimal.NewFromInt(100)}
	assert.True(t, p.UnitPrice().Equal(decimal.NewFromInt(100)))

	p.SalePrice = &sale
	assert.True(t, p.UnitPrice().Equal(sale))
}

func TestMoneyRendersAsNumber(t *testing.T) {
	b, err := json.Marshal(OrderItem{Price: decimal.NewFromInt(100000), Quantity: 2})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"price":100000`)
}

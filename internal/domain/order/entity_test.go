package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusCart, StatusProcessing},
		{StatusCart, StatusCanceled},
		{StatusProcessing, StatusShipping},
		{StatusProcessing, StatusCanceled},
		{StatusShipping, StatusFinished},
		{StatusShipping, StatusCanceled},
	}
	for _, tr := range allowed {
		assert.True(t, tr.from.CanTransition(tr.to), "%s -> %s should be allowed", tr.from, tr.to)
	}

	denied := []struct{ from, to Status }{
		{StatusCart, StatusShipping},
		{StatusCart, StatusFinished},
		{StatusProcessing, StatusFinished},
		{StatusProcessing, StatusCart},
		{StatusShipping, StatusProcessing},
		{StatusFinished, StatusCanceled},
		{StatusFinished, StatusShipping},
		{StatusCanceled, StatusCart},
		{StatusCanceled, StatusProcessing},
	}
	for _, tr := range denied {
		assert.False(t, tr.from.CanTransition(tr.to), "%s -> %s should be denied", tr.from, tr.to)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "cart", StatusCart.String())
	assert.Equal(t, "canceled", StatusCanceled.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestOrderIsDeletableByOwner(t *testing.T) {
	for _, s := range []Status{StatusCart, StatusProcessing, StatusShipping} {
		assert.False(t, (&Order{Status: s}).IsDeletableByOwner(), "status %s", s)
	}
	for _, s := range []Status{StatusFinished, StatusCanceled} {
		assert.True(t, (&Order{Status: s}).IsDeletableByOwner(), "status %s", s)
	}
}

func TestOrderItemsCost(t *testing.T) {
	d := func(s string) decimal.Decimal {
		v, err := decimal.NewFromString(s)
		assert.NoError(t, err)
		return v
	}
	ord := Order{Items: []Item{
		{Quantity: d("2"), Price: d("19.99")},
		{Quantity: d("1.5"), Price: d("4.30")},
	}}
	// 39.98 + 6.45
	assert.True(t, d("46.43").Equal(ord.ItemsCost()), "got %s", ord.ItemsCost())

	assert.True(t, decimal.Zero.Equal((&Order{}).ItemsCost()))
}

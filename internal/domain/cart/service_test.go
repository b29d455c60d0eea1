package cart_test

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/maxreshetnik/portfolio/internal/domain/cart"
	"github.com/maxreshetnik/portfolio/internal/domain/catalog"
	"github.com/maxreshetnik/portfolio/internal/domain/order"
	"github.com/maxreshetnik/portfolio/internal/mocks"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newService() (*cart.Service, *mocks.MockOrderRepository, *mocks.MockSpecificationRepository, *mocks.MockProductRepository) {
	orders := new(mocks.MockOrderRepository)
	specs := new(mocks.MockSpecificationRepository)
	products := new(mocks.MockProductRepository)
	return cart.NewService(orders, specs, products, testLogger()), orders, specs, products
}

func riceSpec() *catalog.Specification {
	return &catalog.Specification{
		ID:           5,
		Tag:          "1kg bag",
		PrePacking:   dec("0.5"),
		Price:        dec("4.00"),
		AvailableQty: dec("10"),
		ProductKind:  catalog.KindFood,
		ProductID:    2,
	}
}

func emptyCart() *order.Order {
	return &order.Order{ID: 77, UserID: 1, Status: order.StatusCart}
}

func TestServiceAddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("quantity rounded down to packing multiple", func(t *testing.T) {
		svc, orders, specs, products := newService()
		spec := riceSpec()

		specs.On("Get", mock.Anything, uint(5)).Return(spec, nil)
		orders.On("GetOrCreateCart", mock.Anything, uint(1)).Return(emptyCart(), nil)
		orders.On("UpsertItem", mock.Anything, uint(77), uint(5),
			mock.MatchedBy(func(q decimal.Decimal) bool { return q.Equal(dec("1.0")) }),
			mock.MatchedBy(func(p decimal.Decimal) bool { return p.Equal(dec("4.00")) }),
		).Return(nil)
		specs.On("GetMany", mock.Anything, mock.Anything).Return(map[uint]catalog.Specification{}, nil).Maybe()
		products.On("GetMany", mock.Anything, mock.Anything).Return(map[catalog.ProductRef]catalog.Product{}, nil).Maybe()

		_, err := svc.AddItem(ctx, 1, &cart.AddItemRequest{SpecificationID: 5, Quantity: dec("1.3")})
		assert.NoError(t, err)
		orders.AssertExpectations(t)
	})

	t.Run("integer packing truncates", func(t *testing.T) {
		svc, orders, specs, _ := newService()
		spec := riceSpec()
		spec.PrePacking = dec("1")

		specs.On("Get", mock.Anything, uint(5)).Return(spec, nil)
		orders.On("GetOrCreateCart", mock.Anything, uint(1)).Return(emptyCart(), nil)
		orders.On("UpsertItem", mock.Anything, uint(77), uint(5),
			mock.MatchedBy(func(q decimal.Decimal) bool { return q.Equal(dec("2")) }),
			mock.Anything,
		).Return(nil)

		_, err := svc.AddItem(ctx, 1, &cart.AddItemRequest{SpecificationID: 5, Quantity: dec("2.9")})
		assert.NoError(t, err)
		orders.AssertExpectations(t)
	})

	t.Run("over stock fails with available quantity", func(t *testing.T) {
		svc, orders, specs, _ := newService()
		spec := riceSpec()
		spec.AvailableQty = dec("2.5")

		specs.On("Get", mock.Anything, uint(5)).Return(spec, nil)

		_, err := svc.AddItem(ctx, 1, &cart.AddItemRequest{SpecificationID: 5, Quantity: dec("3")})
		var qtyErr *cart.QuantityError
		assert.ErrorAs(t, err, &qtyErr)
		assert.True(t, dec("2.5").Equal(qtyErr.Available))
		assert.Contains(t, qtyErr.Error(), "2.5")
		orders.AssertNotCalled(t, "UpsertItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("zero after rounding deletes the line", func(t *testing.T) {
		svc, orders, specs, _ := newService()
		spec := riceSpec()

		specs.On("Get", mock.Anything, uint(5)).Return(spec, nil)
		orders.On("GetOrCreateCart", mock.Anything, uint(1)).Return(emptyCart(), nil)
		orders.On("DeleteItem", mock.Anything, uint(77), uint(5)).Return(nil)

		_, err := svc.AddItem(ctx, 1, &cart.AddItemRequest{SpecificationID: 5, Quantity: dec("0.4")})
		assert.NoError(t, err)
		orders.AssertCalled(t, "DeleteItem", mock.Anything, uint(77), uint(5))
		orders.AssertNotCalled(t, "UpsertItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("sale price captured over list price", func(t *testing.T) {
		svc, orders, specs, _ := newService()
		spec := riceSpec()
		spec.SalePrice = dec("3.50")

		specs.On("Get", mock.Anything, uint(5)).Return(spec, nil)
		orders.On("GetOrCreateCart", mock.Anything, uint(1)).Return(emptyCart(), nil)
		orders.On("UpsertItem", mock.Anything, uint(77), uint(5),
			mock.Anything,
			mock.MatchedBy(func(p decimal.Decimal) bool { return p.Equal(dec("3.50")) }),
		).Return(nil)

		_, err := svc.AddItem(ctx, 1, &cart.AddItemRequest{SpecificationID: 5, Quantity: dec("1")})
		assert.NoError(t, err)
		orders.AssertExpectations(t)
	})

	t.Run("negative quantity rejected", func(t *testing.T) {
		svc, _, _, _ := newService()
		_, err := svc.AddItem(ctx, 1, &cart.AddItemRequest{SpecificationID: 5, Quantity: dec("-1")})
		assert.ErrorIs(t, err, catalog.ErrValidation)
	})
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("flags stale prices and short stock", func(t *testing.T) {
		svc, orders, specs, products := newService()

		withItems := emptyCart()
		withItems.Items = []order.Item{
			{OrderID: 77, SpecificationID: 5, Quantity: dec("2"), Price: dec("4.00")},
			{OrderID: 77, SpecificationID: 6, Quantity: dec("3"), Price: dec("10.00")},
		}
		orders.On("GetOrCreateCart", mock.Anything, uint(1)).Return(withItems, nil)

		fresh := *riceSpec()
		fresh.SalePrice = dec("3.00") // price dropped since added
		short := catalog.Specification{
			ID: 6, Price: dec("10.00"), AvailableQty: dec("1"),
			ProductKind: catalog.KindFood, ProductID: 3,
		}
		specs.On("GetMany", mock.Anything, mock.Anything).
			Return(map[uint]catalog.Specification{5: fresh, 6: short}, nil)
		products.On("GetMany", mock.Anything, mock.Anything).
			Return(map[catalog.ProductRef]catalog.Product{
				{Kind: catalog.KindFood, ID: 2}: {ID: 2, Kind: catalog.KindFood, Name: "Rice"},
				{Kind: catalog.KindFood, ID: 3}: {ID: 3, Kind: catalog.KindFood, Name: "Beans"},
			}, nil)

		view, err := svc.Get(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, 2, view.Count)
		// Captured prices still drive the displayed total: 8.00 + 30.00.
		assert.True(t, dec("38.00").Equal(view.OrderCost), "got %s", view.OrderCost)
		assert.True(t, view.Items[0].PriceChanged)
		assert.False(t, view.Items[0].ShortStock)
		assert.False(t, view.Items[1].PriceChanged)
		assert.True(t, view.Items[1].ShortStock)
	})

	t.Run("empty cart renders empty view", func(t *testing.T) {
		svc, orders, _, _ := newService()
		orders.On("GetOrCreateCart", mock.Anything, uint(1)).Return(emptyCart(), nil)

		view, err := svc.Get(ctx, 1)
		assert.NoError(t, err)
		assert.Empty(t, view.Items)
		assert.True(t, view.OrderCost.IsZero())
	})

	t.Run("orphaned line dropped from storage", func(t *testing.T) {
		svc, orders, specs, products := newService()

		withItems := emptyCart()
		withItems.Items = []order.Item{
			{OrderID: 77, SpecificationID: 99, Quantity: dec("1"), Price: dec("5.00")},
		}
		orders.On("GetOrCreateCart", mock.Anything, uint(1)).Return(withItems, nil)
		specs.On("GetMany", mock.Anything, mock.Anything).Return(map[uint]catalog.Specification{}, nil)
		products.On("GetMany", mock.Anything, mock.Anything).Return(map[catalog.ProductRef]catalog.Product{}, nil)
		orders.On("DeleteItem", mock.Anything, uint(77), uint(99)).Return(nil)

		view, err := svc.Get(ctx, 1)
		assert.NoError(t, err)
		assert.Empty(t, view.Items)
		orders.AssertCalled(t, "DeleteItem", mock.Anything, uint(77), uint(99))
	})
}

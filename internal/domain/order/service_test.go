package order_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

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

func cartFixture() *order.Order {
	return &order.Order{
		ID:     10,
		UserID: 1,
		Status: order.StatusCart,
		Items: []order.Item{
			{OrderID: 10, SpecificationID: 3, Quantity: dec("2"), Price: dec("50.00")},
			{OrderID: 10, SpecificationID: 7, Quantity: dec("1"), Price: dec("20.00")},
		},
	}
}

func specFixtures() map[uint]catalog.Specification {
	return map[uint]catalog.Specification{
		3: {ID: 3, Price: dec("50.00")},
		7: {ID: 7, Price: dec("20.00")},
	}
}

func TestServicePlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("success reserves stock and moves to processing", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		cart := cartFixture()
		orders.On("GetCart", mock.Anything, uint(1)).Return(cart, nil)
		specs.On("GetMany", mock.Anything, mock.Anything).Return(specFixtures(), nil)
		orders.On("Save", mock.Anything, cart).Return(nil)
		specs.On("Reserve", mock.Anything, mock.MatchedBy(func(lines []catalog.ReservationLine) bool {
			return len(lines) == 2
		})).Return(nil)

		placed, err := svc.PlaceOrder(ctx, 1, &order.PlaceOrderRequest{
			Address:   "221B Baker Street",
			OrderCost: dec("120.00"),
		})
		assert.NoError(t, err)
		assert.Equal(t, order.StatusProcessing, placed.Status)
		assert.True(t, placed.Reserved)
		assert.Equal(t, "221B Baker Street", placed.Address)
		assert.True(t, dec("120.00").Equal(placed.OrderCost))
		specs.AssertExpectations(t)
		orders.AssertExpectations(t)
	})

	t.Run("stale price rejected before any state change", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		cart := cartFixture()
		current := specFixtures()
		// Price dropped since the user filled the cart.
		s := current[3]
		s.Discount = 10
		s.DiscountPrice = catalog.ComputeDiscountPrice(s.Price, 10)
		current[3] = s

		orders.On("GetCart", mock.Anything, uint(1)).Return(cart, nil)
		specs.On("GetMany", mock.Anything, mock.Anything).Return(current, nil)

		_, err := svc.PlaceOrder(ctx, 1, &order.PlaceOrderRequest{
			Address:   "somewhere",
			OrderCost: dec("120.00"),
		})
		assert.ErrorIs(t, err, order.ErrStalePrice)
		assert.Equal(t, order.StatusCart, cart.Status)
		orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		specs.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
	})

	t.Run("stock conflict reverts the order to cart", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		cart := cartFixture()
		orders.On("GetCart", mock.Anything, uint(1)).Return(cart, nil)
		specs.On("GetMany", mock.Anything, mock.Anything).Return(specFixtures(), nil)
		orders.On("Save", mock.Anything, cart).Return(nil)
		specs.On("Reserve", mock.Anything, mock.Anything).Return(catalog.ErrStockConflict)

		_, err := svc.PlaceOrder(ctx, 1, &order.PlaceOrderRequest{
			Address:   "somewhere",
			OrderCost: dec("120.00"),
		})
		assert.ErrorIs(t, err, catalog.ErrStockConflict)
		assert.Equal(t, order.StatusCart, cart.Status)
		assert.False(t, cart.Reserved)
	})

	t.Run("failed save after reservation releases the stock", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		cart := cartFixture()
		orders.On("GetCart", mock.Anything, uint(1)).Return(cart, nil)
		specs.On("GetMany", mock.Anything, mock.Anything).Return(specFixtures(), nil)
		orders.On("Save", mock.Anything, cart).Return(nil).Once()
		specs.On("Reserve", mock.Anything, mock.Anything).Return(nil)
		orders.On("Save", mock.Anything, cart).Return(errors.New("connection reset")).Once()
		specs.On("Release", mock.Anything, mock.MatchedBy(func(lines []catalog.ReservationLine) bool {
			return len(lines) == 2
		})).Return(nil)
		orders.On("Save", mock.Anything, cart).Return(nil).Once()

		_, err := svc.PlaceOrder(ctx, 1, &order.PlaceOrderRequest{
			Address:   "somewhere",
			OrderCost: dec("120.00"),
		})
		assert.Error(t, err)
		assert.Equal(t, order.StatusCart, cart.Status)
		assert.False(t, cart.Reserved)
		specs.AssertExpectations(t)
	})

	t.Run("empty cart", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		empty := &order.Order{ID: 10, UserID: 1, Status: order.StatusCart}
		orders.On("GetCart", mock.Anything, uint(1)).Return(empty, nil)

		_, err := svc.PlaceOrder(ctx, 1, &order.PlaceOrderRequest{
			Address:   "somewhere",
			OrderCost: dec("0.00"),
		})
		assert.ErrorIs(t, err, order.ErrEmptyCart)
	})

	t.Run("missing cart reported as empty", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		orders.On("GetCart", mock.Anything, uint(1)).Return(nil, order.ErrNotFound)

		_, err := svc.PlaceOrder(ctx, 1, &order.PlaceOrderRequest{
			Address:   "somewhere",
			OrderCost: dec("0.00"),
		})
		assert.ErrorIs(t, err, order.ErrEmptyCart)
	})
}

func TestServiceCurrentCostUsesEffectivePrices(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	specs := new(mocks.MockSpecificationRepository)
	svc := order.NewService(orders, specs, testLogger())

	cart := cartFixture()
	current := specFixtures()
	s := current[3]
	s.SalePrice = dec("40.00")
	current[3] = s
	specs.On("GetMany", mock.Anything, mock.Anything).Return(current, nil)

	cost, err := svc.CurrentCost(context.Background(), cart)
	assert.NoError(t, err)
	// 2 x 40.00 sale + 1 x 20.00 list
	assert.True(t, dec("100.00").Equal(cost), "got %s", cost)
}

func TestServiceUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel releases held stock", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		ord := cartFixture()
		ord.Status = order.StatusProcessing
		ord.Reserved = true
		orders.On("Get", mock.Anything, uint(1), uint(10)).Return(ord, nil)
		specs.On("Release", mock.Anything, mock.MatchedBy(func(lines []catalog.ReservationLine) bool {
			return len(lines) == 2
		})).Return(nil)
		orders.On("Save", mock.Anything, ord).Return(nil)

		canceled, err := svc.Cancel(ctx, 1, 10)
		assert.NoError(t, err)
		assert.Equal(t, order.StatusCanceled, canceled.Status)
		assert.False(t, canceled.Reserved)
		specs.AssertExpectations(t)
	})

	t.Run("confirm moves shipping to finished", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		ord := cartFixture()
		ord.Status = order.StatusShipping
		ord.Reserved = true
		orders.On("Get", mock.Anything, uint(1), uint(10)).Return(ord, nil)
		orders.On("Save", mock.Anything, ord).Return(nil)

		finished, err := svc.Confirm(ctx, 1, 10)
		assert.NoError(t, err)
		assert.Equal(t, order.StatusFinished, finished.Status)
		// Finished orders keep their stock subtracted.
		assert.True(t, finished.Reserved)
		specs.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("admin moves another user's order to shipping", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		ord := cartFixture()
		ord.Status = order.StatusProcessing
		ord.Reserved = true
		orders.On("GetByID", mock.Anything, uint(10)).Return(ord, nil)
		orders.On("Save", mock.Anything, ord).Return(nil)

		shipped, err := svc.AdminUpdateStatus(ctx, 10, order.StatusShipping)
		assert.NoError(t, err)
		assert.Equal(t, order.StatusShipping, shipped.Status)
		assert.True(t, shipped.Reserved)
	})

	t.Run("admin cannot force a cart into processing", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		ord := cartFixture()
		orders.On("GetByID", mock.Anything, uint(10)).Return(ord, nil)

		_, err := svc.AdminUpdateStatus(ctx, 10, order.StatusProcessing)
		assert.ErrorIs(t, err, order.ErrInvalidTransition)
		assert.Equal(t, order.StatusCart, ord.Status)
		specs.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
		orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("invalid transition rejected", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		ord := cartFixture()
		ord.Status = order.StatusFinished
		orders.On("Get", mock.Anything, uint(1), uint(10)).Return(ord, nil)

		_, err := svc.Cancel(ctx, 1, 10)
		assert.ErrorIs(t, err, order.ErrInvalidTransition)
		orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("owner cannot delete an active order", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		ord := cartFixture()
		ord.Status = order.StatusProcessing
		ord.Reserved = true
		orders.On("Get", mock.Anything, uint(1), uint(10)).Return(ord, nil)

		err := svc.Delete(ctx, 1, 10, false)
		assert.ErrorIs(t, err, order.ErrNotDeletable)
		orders.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("owner deletes a canceled order", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		ord := cartFixture()
		ord.Status = order.StatusCanceled
		orders.On("Get", mock.Anything, uint(1), uint(10)).Return(ord, nil)
		orders.On("Delete", mock.Anything, ord).Return(nil)

		assert.NoError(t, svc.Delete(ctx, 1, 10, false))
		specs.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("deleting a finished order keeps stock subtracted", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		ord := cartFixture()
		ord.Status = order.StatusFinished
		ord.Reserved = true
		orders.On("Get", mock.Anything, uint(1), uint(10)).Return(ord, nil)
		orders.On("Delete", mock.Anything, ord).Return(nil)

		assert.NoError(t, svc.Delete(ctx, 1, 10, false))
		// The goods are sold, nothing goes back to available quantity.
		specs.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	})

	t.Run("admin delete releases held stock first", func(t *testing.T) {
		orders := new(mocks.MockOrderRepository)
		specs := new(mocks.MockSpecificationRepository)
		svc := order.NewService(orders, specs, testLogger())

		ord := cartFixture()
		ord.Status = order.StatusProcessing
		ord.Reserved = true
		orders.On("GetByID", mock.Anything, uint(10)).Return(ord, nil)
		specs.On("Release", mock.Anything, mock.Anything).Return(nil)
		orders.On("Delete", mock.Anything, ord).Return(nil)

		assert.NoError(t, svc.Delete(ctx, 99, 10, true))
		specs.AssertExpectations(t)
	})
}

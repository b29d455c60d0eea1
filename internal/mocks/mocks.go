// internal/mocks/mocks.go
//
// Testify mocks of the repository interfaces, shared by the service
// tests across domains.
package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/maxreshetnik/portfolio/internal/domain/catalog"
	"github.com/maxreshetnik/portfolio/internal/domain/order"
)

type MockSpecificationRepository struct {
	mock.Mock
}

func (m *MockSpecificationRepository) Get(ctx context.Context, id uint) (*catalog.Specification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Specification), args.Error(1)
}

func (m *MockSpecificationRepository) GetMany(ctx context.Context, ids []uint) (map[uint]catalog.Specification, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint]catalog.Specification), args.Error(1)
}

func (m *MockSpecificationRepository) ListByCategories(ctx context.Context, categoryIDs []uint) ([]catalog.Specification, error) {
	args := m.Called(ctx, categoryIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Specification), args.Error(1)
}

func (m *MockSpecificationRepository) ListNewest(ctx context.Context, since time.Time, limit int) ([]catalog.Specification, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Specification), args.Error(1)
}

func (m *MockSpecificationRepository) ListPopular(ctx context.Context, limit int) ([]catalog.Specification, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Specification), args.Error(1)
}

func (m *MockSpecificationRepository) Reserve(ctx context.Context, lines []catalog.ReservationLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *MockSpecificationRepository) Release(ctx context.Context, lines []catalog.ReservationLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Get(ctx context.Context, ref catalog.ProductRef) (*catalog.Product, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) GetMany(ctx context.Context, refs []catalog.ProductRef) (map[catalog.ProductRef]catalog.Product, error) {
	args := m.Called(ctx, refs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[catalog.ProductRef]catalog.Product), args.Error(1)
}

type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) Tree(ctx context.Context) ([]catalog.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) Get(ctx context.Context, id uint) (*catalog.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockCategoryRepository) GetByName(ctx context.Context, name string) (*catalog.Category, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

type MockRateRepository struct {
	mock.Mock
}

func (m *MockRateRepository) Upsert(ctx context.Context, rate *catalog.Rate) error {
	args := m.Called(ctx, rate)
	return args.Error(0)
}

func (m *MockRateRepository) ListForProduct(ctx context.Context, ref catalog.ProductRef) ([]catalog.Rate, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Rate), args.Error(1)
}

func (m *MockRateRepository) AverageFor(ctx context.Context, refs []catalog.ProductRef) (map[catalog.ProductRef]float64, error) {
	args := m.Called(ctx, refs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[catalog.ProductRef]float64), args.Error(1)
}

type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) TopCategory(ctx context.Context, tsquery string) (*catalog.Category, error) {
	args := m.Called(ctx, tsquery)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

func (m *MockSearchRepository) RankSpecs(ctx context.Context, tsquery string, categoryIDs []uint) ([]catalog.SearchResult, error) {
	args := m.Called(ctx, tsquery, categoryIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.SearchResult), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) GetCart(ctx context.Context, userID uint) (*order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetOrCreateCart(ctx context.Context, userID uint) (*order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) Get(ctx context.Context, userID, orderID uint) (*order.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, orderID uint) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) List(ctx context.Context, userID uint) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, ord *order.Order) error {
	args := m.Called(ctx, ord)
	return args.Error(0)
}

func (m *MockOrderRepository) Delete(ctx context.Context, ord *order.Order) error {
	args := m.Called(ctx, ord)
	return args.Error(0)
}

func (m *MockOrderRepository) UpsertItem(ctx context.Context, orderID, specificationID uint, quantity, price decimal.Decimal) error {
	args := m.Called(ctx, orderID, specificationID, quantity, price)
	return args.Error(0)
}

func (m *MockOrderRepository) DeleteItem(ctx context.Context, orderID, specificationID uint) error {
	args := m.Called(ctx, orderID, specificationID)
	return args.Error(0)
}

func (m *MockOrderRepository) ClearItems(ctx context.Context, orderID uint) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

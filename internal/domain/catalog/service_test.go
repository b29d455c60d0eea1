package catalog_test

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/maxreshetnik/portfolio/internal/domain/catalog"
	"github.com/maxreshetnik/portfolio/internal/mocks"
)

type serviceMocks struct {
	specs      *mocks.MockSpecificationRepository
	products   *mocks.MockProductRepository
	categories *mocks.MockCategoryRepository
	rates      *mocks.MockRateRepository
	search     *mocks.MockSearchRepository
}

func newService() (*catalog.Service, *serviceMocks) {
	m := &serviceMocks{
		specs:      new(mocks.MockSpecificationRepository),
		products:   new(mocks.MockProductRepository),
		categories: new(mocks.MockCategoryRepository),
		rates:      new(mocks.MockRateRepository),
		search:     new(mocks.MockSearchRepository),
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := catalog.NewService(m.specs, m.products, m.categories, m.rates, m.search, nil, logger)
	return svc, m
}

func tvProduct() catalog.Product {
	return catalog.Product{
		ID:      4,
		Kind:    catalog.KindTV,
		Name:    "Bravia XR",
		Marking: "XR-55A80L",
		Unit:    catalog.UnitPiece,
	}
}

func tvSpec() catalog.Specification {
	return catalog.Specification{
		ID:           9,
		Tag:          "55 inch",
		Price:        decimal.RequireFromString("1499.99"),
		AvailableQty: decimal.NewFromInt(12),
		ProductKind:  catalog.KindTV,
		ProductID:    4,
	}
}

func TestServiceSpecDetail(t *testing.T) {
	ctx := context.Background()
	svc, m := newService()

	spec := tvSpec()
	product := tvProduct()
	ref := catalog.ProductRef{Kind: catalog.KindTV, ID: 4}

	m.specs.On("Get", mock.Anything, uint(9)).Return(&spec, nil)
	m.products.On("Get", mock.Anything, ref).Return(&product, nil)
	m.rates.On("ListForProduct", mock.Anything, ref).Return([]catalog.Rate{
		{UserID: 1, ProductKind: catalog.KindTV, ProductID: 4, Point: 4},
	}, nil)
	m.rates.On("AverageFor", mock.Anything, []catalog.ProductRef{ref}).
		Return(map[catalog.ProductRef]float64{ref: 4.0}, nil)

	view, rates, err := svc.SpecDetail(ctx, 9)
	assert.NoError(t, err)
	assert.Equal(t, "1499.99", view.EffectivePrice)
	assert.Equal(t, "Bravia XR", view.Product.Name)
	assert.Equal(t, 4.0, view.Rating)
	assert.Len(t, rates, 1)
}

func TestServiceSpecsByCategoryIncludesChildren(t *testing.T) {
	ctx := context.Background()
	svc, m := newService()

	parentID := uint(1)
	category := catalog.Category{
		ID:   1,
		Name: "TVs",
		Kind: catalog.KindTV,
		Children: []catalog.Category{
			{ID: 2, Name: "OLED TVs", Kind: catalog.KindTV, ParentID: &parentID},
		},
	}
	m.categories.On("Get", mock.Anything, uint(1)).Return(&category, nil)
	m.specs.On("ListByCategories", mock.Anything, []uint{1, 2}).
		Return([]catalog.Specification{tvSpec()}, nil)
	m.products.On("GetMany", mock.Anything, mock.Anything).
		Return(map[catalog.ProductRef]catalog.Product{
			{Kind: catalog.KindTV, ID: 4}: tvProduct(),
		}, nil)
	m.rates.On("AverageFor", mock.Anything, mock.Anything).
		Return(map[catalog.ProductRef]float64{}, nil)

	views, err := svc.SpecsByCategory(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, views, 1)
	m.specs.AssertExpectations(t)
}

func TestServiceNewArrivalsSkipsOrphanedSpecs(t *testing.T) {
	ctx := context.Background()
	svc, m := newService()

	orphan := tvSpec()
	orphan.ID = 11
	orphan.ProductID = 999

	m.specs.On("ListNewest", mock.Anything, mock.AnythingOfType("time.Time"), 24).
		Return([]catalog.Specification{tvSpec(), orphan}, nil)
	m.products.On("GetMany", mock.Anything, mock.Anything).
		Return(map[catalog.ProductRef]catalog.Product{
			{Kind: catalog.KindTV, ID: 4}: tvProduct(),
		}, nil)
	m.rates.On("AverageFor", mock.Anything, mock.Anything).
		Return(map[catalog.ProductRef]float64{}, nil)

	views, err := svc.NewArrivals(ctx)
	assert.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, uint(9), views[0].ID)
}

func TestServiceSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("category match narrows the ranking", func(t *testing.T) {
		svc, m := newService()

		category := catalog.Category{ID: 1, Name: "TVs", Kind: catalog.KindTV}
		m.search.On("TopCategory", mock.Anything, "sony | tv").Return(&category, nil)
		m.search.On("RankSpecs", mock.Anything, "sony | tv", []uint{1}).
			Return([]catalog.SearchResult{{Specification: tvSpec(), Rank: 0.4}}, nil)
		m.products.On("GetMany", mock.Anything, mock.Anything).
			Return(map[catalog.ProductRef]catalog.Product{
				{Kind: catalog.KindTV, ID: 4}: tvProduct(),
			}, nil)
		m.rates.On("AverageFor", mock.Anything, mock.Anything).
			Return(map[catalog.ProductRef]float64{}, nil)

		view, err := svc.Search(ctx, "Sony TV!")
		assert.NoError(t, err)
		assert.NotNil(t, view.Category)
		assert.Len(t, view.Items, 1)
	})

	t.Run("empty narrowed result retries across the catalog", func(t *testing.T) {
		svc, m := newService()

		category := catalog.Category{ID: 1, Name: "TVs", Kind: catalog.KindTV}
		m.search.On("TopCategory", mock.Anything, "bravia").Return(&category, nil)
		m.search.On("RankSpecs", mock.Anything, "bravia", []uint{1}).
			Return([]catalog.SearchResult{}, nil)
		m.search.On("RankSpecs", mock.Anything, "bravia", []uint(nil)).
			Return([]catalog.SearchResult{{Specification: tvSpec(), Rank: 0.2}}, nil)
		m.products.On("GetMany", mock.Anything, mock.Anything).
			Return(map[catalog.ProductRef]catalog.Product{
				{Kind: catalog.KindTV, ID: 4}: tvProduct(),
			}, nil)
		m.rates.On("AverageFor", mock.Anything, mock.Anything).
			Return(map[catalog.ProductRef]float64{}, nil)

		view, err := svc.Search(ctx, "bravia")
		assert.NoError(t, err)
		assert.Len(t, view.Items, 1)
		m.search.AssertExpectations(t)
	})

	t.Run("blank input short-circuits", func(t *testing.T) {
		svc, m := newService()

		view, err := svc.Search(ctx, "  !! ")
		assert.NoError(t, err)
		assert.Empty(t, view.Items)
		m.search.AssertNotCalled(t, "TopCategory", mock.Anything, mock.Anything)
	})
}

func TestServiceRateProduct(t *testing.T) {
	ctx := context.Background()
	ref := catalog.ProductRef{Kind: catalog.KindTV, ID: 4}

	t.Run("valid rating upserted", func(t *testing.T) {
		svc, m := newService()
		product := tvProduct()
		m.products.On("Get", mock.Anything, ref).Return(&product, nil)
		m.rates.On("Upsert", mock.Anything, mock.MatchedBy(func(r *catalog.Rate) bool {
			return r.UserID == 7 && r.Point == 5 && r.ProductID == 4
		})).Return(nil)

		err := svc.RateProduct(ctx, 7, ref, 5, "great picture")
		assert.NoError(t, err)
		m.rates.AssertExpectations(t)
	})

	t.Run("point outside 1..5 rejected", func(t *testing.T) {
		svc, m := newService()

		assert.ErrorIs(t, svc.RateProduct(ctx, 7, ref, 0, ""), catalog.ErrValidation)
		assert.ErrorIs(t, svc.RateProduct(ctx, 7, ref, 6, ""), catalog.ErrValidation)
		m.rates.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		svc, _ := newService()

		bad := catalog.ProductRef{Kind: "furniture", ID: 4}
		assert.ErrorIs(t, svc.RateProduct(ctx, 7, bad, 3, ""), catalog.ErrValidation)
	})
}

func TestServiceInvalidateCategoryCache(t *testing.T) {
	t.Run("no-op without a cache", func(t *testing.T) {
		svc, _ := newService()

		assert.NotPanics(t, func() {
			svc.InvalidateCategoryCache(context.Background())
		})
	})
}

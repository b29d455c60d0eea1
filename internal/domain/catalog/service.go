// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	categoryTreeCacheKey = "catalog:categories"
	categoryTreeCacheTTL = 10 * time.Minute

	newArrivalWindow = 14 * 24 * time.Hour
	newArrivalLimit  = 24
	popularLimit     = 24
)

// Service exposes catalog browsing operations.
type Service struct {
	specs      SpecificationRepository
	products   ProductRepository
	categories CategoryRepository
	rates      RateRepository
	search     SearchRepository
	cache      *redis.Client
	logger     *logrus.Logger
}

// NewService creates a catalog service.
func NewService(
	specs SpecificationRepository,
	products ProductRepository,
	categories CategoryRepository,
	rates RateRepository,
	search SearchRepository,
	cache *redis.Client,
	logger *logrus.Logger,
) *Service {
	return &Service{
		specs:      specs,
		products:   products,
		categories: categories,
		rates:      rates,
		search:     search,
		cache:      cache,
		logger:     logger,
	}
}

// SpecView is one sellable item as shown in listings and detail pages.
type SpecView struct {
	Specification
	EffectivePrice string      `json:"effective_price"`
	Product        ProductView `json:"product"`
	Rating         float64     `json:"rating"`
}

// CategoryTree returns the top-level categories with their children,
// served from cache when possible. Cache misses and write failures are
// logged and never surfaced; the database copy is authoritative.
func (s *Service) CategoryTree(ctx context.Context) ([]Category, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, categoryTreeCacheKey).Result()
		if err == nil {
			var categories []Category
			if err := json.Unmarshal([]byte(cached), &categories); err == nil {
				return categories, nil
			}
		}
	}

	categories, err := s.categories.Tree(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(categories); err == nil {
			if err := s.cache.Set(ctx, categoryTreeCacheKey, data, categoryTreeCacheTTL).Err(); err != nil {
				s.logger.WithError(err).Warn("Failed to cache category tree")
			}
		}
	}
	return categories, nil
}

// SpecsByCategory lists in-stock items of a category. When the category
// is a top-level one, items of all its subcategories are included.
func (s *Service) SpecsByCategory(ctx context.Context, categoryID uint) ([]SpecView, error) {
	category, err := s.categories.Get(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	ids := categoryFamilyIDs(category)

	specs, err := s.specs.ListByCategories(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.buildViews(ctx, specs)
}

// NewArrivals lists recently added in-stock items.
func (s *Service) NewArrivals(ctx context.Context) ([]SpecView, error) {
	since := time.Now().Add(-newArrivalWindow)
	specs, err := s.specs.ListNewest(ctx, since, newArrivalLimit)
	if err != nil {
		return nil, err
	}
	return s.buildViews(ctx, specs)
}

// Popular lists the best-rated in-stock items.
func (s *Service) Popular(ctx context.Context) ([]SpecView, error) {
	specs, err := s.specs.ListPopular(ctx, popularLimit)
	if err != nil {
		return nil, err
	}
	return s.buildViews(ctx, specs)
}

// SpecDetail returns one item with its product attributes, average
// rating and reviews.
func (s *Service) SpecDetail(ctx context.Context, specID uint) (*SpecView, []Rate, error) {
	spec, err := s.specs.Get(ctx, specID)
	if err != nil {
		return nil, nil, err
	}
	ref := ProductRef{Kind: spec.ProductKind, ID: spec.ProductID}

	product, err := s.products.Get(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	rates, err := s.rates.ListForProduct(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	averages, err := s.rates.AverageFor(ctx, []ProductRef{ref})
	if err != nil {
		return nil, nil, err
	}

	view := &SpecView{
		Specification:  *spec,
		EffectivePrice: spec.EffectivePrice().StringFixed(2),
		Product:        product.View(),
		Rating:         averages[ref],
	}
	return view, rates, nil
}

// buildViews resolves products and average ratings for a batch of
// specifications in two bulk queries.
func (s *Service) buildViews(ctx context.Context, specs []Specification) ([]SpecView, error) {
	refs := make([]ProductRef, 0, len(specs))
	seen := make(map[ProductRef]bool, len(specs))
	for _, spec := range specs {
		ref := ProductRef{Kind: spec.ProductKind, ID: spec.ProductID}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	products, err := s.products.GetMany(ctx, refs)
	if err != nil {
		return nil, err
	}
	averages, err := s.rates.AverageFor(ctx, refs)
	if err != nil {
		return nil, err
	}

	views := make([]SpecView, 0, len(specs))
	for _, spec := range specs {
		ref := ProductRef{Kind: spec.ProductKind, ID: spec.ProductID}
		product, ok := products[ref]
		if !ok {
			s.logger.WithFields(logrus.Fields{
				"specification_id": spec.ID,
				"product_kind":     spec.ProductKind,
				"product_id":       spec.ProductID,
			}).Warn("Specification references missing product")
			continue
		}
		views = append(views, SpecView{
			Specification:  spec,
			EffectivePrice: spec.EffectivePrice().StringFixed(2),
			Product:        product.View(),
			Rating:         averages[ref],
		})
	}
	return views, nil
}

// categoryFamilyIDs collects a category's id plus all its children ids.
func categoryFamilyIDs(category *Category) []uint {
	ids := make([]uint, 0, len(category.Children)+1)
	ids = append(ids, category.ID)
	for _, child := range category.Children {
		ids = append(ids, child.ID)
	}
	return ids
}

// InvalidateCategoryCache drops the cached category tree, used after
// admin-side category changes.
func (s *Service) InvalidateCategoryCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, categoryTreeCacheKey).Err(); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate category cache")
	}
}

// RateProduct creates or replaces the caller's rating of a product.
func (s *Service) RateProduct(ctx context.Context, userID uint, ref ProductRef, point int, review string) error {
	if point < 1 || point > 5 {
		return fmt.Errorf("point must be between 1 and 5: %w", ErrValidation)
	}
	if !ref.Kind.IsValid() {
		return fmt.Errorf("unknown product kind %q: %w", ref.Kind, ErrValidation)
	}
	if _, err := s.products.Get(ctx, ref); err != nil {
		return err
	}
	rate := &Rate{
		UserID:      userID,
		ProductKind: ref.Kind,
		ProductID:   ref.ID,
		Point:       point,
		Review:      review,
	}
	return s.rates.Upsert(ctx, rate)
}

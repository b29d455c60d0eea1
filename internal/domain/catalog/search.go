// internal/domain/catalog/search.go
package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"gorm.io/gorm"
)

const searchResultLimit = 50

// SearchResult is one ranked specification hit.
type SearchResult struct {
	Specification
	Rank float64 `json:"rank"`
}

// SearchRepository runs ranked full-text queries against the catalog.
type SearchRepository interface {
	// TopCategory returns the best-matching category for the query, or
	// nil when no category matches at all.
	TopCategory(ctx context.Context, tsquery string) (*Category, error)
	// RankSpecs returns in-stock specifications ranked by combined
	// product and tag relevance, optionally narrowed to categories.
	RankSpecs(ctx context.Context, tsquery string, categoryIDs []uint) ([]SearchResult, error)
}

type searchRepository struct {
	db *gorm.DB
}

// NewSearchRepository creates a gorm-backed search repository.
func NewSearchRepository(db *gorm.DB) SearchRepository {
	return &searchRepository{db: db}
}

// BuildTSQuery turns free-form user input into a to_tsquery expression
// that matches any of the words. Everything except letters and digits is
// stripped, so the result is always a valid tsquery.
func BuildTSQuery(input string) string {
	fields := strings.Fields(input)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		var b strings.Builder
		for _, r := range f {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToLower(r))
			}
		}
		if b.Len() > 0 {
			terms = append(terms, b.String())
		}
	}
	return strings.Join(terms, " | ")
}

func (r *searchRepository) TopCategory(ctx context.Context, tsquery string) (*Category, error) {
	type rankedCategory struct {
		Category
		Rank float64
	}
	var row rankedCategory
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.*, ts_rank(to_tsvector('english', c.name), to_tsquery('english', ?)) AS rank
		FROM categories c
		ORDER BY rank DESC
		LIMIT 1`, tsquery).Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank categories: %w", err)
	}
	if row.Rank <= 0 || row.ID == 0 {
		return nil, nil
	}
	category := row.Category
	if err := r.db.WithContext(ctx).Where("parent_id = ?", category.ID).Find(&category.Children).Error; err != nil {
		return nil, fmt.Errorf("failed to load subcategories: %w", err)
	}
	return &category, nil
}

// RankSpecs ranks by the sum of the product match and the tag match.
// The product part is wrapped in COALESCE so a specification whose
// product text does not match still surfaces on a tag hit alone.
func (r *searchRepository) RankSpecs(ctx context.Context, tsquery string, categoryIDs []uint) ([]SearchResult, error) {
	query := `
		SELECT * FROM (
			SELECT s.*,
			       COALESCE(ts_rank(to_tsvector('english', p.name || ' ' || p.marking), q.query), 0)
			       + ts_rank(to_tsvector('english', s.tag), q.query) AS rank
			FROM specifications s
			JOIN products p ON p.kind = s.product_kind AND p.id = s.product_id,
			     (SELECT to_tsquery('english', ?) AS query) q
			WHERE s.available_qty > 0`
	args := []interface{}{tsquery}
	if len(categoryIDs) > 0 {
		query += ` AND s.category_id IN ?`
		args = append(args, categoryIDs)
	}
	query += `
		) ranked
		WHERE rank > 0
		ORDER BY rank DESC
		LIMIT ?`
	args = append(args, searchResultLimit)

	var results []SearchResult
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to search specifications: %w", err)
	}
	return results, nil
}

// SearchView is the outcome of a catalog search: the matched category,
// if any, and the ranked items.
type SearchView struct {
	Query    string     `json:"query"`
	Category *Category  `json:"category,omitempty"`
	Items    []SpecView `json:"items"`
}

// Search runs the two-stage lookup: first the best-matching category
// narrows the field, then specifications are ranked inside it. Without a
// category match the whole catalog is ranked.
func (s *Service) Search(ctx context.Context, input string) (*SearchView, error) {
	tsquery := BuildTSQuery(input)
	view := &SearchView{Query: input, Items: []SpecView{}}
	if tsquery == "" {
		return view, nil
	}

	category, err := s.search.TopCategory(ctx, tsquery)
	if err != nil {
		return nil, err
	}
	var categoryIDs []uint
	if category != nil {
		view.Category = category
		categoryIDs = categoryFamilyIDs(category)
	}

	results, err := s.search.RankSpecs(ctx, tsquery, categoryIDs)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && category != nil {
		// Category narrowed too far, retry across the whole catalog.
		results, err = s.search.RankSpecs(ctx, tsquery, nil)
		if err != nil {
			return nil, err
		}
	}

	specs := make([]Specification, len(results))
	for i, r := range results {
		specs[i] = r.Specification
	}
	views, err := s.buildViews(ctx, specs)
	if err != nil {
		return nil, err
	}
	view.Items = views
	return view, nil
}

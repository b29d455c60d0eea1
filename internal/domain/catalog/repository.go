// internal/domain/catalog/repository.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sentinel errors reported by the repositories. Callers discriminate with
// errors.Is and translate to user-facing messages at the HTTP boundary.
var (
	ErrNotFound      = errors.New("catalog: not found")
	ErrStockConflict = errors.New("catalog: insufficient available quantity")
	ErrValidation    = errors.New("catalog: invalid input")
)

// ProductRef identifies a concrete product row across kinds.
type ProductRef struct {
	Kind ProductKind
	ID   uint
}

// ReservationLine is one (specification, quantity) pair of a reservation.
type ReservationLine struct {
	SpecificationID uint
	Quantity        decimal.Decimal
}

// SpecificationRepository is the only path through which available
// quantity may be mutated.
type SpecificationRepository interface {
	Get(ctx context.Context, id uint) (*Specification, error)
	GetMany(ctx context.Context, ids []uint) (map[uint]Specification, error)
	ListByCategories(ctx context.Context, categoryIDs []uint) ([]Specification, error)
	ListNewest(ctx context.Context, since time.Time, limit int) ([]Specification, error)
	// ListPopular returns in-stock specifications of the best-rated
	// products, ordered by average rating.
	ListPopular(ctx context.Context, limit int) ([]Specification, error)

	// Reserve subtracts each line quantity from the specification's
	// available quantity in a single all-or-nothing transaction.
	Reserve(ctx context.Context, lines []ReservationLine) error
	// Release adds each line quantity back. Additions cannot violate the
	// non-negativity invariant, so no surrounding transaction is needed.
	Release(ctx context.Context, lines []ReservationLine) error
}

// ProductRepository resolves product rows for any kind.
type ProductRepository interface {
	Get(ctx context.Context, ref ProductRef) (*Product, error)
	GetMany(ctx context.Context, refs []ProductRef) (map[ProductRef]Product, error)
}

// CategoryRepository reads the two-level category tree.
type CategoryRepository interface {
	Tree(ctx context.Context) ([]Category, error)
	Get(ctx context.Context, id uint) (*Category, error)
	GetByName(ctx context.Context, name string) (*Category, error)
}

// RateRepository stores user ratings and aggregates them per product.
type RateRepository interface {
	Upsert(ctx context.Context, rate *Rate) error
	ListForProduct(ctx context.Context, ref ProductRef) ([]Rate, error)
	AverageFor(ctx context.Context, refs []ProductRef) (map[ProductRef]float64, error)
}

// gorm implementations

type specificationRepository struct {
	db *gorm.DB
}

// NewSpecificationRepository creates a gorm-backed specification repository.
func NewSpecificationRepository(db *gorm.DB) SpecificationRepository {
	return &specificationRepository{db: db}
}

func (r *specificationRepository) Get(ctx context.Context, id uint) (*Specification, error) {
	var spec Specification
	err := r.db.WithContext(ctx).First(&spec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("specification %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve specification: %w", err)
	}
	return &spec, nil
}

func (r *specificationRepository) GetMany(ctx context.Context, ids []uint) (map[uint]Specification, error) {
	var specs []Specification
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&specs).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve specifications: %w", err)
	}
	out := make(map[uint]Specification, len(specs))
	for _, s := range specs {
		out[s.ID] = s
	}
	return out, nil
}

func (r *specificationRepository) ListByCategories(ctx context.Context, categoryIDs []uint) ([]Specification, error) {
	var specs []Specification
	err := r.db.WithContext(ctx).
		Where("category_id IN ? AND available_qty > 0", categoryIDs).
		Order("category_id ASC, price ASC").
		Find(&specs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list specifications: %w", err)
	}
	return specs, nil
}

func (r *specificationRepository) ListNewest(ctx context.Context, since time.Time, limit int) ([]Specification, error) {
	var specs []Specification
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND available_qty > 0", since).
		Order("id DESC").
		Limit(limit).
		Find(&specs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list newest specifications: %w", err)
	}
	return specs, nil
}

func (r *specificationRepository) ListPopular(ctx context.Context, limit int) ([]Specification, error) {
	var specs []Specification
	err := r.db.WithContext(ctx).Raw(`
		SELECT s.* FROM specifications s
		JOIN rates r ON r.product_kind = s.product_kind AND r.product_id = s.product_id
		WHERE s.available_qty > 0
		GROUP BY s.id
		ORDER BY AVG(r.point) DESC, COUNT(r.id) DESC
		LIMIT ?`, limit).Scan(&specs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list popular specifications: %w", err)
	}
	return specs, nil
}

// Reserve locks the specification rows with SELECT ... FOR UPDATE in
// ascending id order, so two orders sharing several SKUs always contend
// in the same sequence and cannot deadlock. Each decrement is guarded by
// available_qty >= quantity; a zero-row update means some other checkout
// took the stock first, and the whole transaction rolls back.
func (r *specificationRepository) Reserve(ctx context.Context, lines []ReservationLine) error {
	if len(lines) == 0 {
		return nil
	}
	sorted := make([]ReservationLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SpecificationID < sorted[j].SpecificationID
	})

	tx := r.db.WithContext(ctx).Begin()
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
		}
	}()

	ids := make([]uint, len(sorted))
	for i, ln := range sorted {
		ids[i] = ln.SpecificationID
	}

	var locked []Specification
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&locked).Error
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to lock specifications: %w", err)
	}
	if len(locked) != len(ids) {
		tx.Rollback()
		return fmt.Errorf("reserve: %w", ErrNotFound)
	}

	for _, ln := range sorted {
		result := tx.Model(&Specification{}).
			Where("id = ? AND available_qty >= ?", ln.SpecificationID, ln.Quantity).
			UpdateColumn("available_qty", gorm.Expr("available_qty - ?", ln.Quantity))
		if result.Error != nil {
			tx.Rollback()
			return fmt.Errorf("failed to reserve specification %d: %w", ln.SpecificationID, result.Error)
		}
		if result.RowsAffected == 0 {
			tx.Rollback()
			return fmt.Errorf("specification %d: %w", ln.SpecificationID, ErrStockConflict)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

func (r *specificationRepository) Release(ctx context.Context, lines []ReservationLine) error {
	for _, ln := range lines {
		result := r.db.WithContext(ctx).Model(&Specification{}).
			Where("id = ?", ln.SpecificationID).
			UpdateColumn("available_qty", gorm.Expr("available_qty + ?", ln.Quantity))
		if result.Error != nil {
			return fmt.Errorf("failed to release specification %d: %w", ln.SpecificationID, result.Error)
		}
	}
	return nil
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a gorm-backed product repository.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Get(ctx context.Context, ref ProductRef) (*Product, error) {
	var product Product
	err := r.db.WithContext(ctx).
		Where("kind = ? AND id = ?", ref.Kind, ref.ID).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %s/%d: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	return &product, nil
}

func (r *productRepository) GetMany(ctx context.Context, refs []ProductRef) (map[ProductRef]Product, error) {
	out := make(map[ProductRef]Product, len(refs))
	if len(refs) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	var products []Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve products: %w", err)
	}
	for _, p := range products {
		out[ProductRef{Kind: p.Kind, ID: p.ID}] = p
	}
	return out, nil
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a gorm-backed category repository.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Tree(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := r.db.WithContext(ctx).
		Preload("Children").
		Where("parent_id IS NULL").
		Order("name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve category tree: %w", err)
	}
	return categories, nil
}

func (r *categoryRepository) Get(ctx context.Context, id uint) (*Category, error) {
	var category Category
	err := r.db.WithContext(ctx).Preload("Children").First(&category, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve category: %w", err)
	}
	return &category, nil
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*Category, error) {
	var category Category
	err := r.db.WithContext(ctx).
		Preload("Children").
		Where("LOWER(name) = LOWER(?)", name).
		First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve category: %w", err)
	}
	return &category, nil
}

type rateRepository struct {
	db *gorm.DB
}

// NewRateRepository creates a gorm-backed rate repository.
func NewRateRepository(db *gorm.DB) RateRepository {
	return &rateRepository{db: db}
}

func (r *rateRepository) Upsert(ctx context.Context, rate *Rate) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_kind"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"point", "review", "updated_at"}),
	}).Create(rate).Error
	if err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}
	return nil
}

func (r *rateRepository) ListForProduct(ctx context.Context, ref ProductRef) ([]Rate, error) {
	var rates []Rate
	err := r.db.WithContext(ctx).
		Where("product_kind = ? AND product_id = ?", ref.Kind, ref.ID).
		Order("updated_at DESC").
		Find(&rates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	return rates, nil
}

func (r *rateRepository) AverageFor(ctx context.Context, refs []ProductRef) (map[ProductRef]float64, error) {
	out := make(map[ProductRef]float64, len(refs))
	if len(refs) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	type row struct {
		ProductKind ProductKind
		ProductID   uint
		Avg         float64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&Rate{}).
		Select("product_kind, product_id, AVG(point) AS avg").
		Where("product_id IN ?", ids).
		Group("product_kind, product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate rates: %w", err)
	}
	for _, r := range rows {
		out[ProductRef{Kind: r.ProductKind, ID: r.ProductID}] = r.Avg
	}
	return out, nil
}

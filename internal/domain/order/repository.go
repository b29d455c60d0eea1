// internal/domain/order/repository.go
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sentinel errors of the order domain.
var (
	ErrNotFound          = errors.New("order: not found")
	ErrEmptyCart         = errors.New("order: cart is empty")
	ErrStalePrice        = errors.New("order: prices changed, refresh the cart")
	ErrInvalidTransition = errors.New("order: status transition not allowed")
	ErrNotDeletable      = errors.New("order: cannot be deleted in its current status")
)

// Repository persists orders and their lines.
type Repository interface {
	// GetCart returns the user's cart order with items, or ErrNotFound.
	GetCart(ctx context.Context, userID uint) (*Order, error)
	// GetOrCreateCart returns the user's cart order, creating it when
	// missing. The partial unique index on (user_id) WHERE status = 1
	// keeps concurrent creations down to one row.
	GetOrCreateCart(ctx context.Context, userID uint) (*Order, error)
	// Get returns one of the user's orders with items.
	Get(ctx context.Context, userID, orderID uint) (*Order, error)
	// GetByID returns an order regardless of owner, for admin use.
	GetByID(ctx context.Context, orderID uint) (*Order, error)
	// List returns the user's orders other than the cart, newest first.
	List(ctx context.Context, userID uint) ([]Order, error)

	Save(ctx context.Context, order *Order) error
	Delete(ctx context.Context, order *Order) error

	// UpsertItem sets the line quantity and captured price for a
	// specification, inserting the line when absent.
	UpsertItem(ctx context.Context, orderID, specificationID uint, quantity, price decimal.Decimal) error
	// DeleteItem removes the line for a specification if present.
	DeleteItem(ctx context.Context, orderID, specificationID uint) error
	// ClearItems removes every line of an order.
	ClearItems(ctx context.Context, orderID uint) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed order repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetCart(ctx context.Context, userID uint) (*Order, error) {
	var cart Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND status = ?", userID, StatusCart).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("cart for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	return &cart, nil
}

func (r *repository) GetOrCreateCart(ctx context.Context, userID uint) (*Order, error) {
	cart, err := r.GetCart(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	fresh := &Order{UserID: userID, Status: StatusCart, OrderCost: decimal.Zero}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fresh).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	if fresh.ID != 0 {
		fresh.Items = []Item{}
		return fresh, nil
	}
	// Lost the race, another request created the cart first.
	return r.GetCart(ctx, userID)
}

func (r *repository) Get(ctx context.Context, userID, orderID uint) (*Order, error) {
	var ord Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&ord).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &ord, nil
}

func (r *repository) GetByID(ctx context.Context, orderID uint) (*Order, error) {
	var ord Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&ord, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &ord, nil
}

func (r *repository) List(ctx context.Context, userID uint) ([]Order, error) {
	var orders []Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND status <> ?", userID, StatusCart).
		Order("order_date DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (r *repository) Save(ctx context.Context, order *Order) error {
	if err := r.db.WithContext(ctx).Omit("Items").Save(order).Error; err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, order *Order) error {
	if err := r.db.WithContext(ctx).Delete(order).Error; err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (r *repository) UpsertItem(ctx context.Context, orderID, specificationID uint, quantity, price decimal.Decimal) error {
	item := &Item{
		OrderID:         orderID,
		SpecificationID: specificationID,
		Quantity:        quantity,
		Price:           price,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "specification_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "price", "updated_at"}),
	}).Create(item).Error
	if err != nil {
		return fmt.Errorf("failed to upsert order item: %w", err)
	}
	return nil
}

func (r *repository) DeleteItem(ctx context.Context, orderID, specificationID uint) error {
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND specification_id = ?", orderID, specificationID).
		Delete(&Item{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete order item: %w", err)
	}
	return nil
}

func (r *repository) ClearItems(ctx context.Context, orderID uint) error {
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&Item{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}
	return nil
}

// internal/domain/order/entity.go
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle stage of an order. The cart itself is an
// order in status Cart, so every user has at most one order in that
// status at a time (enforced by a partial unique index).
type Status int

const (
	StatusCart       Status = 1
	StatusProcessing Status = 2
	StatusShipping   Status = 3
	StatusFinished   Status = 4
	StatusCanceled   Status = 5
)

// String returns the human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusCart:
		return "cart"
	case StatusProcessing:
		return "processing"
	case StatusShipping:
		return "shipping"
	case StatusFinished:
		return "finished"
	case StatusCanceled:
		return "canceled"
	}
	return "unknown"
}

// IsValid reports whether the status is one of the defined stages.
func (s Status) IsValid() bool {
	return s >= StatusCart && s <= StatusCanceled
}

// CanTransition reports whether an order may move from s to next.
// Finished and Canceled are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusCart:
		return next == StatusProcessing || next == StatusCanceled
	case StatusProcessing:
		return next == StatusShipping || next == StatusCanceled
	case StatusShipping:
		return next == StatusFinished || next == StatusCanceled
	}
	return false
}

// Order is a user's order in any lifecycle stage, including the cart.
// Reserved tracks whether stock is currently subtracted for this order,
// so cancellation knows whether a release is owed.
type Order struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;index" json:"user_id"`
	Status    Status          `gorm:"not null;default:1" json:"status"`
	Reserved  bool            `gorm:"not null;default:false" json:"reserved"`
	Address   string          `gorm:"size:200" json:"address"`
	OrderCost decimal.Decimal `gorm:"type:decimal(9,2);not null;default:0" json:"order_cost"`
	OrderDate time.Time       `gorm:"autoUpdateTime" json:"order_date"`
	CreatedAt time.Time       `json:"created_at"`

	Items []Item `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// Item is one order line. A specification appears at most once per
// order; adding it again replaces the quantity.
type Item struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         uint            `gorm:"not null;uniqueIndex:idx_order_items_order_spec,priority:1" json:"order_id"`
	SpecificationID uint            `gorm:"not null;uniqueIndex:idx_order_items_order_spec,priority:2" json:"specification_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(6,3);not null" json:"quantity"`
	Price           decimal.Decimal `gorm:"type:decimal(9,2);not null" json:"price"` // unit price captured at add time
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName overrides
func (Order) TableName() string { return "orders" }
func (Item) TableName() string  { return "order_items" }

// IsCart reports whether this order is the user's active cart.
func (o *Order) IsCart() bool { return o.Status == StatusCart }

// IsDeletableByOwner reports whether the owning user may delete the
// order. Only finished or canceled orders can go; everything earlier
// may still hold reserved stock.
func (o *Order) IsDeletableByOwner() bool {
	return o.Status == StatusFinished || o.Status == StatusCanceled
}

// TotalPrice returns quantity times captured unit price for one line.
func (i *Item) TotalPrice() decimal.Decimal {
	return i.Price.Mul(i.Quantity).RoundBank(2)
}

// ItemsCost sums the captured line totals, quantized to cents.
func (o *Order) ItemsCost() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalPrice())
	}
	return total.RoundBank(2)
}

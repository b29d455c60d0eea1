// internal/domain/catalog/entity.go
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductKind discriminates the concrete product variants that share the
// common product attributes.
type ProductKind string

const (
	KindTV         ProductKind = "tv"
	KindSmartphone ProductKind = "smartphone"
	KindClothing   ProductKind = "clothing"
	KindFood       ProductKind = "food"
)

// AllKinds lists every concrete product kind in a fixed order.
var AllKinds = []ProductKind{KindTV, KindSmartphone, KindClothing, KindFood}

// IsValid reports whether the kind names a known product variant.
func (k ProductKind) IsValid() bool {
	switch k {
	case KindTV, KindSmartphone, KindClothing, KindFood:
		return true
	}
	return false
}

// Unit of measure codes for products.
const (
	UnitPiece  = "PC"
	UnitPack   = "PCK"
	UnitPair   = "PR"
	UnitBottle = "BTL"
	UnitLot    = "LT"
	UnitKilo   = "KG"
	UnitPound  = "LB"
	UnitLiter  = "L"
	UnitGallon = "GAL"
)

// Category groups products of a single kind. One level of nesting only:
// a category either has no parent or its parent is a top-level category.
type Category struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Name      string      `gorm:"uniqueIndex;not null;size:40" json:"name"`
	ParentID  *uint       `gorm:"index" json:"parent_id,omitempty"`
	Kind      ProductKind `gorm:"not null;size:20;index" json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	Parent   *Category  `gorm:"foreignKey:ParentID" json:"-"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// Product carries the attributes common to every kind plus the
// kind-specific columns of the concrete variants. Kind selects which of
// the optional columns are meaningful.
type Product struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	Kind             ProductKind `gorm:"not null;size:20;index:idx_products_kind_id,priority:1" json:"kind"`
	Name             string      `gorm:"not null;size:40" json:"name"`
	Marking          string      `gorm:"not null;size:40" json:"marking"` // model or main feature
	ImageURL         string      `gorm:"size:500" json:"image_url"`
	Description      string      `gorm:"type:text" json:"description"`
	Unit             string      `gorm:"size:3;default:'PC'" json:"unit"`
	UnitForWeightVol string      `gorm:"size:3;default:'KG'" json:"unit_for_weight_vol"`
	CategoryID       uint        `gorm:"not null;index" json:"category_id"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`

	// TV
	ScreenDiagonal   string `gorm:"size:10" json:"screen_diagonal,omitempty"`
	ScreenResolution string `gorm:"size:20" json:"screen_resolution,omitempty"`
	// Smartphone
	RAM    string `gorm:"column:ram;size:30" json:"ram,omitempty"`
	Memory string `gorm:"size:30" json:"memory,omitempty"`
	// Clothing
	ClothingType string `gorm:"size:1" json:"clothing_type,omitempty"` // M, W, K
	ClothingSize string `gorm:"size:2" json:"clothing_size,omitempty"` // S..2X

	Category Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
}

// Specification is a sellable SKU variant of a product, carrying price,
// discount and stock data. AvailableQty never goes below zero; the
// database enforces it with a check constraint and the reservation path
// guards every decrement.
type Specification struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Tag         string          `gorm:"size:20" json:"tag"`
	ImageURL    string          `gorm:"size:500" json:"image_url"`
	PrePacking  decimal.Decimal `gorm:"type:decimal(6,3);not null;default:1" json:"pre_packing"`
	WeightVol   decimal.Decimal `gorm:"type:decimal(6,3);not null" json:"weight_vol"`
	Price       decimal.Decimal `gorm:"type:decimal(9,2);not null" json:"price"`
	Discount    int             `gorm:"not null;default:0" json:"discount"` // percent, 0..99
	DiscountPrice decimal.Decimal `gorm:"type:decimal(9,2);not null;default:0" json:"discount_price"`
	SalePrice   decimal.Decimal `gorm:"type:decimal(9,2);not null;default:0" json:"sale_price"` // 0 disables
	AvailableQty decimal.Decimal `gorm:"type:decimal(6,3);not null" json:"available_qty"`
	Addition    string          `gorm:"size:100" json:"addition"`
	CategoryID  uint            `gorm:"not null;index" json:"category_id"`
	ProductKind ProductKind     `gorm:"not null;size:20;index:idx_specs_product,priority:1" json:"product_kind"`
	ProductID   uint            `gorm:"not null;index:idx_specs_product,priority:2" json:"product_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Category Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
}

// Rate is one user's rating of a product, 1 to 5 points with an optional
// review. Unique per (user, product kind, product).
type Rate struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"not null;uniqueIndex:idx_rates_user_product,priority:1" json:"user_id"`
	ProductKind ProductKind `gorm:"not null;size:20;uniqueIndex:idx_rates_user_product,priority:2" json:"product_kind"`
	ProductID   uint        `gorm:"not null;uniqueIndex:idx_rates_user_product,priority:3" json:"product_id"`
	Point       int         `gorm:"not null;check:point >= 1 AND point <= 5" json:"point"`
	Review      string      `gorm:"type:text" json:"review"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName overrides
func (Category) TableName() string      { return "categories" }
func (Product) TableName() string       { return "products" }
func (Specification) TableName() string { return "specifications" }
func (Rate) TableName() string          { return "rates" }

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ComputeDiscountPrice derives the discounted price from the list price,
// quantized to cents with bankers' rounding.
func ComputeDiscountPrice(price decimal.Decimal, discount int) decimal.Decimal {
	off := price.Mul(decimal.NewFromInt(int64(discount))).Div(hundred).RoundBank(2)
	return price.Sub(off)
}

// BeforeSave recomputes the discount price on every save so the stored
// value can never drift from price and discount, and defaults the
// category to the product's one when unset.
func (s *Specification) BeforeSave(tx *gorm.DB) error {
	s.DiscountPrice = ComputeDiscountPrice(s.Price, s.Discount)
	if s.CategoryID == 0 {
		var product Product
		err := tx.Where("kind = ? AND id = ?", s.ProductKind, s.ProductID).First(&product).Error
		if err != nil {
			return err
		}
		s.CategoryID = product.CategoryID
	}
	return nil
}

// AfterUpdate propagates a product's category change to its
// specifications, keeping category listings consistent.
func (p *Product) AfterUpdate(tx *gorm.DB) error {
	return tx.Model(&Specification{}).
		Where("product_kind = ? AND product_id = ? AND category_id <> ?", p.Kind, p.ID, p.CategoryID).
		Update("category_id", p.CategoryID).Error
}

// EffectivePrice returns the price a buyer actually pays:
// sale price when set, otherwise discount price, otherwise list price.
func (s *Specification) EffectivePrice() decimal.Decimal {
	if s.SalePrice.IsPositive() {
		return s.SalePrice
	}
	if s.Discount > 0 {
		return s.DiscountPrice
	}
	return s.Price
}

// InStock reports whether any quantity is available for sale.
func (s *Specification) InStock() bool {
	return s.AvailableQty.IsPositive()
}

// RoundToPacking rounds a requested quantity down to the nearest multiple
// of the pre-packing unit. A pre-packing of one truncates to an integer.
func RoundToPacking(qty, packing decimal.Decimal) decimal.Decimal {
	if packing.Equal(one) {
		return qty.Floor()
	}
	return qty.Div(packing).Floor().Mul(packing)
}

// ProductView is a flattened product representation for listing and
// detail responses, resolved once per concrete kind.
type ProductView struct {
	ID          uint              `json:"id"`
	Kind        ProductKind       `json:"kind"`
	Name        string            `json:"name"`
	Marking     string            `json:"marking"`
	ImageURL    string            `json:"image_url"`
	Description string            `json:"description"`
	Unit        string            `json:"unit"`
	CategoryID  uint              `json:"category_id"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// View resolves the kind-specific columns into a generic attribute map.
func (p *Product) View() ProductView {
	v := ProductView{
		ID:          p.ID,
		Kind:        p.Kind,
		Name:        p.Name,
		Marking:     p.Marking,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		Unit:        p.Unit,
		CategoryID:  p.CategoryID,
	}
	switch p.Kind {
	case KindTV:
		v.Attributes = map[string]string{
			"screen_diagonal":   p.ScreenDiagonal,
			"screen_resolution": p.ScreenResolution,
		}
	case KindSmartphone:
		v.Attributes = map[string]string{
			"ram":    p.RAM,
			"memory": p.Memory,
		}
	case KindClothing:
		v.Attributes = map[string]string{
			"type": p.ClothingType,
			"size": p.ClothingSize,
		}
	}
	return v
}

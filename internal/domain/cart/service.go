// internal/domain/cart/service.go
package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/maxreshetnik/portfolio/internal/domain/catalog"
	"github.com/maxreshetnik/portfolio/internal/domain/order"
)

// QuantityError reports a request for more units than the catalog has.
// It carries the quantity still available so the message can name it.
type QuantityError struct {
	Available decimal.Decimal
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("only %s left in stock", e.Available)
}

// Service handles the shopping cart. The cart itself is the user's
// order in the cart status; this service owns its lines.
type Service struct {
	orders   order.Repository
	specs    catalog.SpecificationRepository
	products catalog.ProductRepository
	logger   *logrus.Logger
}

// NewService creates a cart service.
func NewService(
	orders order.Repository,
	specs catalog.SpecificationRepository,
	products catalog.ProductRepository,
	logger *logrus.Logger,
) *Service {
	return &Service{orders: orders, specs: specs, products: products, logger: logger}
}

// AddItemRequest sets the absolute quantity of one specification in the
// cart. It is a replacement, not an increment; zero removes the line.
type AddItemRequest struct {
	SpecificationID uint            `json:"specification_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
}

// ItemView is one cart line joined with its catalog data and the
// staleness flags the storefront renders.
type ItemView struct {
	SpecificationID uint                `json:"specification_id"`
	Tag             string              `json:"tag"`
	Product         catalog.ProductView `json:"product"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Price           decimal.Decimal     `json:"price"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
	AvailableQty    decimal.Decimal     `json:"available_qty"`
	// PriceChanged means the catalog's effective price no longer matches
	// the captured one; the line should be re-added to refresh it.
	PriceChanged bool `json:"price_changed"`
	// ShortStock means less stock remains than the line asks for.
	ShortStock bool `json:"short_stock"`
}

// View is the rendered cart.
type View struct {
	OrderID   uint            `json:"order_id"`
	Items     []ItemView      `json:"items"`
	OrderCost decimal.Decimal `json:"order_cost"`
	Count     int             `json:"count"`
}

// AddItem validates and stores an absolute quantity for a specification.
// The quantity is rounded down to the pre-packing multiple; a rounded
// quantity of zero deletes the line. Asking for more than is available
// fails with a QuantityError before any rounding.
func (s *Service) AddItem(ctx context.Context, userID uint, req *AddItemRequest) (*View, error) {
	if req.Quantity.IsNegative() {
		return nil, fmt.Errorf("quantity cannot be negative: %w", catalog.ErrValidation)
	}
	spec, err := s.specs.Get(ctx, req.SpecificationID)
	if err != nil {
		return nil, err
	}
	if req.Quantity.GreaterThan(spec.AvailableQty) {
		return nil, &QuantityError{Available: spec.AvailableQty}
	}

	quantity := catalog.RoundToPacking(req.Quantity, spec.PrePacking)

	cart, err := s.orders.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if quantity.IsZero() {
		if err := s.orders.DeleteItem(ctx, cart.ID, spec.ID); err != nil {
			return nil, err
		}
	} else {
		if err := s.orders.UpsertItem(ctx, cart.ID, spec.ID, quantity, spec.EffectivePrice()); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, userID)
}

// RemoveItem drops one specification from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, specificationID uint) (*View, error) {
	cart, err := s.orders.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.orders.DeleteItem(ctx, cart.ID, specificationID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// Clear drops every line from the cart.
func (s *Service) Clear(ctx context.Context, userID uint) error {
	cart, err := s.orders.GetCart(ctx, userID)
	if err != nil {
		return err
	}
	return s.orders.ClearItems(ctx, cart.ID)
}

// Get renders the cart with fresh catalog data. The total is the sum
// of captured line prices; lines whose price or stock drifted since
// they were added are flagged rather than silently repriced.
func (s *Service) Get(ctx context.Context, userID uint) (*View, error) {
	cart, err := s.orders.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &View{OrderID: cart.ID, Items: []ItemView{}, OrderCost: decimal.Zero}
	if len(cart.Items) == 0 {
		return view, nil
	}

	ids := make([]uint, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.SpecificationID
	}
	specs, err := s.specs.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	refs := make([]catalog.ProductRef, 0, len(specs))
	for _, spec := range specs {
		refs = append(refs, catalog.ProductRef{Kind: spec.ProductKind, ID: spec.ProductID})
	}
	products, err := s.products.GetMany(ctx, refs)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, item := range cart.Items {
		spec, ok := specs[item.SpecificationID]
		if !ok {
			// The specification was removed from the catalog, drop the line.
			if err := s.orders.DeleteItem(ctx, cart.ID, item.SpecificationID); err != nil {
				s.logger.WithError(err).WithField("specification_id", item.SpecificationID).
					Warn("Failed to drop orphaned cart line")
			}
			continue
		}
		lineTotal := item.TotalPrice()
		total = total.Add(lineTotal)

		iv := ItemView{
			SpecificationID: item.SpecificationID,
			Tag:             spec.Tag,
			Quantity:        item.Quantity,
			Price:           item.Price,
			TotalPrice:      lineTotal,
			AvailableQty:    spec.AvailableQty,
			PriceChanged:    !spec.EffectivePrice().Equal(item.Price),
			ShortStock:      spec.AvailableQty.LessThan(item.Quantity),
		}
		if product, ok := products[catalog.ProductRef{Kind: spec.ProductKind, ID: spec.ProductID}]; ok {
			iv.Product = product.View()
		}
		view.Items = append(view.Items, iv)
	}

	view.OrderCost = total.RoundBank(2)
	view.Count = len(view.Items)
	return view, nil
}

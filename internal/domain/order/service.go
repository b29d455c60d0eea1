// internal/domain/order/service.go
package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/maxreshetnik/portfolio/internal/domain/catalog"
)

// Service handles order lifecycle logic: checkout, status transitions
// and the stock reservation tied to them.
type Service struct {
	orders Repository
	specs  catalog.SpecificationRepository
	logger *logrus.Logger
}

// NewService creates an order service.
func NewService(orders Repository, specs catalog.SpecificationRepository, logger *logrus.Logger) *Service {
	return &Service{orders: orders, specs: specs, logger: logger}
}

// PlaceOrderRequest carries the checkout form data. OrderCost is the
// total the client saw; it must match the server-side recomputation.
type PlaceOrderRequest struct {
	Address   string          `json:"address" binding:"required,max=200"`
	OrderCost decimal.Decimal `json:"order_cost" binding:"required"`
}

// PlaceOrder turns the user's cart into a processing order. The flow is
// check cost, mark processing, reserve stock. A failed reservation puts
// the order back into the cart status untouched, so the user can adjust
// quantities and retry.
func (s *Service) PlaceOrder(ctx context.Context, userID uint, req *PlaceOrderRequest) (*Order, error) {
	cart, err := s.orders.GetCart(ctx, userID)
	if err != nil {
		return nil, ErrEmptyCart
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	cost, err := s.CurrentCost(ctx, cart)
	if err != nil {
		return nil, err
	}
	if !cost.Equal(req.OrderCost) {
		return nil, fmt.Errorf("submitted %s, current %s: %w",
			req.OrderCost.StringFixed(2), cost.StringFixed(2), ErrStalePrice)
	}

	cart.Status = StatusProcessing
	cart.Address = req.Address
	cart.OrderCost = cost
	if err := s.orders.Save(ctx, cart); err != nil {
		return nil, err
	}

	lines := reservationLines(cart.Items)
	if err := s.specs.Reserve(ctx, lines); err != nil {
		// Soft failure: the order goes back to being the cart.
		cart.Status = StatusCart
		if saveErr := s.orders.Save(ctx, cart); saveErr != nil {
			s.logger.WithError(saveErr).WithField("order_id", cart.ID).
				Error("Failed to revert order to cart after reservation failure")
		}
		return nil, err
	}

	cart.Reserved = true
	if err := s.orders.Save(ctx, cart); err != nil {
		// The row still says unreserved, so a later cancel would never
		// release the stock. Undo the reservation here instead.
		if relErr := s.specs.Release(ctx, lines); relErr != nil {
			s.logger.WithError(relErr).WithField("order_id", cart.ID).
				Error("Failed to release stock after save failure, quantities need manual correction")
		}
		cart.Status = StatusCart
		cart.Reserved = false
		if saveErr := s.orders.Save(ctx, cart); saveErr != nil {
			s.logger.WithError(saveErr).WithField("order_id", cart.ID).
				Error("Failed to revert order to cart after reservation failure")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": cart.ID,
		"user_id":  userID,
		"cost":     cost.StringFixed(2),
	}).Info("Order placed")
	return cart, nil
}

// CurrentCost re-derives the order total from the catalog's current
// effective prices. It is a read-only aggregation; the stored line
// prices are only what the user saw when adding.
func (s *Service) CurrentCost(ctx context.Context, ord *Order) (decimal.Decimal, error) {
	ids := make([]uint, len(ord.Items))
	for i, item := range ord.Items {
		ids[i] = item.SpecificationID
	}
	specs, err := s.specs.GetMany(ctx, ids)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, item := range ord.Items {
		spec, ok := specs[item.SpecificationID]
		if !ok {
			return decimal.Zero, fmt.Errorf("specification %d: %w", item.SpecificationID, catalog.ErrNotFound)
		}
		total = total.Add(spec.EffectivePrice().Mul(item.Quantity))
	}
	return total.RoundBank(2), nil
}

// UpdateStatus moves one of the user's orders along the lifecycle,
// validating the transition and settling the stock reservation when
// needed.
func (s *Service) UpdateStatus(ctx context.Context, userID, orderID uint, next Status) (*Order, error) {
	ord, err := s.orders.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, ord, next)
}

// AdminUpdateStatus moves any user's order along the lifecycle.
// Processing is not reachable here: checkout is the only transition into
// it, because checkout owns the reservation attempt.
func (s *Service) AdminUpdateStatus(ctx context.Context, orderID uint, next Status) (*Order, error) {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if next == StatusProcessing {
		return nil, fmt.Errorf("%s to %s without checkout: %w", ord.Status, next, ErrInvalidTransition)
	}
	return s.applyStatus(ctx, ord, next)
}

func (s *Service) applyStatus(ctx context.Context, ord *Order, next Status) (*Order, error) {
	if !next.IsValid() || !ord.Status.CanTransition(next) {
		return nil, fmt.Errorf("%s to %s: %w", ord.Status, next, ErrInvalidTransition)
	}

	if next == StatusCanceled && ord.Reserved {
		if err := s.specs.Release(ctx, reservationLines(ord.Items)); err != nil {
			return nil, err
		}
		ord.Reserved = false
	}

	ord.Status = next
	if err := s.orders.Save(ctx, ord); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": ord.ID,
		"user_id":  ord.UserID,
		"status":   next.String(),
	}).Info("Order status updated")
	return ord, nil
}

// Cancel cancels an order, releasing its reservation if one is held.
func (s *Service) Cancel(ctx context.Context, userID, orderID uint) (*Order, error) {
	return s.UpdateStatus(ctx, userID, orderID, StatusCanceled)
}

// Confirm marks a shipping order as finished, the buyer acknowledging
// delivery.
func (s *Service) Confirm(ctx context.Context, userID, orderID uint) (*Order, error) {
	return s.UpdateStatus(ctx, userID, orderID, StatusFinished)
}

// Delete removes an order. Owners may delete finished and canceled
// orders only; admins may delete any, with stock still held by a
// not-yet-finished order released first.
func (s *Service) Delete(ctx context.Context, userID, orderID uint, admin bool) error {
	var (
		ord *Order
		err error
	)
	if admin {
		ord, err = s.orders.GetByID(ctx, orderID)
	} else {
		ord, err = s.orders.Get(ctx, userID, orderID)
	}
	if err != nil {
		return err
	}
	if !admin && !ord.IsDeletableByOwner() {
		return fmt.Errorf("order %d in status %s: %w", ord.ID, ord.Status, ErrNotDeletable)
	}
	// Finished orders keep their stock subtracted; the goods are sold.
	if ord.Status <= StatusShipping && ord.Reserved {
		if err := s.specs.Release(ctx, reservationLines(ord.Items)); err != nil {
			return err
		}
	}
	return s.orders.Delete(ctx, ord)
}

// Get returns one of the user's orders.
func (s *Service) Get(ctx context.Context, userID, orderID uint) (*Order, error) {
	return s.orders.Get(ctx, userID, orderID)
}

// List returns the user's placed orders, newest first.
func (s *Service) List(ctx context.Context, userID uint) ([]Order, error) {
	return s.orders.List(ctx, userID)
}

func reservationLines(items []Item) []catalog.ReservationLine {
	lines := make([]catalog.ReservationLine, len(items))
	for i, item := range items {
		lines[i] = catalog.ReservationLine{
			SpecificationID: item.SpecificationID,
			Quantity:        item.Quantity,
		}
	}
	return lines
}

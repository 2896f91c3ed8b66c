package cart

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/smalob/marketplace/internal/domain/cart"
	"github.com/smalob/marketplace/internal/domain/catalog"
	"github.com/smalob/marketplace/internal/observability"
	"github.com/smalob/marketplace/internal/observability/logctx"
)

const componentCartService = "cart_service"

type Service struct {
	carts   domain.Repository
	catalog catalog.Catalog
	log     observability.Logger
}

func NewService(carts domain.Repository, cat catalog.Catalog, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		carts:   carts,
		catalog: cat,
		log:     logger.With(observability.F("component", componentCartService)),
	}
}

// AddItem merges the quantity into an existing line or appends a new one with
// a price snapshot taken from the catalog now. Stock is deliberately not
// checked here; it is validated at settlement.
func (s *Service) AddItem(ctx context.Context, customerID, productID string, quantity int) (*domain.Cart, error) {
	logger := logctx.FromOr(ctx, s.log)

	if customerID == "" {
		return nil, errors.New("cart: customer id is required")
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("cart: product lookup: %w", err)
	}

	c, err := s.carts.Get(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		c = domain.New(customerID)
	} else if err != nil {
		return nil, fmt.Errorf("cart: get: %w", err)
	}

	if err := c.Add(productID, quantity, product.Price); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		logger.Error("cart_save_failed",
			observability.F("customer_id", customerID),
			observability.F("error", err.Error()),
		)
		return nil, fmt.Errorf("cart: save: %w", err)
	}

	logger.Info("cart_item_added",
		observability.F("customer_id", customerID),
		observability.F("product_id", productID),
		observability.F("quantity", quantity),
	)
	return c, nil
}

// UpdateQuantity sets a line's quantity. A quantity above current stock is
// tolerated; it fails later at settlement.
func (s *Service) UpdateQuantity(ctx context.Context, customerID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	c, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := c.SetQuantity(productID, quantity); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("cart: save: %w", err)
	}
	return c, nil
}

func (s *Service) RemoveItem(ctx context.Context, customerID, productID string) (*domain.Cart, error) {
	c, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if err := c.Remove(productID); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("cart: save: %w", err)
	}
	return c, nil
}

// Get returns the customer's cart, or an empty cart when none exists yet.
func (s *Service) Get(ctx context.Context, customerID string) (*domain.Cart, error) {
	c, err := s.carts.Get(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.New(customerID), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Clear(ctx context.Context, customerID string) error {
	return s.carts.Clear(ctx, customerID)
}

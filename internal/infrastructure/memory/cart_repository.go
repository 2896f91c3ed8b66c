package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/smalob/marketplace/internal/domain/cart"
)

type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (r *CartRepository) Get(ctx context.Context, customerID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[customerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	_ = ctx
	if c == nil || c.CustomerID == "" {
		return fmt.Errorf("cart repository: customer id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[c.CustomerID] = c.Clone()
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, customerID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, customerID)
	return nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/smalob/marketplace/internal/domain/order"
)

type OrderRepository struct {
	mu          sync.RWMutex
	orders      map[string]*domain.Order
	idempotency map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:      make(map[string]*domain.Order),
		idempotency: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.ID]; exists {
		return domain.ErrConflict
	}

	if key := o.IdempotencyKey; key != "" {
		if existingID, exists := r.idempotency[idemKey(o.CustomerID, key)]; exists {
			if _, ok := r.orders[existingID]; ok {
				return domain.ErrConflict
			}
		}
	}

	r.orders[o.ID] = o.Clone()
	if key := o.IdempotencyKey; key != "" {
		r.idempotency[idemKey(o.CustomerID, key)] = o.ID
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[o.ID]; !exists {
		return domain.ErrNotFound
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, customerID, key string) (*domain.Order, error) {
	_ = ctx
	if key == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.idempotency[idemKey(customerID, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o, found := r.orders[orderID]
	if !found {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(o *domain.Order) bool { return o.CustomerID == customerID }), nil
}

func (r *OrderRepository) ListByVendor(ctx context.Context, vendorID string) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(o *domain.Order) bool { return o.ContainsVendor(vendorID) }), nil
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(*domain.Order) bool { return true }), nil
}

// collect assumes the read lock is held. Results are sorted newest first.
func (r *OrderRepository) collect(keep func(*domain.Order) bool) []*domain.Order {
	var out []*domain.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func idemKey(customerID, key string) string {
	return customerID + "/" + key
}

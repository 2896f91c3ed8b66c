package order

import "context"

type Repository interface {
	// Insert persists a new order exactly once; a duplicate ID or idempotency
	// key yields ErrConflict.
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	FindByIdempotency(ctx context.Context, customerID, key string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Order, error)
	ListByVendor(ctx context.Context, vendorID string) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
}

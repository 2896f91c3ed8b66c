package cart

import "context"

type Repository interface {
	Get(ctx context.Context, customerID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Clear(ctx context.Context, customerID string) error
}

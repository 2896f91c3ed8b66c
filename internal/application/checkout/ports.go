package checkout

import (
	"context"

	"github.com/smalob/marketplace/internal/domain/order"
)

type IDGenerator interface {
	NewID() string
}

// Messenger sends the advisory post-settlement confirmation (SMS/email).
// Failures never affect the committed order.
type Messenger interface {
	OrderConfirmation(ctx context.Context, o *order.Order) error
}

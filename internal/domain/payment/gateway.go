package payment

import (
	"context"
	"errors"
	"time"

	"github.com/smalob/marketplace/internal/domain/money"
)

var (
	// ErrCardDeclined is terminal for the instrument; the customer must retry
	// with a different one.
	ErrCardDeclined = errors.New("payment: card declined")
	// ErrGatewayUnavailable is transient; the customer may retry the same
	// instrument.
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	ErrInvalidRequest     = errors.New("payment: invalid request")
)

type ChargeRequest struct {
	Amount         money.Money
	SourceToken    string
	IdempotencyKey string
}

type Receipt struct {
	TransactionID string
	Amount        money.Money
	CapturedAt    time.Time
}

// Gateway wraps the external payment processor. Implementations must honor
// the idempotency key: the same key replays the prior outcome rather than
// charging twice, and ambiguous failures are never retried internally with a
// fresh key.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Receipt, error)
	Refund(ctx context.Context, transactionID string) error
}

// Retryable reports whether the customer may safely retry the same
// instrument after the error.
func Retryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidQuantity     = errors.New("inventory: quantity must be greater than zero")
	ErrReservationNotFound = errors.New("inventory: reservation not found")
	// ErrReservationExpired means the hold lapsed and its stock was restored
	// before the settlement confirmed it; the ledger has re-decremented the
	// paid quantity but the count needs a reconciliation check.
	ErrReservationExpired = errors.New("inventory: reservation expired before confirmation")
)

// InsufficientStockError reports which product could not be reserved so the
// caller can surface an actionable message.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s (requested %d, available %d)", e.ProductID, e.Requested, e.Available)
}

// Reservation is a speculative stock decrement. It must be confirmed once the
// order is persisted or released on failure; unconfirmed reservations expire
// at ExpiresAt and their stock is restored by the janitor.
type Reservation struct {
	ID        string
	ProductID string
	Quantity  int
	ExpiresAt time.Time
}

// Ledger is the authoritative stock count per product. TryReserve is atomic
// with respect to the read-then-write of stock: two concurrent reservations
// never both succeed when their combined quantity exceeds what is available.
//
// Confirm takes the full reservation rather than its ID so that a hold the
// janitor already swept can still be settled: the paid quantity is taken out
// of stock again and ErrReservationExpired reports the late settlement.
type Ledger interface {
	TryReserve(ctx context.Context, productID string, quantity int) (*Reservation, error)
	Confirm(ctx context.Context, res *Reservation) error
	Release(ctx context.Context, reservationID string) error
}

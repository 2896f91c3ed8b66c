package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/smalob/marketplace/internal/domain/money"
)

var ErrNotFound = errors.New("catalog: product not found")

// Product is owned by the catalog service; the settlement pipeline only reads
// it and mutates stock through the inventory ledger.
type Product struct {
	ID        string
	Name      string
	Price     money.Money
	Stock     int
	VendorID  string
	CreatedAt time.Time
}

type Catalog interface {
	Product(ctx context.Context, id string) (*Product, error)
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smalob/marketplace/internal/domain/catalog"
	"github.com/smalob/marketplace/internal/domain/inventory"
)

// InventoryLedger holds the authoritative stock counts and open reservations.
// The mutex guards only the conditional decrement itself; it is never held
// across external calls, so the payment round trip always runs lock-free.
type InventoryLedger struct {
	mu           sync.Mutex
	products     map[string]*catalog.Product
	reservations map[string]*inventory.Reservation
	ttl          time.Duration
	now          func() time.Time
}

func NewInventoryLedger(ttl time.Duration) *InventoryLedger {
	return &InventoryLedger{
		products:     make(map[string]*catalog.Product),
		reservations: make(map[string]*inventory.Reservation),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Seed loads the catalog snapshot the ledger is responsible for.
func (l *InventoryLedger) Seed(products ...catalog.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range products {
		clone := p
		l.products[p.ID] = &clone
	}
}

func (l *InventoryLedger) Product(ctx context.Context, id string) (*catalog.Product, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return cloneProduct(p), nil
}

// TryReserve performs the compare-and-decrement: stock is reduced only when
// it covers the requested quantity, atomically with the check.
func (l *InventoryLedger) TryReserve(ctx context.Context, productID string, quantity int) (*inventory.Reservation, error) {
	_ = ctx
	if quantity <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.products[productID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	if p.Stock < quantity {
		return nil, &inventory.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: p.Stock,
		}
	}

	p.Stock -= quantity
	res := &inventory.Reservation{
		ID:        uuid.NewString(),
		ProductID: productID,
		Quantity:  quantity,
		ExpiresAt: l.now().Add(l.ttl),
	}
	l.reservations[res.ID] = res

	clone := *res
	return &clone, nil
}

// Confirm finalizes a reservation: the decrement becomes permanent and the
// reservation record is dropped. A reservation the janitor already swept had
// its stock restored mid-settlement, so the paid quantity is decremented
// again and ErrReservationExpired is returned; the count can go negative when
// the restored units were sold on, which blocks further sales until the
// stock is reconciled.
func (l *InventoryLedger) Confirm(ctx context.Context, res *inventory.Reservation) error {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.reservations[res.ID]; ok {
		delete(l.reservations, res.ID)
		return nil
	}

	p, ok := l.products[res.ProductID]
	if !ok {
		return inventory.ErrReservationNotFound
	}
	p.Stock -= res.Quantity
	return inventory.ErrReservationExpired
}

// Release undoes a reservation and restores its stock.
func (l *InventoryLedger) Release(ctx context.Context, reservationID string) error {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[reservationID]
	if !ok {
		return inventory.ErrReservationNotFound
	}
	delete(l.reservations, reservationID)

	if p, ok := l.products[res.ProductID]; ok {
		p.Stock += res.Quantity
	}
	return nil
}

// SweepExpired restores stock held by reservations whose deadline has passed.
// Called periodically by the janitor.
func (l *InventoryLedger) SweepExpired(ctx context.Context, now time.Time) int {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	restored := 0
	for id, res := range l.reservations {
		if res.ExpiresAt.After(now) {
			continue
		}
		delete(l.reservations, id)
		if p, ok := l.products[res.ProductID]; ok {
			p.Stock += res.Quantity
		}
		restored++
	}
	return restored
}

// OpenReservations reports how many reservations are currently held.
func (l *InventoryLedger) OpenReservations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reservations)
}

func cloneProduct(p *catalog.Product) *catalog.Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

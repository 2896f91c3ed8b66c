package order

import (
	"errors"
	"time"

	"github.com/samber/lo"
	"github.com/smalob/marketplace/internal/domain/money"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: already exists")
	ErrNoItems         = errors.New("order: at least one item is required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
)

// Item is an immutable order line. LineTotal is captured at order-creation
// time and never recomputed.
type Item struct {
	ProductID string
	VendorID  string
	Quantity  int
	UnitPrice money.Money
	LineTotal money.Money
}

// CustomerInfo is the shipping/contact snapshot taken at checkout.
type CustomerInfo struct {
	FullName   string
	Email      string
	Phone      string
	Address    string
	PostalCode string
}

// Order is append-mostly: everything except Status is immutable after New.
type Order struct {
	ID             string
	CustomerID     string
	Items          []Item
	TotalPrice     money.Money
	CustomerInfo   CustomerInfo
	Status         Status
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New builds a Pending order from the settled line items. The total is derived
// from the line totals so the sum invariant holds by construction.
func New(id, customerID, idempotencyKey string, items []Item, info CustomerInfo) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	total := money.Zero(items[0].UnitPrice.Currency)
	normalized := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		item.LineTotal = item.UnitPrice.MulInt(item.Quantity)
		sum, err := total.Add(item.LineTotal)
		if err != nil {
			return nil, err
		}
		total = sum
		normalized = append(normalized, item)
	}

	now := time.Now().UTC()
	return &Order{
		ID:             id,
		CustomerID:     customerID,
		Items:          normalized,
		TotalPrice:     total,
		CustomerInfo:   info,
		Status:         StatusPending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Transition moves the order to the next status if the state machine permits.
func (o *Order) Transition(next Status) error {
	if !o.Status.CanTransition(next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.touch()
	return nil
}

func (o *Order) ContainsVendor(vendorID string) bool {
	return lo.ContainsBy(o.Items, func(i Item) bool { return i.VendorID == vendorID })
}

// VendorItems projects the order down to the lines owned by one vendor.
func (o *Order) VendorItems(vendorID string) []Item {
	return lo.Filter(o.Items, func(i Item, _ int) bool { return i.VendorID == vendorID })
}

// VendorSubtotal is the vendor's share of the order, not the full total.
func (o *Order) VendorSubtotal(vendorID string) money.Money {
	subtotal := money.Zero(o.TotalPrice.Currency)
	for _, item := range o.VendorItems(vendorID) {
		sum, err := subtotal.Add(item.LineTotal)
		if err != nil {
			continue
		}
		subtotal = sum
	}
	return subtotal
}

// VendorIDs returns the distinct vendors represented in the order, in first
// appearance order.
func (o *Order) VendorIDs() []string {
	return lo.Uniq(lo.Map(o.Items, func(i Item, _ int) string { return i.VendorID }))
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

package cart

import (
	"errors"
	"time"

	"github.com/smalob/marketplace/internal/domain/money"
)

var (
	ErrNotFound        = errors.New("cart: not found")
	ErrItemNotFound    = errors.New("cart: item not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
)

// Item is a cart line. UnitPrice is a snapshot taken when the item was added
// and is not re-priced afterwards.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice money.Money
	AddedAt   time.Time
}

func (i Item) LineTotal() money.Money {
	return i.UnitPrice.MulInt(i.Quantity)
}

// Cart is the per-customer working set for a future order. Stock is not
// validated here; it is validated only at settlement.
type Cart struct {
	CustomerID string
	Items      []Item
	UpdatedAt  time.Time
}

func New(customerID string) *Cart {
	return &Cart{
		CustomerID: customerID,
		UpdatedAt:  time.Now().UTC(),
	}
}

// Add merges quantity into an existing line for the product, or appends a new
// line carrying the given price snapshot.
func (c *Cart) Add(productID string, quantity int, unitPrice money.Money) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			c.touch()
			return nil
		}
	}
	c.Items = append(c.Items, Item{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		AddedAt:   time.Now().UTC(),
	})
	c.touch()
	return nil
}

func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Remove(productID string) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

// Total is always derived from the lines, never stored.
func (c *Cart) Total() money.Money {
	if len(c.Items) == 0 {
		return money.Zero(money.CAD)
	}
	total := money.Zero(c.Items[0].UnitPrice.Currency)
	for _, item := range c.Items {
		sum, err := total.Add(item.LineTotal())
		if err != nil {
			continue
		}
		total = sum
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Items = append([]Item(nil), c.Items...)
	return &clone
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}

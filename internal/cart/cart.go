// Package cart implements the client-session shopping cart: an ordered
// collection of line items keyed by product id, merged on repeat adds.
// Carts are ephemeral; nothing here is persisted.
package cart

import (
	"errors"
	"sync"

	"keebshop_backend/models"
)

var (
	ErrUnknownProduct = errors.New("product not found")
	ErrUpcoming       = errors.New("product is upcoming and cannot be ordered yet")
	ErrOutOfStock     = errors.New("product is out of stock")
	ErrItemNotInCart  = errors.New("item not in cart")
)

// Item is one cart entry. Price is the unit price captured at add time;
// the checkout transaction re-reads authoritative prices and stock later.
type Item struct {
	ProductID uint    `json:"productId"`
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"qty"`
}

// Cart is an ordered multiset of items. Mutations fire the OnChange
// observer, the hook UI layers subscribe to for badge refreshes.
type Cart struct {
	mu       sync.Mutex
	items    []Item
	onChange func()
}

func New() *Cart {
	return &Cart{}
}

// OnChange registers the observer invoked after every mutation.
func (c *Cart) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Cart) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

// Add puts qty units of the product into the cart, merging into an existing
// entry by summing quantities. Unknown, upcoming and out-of-stock products
// are rejected; pre-order products are always addable.
func (c *Cart) Add(p *models.Product, qty int) error {
	if p == nil {
		return ErrUnknownProduct
	}
	if p.Availability == models.AvailabilityUpcoming {
		return ErrUpcoming
	}
	if p.OutOfStock() {
		return ErrOutOfStock
	}
	if qty < 1 {
		qty = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == p.ID {
			c.items[i].Quantity += qty
			c.notify()
			return nil
		}
	}

	image := ""
	if len(p.Images) > 0 {
		image = p.Images[0]
	}
	c.items = append(c.items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Color:     p.Color,
		Image:     image,
		Price:     p.FinalPrice(),
		Quantity:  qty,
	})
	c.notify()
	return nil
}

// UpdateQuantity sets an item's quantity; anything below 1 removes it.
func (c *Cart) UpdateQuantity(productID uint, newQty int) error {
	if newQty < 1 {
		return c.Remove(productID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = newQty
			c.notify()
			return nil
		}
	}
	return ErrItemNotInCart
}

// Remove drops an item from the cart.
func (c *Cart) Remove(productID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.notify()
			return nil
		}
	}
	return ErrItemNotInCart
}

// Clear empties the cart. Called after a successful cart checkout.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return
	}
	c.items = nil
	c.notify()
}

// Items returns a copy of the cart contents in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// TotalCount is the number of units across all items.
func (c *Cart) TotalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := 0
	for _, it := range c.items {
		sum += it.Quantity
	}
	return sum
}

// TotalValue is the cart value at captured prices, before delivery fee.
func (c *Cart) TotalValue() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sum float64
	for _, it := range c.items {
		sum += it.Price * float64(it.Quantity)
	}
	return sum
}

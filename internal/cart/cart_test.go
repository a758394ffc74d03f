package cart_test

import (
	"testing"

	"keebshop_backend/internal/cart"
	"keebshop_backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyProduct(id uint, name string, price float64, stock int) *models.Product {
	return &models.Product{
		ID:           id,
		Name:         name,
		Price:        models.PriceOf(price),
		Stock:        stock,
		Availability: models.AvailabilityReady,
		Images:       []string{"https://cdn.example/" + name + ".jpg"},
	}
}

func TestAddMergesByProduct(t *testing.T) {
	c := cart.New()
	p1 := readyProduct(1, "keycaps", 1700, 20)

	require.NoError(t, c.Add(p1, 2))
	require.NoError(t, c.Add(p1, 3))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 5, c.TotalCount())
}

func TestAddCapturesPriceAtAddTime(t *testing.T) {
	c := cart.New()
	p := readyProduct(1, "switches", 9, 500)
	require.NoError(t, c.Add(p, 10))

	// A later price change must not affect the captured cart price.
	p.Price = models.PriceOf(12)

	items := c.Items()
	assert.Equal(t, float64(9), items[0].Price)
	assert.Equal(t, float64(90), c.TotalValue())
}

func TestAddAppliesDiscount(t *testing.T) {
	c := cart.New()
	p := readyProduct(1, "deskmat", 1000, 5)
	p.Discount = 200
	require.NoError(t, c.Add(p, 1))
	assert.Equal(t, float64(800), c.Items()[0].Price)
}

func TestAddRejections(t *testing.T) {
	c := cart.New()

	assert.ErrorIs(t, c.Add(nil, 1), cart.ErrUnknownProduct)

	upcoming := readyProduct(2, "artisan", 0, 0)
	upcoming.Availability = models.AvailabilityUpcoming
	assert.ErrorIs(t, c.Add(upcoming, 1), cart.ErrUpcoming)

	oos := readyProduct(3, "cable", 300, 0)
	assert.ErrorIs(t, c.Add(oos, 1), cart.ErrOutOfStock)

	assert.Empty(t, c.Items())
}

func TestAddAllowsPreOrderAndUnlimited(t *testing.T) {
	c := cart.New()

	pre := readyProduct(4, "zoom75", 21500, 0)
	pre.Availability = models.AvailabilityPreOrder
	assert.NoError(t, c.Add(pre, 1))

	unlimited := readyProduct(5, "lube", 450, models.StockUnlimited)
	assert.NoError(t, c.Add(unlimited, 3))

	assert.Equal(t, 4, c.TotalCount())
}

func TestUpdateQuantity(t *testing.T) {
	c := cart.New()
	require.NoError(t, c.Add(readyProduct(1, "keycaps", 1700, 20), 2))

	require.NoError(t, c.UpdateQuantity(1, 7))
	assert.Equal(t, 7, c.Items()[0].Quantity)

	// Dropping below 1 removes the item entirely.
	require.NoError(t, c.UpdateQuantity(1, 0))
	assert.Empty(t, c.Items())

	assert.ErrorIs(t, c.UpdateQuantity(99, 2), cart.ErrItemNotInCart)
}

func TestRemoveAndClear(t *testing.T) {
	c := cart.New()
	require.NoError(t, c.Add(readyProduct(1, "a", 100, 5), 1))
	require.NoError(t, c.Add(readyProduct(2, "b", 200, 5), 1))

	require.NoError(t, c.Remove(1))
	require.Len(t, c.Items(), 1)
	assert.ErrorIs(t, c.Remove(1), cart.ErrItemNotInCart)

	c.Clear()
	assert.Empty(t, c.Items())
	assert.Equal(t, 0, c.TotalCount())
	assert.Equal(t, float64(0), c.TotalValue())
}

func TestKeepsInsertionOrder(t *testing.T) {
	c := cart.New()
	require.NoError(t, c.Add(readyProduct(3, "third", 1, 9), 1))
	require.NoError(t, c.Add(readyProduct(1, "first", 1, 9), 1))
	require.NoError(t, c.Add(readyProduct(2, "second", 1, 9), 1))

	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, uint(3), items[0].ProductID)
	assert.Equal(t, uint(1), items[1].ProductID)
	assert.Equal(t, uint(2), items[2].ProductID)
}

func TestOnChangeObserver(t *testing.T) {
	c := cart.New()
	fired := 0
	c.OnChange(func() { fired++ })

	p := readyProduct(1, "keycaps", 1700, 20)
	require.NoError(t, c.Add(p, 1))        // 1
	require.NoError(t, c.Add(p, 1))        // 2 (merge still mutates)
	require.NoError(t, c.UpdateQuantity(1, 5)) // 3
	require.NoError(t, c.Remove(1))        // 4
	c.Clear()                              // empty cart, no change

	assert.Equal(t, 4, fired)
}

func TestManagerSessionsAreIsolated(t *testing.T) {
	m := cart.NewManager()

	a := m.Get("session-a")
	b := m.Get("session-b")
	require.NoError(t, a.Add(readyProduct(1, "keycaps", 1700, 20), 2))

	assert.Equal(t, 2, a.TotalCount())
	assert.Equal(t, 0, b.TotalCount())

	// Same session id returns the same cart.
	assert.Equal(t, 2, m.Get("session-a").TotalCount())

	m.Drop("session-a")
	assert.Equal(t, 0, m.Get("session-a").TotalCount())
}

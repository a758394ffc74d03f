package checkout_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"keebshop_backend/internal/checkout"
	"keebshop_backend/internal/pricing"
	"keebshop_backend/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore implements checkout.Store with a single global lock, which gives
// the serializable semantics the orchestrator expects from the real store.
// Writes are staged per transaction and applied only when the body returns
// nil, so an abort leaves products and orders untouched.
type memStore struct {
	mu            sync.Mutex
	products      map[uint]models.Product
	orders        []models.Order
	nextOrderID   uint
	txCalls       int
	conflictsLeft int   // inject this many write conflicts before succeeding
	failWith      error // infrastructure failure to return from every call
}

func newMemStore(products ...models.Product) *memStore {
	s := &memStore{products: make(map[uint]models.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

type memTx struct {
	store   *memStore
	decs    map[uint]int
	created []*models.Order
}

func (s *memStore) RunInTransaction(_ context.Context, fn func(tx checkout.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCalls++
	if s.failWith != nil {
		return s.failWith
	}
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return checkout.ErrTransactionConflict
	}

	tx := &memTx{store: s, decs: make(map[uint]int)}
	if err := fn(tx); err != nil {
		return err
	}

	for id, qty := range tx.decs {
		p := s.products[id]
		p.Stock -= qty
		s.products[id] = p
	}
	for _, o := range tx.created {
		s.nextOrderID++
		o.ID = s.nextOrderID
		s.orders = append(s.orders, *o)
	}
	return nil
}

func (t *memTx) ProductForUpdate(id uint) (*models.Product, error) {
	p, ok := t.store.products[id]
	if !ok {
		return nil, checkout.ErrProductNotFound
	}
	cp := p
	return &cp, nil
}

func (t *memTx) DecrementStock(id uint, qty int) error {
	t.decs[id] += qty
	return nil
}

func (t *memTx) CreateOrder(o *models.Order) error {
	t.created = append(t.created, o)
	return nil
}

func (s *memStore) stock(id uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func newOrchestrator(t *testing.T, store checkout.Store) *checkout.Orchestrator {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return checkout.NewOrchestrator(store, log, checkout.Options{})
}

func keycaps(stock int) models.Product {
	return models.Product{
		ID:           1,
		Name:         "GMK Olivia Clone",
		Color:        "Pink",
		Price:        models.PriceOf(1850),
		Discount:     150,
		Stock:        stock,
		Availability: models.AvailabilityReady,
	}
}

func validRequest(items ...checkout.LineRequest) checkout.Request {
	return checkout.Request{
		Items:         items,
		PolicyAgreed:  true,
		CustomerName:  "Arif Hossain",
		Phone:         "01700000000",
		Address:       "House 7, Mirpur, Dhaka",
		PaymentMethod: models.PaymentBkash,
		PaymentNumber: "01960788862",
		TransactionID: "txn9abc",
	}
}

func TestSubmitOrderCommitsAndDecrements(t *testing.T) {
	store := newMemStore(keycaps(10))
	orch := newOrchestrator(t, store)

	order, err := orch.SubmitOrder(context.Background(), validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 3},
	))
	require.NoError(t, err)

	assert.Equal(t, 7, store.stock(1))
	assert.Equal(t, 1, store.orderCount())

	// Single-item checkout keeps the legacy embedded shape.
	assert.Empty(t, order.Items)
	assert.Equal(t, uint(1), order.ProductID)
	assert.Equal(t, "GMK Olivia Clone", order.ProductName)
	assert.Equal(t, float64(1700), order.UnitPrice)
	assert.Equal(t, 3, order.Quantity)
	assert.False(t, order.WasPreOrder)

	assert.Equal(t, models.StatusPending, order.Status)
	assert.NotEmpty(t, order.Reference)
	assert.Equal(t, "TXN9ABC", order.TransactionID)

	// Dhaka address: 110 delivery. Bkash pays in full.
	assert.Equal(t, float64(110), order.DeliveryFee)
	assert.Equal(t, float64(3*1700+110), order.Total)
	assert.Equal(t, order.Total, order.Paid)
	assert.Equal(t, float64(0), order.Due)
}

func TestSubmitOrderConservation(t *testing.T) {
	store := newMemStore(keycaps(10))
	orch := newOrchestrator(t, store)

	req := validRequest(checkout.LineRequest{ProductID: 1, Quantity: 2})
	req.PaymentMethod = models.PaymentCashOnDelivery
	req.TransactionID = ""

	order, err := orch.SubmitOrder(context.Background(), req)
	require.NoError(t, err)

	subtotal := float64(2 * 1700)
	assert.Equal(t, pricing.Round2(subtotal+order.DeliveryFee), pricing.Round2(order.Total))
	assert.Equal(t, pricing.Round2(order.Total), pricing.Round2(order.Paid+order.Due))
	assert.Equal(t, order.DeliveryFee, order.Paid) // COD pays delivery up front
	assert.Equal(t, subtotal, order.Due)
}

func TestValidationFailuresOpenNoTransaction(t *testing.T) {
	store := newMemStore(keycaps(10))
	orch := newOrchestrator(t, store)
	known := 10

	base := func() checkout.Request {
		return validRequest(checkout.LineRequest{ProductID: 1, Quantity: 1})
	}

	cases := []struct {
		name   string
		mutate func(*checkout.Request)
	}{
		{"policy not agreed", func(r *checkout.Request) { r.PolicyAgreed = false }},
		{"no items", func(r *checkout.Request) { r.Items = nil }},
		{"zero quantity", func(r *checkout.Request) { r.Items[0].Quantity = 0 }},
		{"missing name", func(r *checkout.Request) { r.CustomerName = "  " }},
		{"missing phone", func(r *checkout.Request) { r.Phone = "" }},
		{"missing address", func(r *checkout.Request) { r.Address = "" }},
		{"missing payment method", func(r *checkout.Request) { r.PaymentMethod = "" }},
		{"unknown payment method", func(r *checkout.Request) { r.PaymentMethod = "Nagad" }},
		{"bkash without transaction id", func(r *checkout.Request) { r.TransactionID = "" }},
		{"quantity above cached stock", func(r *checkout.Request) {
			r.Items[0].Quantity = 11
			r.Items[0].KnownStock = &known
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base()
			tc.mutate(&req)

			_, err := orch.SubmitOrder(context.Background(), req)

			var verr *checkout.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}

	assert.Equal(t, 0, store.txCalls, "precondition failures must not open transactions")
	assert.Equal(t, 10, store.stock(1))
	assert.Equal(t, 0, store.orderCount())
}

func TestStaleClientCacheDoesNotBlockLiveStock(t *testing.T) {
	// The client's cached stock is advisory: it only rejects quantities
	// above itself, the live read inside the transaction decides the rest.
	store := newMemStore(keycaps(10))
	orch := newOrchestrator(t, store)

	stale := 5
	req := validRequest(checkout.LineRequest{ProductID: 1, Quantity: 4, KnownStock: &stale})
	_, err := orch.SubmitOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 6, store.stock(1))
}

func TestInsufficientStockAbortsEverything(t *testing.T) {
	store := newMemStore(keycaps(2))
	orch := newOrchestrator(t, store)

	_, err := orch.SubmitOrder(context.Background(), validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 5},
	))

	var serr *checkout.InsufficientStockError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, uint(1), serr.ProductID)
	assert.Equal(t, 2, serr.Available)

	assert.Equal(t, 2, store.stock(1))
	assert.Equal(t, 0, store.orderCount())
}

func TestMultiItemCheckoutIsAtomic(t *testing.T) {
	store := newMemStore(
		keycaps(5),
		models.Product{ID: 2, Name: "Deskmat", Price: models.PriceOf(900), Stock: 1, Availability: models.AvailabilityReady},
	)
	orch := newOrchestrator(t, store)

	req := validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 2},
		checkout.LineRequest{ProductID: 2, Quantity: 2},
	)
	req.Cart = true

	_, err := orch.SubmitOrder(context.Background(), req)

	var serr *checkout.InsufficientStockError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, uint(2), serr.ProductID)

	// Nothing moved: not even the line that had stock.
	assert.Equal(t, 5, store.stock(1))
	assert.Equal(t, 1, store.stock(2))
	assert.Equal(t, 0, store.orderCount())
}

func TestCartCheckoutBuildsLineItems(t *testing.T) {
	store := newMemStore(
		keycaps(5),
		models.Product{ID: 2, Name: "Deskmat", Price: models.PriceOf(900), Stock: 4, Availability: models.AvailabilityReady},
	)
	orch := newOrchestrator(t, store)

	req := validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 1},
		checkout.LineRequest{ProductID: 2, Quantity: 2},
	)
	req.Cart = true

	order, err := orch.SubmitOrder(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, order.Items, 2)
	assert.Equal(t, uint(0), order.ProductID, "cart orders must not use the legacy embedded fields")
	assert.Equal(t, float64(1700), order.Items[0].UnitPrice)
	assert.Equal(t, float64(900), order.Items[1].UnitPrice)
	assert.Equal(t, float64(1700+2*900+110), order.Total)

	assert.Equal(t, 4, store.stock(1))
	assert.Equal(t, 2, store.stock(2))
}

func TestDuplicateLinesAreJudgedAgainstSummedQuantity(t *testing.T) {
	// Two lines naming the same product must not each pass the stock check
	// independently; 3+3 against 5 in stock is one request for 6.
	store := newMemStore(keycaps(5))
	orch := newOrchestrator(t, store)

	_, err := orch.SubmitOrder(context.Background(), validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 3},
		checkout.LineRequest{ProductID: 1, Quantity: 3},
	))

	var serr *checkout.InsufficientStockError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 5, store.stock(1))
	assert.Equal(t, 0, store.orderCount())
}

func TestDuplicateLinesWithinStockMergeIntoOne(t *testing.T) {
	store := newMemStore(keycaps(5))
	orch := newOrchestrator(t, store)

	order, err := orch.SubmitOrder(context.Background(), validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 2},
		checkout.LineRequest{ProductID: 1, Quantity: 2},
	))
	require.NoError(t, err)

	assert.Equal(t, 1, store.stock(1))
	assert.Equal(t, 4, order.TotalQuantity())
	require.Len(t, order.LineItems(), 1)
	assert.Equal(t, 4, order.LineItems()[0].Quantity)
}

func TestMissingProductAborts(t *testing.T) {
	store := newMemStore(keycaps(5))
	orch := newOrchestrator(t, store)

	req := validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 1},
		checkout.LineRequest{ProductID: 42, Quantity: 1},
	)
	req.Cart = true

	_, err := orch.SubmitOrder(context.Background(), req)
	require.ErrorIs(t, err, checkout.ErrProductNotFound)
	assert.Equal(t, 5, store.stock(1))
	assert.Equal(t, 0, store.orderCount())
}

func TestUnlimitedStockSentinel(t *testing.T) {
	store := newMemStore(models.Product{
		ID:           1,
		Name:         "Gateron Milky Yellow Pro",
		Price:        models.PriceOf(9),
		Stock:        models.StockUnlimited,
		Availability: models.AvailabilityReady,
	})
	orch := newOrchestrator(t, store)

	_, err := orch.SubmitOrder(context.Background(), validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 999},
	))
	require.NoError(t, err)

	// Never checked, never decremented.
	assert.Equal(t, models.StockUnlimited, store.stock(1))
}

func TestPreOrderNeverTouchesStock(t *testing.T) {
	store := newMemStore(models.Product{
		ID:           1,
		Name:         "Zoom75 Essential Edition",
		Color:        "Sea Salt",
		Price:        models.PriceOf(437),
		Stock:        0,
		Availability: models.AvailabilityPreOrder,
	})
	orch := newOrchestrator(t, store)

	order, err := orch.SubmitOrder(context.Background(), validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, 0, store.stock(1))
	assert.True(t, order.WasPreOrder)

	// 25% advance rounded to nearest 5, delivery fee rides on the due side.
	assert.Equal(t, float64(110), order.Paid)
	assert.Equal(t, order.Total-order.Paid, order.Due)
	assert.Equal(t, float64(437+110), order.Total)
}

func TestPreOrderRequiresBkash(t *testing.T) {
	store := newMemStore(models.Product{
		ID:           1,
		Name:         "Zoom75",
		Price:        models.PriceOf(21500),
		Availability: models.AvailabilityPreOrder,
	})
	orch := newOrchestrator(t, store)

	req := validRequest(checkout.LineRequest{ProductID: 1, Quantity: 1})
	req.PaymentMethod = models.PaymentCashOnDelivery
	req.TransactionID = ""

	_, err := orch.SubmitOrder(context.Background(), req)

	var verr *checkout.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, store.orderCount())
}

func TestConflictIsRetriedThenSucceeds(t *testing.T) {
	store := newMemStore(keycaps(5))
	store.conflictsLeft = 2
	orch := newOrchestrator(t, store)

	_, err := orch.SubmitOrder(context.Background(), validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 1},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, store.txCalls)
	assert.Equal(t, 4, store.stock(1))
}

func TestConflictRetriesAreBounded(t *testing.T) {
	store := newMemStore(keycaps(5))
	store.conflictsLeft = 100
	orch := newOrchestrator(t, store)

	_, err := orch.SubmitOrder(context.Background(), validRequest(
		checkout.LineRequest{ProductID: 1, Quantity: 1},
	))
	require.ErrorIs(t, err, checkout.ErrTransactionConflict)
	assert.Equal(t, 4, store.txCalls) // first attempt + 3 retries
	assert.Equal(t, 5, store.stock(1))
	assert.Equal(t, 0, store.orderCount())
}

func TestBackendFailureTripsBreaker(t *testing.T) {
	store := newMemStore(keycaps(5))
	store.failWith = errors.New("connection refused")
	orch := newOrchestrator(t, store)

	req := validRequest(checkout.LineRequest{ProductID: 1, Quantity: 1})

	for i := 0; i < 3; i++ {
		_, err := orch.SubmitOrder(context.Background(), req)
		require.ErrorIs(t, err, checkout.ErrBackendUnavailable)
	}

	// Breaker is open now: the store is no longer called at all.
	calls := store.txCalls
	_, err := orch.SubmitOrder(context.Background(), req)
	require.ErrorIs(t, err, checkout.ErrBackendUnavailable)
	assert.Equal(t, calls, store.txCalls)
}

func TestNoOversellUnderConcurrentCheckouts(t *testing.T) {
	const stock = 5
	const clients = 10

	store := newMemStore(keycaps(stock))
	orch := newOrchestrator(t, store)

	var wg sync.WaitGroup
	results := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.SubmitOrder(context.Background(), validRequest(
				checkout.LineRequest{ProductID: 1, Quantity: 1},
			))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var serr *checkout.InsufficientStockError
		require.ErrorAs(t, err, &serr, "losers must fail with InsufficientStock")
		rejected++
	}

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, clients-stock, rejected)
	assert.Equal(t, 0, store.stock(1), "stock never goes below zero")
	assert.Equal(t, stock, store.orderCount())
}

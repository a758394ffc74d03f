// Package checkout implements the order placement core: it validates a
// prospective order, then commits it together with the product stock
// decrements in one atomic transaction. Stock is only ever judged from
// reads made inside that transaction, so concurrent checkouts can never
// oversell a product.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"keebshop_backend/internal/metrics"
	"keebshop_backend/internal/pricing"
	"keebshop_backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Submission states. A rejected submission returns to Draft on the client;
// the server never retries a rejected order on its own.
type State string

const (
	StateDraft      State = "Draft"
	StateValidating State = "Validating"
	StateCommitting State = "Committing"
	StateCommitted  State = "Committed"
	StateRejected   State = "Rejected"
)

// LineRequest is one requested order line. KnownStock carries the client's
// cached stock value; it is advisory only and never decides the outcome,
// which belongs to the live value read inside the transaction.
type LineRequest struct {
	ProductID  uint `json:"productId"`
	Quantity   int  `json:"quantity"`
	KnownStock *int `json:"knownStock,omitempty"`
}

// Request is a prospective order: a single line for the legacy product-page
// checkout or several lines for a cart checkout.
type Request struct {
	Items        []LineRequest `json:"items"`
	Cart         bool          `json:"cart"`
	PolicyAgreed bool          `json:"policyAgreed"`

	CustomerName  string `json:"customerName"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentNumber string `json:"paymentNumber"`
	TransactionID string `json:"transactionId"`
}

// Options tune the orchestrator. Zero values fall back to the defaults.
type Options struct {
	MaxRetries         int           // whole-transaction retries on write conflict
	Timeout            time.Duration // bound on one submission's transaction work
	DefaultDeliveryFee float64       // fee fallback for an empty address
}

const (
	defaultMaxRetries = 3
	defaultTimeout    = 10 * time.Second
)

// Orchestrator drives a submission through
// Validating -> Committing -> Committed | Rejected.
type Orchestrator struct {
	store   Store
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
	opts    Options
}

func NewOrchestrator(store Store, logger *logrus.Logger, opts Options) *Orchestrator {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.DefaultDeliveryFee <= 0 {
		opts.DefaultDeliveryFee = pricing.FeeOutside
	}

	log := logger.WithField("component", "checkout")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "checkout-store",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			state := float64(0)
			switch to {
			case gobreaker.StateOpen:
				state = 1
			case gobreaker.StateHalfOpen:
				state = 2
			}
			metrics.BreakerState.Set(state)
			log.WithFields(logrus.Fields{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Checkout circuit breaker state changed")
		},
	})

	return &Orchestrator{store: store, breaker: breaker, log: log, opts: opts}
}

// SubmitOrder validates and commits one order. On success the committed
// order (with its generated reference) is returned; on any failure no stock
// and no order document were written, and the error says which of the
// taxonomy cases applies.
func (o *Orchestrator) SubmitOrder(ctx context.Context, req Request) (*models.Order, error) {
	log := o.log.WithFields(logrus.Fields{
		"state":    StateValidating,
		"items":    len(req.Items),
		"customer": req.CustomerName,
	})
	log.Info("Validating order submission")

	if verr := validate(req); verr != nil {
		metrics.CheckoutRejections.WithLabelValues("validation").Inc()
		log.WithField("state", StateRejected).WithError(verr).Warn("Submission rejected before transaction")
		return nil, verr
	}

	deliveryFee := pricing.DeliveryFeeWithDefault(req.Address, o.opts.DefaultDeliveryFee)

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	log = log.WithField("state", StateCommitting)

	var order *models.Order
	var err error
	for attempt := 0; ; attempt++ {
		order, err = o.attempt(ctx, req, deliveryFee)
		if errors.Is(err, ErrTransactionConflict) && attempt < o.opts.MaxRetries {
			metrics.ConflictRetries.Inc()
			log.WithField("attempt", attempt+1).Warn("Write conflict, retrying transaction")
			select {
			case <-time.After(time.Duration(10<<attempt) * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, ctx.Err())
			}
			continue
		}
		break
	}

	if err != nil {
		metrics.CheckoutRejections.WithLabelValues(rejectionReason(err)).Inc()
		log.WithField("state", StateRejected).WithError(err).Warn("Order submission rejected")
		return nil, err
	}

	metrics.OrdersPlaced.WithLabelValues(order.PaymentMethod).Inc()
	metrics.OrderValue.Observe(order.Total)
	log.WithFields(logrus.Fields{
		"state":     StateCommitted,
		"order_id":  order.ID,
		"reference": order.Reference,
		"total":     order.Total,
	}).Info("Order committed")
	return order, nil
}

// validate runs the fail-fast precondition checks. No transaction is opened
// for a request that fails here.
func validate(req Request) *ValidationError {
	if !req.PolicyAgreed {
		return &ValidationError{Field: "policy", Reason: "please agree to the order policy"}
	}
	if len(req.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "order must have at least one item"}
	}
	for i, li := range req.Items {
		if li.ProductID == 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].productId", i), Reason: "product id is missing"}
		}
		if li.Quantity < 1 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "quantity must be at least 1"}
		}
		if li.KnownStock != nil && *li.KnownStock != models.StockUnlimited && li.Quantity > *li.KnownStock {
			return &ValidationError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: fmt.Sprintf("quantity exceeds available stock of %d", *li.KnownStock),
			}
		}
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return &ValidationError{Field: "customerName", Reason: "customer name is required"}
	}
	if strings.TrimSpace(req.Phone) == "" {
		return &ValidationError{Field: "phone", Reason: "phone is required"}
	}
	if strings.TrimSpace(req.Address) == "" {
		return &ValidationError{Field: "address", Reason: "address is required"}
	}
	switch req.PaymentMethod {
	case models.PaymentBkash:
		if strings.TrimSpace(req.PaymentNumber) == "" || strings.TrimSpace(req.TransactionID) == "" {
			return &ValidationError{Field: "transactionId", Reason: "payment number and transaction ID are required for Bkash"}
		}
	case models.PaymentCashOnDelivery:
	case "":
		return &ValidationError{Field: "paymentMethod", Reason: "payment method is required"}
	default:
		return &ValidationError{Field: "paymentMethod", Reason: "unknown payment method"}
	}
	return nil
}

// attempt runs one transaction attempt end to end.
func (o *Orchestrator) attempt(ctx context.Context, req Request, deliveryFee float64) (*models.Order, error) {
	type decrement struct {
		productID uint
		qty       int
		newStock  int
	}

	// Merge lines that name the same product so its stock is judged once
	// against the summed quantity, never per line.
	items := make([]LineRequest, 0, len(req.Items))
	index := make(map[uint]int, len(req.Items))
	for _, li := range req.Items {
		if i, ok := index[li.ProductID]; ok {
			items[i].Quantity += li.Quantity
			continue
		}
		index[li.ProductID] = len(items)
		items = append(items, li)
	}

	var order *models.Order
	var decrements []decrement

	body := func(tx Tx) error {
		decrements = decrements[:0]

		// Lock products in ascending id order so concurrent cart checkouts
		// touching the same products cannot deadlock each other.
		ids := make([]uint, 0, len(items))
		for _, li := range items {
			ids = append(ids, li.ProductID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		products := make(map[uint]*models.Product, len(ids))
		for _, id := range ids {
			p, err := tx.ProductForUpdate(id)
			if err != nil {
				return err
			}
			products[id] = p
		}

		lines := make([]models.OrderLineItem, 0, len(items))
		hasPreOrder := false
		for _, li := range items {
			p := products[li.ProductID]
			isPre := p.Availability == models.AvailabilityPreOrder
			if isPre {
				hasPreOrder = true
			}

			// The authoritative stock check. Pre-orders and the -1 sentinel
			// are never checked and never decremented.
			if !isPre && p.Stock != models.StockUnlimited {
				if p.Stock < li.Quantity {
					return &InsufficientStockError{
						ProductID:   p.ID,
						ProductName: p.Name,
						Available:   p.Stock,
					}
				}
				decrements = append(decrements, decrement{
					productID: p.ID,
					qty:       li.Quantity,
					newStock:  p.Stock - li.Quantity,
				})
			}

			lines = append(lines, models.OrderLineItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Color:       p.Color,
				UnitPrice:   pricing.UnitPrice(p),
				Quantity:    li.Quantity,
				WasPreOrder: isPre,
			})
		}

		if hasPreOrder && req.PaymentMethod != models.PaymentBkash {
			return &ValidationError{Field: "paymentMethod", Reason: "pre-order items must be paid via Bkash"}
		}

		subtotal := pricing.Subtotal(lines)
		if math.IsNaN(subtotal) || math.IsInf(subtotal, 0) {
			return &ValidationError{Field: "items", Reason: "invalid unit price"}
		}
		paid, due, err := pricing.Split(req.PaymentMethod, hasPreOrder, subtotal, deliveryFee)
		if err != nil {
			return &ValidationError{Field: "paymentMethod", Reason: err.Error()}
		}

		for _, d := range decrements {
			if err := tx.DecrementStock(d.productID, d.qty); err != nil {
				return err
			}
		}

		ord := &models.Order{
			Reference:     uuid.NewString(),
			TimeISO:       time.Now().UTC(),
			DeliveryFee:   deliveryFee,
			Total:         pricing.Total(subtotal, deliveryFee),
			Paid:          paid,
			Due:           due,
			CustomerName:  strings.TrimSpace(req.CustomerName),
			Phone:         strings.TrimSpace(req.Phone),
			Address:       strings.TrimSpace(req.Address),
			PaymentMethod: req.PaymentMethod,
			PaymentNumber: strings.TrimSpace(req.PaymentNumber),
			TransactionID: strings.ToUpper(strings.TrimSpace(req.TransactionID)),
			Status:        models.StatusPending,
		}
		if req.Cart || len(lines) > 1 {
			ord.Items = lines
		} else {
			line := lines[0]
			ord.ProductID = line.ProductID
			ord.ProductName = line.ProductName
			ord.Color = line.Color
			ord.UnitPrice = line.UnitPrice
			ord.Quantity = line.Quantity
			ord.WasPreOrder = line.WasPreOrder
		}

		if err := tx.CreateOrder(ord); err != nil {
			return err
		}
		order = ord
		return nil
	}

	// Business aborts (validation, missing product, insufficient stock,
	// write conflicts) are normal operation and must not trip the breaker;
	// only infrastructure failures count against it.
	var abortErr error
	_, err := o.breaker.Execute(func() (interface{}, error) {
		err := o.store.RunInTransaction(ctx, body)
		if err != nil && isBusinessAbort(err) {
			abortErr = err
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if abortErr != nil {
		return nil, abortErr
	}

	for _, d := range decrements {
		metrics.InventoryLevel.WithLabelValues(strconv.FormatUint(uint64(d.productID), 10)).Set(float64(d.newStock))
	}
	return order, nil
}

func isBusinessAbort(err error) bool {
	var verr *ValidationError
	var serr *InsufficientStockError
	return errors.As(err, &verr) ||
		errors.As(err, &serr) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrTransactionConflict)
}

func rejectionReason(err error) string {
	var verr *ValidationError
	var serr *InsufficientStockError
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &serr):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "not_found"
	case errors.Is(err, ErrTransactionConflict):
		return "conflict"
	default:
		return "backend"
	}
}

// Package metrics exposes the Prometheus instrumentation for the shop.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// OrdersPlaced counts committed orders by payment method
	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total number of committed orders",
		},
		[]string{"payment_method"},
	)

	// CheckoutRejections counts rejected submissions by reason
	CheckoutRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_rejections_total",
			Help: "Total number of rejected checkout submissions",
		},
		[]string{"reason"},
	)

	// ConflictRetries counts transaction retries caused by write conflicts
	ConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_conflict_retries_total",
			Help: "Total number of checkout transaction retries after write conflicts",
		},
	)

	// InventoryLevel tracks current stock per product after decrements
	InventoryLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventory_level",
			Help: "Current stock level per product",
		},
		[]string{"product_id"},
	)

	// OrderValue tracks committed order totals in Taka
	OrderValue = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "order_value_taka",
			Help:    "Committed order totals in Taka",
			Buckets: []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000},
		},
	)

	// BreakerState tracks the checkout circuit breaker (0=closed, 1=open, 2=half-open)
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_breaker_state",
			Help: "Checkout circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)
)

// Middleware records request counts and latencies for every route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())

		RequestsTotal.WithLabelValues(c.Method(), c.Route().Path, status).Inc()
		RequestDuration.WithLabelValues(c.Method(), c.Route().Path).Observe(duration)

		return err
	}
}

// Handler serves the Prometheus scrape endpoint through fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

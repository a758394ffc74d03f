package handlers

import (
	"errors"
	"strconv"
	"strings"

	"keebshop_backend/config"
	"keebshop_backend/internal/cart"
	"keebshop_backend/internal/checkout"
	"keebshop_backend/internal/notify"
	"keebshop_backend/internal/ws"
	"keebshop_backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type OrderHandler struct {
	DB           *gorm.DB
	Orchestrator *checkout.Orchestrator
	Carts        *cart.Manager
	Hub          *ws.Hub
	Notifier     *notify.Notifier
	Cfg          *config.Config
}

func NewOrderHandler(db *gorm.DB, orch *checkout.Orchestrator, carts *cart.Manager, hub *ws.Hub, notifier *notify.Notifier, cfg *config.Config) *OrderHandler {
	return &OrderHandler{
		DB:           db,
		Orchestrator: orch,
		Carts:        carts,
		Hub:          hub,
		Notifier:     notifier,
		Cfg:          cfg,
	}
}

// Checkout - POST /api/checkout
// Single-product checkout from the product page. The request carries the
// line items explicitly.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	var req checkout.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	h.fillPaymentNumber(&req)

	order, err := h.Orchestrator.SubmitOrder(c.Context(), req)
	if err != nil {
		return checkoutError(c, err)
	}

	h.Hub.OrderCreated(order)
	h.Notifier.OrderCommitted(order)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Order placed successfully!",
		"reference": order.Reference,
		"data":      order,
	})
}

// CartCheckoutRequest carries the customer/payment form for a cart
// checkout; the line items come from the session cart.
type CartCheckoutRequest struct {
	PolicyAgreed  bool   `json:"policyAgreed"`
	CustomerName  string `json:"customerName"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentNumber string `json:"paymentNumber"`
	TransactionID string `json:"transactionId"`
}

// CheckoutCart - POST /api/cart/checkout
// Submits the whole session cart as one order; the cart is cleared only
// after the order committed.
func (h *OrderHandler) CheckoutCart(c *fiber.Ctx) error {
	var form CartCheckoutRequest
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	cr := h.Carts.Get(sessionID(c))
	items := cr.Items()
	if len(items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cart is empty!"})
	}

	req := checkout.Request{
		Cart:          true,
		PolicyAgreed:  form.PolicyAgreed,
		CustomerName:  form.CustomerName,
		Phone:         form.Phone,
		Address:       form.Address,
		PaymentMethod: form.PaymentMethod,
		PaymentNumber: form.PaymentNumber,
		TransactionID: form.TransactionID,
	}
	for _, it := range items {
		req.Items = append(req.Items, checkout.LineRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}
	h.fillPaymentNumber(&req)

	order, err := h.Orchestrator.SubmitOrder(c.Context(), req)
	if err != nil {
		// The cart is left untouched so the customer can correct and retry.
		return checkoutError(c, err)
	}

	cr.Clear()
	h.Hub.OrderCreated(order)
	h.Notifier.OrderCommitted(order)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Order placed successfully!",
		"reference": order.Reference,
		"data":      order,
	})
}

// fillPaymentNumber defaults the shop's receiving number for the chosen
// method when the client did not echo it back.
func (h *OrderHandler) fillPaymentNumber(req *checkout.Request) {
	if req.PaymentNumber != "" {
		return
	}
	switch req.PaymentMethod {
	case models.PaymentBkash:
		req.PaymentNumber = h.Cfg.BkashNumber
	case models.PaymentCashOnDelivery:
		req.PaymentNumber = h.Cfg.CODNumber
	}
}

// TrackOrder - GET /api/orders/track/:transactionId
// Transaction ids are unique by convention, not enforced; first match wins.
func (h *OrderHandler) TrackOrder(c *fiber.Ctx) error {
	txnID := strings.ToUpper(strings.TrimSpace(c.Params("transactionId")))
	if txnID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Transaction ID is required"})
	}

	var order models.Order
	err := h.DB.Preload("Items").
		Where("transaction_id = ?", txnID).
		Order("time_iso desc").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No order found for this transaction ID"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not look up order"})
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"reference":   order.Reference,
			"status":      order.Status,
			"explanation": models.StatusExplanation(order.Status),
			"timeISO":     order.TimeISO,
			"total":       order.Total,
			"paid":        order.Paid,
			"due":         order.Due,
		},
	})
}

// ListOrders - GET /api/admin/orders
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.DB.Preload("Items").Order("time_iso desc").Find(&orders).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch orders"})
	}
	return c.JSON(fiber.Map{"data": orders})
}

// UpdateOrderStatusRequest is the admin status transition payload.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus - PATCH /api/admin/orders/:id/status
// Any status is reachable from any other; only admins get here.
func (h *OrderHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, _ := strconv.Atoi(c.Params("id"))

	var req UpdateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	if !models.ValidStatus(req.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status"})
	}

	var order models.Order
	if err := h.DB.First(&order, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
	}

	if err := h.DB.Model(&order).Update("status", req.Status).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not update order status"})
	}

	h.Hub.OrderStatusChanged(order.ID, req.Status)

	return c.JSON(fiber.Map{
		"message":     "Order status updated",
		"status":      req.Status,
		"explanation": models.StatusExplanation(req.Status),
	})
}

// checkoutError maps the checkout error taxonomy onto HTTP responses. Every
// branch leaves the submission retryable for the customer.
func checkoutError(c *fiber.Ctx, err error) error {
	var verr *checkout.ValidationError
	var serr *checkout.InsufficientStockError

	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Reason, "field": verr.Field})
	case errors.As(err, &serr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     serr.Error(),
			"productId": serr.ProductID,
			"available": serr.Available,
		})
	case errors.Is(err, checkout.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
	case errors.Is(err, checkout.ErrTransactionConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, checkout.ErrBackendUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Store temporarily unavailable, please try again"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error placing order"})
	}
}

// Package pricing holds the pure money math for the storefront: unit
// prices, delivery fees, the pre-order advance and the paid/due split.
// Nothing here touches the database or the clock.
package pricing

import (
	"fmt"
	"math"
	"strings"

	"keebshop_backend/models"
)

// Delivery fee table in Taka, keyed by address keywords.
const (
	FeeSavar   = 70
	FeeDhaka   = 110
	FeeOutside = 150
)

// PreOrderAdvanceRate is the fraction of the subtotal collected up front on
// pre-orders, rounded to the nearest multiple of 5.
const PreOrderAdvanceRate = 0.25

// UnitPrice is the effective per-unit price: price minus discount, or 0
// while the price is still TBA.
func UnitPrice(p *models.Product) float64 {
	return p.FinalPrice()
}

// DeliveryFee resolves the charge from the customer address by
// case-insensitive substring match: savar beats dhaka beats everywhere else.
func DeliveryFee(address string) float64 {
	return DeliveryFeeWithDefault(address, FeeOutside)
}

// DeliveryFeeWithDefault is DeliveryFee with a configurable fallback for an
// empty address (used before the customer has typed anything).
func DeliveryFeeWithDefault(address string, fallback float64) float64 {
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" {
		return fallback
	}
	if strings.Contains(addr, "savar") {
		return FeeSavar
	}
	if strings.Contains(addr, "dhaka") {
		return FeeDhaka
	}
	return FeeOutside
}

// PreOrderUpfront computes the advance on a pre-order subtotal: 25%,
// rounded half-up to the nearest 5.
func PreOrderUpfront(subtotal float64) float64 {
	return math.Round(subtotal*PreOrderAdvanceRate/5) * 5
}

// Subtotal sums unitPrice x quantity over the order lines.
func Subtotal(items []models.OrderLineItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.UnitPrice * float64(it.Quantity)
	}
	return sum
}

// Total is the order total: subtotal plus delivery fee.
func Total(subtotal, deliveryFee float64) float64 {
	return subtotal + deliveryFee
}

// Split computes the paid/due amounts for a payment method. The delivery
// fee is always part of the due balance on partial payments and never part
// of the pre-order advance. paid+due always equals subtotal+deliveryFee.
//
// Pre-order (forced Bkash): paid = advance, due = remainder.
// Bkash: full payment now. Cash on Delivery: delivery fee now, goods due.
func Split(method string, hasPreOrder bool, subtotal, deliveryFee float64) (paid, due float64, err error) {
	total := Total(subtotal, deliveryFee)

	if hasPreOrder {
		paid = PreOrderUpfront(subtotal)
		return paid, total - paid, nil
	}

	switch method {
	case models.PaymentBkash:
		return total, 0, nil
	case models.PaymentCashOnDelivery:
		return deliveryFee, subtotal, nil
	default:
		return 0, 0, fmt.Errorf("unknown payment method %q", method)
	}
}

// Round2 rounds to two decimal places for money comparison.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

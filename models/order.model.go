package models

import (
	"time"

	"gorm.io/gorm"
)

// Order status values. Part of the wire contract; transitions happen only
// through the admin console and any status is reachable from any other.
const (
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusDispatched = "Dispatched"
	StatusDelivered  = "Delivered"
	StatusCancelled  = "Cancelled"
)

// Payment method values.
const (
	PaymentBkash          = "Bkash"
	PaymentCashOnDelivery = "Cash on Delivery"
)

var statusExplanations = map[string]string{
	StatusPending:    "Order received, waiting for processing.",
	StatusProcessing: "Your order is being prepared.",
	StatusDispatched: "Your order has been shipped.",
	StatusDelivered:  "Your order has been delivered.",
	StatusCancelled:  "Your order has been cancelled.",
}

// StatusExplanation returns the customer-facing explanation for a status.
func StatusExplanation(status string) string {
	return statusExplanations[status]
}

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s string) bool {
	_, ok := statusExplanations[s]
	return ok
}

// OrderLineItem is one product line inside a cart order. WasPreOrder
// snapshots the product's availability at order time.
type OrderLineItem struct {
	ID          uint    `gorm:"primaryKey" json:"-"`
	OrderID     uint    `gorm:"index;not null" json:"-"`
	ProductID   uint    `gorm:"index;not null" json:"productId"`
	ProductName string  `gorm:"size:255;not null" json:"productName"`
	Color       string  `gorm:"size:50" json:"color"`
	UnitPrice   float64 `gorm:"not null" json:"unitPrice"`
	Quantity    int     `gorm:"not null" json:"quantity"`
	WasPreOrder bool    `gorm:"default:false" json:"wasPreOrder"`
}

// Order is immutable after checkout except for Status, which only the admin
// console may change. Single-product checkouts embed one line item directly
// (the legacy shape); cart checkouts carry Items instead.
type Order struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Reference string    `gorm:"size:64;uniqueIndex" json:"reference"`
	TimeISO   time.Time `gorm:"index" json:"timeISO"`

	// Legacy single-product fields; unset when Items is populated.
	ProductID   uint    `json:"productId,omitempty"`
	ProductName string  `gorm:"size:255" json:"productName,omitempty"`
	Color       string  `gorm:"size:50" json:"color,omitempty"`
	UnitPrice   float64 `json:"unitPrice,omitempty"`
	Quantity    int     `json:"quantity,omitempty"`
	WasPreOrder bool    `json:"wasPreOrder,omitempty"`

	Items []OrderLineItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`

	DeliveryFee float64 `gorm:"not null" json:"deliveryFee"`
	Total       float64 `gorm:"not null" json:"total"`
	Paid        float64 `gorm:"not null" json:"paid"`
	Due         float64 `gorm:"not null" json:"due"`

	CustomerName  string `gorm:"size:100;not null" json:"customerName"`
	Phone         string `gorm:"size:20;not null" json:"phone"`
	Address       string `gorm:"type:text;not null" json:"address"`
	PaymentMethod string `gorm:"size:20;not null" json:"paymentMethod"`
	PaymentNumber string `gorm:"size:50" json:"paymentNumber"`
	TransactionID string `gorm:"size:64;index" json:"transactionId"`

	Status string `gorm:"size:20;default:'Pending';index" json:"status"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// LineItems returns the order's lines regardless of shape: cart orders
// return Items, legacy orders return their single embedded line.
func (o *Order) LineItems() []OrderLineItem {
	if len(o.Items) > 0 {
		return o.Items
	}
	return []OrderLineItem{{
		OrderID:     o.ID,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		Color:       o.Color,
		UnitPrice:   o.UnitPrice,
		Quantity:    o.Quantity,
		WasPreOrder: o.WasPreOrder,
	}}
}

// TotalQuantity sums quantities across all lines.
func (o *Order) TotalQuantity() int {
	sum := 0
	for _, it := range o.LineItems() {
		sum += it.Quantity
	}
	return sum
}

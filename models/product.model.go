package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
)

// Availability values are part of the wire contract shared with the
// storefront and admin pages. "Pre Order" keeps its space.
const (
	AvailabilityReady    = "Ready"
	AvailabilityPreOrder = "Pre Order"
	AvailabilityUpcoming = "Upcoming"
)

// StockUnlimited marks a product whose stock is never checked or decremented.
const StockUnlimited = -1

// Price is a numeric amount or the "TBA" sentinel for unannounced pricing.
// It round-trips both JSON and the database as either a number or "TBA".
type Price struct {
	Amount float64
	TBA    bool
}

func PriceOf(amount float64) Price { return Price{Amount: amount} }

func PriceTBA() Price { return Price{TBA: true} }

func (p Price) MarshalJSON() ([]byte, error) {
	if p.TBA {
		return json.Marshal("TBA")
	}
	return json.Marshal(p.Amount)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "TBA" {
			*p = Price{TBA: true}
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("price must be a number or \"TBA\"")
		}
		*p = Price{Amount: n}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("price must be a number or \"TBA\"")
	}
	*p = Price{Amount: n}
	return nil
}

func (p Price) Value() (driver.Value, error) {
	if p.TBA {
		return "TBA", nil
	}
	return strconv.FormatFloat(p.Amount, 'f', -1, 64), nil
}

func (p *Price) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case float64:
		*p = Price{Amount: v}
		return nil
	case nil:
		*p = Price{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Price", src)
	}
	if s == "TBA" {
		*p = Price{TBA: true}
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid price value %q", s)
	}
	*p = Price{Amount: n}
	return nil
}

type Product struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Name     string   `gorm:"size:255;not null" json:"name"`
	Color    string   `gorm:"size:50" json:"color"`
	Price    Price    `gorm:"type:varchar(32);not null" json:"price"`
	Discount float64  `gorm:"default:0" json:"discount"`
	Stock    int      `gorm:"default:0" json:"stock"` // -1 means unlimited
	Images   []string `gorm:"serializer:json" json:"images"`
	Category string   `gorm:"size:100;index" json:"category"`
	HotDeal  bool     `gorm:"default:false" json:"hotDeal"`

	Availability string `gorm:"size:20;default:'Ready';index" json:"availability"` // Ready, Pre Order, Upcoming

	Description         string `gorm:"type:text" json:"description"`
	DetailedDescription string `gorm:"type:text" json:"detailedDescription"`
	MetaTitle           string `gorm:"size:255" json:"metaTitle"`
	MetaDescription     string `gorm:"size:512" json:"metaDescription"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// FinalPrice is the unit price after discount; 0 while price is TBA.
func (p *Product) FinalPrice() float64 {
	if p.Price.TBA {
		return 0
	}
	return p.Price.Amount - p.Discount
}

// OutOfStock reports whether the product can no longer be bought off the
// shelf. Pre-order products are never out of stock.
func (p *Product) OutOfStock() bool {
	if p.Availability == AvailabilityUpcoming {
		return false
	}
	return p.Stock <= 0 && p.Stock != StockUnlimited && p.Availability != AvailabilityPreOrder
}

// Orderable reports whether the product may be placed in an order.
func (p *Product) Orderable() bool {
	switch p.Availability {
	case AvailabilityPreOrder:
		return true
	case AvailabilityReady:
		return p.Stock > 0 || p.Stock == StockUnlimited
	default:
		return false
	}
}

// StockStatus mirrors the status column of the admin products table.
func (p *Product) StockStatus() string {
	switch p.Availability {
	case AvailabilityUpcoming:
		return "Upcoming"
	case AvailabilityPreOrder:
		return "Pre Order"
	}
	if p.Stock > 0 || p.Stock == StockUnlimited {
		return "In Stock"
	}
	return "Out of Stock"
}

package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date used for product dates on export.
const DateLayout = "2006-01-02"

// Product is a stocked catalog item.
// ID, Name, Category, UpdatedAt and Supplier are fixed at creation; only Price and
// Quantity change afterwards.
type Product struct {
	// ID is unique across the catalog and never empty.
	ID string `json:"id"`

	// Name is the display name, matched by keyword search.
	Name string `json:"name"`

	// Category groups products for sorting and reporting.
	Category string `json:"category"`

	// Price is the unit price. Never negative.
	Price float64 `json:"price"`

	// Quantity is the number of units in stock. Never negative.
	Quantity int `json:"quantity"`

	// UpdatedAt is the acquisition/last-updated date.
	UpdatedAt time.Time `json:"updated_at"`

	// Supplier is who to reorder from, matched by keyword search.
	Supplier string `json:"supplier"`
}

// Value returns price times quantity.
func (p Product) Value() float64 {
	return p.Price * float64(p.Quantity)
}

// Validate checks the product invariants.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidArgument)
	}
	return ValidateStock(p.Price, p.Quantity)
}

// ValidateStock rejects a negative or non-finite price and a negative quantity.
func ValidateStock(price float64, quantity int) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: price must be a finite number", ErrInvalidArgument)
	}
	if price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidArgument)
	}
	if quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidArgument)
	}
	return nil
}

// SortKey names a product field usable for ordering.
type SortKey string

// Supported sort keys.
const (
	SortByID       SortKey = "id"
	SortByName     SortKey = "name"
	SortByCategory SortKey = "category"
	SortByPrice    SortKey = "price"
	SortByQuantity SortKey = "quantity"
)

// ParseSortKey parses a sort key, defaulting to SortByID for an empty string.
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case "":
		return SortByID, nil
	case SortByID, SortByName, SortByCategory, SortByPrice, SortByQuantity:
		return key, nil
	}
	return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidArgument, s)
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a unit of rentable decoration inventory. TotalQuantity is the owned
// count; AssignedQuantity is the count currently out on ongoing functions.
// The two must satisfy 0 <= assigned <= total at all times.
type Item struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Category         string          `json:"category"`
	Color            string          `json:"color,omitempty"`
	Size             string          `json:"size,omitempty"`
	Condition        string          `json:"condition"`
	Location         string          `json:"location,omitempty"`
	TotalQuantity    int             `json:"total_quantity"`
	AssignedQuantity int             `json:"assigned_quantity"`
	Price            decimal.Decimal `json:"price"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Available is the quantity free to allocate.
func (it Item) Available() int {
	return it.TotalQuantity - it.AssignedQuantity
}

// CreateItemRequest represents the request body for adding an inventory item.
// AssignedQuantity is not accepted; new items always start fully available.
type CreateItemRequest struct {
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Color         string          `json:"color,omitempty"`
	Size          string          `json:"size,omitempty"`
	Condition     string          `json:"condition,omitempty"`
	Location      string          `json:"location,omitempty"`
	TotalQuantity int             `json:"total_quantity"`
	Price         decimal.Decimal `json:"price"`
}

// UpdateItemRequest represents a partial item update. AssignedQuantity is
// never updated through this path; only the booking and return workflows
// move quantity between the available and assigned pools.
type UpdateItemRequest struct {
	Name          *string          `json:"name,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Color         *string          `json:"color,omitempty"`
	Size          *string          `json:"size,omitempty"`
	Condition     *string          `json:"condition,omitempty"`
	Location      *string          `json:"location,omitempty"`
	TotalQuantity *int             `json:"total_quantity,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
}

// Categories is the closed set of item categories.
var Categories = []string{
	"Backdrops",
	"Props",
	"Lighting",
	"Furniture",
	"Fabrics",
	"Frames/Stands",
	"Decorative Items",
}

// Conditions is the closed set of item conditions.
var Conditions = []string{
	"Excellent",
	"Good",
	"Fair",
	"Needs Repair",
}

// IsValidCategory checks if a category belongs to the closed set.
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// IsValidCondition checks if a condition belongs to the closed set.
func IsValidCondition(condition string) bool {
	for _, c := range Conditions {
		if c == condition {
			return true
		}
	}
	return false
}

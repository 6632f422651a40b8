package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Function lifecycle states. A function starts Ongoing and moves to
// Completed exactly once, when its items are returned.
const (
	StatusOngoing   = "Ongoing"
	StatusCompleted = "Completed"
)

// Function is a dated event that borrows a set of items for a period.
// Functions are permanent history and are never deleted.
type Function struct {
	ID               int64        `json:"id"`
	FunctionName     string       `json:"function_name"`
	ClientName       string       `json:"client_name"`
	ClientPhone      string       `json:"client_phone"`
	Venue            string       `json:"venue,omitempty"`
	FunctionDate     Date         `json:"function_date"`
	ReturnDate       Date         `json:"return_date"`
	ActualReturnDate *Date        `json:"actual_return_date,omitempty"`
	Status           string       `json:"status"`
	Allocations      []Allocation `json:"items"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Allocation records how much of one item a function borrows. ItemName is
// captured at booking time so completed history survives later item edits
// and deletions.
type Allocation struct {
	ItemID   int64  `json:"item_id"`
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
}

// AllocationRequest is one proposed (item, quantity) pair in a booking.
type AllocationRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// BookFunctionRequest represents the request body for booking a function
// together with its full allocation set.
type BookFunctionRequest struct {
	FunctionName string              `json:"function_name"`
	ClientName   string              `json:"client_name"`
	ClientPhone  string              `json:"client_phone"`
	Venue        string              `json:"venue,omitempty"`
	FunctionDate string              `json:"function_date"`
	ReturnDate   string              `json:"return_date"`
	Items        []AllocationRequest `json:"items"`
}

// Date is a calendar date (no time of day). It marshals as YYYY-MM-DD and
// maps to the Postgres DATE type.
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month, day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s, expected a JSON string", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		d.Time = v
		return nil
	case nil:
		d.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
}

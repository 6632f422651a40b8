// Package ledger holds the pure allocation rules for the rental inventory.
// It decides how much of an item is available, whether an allocation or
// return request is acceptable, and which quantity deltas to persist. It
// performs no I/O; callers feed it a consistent snapshot of item state and
// commit the resulting deltas themselves.
package ledger

import (
	"fmt"

	"decor-inventory-api/internal/models"
)

// ValidationError is a user-correctable rejection. The message names the
// violated rule so the caller can surface it verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ConsistencyError signals that stored quantities have drifted outside the
// ledger's invariants (e.g. from a prior partial write). It is not
// user-correctable; the operation must be refused and the store reconciled.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return e.Reason
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func consistencyf(format string, args ...interface{}) error {
	return &ConsistencyError{Reason: fmt.Sprintf(format, args...)}
}

// Delta is the change to apply to an item's assigned quantity.
type Delta struct {
	ItemID int64
	Change int
}

// CheckInvariant verifies 0 <= assigned <= total for a single item.
func CheckInvariant(it models.Item) error {
	if it.AssignedQuantity < 0 || it.AssignedQuantity > it.TotalQuantity {
		return consistencyf("item %d (%s): assigned quantity %d outside [0, %d], needs reconciliation",
			it.ID, it.Name, it.AssignedQuantity, it.TotalQuantity)
	}
	return nil
}

// Available returns the quantity of an item free to allocate. It is never
// negative while the core invariant holds; a negative value is data
// corruption and is caught by CheckInvariant before any decision is made.
func Available(it models.Item) int {
	return it.TotalQuantity - it.AssignedQuantity
}

// ValidateAllocation checks a single allocation request against the current
// item snapshot and, on acceptance, returns the assigned-quantity delta to
// persist.
func ValidateAllocation(it models.Item, qty int) (Delta, error) {
	if err := CheckInvariant(it); err != nil {
		return Delta{}, err
	}
	if qty <= 0 {
		return Delta{}, validationf("quantity must be greater than zero")
	}
	if avail := Available(it); qty > avail {
		return Delta{}, validationf("%s: only %d units available", it.Name, avail)
	}
	return Delta{ItemID: it.ID, Change: qty}, nil
}

// ValidateReturn checks a single return against the current item snapshot.
// Assigned quantity only ever grows by the allocations of ongoing functions,
// so a return that would drive it negative means the store has drifted; that
// is reported as a consistency error, never silently clamped to zero.
func ValidateReturn(it models.Item, qty int) (Delta, error) {
	if err := CheckInvariant(it); err != nil {
		return Delta{}, err
	}
	if qty <= 0 {
		return Delta{}, validationf("quantity must be greater than zero")
	}
	if qty > it.AssignedQuantity {
		return Delta{}, consistencyf("item %d (%s): returning %d units but only %d assigned, needs reconciliation",
			it.ID, it.Name, qty, it.AssignedQuantity)
	}
	return Delta{ItemID: it.ID, Change: -qty}, nil
}

// BuildAllocationSet validates a proposed allocation list against a snapshot
// of the items it references and resolves it into the allocations to book.
// The check is all-or-nothing: an empty list, a repeated item (the rule is
// remove-and-re-add, not merge), an unknown item, or any single allocation
// failure rejects the whole set before anything is written, so a function is
// never created with a subset of its intended allocations.
func BuildAllocationSet(items map[int64]models.Item, requests []models.AllocationRequest) ([]models.Allocation, error) {
	if len(requests) == 0 {
		return nil, validationf("at least one item is required")
	}

	seen := make(map[int64]bool, len(requests))
	allocations := make([]models.Allocation, 0, len(requests))
	for _, req := range requests {
		if seen[req.ItemID] {
			it, ok := items[req.ItemID]
			if !ok {
				return nil, validationf("item %d is already added, remove it first to change quantity", req.ItemID)
			}
			return nil, validationf("%s is already added, remove it first to change quantity", it.Name)
		}
		seen[req.ItemID] = true

		it, ok := items[req.ItemID]
		if !ok {
			return nil, validationf("item %d not found", req.ItemID)
		}
		if _, err := ValidateAllocation(it, req.Quantity); err != nil {
			return nil, err
		}
		allocations = append(allocations, models.Allocation{
			ItemID:   it.ID,
			ItemName: it.Name,
			Quantity: req.Quantity,
		})
	}
	return allocations, nil
}

// AssignedTotals computes each item's expected assigned quantity as the sum
// of allocations across functions currently in status Ongoing. It is the
// reference point for reconciliation after a detected inconsistency.
func AssignedTotals(functions []models.Function) map[int64]int {
	totals := make(map[int64]int)
	for _, fn := range functions {
		if fn.Status != models.StatusOngoing {
			continue
		}
		for _, alloc := range fn.Allocations {
			totals[alloc.ItemID] += alloc.Quantity
		}
	}
	return totals
}

package internal

import (
	"encoding/json"
	"errors"
	"net/http"

	"decor-inventory-api/internal/ledger"
)

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sendListResponse writes a paginated list payload
func sendListResponse(w http.ResponseWriter, data interface{}, total int, params listParams) {
	writeJSON(w, http.StatusOK, listResponse{
		Data:   data,
		Total:  total,
		Limit:  params.limit,
		Offset: params.offset,
	})
}

// writeLedgerError maps ledger rejections onto the HTTP surface. Validation
// failures are the caller's to fix (400, message names the rule).
// Consistency failures mean stored quantities have drifted; they get a 409
// with a reconciliation flag and must never be retried blindly.
func writeLedgerError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": verr.Reason,
		})
		return
	}
	var cerr *ledger.ConsistencyError
	if errors.As(err, &cerr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                cerr.Reason,
			"needs_reconciliation": true,
		})
		return
	}
	// Store errors propagate unchanged; retrying a multi-step workflow
	// here could double-apply deltas, so retries are left to the caller.
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

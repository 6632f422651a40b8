package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"decor-inventory-api/internal/ledger"
	"decor-inventory-api/internal/models"

	"github.com/lib/pq"
)

const functionColumns = `id, function_name, client_name, client_phone, venue,
	function_date, return_date, actual_return_date, status, created_at, updated_at`

func scanFunction(row interface{ Scan(...any) error }, fn *models.Function) error {
	var actual sql.NullTime
	err := row.Scan(
		&fn.ID, &fn.FunctionName, &fn.ClientName, &fn.ClientPhone, &fn.Venue,
		&fn.FunctionDate, &fn.ReturnDate, &actual, &fn.Status,
		&fn.CreatedAt, &fn.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if actual.Valid {
		d := models.Date{Time: actual.Time}
		fn.ActualReturnDate = &d
	}
	return nil
}

// LIST newest-first with search on function/client name, status filter and
// pagination. Allocations are attached with item names as captured at
// booking time.
func (s *Server) listFunctions(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(function_name ILIKE $%d OR client_name ILIKE $%d)", arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}
	if params.status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", arg))
		args = append(args, params.status)
		arg++
	}

	whereClause := ""
	if len(clauses) > 0 {
		whereClause = " WHERE " + strings.Join(clauses, " AND ")
	}

	sqlStr := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() as total_count
		FROM functions%s`, functionColumns, whereClause)

	allowedSort := map[string]string{
		"id":            "id",
		"function_date": "function_date",
		"return_date":   "return_date",
		"created_at":    "created_at",
	}
	if params.sort == "" {
		params.sort = "-function_date"
	}
	sqlStr += buildOrderBy(params.sort, allowedSort)
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", params.limit, params.offset)

	rows, err := s.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	functions := []models.Function{}
	byID := map[int64]int{}
	var totalCount int
	for rows.Next() {
		var fn models.Function
		var actual sql.NullTime
		if err := rows.Scan(
			&fn.ID, &fn.FunctionName, &fn.ClientName, &fn.ClientPhone, &fn.Venue,
			&fn.FunctionDate, &fn.ReturnDate, &actual, &fn.Status,
			&fn.CreatedAt, &fn.UpdatedAt, &totalCount,
		); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if actual.Valid {
			d := models.Date{Time: actual.Time}
			fn.ActualReturnDate = &d
		}
		fn.Allocations = []models.Allocation{}
		byID[fn.ID] = len(functions)
		functions = append(functions, fn)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if len(functions) > 0 {
		ids := make([]int64, 0, len(functions))
		for id := range byID {
			ids = append(ids, id)
		}
		allocRows, err := s.DB.QueryContext(r.Context(), `
			SELECT function_id, item_id, item_name, quantity
			FROM function_items
			WHERE function_id = ANY($1)
			ORDER BY function_id, item_id`, pq.Array(ids))
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		defer allocRows.Close()
		for allocRows.Next() {
			var fnID int64
			var alloc models.Allocation
			if err := allocRows.Scan(&fnID, &alloc.ItemID, &alloc.ItemName, &alloc.Quantity); err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			idx := byID[fnID]
			functions[idx].Allocations = append(functions[idx].Allocations, alloc)
		}
		if err := allocRows.Err(); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	}

	sendListResponse(w, functions, totalCount, params)
}

func (s *Server) getFunction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var fn models.Function
	err = scanFunction(s.DB.QueryRowContext(r.Context(),
		`SELECT `+functionColumns+` FROM functions WHERE id = $1`, id), &fn)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	fn.Allocations, err = s.loadAllocations(r.Context(), fn.ID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, fn)
}

func (s *Server) loadAllocations(ctx context.Context, functionID int64) ([]models.Allocation, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT item_id, item_name, quantity
		FROM function_items WHERE function_id = $1 ORDER BY item_id`, functionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	allocations := []models.Allocation{}
	for rows.Next() {
		var alloc models.Allocation
		if err := rows.Scan(&alloc.ItemID, &alloc.ItemName, &alloc.Quantity); err != nil {
			return nil, err
		}
		allocations = append(allocations, alloc)
	}
	return allocations, rows.Err()
}

// bookFunction creates a function together with its full allocation set.
// Validation that needs no store state happens before any I/O; everything
// else runs in one transaction against locked item rows, so a rejected or
// failed booking leaves no partial function behind.
func (s *Server) bookFunction(w http.ResponseWriter, r *http.Request) {
	var req models.BookFunctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}

	if msg := validateBookingRequest(&req); msg != "" {
		s.Metrics.BookingOutcome("rejected")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
		return
	}
	functionDate, err := models.ParseDate(req.FunctionDate)
	if err != nil {
		s.Metrics.BookingOutcome("rejected")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "function_date: " + err.Error()})
		return
	}
	returnDate, err := models.ParseDate(req.ReturnDate)
	if err != nil {
		s.Metrics.BookingOutcome("rejected")
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "return_date: " + err.Error()})
		return
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		s.Metrics.BookingOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	// Snapshot and lock the referenced items so no other booking can
	// interleave between validation and commit.
	itemIDs := make([]int64, 0, len(req.Items))
	for _, it := range req.Items {
		itemIDs = append(itemIDs, it.ItemID)
	}
	snapshot, err := lockItems(r.Context(), tx, itemIDs)
	if err != nil {
		s.Metrics.BookingOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}

	allocations, err := ledger.BuildAllocationSet(snapshot, req.Items)
	if err != nil {
		s.Metrics.BookingOutcome("rejected")
		writeLedgerError(w, err)
		return
	}

	fn := models.Function{
		FunctionName: req.FunctionName,
		ClientName:   req.ClientName,
		ClientPhone:  req.ClientPhone,
		Venue:        req.Venue,
		FunctionDate: functionDate,
		ReturnDate:   returnDate,
		Status:       models.StatusOngoing,
		Allocations:  allocations,
	}

	// Status is forced to Ongoing and the actual return date left unset.
	err = tx.QueryRowContext(r.Context(), `
		INSERT INTO functions (function_name, client_name, client_phone, venue, function_date, return_date, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at
	`, fn.FunctionName, fn.ClientName, fn.ClientPhone, fn.Venue, fn.FunctionDate, fn.ReturnDate, fn.Status).
		Scan(&fn.ID, &fn.CreatedAt, &fn.UpdatedAt)
	if err != nil {
		s.Metrics.BookingOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}

	for _, alloc := range allocations {
		if _, err := tx.ExecContext(r.Context(), `
			INSERT INTO function_items (function_id, item_id, item_name, quantity)
			VALUES ($1,$2,$3,$4)`, fn.ID, alloc.ItemID, alloc.ItemName, alloc.Quantity); err != nil {
			s.Metrics.BookingOutcome("failed")
			http.Error(w, err.Error(), 500)
			return
		}
		if _, err := tx.ExecContext(r.Context(), `
			UPDATE items SET assigned_quantity = assigned_quantity + $1, updated_at = now()
			WHERE id = $2`, alloc.Quantity, alloc.ItemID); err != nil {
			s.Metrics.BookingOutcome("failed")
			http.Error(w, err.Error(), 500)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		s.Metrics.BookingOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}

	s.Metrics.BookingOutcome("committed")
	s.Log.Info().Int64("function_id", fn.ID).Int("items", len(allocations)).Msg("function booked")
	writeJSON(w, http.StatusCreated, fn)
}

// returnFunction completes an ongoing function and reverses its allocations.
// Returning an already-completed function is rejected without touching any
// state, so a double return can never double-subtract.
func (s *Server) returnFunction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.Metrics.ReturnOutcome("rejected")
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		s.Metrics.ReturnOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var fn models.Function
	err = scanFunction(tx.QueryRowContext(r.Context(),
		`SELECT `+functionColumns+` FROM functions WHERE id = $1 FOR UPDATE`, id), &fn)
	if err == sql.ErrNoRows {
		s.Metrics.ReturnOutcome("rejected")
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.Metrics.ReturnOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}
	if fn.Status != models.StatusOngoing {
		s.Metrics.ReturnOutcome("rejected")
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": fmt.Sprintf("function %d is already %s", fn.ID, fn.Status),
		})
		return
	}

	allocRows, err := tx.QueryContext(r.Context(), `
		SELECT item_id, item_name, quantity
		FROM function_items WHERE function_id = $1 ORDER BY item_id`, fn.ID)
	if err != nil {
		s.Metrics.ReturnOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}
	allocations := []models.Allocation{}
	for allocRows.Next() {
		var alloc models.Allocation
		if err := allocRows.Scan(&alloc.ItemID, &alloc.ItemName, &alloc.Quantity); err != nil {
			allocRows.Close()
			s.Metrics.ReturnOutcome("failed")
			http.Error(w, err.Error(), 500)
			return
		}
		allocations = append(allocations, alloc)
	}
	if err := allocRows.Close(); err != nil {
		s.Metrics.ReturnOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}

	itemIDs := make([]int64, 0, len(allocations))
	for _, alloc := range allocations {
		itemIDs = append(itemIDs, alloc.ItemID)
	}
	snapshot, err := lockItems(r.Context(), tx, itemIDs)
	if err != nil {
		s.Metrics.ReturnOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}

	for _, alloc := range allocations {
		it, ok := snapshot[alloc.ItemID]
		if !ok {
			// Item was deleted while the function was ongoing; the
			// delete guard should make this impossible.
			s.Metrics.ReturnOutcome("rejected")
			writeLedgerError(w, &ledger.ConsistencyError{
				Reason: fmt.Sprintf("item %d no longer exists, needs reconciliation", alloc.ItemID),
			})
			return
		}
		delta, err := ledger.ValidateReturn(it, alloc.Quantity)
		if err != nil {
			s.Metrics.ReturnOutcome("rejected")
			writeLedgerError(w, err)
			return
		}
		if _, err := tx.ExecContext(r.Context(), `
			UPDATE items SET assigned_quantity = assigned_quantity + $1, updated_at = now()
			WHERE id = $2`, delta.Change, delta.ItemID); err != nil {
			s.Metrics.ReturnOutcome("failed")
			http.Error(w, err.Error(), 500)
			return
		}
	}

	today := models.Today()
	err = tx.QueryRowContext(r.Context(), `
		UPDATE functions SET status = $1, actual_return_date = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at`, models.StatusCompleted, today, fn.ID).Scan(&fn.UpdatedAt)
	if err != nil {
		s.Metrics.ReturnOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}

	if err := tx.Commit(); err != nil {
		s.Metrics.ReturnOutcome("failed")
		http.Error(w, err.Error(), 500)
		return
	}

	fn.Status = models.StatusCompleted
	fn.ActualReturnDate = &today
	fn.Allocations = allocations
	s.Metrics.ReturnOutcome("committed")
	s.Log.Info().Int64("function_id", fn.ID).Int("items", len(allocations)).Msg("function returned")
	writeJSON(w, http.StatusOK, fn)
}

// validateBookingRequest checks the required fields that need no store
// state. Returns an empty string when the request is acceptable.
func validateBookingRequest(req *models.BookFunctionRequest) string {
	switch {
	case strings.TrimSpace(req.FunctionName) == "":
		return "function_name is required"
	case strings.TrimSpace(req.ClientName) == "":
		return "client_name is required"
	case strings.TrimSpace(req.ClientPhone) == "":
		return "client_phone is required"
	case strings.TrimSpace(req.FunctionDate) == "":
		return "function_date is required"
	case strings.TrimSpace(req.ReturnDate) == "":
		return "return_date is required"
	case len(req.Items) == 0:
		return "at least one item is required"
	}
	return ""
}

// lockItems reads the given items FOR UPDATE inside tx and returns them
// keyed by id. Unknown ids are simply absent from the result; the ledger
// reports them.
func lockItems(ctx context.Context, tx *sql.Tx, itemIDs []int64) (map[int64]models.Item, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ANY($1) FOR UPDATE`, pq.Array(itemIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot := make(map[int64]models.Item, len(itemIDs))
	for rows.Next() {
		var it models.Item
		if err := scanItem(rows, &it); err != nil {
			return nil, err
		}
		snapshot[it.ID] = it
	}
	return snapshot, rows.Err()
}

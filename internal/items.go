package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"decor-inventory-api/internal/models"
)

const itemColumns = `id, name, category, color, size, condition, location,
	total_quantity, assigned_quantity, price, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }, it *models.Item) error {
	return row.Scan(
		&it.ID, &it.Name, &it.Category, &it.Color, &it.Size, &it.Condition,
		&it.Location, &it.TotalQuantity, &it.AssignedQuantity, &it.Price,
		&it.CreatedAt, &it.UpdatedAt,
	)
}

// LIST with search on name/color, category filter and pagination
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR color ILIKE $%d)", arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}
	if params.category != "" {
		clauses = append(clauses, fmt.Sprintf("category = $%d", arg))
		args = append(args, params.category)
		arg++
	}

	whereClause := ""
	if len(clauses) > 0 {
		whereClause = " WHERE " + strings.Join(clauses, " AND ")
	}

	// COUNT(*) OVER() returns the unpaginated total alongside each row
	sqlStr := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() as total_count
		FROM items%s`, itemColumns, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"name":       "name",
		"category":   "category",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	sqlStr += buildOrderBy(params.sort, allowedSort)
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", params.limit, params.offset)

	rows, err := s.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.Item{}
	var totalCount int
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(
			&it.ID, &it.Name, &it.Category, &it.Color, &it.Size, &it.Condition,
			&it.Location, &it.TotalQuantity, &it.AssignedQuantity, &it.Price,
			&it.CreatedAt, &it.UpdatedAt, &totalCount,
		); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		items = append(items, it)
	}

	sendListResponse(w, items, totalCount, params)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var it models.Item
	err = scanItem(s.DB.QueryRowContext(r.Context(),
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id), &it)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var in models.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		http.Error(w, "name is required", 400)
		return
	}
	if !models.IsValidCategory(in.Category) {
		http.Error(w, "unknown category "+in.Category, 400)
		return
	}
	if in.Condition == "" {
		in.Condition = "Excellent"
	}
	if !models.IsValidCondition(in.Condition) {
		http.Error(w, "unknown condition "+in.Condition, 400)
		return
	}
	if in.TotalQuantity < 0 {
		http.Error(w, "total_quantity must not be negative", 400)
		return
	}
	if in.Price.IsNegative() {
		http.Error(w, "price must not be negative", 400)
		return
	}

	it := models.Item{
		Name:          in.Name,
		Category:      in.Category,
		Color:         in.Color,
		Size:          in.Size,
		Condition:     in.Condition,
		Location:      in.Location,
		TotalQuantity: in.TotalQuantity,
		Price:         in.Price,
	}

	// assigned_quantity is forced to 0 for new items
	err := s.DB.QueryRowContext(r.Context(), `
		INSERT INTO items (name, category, color, size, condition, location, total_quantity, assigned_quantity, price)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8)
		RETURNING id, created_at, updated_at
	`, it.Name, it.Category, it.Color, it.Size, it.Condition, it.Location, it.TotalQuantity, it.Price).
		Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			http.Error(w, "item name already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var in models.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		http.Error(w, "name must not be blank", 400)
		return
	}
	if in.Category != nil && !models.IsValidCategory(*in.Category) {
		http.Error(w, "unknown category "+*in.Category, 400)
		return
	}
	if in.Condition != nil && !models.IsValidCondition(*in.Condition) {
		http.Error(w, "unknown condition "+*in.Condition, 400)
		return
	}
	if in.TotalQuantity != nil && *in.TotalQuantity < 0 {
		http.Error(w, "total_quantity must not be negative", 400)
		return
	}
	if in.Price != nil && in.Price.IsNegative() {
		http.Error(w, "price must not be negative", 400)
		return
	}

	type set struct {
		sql string
		val interface{}
	}
	sets := make([]set, 0, 8)
	if in.Name != nil {
		sets = append(sets, set{"name = $%d", *in.Name})
	}
	if in.Category != nil {
		sets = append(sets, set{"category = $%d", *in.Category})
	}
	if in.Color != nil {
		sets = append(sets, set{"color = $%d", *in.Color})
	}
	if in.Size != nil {
		sets = append(sets, set{"size = $%d", *in.Size})
	}
	if in.Condition != nil {
		sets = append(sets, set{"condition = $%d", *in.Condition})
	}
	if in.Location != nil {
		sets = append(sets, set{"location = $%d", *in.Location})
	}
	if in.TotalQuantity != nil {
		sets = append(sets, set{"total_quantity = $%d", *in.TotalQuantity})
	}
	if in.Price != nil {
		sets = append(sets, set{"price = $%d", *in.Price})
	}
	if len(sets) == 0 {
		http.Error(w, "no fields to update", 400)
		return
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	// Capacity cannot drop below what is currently out on loan, so the
	// check runs against a locked row.
	if in.TotalQuantity != nil {
		var assigned int
		err := tx.QueryRowContext(r.Context(),
			`SELECT assigned_quantity FROM items WHERE id = $1 FOR UPDATE`, id).Scan(&assigned)
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if *in.TotalQuantity < assigned {
			http.Error(w, fmt.Sprintf("total_quantity cannot drop below the %d units currently assigned", assigned), 400)
			return
		}
	}

	args := make([]interface{}, 0, len(sets)+1)
	sqlStr := "UPDATE items SET updated_at = now()"
	for _, sset := range sets {
		sqlStr += ", " + fmt.Sprintf(sset.sql, len(args)+1)
		args = append(args, sset.val)
	}
	sqlStr += fmt.Sprintf(" WHERE id = $%d RETURNING ", len(args)+1) + itemColumns
	args = append(args, id)

	var out models.Item
	if err := scanItem(tx.QueryRowContext(r.Context(), sqlStr, args...), &out); err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			http.Error(w, "item name already exists", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	// Items out on ongoing functions cannot be deleted.
	res, err := s.DB.ExecContext(r.Context(),
		`DELETE FROM items WHERE id = $1 AND assigned_quantity = 0`, id)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := s.DB.QueryRowContext(r.Context(),
			`SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if exists {
			http.Error(w, "cannot delete item with ongoing functions", http.StatusBadRequest)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

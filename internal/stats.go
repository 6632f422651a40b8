package internal

import (
	"net/http"

	"github.com/shopspring/decimal"

	"decor-inventory-api/internal/models"
)

// InventoryStats are the dashboard numbers: catalog size, total value of
// owned stock, units out on ongoing functions and the number of those
// functions.
type InventoryStats struct {
	ItemCount        int             `json:"item_count"`
	TotalValue       decimal.Decimal `json:"total_value"`
	UnitsAssigned    int             `json:"units_assigned"`
	OngoingFunctions int             `json:"ongoing_functions"`
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	var stats InventoryStats

	err := s.DB.QueryRowContext(r.Context(), `
		SELECT COUNT(*),
		       COALESCE(SUM(total_quantity * price), 0),
		       COALESCE(SUM(assigned_quantity), 0)
		FROM items`).
		Scan(&stats.ItemCount, &stats.TotalValue, &stats.UnitsAssigned)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	err = s.DB.QueryRowContext(r.Context(),
		`SELECT COUNT(*) FROM functions WHERE status = $1`, models.StatusOngoing).
		Scan(&stats.OngoingFunctions)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

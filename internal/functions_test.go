package internal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"decor-inventory-api/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBookFunctionValidation(t *testing.T) {
	s := newValidationServer()

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "invalid JSON",
			body:    "{not json",
			wantMsg: "invalid JSON",
		},
		{
			name:    "missing function name",
			body:    `{"client_name": "Priya", "client_phone": "9876543210", "function_date": "2026-09-12", "return_date": "2026-09-14", "items": [{"item_id": 1, "quantity": 2}]}`,
			wantMsg: "function_name is required",
		},
		{
			name:    "missing client name",
			body:    `{"function_name": "Reception", "client_phone": "9876543210", "function_date": "2026-09-12", "return_date": "2026-09-14", "items": [{"item_id": 1, "quantity": 2}]}`,
			wantMsg: "client_name is required",
		},
		{
			name:    "missing dates",
			body:    `{"function_name": "Reception", "client_name": "Priya", "client_phone": "9876543210", "items": [{"item_id": 1, "quantity": 2}]}`,
			wantMsg: "function_date is required",
		},
		{
			name:    "empty allocation set",
			body:    `{"function_name": "Reception", "client_name": "Priya", "client_phone": "9876543210", "function_date": "2026-09-12", "return_date": "2026-09-14", "items": []}`,
			wantMsg: "at least one item is required",
		},
		{
			name:    "unparseable function date",
			body:    `{"function_name": "Reception", "client_name": "Priya", "client_phone": "9876543210", "function_date": "12/09/2026", "return_date": "2026-09-14", "items": [{"item_id": 1, "quantity": 2}]}`,
			wantMsg: "function_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/functions", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			s.bookFunction(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)
		})
	}
}

func TestValidateBookingRequest(t *testing.T) {
	valid := models.BookFunctionRequest{
		FunctionName: "Reception",
		ClientName:   "Priya",
		ClientPhone:  "9876543210",
		FunctionDate: "2026-09-12",
		ReturnDate:   "2026-09-14",
		Items:        []models.AllocationRequest{{ItemID: 1, Quantity: 2}},
	}
	assert.Empty(t, validateBookingRequest(&valid))

	blank := valid
	blank.ClientPhone = "   "
	assert.Equal(t, "client_phone is required", validateBookingRequest(&blank))
}

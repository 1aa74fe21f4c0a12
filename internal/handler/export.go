package handler

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RegisterExportRoutes registers the order export endpoint. Mounted at
// /tenants/{tid}/orders/export inside the admin-role group.
func (h *OrderHandler) RegisterExportRoutes(r chi.Router) {
	r.Get("/", h.ExportCSV)
}

// ExportCSV streams all orders in a date range as a CSV download.
// The end date is inclusive: ?end_date=2026-01-31 covers that whole day.
func (h *OrderHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	startStr := r.URL.Query().Get("start_date")
	endStr := r.URL.Query().Get("end_date")
	if startStr == "" || endStr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_date and end_date are required"})
		return
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
		return
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
		return
	}
	if end.Before(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_date must not be before start_date"})
		return
	}
	end = end.Add(24 * time.Hour)

	orders, err := h.svc.Export(r.Context(), tenantID, start, end)
	if err != nil {
		log.Printf("ERROR: export orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	filename := fmt.Sprintf("orders_%s_%s.csv", startStr, endStr)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	header := []string{
		"order_id", "table_number", "status", "payment_status", "payment_mode",
		"subtotal", "service_charge", "total", "customer_name", "cook_name",
		"created_at", "completed_at",
	}
	if err := cw.Write(header); err != nil {
		log.Printf("ERROR: export orders: write header: %v", err)
		return
	}
	for _, o := range orders {
		completedAt := ""
		if o.CompletedAt.Valid {
			completedAt = o.CompletedAt.Time.UTC().Format(time.RFC3339)
		}
		row := []string{
			o.OrderID,
			fmt.Sprintf("%d", o.TableNumber),
			o.Status,
			o.PaymentStatus,
			o.PaymentMode,
			numericToString(o.Subtotal),
			numericToString(o.ServiceChargeAmount),
			numericToString(o.Total),
			o.CustomerName.String,
			o.CookName.String,
			o.CreatedAt.UTC().Format(time.RFC3339),
			completedAt,
		}
		if err := cw.Write(row); err != nil {
			log.Printf("ERROR: export orders: write row: %v", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("ERROR: export orders: flush: %v", err)
	}
}

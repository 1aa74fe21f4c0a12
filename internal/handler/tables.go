package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tabletap/api/internal/database"
)

// TableStore defines the database methods needed by table handlers.
type TableStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	ListTables(ctx context.Context, tenantID uuid.UUID) ([]database.RestaurantTable, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.RestaurantTable, error)
	SetTableActive(ctx context.Context, arg database.SetTableActiveParams) (database.RestaurantTable, error)
}

// TableHandler handles staff table management and QR poster generation.
type TableHandler struct {
	store TableStore
	// baseURL is the public site customers land on after scanning a QR.
	baseURL string
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, baseURL string) *TableHandler {
	return &TableHandler{store: store, baseURL: baseURL}
}

// RegisterRoutes registers table endpoints. Mounted at /tenants/{tid}/tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Patch("/{tn}", h.SetActive)
	r.Get("/qr-codes", h.QRCodes)
}

// --- Request / Response types ---

type createTableRequest struct {
	TableNumber int32 `json:"table_number"`
}

type setTableActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type tableResponse struct {
	ID          uuid.UUID `json:"id"`
	TableNumber int32     `json:"table_number"`
	IsActive    bool      `json:"is_active"`
}

// --- Handlers ---

// List handles GET /tenants/{tid}/tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	tables, err := h.store.ListTables(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = tableResponse{ID: t.ID, TableNumber: t.TableNumber, IsActive: t.IsActive}
	}
	writeJSON(w, http.StatusOK, map[string][]tableResponse{"tables": resp})
}

// Create handles POST /tenants/{tid}/tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TableNumber <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_number must be > 0"})
		return
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		TenantID:    tenantID,
		TableNumber: req.TableNumber,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table number already exists"})
			return
		}
		log.Printf("ERROR: create table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, tableResponse{ID: table.ID, TableNumber: table.TableNumber, IsActive: table.IsActive})
}

// SetActive handles PATCH /tenants/{tid}/tables/{tn}.
func (h *TableHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableNumber, err := tableNumberParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table number"})
		return
	}

	var req setTableActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.store.SetTableActive(r.Context(), database.SetTableActiveParams{
		TenantID:    tenantID,
		TableNumber: tableNumber,
		IsActive:    req.IsActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: set table active: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tableResponse{ID: table.ID, TableNumber: table.TableNumber, IsActive: table.IsActive})
}

// QRCodes handles GET /tenants/{tid}/tables/qr-codes.
// Returns a printable page of one QR poster per active table.
func (h *TableHandler) QRCodes(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	tenant, err := h.store.GetTenant(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		log.Printf("ERROR: get tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	tables, err := h.store.ListTables(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	data := qrPageData{RestaurantName: tenant.Name}
	for _, t := range tables {
		if !t.IsActive {
			continue
		}
		target := fmt.Sprintf("%s/t/%s/%d", h.baseURL, tenantID, t.TableNumber)
		data.Posters = append(data.Posters, qrPoster{
			TableNumber: t.TableNumber,
			ImageURL:    "https://api.qrserver.com/v1/create-qr-code/?size=300x300&data=" + url.QueryEscape(target),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := qrTmpl.Execute(w, data); err != nil {
		log.Printf("ERROR: render qr posters: %v", err)
	}
}

type qrPageData struct {
	RestaurantName string
	Posters        []qrPoster
}

type qrPoster struct {
	TableNumber int32
	ImageURL    string
}

var qrTmpl = template.Must(template.New("qr").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Table QR Codes - {{.RestaurantName}}</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 0; padding: 20px; }
    .poster { width: 350px; margin: 0 auto 30px; padding: 30px; text-align: center; border: 3px solid #000; border-radius: 12px; page-break-after: always; }
    .poster h1 { font-size: 24px; margin: 0 0 6px; text-transform: uppercase; }
    .poster h2 { font-size: 40px; margin: 10px 0; }
    .poster img { width: 300px; height: 300px; }
    .poster p { font-size: 15px; margin: 12px 0 0; }
  </style>
</head>
<body>
  {{range .Posters}}
  <div class="poster">
    <h1>{{$.RestaurantName}}</h1>
    <h2>Table {{.TableNumber}}</h2>
    <img src="{{.ImageURL}}" alt="Table QR code" />
    <p>Scan to view the menu &amp; order</p>
  </div>
  {{end}}
</body>
</html>
`))

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
)

// SettingsStore defines the database methods needed by settings handlers.
type SettingsStore interface {
	GetTenantSettings(ctx context.Context, tenantID uuid.UUID) (database.TenantSettings, error)
	UpdateTenantSettings(ctx context.Context, arg database.UpdateTenantSettingsParams) (database.TenantSettings, error)
	GetPublicTenantSettings(ctx context.Context, tenantID uuid.UUID) (database.PublicTenantSettings, error)
}

// MenuInvalidator drops a tenant's cached menu. Satisfied by *menu.Fetcher.
type MenuInvalidator interface {
	Invalidate(tenantID uuid.UUID)
}

// SettingsHandler handles tenant settings endpoints.
type SettingsHandler struct {
	store SettingsStore
	menus MenuInvalidator
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore, menus MenuInvalidator) *SettingsHandler {
	return &SettingsHandler{store: store, menus: menus}
}

// RegisterPublicRoutes registers the guest-facing settings endpoint.
func (h *SettingsHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/settings/public", h.GetPublic)
}

// RegisterStaffRoutes registers the admin settings endpoints.
func (h *SettingsHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/settings", h.Get)
	r.Put("/settings", h.Update)
}

// --- Request / Response types ---

type publicSettingsResponse struct {
	TenantID         uuid.UUID `json:"tenant_id"`
	RestaurantName   string    `json:"restaurant_name"`
	Address          *string   `json:"address"`
	IsActive         bool      `json:"is_active"`
	AcceptedModes    []string  `json:"accepted_modes"`
	ServiceChargePct string    `json:"service_charge_pct"`
	TableCount       int32     `json:"table_count"`
	Theme            *string   `json:"theme"`
}

type settingsResponse struct {
	TenantID            uuid.UUID `json:"tenant_id"`
	MerchantUpiID       *string   `json:"merchant_upi_id"`
	AcceptedModes       []string  `json:"accepted_modes"`
	ServiceChargePct    string    `json:"service_charge_pct"`
	TableCount          int32     `json:"table_count"`
	MenuSheetURL        *string   `json:"menu_sheet_url"`
	Theme               *string   `json:"theme"`
	RequireCustomerAuth bool      `json:"require_customer_auth"`
}

type updateSettingsRequest struct {
	MerchantUpiID       string   `json:"merchant_upi_id"`
	AcceptedModes       []string `json:"accepted_modes"`
	ServiceChargePct    string   `json:"service_charge_pct"`
	TableCount          int32    `json:"table_count"`
	MenuSheetURL        string   `json:"menu_sheet_url"`
	Theme               string   `json:"theme"`
	RequireCustomerAuth bool     `json:"require_customer_auth"`
}

// --- Handlers ---

// GetPublic handles GET /tenants/{tid}/settings/public.
// The projection never includes the merchant UPI ID or the sheet URL.
func (h *SettingsHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	s, err := h.store.GetPublicTenantSettings(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "restaurant not found"})
			return
		}
		log.Printf("ERROR: get public settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, publicSettingsResponse{
		TenantID:         s.TenantID,
		RestaurantName:   s.RestaurantName,
		Address:          textPtr(s.Address),
		IsActive:         s.IsActive,
		AcceptedModes:    s.AcceptedModes,
		ServiceChargePct: numericToString(s.ServiceChargePct),
		TableCount:       s.TableCount,
		Theme:            textPtr(s.Theme),
	})
}

// Get handles GET /tenants/{tid}/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	s, err := h.store.GetTenantSettings(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "settings not found"})
			return
		}
		log.Printf("ERROR: get settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

// Update handles PUT /tenants/{tid}/settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.AcceptedModes) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one payment mode is required"})
		return
	}
	for _, mode := range req.AcceptedModes {
		if !enum.ValidPaymentMode(mode) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment mode: " + mode})
			return
		}
	}

	pct, err := decimal.NewFromString(req.ServiceChargePct)
	if err != nil || pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "service_charge_pct must be between 0 and 100"})
		return
	}

	if req.TableCount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_count must be >= 0"})
		return
	}

	merchantUpi := pgtype.Text{}
	if req.MerchantUpiID != "" {
		merchantUpi = pgtype.Text{String: req.MerchantUpiID, Valid: true}
	}
	sheetURL := pgtype.Text{}
	if req.MenuSheetURL != "" {
		sheetURL = pgtype.Text{String: req.MenuSheetURL, Valid: true}
	}
	theme := pgtype.Text{}
	if req.Theme != "" {
		theme = pgtype.Text{String: req.Theme, Valid: true}
	}

	s, err := h.store.UpdateTenantSettings(r.Context(), database.UpdateTenantSettingsParams{
		TenantID:            tenantID,
		MerchantUpiID:       merchantUpi,
		AcceptedModes:       req.AcceptedModes,
		ServiceChargePct:    decimalToNumeric(pct),
		TableCount:          req.TableCount,
		MenuSheetURL:        sheetURL,
		Theme:               theme,
		RequireCustomerAuth: req.RequireCustomerAuth,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "settings not found"})
			return
		}
		log.Printf("ERROR: update settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// The next menu request re-reads the (possibly new) sheet.
	h.menus.Invalidate(tenantID)

	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

func toSettingsResponse(s database.TenantSettings) settingsResponse {
	return settingsResponse{
		TenantID:            s.TenantID,
		MerchantUpiID:       textPtr(s.MerchantUpiID),
		AcceptedModes:       s.AcceptedModes,
		ServiceChargePct:    numericToString(s.ServiceChargePct),
		TableCount:          s.TableCount,
		MenuSheetURL:        textPtr(s.MenuSheetURL),
		Theme:               textPtr(s.Theme),
		RequireCustomerAuth: s.RequireCustomerAuth,
	}
}

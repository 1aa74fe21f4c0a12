package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/menu"
)

// MenuStore defines the database methods needed by the menu handler.
type MenuStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	GetTenantSettings(ctx context.Context, tenantID uuid.UUID) (database.TenantSettings, error)
}

// MenuFetcher loads a tenant's menu from its configured sheet.
// Satisfied by *menu.Fetcher.
type MenuFetcher interface {
	Menu(ctx context.Context, tenantID uuid.UUID, sheetURL string) ([]menu.Item, error)
}

// MenuHandler serves the customer-facing menu.
type MenuHandler struct {
	store   MenuStore
	fetcher MenuFetcher
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore, fetcher MenuFetcher) *MenuHandler {
	return &MenuHandler{store: store, fetcher: fetcher}
}

// RegisterRoutes registers the menu endpoint. Mounted at /tenants/{tid}.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.Get)
}

type menuResponse struct {
	Categories []menu.Category `json:"categories"`
}

// Get handles GET /tenants/{tid}/menu.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	if !tenant.IsActive {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "restaurant is not accepting orders"})
		return
	}

	settings, err := h.store.GetTenantSettings(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: get tenant settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.fetcher.Menu(r.Context(), tenantID, settings.MenuSheetURL.String)
	if err != nil {
		if errors.Is(err, menu.ErrNoSheetURL) || errors.Is(err, menu.ErrInvalidSheetURL) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu is not configured"})
			return
		}
		log.Printf("ERROR: fetch menu: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "menu is temporarily unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, menuResponse{Categories: menu.GroupByCategory(items)})
}

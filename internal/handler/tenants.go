package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/service"
)

// TenantStore defines the database methods needed by tenant admin handlers.
type TenantStore interface {
	ListTenants(ctx context.Context) ([]database.Tenant, error)
	CreateTenant(ctx context.Context, arg database.CreateTenantParams) (database.Tenant, error)
	CreateTenantSettings(ctx context.Context, tenantID uuid.UUID) (database.TenantSettings, error)
	SetTenantActive(ctx context.Context, arg database.SetTenantActiveParams) (database.Tenant, error)
}

// NewTenantStore creates a TenantStore from a DBTX (pool or tx).
type NewTenantStore func(db database.DBTX) TenantStore

// TenantHandler handles restaurant onboarding. Universal admin only.
type TenantHandler struct {
	pool     service.TxBeginner
	store    TenantStore
	newStore NewTenantStore
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(pool service.TxBeginner, store TenantStore, newStore NewTenantStore) *TenantHandler {
	return &TenantHandler{pool: pool, store: store, newStore: newStore}
}

// RegisterRoutes registers the tenant collection endpoints. Mounted at
// /tenants; SetActive is wired separately under /tenants/{tid}.
func (h *TenantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
}

// --- Request / Response types ---

type createTenantRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type setTenantActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

type tenantResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Handlers ---

// List returns all tenants, active and suspended.
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.store.ListTenants(r.Context())
	if err != nil {
		log.Printf("ERROR: list tenants: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tenantResponse, len(tenants))
	for i, t := range tenants {
		resp[i] = toTenantResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string][]tenantResponse{"tenants": resp})
}

// Create onboards a restaurant. The tenant row and its default settings row
// are created in one transaction so every tenant always has settings.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	tenant, err := h.createTenantTx(r.Context(), req)
	if err != nil {
		log.Printf("ERROR: create tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

func (h *TenantHandler) createTenantTx(ctx context.Context, req createTenantRequest) (database.Tenant, error) {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return database.Tenant{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := h.newStore(tx)

	tenant, err := store.CreateTenant(ctx, database.CreateTenantParams{
		Name:    req.Name,
		Address: textOrNull(req.Address),
	})
	if err != nil {
		return database.Tenant{}, err
	}

	if _, err := store.CreateTenantSettings(ctx, tenant.ID); err != nil {
		return database.Tenant{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Tenant{}, fmt.Errorf("commit tx: %w", err)
	}
	return tenant, nil
}

// SetActive suspends or reinstates a tenant. Suspended tenants reject all
// customer traffic but keep their data.
func (h *TenantHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req setTenantActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.IsActive == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is_active is required"})
		return
	}

	tenant, err := h.store.SetTenantActive(r.Context(), database.SetTenantActiveParams{
		ID:       tenantID,
		IsActive: *req.IsActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Printf("ERROR: set tenant active: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant))
}

func toTenantResponse(t database.Tenant) tenantResponse {
	return tenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Address:   textPtr(t.Address),
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
	}
}

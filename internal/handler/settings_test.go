package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/handler"
	"github.com/tabletap/api/internal/middleware"
)

type mockSettingsStore struct {
	getSettingsFn    func(ctx context.Context, tenantID uuid.UUID) (database.TenantSettings, error)
	updateSettingsFn func(ctx context.Context, arg database.UpdateTenantSettingsParams) (database.TenantSettings, error)
	getPublicFn      func(ctx context.Context, tenantID uuid.UUID) (database.PublicTenantSettings, error)
}

func (m *mockSettingsStore) GetTenantSettings(ctx context.Context, tenantID uuid.UUID) (database.TenantSettings, error) {
	if m.getSettingsFn != nil {
		return m.getSettingsFn(ctx, tenantID)
	}
	return database.TenantSettings{}, pgx.ErrNoRows
}

func (m *mockSettingsStore) UpdateTenantSettings(ctx context.Context, arg database.UpdateTenantSettingsParams) (database.TenantSettings, error) {
	if m.updateSettingsFn != nil {
		return m.updateSettingsFn(ctx, arg)
	}
	return database.TenantSettings{}, pgx.ErrNoRows
}

func (m *mockSettingsStore) GetPublicTenantSettings(ctx context.Context, tenantID uuid.UUID) (database.PublicTenantSettings, error) {
	if m.getPublicFn != nil {
		return m.getPublicFn(ctx, tenantID)
	}
	return database.PublicTenantSettings{}, pgx.ErrNoRows
}

type mockInvalidator struct {
	invalidated []uuid.UUID
}

func (m *mockInvalidator) Invalidate(tenantID uuid.UUID) {
	m.invalidated = append(m.invalidated, tenantID)
}

func setupSettingsRouter(store *mockSettingsStore, menus *mockInvalidator) *chi.Mux {
	h := handler.NewSettingsHandler(store, menus)
	r := chi.NewRouter()
	r.Route("/tenants/{tid}", func(r chi.Router) {
		h.RegisterPublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(testJWTSecret))
			r.Use(middleware.RequireTenantRole(enum.AdminRoles...))
			h.RegisterStaffRoutes(r)
		})
	})
	return r
}

func TestGetPublicSettings(t *testing.T) {
	tenantID := uuid.New()
	store := &mockSettingsStore{
		getPublicFn: func(ctx context.Context, tid uuid.UUID) (database.PublicTenantSettings, error) {
			return database.PublicTenantSettings{
				TenantID:         tid,
				RestaurantName:   "Test Cafe",
				IsActive:         true,
				AcceptedModes:    []string{"upi", "cash"},
				ServiceChargePct: testNumeric("5.00"),
				TableCount:       12,
			}, nil
		},
	}
	router := setupSettingsRouter(store, &mockInvalidator{})

	rr := doRequest(t, router, "GET", "/tenants/"+tenantID.String()+"/settings/public", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["restaurant_name"] != "Test Cafe" {
		t.Errorf("restaurant_name: got %v", resp["restaurant_name"])
	}
	if resp["service_charge_pct"] != "5.00" {
		t.Errorf("service_charge_pct: got %v", resp["service_charge_pct"])
	}
	// The public projection must never leak payment or sheet config.
	if _, ok := resp["merchant_upi_id"]; ok {
		t.Error("public settings must not include merchant_upi_id")
	}
	if _, ok := resp["menu_sheet_url"]; ok {
		t.Error("public settings must not include menu_sheet_url")
	}
}

func TestGetPublicSettings_NotFound(t *testing.T) {
	router := setupSettingsRouter(&mockSettingsStore{}, &mockInvalidator{})

	rr := doRequest(t, router, "GET", "/tenants/"+uuid.New().String()+"/settings/public", nil)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetSettings(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	store := &mockSettingsStore{
		getSettingsFn: func(ctx context.Context, tid uuid.UUID) (database.TenantSettings, error) {
			return database.TenantSettings{
				TenantID:         tid,
				MerchantUpiID:    pgtype.Text{String: "cafe@upi", Valid: true},
				AcceptedModes:    []string{"upi"},
				ServiceChargePct: testNumeric("5.00"),
				TableCount:       12,
			}, nil
		},
	}
	router := setupSettingsRouter(store, &mockInvalidator{})

	rr := doAuthRequest(t, router, "GET", "/tenants/"+tenantID.String()+"/settings", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["merchant_upi_id"] != "cafe@upi" {
		t.Errorf("merchant_upi_id: got %v", resp["merchant_upi_id"])
	}
}

func TestUpdateSettings(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)
	menus := &mockInvalidator{}

	store := &mockSettingsStore{
		updateSettingsFn: func(ctx context.Context, arg database.UpdateTenantSettingsParams) (database.TenantSettings, error) {
			if arg.TenantID != tenantID {
				t.Errorf("tenant ID: got %v, want %v", arg.TenantID, tenantID)
			}
			if len(arg.AcceptedModes) != 2 {
				t.Errorf("accepted modes: got %v", arg.AcceptedModes)
			}
			if arg.MerchantUpiID.String != "new@upi" {
				t.Errorf("merchant upi: got %v", arg.MerchantUpiID)
			}
			return database.TenantSettings{
				TenantID:         tenantID,
				MerchantUpiID:    arg.MerchantUpiID,
				AcceptedModes:    arg.AcceptedModes,
				ServiceChargePct: arg.ServiceChargePct,
				TableCount:       arg.TableCount,
				MenuSheetURL:     arg.MenuSheetURL,
			}, nil
		},
	}
	router := setupSettingsRouter(store, menus)

	body := map[string]interface{}{
		"merchant_upi_id":    "new@upi",
		"accepted_modes":     []string{"upi", "cash"},
		"service_charge_pct": "7.50",
		"table_count":        15,
		"menu_sheet_url":     "https://docs.google.com/spreadsheets/d/xyz/edit",
	}
	rr := doAuthRequest(t, router, "PUT", "/tenants/"+tenantID.String()+"/settings", body, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(menus.invalidated) != 1 || menus.invalidated[0] != tenantID {
		t.Errorf("menu cache should be invalidated for %v, got %v", tenantID, menus.invalidated)
	}
}

func TestUpdateSettings_Validation(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"no modes", map[string]interface{}{
			"accepted_modes": []string{}, "service_charge_pct": "5.00",
		}},
		{"bad mode", map[string]interface{}{
			"accepted_modes": []string{"crypto"}, "service_charge_pct": "5.00",
		}},
		{"negative pct", map[string]interface{}{
			"accepted_modes": []string{"upi"}, "service_charge_pct": "-1",
		}},
		{"pct over 100", map[string]interface{}{
			"accepted_modes": []string{"upi"}, "service_charge_pct": "101",
		}},
		{"pct not a number", map[string]interface{}{
			"accepted_modes": []string{"upi"}, "service_charge_pct": "five",
		}},
		{"negative table count", map[string]interface{}{
			"accepted_modes": []string{"upi"}, "service_charge_pct": "5.00", "table_count": -1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockSettingsStore{
				updateSettingsFn: func(ctx context.Context, arg database.UpdateTenantSettingsParams) (database.TenantSettings, error) {
					t.Fatal("store should not be called")
					return database.TenantSettings{}, nil
				},
			}
			router := setupSettingsRouter(store, &mockInvalidator{})
			rr := doAuthRequest(t, router, "PUT", "/tenants/"+tenantID.String()+"/settings", tt.body, claims)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
		})
	}
}

func TestUpdateSettings_ChefForbidden(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleChef)
	router := setupSettingsRouter(&mockSettingsStore{}, &mockInvalidator{})

	body := map[string]interface{}{"accepted_modes": []string{"upi"}, "service_charge_pct": "5.00"}
	rr := doAuthRequest(t, router, "PUT", "/tenants/"+tenantID.String()+"/settings", body, claims)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

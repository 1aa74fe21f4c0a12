package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/handler"
	"github.com/tabletap/api/internal/middleware"
)

type mockTableStore struct {
	getTenantFn      func(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	listTablesFn     func(ctx context.Context, tenantID uuid.UUID) ([]database.RestaurantTable, error)
	createTableFn    func(ctx context.Context, arg database.CreateTableParams) (database.RestaurantTable, error)
	setTableActiveFn func(ctx context.Context, arg database.SetTableActiveParams) (database.RestaurantTable, error)
}

func (m *mockTableStore) GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error) {
	if m.getTenantFn != nil {
		return m.getTenantFn(ctx, id)
	}
	return database.Tenant{ID: id, Name: "Test Cafe", IsActive: true}, nil
}

func (m *mockTableStore) ListTables(ctx context.Context, tenantID uuid.UUID) ([]database.RestaurantTable, error) {
	if m.listTablesFn != nil {
		return m.listTablesFn(ctx, tenantID)
	}
	return []database.RestaurantTable{}, nil
}

func (m *mockTableStore) CreateTable(ctx context.Context, arg database.CreateTableParams) (database.RestaurantTable, error) {
	if m.createTableFn != nil {
		return m.createTableFn(ctx, arg)
	}
	return database.RestaurantTable{}, pgx.ErrNoRows
}

func (m *mockTableStore) SetTableActive(ctx context.Context, arg database.SetTableActiveParams) (database.RestaurantTable, error) {
	if m.setTableActiveFn != nil {
		return m.setTableActiveFn(ctx, arg)
	}
	return database.RestaurantTable{}, pgx.ErrNoRows
}

func setupTableRouter(store *mockTableStore) *chi.Mux {
	h := handler.NewTableHandler(store, "https://order.tabletap.test")
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Use(middleware.RequireTenantRole(enum.AdminRoles...))
		r.Route("/tenants/{tid}/tables", h.RegisterRoutes)
	})
	return r
}

func TestListTables(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	store := &mockTableStore{
		listTablesFn: func(ctx context.Context, tid uuid.UUID) ([]database.RestaurantTable, error) {
			return []database.RestaurantTable{
				{ID: uuid.New(), TenantID: tid, TableNumber: 1, IsActive: true},
				{ID: uuid.New(), TenantID: tid, TableNumber: 2, IsActive: false},
			}, nil
		},
	}
	router := setupTableRouter(store)

	rr := doAuthRequest(t, router, "GET", "/tenants/"+tenantID.String()+"/tables", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	tables := resp["tables"].([]interface{})
	if len(tables) != 2 {
		t.Fatalf("tables: got %d, want 2", len(tables))
	}
}

func TestCreateTable(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	store := &mockTableStore{
		createTableFn: func(ctx context.Context, arg database.CreateTableParams) (database.RestaurantTable, error) {
			if arg.TableNumber != 9 {
				t.Errorf("table number: got %d, want 9", arg.TableNumber)
			}
			return database.RestaurantTable{ID: uuid.New(), TenantID: arg.TenantID, TableNumber: arg.TableNumber, IsActive: true}, nil
		},
	}
	router := setupTableRouter(store)

	rr := doAuthRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/tables", map[string]int{"table_number": 9}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestCreateTable_Duplicate(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	store := &mockTableStore{
		createTableFn: func(ctx context.Context, arg database.CreateTableParams) (database.RestaurantTable, error) {
			return database.RestaurantTable{}, &pgconn.PgError{Code: "23505"}
		},
	}
	router := setupTableRouter(store)

	rr := doAuthRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/tables", map[string]int{"table_number": 9}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCreateTable_InvalidNumber(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)
	router := setupTableRouter(&mockTableStore{})

	rr := doAuthRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/tables", map[string]int{"table_number": 0}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSetTableActive(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	store := &mockTableStore{
		setTableActiveFn: func(ctx context.Context, arg database.SetTableActiveParams) (database.RestaurantTable, error) {
			if arg.TableNumber != 3 || arg.IsActive {
				t.Errorf("params: got %+v", arg)
			}
			return database.RestaurantTable{ID: uuid.New(), TenantID: arg.TenantID, TableNumber: arg.TableNumber, IsActive: arg.IsActive}, nil
		},
	}
	router := setupTableRouter(store)

	rr := doAuthRequest(t, router, "PATCH", "/tenants/"+tenantID.String()+"/tables/3", map[string]bool{"is_active": false}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestSetTableActive_NotFound(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)
	router := setupTableRouter(&mockTableStore{})

	rr := doAuthRequest(t, router, "PATCH", "/tenants/"+tenantID.String()+"/tables/99", map[string]bool{"is_active": true}, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestTableQRCodes(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	store := &mockTableStore{
		listTablesFn: func(ctx context.Context, tid uuid.UUID) ([]database.RestaurantTable, error) {
			return []database.RestaurantTable{
				{ID: uuid.New(), TenantID: tid, TableNumber: 1, IsActive: true},
				{ID: uuid.New(), TenantID: tid, TableNumber: 2, IsActive: false},
			}, nil
		},
	}
	router := setupTableRouter(store)

	rr := doAuthRequest(t, router, "GET", "/tenants/"+tenantID.String()+"/tables/qr-codes", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Table 1") {
		t.Error("page should contain the active table")
	}
	if strings.Contains(body, "Table 2") {
		t.Error("page should not contain inactive tables")
	}
	if !strings.Contains(body, "api.qrserver.com") {
		t.Error("posters should embed QR image URLs")
	}
}

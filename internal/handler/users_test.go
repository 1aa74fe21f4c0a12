package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/handler"
	"github.com/tabletap/api/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

// mockTx implements pgx.Tx with only the methods the handlers use.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = true
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

type mockPool struct {
	tx *mockTx
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.tx == nil {
		m.tx = &mockTx{}
	}
	return m.tx, nil
}

type mockUserStore struct {
	listStaffFn      func(ctx context.Context, tenantID uuid.UUID) ([]database.StaffMember, error)
	createUserFn     func(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	createUserRoleFn func(ctx context.Context, arg database.CreateUserRoleParams) (database.UserRole, error)
	deleteStaffFn    func(ctx context.Context, arg database.DeleteStaffParams) error
}

func (m *mockUserStore) ListStaffByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.StaffMember, error) {
	if m.listStaffFn != nil {
		return m.listStaffFn(ctx, tenantID)
	}
	return []database.StaffMember{}, nil
}

func (m *mockUserStore) CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, arg)
	}
	return database.User{
		ID:             uuid.New(),
		Email:          arg.Email,
		HashedPassword: arg.HashedPassword,
		FullName:       arg.FullName,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}, nil
}

func (m *mockUserStore) CreateUserRole(ctx context.Context, arg database.CreateUserRoleParams) (database.UserRole, error) {
	if m.createUserRoleFn != nil {
		return m.createUserRoleFn(ctx, arg)
	}
	return database.UserRole{ID: uuid.New(), UserID: arg.UserID, TenantID: arg.TenantID, Role: arg.Role}, nil
}

func (m *mockUserStore) DeleteStaff(ctx context.Context, arg database.DeleteStaffParams) error {
	if m.deleteStaffFn != nil {
		return m.deleteStaffFn(ctx, arg)
	}
	return pgx.ErrNoRows
}

func setupUserRouter(pool *mockPool, store *mockUserStore) *chi.Mux {
	newStore := func(db database.DBTX) handler.UserStore { return store }
	h := handler.NewUserHandler(pool, store, newStore)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Use(middleware.RequireTenantRole(enum.AdminRoles...))
		r.Route("/tenants/{tid}/users", h.RegisterRoutes)
	})
	return r
}

func TestListStaff(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	store := &mockUserStore{
		listStaffFn: func(ctx context.Context, tid uuid.UUID) ([]database.StaffMember, error) {
			return []database.StaffMember{
				{
					User: database.User{ID: uuid.New(), Email: "chef@cafe.test", FullName: "Chef One", IsActive: true},
					Role: database.UserRole{Role: enum.RoleChef},
				},
			}, nil
		},
	}
	router := setupUserRouter(&mockPool{}, store)

	rr := doAuthRequest(t, router, "GET", "/tenants/"+tenantID.String()+"/users", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	users := resp["users"].([]interface{})
	if len(users) != 1 {
		t.Fatalf("users: got %d, want 1", len(users))
	}
	u := users[0].(map[string]interface{})
	if u["role"] != enum.RoleChef {
		t.Errorf("role: got %v, want chef", u["role"])
	}
}

func TestCreateStaff(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)
	pool := &mockPool{}

	store := &mockUserStore{
		createUserFn: func(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
			if arg.Email != "waiter@cafe.test" {
				t.Errorf("email: got %s", arg.Email)
			}
			// The handler must store a bcrypt hash, never the raw password.
			if err := bcrypt.CompareHashAndPassword([]byte(arg.HashedPassword), []byte("super-secret")); err != nil {
				t.Errorf("hashed password does not match: %v", err)
			}
			return database.User{ID: uuid.New(), Email: arg.Email, FullName: arg.FullName, IsActive: true, CreatedAt: time.Now()}, nil
		},
		createUserRoleFn: func(ctx context.Context, arg database.CreateUserRoleParams) (database.UserRole, error) {
			if !arg.TenantID.Valid || uuid.UUID(arg.TenantID.Bytes) != tenantID {
				t.Errorf("role tenant: got %v, want %v", arg.TenantID, tenantID)
			}
			if arg.Role != enum.RoleWaiter {
				t.Errorf("role: got %s, want waiter", arg.Role)
			}
			return database.UserRole{ID: uuid.New(), UserID: arg.UserID, TenantID: arg.TenantID, Role: arg.Role}, nil
		},
	}
	router := setupUserRouter(pool, store)

	body := map[string]string{
		"email":     "waiter@cafe.test",
		"password":  "super-secret",
		"full_name": "Waiter One",
		"role":      "waiter",
	}
	rr := doAuthRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/users", body, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if pool.tx == nil || !pool.tx.committed {
		t.Error("user and role creation should be committed in a transaction")
	}
}

func TestCreateStaff_RoleFailureRollsBack(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)
	pool := &mockPool{}

	store := &mockUserStore{
		createUserRoleFn: func(ctx context.Context, arg database.CreateUserRoleParams) (database.UserRole, error) {
			return database.UserRole{}, pgx.ErrTxClosed
		},
	}
	router := setupUserRouter(pool, store)

	body := map[string]string{
		"email": "waiter@cafe.test", "password": "super-secret",
		"full_name": "Waiter One", "role": "waiter",
	}
	rr := doAuthRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/users", body, claims)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if pool.tx.committed {
		t.Error("transaction should not be committed when role creation fails")
	}
}

func TestCreateStaff_Validation(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing fields", map[string]string{"email": "a@b.c"}},
		{"bad email", map[string]string{"email": "not-an-email", "password": "super-secret", "full_name": "X", "role": "chef"}},
		{"short password", map[string]string{"email": "a@b.c", "password": "short", "full_name": "X", "role": "chef"}},
		{"bad role", map[string]string{"email": "a@b.c", "password": "super-secret", "full_name": "X", "role": "owner"}},
		{"universal admin role", map[string]string{"email": "a@b.c", "password": "super-secret", "full_name": "X", "role": "universal_admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockUserStore{
				createUserFn: func(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
					t.Fatal("store should not be called")
					return database.User{}, nil
				},
			}
			router := setupUserRouter(&mockPool{}, store)
			rr := doAuthRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/users", tt.body, claims)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
		})
	}
}

func TestCreateStaff_DuplicateEmail(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	store := &mockUserStore{
		createUserFn: func(ctx context.Context, arg database.CreateUserParams) (database.User, error) {
			return database.User{}, &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		},
	}
	router := setupUserRouter(&mockPool{}, store)

	body := map[string]string{
		"email": "dup@cafe.test", "password": "super-secret",
		"full_name": "Dup", "role": "chef",
	}
	rr := doAuthRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/users", body, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestDeleteStaff(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)

	store := &mockUserStore{
		deleteStaffFn: func(ctx context.Context, arg database.DeleteStaffParams) error {
			if arg.UserID != userID || arg.TenantID != tenantID {
				t.Errorf("params: got %+v", arg)
			}
			return nil
		},
	}
	router := setupUserRouter(&mockPool{}, store)

	rr := doAuthRequest(t, router, "DELETE", "/tenants/"+tenantID.String()+"/users/"+userID.String(), nil, claims)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}
}

func TestDeleteStaff_NotFound(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleTenantAdmin)
	router := setupUserRouter(&mockPool{}, &mockUserStore{})

	rr := doAuthRequest(t, router, "DELETE", "/tenants/"+tenantID.String()+"/users/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestStaffRoutes_ManagerAllowed(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleManager)
	router := setupUserRouter(&mockPool{}, &mockUserStore{})

	rr := doAuthRequest(t, router, "GET", "/tenants/"+tenantID.String()+"/users", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestStaffRoutes_ChefForbidden(t *testing.T) {
	tenantID := uuid.New()
	claims := testClaims(tenantID, enum.RoleChef)
	router := setupUserRouter(&mockPool{}, &mockUserStore{})

	rr := doAuthRequest(t, router, "GET", "/tenants/"+tenantID.String()+"/users", nil, claims)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

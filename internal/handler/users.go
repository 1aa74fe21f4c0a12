package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// UserStore defines the database methods needed by staff user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListStaffByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.StaffMember, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	CreateUserRole(ctx context.Context, arg database.CreateUserRoleParams) (database.UserRole, error)
	DeleteStaff(ctx context.Context, arg database.DeleteStaffParams) error
}

// NewUserStore creates a UserStore from a DBTX (pool or tx).
type NewUserStore func(db database.DBTX) UserStore

// UserHandler handles staff account management for a tenant.
type UserHandler struct {
	pool     service.TxBeginner
	store    UserStore
	newStore NewUserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(pool service.TxBeginner, store UserStore, newStore NewUserStore) *UserHandler {
	return &UserHandler{pool: pool, store: store, newStore: newStore}
}

// RegisterRoutes registers staff endpoints. Mounted at /tenants/{tid}/users.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createStaffRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type staffResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Handlers ---

// List returns the staff roster for the tenant.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	staff, err := h.store.ListStaffByTenant(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list staff: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]staffResponse, len(staff))
	for i, m := range staff {
		resp[i] = staffResponse{
			ID:        m.User.ID,
			Email:     m.User.Email,
			FullName:  m.User.FullName,
			Role:      m.Role.Role,
			IsActive:  m.User.IsActive,
			CreatedAt: m.User.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string][]staffResponse{"users": resp})
}

// Create adds a staff account and its tenant role in one transaction, so a
// failed role insert never leaves an orphaned login.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" || req.Role == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email, password, full_name, and role are required"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email format"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}
	if !enum.ValidStaffRole(req.Role) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: create staff: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, role, err := h.createStaffTx(r.Context(), tenantID, req, string(hashed))
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already exists"})
			return
		}
		log.Printf("ERROR: create staff: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, staffResponse{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      role.Role,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	})
}

func (h *UserHandler) createStaffTx(ctx context.Context, tenantID uuid.UUID, req createStaffRequest, hashed string) (database.User, database.UserRole, error) {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return database.User{}, database.UserRole{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := h.newStore(tx)

	user, err := store.CreateUser(ctx, database.CreateUserParams{
		Email:          req.Email,
		HashedPassword: hashed,
		FullName:       req.FullName,
	})
	if err != nil {
		return database.User{}, database.UserRole{}, err
	}

	role, err := store.CreateUserRole(ctx, database.CreateUserRoleParams{
		UserID:   user.ID,
		TenantID: pgtype.UUID{Bytes: tenantID, Valid: true},
		Role:     req.Role,
	})
	if err != nil {
		return database.User{}, database.UserRole{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.User{}, database.UserRole{}, fmt.Errorf("commit tx: %w", err)
	}
	return user, role, nil
}

// Delete removes a user's role in this tenant, deactivating the account if
// it was their last role.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
		return
	}

	if err := h.store.DeleteStaff(r.Context(), database.DeleteStaffParams{
		UserID:   userID,
		TenantID: tenantID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: delete staff: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

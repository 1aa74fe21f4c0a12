package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, hashed_password, full_name, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

type CreateUserParams struct {
	Email          string
	HashedPassword string
	FullName       string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, full_name)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		arg.Email, arg.HashedPassword, arg.FullName)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE email = $1 AND is_active = true`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE id = $1 AND is_active = true`, id)
	return scanUser(row)
}

const roleColumns = `id, user_id, tenant_id, role, created_at`

func scanUserRole(row interface{ Scan(dest ...any) error }) (UserRole, error) {
	var r UserRole
	err := row.Scan(&r.ID, &r.UserID, &r.TenantID, &r.Role, &r.CreatedAt)
	return r, err
}

type CreateUserRoleParams struct {
	UserID   uuid.UUID
	TenantID pgtype.UUID // invalid = universal admin
	Role     string
}

func (q *Queries) CreateUserRole(ctx context.Context, arg CreateUserRoleParams) (UserRole, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO user_roles (user_id, tenant_id, role)
		VALUES ($1, $2, $3)
		RETURNING `+roleColumns,
		arg.UserID, arg.TenantID, arg.Role)
	return scanUserRole(row)
}

// GetPrimaryRole returns the user's oldest role row; it is the role a login
// session is issued for.
func (q *Queries) GetPrimaryRole(ctx context.Context, userID uuid.UUID) (UserRole, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+roleColumns+` FROM user_roles
		WHERE user_id = $1
		ORDER BY created_at
		LIMIT 1`, userID)
	return scanUserRole(row)
}

// StaffMember is a user joined with their role row for one tenant.
type StaffMember struct {
	User User
	Role UserRole
}

func (q *Queries) ListStaffByTenant(ctx context.Context, tenantID uuid.UUID) ([]StaffMember, error) {
	rows, err := q.db.Query(ctx, `
		SELECT u.id, u.email, u.hashed_password, u.full_name, u.is_active, u.created_at, u.updated_at,
		       r.id, r.user_id, r.tenant_id, r.role, r.created_at
		FROM users u
		JOIN user_roles r ON r.user_id = u.id
		WHERE r.tenant_id = $1
		ORDER BY u.created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []StaffMember
	for rows.Next() {
		var m StaffMember
		if err := rows.Scan(
			&m.User.ID, &m.User.Email, &m.User.HashedPassword, &m.User.FullName,
			&m.User.IsActive, &m.User.CreatedAt, &m.User.UpdatedAt,
			&m.Role.ID, &m.Role.UserID, &m.Role.TenantID, &m.Role.Role, &m.Role.CreatedAt,
		); err != nil {
			return nil, err
		}
		staff = append(staff, m)
	}
	return staff, rows.Err()
}

type DeleteStaffParams struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
}

// DeleteStaff removes a user's role within a tenant and deactivates the
// account when no roles remain.
func (q *Queries) DeleteStaff(ctx context.Context, arg DeleteStaffParams) error {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM user_roles WHERE user_id = $1 AND tenant_id = $2`,
		arg.UserID, arg.TenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	_, err = q.db.Exec(ctx, `
		UPDATE users SET is_active = false, updated_at = now()
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1)`,
		arg.UserID)
	return err
}

package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tenantColumns = `id, name, address, is_active, created_at, updated_at`

func scanTenant(row interface{ Scan(dest ...any) error }) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Address, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type CreateTenantParams struct {
	Name    string
	Address pgtype.Text
}

func (q *Queries) CreateTenant(ctx context.Context, arg CreateTenantParams) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO tenants (name, address)
		VALUES ($1, $2)
		RETURNING `+tenantColumns,
		arg.Name, arg.Address)
	return scanTenant(row)
}

func (q *Queries) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (q *Queries) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

type SetTenantActiveParams struct {
	ID       uuid.UUID
	IsActive bool
}

func (q *Queries) SetTenantActive(ctx context.Context, arg SetTenantActiveParams) (Tenant, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE tenants SET is_active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+tenantColumns,
		arg.ID, arg.IsActive)
	return scanTenant(row)
}

const settingsColumns = `tenant_id, merchant_upi_id, accepted_modes, service_charge_pct,
	table_count, menu_sheet_url, theme, require_customer_auth, updated_at`

func scanSettings(row interface{ Scan(dest ...any) error }) (TenantSettings, error) {
	var s TenantSettings
	err := row.Scan(&s.TenantID, &s.MerchantUpiID, &s.AcceptedModes, &s.ServiceChargePct,
		&s.TableCount, &s.MenuSheetURL, &s.Theme, &s.RequireCustomerAuth, &s.UpdatedAt)
	return s, err
}

// CreateTenantSettings inserts the default settings row for a new tenant.
func (q *Queries) CreateTenantSettings(ctx context.Context, tenantID uuid.UUID) (TenantSettings, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO tenant_settings (tenant_id)
		VALUES ($1)
		RETURNING `+settingsColumns,
		tenantID)
	return scanSettings(row)
}

func (q *Queries) GetTenantSettings(ctx context.Context, tenantID uuid.UUID) (TenantSettings, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+settingsColumns+` FROM tenant_settings WHERE tenant_id = $1`, tenantID)
	return scanSettings(row)
}

type UpdateTenantSettingsParams struct {
	TenantID            uuid.UUID
	MerchantUpiID       pgtype.Text
	AcceptedModes       []string
	ServiceChargePct    pgtype.Numeric
	TableCount          int32
	MenuSheetURL        pgtype.Text
	Theme               pgtype.Text
	RequireCustomerAuth bool
}

func (q *Queries) UpdateTenantSettings(ctx context.Context, arg UpdateTenantSettingsParams) (TenantSettings, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE tenant_settings
		SET merchant_upi_id = $2,
		    accepted_modes = $3,
		    service_charge_pct = $4,
		    table_count = $5,
		    menu_sheet_url = $6,
		    theme = $7,
		    require_customer_auth = $8,
		    updated_at = now()
		WHERE tenant_id = $1
		RETURNING `+settingsColumns,
		arg.TenantID, arg.MerchantUpiID, arg.AcceptedModes, arg.ServiceChargePct,
		arg.TableCount, arg.MenuSheetURL, arg.Theme, arg.RequireCustomerAuth)
	return scanSettings(row)
}

// GetPublicTenantSettings joins tenants and tenant_settings into the
// guest-facing projection. Sensitive columns (merchant UPI id, sheet URL)
// are deliberately not selected.
func (q *Queries) GetPublicTenantSettings(ctx context.Context, tenantID uuid.UUID) (PublicTenantSettings, error) {
	var s PublicTenantSettings
	err := q.db.QueryRow(ctx, `
		SELECT t.id, t.name, t.address, t.is_active,
		       s.accepted_modes, s.service_charge_pct, s.table_count, s.theme
		FROM tenants t
		JOIN tenant_settings s ON s.tenant_id = t.id
		WHERE t.id = $1`, tenantID).
		Scan(&s.TenantID, &s.RestaurantName, &s.Address, &s.IsActive,
			&s.AcceptedModes, &s.ServiceChargePct, &s.TableCount, &s.Theme)
	return s, err
}

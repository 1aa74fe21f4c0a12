package database

import (
	"context"

	"github.com/google/uuid"
)

const tableColumns = `id, tenant_id, table_number, is_active, created_at`

func scanTable(row interface{ Scan(dest ...any) error }) (RestaurantTable, error) {
	var t RestaurantTable
	err := row.Scan(&t.ID, &t.TenantID, &t.TableNumber, &t.IsActive, &t.CreatedAt)
	return t, err
}

func (q *Queries) ListTables(ctx context.Context, tenantID uuid.UUID) ([]RestaurantTable, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+tableColumns+` FROM restaurant_tables
		WHERE tenant_id = $1
		ORDER BY table_number`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []RestaurantTable
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

type CreateTableParams struct {
	TenantID    uuid.UUID
	TableNumber int32
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (RestaurantTable, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO restaurant_tables (tenant_id, table_number)
		VALUES ($1, $2)
		RETURNING `+tableColumns,
		arg.TenantID, arg.TableNumber)
	return scanTable(row)
}

type GetTableParams struct {
	TenantID    uuid.UUID
	TableNumber int32
}

// GetTable looks up a table by its per-tenant number, the identifier a QR
// code carries.
func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (RestaurantTable, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+tableColumns+` FROM restaurant_tables
		WHERE tenant_id = $1 AND table_number = $2`,
		arg.TenantID, arg.TableNumber)
	return scanTable(row)
}

type SetTableActiveParams struct {
	TenantID    uuid.UUID
	TableNumber int32
	IsActive    bool
}

func (q *Queries) SetTableActive(ctx context.Context, arg SetTableActiveParams) (RestaurantTable, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE restaurant_tables SET is_active = $3
		WHERE tenant_id = $1 AND table_number = $2
		RETURNING `+tableColumns,
		arg.TenantID, arg.TableNumber, arg.IsActive)
	return scanTable(row)
}

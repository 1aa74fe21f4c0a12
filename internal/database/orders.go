package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tenant_id, order_number, order_id, table_number, items_json,
	subtotal, service_charge_pct, service_charge_amount, total,
	status, payment_status, payment_claimed, payment_mode,
	upi_url, qr_url, bill_downloaded, cook_name,
	customer_name, customer_email, customer_phone,
	created_at, accepted_at, completed_at, paid_at, claimed_at,
	last_updated_by, last_updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TenantID, &o.OrderNumber, &o.OrderID, &o.TableNumber, &o.ItemsJSON,
		&o.Subtotal, &o.ServiceChargePct, &o.ServiceChargeAmount, &o.Total,
		&o.Status, &o.PaymentStatus, &o.PaymentClaimed, &o.PaymentMode,
		&o.UpiURL, &o.QrURL, &o.BillDownloaded, &o.CookName,
		&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.CreatedAt, &o.AcceptedAt, &o.CompletedAt, &o.PaidAt, &o.ClaimedAt,
		&o.LastUpdatedBy, &o.LastUpdatedAt,
	)
	return o, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// NextOrderNumber returns the next sequential order number for a tenant.
// MAX-based, so two concurrent placements can observe the same value; the
// unique (tenant_id, order_number) constraint catches the loser and the
// service retries.
func (q *Queries) NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders WHERE tenant_id = $1`,
		tenantID).Scan(&n)
	return n, err
}

type CreateOrderParams struct {
	TenantID            uuid.UUID
	OrderNumber         int32
	OrderID             string
	TableNumber         int32
	ItemsJSON           []byte
	Subtotal            pgtype.Numeric
	ServiceChargePct    pgtype.Numeric
	ServiceChargeAmount pgtype.Numeric
	Total               pgtype.Numeric
	Status              string
	PaymentStatus       string
	PaymentMode         string
	UpiURL              pgtype.Text
	QrURL               pgtype.Text
	PaidAt              pgtype.Timestamptz
	CustomerName        pgtype.Text
	CustomerEmail       pgtype.Text
	CustomerPhone       pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (
			tenant_id, order_number, order_id, table_number, items_json,
			subtotal, service_charge_pct, service_charge_amount, total,
			status, payment_status, payment_mode,
			upi_url, qr_url, paid_at,
			customer_name, customer_email, customer_phone
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15,
			$16, $17, $18
		)
		RETURNING `+orderColumns,
		arg.TenantID, arg.OrderNumber, arg.OrderID, arg.TableNumber, arg.ItemsJSON,
		arg.Subtotal, arg.ServiceChargePct, arg.ServiceChargeAmount, arg.Total,
		arg.Status, arg.PaymentStatus, arg.PaymentMode,
		arg.UpiURL, arg.QrURL, arg.PaidAt,
		arg.CustomerName, arg.CustomerEmail, arg.CustomerPhone)
	return scanOrder(row)
}

type GetOrderParams struct {
	TenantID uuid.UUID
	OrderID  string
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND order_id = $2`,
		arg.TenantID, arg.OrderID)
	return scanOrder(row)
}

type ListStaffOrdersParams struct {
	TenantID uuid.UUID
	Since    time.Time   // completed/rejected orders updated before this are omitted
	Status   pgtype.Text // optional status filter
}

// ListStaffOrders returns the kitchen dashboard view: everything in flight,
// plus completed/rejected orders still inside the auto-expiry window.
func (q *Queries) ListStaffOrders(ctx context.Context, arg ListStaffOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1
		  AND (status NOT IN ('completed', 'rejected') OR last_updated_at >= $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC`,
		arg.TenantID, arg.Since, arg.Status)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

type ListTableOrdersParams struct {
	TenantID    uuid.UUID
	TableNumber int32
	Since       time.Time
}

// ListTableOrders returns the customer track view for one table, with the
// same auto-expiry window as the staff list.
func (q *Queries) ListTableOrders(ctx context.Context, arg ListTableOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND table_number = $2
		  AND (status NOT IN ('completed', 'rejected') OR last_updated_at >= $3)
		ORDER BY created_at DESC`,
		arg.TenantID, arg.TableNumber, arg.Since)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

type UpdateOrderStatusParams struct {
	TenantID  uuid.UUID
	OrderID   string
	NewStatus string
	OldStatus string // conditional: zero rows means a concurrent transition won
	MarkPaid  bool
	CookName  pgtype.Text
	StaffID   pgtype.UUID
}

// UpdateOrderStatus advances the lifecycle in a single conditional statement.
// Timestamps follow the status reached: accepted_at on accept, completed_at
// on completion, paid_at when MarkPaid confirms a claimed payment.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $3,
		    accepted_at = CASE WHEN $3 = 'accepted' THEN now() ELSE accepted_at END,
		    completed_at = CASE WHEN $3 = 'completed' THEN now() ELSE completed_at END,
		    cook_name = COALESCE($5, cook_name),
		    payment_status = CASE WHEN $6 THEN 'paid' ELSE payment_status END,
		    paid_at = CASE WHEN $6 AND payment_status <> 'paid' THEN now() ELSE paid_at END,
		    last_updated_by = $7,
		    last_updated_at = now()
		WHERE tenant_id = $1 AND order_id = $2 AND status = $4
		RETURNING `+orderColumns,
		arg.TenantID, arg.OrderID, arg.NewStatus, arg.OldStatus,
		arg.CookName, arg.MarkPaid, arg.StaffID)
	return scanOrder(row)
}

type ClaimPaymentParams struct {
	TenantID uuid.UUID
	OrderID  string
}

// ClaimPayment records the customer's I-have-paid claim on a UPI order. It
// never touches payment_status; only staff confirmation does that.
func (q *Queries) ClaimPayment(ctx context.Context, arg ClaimPaymentParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET payment_claimed = true,
		    claimed_at = COALESCE(claimed_at, now()),
		    last_updated_at = now()
		WHERE tenant_id = $1 AND order_id = $2 AND payment_mode = 'upi'
		RETURNING `+orderColumns,
		arg.TenantID, arg.OrderID)
	return scanOrder(row)
}

type UpdatePaymentStatusParams struct {
	TenantID  uuid.UUID
	OrderID   string
	NewStatus string
	OldStatus string
	StaffID   pgtype.UUID
}

func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET payment_status = $3,
		    paid_at = CASE WHEN $3 = 'paid' THEN now() ELSE paid_at END,
		    last_updated_by = $5,
		    last_updated_at = now()
		WHERE tenant_id = $1 AND order_id = $2 AND payment_status = $4
		RETURNING `+orderColumns,
		arg.TenantID, arg.OrderID, arg.NewStatus, arg.OldStatus, arg.StaffID)
	return scanOrder(row)
}

type DeletePendingOrderParams struct {
	TenantID    uuid.UUID
	TableNumber int32
	OrderID     string
}

// DeletePendingOrder is the customer cancel path. The status check and the
// delete are one atomic statement, so a concurrent staff accept cannot race
// past it: zero rows affected means the order is gone or no longer pending.
func (q *Queries) DeletePendingOrder(ctx context.Context, arg DeletePendingOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		DELETE FROM orders
		WHERE tenant_id = $1 AND table_number = $2 AND order_id = $3
		  AND status = 'pending'
		RETURNING `+orderColumns,
		arg.TenantID, arg.TableNumber, arg.OrderID)
	return scanOrder(row)
}

type MarkBillDownloadedParams struct {
	TenantID uuid.UUID
	OrderID  string
}

func (q *Queries) MarkBillDownloaded(ctx context.Context, arg MarkBillDownloadedParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE orders SET bill_downloaded = true
		WHERE tenant_id = $1 AND order_id = $2`,
		arg.TenantID, arg.OrderID)
	return err
}

type ListOrdersBetweenParams struct {
	TenantID uuid.UUID
	Start    time.Time
	End      time.Time
}

// ListOrdersBetween feeds the CSV export.
func (q *Queries) ListOrdersBetween(ctx context.Context, arg ListOrdersBetweenParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`,
		arg.TenantID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabletap/api/internal/billing"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/payment"
)

const maxOrderNumberRetries = 3

// Completed and rejected orders fall off the live lists after this long.
const autoExpiryWindow = 10 * time.Minute

// Errors returned by the order service.
var (
	ErrEmptyItems         = errors.New("items are required")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidPrice       = errors.New("invalid item price")
	ErrInvalidPaymentMode = errors.New("invalid payment_mode")
	ErrModeNotAccepted    = errors.New("payment mode not accepted by this restaurant")
	ErrCustomerRequired   = errors.New("customer details are required")
	ErrTenantNotFound     = errors.New("restaurant not found")
	ErrTenantInactive     = errors.New("restaurant is not accepting orders")
	ErrTableNotFound      = errors.New("table not found")
	ErrTableInactive      = errors.New("table is not active")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrPaymentRequired    = errors.New("order must be paid before it can advance")
	ErrConcurrentUpdate   = errors.New("order was updated by someone else")
	ErrNotCancellable     = errors.New("order can no longer be cancelled")
	ErrNotClaimable       = errors.New("payment claims apply to UPI orders only")
)

// allowedTransitions maps each order status to the statuses staff may move
// it to. Completed and rejected are terminal.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPending:  {enum.OrderStatusAccepted, enum.OrderStatusRejected},
	enum.OrderStatusAccepted: {enum.OrderStatusCooking, enum.OrderStatusRejected},
	enum.OrderStatusCooking:  {enum.OrderStatusCompleted},
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	GetTenantSettings(ctx context.Context, tenantID uuid.UUID) (database.TenantSettings, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.RestaurantTable, error)
	NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListStaffOrders(ctx context.Context, arg database.ListStaffOrdersParams) ([]database.Order, error)
	ListTableOrders(ctx context.Context, arg database.ListTableOrdersParams) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	ClaimPayment(ctx context.Context, arg database.ClaimPaymentParams) (database.Order, error)
	UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Order, error)
	DeletePendingOrder(ctx context.Context, arg database.DeletePendingOrderParams) (database.Order, error)
	MarkBillDownloaded(ctx context.Context, arg database.MarkBillDownloadedParams) error
	ListOrdersBetween(ctx context.Context, arg database.ListOrdersBetweenParams) ([]database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// Broadcaster pushes order changes to connected clients. Implemented by the
// websocket hub; a nil Broadcaster disables realtime updates.
type Broadcaster interface {
	OrderUpserted(order database.Order)
	OrderRemoved(tenantID uuid.UUID, tableNumber int32, orderID string)
}

// PlaceOrderItem is a single cart line.
type PlaceOrderItem struct {
	ItemID   string
	Name     string
	Price    string
	Quantity int32
	Veg      bool
}

// PlaceOrderRequest is the validated input for placing an order.
type PlaceOrderRequest struct {
	TenantID      uuid.UUID
	TableNumber   int32
	PaymentMode   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Items         []PlaceOrderItem
}

// UpdateStatusRequest is a staff-side lifecycle transition.
type UpdateStatusRequest struct {
	TenantID  uuid.UUID
	OrderID   string
	NewStatus string
	MarkPaid  bool
	CookName  string
	StaffID   uuid.UUID
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	links    payment.URLGenerator
	events   Broadcaster
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, links payment.URLGenerator, events Broadcaster) *OrderService {
	return &OrderService{pool: pool, store: store, newStore: newStore, links: links, events: events}
}

// PlaceOrder validates the cart, computes the bill, generates payment
// artifacts, and creates the order atomically. Retries up to
// maxOrderNumberRetries times on order_number unique constraint violations
// (race condition where concurrent transactions get the same MAX).
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*database.Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if !enum.ValidPaymentMode(req.PaymentMode) {
		return nil, ErrInvalidPaymentMode
	}

	lines := make([]billing.Line, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		price, err := decimal.NewFromString(item.Price)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidPrice)
		}
		lines = append(lines, billing.Line{
			ItemID:   item.ItemID,
			Name:     item.Name,
			Price:    price,
			Quantity: item.Quantity,
			Veg:      item.Veg,
		})
	}

	// Retry loop: handles order_number unique constraint race condition.
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		order, err := s.placeOrderTx(ctx, req, lines)
		if err == nil {
			if s.events != nil {
				s.events.OrderUpserted(*order)
			}
			return order, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_tenant_id_order_number_key"
	}
	return false
}

// placeOrderTx executes the full order creation in a single transaction.
func (s *OrderService) placeOrderTx(ctx context.Context, req PlaceOrderRequest, lines []billing.Line) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	tenant, err := store.GetTenant(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if !tenant.IsActive {
		return nil, ErrTenantInactive
	}

	table, err := store.GetTable(ctx, database.GetTableParams{
		TenantID:    req.TenantID,
		TableNumber: req.TableNumber,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	if !table.IsActive {
		return nil, ErrTableInactive
	}

	settings, err := store.GetTenantSettings(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if !modeAccepted(settings.AcceptedModes, req.PaymentMode) {
		return nil, ErrModeNotAccepted
	}
	if settings.RequireCustomerAuth && req.CustomerName == "" {
		return nil, ErrCustomerRequired
	}

	bill := billing.Compute(lines, numericToDecimal(settings.ServiceChargePct))

	itemsJSON, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}

	nextNum, err := store.NextOrderNumber(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("next order number: %w", err)
	}
	orderID := fmt.Sprintf("ORD-%d", nextNum)

	// UPI orders need working payment links before anything is persisted;
	// a restaurant without a merchant UPI ID cannot take UPI orders.
	upiURL := pgtype.Text{}
	qrURL := pgtype.Text{}
	paymentStatus := enum.PaymentStatusUnpaid
	paidAt := pgtype.Timestamptz{}
	switch req.PaymentMode {
	case enum.PaymentModeUPI:
		links, err := s.links.Generate(payment.Request{
			OrderID:     orderID,
			Amount:      bill.Total,
			MerchantUPI: settings.MerchantUpiID.String,
			PayeeName:   tenant.Name,
		})
		if err != nil {
			return nil, err
		}
		upiURL = pgtype.Text{String: links.UPIURL, Valid: true}
		qrURL = pgtype.Text{String: links.QRURL, Valid: true}
	case enum.PaymentModeCash, enum.PaymentModeCard:
		// Settled at the counter; recorded as paid from the start.
		paymentStatus = enum.PaymentStatusPaid
		paidAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:            req.TenantID,
		OrderNumber:         nextNum,
		OrderID:             orderID,
		TableNumber:         req.TableNumber,
		ItemsJSON:           itemsJSON,
		Subtotal:            decimalToNumeric(bill.Subtotal),
		ServiceChargePct:    settings.ServiceChargePct,
		ServiceChargeAmount: decimalToNumeric(bill.ServiceChargeAmount),
		Total:               decimalToNumeric(bill.Total),
		Status:              enum.OrderStatusPending,
		PaymentStatus:       paymentStatus,
		PaymentMode:         req.PaymentMode,
		UpiURL:              upiURL,
		QrURL:               qrURL,
		PaidAt:              paidAt,
		CustomerName:        textOrNull(req.CustomerName),
		CustomerEmail:       textOrNull(req.CustomerEmail),
		CustomerPhone:       textOrNull(req.CustomerPhone),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// Get returns one order for a tenant.
func (s *OrderService) Get(ctx context.Context, tenantID uuid.UUID, orderID string) (*database.Order, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{TenantID: tenantID, OrderID: orderID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ListStaff returns the dashboard view, optionally filtered by status.
// Completed and rejected orders expire from the view after ten minutes.
func (s *OrderService) ListStaff(ctx context.Context, tenantID uuid.UUID, status string) ([]database.Order, error) {
	filter := pgtype.Text{}
	if status != "" {
		if !enum.ValidOrderStatus(status) {
			return nil, ErrInvalidStatus
		}
		filter = pgtype.Text{String: status, Valid: true}
	}
	return s.store.ListStaffOrders(ctx, database.ListStaffOrdersParams{
		TenantID: tenantID,
		Since:    time.Now().Add(-autoExpiryWindow),
		Status:   filter,
	})
}

// ListTable returns the customer's track view for one table.
func (s *OrderService) ListTable(ctx context.Context, tenantID uuid.UUID, tableNumber int32) ([]database.Order, error) {
	return s.store.ListTableOrders(ctx, database.ListTableOrdersParams{
		TenantID:    tenantID,
		TableNumber: tableNumber,
		Since:       time.Now().Add(-autoExpiryWindow),
	})
}

// UpdateStatus advances the order lifecycle. The transition is validated
// against the observed status and applied with a conditional update, so a
// concurrent transition by another staff member surfaces as
// ErrConcurrentUpdate instead of silently overwriting.
func (s *OrderService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*database.Order, error) {
	if !enum.ValidOrderStatus(req.NewStatus) {
		return nil, ErrInvalidStatus
	}

	current, err := s.Get(ctx, req.TenantID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(current.Status, req.NewStatus) {
		return nil, ErrInvalidTransition
	}
	if needsPayment(req.NewStatus) && current.PaymentStatus != enum.PaymentStatusPaid && !req.MarkPaid {
		return nil, ErrPaymentRequired
	}

	order, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		TenantID:  req.TenantID,
		OrderID:   req.OrderID,
		NewStatus: req.NewStatus,
		OldStatus: current.Status,
		MarkPaid:  req.MarkPaid,
		CookName:  textOrNull(req.CookName),
		StaffID:   pgtype.UUID{Bytes: req.StaffID, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	if s.events != nil {
		s.events.OrderUpserted(order)
	}
	return &order, nil
}

// ClaimPayment records a customer's claim to have completed a UPI payment.
// Idempotent; the claim never changes payment_status.
func (s *OrderService) ClaimPayment(ctx context.Context, tenantID uuid.UUID, orderID string) (*database.Order, error) {
	order, err := s.store.ClaimPayment(ctx, database.ClaimPaymentParams{TenantID: tenantID, OrderID: orderID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Missing order and wrong payment mode both match zero rows.
			if _, getErr := s.Get(ctx, tenantID, orderID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrNotClaimable
		}
		return nil, err
	}
	if s.events != nil {
		s.events.OrderUpserted(order)
	}
	return &order, nil
}

// TogglePayment flips the payment status, used by staff to confirm a claimed
// UPI payment or to correct a mistake.
func (s *OrderService) TogglePayment(ctx context.Context, tenantID uuid.UUID, orderID string, staffID uuid.UUID) (*database.Order, error) {
	current, err := s.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	newStatus := enum.PaymentStatusPaid
	if current.PaymentStatus == enum.PaymentStatusPaid {
		newStatus = enum.PaymentStatusUnpaid
	}

	order, err := s.store.UpdatePaymentStatus(ctx, database.UpdatePaymentStatusParams{
		TenantID:  tenantID,
		OrderID:   orderID,
		NewStatus: newStatus,
		OldStatus: current.PaymentStatus,
		StaffID:   pgtype.UUID{Bytes: staffID, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	if s.events != nil {
		s.events.OrderUpserted(order)
	}
	return &order, nil
}

// Cancel removes a still-pending order at the customer's request. The
// pending check and the delete are one atomic statement, so an accept that
// lands first wins and the cancel fails cleanly.
func (s *OrderService) Cancel(ctx context.Context, tenantID uuid.UUID, tableNumber int32, orderID string) error {
	order, err := s.store.DeletePendingOrder(ctx, database.DeletePendingOrderParams{
		TenantID:    tenantID,
		TableNumber: tableNumber,
		OrderID:     orderID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.Get(ctx, tenantID, orderID); getErr != nil {
				return getErr
			}
			return ErrNotCancellable
		}
		return err
	}
	if s.events != nil {
		s.events.OrderRemoved(tenantID, order.TableNumber, order.OrderID)
	}
	return nil
}

// MarkBillDownloaded flags that the customer saved their bill.
func (s *OrderService) MarkBillDownloaded(ctx context.Context, tenantID uuid.UUID, orderID string) error {
	return s.store.MarkBillDownloaded(ctx, database.MarkBillDownloadedParams{TenantID: tenantID, OrderID: orderID})
}

// Export returns all orders created in [start, end) for reporting.
func (s *OrderService) Export(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]database.Order, error) {
	return s.store.ListOrdersBetween(ctx, database.ListOrdersBetweenParams{
		TenantID: tenantID,
		Start:    start,
		End:      end,
	})
}

// --- Helpers ---

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// needsPayment reports whether a status may only be reached on a paid order.
func needsPayment(status string) bool {
	return status == enum.OrderStatusCooking || status == enum.OrderStatusCompleted
}

func modeAccepted(accepted []string, mode string) bool {
	for _, m := range accepted {
		if m == mode {
			return true
		}
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

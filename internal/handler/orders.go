package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tabletap/api/internal/billing"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/payment"
	"github.com/tabletap/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*database.Order, error)
	Get(ctx context.Context, tenantID uuid.UUID, orderID string) (*database.Order, error)
	ListStaff(ctx context.Context, tenantID uuid.UUID, status string) ([]database.Order, error)
	ListTable(ctx context.Context, tenantID uuid.UUID, tableNumber int32) ([]database.Order, error)
	UpdateStatus(ctx context.Context, req service.UpdateStatusRequest) (*database.Order, error)
	ClaimPayment(ctx context.Context, tenantID uuid.UUID, orderID string) (*database.Order, error)
	TogglePayment(ctx context.Context, tenantID uuid.UUID, orderID string, staffID uuid.UUID) (*database.Order, error)
	Cancel(ctx context.Context, tenantID uuid.UUID, tableNumber int32, orderID string) error
	MarkBillDownloaded(ctx context.Context, tenantID uuid.UUID, orderID string) error
	Export(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]database.Order, error)
}

// OrderBillStore defines the extra reads the bill endpoint needs.
// Satisfied by *database.Queries.
type OrderBillStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error)
}

// OrderHandler handles customer and staff order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderBillStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderBillStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// RegisterPublicRoutes registers the unauthenticated table endpoints.
// Mounted at /tenants/{tid}/tables/{tn}/orders.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/", h.Place)
	r.Get("/", h.ListForTable)
	r.Post("/{oid}/claim", h.Claim)
	r.Delete("/{oid}", h.Cancel)
	r.Get("/{oid}/bill", h.Bill)
}

// RegisterStaffRoutes registers the authenticated dashboard endpoints.
// Mounted at /tenants/{tid}/orders inside the staff-role group.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/", h.ListForStaff)
	r.Patch("/{oid}/status", h.UpdateStatus)
	r.Post("/{oid}/payment/toggle", h.TogglePayment)
}

// --- Request / Response types ---

type placeOrderRequest struct {
	PaymentMode   string                  `json:"payment_mode"`
	CustomerName  string                  `json:"customer_name"`
	CustomerEmail string                  `json:"customer_email"`
	CustomerPhone string                  `json:"customer_phone"`
	Items         []placeOrderItemRequest `json:"items"`
}

type placeOrderItemRequest struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int32  `json:"quantity"`
	Veg      bool   `json:"veg"`
}

type updateStatusRequest struct {
	Status   string `json:"status"`
	MarkPaid bool   `json:"mark_paid"`
	CookName string `json:"cook_name"`
}

type orderResponse struct {
	OrderID             string          `json:"order_id"`
	OrderNumber         int32           `json:"order_number"`
	TableNumber         int32           `json:"table_number"`
	Items               json.RawMessage `json:"items"`
	Subtotal            string          `json:"subtotal"`
	ServiceChargePct    string          `json:"service_charge_pct"`
	ServiceChargeAmount string          `json:"service_charge_amount"`
	Total               string          `json:"total"`
	Status              string          `json:"status"`
	PaymentStatus       string          `json:"payment_status"`
	PaymentClaimed      bool            `json:"payment_claimed"`
	PaymentMode         string          `json:"payment_mode"`
	UpiURL              *string         `json:"upi_url"`
	QrURL               *string         `json:"qr_url"`
	BillDownloaded      bool            `json:"bill_downloaded"`
	CookName            *string         `json:"cook_name"`
	CustomerName        *string         `json:"customer_name"`
	CreatedAt           time.Time       `json:"created_at"`
	AcceptedAt          *time.Time      `json:"accepted_at"`
	CompletedAt         *time.Time      `json:"completed_at"`
	PaidAt              *time.Time      `json:"paid_at"`
	ClaimedAt           *time.Time      `json:"claimed_at"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
}

// --- Customer handlers ---

// Place handles POST /tenants/{tid}/tables/{tn}/orders.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableNumber, err := tableNumberParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table number"})
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	items := make([]service.PlaceOrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.PlaceOrderItem{
			ItemID:   item.ItemID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
			Veg:      item.Veg,
		}
	}

	order, err := h.svc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		TenantID:      tenantID,
		TableNumber:   tableNumber,
		PaymentMode:   req.PaymentMode,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Items:         items,
	})
	if err != nil {
		writeOrderError(w, "place order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

// ListForTable handles GET /tenants/{tid}/tables/{tn}/orders.
func (h *OrderHandler) ListForTable(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableNumber, err := tableNumberParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table number"})
		return
	}

	orders, err := h.svc.ListTable(r.Context(), tenantID, tableNumber)
	if err != nil {
		log.Printf("ERROR: list table orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

// Claim handles POST /tenants/{tid}/tables/{tn}/orders/{oid}/claim.
func (h *OrderHandler) Claim(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	order, err := h.svc.ClaimPayment(r.Context(), tenantID, chi.URLParam(r, "oid"))
	if err != nil {
		writeOrderError(w, "claim payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// Cancel handles DELETE /tenants/{tid}/tables/{tn}/orders/{oid}.
// Customers may only cancel orders the kitchen has not accepted yet.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	tableNumber, err := tableNumberParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table number"})
		return
	}

	if err := h.svc.Cancel(r.Context(), tenantID, tableNumber, chi.URLParam(r, "oid")); err != nil {
		writeOrderError(w, "cancel order", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Bill handles GET /tenants/{tid}/tables/{tn}/orders/{oid}/bill.
// Returns a printable HTML bill and flags the order as downloaded.
func (h *OrderHandler) Bill(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	orderID := chi.URLParam(r, "oid")

	order, err := h.svc.Get(r.Context(), tenantID, orderID)
	if err != nil {
		writeOrderError(w, "get order for bill", err)
		return
	}

	tenant, err := h.store.GetTenant(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: get tenant for bill: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var lines []billing.Line
	if err := json.Unmarshal(order.ItemsJSON, &lines); err != nil {
		log.Printf("ERROR: decode order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items := make([]billing.BillItem, len(lines))
	for i, l := range lines {
		items[i] = billing.BillItem{Name: l.Name, Quantity: l.Quantity, Total: l.Total().StringFixed(2)}
	}

	data := billing.BillData{
		OrderID:             order.OrderID,
		TableNumber:         order.TableNumber,
		Date:                order.CreatedAt,
		RestaurantName:      tenant.Name,
		RestaurantAddress:   tenant.Address.String,
		Items:               items,
		Subtotal:            numericToString(order.Subtotal),
		ServiceChargePct:    numericToString(order.ServiceChargePct),
		ServiceChargeAmount: numericToString(order.ServiceChargeAmount),
		Total:               numericToString(order.Total),
		PaymentMode:         order.PaymentMode,
		PaymentStatus:       order.PaymentStatus,
		CustomerName:        order.CustomerName.String,
	}
	// Unpaid UPI bills carry the scan-to-pay QR.
	if order.PaymentMode == enum.PaymentModeUPI && order.PaymentStatus == enum.PaymentStatusUnpaid {
		data.QRImageURL = order.QrURL.String
	}

	if err := h.svc.MarkBillDownloaded(r.Context(), tenantID, orderID); err != nil {
		log.Printf("ERROR: mark bill downloaded: %v", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := billing.RenderHTML(w, data); err != nil {
		log.Printf("ERROR: render bill: %v", err)
	}
}

// --- Staff handlers ---

// ListForStaff handles GET /tenants/{tid}/orders.
func (h *OrderHandler) ListForStaff(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	orders, err := h.svc.ListStaff(r.Context(), tenantID, r.URL.Query().Get("status"))
	if err != nil {
		writeOrderError(w, "list staff orders", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

// UpdateStatus handles PATCH /tenants/{tid}/orders/{oid}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), service.UpdateStatusRequest{
		TenantID:  tenantID,
		OrderID:   chi.URLParam(r, "oid"),
		NewStatus: req.Status,
		MarkPaid:  req.MarkPaid,
		CookName:  req.CookName,
		StaffID:   claims.UserID,
	})
	if err != nil {
		writeOrderError(w, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// TogglePayment handles POST /tenants/{tid}/orders/{oid}/payment/toggle.
func (h *OrderHandler) TogglePayment(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	order, err := h.svc.TogglePayment(r.Context(), tenantID, chi.URLParam(r, "oid"), claims.UserID)
	if err != nil {
		writeOrderError(w, "toggle payment", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// --- Helpers ---

// writeOrderError maps known service errors to HTTP status codes.
func writeOrderError(w http.ResponseWriter, op string, err error) {
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrTenantNotFound),
		errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrTenantInactive),
		errors.Is(err, service.ErrTableInactive):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, service.ErrConcurrentUpdate),
		errors.Is(err, service.ErrNotCancellable),
		errors.Is(err, service.ErrNotClaimable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidPrice) ||
		errors.Is(err, service.ErrInvalidPaymentMode) ||
		errors.Is(err, service.ErrModeNotAccepted) ||
		errors.Is(err, service.ErrCustomerRequired) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, payment.ErrNoMerchantUPI) ||
		errors.Is(err, payment.ErrInvalidAmount)
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		OrderID:             o.OrderID,
		OrderNumber:         o.OrderNumber,
		TableNumber:         o.TableNumber,
		Items:               json.RawMessage(o.ItemsJSON),
		Subtotal:            numericToString(o.Subtotal),
		ServiceChargePct:    numericToString(o.ServiceChargePct),
		ServiceChargeAmount: numericToString(o.ServiceChargeAmount),
		Total:               numericToString(o.Total),
		Status:              o.Status,
		PaymentStatus:       o.PaymentStatus,
		PaymentClaimed:      o.PaymentClaimed,
		PaymentMode:         o.PaymentMode,
		UpiURL:              textPtr(o.UpiURL),
		QrURL:               textPtr(o.QrURL),
		BillDownloaded:      o.BillDownloaded,
		CookName:            textPtr(o.CookName),
		CustomerName:        textPtr(o.CustomerName),
		CreatedAt:           o.CreatedAt,
	}
	if o.AcceptedAt.Valid {
		resp.AcceptedAt = &o.AcceptedAt.Time
	}
	if o.CompletedAt.Valid {
		resp.CompletedAt = &o.CompletedAt.Time
	}
	if o.PaidAt.Valid {
		resp.PaidAt = &o.PaidAt.Time
	}
	if o.ClaimedAt.Valid {
		resp.ClaimedAt = &o.ClaimedAt.Time
	}
	return resp
}

func toOrderListResponse(orders []database.Order) orderListResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return orderListResponse{Orders: resp}
}

package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Tenant is one restaurant on the platform.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Address   pgtype.Text
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantSettings carries per-tenant payment and menu configuration. The
// merchant UPI id and sheet URL are staff-only; the public settings view
// (GetPublicTenantSettings) never exposes them.
type TenantSettings struct {
	TenantID            uuid.UUID
	MerchantUpiID       pgtype.Text
	AcceptedModes       []string
	ServiceChargePct    pgtype.Numeric
	TableCount          int32
	MenuSheetURL        pgtype.Text
	Theme               pgtype.Text
	RequireCustomerAuth bool
	UpdatedAt           time.Time
}

// PublicTenantSettings is the guest-facing projection of TenantSettings.
type PublicTenantSettings struct {
	TenantID         uuid.UUID
	RestaurantName   string
	Address          pgtype.Text
	IsActive         bool
	AcceptedModes    []string
	ServiceChargePct pgtype.Numeric
	TableCount       int32
	Theme            pgtype.Text
}

// RestaurantTable is a physical table a QR code points at.
type RestaurantTable struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	TableNumber int32
	IsActive    bool
	CreatedAt   time.Time
}

// Order is a placed customer order. Monetary columns are numeric(12,2);
// items are frozen as a JSON array at placement time.
type Order struct {
	ID                  uuid.UUID
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
	PaymentClaimed      bool
	PaymentMode         string
	UpiURL              pgtype.Text
	QrURL               pgtype.Text
	BillDownloaded      bool
	CookName            pgtype.Text
	CustomerName        pgtype.Text
	CustomerEmail       pgtype.Text
	CustomerPhone       pgtype.Text
	CreatedAt           time.Time
	AcceptedAt          pgtype.Timestamptz
	CompletedAt         pgtype.Timestamptz
	PaidAt              pgtype.Timestamptz
	ClaimedAt           pgtype.Timestamptz
	LastUpdatedBy       pgtype.UUID
	LastUpdatedAt       time.Time
}

// User is a staff account. Customers are anonymous and never get a row here.
type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserRole assigns a role to a user within a tenant. A NULL tenant_id marks
// the universal admin role.
type UserRole struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TenantID  pgtype.UUID
	Role      string
	CreatedAt time.Time
}

// Package payment builds UPI collect links and their QR representations.
package payment

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

var (
	ErrNoMerchantUPI = errors.New("merchant UPI ID is not configured")
	ErrInvalidAmount = errors.New("payment amount must be positive")
)

// Request describes one payment to link.
type Request struct {
	OrderID     string
	Amount      decimal.Decimal
	MerchantUPI string
	PayeeName   string
}

// Links is the pair of artifacts shown to the customer.
type Links struct {
	UPIURL string
	QRURL  string
}

// URLGenerator produces payment links for an order. Implementations must be
// safe for concurrent use.
type URLGenerator interface {
	Generate(req Request) (Links, error)
}

// QuickChart renders the UPI deep link as a QR image via quickchart.io.
type QuickChart struct{}

func NewQuickChart() *QuickChart {
	return &QuickChart{}
}

func (QuickChart) Generate(req Request) (Links, error) {
	if req.MerchantUPI == "" {
		return Links{}, ErrNoMerchantUPI
	}
	if !req.Amount.IsPositive() {
		return Links{}, ErrInvalidAmount
	}

	q := url.Values{}
	q.Set("pa", req.MerchantUPI)
	q.Set("pn", req.PayeeName)
	q.Set("am", req.Amount.StringFixed(2))
	q.Set("tn", req.OrderID)
	q.Set("cu", "INR")
	upiURL := "upi://pay?" + q.Encode()

	qrURL := fmt.Sprintf("https://quickchart.io/qr?text=%s&size=300", url.QueryEscape(upiURL))
	return Links{UPIURL: upiURL, QRURL: qrURL}, nil
}

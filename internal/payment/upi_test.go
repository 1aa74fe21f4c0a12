package payment

import (
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestGenerate(t *testing.T) {
	gen := NewQuickChart()
	links, err := gen.Generate(Request{
		OrderID:     "ORD-42",
		Amount:      decimal.RequireFromString("262.5"),
		MerchantUPI: "cafe@upi",
		PayeeName:   "Corner Cafe",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if !strings.HasPrefix(links.UPIURL, "upi://pay?") {
		t.Fatalf("unexpected UPI URL %q", links.UPIURL)
	}
	q, err := url.ParseQuery(strings.TrimPrefix(links.UPIURL, "upi://pay?"))
	if err != nil {
		t.Fatalf("UPI URL query did not parse: %v", err)
	}
	checks := map[string]string{
		"pa": "cafe@upi",
		"pn": "Corner Cafe",
		"am": "262.50",
		"tn": "ORD-42",
		"cu": "INR",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("param %s = %q, want %q", key, got, want)
		}
	}

	if !strings.HasPrefix(links.QRURL, "https://quickchart.io/qr?text=") {
		t.Errorf("unexpected QR URL %q", links.QRURL)
	}
	if !strings.Contains(links.QRURL, url.QueryEscape(links.UPIURL)) {
		t.Errorf("QR URL does not embed the UPI link: %q", links.QRURL)
	}
}

func TestGenerateMissingMerchant(t *testing.T) {
	gen := NewQuickChart()
	if _, err := gen.Generate(Request{OrderID: "ORD-1", Amount: decimal.NewFromInt(100)}); err != ErrNoMerchantUPI {
		t.Errorf("expected ErrNoMerchantUPI, got %v", err)
	}
}

func TestGenerateNonPositiveAmount(t *testing.T) {
	gen := NewQuickChart()
	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		if _, err := gen.Generate(Request{OrderID: "ORD-1", Amount: amount, MerchantUPI: "cafe@upi"}); err != ErrInvalidAmount {
			t.Errorf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

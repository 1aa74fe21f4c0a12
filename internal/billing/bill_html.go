package billing

import (
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// BillData is everything the printable bill needs. Amounts are preformatted
// strings so the template never does arithmetic.
type BillData struct {
	OrderID             string
	TableNumber         int32
	Date                time.Time
	RestaurantName      string
	RestaurantAddress   string
	Items               []BillItem
	Subtotal            string
	ServiceChargePct    string
	ServiceChargeAmount string
	Total               string
	PaymentMode         string
	PaymentStatus       string
	CustomerName        string
	QRImageURL          string // UPI payment QR; empty hides the scan-to-pay block
}

type BillItem struct {
	Name     string
	Quantity int32
	Total    string
}

// fromBill converts a computed Bill into template-ready BillData.
func fromBill(b Bill, pct decimal.Decimal) BillData {
	items := make([]BillItem, len(b.Lines))
	for i, l := range b.Lines {
		items[i] = BillItem{Name: l.Name, Quantity: l.Quantity, Total: l.Total().StringFixed(2)}
	}
	return BillData{
		Items:               items,
		Subtotal:            b.Subtotal.StringFixed(2),
		ServiceChargePct:    pct.String(),
		ServiceChargeAmount: b.ServiceChargeAmount.StringFixed(2),
		Total:               b.Total.StringFixed(2),
	}
}

// RenderHTML writes the printable bill. Thermal-receipt styling: monospace,
// 400px column, dashed separators.
func RenderHTML(w io.Writer, data BillData) error {
	return billTmpl.Execute(w, data)
}

var billTmpl = template.Must(template.New("bill").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Bill - {{.RestaurantName}}</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body { font-family: 'Courier New', monospace; max-width: 400px; margin: 0 auto; padding: 20px; font-size: 14px; line-height: 1.5; }
    .header { text-align: center; border-bottom: 2px dashed #000; padding-bottom: 15px; margin-bottom: 20px; }
    .header h1 { font-size: 22px; text-transform: uppercase; }
    .info-row { display: flex; justify-content: space-between; margin: 8px 0; }
    .items { border-top: 1px dashed #000; border-bottom: 1px dashed #000; padding: 15px 0; margin: 20px 0; }
    .item-row { display: flex; justify-content: space-between; margin: 10px 0; }
    .item-name { flex: 1; }
    .item-qty { width: 40px; text-align: center; }
    .item-price { width: 80px; text-align: right; }
    .total-row { display: flex; justify-content: space-between; margin: 8px 0; }
    .total-row.grand { font-weight: bold; font-size: 18px; border-top: 2px solid #000; padding-top: 12px; margin-top: 12px; }
    .qr-section { text-align: center; margin: 25px 0; padding: 20px; border: 2px dashed #000; }
    .qr-section img { width: 200px; height: 200px; }
    .footer { text-align: center; margin-top: 25px; border-top: 2px dashed #000; padding-top: 15px; font-size: 12px; }
    @media print { .qr-section { page-break-inside: avoid; } }
  </style>
</head>
<body>
  <div class="header">
    <h1>{{.RestaurantName}}</h1>
    {{if .RestaurantAddress}}<p>{{.RestaurantAddress}}</p>{{end}}
    <p style="margin-top: 10px; font-weight: bold;">TAX INVOICE</p>
  </div>

  <div class="info">
    <div class="info-row"><span><strong>Order ID:</strong></span><span>{{.OrderID}}</span></div>
    {{if .TableNumber}}<div class="info-row"><span><strong>Table:</strong></span><span>{{.TableNumber}}</span></div>{{end}}
    <div class="info-row"><span><strong>Date &amp; Time:</strong></span><span>{{.Date.Format "02/01/06 3:04 PM"}}</span></div>
    {{if .CustomerName}}<div class="info-row"><span><strong>Customer:</strong></span><span>{{.CustomerName}}</span></div>{{end}}
    {{if .PaymentMode}}<div class="info-row"><span><strong>Payment Mode:</strong></span><span>{{.PaymentMode}}</span></div>{{end}}
    {{if .PaymentStatus}}<div class="info-row"><span><strong>Payment Status:</strong></span><span>{{.PaymentStatus}}</span></div>{{end}}
  </div>

  <div class="items">
    <div class="item-row" style="font-weight: bold; border-bottom: 1px solid #000;">
      <span class="item-name">ITEM</span><span class="item-qty">QTY</span><span class="item-price">PRICE</span>
    </div>
    {{range .Items}}
    <div class="item-row">
      <span class="item-name">{{.Name}}</span><span class="item-qty">{{.Quantity}}</span><span class="item-price">&#8377;{{.Total}}</span>
    </div>
    {{end}}
  </div>

  <div class="totals">
    <div class="total-row"><span>Subtotal:</span><span>&#8377;{{.Subtotal}}</span></div>
    <div class="total-row"><span>Service Charge ({{.ServiceChargePct}}%):</span><span>&#8377;{{.ServiceChargeAmount}}</span></div>
    <div class="total-row grand"><span>TOTAL AMOUNT:</span><span>&#8377;{{.Total}}</span></div>
  </div>

  {{if .QRImageURL}}
  <div class="qr-section">
    <p><strong>SCAN TO PAY VIA UPI</strong></p>
    <img src="{{.QRImageURL}}" alt="UPI Payment QR Code" />
    <p style="font-size: 11px;">Scan with any UPI app (GPay, PhonePe, Paytm, etc.)</p>
  </div>
  {{end}}

  <div class="footer">
    <p style="font-weight: bold;">Thank you for dining with us!</p>
    <p>Visit us again soon</p>
  </div>
</body>
</html>
`))

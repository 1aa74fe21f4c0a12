// Package notifier turns streams of order updates into the one-shot
// notices a customer screen should show. Each Tracker belongs to a single
// subscriber; duplicate updates for the same state never notify twice.
package notifier

import "github.com/tabletap/api/internal/enum"

// OrderEvent is the subset of an order update the tracker reacts to.
type OrderEvent struct {
	OrderID       string
	Status        string
	PaymentStatus string
}

// Kind classifies a notification for the client.
type Kind string

const (
	KindStatus    Kind = "status"
	KindPayment   Kind = "payment"
	KindCelebrate Kind = "celebrate"
)

// Notification is one message to surface to the customer.
type Notification struct {
	Kind    Kind   `json:"kind"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

var statusMessages = map[string]string{
	enum.OrderStatusAccepted:  "Your order has been accepted",
	enum.OrderStatusCooking:   "Your order is being prepared",
	enum.OrderStatusCompleted: "Your order is ready",
	enum.OrderStatusRejected:  "Sorry, your order was rejected",
}

// Tracker remembers the last seen state per order so repeated updates stay
// silent. Not safe for concurrent use; each connection owns its own.
type Tracker struct {
	lastStatus  map[string]string
	lastPayment map[string]string
	celebrated  map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		lastStatus:  make(map[string]string),
		lastPayment: make(map[string]string),
		celebrated:  make(map[string]bool),
	}
}

// Apply folds one event into the tracker and returns the notices it
// produced. The first sighting of an order records a baseline without
// notifying, so a page reload does not replay old transitions.
func (t *Tracker) Apply(ev OrderEvent) []Notification {
	prevStatus, seen := t.lastStatus[ev.OrderID]
	prevPayment := t.lastPayment[ev.OrderID]
	t.lastStatus[ev.OrderID] = ev.Status
	t.lastPayment[ev.OrderID] = ev.PaymentStatus

	if !seen {
		if ev.Status == enum.OrderStatusCompleted {
			t.celebrated[ev.OrderID] = true
		}
		return nil
	}

	var out []Notification
	if ev.Status != prevStatus {
		if msg, ok := statusMessages[ev.Status]; ok {
			out = append(out, Notification{Kind: KindStatus, OrderID: ev.OrderID, Message: msg})
		}
		if ev.Status == enum.OrderStatusCompleted && !t.celebrated[ev.OrderID] {
			t.celebrated[ev.OrderID] = true
			out = append(out, Notification{Kind: KindCelebrate, OrderID: ev.OrderID, Message: "Enjoy your meal!"})
		}
	}
	if ev.PaymentStatus != prevPayment && ev.PaymentStatus == enum.PaymentStatusPaid {
		out = append(out, Notification{Kind: KindPayment, OrderID: ev.OrderID, Message: "Payment received"})
	}
	return out
}

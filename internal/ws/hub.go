// Package ws pushes live order updates to staff dashboards and customer
// table views over WebSocket.
package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/notifier"
)

// Event types carried on the wire.
const (
	EventOrderUpdated = "order.updated"
	EventOrderRemoved = "order.removed"
	EventNotice       = "notice"
)

// OrderView is the wire shape of an order.
type OrderView struct {
	OrderID        string          `json:"order_id"`
	OrderNumber    int32           `json:"order_number,omitempty"`
	TableNumber    int32           `json:"table_number"`
	Items          json.RawMessage `json:"items,omitempty"`
	Subtotal       string          `json:"subtotal,omitempty"`
	ServiceCharge  string          `json:"service_charge,omitempty"`
	Total          string          `json:"total,omitempty"`
	Status         string          `json:"status,omitempty"`
	PaymentStatus  string          `json:"payment_status,omitempty"`
	PaymentClaimed bool            `json:"payment_claimed,omitempty"`
	PaymentMode    string          `json:"payment_mode,omitempty"`
	UpiURL         string          `json:"upi_url,omitempty"`
	QrURL          string          `json:"qr_url,omitempty"`
	CookName       string          `json:"cook_name,omitempty"`
	CustomerName   string          `json:"customer_name,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
}

// Event represents a WebSocket message to be broadcast.
type Event struct {
	Type   string                 `json:"type"`
	Order  *OrderView             `json:"order,omitempty"`
	Notice *notifier.Notification `json:"notice,omitempty"`
}

// roomEvent routes an event to one room.
type roomEvent struct {
	room  string
	event Event
}

// staffRoom is where every dashboard for a tenant listens.
func staffRoom(tenantID uuid.UUID) string {
	return tenantID.String()
}

// tableRoom is where the customers at one table listen.
func tableRoom(tenantID uuid.UUID, tableNumber int32) string {
	return fmt.Sprintf("%s/%d", tenantID, tableNumber)
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Room membership and broadcasting run on a single goroutine (Run), which
// also makes each customer client's notification tracker race-free.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEvent

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
	}
}

// Run starts the hub's main loop.
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.Lock()
			h.deliver(ev)
			h.mu.Unlock()
		}
	}
}

// deliver fans an event out to one room, appending per-client notice frames
// where a tracker decides the update deserves one. Caller holds h.mu.
func (h *Hub) deliver(ev *roomEvent) {
	clients := h.rooms[ev.room]
	if len(clients) == 0 {
		return
	}

	message, err := json.Marshal(ev.event)
	if err != nil {
		return
	}

	for client := range clients {
		if !h.push(ev.room, client, message) {
			continue
		}
		if client.tracker == nil || ev.event.Order == nil || ev.event.Type != EventOrderUpdated {
			continue
		}
		notices := client.tracker.Apply(notifier.OrderEvent{
			OrderID:       ev.event.Order.OrderID,
			Status:        ev.event.Order.Status,
			PaymentStatus: ev.event.Order.PaymentStatus,
		})
		for i := range notices {
			frame, err := json.Marshal(Event{Type: EventNotice, Notice: &notices[i]})
			if err != nil {
				continue
			}
			if !h.push(ev.room, client, frame) {
				break
			}
		}
	}
}

// push sends one frame, dropping the client if its buffer is full.
// Returns false when the client was dropped. Caller holds h.mu.
func (h *Hub) push(room string, client *Client, message []byte) bool {
	select {
	case client.send <- message:
		return true
	default:
		close(client.send)
		delete(h.rooms[room], client)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
		return false
	}
}

// OrderUpserted pushes a created or updated order to the tenant's staff room
// and to the order's table room.
func (h *Hub) OrderUpserted(order database.Order) {
	view := viewFromOrder(order)
	event := Event{Type: EventOrderUpdated, Order: &view}
	h.broadcast <- &roomEvent{room: staffRoom(order.TenantID), event: event}
	h.broadcast <- &roomEvent{room: tableRoom(order.TenantID, order.TableNumber), event: event}
}

// OrderRemoved announces a cancelled order to both rooms.
func (h *Hub) OrderRemoved(tenantID uuid.UUID, tableNumber int32, orderID string) {
	event := Event{Type: EventOrderRemoved, Order: &OrderView{OrderID: orderID, TableNumber: tableNumber}}
	h.broadcast <- &roomEvent{room: staffRoom(tenantID), event: event}
	h.broadcast <- &roomEvent{room: tableRoom(tenantID, tableNumber), event: event}
}

func viewFromOrder(o database.Order) OrderView {
	return OrderView{
		OrderID:        o.OrderID,
		OrderNumber:    o.OrderNumber,
		TableNumber:    o.TableNumber,
		Items:          json.RawMessage(o.ItemsJSON),
		Subtotal:       numericString(o.Subtotal),
		ServiceCharge:  numericString(o.ServiceChargeAmount),
		Total:          numericString(o.Total),
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		PaymentClaimed: o.PaymentClaimed,
		PaymentMode:    o.PaymentMode,
		UpiURL:         o.UpiURL.String,
		QrURL:          o.QrURL.String,
		CookName:       o.CookName.String,
		CustomerName:   o.CustomerName.String,
		CreatedAt:      timeString(o.CreatedAt),
	}
}

func numericString(n pgtype.Numeric) string {
	if !n.Valid {
		return ""
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return ""
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return ""
	}
	return d.StringFixed(2)
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

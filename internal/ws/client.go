package ws

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tabletap/api/internal/auth"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/notifier"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // staff sockets are validated via JWT, customer ones are table-scoped
	},
}

// Client represents a single WebSocket connection bound to one room.
// Customer connections carry a tracker so repeated snapshots of the same
// order only notify once; staff connections leave it nil.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	room    string
	tracker *notifier.Tracker
	send    chan []byte
}

// ReadPump pumps messages from the WebSocket connection to the hub.
// Clients don't send application messages - we just detect disconnects.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeStaff handles the staff dashboard socket.
// Endpoint: WS /ws/tenants/{tid}?token=JWT
func ServeStaff(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateToken(jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	tenantID, err := uuid.Parse(r.PathValue("tid"))
	if err != nil {
		http.Error(w, "invalid tenant id", http.StatusBadRequest)
		return
	}
	if !middleware.CanAccess(claims, tenantID, enum.StaffRoles...) {
		http.Error(w, "tenant access denied", http.StatusForbidden)
		return
	}

	serve(hub, w, r, staffRoom(tenantID), nil)
}

// ServeTable handles the customer track-order socket. It is reachable
// without auth, the same as placing an order from a table QR code.
// Endpoint: WS /ws/tenants/{tid}/tables/{tn}
func ServeTable(hub *Hub, w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("tid"))
	if err != nil {
		http.Error(w, "invalid tenant id", http.StatusBadRequest)
		return
	}
	tableNumber, err := strconv.ParseInt(r.PathValue("tn"), 10, 32)
	if err != nil || tableNumber <= 0 {
		http.Error(w, "invalid table number", http.StatusBadRequest)
		return
	}

	serve(hub, w, r, tableRoom(tenantID, int32(tableNumber)), notifier.NewTracker())
}

func serve(hub *Hub, w http.ResponseWriter, r *http.Request, room string, tracker *notifier.Tracker) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:     hub,
		conn:    conn,
		room:    room,
		tracker: tracker,
		send:    make(chan []byte, 256),
	}
	client.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

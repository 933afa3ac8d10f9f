package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vimaru/luyenthi/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is served to the portal SPA and its Electron wrapper;
	// origin is enforced at the proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket connection bound to a resolved identity.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   identity
	send chan []byte
	done chan struct{}
}

// ServeWS upgrades the request and runs the connection until it drops.
// The token travels as a query parameter because browser websocket
// clients cannot set headers.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, err := h.identify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(r.Context(), "relay: upgrade failed", "error", err)
		return
	}

	c := &Client{
		hub:  h,
		conn: conn,
		id:   *id,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.register(r.Context(), c)

	go c.writePump()
	c.readPump()
}

func (c *Client) enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// Slow consumer; drop the frame rather than block the hub.
	}
}

func (c *Client) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(context.Background(), c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("relay: read failed", "user", c.id.UserID, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.ack(env.AckID, AckPayload{Status: "error", Error: "malformed frame"})
			continue
		}

		telemetry.RelayEvents.WithLabelValues(env.Event, "in").Inc()
		c.handle(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) handle(env Envelope) {
	ctx := context.Background()

	switch env.Event {
	case EventSendMessage:
		c.handleSendMessage(ctx, env)

	case EventTyping:
		c.relayTyping(ctx, env, EventUserTyping)

	case EventStopTyping:
		c.relayTyping(ctx, env, EventUserStopTyping)

	case EventSendNotification, EventBroadcastNotification:
		c.handleNotification(ctx, env)

	case EventDeleteMessage:
		c.handleDeleteMessage(ctx, env)

	default:
		c.ack(env.AckID, AckPayload{Status: "error", Error: "unknown event: " + env.Event})
	}
}

// handleSendMessage persists the message, then relays it to every
// device of the recipient. The ack feeds the sender's optimistic UI
// (pending -> sent -> error); there is no durable outbox or retry.
func (c *Client) handleSendMessage(ctx context.Context, env Envelope) {
	var p SendMessagePayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.To == "" || p.Content == "" {
		c.ack(env.AckID, AckPayload{Status: "error", Error: "invalid send_message payload"})
		return
	}

	msg, err := c.hub.messages.Append(ctx, c.id.UserID, p.To, p.Content)
	if err != nil {
		slog.ErrorContext(ctx, "relay: persist message failed", "error", err)
		c.ack(env.AckID, AckPayload{Status: "error", Error: "message not saved"})
		return
	}

	err = c.hub.Publish(ctx, p.To, EventReceiveMessage, ReceiveMessagePayload{
		ID:        msg.MessageID,
		SenderID:  c.id.UserID,
		Content:   p.Content,
		Timestamp: msg.CreateTime.UnixMilli(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "relay: publish message failed", "error", err)
	}

	c.ack(env.AckID, AckPayload{Status: "ok", ID: msg.MessageID})
}

func (c *Client) relayTyping(ctx context.Context, env Envelope, outEvent string) {
	var p TypingPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.To == "" {
		return
	}

	if err := c.hub.Publish(ctx, p.To, outEvent, UserTypingPayload{SenderID: c.id.UserID}); err != nil {
		slog.ErrorContext(ctx, "relay: publish typing failed", "error", err)
	}
}

func (c *Client) handleNotification(ctx context.Context, env Envelope) {
	var p NotificationPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.Title == "" {
		c.ack(env.AckID, AckPayload{Status: "error", Error: "invalid notification payload"})
		return
	}

	p.SenderID = c.id.UserID
	p.Broadcast = env.Event == EventBroadcastNotification

	if err := c.hub.Broadcast(ctx, EventReceiveNotification, p); err != nil {
		slog.ErrorContext(ctx, "relay: broadcast notification failed", "error", err)
		c.ack(env.AckID, AckPayload{Status: "error", Error: "broadcast failed"})
		return
	}

	c.ack(env.AckID, AckPayload{Status: "ok"})
}

func (c *Client) handleDeleteMessage(ctx context.Context, env Envelope) {
	var p DeleteMessagePayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ID == "" {
		c.ack(env.AckID, AckPayload{Status: "error", Error: "invalid delete_message payload"})
		return
	}

	if err := c.hub.messages.Delete(ctx, p.ID, c.id.UserID); err != nil {
		c.ack(env.AckID, AckPayload{Status: "error", Error: "delete failed"})
		return
	}

	c.emit(EventDeleteMessageSuccess, DeleteMessagePayload{ID: p.ID})
	c.ack(env.AckID, AckPayload{Status: "ok", ID: p.ID})
}

func (c *Client) ack(ackID int64, p AckPayload) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}

	b, err := json.Marshal(Envelope{Event: EventAck, Data: raw, AckID: ackID})
	if err != nil {
		return
	}

	c.enqueue(b)
}

func (c *Client) emit(eventName string, data any) {
	b, err := encode(eventName, data)
	if err != nil {
		return
	}

	c.enqueue(b)
}

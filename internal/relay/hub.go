package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/event"
	"github.com/vimaru/luyenthi/internal/telemetry"
)

const broadcastChannel = "broadcast"

// Messages is the durable log the relay appends direct messages to.
type Messages interface {
	Append(ctx context.Context, senderID, receiverID, content string) (*domain.ChatMessage, error)
	Delete(ctx context.Context, messageID, requesterID string) error
}

// TokenParser resolves an opaque token into an identity.
type TokenParser interface {
	ParseToken(token string) (userID, name string, role domain.Role, err error)
}

type Config struct {
	Redis    redis.UniversalClient
	EventBus *event.Bus
	Messages Messages
	Tokens   TokenParser
	Prefix   string
	// AllowAnonymous admits connections without a token under a
	// generated anon id. Off in production configs.
	AllowAnonymous bool
}

// Hub tracks connected clients and routes envelopes between them. All
// sockets of one user form a single delivery channel: every outbound
// frame is published to the user's Redis channel, and each node
// forwards frames from that channel to its local sockets.
type Hub struct {
	redis     redis.UniversalClient
	eb        *event.Bus
	messages  Messages
	tokens    TokenParser
	prefix    string
	allowAnon bool

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	subs    map[string]*redis.PubSub

	broadcastSub *redis.PubSub
}

func NewHub(c Config) *Hub {
	return &Hub{
		redis:     c.Redis,
		eb:        c.EventBus,
		messages:  c.Messages,
		tokens:    c.Tokens,
		prefix:    c.Prefix,
		allowAnon: c.AllowAnonymous,
		clients:   make(map[string]map[*Client]struct{}),
		subs:      make(map[string]*redis.PubSub),
	}
}

// Start subscribes the hub to the shared broadcast channel. Caller
// should call Close on shutdown.
func (h *Hub) Start(ctx context.Context) {
	h.broadcastSub = h.redis.Subscribe(ctx, h.channel(broadcastChannel))
	go h.forward(h.broadcastSub, func(b []byte) { h.deliverLocalAll(b) })
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.broadcastSub != nil {
		_ = h.broadcastSub.Close()
	}
	for user, sub := range h.subs {
		_ = sub.Close()
		delete(h.subs, user)
	}
	for _, conns := range h.clients {
		for c := range conns {
			c.close()
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
}

// identify resolves the handshake token. An empty or invalid token
// yields an anonymous identity only when the hub allows it.
func (h *Hub) identify(token string) (*identity, error) {
	if token != "" {
		uid, name, role, err := h.tokens.ParseToken(token)
		if err == nil {
			return &identity{UserID: uid, Name: name, Role: role}, nil
		}
		if !h.allowAnon {
			return nil, err
		}
	}

	if !h.allowAnon {
		return nil, fmt.Errorf("relay: missing token")
	}

	return &identity{UserID: "anon-" + uuid.NewString(), Anonymous: true}, nil
}

type identity struct {
	UserID    string
	Name      string
	Role      domain.Role
	Anonymous bool
}

// register binds a client to its user channel. The first socket of a
// user subscribes the node to the user's Redis channel and flips
// presence to online.
func (h *Hub) register(ctx context.Context, c *Client) {
	h.mu.Lock()
	first := len(h.clients[c.id.UserID]) == 0
	if first {
		h.clients[c.id.UserID] = make(map[*Client]struct{})

		sub := h.redis.Subscribe(ctx, h.channel("user:"+c.id.UserID))
		h.subs[c.id.UserID] = sub
		go h.forward(sub, func(b []byte) { h.deliverLocal(c.id.UserID, b) })
	}
	h.clients[c.id.UserID][c] = struct{}{}
	h.mu.Unlock()

	telemetry.RelayConnections.Inc()

	if first && !c.id.Anonymous {
		h.setPresence(ctx, c.id.UserID, true)
	}
}

// unregister drops a client; the last socket of a user unsubscribes
// the channel and flips presence to offline. Presence lags a real
// disconnect by the transport's own liveness timeout.
func (h *Hub) unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	conns, ok := h.clients[c.id.UserID]
	if ok {
		delete(conns, c)
	}
	last := ok && len(conns) == 0
	if last {
		delete(h.clients, c.id.UserID)
		if sub, ok := h.subs[c.id.UserID]; ok {
			_ = sub.Close()
			delete(h.subs, c.id.UserID)
		}
	}
	h.mu.Unlock()

	if ok {
		telemetry.RelayConnections.Dec()
	}

	if last && !c.id.Anonymous {
		h.setPresence(ctx, c.id.UserID, false)
	}
}

func (h *Hub) forward(sub *redis.PubSub, deliver func(b []byte)) {
	for msg := range sub.Channel() {
		deliver([]byte(msg.Payload))
	}
}

func (h *Hub) deliverLocal(userID string, b []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		c.enqueue(b)
	}
}

func (h *Hub) deliverLocalAll(b []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.clients {
		for c := range conns {
			c.enqueue(b)
		}
	}
}

// Publish sends an event to every device of one user, on any node.
func (h *Hub) Publish(ctx context.Context, userID, eventName string, data any) error {
	b, err := encode(eventName, data)
	if err != nil {
		return err
	}

	telemetry.RelayEvents.WithLabelValues(eventName, "out").Inc()

	return h.redis.Publish(ctx, h.channel("user:"+userID), b).Err()
}

// Broadcast sends an event to every connected client on every node.
func (h *Hub) Broadcast(ctx context.Context, eventName string, data any) error {
	b, err := encode(eventName, data)
	if err != nil {
		return err
	}

	telemetry.RelayEvents.WithLabelValues(eventName, "out").Inc()

	return h.redis.Publish(ctx, h.channel(broadcastChannel), b).Err()
}

// setPresence mirrors connect/disconnect into a shared presence record
// with a server-set last-seen timestamp, then announces the change.
func (h *Hub) setPresence(ctx context.Context, userID string, online bool) {
	state := presenceRecord{
		IsOnline: online,
		LastSeen: time.Now().UnixMilli(),
	}

	b, err := json.Marshal(state)
	if err == nil {
		err = h.redis.Set(ctx, h.presenceKey(userID), b, 0).Err()
	}
	if err != nil {
		slog.ErrorContext(ctx, "relay: update presence failed",
			"user", userID,
			"error", err,
		)
	}

	h.eb.Publish(ctx, domain.EventPresenceChanged{UserID: userID, IsOnline: online})

	if err := h.Broadcast(ctx, EventUserStatusChange, StatusChangePayload{
		UserID:   userID,
		IsOnline: online,
	}); err != nil {
		slog.ErrorContext(ctx, "relay: broadcast presence failed",
			"user", userID,
			"error", err,
		)
	}
}

type presenceRecord struct {
	IsOnline bool  `json:"is_online"`
	LastSeen int64 `json:"last_seen"`
}

// Presence reads a user's presence record; a missing record reads as
// offline with no last-seen.
func (h *Hub) Presence(ctx context.Context, userID string) (online bool, lastSeen time.Time, err error) {
	b, err := h.redis.Get(ctx, h.presenceKey(userID)).Bytes()
	if err == redis.Nil {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf("get presence: %w", err)
	}

	var rec presenceRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return false, time.Time{}, fmt.Errorf("decode presence: %w", err)
	}

	return rec.IsOnline, time.UnixMilli(rec.LastSeen), nil
}

func (h *Hub) channel(suffix string) string {
	return fmt.Sprintf("%s:%s", h.prefix, suffix)
}

func (h *Hub) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", h.prefix, userID)
}

func encode(eventName string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("relay: marshal %s: %w", eventName, err)
	}

	return json.Marshal(Envelope{Event: eventName, Data: raw})
}

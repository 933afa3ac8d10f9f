package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/event"
)

type fakeTokens struct{}

func (fakeTokens) ParseToken(token string) (string, string, domain.Role, error) {
	if token == "valid" {
		return "u1", "An", domain.RoleStudent, nil
	}
	return "", "", "", fmt.Errorf("bad token")
}

func makeHub(t *testing.T, allowAnon bool) *Hub {
	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})

	h := NewHub(Config{
		Redis:          rc,
		EventBus:       event.NewBus(),
		Tokens:         fakeTokens{},
		Prefix:         "test",
		AllowAnonymous: allowAnon,
	})
	t.Cleanup(h.Close)

	return h
}

func makeClient(h *Hub, userID string) *Client {
	return &Client{
		hub:  h,
		id:   identity{UserID: userID},
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func TestIdentify(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		h := makeHub(t, false)

		id, err := h.identify("valid")
		require.NoError(t, err)
		assert.Equal(t, "u1", id.UserID)
		assert.False(t, id.Anonymous)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		h := makeHub(t, false)

		_, err := h.identify("nope")
		require.Error(t, err)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		h := makeHub(t, false)

		_, err := h.identify("")
		require.Error(t, err)
	})

	t.Run("anonymous fallback when allowed", func(t *testing.T) {
		h := makeHub(t, true)

		id, err := h.identify("")
		require.NoError(t, err)
		assert.True(t, id.Anonymous)
		assert.Contains(t, id.UserID, "anon-")

		// An invalid token degrades to anonymous too.
		id, err = h.identify("nope")
		require.NoError(t, err)
		assert.True(t, id.Anonymous)
	})
}

func TestRegisterUnregister(t *testing.T) {
	h := makeHub(t, false)
	ctx := context.Background()

	c1 := makeClient(h, "u1")
	c2 := makeClient(h, "u1")

	h.register(ctx, c1)
	h.register(ctx, c2)

	h.mu.RLock()
	assert.Len(t, h.clients["u1"], 2)
	assert.Len(t, h.subs, 1, "all sockets of one user share one channel subscription")
	h.mu.RUnlock()

	h.unregister(ctx, c1)

	h.mu.RLock()
	assert.Len(t, h.clients["u1"], 1)
	assert.Len(t, h.subs, 1, "subscription lives while any socket remains")
	h.mu.RUnlock()

	h.unregister(ctx, c2)

	h.mu.RLock()
	assert.Empty(t, h.clients)
	assert.Empty(t, h.subs)
	h.mu.RUnlock()
}

func TestPublish_FansOutToEveryDevice(t *testing.T) {
	h := makeHub(t, false)
	ctx := context.Background()

	c1 := makeClient(h, "u1")
	c2 := makeClient(h, "u1")
	other := makeClient(h, "u2")

	h.register(ctx, c1)
	h.register(ctx, c2)
	h.register(ctx, other)

	require.NoError(t, h.Publish(ctx, "u1", EventReceiveMessage, ReceiveMessagePayload{
		ID:       "m1",
		SenderID: "u2",
		Content:  "chào",
	}))

	for _, c := range []*Client{c1, c2} {
		select {
		case b := <-c.send:
			var env Envelope
			require.NoError(t, json.Unmarshal(b, &env))
			assert.Equal(t, EventReceiveMessage, env.Event)

			var p ReceiveMessagePayload
			require.NoError(t, json.Unmarshal(env.Data, &p))
			assert.Equal(t, "m1", p.ID)

		case <-time.After(2 * time.Second):
			t.Fatal("device did not receive the published frame")
		}
	}

	select {
	case <-other.send:
		t.Fatal("frame leaked to another user")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcast_ReachesEveryUser(t *testing.T) {
	h := makeHub(t, false)
	ctx := context.Background()
	h.Start(ctx)

	c1 := makeClient(h, "u1")
	c2 := makeClient(h, "u2")
	h.register(ctx, c1)
	h.register(ctx, c2)

	require.NoError(t, h.Broadcast(ctx, EventRoomStatusChange, RoomStatusPayload{
		RoomID: "r1",
		Status: string(domain.RoomStatusInProgress),
	}))

	for _, c := range []*Client{c1, c2} {
		select {
		case b := <-c.send:
			var env Envelope
			require.NoError(t, json.Unmarshal(b, &env))
			assert.Equal(t, EventRoomStatusChange, env.Event)

		case <-time.After(2 * time.Second):
			t.Fatal("client did not receive the broadcast")
		}
	}
}

func TestPresence_FollowsConnections(t *testing.T) {
	h := makeHub(t, false)
	ctx := context.Background()

	c := makeClient(h, "u1")
	h.register(ctx, c)

	online, _, err := h.Presence(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online)

	h.unregister(ctx, c)

	online, lastSeen, err := h.Presence(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)
	assert.False(t, lastSeen.IsZero())
}

func TestPresence_AnonymousLeavesNoRecord(t *testing.T) {
	h := makeHub(t, true)
	ctx := context.Background()

	c := makeClient(h, "anon-x")
	c.id.Anonymous = true
	h.register(ctx, c)
	h.unregister(ctx, c)

	online, lastSeen, err := h.Presence(ctx, "anon-x")
	require.NoError(t, err)
	assert.False(t, online)
	assert.True(t, lastSeen.IsZero(), "missing record reads as offline with no last-seen")
}

func TestEnqueue_DropsWhenFull(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}

	c.enqueue([]byte("a"))
	c.enqueue([]byte("b"))

	assert.Len(t, c.send, 1, "a slow consumer loses frames instead of blocking the hub")
}

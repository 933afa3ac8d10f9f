package examroom_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
	"github.com/vimaru/luyenthi/internal/event"
	"github.com/vimaru/luyenthi/internal/examroom"
)

func makeRoster(t *testing.T, opts ...rosterOption) *examroom.Roster {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := examroom.RosterConfig{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "test",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return examroom.NewRoster(c)
}

type rosterOption func(c *examroom.RosterConfig)

func withEventBus(eb *event.Bus) rosterOption {
	return func(c *examroom.RosterConfig) {
		c.EventBus = eb
	}
}

func TestRoster_ListOrderedByScore(t *testing.T) {
	r := makeRoster(t)
	ctx := context.Background()

	require.NoError(t, r.Join(ctx, "r1", domain.Participant{UID: "u1", Name: "An", SBD: "001"}))
	require.NoError(t, r.Join(ctx, "r1", domain.Participant{UID: "u2", Name: "Binh", SBD: "002"}))
	require.NoError(t, r.Join(ctx, "r1", domain.Participant{UID: "u3", Name: "Chi", SBD: "003"}))

	require.NoError(t, r.UpdateProgress(ctx, "r1", domain.Participant{
		UID: "u2", Name: "Binh", SBD: "002", Status: domain.ParticipantDoing, Score: 12, Answered: 15,
	}))
	require.NoError(t, r.UpdateProgress(ctx, "r1", domain.Participant{
		UID: "u3", Name: "Chi", SBD: "003", Status: domain.ParticipantDoing, Score: 7, Answered: 10,
	}))

	roster, err := r.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, roster, 3)

	require.Equal(t, "u2", roster[0].UID)
	require.Equal(t, "u3", roster[1].UID)
	require.Equal(t, "u1", roster[2].UID)
	require.Equal(t, 12, roster[0].Score)
	require.Equal(t, domain.ParticipantDoing, roster[0].Status)
}

func TestRoster_JoinDefaultsStatus(t *testing.T) {
	r := makeRoster(t)
	ctx := context.Background()

	require.NoError(t, r.Join(ctx, "r1", domain.Participant{UID: "u1", Name: "An"}))

	p, err := r.Get(ctx, "r1", "u1")
	require.NoError(t, err)
	require.Equal(t, domain.ParticipantJoined, p.Status)
}

func TestRoster_Kick(t *testing.T) {
	r := makeRoster(t)
	ctx := context.Background()

	require.NoError(t, r.Join(ctx, "r1", domain.Participant{UID: "u1"}))
	require.NoError(t, r.Join(ctx, "r1", domain.Participant{UID: "u2"}))

	require.NoError(t, r.Kick(ctx, "r1", "u1"))

	_, err := r.Get(ctx, "r1", "u1")
	require.True(t, errors.Is(err, errors.CodeNotFound))

	roster, err := r.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, "u2", roster[0].UID)
}

func TestRoster_SetStatus(t *testing.T) {
	r := makeRoster(t)
	ctx := context.Background()

	require.NoError(t, r.Join(ctx, "r1", domain.Participant{UID: "u1", Score: 9}))
	require.NoError(t, r.SetStatus(ctx, "r1", "u1", domain.ParticipantSubmitted))

	p, err := r.Get(ctx, "r1", "u1")
	require.NoError(t, err)
	require.Equal(t, domain.ParticipantSubmitted, p.Status)
	require.Equal(t, 9, p.Score, "status flip must not clobber the score")
}

func TestRoster_PublishesRosterUpdated(t *testing.T) {
	eb := event.NewBus()

	var (
		mu     sync.Mutex
		events []domain.EventRosterUpdated
	)
	eb.Subscribe(domain.EventNameRosterUpdated, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		events = append(events, e.(domain.EventRosterUpdated))
		mu.Unlock()
		return nil
	})

	r := makeRoster(t, withEventBus(eb))

	require.NoError(t, r.Join(context.Background(), "r1", domain.Participant{UID: "u1"}))
	require.NoError(t, r.UpdateProgress(context.Background(), "r1", domain.Participant{UID: "u1", Score: 3}))

	eb.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	require.Equal(t, "r1", events[0].RoomID)
}

func TestRoster_EmptyRoomListsNothing(t *testing.T) {
	r := makeRoster(t)

	roster, err := r.List(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, roster)
}

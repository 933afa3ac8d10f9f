package quiz_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vimaru/luyenthi/internal/quiz"
)

func makeSnapshotStore(t *testing.T) (*quiz.SnapshotStore, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return quiz.NewSnapshotStore(rc, "test"), rs
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	s, _ := makeSnapshotStore(t)

	saved := quiz.Snapshot{
		Index:     3,
		TimeLeft:  120,
		Answers:   map[string]string{"q1": "a2"},
		LicenseID: "gcnkt-may-truong",
	}

	require.NoError(t, s.Save(context.Background(), "u1", "practice", saved))

	got, err := s.Load(context.Background(), "u1", "practice")
	require.NoError(t, err)
	require.NotNil(t, got)

	saved.Mode = "practice"
	require.Equal(t, saved, *got)
}

func TestSnapshotStore_MissingIsNoSession(t *testing.T) {
	s, _ := makeSnapshotStore(t)

	got, err := s.Load(context.Background(), "u1", "practice")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSnapshotStore_MalformedIsNoSession(t *testing.T) {
	s, rs := makeSnapshotStore(t)

	require.NoError(t, rs.Set("test:session:u1:practice", "{not json"))

	got, err := s.Load(context.Background(), "u1", "practice")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSnapshotStore_Clear(t *testing.T) {
	s, _ := makeSnapshotStore(t)

	require.NoError(t, s.Save(context.Background(), "u1", "exam", quiz.Snapshot{Index: 1}))
	require.NoError(t, s.Clear(context.Background(), "u1", "exam"))

	got, err := s.Load(context.Background(), "u1", "exam")
	require.NoError(t, err)
	require.Nil(t, got)
}

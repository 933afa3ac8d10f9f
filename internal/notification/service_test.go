package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/event"
	"github.com/vimaru/luyenthi/internal/notification"
)

// fakeStore records every write so tests can assert on the exact
// storage path a call took.
type fakeStore struct {
	personal map[string][]domain.Notification
	global   []domain.Notification
	audits   []domain.Notification

	personalReads   []string
	globalReads     []string
	personalDeletes []string
	globalDeletes   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{personal: make(map[string][]domain.Notification)}
}

func (f *fakeStore) InsertPersonal(_ context.Context, userIDs []string, n domain.Notification) error {
	for _, uid := range userIDs {
		f.personal[uid] = append(f.personal[uid], n)
	}
	return nil
}

func (f *fakeStore) InsertGlobal(_ context.Context, n domain.Notification) error {
	f.global = append(f.global, n)
	return nil
}

func (f *fakeStore) InsertAudit(_ context.Context, n domain.Notification) error {
	f.audits = append(f.audits, n)
	return nil
}

func (f *fakeStore) ListPersonal(_ context.Context, userID string) ([]domain.Notification, error) {
	return f.personal[userID], nil
}

func (f *fakeStore) ListGlobal(_ context.Context) ([]domain.Notification, error) {
	return f.global, nil
}

func (f *fakeStore) MarkPersonalRead(_ context.Context, userID, id string) error {
	f.personalReads = append(f.personalReads, userID+"/"+id)
	return nil
}

func (f *fakeStore) AppendGlobalReadBy(_ context.Context, id, userID string) error {
	f.globalReads = append(f.globalReads, userID+"/"+id)
	return nil
}

func (f *fakeStore) MarkPersonalDeleted(_ context.Context, userID, id string) error {
	f.personalDeletes = append(f.personalDeletes, userID+"/"+id)
	return nil
}

func (f *fakeStore) AppendGlobalDeletedBy(_ context.Context, id, userID string) error {
	f.globalDeletes = append(f.globalDeletes, userID+"/"+id)
	return nil
}

type fakeDirectory struct {
	members map[string][]string
}

func (f *fakeDirectory) ClassMembers(_ context.Context, targetID string) ([]string, error) {
	return f.members[targetID], nil
}

func makeService(store *fakeStore, dir *fakeDirectory) *notification.Service {
	if dir == nil {
		dir = &fakeDirectory{}
	}

	return notification.NewService(notification.Config{
		Store:     store,
		Directory: dir,
		EventBus:  event.NewBus(),
	})
}

func TestSend_UserTarget(t *testing.T) {
	store := newFakeStore()
	s := makeService(store, nil)

	n, err := s.Send(context.Background(), notification.SendRequest{
		Title:      "Lịch thi",
		Type:       domain.NotificationPersonal,
		TargetType: domain.TargetUser,
		TargetID:   "u1",
	})
	require.NoError(t, err)

	require.Len(t, store.personal["u1"], 1)
	assert.Equal(t, n.ID, store.personal["u1"][0].ID)
	assert.Empty(t, store.global)
	require.Len(t, store.audits, 1, "every non-broadcast send leaves one audit row")
}

func TestSend_ClassTarget(t *testing.T) {
	store := newFakeStore()
	dir := &fakeDirectory{members: map[string][]string{"DK52": {"u1", "u2", "u3"}}}
	s := makeService(store, dir)

	_, err := s.Send(context.Background(), notification.SendRequest{
		Title:      "Nghỉ học",
		Type:       domain.NotificationClass,
		TargetType: domain.TargetClass,
		TargetID:   "DK52",
	})
	require.NoError(t, err)

	assert.Len(t, store.personal["u1"], 1)
	assert.Len(t, store.personal["u2"], 1)
	assert.Len(t, store.personal["u3"], 1)
	assert.Empty(t, store.global)
	assert.Len(t, store.audits, 1)
}

func TestSend_ClassWithNoMembersIsNotAnError(t *testing.T) {
	store := newFakeStore()
	s := makeService(store, &fakeDirectory{})

	_, err := s.Send(context.Background(), notification.SendRequest{
		TargetType: domain.TargetClass,
		TargetID:   "ghost",
	})
	require.NoError(t, err)

	assert.Empty(t, store.personal)
	assert.Len(t, store.audits, 1, "audit row is written even with zero recipients")
}

func TestSend_AllTargetWritesSingleGlobalRow(t *testing.T) {
	store := newFakeStore()
	s := makeService(store, nil)

	_, err := s.Send(context.Background(), notification.SendRequest{
		Title:      "Bảo trì hệ thống",
		Type:       domain.NotificationSystem,
		TargetType: domain.TargetAll,
	})
	require.NoError(t, err)

	require.Len(t, store.global, 1)
	assert.Empty(t, store.personal)
	assert.Empty(t, store.audits, "the global row is the master record, no second copy")
}

func TestSend_UnknownTarget(t *testing.T) {
	s := makeService(newFakeStore(), nil)

	_, err := s.Send(context.Background(), notification.SendRequest{TargetType: "everyone"})
	require.Error(t, err)
}

func TestListForUser_HidesDeletedAndAttachesRefs(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.personal["u1"] = []domain.Notification{
		{ID: "p1", CreateTime: now.Add(-time.Hour)},
	}
	store.global = []domain.Notification{
		{ID: "g1", CreateTime: now, ReadBy: []string{"u1"}},
		{ID: "g2", CreateTime: now.Add(-2 * time.Hour), DeletedBy: []string{"u1"}},
	}

	s := makeService(store, nil)

	got, err := s.ListForUser(context.Background(), "u1")
	require.NoError(t, err)

	// g2 is deleted for u1, regardless of read state.
	require.Len(t, got, 2)

	assert.Equal(t, "g1", got[0].ID)
	assert.Equal(t, domain.ScopeGlobal, got[0].Ref.Scope)
	assert.True(t, got[0].Read, "membership in read-by renders as read for this viewer")

	assert.Equal(t, "p1", got[1].ID)
	assert.Equal(t, domain.ScopePersonal, got[1].Ref.Scope)
	assert.Equal(t, "u1", got[1].Ref.UserID)
}

func TestListForUser_DeletedGlobalStillVisibleToOthers(t *testing.T) {
	store := newFakeStore()
	store.global = []domain.Notification{
		{ID: "g1", CreateTime: time.Now(), DeletedBy: []string{"u1"}},
	}

	s := makeService(store, nil)

	got, err := s.ListForUser(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].ID)
}

func TestMarkRead_ExactlyOneWritePerScope(t *testing.T) {
	store := newFakeStore()
	s := makeService(store, nil)
	ctx := context.Background()

	require.NoError(t, s.MarkRead(ctx, domain.NotificationRef{Scope: domain.ScopePersonal, UserID: "u1", ID: "p1"}, "u1"))
	assert.Equal(t, []string{"u1/p1"}, store.personalReads)
	assert.Empty(t, store.globalReads)

	require.NoError(t, s.MarkRead(ctx, domain.NotificationRef{Scope: domain.ScopeGlobal, ID: "g1"}, "u1"))
	assert.Equal(t, []string{"u1/g1"}, store.globalReads)
	assert.Len(t, store.personalReads, 1, "global ref must not touch the personal path")

	require.Error(t, s.MarkRead(ctx, domain.NotificationRef{Scope: "both", ID: "x"}, "u1"))
}

func TestDelete_ExactlyOneWritePerScope(t *testing.T) {
	store := newFakeStore()
	s := makeService(store, nil)
	ctx := context.Background()

	require.NoError(t, s.Delete(ctx, domain.NotificationRef{Scope: domain.ScopePersonal, UserID: "u1", ID: "p1"}, "u1"))
	assert.Equal(t, []string{"u1/p1"}, store.personalDeletes)
	assert.Empty(t, store.globalDeletes)

	require.NoError(t, s.Delete(ctx, domain.NotificationRef{Scope: domain.ScopeGlobal, ID: "g1"}, "u1"))
	assert.Equal(t, []string{"u1/g1"}, store.globalDeletes)
	assert.Len(t, store.personalDeletes, 1)
}

package notification

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
	"github.com/vimaru/luyenthi/internal/event"
)

// Store is the durable notification storage. Personal and global
// notifications have different shapes: a personal row belongs to one
// user and carries a plain read/deleted flag, a global row is shared
// and tracks readers and deleters as per-viewer sets.
type Store interface {
	InsertPersonal(ctx context.Context, userIDs []string, n domain.Notification) error
	InsertGlobal(ctx context.Context, n domain.Notification) error
	InsertAudit(ctx context.Context, n domain.Notification) error

	ListPersonal(ctx context.Context, userID string) ([]domain.Notification, error)
	ListGlobal(ctx context.Context) ([]domain.Notification, error)

	MarkPersonalRead(ctx context.Context, userID, id string) error
	AppendGlobalReadBy(ctx context.Context, id, userID string) error
	MarkPersonalDeleted(ctx context.Context, userID, id string) error
	AppendGlobalDeletedBy(ctx context.Context, id, userID string) error
}

// Directory resolves a class/course identifier to its member user ids.
type Directory interface {
	ClassMembers(ctx context.Context, targetID string) ([]string, error)
}

type Config struct {
	Store     Store
	Directory Directory
	EventBus  *event.Bus
}

type Service struct {
	store Store
	dir   Directory
	eb    *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		dir:   c.Directory,
		eb:    c.EventBus,
	}
}

type SendRequest struct {
	Title      string
	Message    string
	Type       domain.NotificationType
	TargetType domain.TargetType
	TargetID   string
	SenderID   string
	SenderName string
	ExpireTime *time.Time
}

// Send fans a notification out to its audience. Class targets are
// resolved to members and written one row per member; an unresolvable
// class is zero recipients, not an error. Every send also writes one
// master record for admin auditing, independent of delivery.
func (s *Service) Send(ctx context.Context, req SendRequest) (*domain.Notification, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate notification ID: %w", err)
	}

	n := domain.Notification{
		ID:         id.String(),
		Title:      req.Title,
		Message:    req.Message,
		Type:       req.Type,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		CreateTime: time.Now(),
		ExpireTime: req.ExpireTime,
	}

	var (
		recipients []string
		audited    bool
	)

	switch req.TargetType {
	case domain.TargetUser:
		recipients = []string{req.TargetID}
		if err := s.store.InsertPersonal(ctx, recipients, n); err != nil {
			return nil, fmt.Errorf("insert personal notification: %w", err)
		}

	case domain.TargetClass:
		members, err := s.dir.ClassMembers(ctx, req.TargetID)
		if err != nil {
			return nil, fmt.Errorf("resolve class members: %w", err)
		}
		if len(members) == 0 {
			slog.WarnContext(ctx, "notification: class resolved to zero members",
				"target", req.TargetID,
			)
		} else {
			if err := s.store.InsertPersonal(ctx, members, n); err != nil {
				return nil, fmt.Errorf("insert class notifications: %w", err)
			}
		}
		recipients = members

	case domain.TargetAll:
		// The global row doubles as the master record.
		if err := s.store.InsertGlobal(ctx, n); err != nil {
			return nil, fmt.Errorf("insert global notification: %w", err)
		}
		audited = true

	default:
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown target type: %s", req.TargetType))
	}

	// One master record per send for admin auditing, independent of
	// delivery.
	if !audited {
		if err := s.store.InsertAudit(ctx, n); err != nil {
			return nil, fmt.Errorf("insert audit record: %w", err)
		}
	}

	s.eb.Publish(ctx, domain.EventNotificationSent{
		Notification: n,
		Recipients:   recipients,
		Broadcast:    req.TargetType == domain.TargetAll,
	})

	return &n, nil
}

// ListForUser merges the user's personal notifications with the global
// ones, newest first. A notification whose deleted-by set contains the
// viewer never appears, regardless of read state. Each returned item
// carries the ref that mutations must use.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	personal, err := s.store.ListPersonal(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list personal notifications: %w", err)
	}

	global, err := s.store.ListGlobal(ctx)
	if err != nil {
		return nil, fmt.Errorf("list global notifications: %w", err)
	}

	out := make([]domain.Notification, 0, len(personal)+len(global))
	for _, n := range personal {
		if slices.Contains(n.DeletedBy, userID) {
			continue
		}
		n.Ref = domain.NotificationRef{Scope: domain.ScopePersonal, UserID: userID, ID: n.ID}
		out = append(out, n)
	}
	for _, n := range global {
		if slices.Contains(n.DeletedBy, userID) {
			continue
		}
		n.Ref = domain.NotificationRef{Scope: domain.ScopeGlobal, ID: n.ID}
		n.Read = slices.Contains(n.ReadBy, userID)
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreateTime.After(out[j].CreateTime)
	})

	return out, nil
}

// MarkRead performs exactly one underlying write, chosen by the ref's
// scope: a personal ref updates the user's row, a global ref appends
// the viewer to the shared read-by set. Never both.
func (s *Service) MarkRead(ctx context.Context, ref domain.NotificationRef, userID string) error {
	switch ref.Scope {
	case domain.ScopePersonal:
		return s.store.MarkPersonalRead(ctx, userID, ref.ID)
	case domain.ScopeGlobal:
		return s.store.AppendGlobalReadBy(ctx, ref.ID, userID)
	default:
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown notification scope: %s", ref.Scope))
	}
}

// Delete soft-deletes for one viewer, mirroring the MarkRead dual path
// with the deleted-by set.
func (s *Service) Delete(ctx context.Context, ref domain.NotificationRef, userID string) error {
	switch ref.Scope {
	case domain.ScopePersonal:
		return s.store.MarkPersonalDeleted(ctx, userID, ref.ID)
	case domain.ScopeGlobal:
		return s.store.AppendGlobalDeletedBy(ctx, ref.ID, userID)
	default:
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown notification scope: %s", ref.Scope))
	}
}

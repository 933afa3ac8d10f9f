package notification

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
)

// PGStore is the Postgres notification storage. Personal rows live in
// user_notifications, global/master rows in notifications with
// per-viewer read_by/deleted_by arrays.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// InsertPersonal writes one row per recipient in a single batch. The
// batch is unbounded: a very large class produces one very large
// batch, a known scalability limit.
func (s *PGStore) InsertPersonal(ctx context.Context, userIDs []string, n domain.Notification) error {
	const stmt = `
INSERT INTO user_notifications (id, user_id, title, message, type, target_type, target_id, sender_id, sender_name, create_time, expire_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`

	b := &pgx.Batch{}
	for _, uid := range userIDs {
		b.Queue(stmt, n.ID, uid, n.Title, n.Message, n.Type, n.TargetType, n.TargetID,
			n.SenderID, n.SenderName, n.CreateTime, n.ExpireTime)
	}

	if err := s.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}

	return nil
}

func (s *PGStore) InsertGlobal(ctx context.Context, n domain.Notification) error {
	return s.insertMaster(ctx, n)
}

func (s *PGStore) InsertAudit(ctx context.Context, n domain.Notification) error {
	return s.insertMaster(ctx, n)
}

func (s *PGStore) insertMaster(ctx context.Context, n domain.Notification) error {
	const stmt = `
INSERT INTO notifications (id, title, message, type, target_type, target_id, sender_id, sender_name, create_time, expire_time, read_by, deleted_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '{}', '{}');`

	_, err := s.db.Exec(ctx, stmt, n.ID, n.Title, n.Message, n.Type, n.TargetType, n.TargetID,
		n.SenderID, n.SenderName, n.CreateTime, n.ExpireTime)
	if err != nil {
		return fmt.Errorf("insert master row: %w", err)
	}

	return nil
}

func (s *PGStore) ListPersonal(ctx context.Context, userID string) ([]domain.Notification, error) {
	const stmt = `
SELECT id, title, message, type, target_type, target_id, sender_id, sender_name, create_time, expire_time, read, deleted
FROM user_notifications
WHERE user_id = $1
ORDER BY create_time DESC;`

	rows, err := s.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Notification, error) {
		var (
			n       domain.Notification
			deleted bool
		)
		err := r.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.TargetType, &n.TargetID,
			&n.SenderID, &n.SenderName, &n.CreateTime, &n.ExpireTime, &n.Read, &deleted)
		if err != nil {
			return domain.Notification{}, err
		}
		if deleted {
			n.DeletedBy = []string{userID}
		}
		return n, nil
	})
}

// ListGlobal returns only broadcast rows; audit rows for user/class
// sends never surface to viewers.
func (s *PGStore) ListGlobal(ctx context.Context) ([]domain.Notification, error) {
	const stmt = `
SELECT id, title, message, type, target_type, target_id, sender_id, sender_name, create_time, expire_time, read_by, deleted_by
FROM notifications
WHERE target_type = 'all'
ORDER BY create_time DESC;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Notification, error) {
		var n domain.Notification
		err := r.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.TargetType, &n.TargetID,
			&n.SenderID, &n.SenderName, &n.CreateTime, &n.ExpireTime, &n.ReadBy, &n.DeletedBy)
		if err != nil {
			return domain.Notification{}, err
		}
		return n, nil
	})
}

func (s *PGStore) MarkPersonalRead(ctx context.Context, userID, id string) error {
	const stmt = `UPDATE user_notifications SET read = TRUE WHERE user_id = $1 AND id = $2;`
	return s.execOne(ctx, stmt, userID, id)
}

func (s *PGStore) MarkPersonalDeleted(ctx context.Context, userID, id string) error {
	const stmt = `UPDATE user_notifications SET deleted = TRUE WHERE user_id = $1 AND id = $2;`
	return s.execOne(ctx, stmt, userID, id)
}

func (s *PGStore) AppendGlobalReadBy(ctx context.Context, id, userID string) error {
	const stmt = `
UPDATE notifications
SET read_by = array_append(read_by, $2)
WHERE id = $1 AND NOT ($2 = ANY(read_by));`
	// Idempotent: appending an already-present viewer matches no row.
	_, err := s.db.Exec(ctx, stmt, id, userID)
	if err != nil {
		return fmt.Errorf("append read_by: %w", err)
	}

	return nil
}

func (s *PGStore) AppendGlobalDeletedBy(ctx context.Context, id, userID string) error {
	const stmt = `
UPDATE notifications
SET deleted_by = array_append(deleted_by, $2)
WHERE id = $1 AND NOT ($2 = ANY(deleted_by));`

	_, err := s.db.Exec(ctx, stmt, id, userID)
	if err != nil {
		return fmt.Errorf("append deleted_by: %w", err)
	}

	return nil
}

func (s *PGStore) execOne(ctx context.Context, stmt string, args ...any) error {
	tag, err := s.db.Exec(ctx, stmt, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("notification not found"))
	}

	return nil
}

// PGDirectory resolves class targets against the user profile table.
// Three independent lookups tolerate inconsistent historical data: a
// member may be linked by course id, by course name, or only by the
// legacy free-text class field.
type PGDirectory struct {
	db *pgxpool.Pool
}

func NewPGDirectory(db *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{db: db}
}

func (d *PGDirectory) ClassMembers(ctx context.Context, targetID string) ([]string, error) {
	lookups := []string{
		`SELECT user_id FROM user_profiles WHERE course_id = $1;`,
		`SELECT user_id FROM user_profiles WHERE course_name = $1;`,
		`SELECT user_id FROM user_profiles WHERE class_name = $1;`,
	}

	seen := make(map[string]struct{})
	var members []string

	for _, stmt := range lookups {
		rows, err := d.db.Query(ctx, stmt, targetID)
		if err != nil {
			return nil, fmt.Errorf("class lookup: %w", err)
		}

		ids, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (string, error) {
			var id string
			err := r.Scan(&id)
			return id, err
		})
		if err != nil {
			return nil, fmt.Errorf("class lookup: %w", err)
		}

		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			members = append(members, id)
		}
	}

	return members, nil
}

package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = 24 * time.Hour

// Snapshot is the resumable state of an in-progress practice or exam
// session. A reload restores the question index and remaining time
// from the last saved snapshot; wall time elapsed while disconnected
// is not reconciled.
type Snapshot struct {
	Index     int               `json:"index"`
	TimeLeft  int               `json:"time_left"`
	Answers   map[string]string `json:"answers"`
	Mode      string            `json:"mode"`
	LicenseID string            `json:"license_id,omitempty"`
	SubjectID string            `json:"subject_id,omitempty"`
}

type SnapshotStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewSnapshotStore(r redis.UniversalClient, prefix string) *SnapshotStore {
	return &SnapshotStore{redis: r, prefix: prefix}
}

func (s *SnapshotStore) Save(ctx context.Context, userID, mode string, snap Snapshot) error {
	snap.Mode = mode

	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(userID, mode), b, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}

// Load returns the saved snapshot, or nil when none exists. A missing
// or malformed value means "no session", never an error.
func (s *SnapshotStore) Load(ctx context.Context, userID, mode string) (*Snapshot, error) {
	b, err := s.redis.Get(ctx, s.key(userID, mode)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		slog.WarnContext(ctx, "quiz: discarding malformed session snapshot",
			"user", userID,
			"mode", mode,
			"error", err,
		)
		return nil, nil
	}

	return &snap, nil
}

func (s *SnapshotStore) Clear(ctx context.Context, userID, mode string) error {
	if err := s.redis.Del(ctx, s.key(userID, mode)).Err(); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	return nil
}

func (s *SnapshotStore) key(userID, mode string) string {
	return fmt.Sprintf("%s:session:%s:%s", s.prefix, userID, mode)
}

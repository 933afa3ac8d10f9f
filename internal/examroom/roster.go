package examroom

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
	"github.com/vimaru/luyenthi/internal/event"
)

const rosterTTL = 12 * time.Hour

type RosterConfig struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Roster holds the live per-participant records of a room in Redis:
// a hash of participant JSON keyed by uid plus a sorted set ordering
// the roster by score for the teacher's detail view. Records are
// partitioned by participant so writers never collide; only the
// teacher's roster read aggregates them.
type Roster struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewRoster(c RosterConfig) *Roster {
	return &Roster{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}
}

// Join registers a participant in the room roster.
func (r *Roster) Join(ctx context.Context, roomID string, p domain.Participant) error {
	if p.Status == "" {
		p.Status = domain.ParticipantJoined
	}

	return r.write(ctx, roomID, p)
}

// UpdateProgress overwrites a participant's live record: status,
// answered count, time left and running score.
func (r *Roster) UpdateProgress(ctx context.Context, roomID string, p domain.Participant) error {
	return r.write(ctx, roomID, p)
}

func (r *Roster) write(ctx context.Context, roomID string, p domain.Participant) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal participant: %w", err)
	}

	pipe := r.redis.TxPipeline()
	pipe.HSet(ctx, r.rosterKey(roomID), p.UID, b)
	pipe.ZAdd(ctx, r.scoresKey(roomID), redis.Z{Score: float64(p.Score), Member: p.UID})
	pipe.Expire(ctx, r.rosterKey(roomID), rosterTTL)
	pipe.Expire(ctx, r.scoresKey(roomID), rosterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write roster entry: %w", err)
	}

	r.eb.Publish(ctx, domain.EventRosterUpdated{RoomID: roomID, Participant: p})

	return nil
}

// Get returns one participant record.
func (r *Roster) Get(ctx context.Context, roomID, uid string) (*domain.Participant, error) {
	b, err := r.redis.HGet(ctx, r.rosterKey(roomID), uid).Bytes()
	if err == redis.Nil {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("participant not found: room=%s uid=%s", roomID, uid))
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}

	var p domain.Participant
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode participant: %w", err)
	}

	return &p, nil
}

// List returns the full roster ordered by score descending.
func (r *Roster) List(ctx context.Context, roomID string) ([]domain.Participant, error) {
	uids, err := r.redis.ZRevRange(ctx, r.scoresKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list roster order: %w", err)
	}

	if len(uids) == 0 {
		return nil, nil
	}

	raw, err := r.redis.HMGet(ctx, r.rosterKey(roomID), uids...).Result()
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}

	ps := make([]domain.Participant, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			// Kicked between ZRevRange and HMGet.
			continue
		}

		var p domain.Participant
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("decode participant: %w", err)
		}
		ps = append(ps, p)
	}

	return ps, nil
}

// SetStatus flips a participant's status in place.
func (r *Roster) SetStatus(ctx context.Context, roomID, uid string, status domain.ParticipantStatus) error {
	p, err := r.Get(ctx, roomID, uid)
	if err != nil {
		return err
	}

	p.Status = status

	return r.write(ctx, roomID, *p)
}

// Kick removes a participant's record entirely.
func (r *Roster) Kick(ctx context.Context, roomID, uid string) error {
	pipe := r.redis.TxPipeline()
	pipe.HDel(ctx, r.rosterKey(roomID), uid)
	pipe.ZRem(ctx, r.scoresKey(roomID), uid)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("kick participant: %w", err)
	}

	return nil
}

func (r *Roster) rosterKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:roster", r.prefix, roomID)
}

func (r *Roster) scoresKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s:scores", r.prefix, roomID)
}

package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vimaru/luyenthi/internal/domain"
)

// Period is the rolling window a limit applies to.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// Tier identifies one limit bucket. Tiers are checked in order; the
// first match wins.
type Tier string

const (
	TierAdmin    Tier = "admin"
	TierManager  Tier = "manager"
	TierTeacher  Tier = "teacher"
	TierVIP      Tier = "vip"
	TierVerified Tier = "verified"
	TierFree     Tier = "free"
	TierGuest    Tier = "guest"
)

// TierConfig caps how many sessions the tier may start per period.
// A disabled tier is never limited.
type TierConfig struct {
	Enabled bool
	Limit   int
	Period  Period
	// Message is shown on block; "{limit}" is substituted with Limit.
	Message string
}

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	Tiers  map[Tier]TierConfig
	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultTiers mirrors the production limit policy: unlimited staff,
// generous verified users, tight free/guest nudges.
func DefaultTiers() map[Tier]TierConfig {
	return map[Tier]TierConfig{
		TierAdmin:    {Enabled: false},
		TierManager:  {Enabled: false},
		TierTeacher:  {Enabled: false},
		TierVIP:      {Enabled: false},
		TierVerified: {Enabled: true, Limit: 20, Period: PeriodWeekly, Message: "Bạn đã dùng hết {limit} lượt thi trong tuần. Vui lòng liên hệ quản trị viên."},
		TierFree:     {Enabled: true, Limit: 3, Period: PeriodDaily, Message: "Bạn đã dùng hết {limit} lượt thi hôm nay. Vui lòng liên hệ quản trị viên."},
		TierGuest:    {Enabled: true, Limit: 5, Period: PeriodDaily, Message: "Bạn đã dùng hết {limit} lượt thi thử. Đăng nhập để tiếp tục."},
	}
}

type Service struct {
	redis  redis.UniversalClient
	prefix string
	tiers  map[Tier]TierConfig
	now    func() time.Time
}

func NewService(c Config) *Service {
	tiers := c.Tiers
	if tiers == nil {
		tiers = DefaultTiers()
	}

	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		redis:  c.Redis,
		prefix: c.Prefix,
		tiers:  tiers,
		now:    now,
	}
}

// ResolveTier maps a user profile to its limit tier. Precedence:
// admin > manager > teacher > VIP > verified > free > guest.
func ResolveTier(u *domain.UserProfile) Tier {
	if u == nil || u.UserID == "" {
		return TierGuest
	}

	switch u.Role {
	case domain.RoleAdmin:
		return TierAdmin
	case domain.RoleLanhDao, domain.RoleQuanLy:
		return TierManager
	case domain.RoleTeacher:
		return TierTeacher
	}

	if u.VIP {
		return TierVIP
	}

	if u.Verified || u.CourseID != "" || u.ClassName != "" {
		return TierVerified
	}

	return TierFree
}

// Verdict is the outcome of a usage check.
type Verdict struct {
	Allowed bool
	Limit   int
	Count   int
	Message string
}

type record struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Check is read-only and idempotent: calling it any number of times
// without an intervening Increment returns the same verdict. A stored
// record whose period key does not match the current period counts
// as zero.
func (s *Service) Check(ctx context.Context, userID string, tier Tier) (*Verdict, error) {
	cfg, ok := s.tiers[tier]
	if !ok || !cfg.Enabled {
		return &Verdict{Allowed: true}, nil
	}

	rec, err := s.load(ctx, userID, tier)
	if err != nil {
		return nil, err
	}

	count := 0
	if rec != nil && rec.Date == s.periodKey(cfg.Period) {
		count = rec.Count
	}

	if count >= cfg.Limit {
		return &Verdict{
			Allowed: false,
			Limit:   cfg.Limit,
			Count:   count,
			Message: strings.ReplaceAll(cfg.Message, "{limit}", strconv.Itoa(cfg.Limit)),
		}, nil
	}

	return &Verdict{Allowed: true, Limit: cfg.Limit, Count: count}, nil
}

// Increment counts one started session. It is a separate explicit call
// so a blocked attempt is never counted. Check-then-increment is not
// atomic across devices; a user racing two clients can exceed the
// limit by one, which is acceptable for a soft quota.
func (s *Service) Increment(ctx context.Context, userID string, tier Tier) error {
	cfg, ok := s.tiers[tier]
	if !ok || !cfg.Enabled {
		return nil
	}

	key := s.periodKey(cfg.Period)

	rec, err := s.load(ctx, userID, tier)
	if err != nil {
		return err
	}

	if rec == nil || rec.Date != key {
		rec = &record{Date: key}
	}
	rec.Count++

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal usage record: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(userID, tier), b, 14*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("store usage record: %w", err)
	}

	return nil
}

func (s *Service) load(ctx context.Context, userID string, tier Tier) (*record, error) {
	b, err := s.redis.Get(ctx, s.key(userID, tier)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load usage record: %w", err)
	}

	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		// Malformed counters read as zero usage, never as an error.
		slog.WarnContext(ctx, "usage: discarding malformed record",
			"user", userID,
			"tier", tier,
			"error", err,
		)
		return nil, nil
	}

	return &rec, nil
}

// periodKey renders the current period as DD/MM/YYYY: today for daily
// limits, the most recent Monday for weekly ones (Sunday counts as
// day 7).
func (s *Service) periodKey(p Period) string {
	t := s.now()
	if p == PeriodWeekly {
		dow := int(t.Weekday())
		if dow == 0 {
			dow = 7
		}
		t = t.AddDate(0, 0, -(dow - 1))
	}

	return t.Format("02/01/2006")
}

func (s *Service) key(userID string, tier Tier) string {
	return fmt.Sprintf("%s:usage:%s:%s", s.prefix, userID, tier)
}

package notification

import (
	"time"

	"github.com/vimaru/luyenthi/internal/domain"
)

// urgent returns whether a type qualifies for the marquee and the
// one-shot popup. Only special and attention do.
func urgent(t domain.NotificationType) bool {
	return t == domain.NotificationSpecial || t == domain.NotificationAttention
}

// eligible at time now: urgent type and not expired. No expiry means
// always eligible.
func eligible(n domain.Notification, now time.Time) bool {
	if !urgent(n.Type) {
		return false
	}

	return n.ExpireTime == nil || n.ExpireTime.After(now)
}

// MarqueeEligible filters the items the scrolling banner shows.
func MarqueeEligible(items []domain.Notification, now time.Time) []domain.Notification {
	var out []domain.Notification
	for _, n := range items {
		if eligible(n, now) {
			out = append(out, n)
		}
	}

	return out
}

// PickPopup chooses the single item for the one-shot popup: the most
// recent eligible special, falling back to the most recent eligible
// attention. Popup dismissal is tracked client-side per browser
// session; only an inbox soft-delete retires the item for good.
func PickPopup(items []domain.Notification, now time.Time) *domain.Notification {
	var special, attention *domain.Notification
	for i := range items {
		n := items[i]
		if !eligible(n, now) {
			continue
		}

		switch n.Type {
		case domain.NotificationSpecial:
			if special == nil || n.CreateTime.After(special.CreateTime) {
				special = &items[i]
			}
		case domain.NotificationAttention:
			if attention == nil || n.CreateTime.After(attention.CreateTime) {
				attention = &items[i]
			}
		}
	}

	if special != nil {
		return special
	}

	return attention
}

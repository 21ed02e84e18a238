package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"tickalert/internal/application/port"
)

// AlertService throttles alert delivery per security id. The last-sent
// timestamp advances only after the notifier reports success, so a failed
// delivery leaves the next tick eligible immediately.
type AlertService struct {
	notifier port.Notifier
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewAlertService(notifier port.Notifier, interval time.Duration) *AlertService {
	return &AlertService{
		notifier: notifier,
		interval: interval,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// MaybeNotify delivers an alert for t unless one was already delivered for
// the same security within the configured interval. Delivery failures are
// logged and swallowed; they must never reach the feed loop.
func (s *AlertService) MaybeNotify(ctx context.Context, t port.Tick, displayName string) {
	now := s.now()

	s.mu.Lock()
	last, seen := s.lastSent[t.SecurityID]
	s.mu.Unlock()

	if seen && now.Sub(last) < s.interval {
		log.Debug().Str("security_id", t.SecurityID).Msg("throttled, skipping alert")
		return
	}

	a := port.Alert{
		SecurityID:  t.SecurityID,
		DisplayName: displayName,
		PriceStr:    t.PriceStr,
		PriceNum:    t.PriceNum,
		At:          now,
	}
	if err := s.notifier.Notify(ctx, a); err != nil {
		log.Warn().Err(err).Str("security_id", t.SecurityID).Msg("alert delivery failed")
		return
	}

	s.mu.Lock()
	s.lastSent[t.SecurityID] = s.now()
	s.mu.Unlock()

	log.Info().Str("security_id", t.SecurityID).Float64("ltp", t.PriceNum).Msg("alert sent")
}

package watch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tickalert/internal/application/port"
)

// Alerter decides whether a tick becomes an outbound notification.
type Alerter interface {
	MaybeNotify(ctx context.Context, t port.Tick, displayName string)
}

type ServiceDeps struct {
	Dialer    port.Dialer
	Normalize func(raw any) (port.Tick, bool)
	Alerter   Alerter

	SecurityID  string // watched instrument
	DisplayName string // friendly name for the watched instrument

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Service owns the feed session lifecycle: dial, pump frames through the
// normalize -> cache -> alert pipeline, reconnect with exponential backoff
// when the stream ends. Frame-level failures never terminate the loop;
// only context cancellation does.
type Service struct {
	deps  ServiceDeps
	state *State
	wait  func(ctx context.Context, d time.Duration) bool
}

func NewService(deps ServiceDeps) *Service {
	if deps.InitialBackoff <= 0 {
		deps.InitialBackoff = time.Second
	}
	if deps.MaxBackoff <= 0 {
		deps.MaxBackoff = 60 * time.Second
	}
	return &Service{deps: deps, state: NewState(), wait: waitCtx}
}

// State exposes the latest-price cache.
func (s *Service) State() *State { return s.state }

func (s *Service) Run(ctx context.Context) error {
	bo := newBackoff(s.deps.InitialBackoff, s.deps.MaxBackoff)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Info().Str("feed", s.deps.Dialer.Name()).Msg("feed connecting")
		sess, err := s.deps.Dialer.Dial(ctx)
		if err != nil {
			d := bo.delay()
			log.Error().Err(err).Str("feed", s.deps.Dialer.Name()).Dur("retry_in", d).Msg("feed dial failed")
			if !s.wait(ctx, d) {
				return ctx.Err()
			}
			continue
		}

		// A started session resets the backoff: the next failure retries
		// from the initial delay again.
		bo.reset()
		log.Info().Str("feed", s.deps.Dialer.Name()).Msg("feed running")

		runErr := sess.Run(ctx, func(raw []byte) { s.handle(ctx, raw) })
		_ = sess.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Run returning at all is an unexpected disconnect.
		d := bo.delay()
		log.Warn().Err(runErr).Str("feed", s.deps.Dialer.Name()).Dur("retry_in", d).Msg("feed disconnected, reconnecting")
		if !s.wait(ctx, d) {
			return ctx.Err()
		}
	}
}

func (s *Service) handle(ctx context.Context, raw []byte) {
	t, ok := s.deps.Normalize(raw)
	if !ok {
		log.Debug().Int("bytes", len(raw)).Msg("frame ignored (no security/price)")
		return
	}

	if s.state.Apply(t) {
		log.Info().Str("security_id", t.SecurityID).Str("ltp", t.PriceStr).Msg("tick")
	}

	name := s.deps.DisplayName
	if t.SecurityID != s.deps.SecurityID || name == "" {
		name = "Security " + t.SecurityID
	}
	s.deps.Alerter.MaybeNotify(ctx, t, name)
}

// waitCtx blocks for d unless ctx is cancelled first; reports whether the
// full delay elapsed.
func waitCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

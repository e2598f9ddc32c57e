package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultLogoutLead fires the forced logout slightly before the
	// credential's true expiry so no request is ever sent with a dead token.
	DefaultLogoutLead = 1 * time.Second

	// DefaultPollInterval re-validates the credential periodically, guarding
	// against system clock changes that invalidate the one-shot timer.
	DefaultPollInterval = 30 * time.Second
)

// Supervisor forces a logout at (or slightly before) credential expiry.
// Two triggers feed one idempotent expiry routine: a one-shot timer armed for
// time-until-expiry minus the lead, and a recurring poll that re-reads the
// credential. The onExpired callback runs at most once per Start and only for
// supervisor-detected expiry, never for a user-initiated Stop — callers use
// that distinction to present a "session expired" notice.
type Supervisor struct {
	oracle    *Oracle
	onExpired func()
	lead      time.Duration
	pollEvery time.Duration
	log       zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	ticker  *time.Ticker
	done    chan struct{}
	running bool
}

// SupervisorOption modifies a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithLogoutLead overrides how early before expiry the forced logout fires.
func WithLogoutLead(lead time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.lead = lead
	}
}

// WithPollInterval overrides the recurring re-validation interval.
func WithPollInterval(interval time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.pollEvery = interval
	}
}

// WithLogger sets the supervisor's logger.
func WithLogger(log zerolog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.log = log
	}
}

// NewSupervisor creates a Supervisor. onExpired is invoked exactly once when
// the supervisor itself detects expiry.
func NewSupervisor(oracle *Oracle, onExpired func(), options ...SupervisorOption) (*Supervisor, error) {
	if oracle == nil {
		return nil, errors.New("[session.NewSupervisor] oracle is required")
	}
	if onExpired == nil {
		return nil, errors.New("[session.NewSupervisor] onExpired callback is required")
	}

	supervisor := &Supervisor{
		oracle:    oracle,
		onExpired: onExpired,
		lead:      DefaultLogoutLead,
		pollEvery: DefaultPollInterval,
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(supervisor)
	}
	return supervisor, nil
}

// Start arms the expiry timer and the re-validation poll. Starting an already
// running supervisor is a no-op.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})

	delay := s.oracle.TimeUntilExpiry() - s.lead
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, s.expire)
	s.ticker = time.NewTicker(s.pollEvery)
	go s.poll(s.ticker, s.done)

	s.log.Debug().Dur("logout_in", delay).Msg("session supervisor armed")
}

// Stop cancels the timer and poll without invoking the expiry callback. It is
// idempotent and must be called when the authenticated view is torn down.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) poll(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !s.oracle.IsAuthenticated() {
				s.expire()
				return
			}
		}
	}
}

// expire is the single forced-logout routine shared by both triggers.
func (s *Supervisor) expire() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.mu.Unlock()

	s.log.Info().Msg("session expired, forcing logout")
	s.onExpired()
}

func (s *Supervisor) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	s.timer.Stop()
	s.ticker.Stop()
	close(s.done)
}

// Package refresh obtains a new access credential when the current one is
// missing or expired. Two deployment modes exist: the refresh credential
// either travels as a server-managed cookie or sits in the store and is sent
// in the request payload. Neither mode retries on its own, and a refresh call
// never triggers another refresh: the strategies speak plain HTTP, bypassing
// the authenticated pipeline entirely.
package refresh

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Strategy performs one refresh attempt against the auth service.
type Strategy interface {
	Refresh(ctx context.Context) (string, error)
}

// Coordinator coalesces concurrent refresh attempts behind a single in-flight
// call: N callers that observe an expired credential at the same time produce
// exactly one network request, and all N receive its outcome.
type Coordinator struct {
	strategy Strategy
	group    singleflight.Group
	log      zerolog.Logger
}

// CoordinatorOption modifies a Coordinator instance.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(log zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.log = log
	}
}

// NewCoordinator creates a Coordinator over the given strategy.
func NewCoordinator(strategy Strategy, options ...CoordinatorOption) (*Coordinator, error) {
	if strategy == nil {
		return nil, errors.New("[refresh.NewCoordinator] strategy is required")
	}

	coordinator := &Coordinator{
		strategy: strategy,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(coordinator)
	}
	return coordinator, nil
}

// Refresh returns a new access credential, already written to the store by
// the strategy. On failure the store has been cleared (fail-closed) and the
// caller decides whether to surface a session-expired condition.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	// The first caller's context governs the coalesced call; latecomers
	// share its outcome.
	value, err, shared := c.group.Do("refresh", func() (any, error) {
		return c.strategy.Refresh(ctx)
	})
	if err != nil {
		c.log.Warn().Err(err).Bool("coalesced", shared).Msg("credential refresh failed")
		return "", err
	}

	c.log.Debug().Bool("coalesced", shared).Msg("credential refreshed")
	return value.(string), nil
}

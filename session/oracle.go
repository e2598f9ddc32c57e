// Package session answers whether a usable credential exists and supervises
// the lifetime of an authenticated session.
package session

import (
	"time"

	"github.com/pkg/errors"

	"github.com/fleetdesk/go-client/credstore"
	"github.com/fleetdesk/go-client/token"
)

// DefaultSkewBuffer is the safety margin subtracted from a credential's
// nominal expiry to absorb clock drift between client and server. 5 seconds
// keeps silent refresh close to the true expiry; anything shorter risks
// presenting a token the server already considers dead.
const DefaultSkewBuffer = 5 * time.Second

// Oracle is a pure predicate over the credential store: no writes, no network
// calls. Route guards and the lifetime supervisor both consult it.
type Oracle struct {
	store *credstore.Store
	skew  time.Duration
	now   func() time.Time
}

// OracleOption modifies an Oracle instance.
type OracleOption func(*Oracle)

// WithSkewBuffer overrides the clock-drift safety margin.
func WithSkewBuffer(skew time.Duration) OracleOption {
	return func(o *Oracle) {
		o.skew = skew
	}
}

// WithNowFunc sets the clock function (primarily for testing).
func WithNowFunc(now func() time.Time) OracleOption {
	return func(o *Oracle) {
		o.now = now
	}
}

// NewOracle creates an Oracle over the given store.
func NewOracle(store *credstore.Store, options ...OracleOption) (*Oracle, error) {
	if store == nil {
		return nil, errors.New("[session.NewOracle] store is required")
	}

	oracle := &Oracle{
		store: store,
		skew:  DefaultSkewBuffer,
		now:   time.Now,
	}
	for _, opt := range options {
		opt(oracle)
	}
	return oracle, nil
}

// IsAuthenticated reports whether a stored access credential exists and has
// not passed its expiry minus the skew buffer. A credential whose expiry
// cannot be decoded counts as expired.
func (o *Oracle) IsAuthenticated() bool {
	claims, ok := o.claims()
	if !ok {
		return false
	}
	return !claims.Expired(o.now(), o.skew)
}

// TimeUntilExpiry returns the remaining lifetime of the stored credential,
// zero when it is absent, undecodable, or already expired.
func (o *Oracle) TimeUntilExpiry() time.Duration {
	claims, ok := o.claims()
	if !ok {
		return 0
	}
	return claims.TimeUntilExpiry(o.now())
}

// Claims returns the decoded claims of the stored access credential, when one
// exists and decodes.
func (o *Oracle) Claims() (*token.Claims, bool) {
	return o.claims()
}

func (o *Oracle) claims() (*token.Claims, bool) {
	credential, ok := o.store.Read(credstore.AccessToken)
	if !ok {
		return nil, false
	}
	claims, err := token.Decode(credential)
	if err != nil {
		return nil, false
	}
	return claims, true
}

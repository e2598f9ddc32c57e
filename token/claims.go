// Package token decodes the payload segment of a compact JWT credential.
// The client treats credentials as opaque bearer secrets; it reads the expiry
// and identity claims but never verifies the signature — validity is the
// server's concern.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/fleetdesk/go-client/internal/utils"
)

// ErrUndecodable is returned for any structurally malformed credential:
// missing segments, invalid base64, or an unparseable JSON payload.
var ErrUndecodable = errors.New("undecodable token")

// Claims holds the decoded payload of an access credential. Pointer fields
// distinguish an absent claim from a zero value.
type Claims struct {
	Exp   *int64   `json:"exp,omitempty"`   // Expiration, seconds since epoch
	Iat   *int64   `json:"iat,omitempty"`   // Issued at time
	Sub   *string  `json:"sub,omitempty"`   // Subject - the user's unique ID
	Email *string  `json:"email,omitempty"` // User's email address
	Roles []string `json:"roles,omitempty"` // Roles assigned to the user
}

// Decode extracts the claims from a credential without verifying its
// signature. It never panics; every structural failure maps to ErrUndecodable.
func Decode(credential string) (*Claims, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrUndecodable
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(credential, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUndecodable, err.Error())
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, ErrUndecodable
	}

	claims := &Claims{}
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.Exp = utils.Ptr(int64(exp))
	}
	if iat, ok := mapClaims["iat"].(float64); ok {
		claims.Iat = utils.Ptr(int64(iat))
	}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Sub = utils.Ptr(sub)
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = utils.Ptr(email)
	}
	if roles, ok := mapClaims["roles"].([]any); ok {
		claims.Roles = utils.ToStringSlice(roles)
	}

	return claims, nil
}

// ExpiresAt returns the expiry as a time. The second return is false when the
// credential carries no exp claim.
func (c *Claims) ExpiresAt() (time.Time, bool) {
	if c == nil || c.Exp == nil {
		return time.Time{}, false
	}
	return time.Unix(*c.Exp, 0), true
}

// Expired reports whether the credential is unusable at the given instant.
// A missing exp claim counts as expired. The skew buffer guards against
// clock drift between client and server.
func (c *Claims) Expired(now time.Time, skew time.Duration) bool {
	expiresAt, ok := c.ExpiresAt()
	if !ok {
		return true
	}
	return !now.Add(skew).Before(expiresAt)
}

// TimeUntilExpiry returns the remaining lifetime of the credential at the
// given instant, never negative. A missing exp claim yields zero.
func (c *Claims) TimeUntilExpiry(now time.Time) time.Duration {
	expiresAt, ok := c.ExpiresAt()
	if !ok {
		return 0
	}
	remaining := expiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

package token_test

import (
	"encoding/base64"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/fleetdesk/go-client/token"
)

const testSigningKey = "test-signing-key"

func mintToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return signed
}

func TestDecodeValidToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	credential := mintToken(t, jwtlib.MapClaims{
		"exp":   exp,
		"sub":   "user-1",
		"email": "john.doe@example.com",
		"roles": []string{"admin", "user"},
	})

	claims, err := token.Decode(credential)
	require.NoError(t, err)
	require.NotNil(t, claims.Exp)
	require.Equal(t, exp, *claims.Exp)
	require.NotNil(t, claims.Sub)
	require.Equal(t, "user-1", *claims.Sub)
	require.NotNil(t, claims.Email)
	require.Equal(t, "john.doe@example.com", *claims.Email)
	require.Equal(t, []string{"admin", "user"}, claims.Roles)
}

func TestDecodeMultiByteClaimValues(t *testing.T) {
	credential := mintToken(t, jwtlib.MapClaims{
		"exp":   time.Now().Add(time.Hour).Unix(),
		"email": "jürgen@example.com",
	})

	claims, err := token.Decode(credential)
	require.NoError(t, err)
	require.Equal(t, "jürgen@example.com", *claims.Email)
}

func TestDecodeMalformedTokens(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":123}`))

	tests := []struct {
		name       string
		credential string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"missing segments", "onlyonesegment"},
		{"two segments", "header." + payload},
		{"invalid base64 payload", "aGVhZGVy.%%%%.c2ln"},
		{"invalid json payload", "aGVhZGVy." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".c2ln"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := token.Decode(tc.credential)
			require.ErrorIs(t, err, token.ErrUndecodable)
			require.Nil(t, claims)
		})
	}
}

func TestExpiredFailsClosedWithoutExpClaim(t *testing.T) {
	credential := mintToken(t, jwtlib.MapClaims{"sub": "user-1"})

	claims, err := token.Decode(credential)
	require.NoError(t, err)
	require.Nil(t, claims.Exp)
	require.True(t, claims.Expired(time.Now(), 0))
	require.Zero(t, claims.TimeUntilExpiry(time.Now()))
}

func TestExpiredAppliesSkewBuffer(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	skew := 5 * time.Second

	tests := []struct {
		name    string
		expIn   time.Duration
		expired bool
	}{
		{"well before expiry", time.Hour, false},
		{"just outside the buffer", 6 * time.Second, false},
		{"inside the buffer", 2 * time.Second, true},
		{"exactly at the buffer", 5 * time.Second, true},
		{"already expired", -time.Minute, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			credential := mintToken(t, jwtlib.MapClaims{"exp": now.Add(tc.expIn).Unix()})
			claims, err := token.Decode(credential)
			require.NoError(t, err)
			require.Equal(t, tc.expired, claims.Expired(now, skew))
		})
	}
}

func TestTimeUntilExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	credential := mintToken(t, jwtlib.MapClaims{"exp": now.Add(90 * time.Second).Unix()})
	claims, err := token.Decode(credential)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, claims.TimeUntilExpiry(now))

	// Past expiry clamps to zero rather than going negative.
	require.Zero(t, claims.TimeUntilExpiry(now.Add(2*time.Minute)))
}

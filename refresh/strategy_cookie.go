package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/fleetdesk/go-client/credstore"
)

// tokenResponse matches the auth service's refresh response body. The refresh
// credential is only present in payload mode.
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

var _ Strategy = (*CookieStrategy)(nil)

// CookieStrategy refreshes via a server-managed cookie: the request carries
// no credentials of its own, the HTTP client's cookie jar attaches the
// refresh cookie automatically. The client must therefore share its jar with
// the one used at login.
type CookieStrategy struct {
	endpoint string
	client   *http.Client
	store    *credstore.Store
}

// NewCookieStrategy creates a cookie-mode refresh strategy. endpoint is the
// absolute URL of the refresh endpoint.
func NewCookieStrategy(endpoint string, client *http.Client, store *credstore.Store) (*CookieStrategy, error) {
	if endpoint == "" {
		return nil, errors.New("[refresh.NewCookieStrategy] endpoint is required")
	}
	if client == nil {
		return nil, errors.New("[refresh.NewCookieStrategy] http client is required")
	}
	if client.Jar == nil {
		return nil, errors.New("[refresh.NewCookieStrategy] http client must carry a cookie jar")
	}
	if store == nil {
		return nil, errors.New("[refresh.NewCookieStrategy] store is required")
	}
	return &CookieStrategy{endpoint: endpoint, client: client, store: store}, nil
}

// Refresh posts to the refresh endpoint with no body and stores the returned
// access credential, preserving the current storage mode. Any failure clears
// the store.
func (s *CookieStrategy) Refresh(ctx context.Context) (string, error) {
	// Capture the mode before Write resets it.
	mode, _ := s.store.ActiveMode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, nil)
	if err != nil {
		return "", s.fail(fmt.Errorf("build refresh request: %w", err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", s.fail(fmt.Errorf("refresh request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", s.fail(fmt.Errorf("refresh rejected with status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", s.fail(fmt.Errorf("read refresh response: %w", err))
	}

	var tokens tokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil || tokens.AccessToken == "" {
		return "", s.fail(fmt.Errorf("malformed refresh response"))
	}

	if err := s.store.Write(tokens.AccessToken, "", mode == credstore.ModeDurable); err != nil {
		return "", s.fail(fmt.Errorf("store refreshed credential: %w", err))
	}
	return tokens.AccessToken, nil
}

// fail clears the store so no credential of unknown validity survives.
func (s *CookieStrategy) fail(cause error) error {
	if clearErr := s.store.Clear(); clearErr != nil {
		return fmt.Errorf("%w (store clear also failed: %s)", cause, clearErr.Error())
	}
	return cause
}

package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/fleetdesk/go-client/credstore"
)

var _ Strategy = (*PayloadStrategy)(nil)

// PayloadStrategy refreshes by posting the stored refresh credential in the
// request body. With no stored refresh credential it fails immediately,
// without a network call.
type PayloadStrategy struct {
	endpoint string
	client   *http.Client
	store    *credstore.Store
}

// NewPayloadStrategy creates a payload-mode refresh strategy. endpoint is the
// absolute URL of the refresh endpoint.
func NewPayloadStrategy(endpoint string, client *http.Client, store *credstore.Store) (*PayloadStrategy, error) {
	if endpoint == "" {
		return nil, errors.New("[refresh.NewPayloadStrategy] endpoint is required")
	}
	if client == nil {
		return nil, errors.New("[refresh.NewPayloadStrategy] http client is required")
	}
	if store == nil {
		return nil, errors.New("[refresh.NewPayloadStrategy] store is required")
	}
	return &PayloadStrategy{endpoint: endpoint, client: client, store: store}, nil
}

// Refresh posts the stored refresh credential and stores both returned
// credentials, preserving the current storage mode. Any failure clears the
// store.
func (s *PayloadStrategy) Refresh(ctx context.Context) (string, error) {
	refreshToken, ok := s.store.Read(credstore.RefreshToken)
	if !ok {
		return "", s.fail(fmt.Errorf("no refresh credential stored"))
	}

	mode, _ := s.store.ActiveMode()

	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", s.fail(fmt.Errorf("encode refresh request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", s.fail(fmt.Errorf("build refresh request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

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

	if err := s.store.Write(tokens.AccessToken, tokens.RefreshToken, mode == credstore.ModeDurable); err != nil {
		return "", s.fail(fmt.Errorf("store refreshed credentials: %w", err))
	}
	return tokens.AccessToken, nil
}

func (s *PayloadStrategy) fail(cause error) error {
	if clearErr := s.store.Clear(); clearErr != nil {
		return fmt.Errorf("%w (store clear also failed: %s)", cause, clearErr.Error())
	}
	return cause
}

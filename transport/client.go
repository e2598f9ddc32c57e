// Package transport implements the authenticated request pipeline: it
// attaches the bearer credential, enforces a per-request timeout, detects
// authorization failure, drives a single silent refresh and retry, and maps
// every transport or HTTP outcome to a typed error.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fleetdesk/go-client/apierr"
	"github.com/fleetdesk/go-client/credstore"
)

// DefaultTimeout bounds every request that does not carry its own timeout.
const DefaultTimeout = 30 * time.Second

// Oracle reports whether a currently usable credential exists. It must be
// side-effect-free.
type Oracle interface {
	IsAuthenticated() bool
}

// Refresher obtains a new access credential and writes it to the store
// before returning.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Client is the authenticated HTTP pipeline for one API base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *credstore.Store
	oracle     Oracle
	refresher  Refresher
	timeout    time.Duration
	log        zerolog.Logger
}

// Option modifies a Client instance.
type Option func(*Client)

// WithTimeout overrides the default per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient sets the underlying HTTP client. The client used here should
// share its cookie jar with the refresh strategy in cookie deployments.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the pipeline's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a pipeline Client rooted at baseURL.
func New(baseURL string, store *credstore.Store, oracle Oracle, refresher Refresher, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[transport.New] baseURL is required")
	}
	if store == nil {
		return nil, errors.New("[transport.New] store is required")
	}
	if oracle == nil {
		return nil, errors.New("[transport.New] oracle is required")
	}
	if refresher == nil {
		return nil, errors.New("[transport.New] refresher is required")
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		store:      store,
		oracle:     oracle,
		refresher:  refresher,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(client)
	}
	return client, nil
}

// Request describes one outbound call.
type Request struct {
	Method       string
	Path         string        // Appended to the client's base URL
	Body         any           // Marshalled to JSON when non-nil
	Header       http.Header   // Caller headers; never override the bearer header
	RequiresAuth bool          // Attach the bearer credential and handle 401
	Timeout      time.Duration // Zero means the client default
}

// Response is a successful outcome. NoContent distinguishes a 204 or empty
// body from a parsed empty object.
type Response struct {
	Status    int
	Body      []byte
	NoContent bool
}

// Decode parses the response body into out. Decoding a no-content response is
// an error so callers never mistake absence for an empty value.
func (r *Response) Decode(out any) error {
	if r.NoContent {
		return apierr.New(apierr.ErrNoContent, r.Status, "response carried no body")
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return apierr.New(apierr.ErrParseFailure, r.Status, err.Error())
	}
	return nil
}

// Do runs the pipeline for one request:
//
//  1. When authentication is required and the oracle reports no usable
//     credential, one refresh is attempted up front; failure means the
//     network call is never issued.
//  2. A 401 response triggers exactly one refresh-and-retry cycle. The store
//     write from the refresh completes before the retry reads its credential.
//  3. Timeouts abort the in-flight call and map to a request-timeout error,
//     distinct from network unreachability.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var payload []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[transport.Do] encode request body")
		}
		payload = data
	}

	requestID := uuid.New().String()
	logger := c.log.With().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("request_id", requestID).
		Logger()

	if req.RequiresAuth && !c.oracle.IsAuthenticated() {
		if _, err := c.refresher.Refresh(ctx); err != nil {
			logger.Warn().Err(err).Msg("no usable credential and refresh failed")
			return nil, apierr.SessionExpired()
		}
	}

	for attempt := 0; ; attempt++ {
		httpReq, err := c.build(ctx, req, payload, requestID)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isTimeout(err) {
				logger.Warn().Dur("timeout", timeout).Msg("request timed out")
				return nil, apierr.Timeout("")
			}
			logger.Warn().Err(err).Msg("request failed in transport")
			return nil, apierr.Network(err)
		}

		// A 401 gets exactly one refresh-and-retry cycle; a second 401
		// falls through to the status mapping below.
		if resp.StatusCode == http.StatusUnauthorized && req.RequiresAuth && attempt == 0 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if _, err := c.refresher.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Msg("refresh after 401 failed")
				return nil, apierr.SessionExpired()
			}
			logger.Debug().Msg("credential refreshed, retrying request")
			continue
		}

		return consume(resp)
	}
}

// JSON runs the request and decodes the body into out. A nil out ignores the
// body, so no-content responses satisfy it.
func (c *Client) JSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Get issues an authenticated GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodGet, Path: path, RequiresAuth: true}, out)
}

// Post issues an authenticated POST. out may be nil for no-content endpoints.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodPost, Path: path, Body: body, RequiresAuth: true}, out)
}

// Put issues an authenticated PUT. out may be nil for no-content endpoints.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.JSON(ctx, Request{Method: http.MethodPut, Path: path, Body: body, RequiresAuth: true}, out)
}

// Delete issues an authenticated DELETE, ignoring any response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.JSON(ctx, Request{Method: http.MethodDelete, Path: path, RequiresAuth: true}, nil)
}

func (c *Client) build(ctx context.Context, req Request, payload []byte, requestID string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, errors.Wrap(err, "[transport.build] build request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	if req.RequiresAuth {
		credential, ok := c.store.Read(credstore.AccessToken)
		if !ok {
			return nil, apierr.SessionExpired()
		}
		// Set last so caller headers can never override the bearer header.
		httpReq.Header.Set("Authorization", "Bearer "+credential)
	}
	return httpReq, nil
}

func consume(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Best effort on the error body; an unreadable body falls back to
		// the status's standard reason phrase inside FromStatus.
		text := ""
		if readErr == nil {
			text = strings.TrimSpace(string(body))
		}
		return nil, apierr.FromStatus(resp.StatusCode, text)
	}

	if readErr != nil {
		return nil, apierr.Network(readErr)
	}

	if resp.StatusCode == http.StatusNoContent || len(body) == 0 {
		return &Response{Status: resp.StatusCode, NoContent: true}, nil
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/fleetdesk/go-client/apierr"
	"github.com/fleetdesk/go-client/credstore"
	"github.com/fleetdesk/go-client/refresh"
	"github.com/fleetdesk/go-client/session"
	"github.com/fleetdesk/go-client/transport"
)

func mintToken(t *testing.T, expIn time.Duration) string {
	t.Helper()

	claims := jwtlib.MapClaims{"exp": time.Now().Add(expIn).Unix(), "sub": "user-1"}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

type fixture struct {
	store  *credstore.Store
	oracle *session.Oracle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := credstore.New(credstore.NewMemoryBackend(), credstore.NewMemoryBackend())
	require.NoError(t, err)

	oracle, err := session.NewOracle(store)
	require.NoError(t, err)

	return &fixture{store: store, oracle: oracle}
}

// storeRefresher writes a fresh credential into the store, mimicking a
// successful coordinator cycle, and counts its invocations.
type storeRefresher struct {
	store *credstore.Store
	mint  func() string
	fail  bool
	calls atomic.Int32
}

func (r *storeRefresher) Refresh(ctx context.Context) (string, error) {
	r.calls.Add(1)
	if r.fail {
		_ = r.store.Clear()
		return "", apierr.SessionExpired()
	}
	credential := r.mint()
	if err := r.store.Write(credential, "", false); err != nil {
		return "", err
	}
	return credential, nil
}

func newClient(t *testing.T, baseURL string, f *fixture, refresher transport.Refresher, options ...transport.Option) *transport.Client {
	t.Helper()

	client, err := transport.New(baseURL, f.store, f.oracle, refresher, options...)
	require.NoError(t, err)
	return client
}

func TestAttachesBearerAndDefaultHeaders(t *testing.T) {
	f := newFixture(t)
	credential := mintToken(t, time.Hour)
	require.NoError(t, f.store.Write(credential, "", false))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+credential, r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		json.NewEncoder(w).Encode(map[string]string{"ok": "true"})
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, &storeRefresher{store: f.store})

	var out map[string]string
	require.NoError(t, client.Get(context.Background(), "/ping", &out))
	require.Equal(t, "true", out["ok"])
}

func TestCallerHeadersNeverOverrideBearer(t *testing.T) {
	f := newFixture(t)
	credential := mintToken(t, time.Hour)
	require.NoError(t, f.store.Write(credential, "", false))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+credential, r.Header.Get("Authorization"))
		require.Equal(t, "text/csv", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, &storeRefresher{store: f.store})

	header := http.Header{}
	header.Set("Authorization", "Bearer forged")
	header.Set("Accept", "text/csv")

	_, err := client.Do(context.Background(), transport.Request{
		Method:       http.MethodGet,
		Path:         "/export",
		Header:       header,
		RequiresAuth: true,
	})
	require.NoError(t, err)
}

func TestExpiredCredentialRefreshedBeforeNetworkCall(t *testing.T) {
	f := newFixture(t)
	// Expires in 2 seconds; the 5 second skew buffer makes this already dead.
	require.NoError(t, f.store.Write(mintToken(t, 2*time.Second), "", false))

	refresher := &storeRefresher{store: f.store, mint: func() string { return mintToken(t, time.Hour) }}

	var sawStale atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refresher.calls.Load() == 0 {
			sawStale.Store(true)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, refresher)

	_, err := client.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/Device", RequiresAuth: true})
	require.NoError(t, err)
	require.Equal(t, int32(1), refresher.calls.Load())
	require.False(t, sawStale.Load(), "request must not be issued before the refresh completes")
}

func TestPreflightRefreshFailureSkipsNetworkCall(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(mintToken(t, -time.Minute), "", false))

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, &storeRefresher{store: f.store, fail: true})

	_, err := client.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/Device", RequiresAuth: true})
	require.True(t, apierr.IsUnauthorized(err))
	require.Zero(t, hits.Load())
}

func TestSingleRefreshAndRetryOn401(t *testing.T) {
	f := newFixture(t)
	initial := mintToken(t, time.Hour)
	require.NoError(t, f.store.Write(initial, "", false))

	fresh := mintToken(t, 2*time.Hour)
	refresher := &storeRefresher{store: f.store, mint: func() string { return fresh }}

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			require.Equal(t, "Bearer "+initial, r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		// The retry must carry the refreshed credential.
		require.Equal(t, "Bearer "+fresh, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1}})
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, refresher)

	var out []map[string]any
	require.NoError(t, client.Get(context.Background(), "/Device", &out))
	require.Len(t, out, 1)
	require.Equal(t, int32(1), refresher.calls.Load())
	require.Equal(t, int32(2), hits.Load())
}

func TestRefreshFailureAfter401RejectsUnauthorizedAndEmptiesStore(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(mintToken(t, time.Hour), "refresh-1", false))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, &storeRefresher{store: f.store, fail: true})

	_, err := client.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/Device", RequiresAuth: true})
	require.True(t, apierr.IsUnauthorized(err))

	_, ok := f.store.Read(credstore.AccessToken)
	require.False(t, ok)
	_, ok = f.store.Read(credstore.RefreshToken)
	require.False(t, ok)
}

func TestPersistent401DoesNotLoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(mintToken(t, time.Hour), "", false))

	refresher := &storeRefresher{store: f.store, mint: func() string { return mintToken(t, time.Hour) }}

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, refresher)

	_, err := client.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/Device", RequiresAuth: true})
	require.True(t, apierr.IsUnauthorized(err))

	// Original call, one refresh, one retry. Never more.
	require.Equal(t, int32(2), hits.Load())
	require.Equal(t, int32(1), refresher.calls.Load())
}

func TestConcurrentExpiredCallsTriggerExactlyOneRefresh(t *testing.T) {
	f := newFixture(t)
	// Everyone starts with the same expired credential.
	require.NoError(t, f.store.Write(mintToken(t, -time.Minute), "refresh-1", false))

	var refreshHits atomic.Int32
	fresh := mintToken(t, time.Hour)

	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshHits.Add(1)
		time.Sleep(30 * time.Millisecond) // let callers pile up on the flight
		json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  fresh,
			"refreshToken": "refresh-2",
		})
	}))
	defer authServer.Close()

	strategy, err := refresh.NewPayloadStrategy(authServer.URL, &http.Client{}, f.store)
	require.NoError(t, err)
	coordinator, err := refresh.NewCoordinator(strategy)
	require.NoError(t, err)

	resourceServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer resourceServer.Close()

	client := newClient(t, resourceServer.URL, f, coordinator)

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/Device", RequiresAuth: true})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	require.Equal(t, int32(1), refreshHits.Load())
}

func TestTimeoutAbortsInFlightCall(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := newClient(t, server.URL, f, &storeRefresher{store: f.store})

	started := time.Now()
	_, err := client.Do(context.Background(), transport.Request{
		Method:  http.MethodGet,
		Path:    "/slow",
		Timeout: 60 * time.Millisecond,
	})
	require.True(t, apierr.IsTimeout(err))
	require.Less(t, time.Since(started), time.Second, "the transport call must be aborted, not awaited")
}

func TestNoContentIsDistinctFromEmptyObject(t *testing.T) {
	f := newFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, &storeRefresher{store: f.store})

	resp, err := client.Do(context.Background(), transport.Request{Method: http.MethodDelete, Path: "/Device/1"})
	require.NoError(t, err)
	require.True(t, resp.NoContent)

	var out map[string]any
	err = resp.Decode(&out)
	require.ErrorIs(t, err, apierr.ErrNoContent)
}

func TestEmptySuccessBodyMapsToNoContent(t *testing.T) {
	f := newFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, &storeRefresher{store: f.store})

	resp, err := client.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/empty"})
	require.NoError(t, err)
	require.True(t, resp.NoContent)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
		text   string
	}{
		{"bad request", http.StatusBadRequest, "deviceName is required", apierr.ErrValidation, "deviceName is required"},
		{"unprocessable", http.StatusUnprocessableEntity, "invalid asset", apierr.ErrValidation, "invalid asset"},
		{"not found", http.StatusNotFound, "", apierr.ErrNotFound, http.StatusText(http.StatusNotFound)},
		{"conflict", http.StatusConflict, "device already assigned", apierr.ErrConflict, "device already assigned"},
		{"server error", http.StatusInternalServerError, "boom", apierr.ErrServerError, "boom"},
		{"bad gateway", http.StatusBadGateway, "", apierr.ErrServerError, http.StatusText(http.StatusBadGateway)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				if tc.body != "" {
					w.Write([]byte(tc.body))
				}
			}))
			defer server.Close()

			client := newClient(t, server.URL, f, &storeRefresher{store: f.store})

			_, err := client.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/x"})
			require.ErrorIs(t, err, tc.kind)

			var apiErr *apierr.Error
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tc.status, apiErr.Status)
			require.Equal(t, tc.text, apiErr.Message)
		})
	}
}

func TestParseFailureOnMalformedSuccessBody(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Write(mintToken(t, time.Hour), "", false))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := newClient(t, server.URL, f, &storeRefresher{store: f.store})

	var out map[string]any
	err := client.Get(context.Background(), "/x", &out)
	require.ErrorIs(t, err, apierr.ErrParseFailure)
}

func TestNetworkErrorMapsToUnreachable(t *testing.T) {
	f := newFixture(t)

	// A closed server yields a connection error, not a timeout.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newClient(t, server.URL, f, &storeRefresher{store: f.store})

	_, err := client.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "/x"})
	require.ErrorIs(t, err, apierr.ErrNetworkUnreachable)
}

// Package console is the application-facing surface of the SDK. It owns the
// credential store, the session oracle, the refresh coordinator, the request
// pipelines for both services, and the lifetime supervisor, and exposes the
// small interface a UI needs: IsAuthenticated, Login, Logout, and the typed
// resource clients.
package console

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/fleetdesk/go-client/api"
	"github.com/fleetdesk/go-client/credstore"
	"github.com/fleetdesk/go-client/internal/config"
	"github.com/fleetdesk/go-client/refresh"
	"github.com/fleetdesk/go-client/session"
	"github.com/fleetdesk/go-client/token"
	"github.com/fleetdesk/go-client/transport"
	"github.com/fleetdesk/go-client/users"
)

// Console composes the token lifecycle and the resource clients behind one
// object owned by the application for its whole lifetime.
type Console struct {
	cfg        config.Config
	httpClient *http.Client
	store      *credstore.Store
	oracle     *session.Oracle
	auth       *api.AuthAPI
	usersAPI   *api.UsersAPI
	devices    *api.DevicesAPI
	assets     *api.AssetsAPI
	directory  users.Directory
	onExpired  func()
	log        zerolog.Logger
	now        func() time.Time

	mu         sync.Mutex
	current    *users.User
	record     *session.Record
	supervisor *session.Supervisor
}

// Option modifies a Console instance.
type Option func(*Console)

// WithLogger sets the logger used across the SDK's components.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Console) {
		c.log = log
	}
}

// WithDirectory supplies a directory for mapping login emails to display
// profiles. Without one, profiles derive from token claims alone.
func WithDirectory(directory users.Directory) Option {
	return func(c *Console) {
		c.directory = directory
	}
}

// WithSessionExpiredHandler registers a callback invoked when the supervisor
// forces a logout, so the UI can present a session-expired notice instead of
// a silent redirect. User-initiated logout never triggers it.
func WithSessionExpiredHandler(handler func()) Option {
	return func(c *Console) {
		c.onExpired = handler
	}
}

// WithNowFunc sets the clock function (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(c *Console) {
		c.now = now
	}
}

// New assembles a Console from configuration. The persisted storage mode, if
// any, is recovered before any credential is read, so a durable session from
// a previous run is usable immediately.
func New(cfg config.Config, options ...Option) (*Console, error) {
	if cfg == nil {
		return nil, errors.New("[console.New] config is required")
	}

	c := &Console{
		cfg:       cfg,
		onExpired: func() {},
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range options {
		opt(c)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "[console.New] create cookie jar")
	}
	c.httpClient = &http.Client{Jar: jar}

	c.store, err = credstore.NewDefault(cfg.GetDataFolder())
	if err != nil {
		return nil, err
	}

	c.oracle, err = session.NewOracle(c.store, session.WithNowFunc(c.now))
	if err != nil {
		return nil, err
	}

	coordinator, err := c.buildCoordinator()
	if err != nil {
		return nil, err
	}

	authClient, err := transport.New(cfg.GetAuthBaseURL(), c.store, c.oracle, coordinator,
		transport.WithHTTPClient(c.httpClient),
		transport.WithTimeout(cfg.GetRequestTimeout()),
		transport.WithLogger(c.log),
	)
	if err != nil {
		return nil, err
	}

	resourceClient, err := transport.New(cfg.GetResourceBaseURL(), c.store, c.oracle, coordinator,
		transport.WithHTTPClient(c.httpClient),
		transport.WithTimeout(cfg.GetRequestTimeout()),
		transport.WithLogger(c.log),
	)
	if err != nil {
		return nil, err
	}

	if c.auth, err = api.NewAuthAPI(authClient, c.store, api.WithAuthLogger(c.log)); err != nil {
		return nil, err
	}
	if c.usersAPI, err = api.NewUsersAPI(resourceClient); err != nil {
		return nil, err
	}
	if c.devices, err = api.NewDevicesAPI(resourceClient); err != nil {
		return nil, err
	}
	if c.assets, err = api.NewAssetsAPI(resourceClient); err != nil {
		return nil, err
	}

	if mode, ok := c.store.ActiveMode(); ok {
		c.log.Debug().Str("mode", string(mode)).Bool("authenticated", c.oracle.IsAuthenticated()).
			Msg("recovered persisted session state")
	}
	return c, nil
}

func (c *Console) buildCoordinator() (*refresh.Coordinator, error) {
	endpoint := c.cfg.GetAuthBaseURL() + "/auth/refresh"

	var strategy refresh.Strategy
	var err error
	switch c.cfg.GetRefreshStrategy() {
	case config.RefreshPayload:
		strategy, err = refresh.NewPayloadStrategy(endpoint, c.httpClient, c.store)
	default:
		strategy, err = refresh.NewCookieStrategy(endpoint, c.httpClient, c.store)
	}
	if err != nil {
		return nil, err
	}
	return refresh.NewCoordinator(strategy, refresh.WithLogger(c.log))
}

// IsAuthenticated reports whether a usable credential exists right now.
func (c *Console) IsAuthenticated() bool {
	return c.oracle.IsAuthenticated()
}

// Login authenticates, stores the credentials in the compartment selected by
// remember, builds the current user's profile, and arms the lifetime
// supervisor.
func (c *Console) Login(ctx context.Context, email, password string, remember bool) (*users.User, error) {
	tokens, err := c.auth.Login(ctx, email, password, remember)
	if err != nil {
		return nil, err
	}

	claims, err := token.Decode(tokens.AccessToken)
	if err != nil {
		// A credential the client cannot read an expiry from is unusable.
		c.store.Clear()
		return nil, err
	}

	user := c.resolveProfile(email, claims)
	mode := credstore.ModeEphemeral
	if remember {
		mode = credstore.ModeDurable
	}

	c.mu.Lock()
	c.current = user
	c.record = session.NewRecord(mode, c.now())
	c.mu.Unlock()

	c.startSupervisor()
	return user, nil
}

// Logout ends the session at the user's request: the supervisor is torn down
// first so it cannot fire against a session that is already gone.
func (c *Console) Logout(ctx context.Context) error {
	c.stopSupervisor()

	err := c.auth.Logout(ctx)

	c.mu.Lock()
	c.current = nil
	c.record = nil
	c.mu.Unlock()

	return err
}

// CurrentUser returns the authenticated user's profile, nil when logged out.
func (c *Console) CurrentUser() *users.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// CurrentSession returns the active session record, nil when logged out.
func (c *Console) CurrentSession() *session.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// UpdateProfile applies an explicit profile update to the current user. It is
// the only sanctioned partial mutation of the profile.
func (c *Console) UpdateProfile(apply func(*users.User)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}
	updated := *c.current
	apply(&updated)
	c.current = &updated
}

// Users returns the user-record client.
func (c *Console) Users() *api.UsersAPI {
	return c.usersAPI
}

// Devices returns the device client.
func (c *Console) Devices() *api.DevicesAPI {
	return c.devices
}

// Assets returns the asset client.
func (c *Console) Assets() *api.AssetsAPI {
	return c.assets
}

// Auth returns the auth service client, for registration flows.
func (c *Console) Auth() *api.AuthAPI {
	return c.auth
}

// Close tears down the supervisor. The store is left as-is: a durable session
// must survive a clean shutdown.
func (c *Console) Close() {
	c.stopSupervisor()
}

func (c *Console) resolveProfile(email string, claims *token.Claims) *users.User {
	if c.directory != nil {
		profile, err := c.directory.Lookup(email)
		if err == nil {
			return profile
		}
		if !stderrors.Is(err, users.ErrNotInDirectory) {
			c.log.Warn().Err(err).Str("email", email).Msg("directory lookup failed, deriving profile from claims")
		}
	}

	user := users.FromClaims(claims, c.now())
	if user.Email == "" {
		user.Email = email
	}
	if user.Username == "" {
		user.Username = email
	}
	return user
}

func (c *Console) startSupervisor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.supervisor != nil {
		c.supervisor.Stop()
	}

	supervisor, err := session.NewSupervisor(c.oracle, c.handleForcedLogout, session.WithLogger(c.log))
	if err != nil {
		// Unreachable with a live oracle; logged rather than swallowed.
		c.log.Error().Err(err).Msg("failed to arm session supervisor")
		return
	}
	c.supervisor = supervisor
	c.supervisor.Start()
}

func (c *Console) stopSupervisor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.supervisor != nil {
		c.supervisor.Stop()
		c.supervisor = nil
	}
}

// handleForcedLogout applies the logout side effects when the supervisor
// detects expiry: credentials cleared, profile dropped, UI notified with the
// session-expired reason.
func (c *Console) handleForcedLogout() {
	if err := c.store.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("failed to clear store on forced logout")
	}

	c.mu.Lock()
	c.current = nil
	c.record = nil
	c.supervisor = nil
	c.mu.Unlock()

	c.onExpired()
}

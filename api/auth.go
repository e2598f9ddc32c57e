package api

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fleetdesk/go-client/credstore"
	"github.com/fleetdesk/go-client/transport"
	"github.com/fleetdesk/go-client/validate"
)

// AuthAPI talks to the auth service. Login and logout own the credential
// store writes; everything else in the SDK only reads it.
type AuthAPI struct {
	client    *transport.Client
	store     *credstore.Store
	validator *validate.Validator
	log       zerolog.Logger
}

// AuthOption modifies an AuthAPI instance.
type AuthOption func(*AuthAPI)

// WithAuthLogger sets the AuthAPI's logger.
func WithAuthLogger(log zerolog.Logger) AuthOption {
	return func(a *AuthAPI) {
		a.log = log
	}
}

// NewAuthAPI creates an auth service client. The transport client must be
// rooted at the auth service's base URL.
func NewAuthAPI(client *transport.Client, store *credstore.Store, options ...AuthOption) (*AuthAPI, error) {
	if client == nil {
		return nil, errors.New("[api.NewAuthAPI] transport client is required")
	}
	if store == nil {
		return nil, errors.New("[api.NewAuthAPI] store is required")
	}

	authAPI := &AuthAPI{
		client:    client,
		store:     store,
		validator: validate.NewValidator(),
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(authAPI)
	}
	return authAPI, nil
}

// Register creates a new account. POST /auth/register.
func (a *AuthAPI) Register(ctx context.Context, username, email, password string) (*RegisterResponse, error) {
	if err := a.validator.ValidateRegistration(username, email, password); err != nil {
		return nil, err
	}

	var response RegisterResponse
	err := a.client.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   RegisterRequest{Username: username, Email: email, Password: password},
	}, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// Login authenticates and stores the returned credentials. persistent selects
// the durable compartment so the session survives restarts. In cookie
// deployments the response carries no refresh token; the refresh cookie lands
// in the shared cookie jar instead.
func (a *AuthAPI) Login(ctx context.Context, email, password string, persistent bool) (*AuthTokens, error) {
	if err := a.validator.ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	var tokens AuthTokens
	err := a.client.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   LoginRequest{Email: email, Password: password},
	}, &tokens)
	if err != nil {
		return nil, err
	}

	if err := a.store.Write(tokens.AccessToken, tokens.RefreshToken, persistent); err != nil {
		return nil, err
	}

	a.log.Info().Str("email", email).Bool("persistent", persistent).Msg("login succeeded")
	return &tokens, nil
}

// Logout tells the auth service to end the session, then clears the store
// regardless of the call's outcome. A dead server must not pin a live
// credential on this client.
func (a *AuthAPI) Logout(ctx context.Context) error {
	err := a.client.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/logout",
	}, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("logout request failed, clearing local session anyway")
	}

	if clearErr := a.store.Clear(); clearErr != nil {
		return clearErr
	}
	return err
}

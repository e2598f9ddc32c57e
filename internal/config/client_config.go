package config

import (
	"strconv"
	"time"
)

// RefreshStrategy selects how the refresh credential travels.
type RefreshStrategy string

const (
	// RefreshCookie relies on a server-managed HttpOnly refresh cookie.
	RefreshCookie RefreshStrategy = "cookie"
	// RefreshPayload stores the refresh credential and posts it in the
	// request body.
	RefreshPayload RefreshStrategy = "payload"
)

type ClientConfig interface {
	GetAuthBaseURL() string
	GetResourceBaseURL() string
	GetRequestTimeout() time.Duration
	GetRefreshStrategy() RefreshStrategy
}

type Client struct{}

var _ ClientConfig = Client{}

// GetAuthBaseURL returns the auth service's base URL.
func (Client) GetAuthBaseURL() string {
	return GetEnv("AUTH_BASE_URL", "https://localhost:7291/api")
}

// GetResourceBaseURL returns the device/asset/user service's base URL.
func (Client) GetResourceBaseURL() string {
	return GetEnv("RESOURCE_BASE_URL", "https://localhost:7018/api")
}

// GetRequestTimeout returns the per-request timeout, configured in seconds.
func (Client) GetRequestTimeout() time.Duration {
	seconds, err := strconv.Atoi(GetEnv("REQUEST_TIMEOUT_SECONDS", "30"))
	if err != nil || seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

// GetRefreshStrategy returns the configured refresh deployment mode,
// defaulting to cookie mode.
func (Client) GetRefreshStrategy() RefreshStrategy {
	if RefreshStrategy(GetEnv("REFRESH_STRATEGY", string(RefreshCookie))) == RefreshPayload {
		return RefreshPayload
	}
	return RefreshCookie
}

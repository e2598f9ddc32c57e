// Package api provides typed clients for the console's REST services: the
// auth service and the device/asset/user resource service. All resource calls
// ride the authenticated pipeline; the callers never see a silent refresh.
package api

// AuthTokens is the auth service's login/refresh response. RefreshToken is
// empty in cookie deployments, where the refresh credential arrives as an
// HttpOnly cookie instead.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is the auth service's registration acknowledgement.
type RegisterResponse struct {
	Message string `json:"message"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// APIUser is a user record from the resource service.
type APIUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SaveUserRequest creates or updates a user record.
type SaveUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Device is a device record, including its asset assignment when one exists.
type Device struct {
	ID          int64   `json:"id"`
	DeviceName  string  `json:"deviceName"`
	Description string  `json:"description"`
	AssetID     *int64  `json:"assetId"`
	AssetName   *string `json:"assetName"`
}

// UnassignedDevice is a device not linked to any asset.
type UnassignedDevice struct {
	ID           int64  `json:"id"`
	DeviceName   string `json:"deviceName"`
	Description  string `json:"description"`
	IsConfigured bool   `json:"isConfigured"`
}

// CreateDeviceRequest is the body of POST /Device.
type CreateDeviceRequest struct {
	DeviceName  string `json:"deviceName"`
	Description string `json:"description"`
}

// UpdateDeviceRequest is the body of PUT /Device/{id}.
type UpdateDeviceRequest struct {
	DeviceName  string `json:"deviceName"`
	Description string `json:"description"`
}

// Asset is an asset record, including its device assignment when one exists.
type Asset struct {
	ID         int64   `json:"id"`
	AssetName  string  `json:"assetName"`
	DeviceID   *int64  `json:"deviceId"`
	DeviceName *string `json:"deviceName"`
}

// AvailableDevice is a device that an asset may be configured with.
type AvailableDevice struct {
	ID           int64  `json:"id"`
	DeviceName   string `json:"deviceName"`
	Description  string `json:"description"`
	IsConfigured bool   `json:"isConfigured"`
}

// CreateAssetRequest is the body of POST /Asset.
type CreateAssetRequest struct {
	AssetName string `json:"assetName"`
}

// UpdateAssetRequest is the body of PUT /Asset/{id}.
type UpdateAssetRequest struct {
	AssetName string `json:"assetName"`
}

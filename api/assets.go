package api

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/fleetdesk/go-client/transport"
)

// AssetsAPI talks to the resource service's /Asset endpoints.
type AssetsAPI struct {
	client *transport.Client
}

// NewAssetsAPI creates an asset client over the resource-service transport.
func NewAssetsAPI(client *transport.Client) (*AssetsAPI, error) {
	if client == nil {
		return nil, errors.New("[api.NewAssetsAPI] transport client is required")
	}
	return &AssetsAPI{client: client}, nil
}

// List returns all assets. GET /Asset.
func (a *AssetsAPI) List(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	if err := a.client.Get(ctx, "/Asset", &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// Get returns one asset. GET /Asset/{id}.
func (a *AssetsAPI) Get(ctx context.Context, id int64) (*Asset, error) {
	var asset Asset
	if err := a.client.Get(ctx, fmt.Sprintf("/Asset/%d", id), &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Create adds an asset. POST /Asset.
func (a *AssetsAPI) Create(ctx context.Context, req CreateAssetRequest) (*Asset, error) {
	var asset Asset
	if err := a.client.Post(ctx, "/Asset", req, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// Update modifies an asset. PUT /Asset/{id}, 204 on success.
func (a *AssetsAPI) Update(ctx context.Context, id int64, req UpdateAssetRequest) error {
	return a.client.Put(ctx, fmt.Sprintf("/Asset/%d", id), req, nil)
}

// Delete removes an asset. DELETE /Asset/{id}, 204 on success.
func (a *AssetsAPI) Delete(ctx context.Context, id int64) error {
	return a.client.Delete(ctx, fmt.Sprintf("/Asset/%d", id))
}

// Configure links a device to an asset. POST /Asset/{id}/configure/{deviceId},
// 204 on success.
func (a *AssetsAPI) Configure(ctx context.Context, assetID, deviceID int64) error {
	return a.client.Post(ctx, fmt.Sprintf("/Asset/%d/configure/%d", assetID, deviceID), nil, nil)
}

// ListAvailableDevices returns devices an asset may be configured with.
// GET /Asset/available-devices.
func (a *AssetsAPI) ListAvailableDevices(ctx context.Context) ([]AvailableDevice, error) {
	var devices []AvailableDevice
	if err := a.client.Get(ctx, "/Asset/available-devices", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

package api

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fleetdesk/go-client/transport"
)

// DevicesAPI talks to the resource service's /Device endpoints.
type DevicesAPI struct {
	client *transport.Client
}

// NewDevicesAPI creates a device client over the resource-service transport.
func NewDevicesAPI(client *transport.Client) (*DevicesAPI, error) {
	if client == nil {
		return nil, errors.New("[api.NewDevicesAPI] transport client is required")
	}
	return &DevicesAPI{client: client}, nil
}

// List returns all devices. GET /Device.
func (d *DevicesAPI) List(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := d.client.Get(ctx, "/Device", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// Get returns one device. GET /Device/{id}.
func (d *DevicesAPI) Get(ctx context.Context, id int64) (*Device, error) {
	var device Device
	if err := d.client.Get(ctx, fmt.Sprintf("/Device/%d", id), &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// Create adds a device. POST /Device.
func (d *DevicesAPI) Create(ctx context.Context, req CreateDeviceRequest) (*Device, error) {
	var device Device
	if err := d.client.Post(ctx, "/Device", req, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// Update modifies a device. PUT /Device/{id}, 204 on success.
func (d *DevicesAPI) Update(ctx context.Context, id int64, req UpdateDeviceRequest) error {
	return d.client.Put(ctx, fmt.Sprintf("/Device/%d", id), req, nil)
}

// Delete removes a device. DELETE /Device/{id}, 204 on success.
func (d *DevicesAPI) Delete(ctx context.Context, id int64) error {
	return d.client.Delete(ctx, fmt.Sprintf("/Device/%d", id))
}

// ListUnassigned returns devices not linked to any asset. GET /Device/unassigned.
func (d *DevicesAPI) ListUnassigned(ctx context.Context) ([]UnassignedDevice, error) {
	var devices []UnassignedDevice
	if err := d.client.Get(ctx, "/Device/unassigned", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// BulkDelete removes several devices concurrently and fails on the first
// error.
func (d *DevicesAPI) BulkDelete(ctx context.Context, ids []int64) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		group.Go(func() error {
			return d.Delete(ctx, id)
		})
	}
	return group.Wait()
}

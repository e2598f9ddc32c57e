package api

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/fleetdesk/go-client/transport"
)

// UsersAPI talks to the resource service's /users endpoints.
type UsersAPI struct {
	client *transport.Client
}

// NewUsersAPI creates a user-record client over the resource-service
// transport.
func NewUsersAPI(client *transport.Client) (*UsersAPI, error) {
	if client == nil {
		return nil, errors.New("[api.NewUsersAPI] transport client is required")
	}
	return &UsersAPI{client: client}, nil
}

// List returns all user records. GET /users.
func (u *UsersAPI) List(ctx context.Context) ([]APIUser, error) {
	var records []APIUser
	if err := u.client.Get(ctx, "/users", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns one user record. GET /users/{id}.
func (u *UsersAPI) Get(ctx context.Context, id int64) (*APIUser, error) {
	var record APIUser
	if err := u.client.Get(ctx, fmt.Sprintf("/users/%d", id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Create adds a user record. POST /users.
func (u *UsersAPI) Create(ctx context.Context, req SaveUserRequest) (*APIUser, error) {
	var record APIUser
	if err := u.client.Post(ctx, "/users", req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Update modifies a user record. PUT /users/{id}, 204 on success.
func (u *UsersAPI) Update(ctx context.Context, id int64, req SaveUserRequest) error {
	return u.client.Put(ctx, fmt.Sprintf("/users/%d", id), req, nil)
}

// Delete removes a user record. DELETE /users/{id}, 204 on success.
func (u *UsersAPI) Delete(ctx context.Context, id int64) error {
	return u.client.Delete(ctx, fmt.Sprintf("/users/%d", id))
}

package directoryfake

import (
	"strings"
	"sync"

	"github.com/fleetdesk/go-client/users"
)

var _ users.Directory = (*FakeDirectory)(nil)

// FakeDirectory is an in-memory email-to-profile map for tests and
// deployments without a real directory.
type FakeDirectory struct {
	profiles map[string]*users.User
	lock     sync.RWMutex
}

func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{profiles: make(map[string]*users.User)}
}

// Upsert stores a profile keyed by its email.
func (d *FakeDirectory) Upsert(user *users.User) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.profiles[strings.ToLower(user.Email)] = user
}

func (d *FakeDirectory) Lookup(email string) (*users.User, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	user, ok := d.profiles[strings.ToLower(email)]
	if !ok {
		return nil, users.ErrNotInDirectory
	}
	return user, nil
}

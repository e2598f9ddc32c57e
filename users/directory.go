package users

import "errors"

// ErrNotInDirectory is returned when a login email has no directory profile.
// Callers fall back to a claims-derived profile.
var ErrNotInDirectory = errors.New("user not in directory")

// Directory maps a login email to a display profile. Deployments back this
// with their own user directory; the fake in directoryfake serves tests and
// standalone use.
type Directory interface {
	Lookup(email string) (*User, error)
}

// Package credstore persists access and refresh credentials in exactly one of
// two storage compartments: durable (survives restarts) or ephemeral (lost
// when the process ends). The active compartment is chosen at write time and
// recorded durably so it can be recovered on the next start before any
// credential is read.
package credstore

import (
	"github.com/pkg/errors"
)

// Kind identifies a stored credential.
type Kind string

const (
	AccessToken  Kind = "access_token"
	RefreshToken Kind = "refresh_token"
)

// modeKey records the active compartment. It lives only in the durable
// compartment so it survives restarts regardless of the chosen mode.
const modeKey = "auth_storage_mode"

// Mode names a storage compartment.
type Mode string

const (
	ModeDurable   Mode = "durable"
	ModeEphemeral Mode = "ephemeral"
)

// Backend is a flat key/value compartment. Implementations must tolerate
// deletes of absent keys.
type Backend interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store coordinates the two compartments. Invariant: after any Write, only
// the chosen compartment holds credentials; the other always reads absent.
type Store struct {
	durable   Backend
	ephemeral Backend
}

// New creates a Store over explicit compartment backends.
func New(durable, ephemeral Backend) (*Store, error) {
	if durable == nil {
		return nil, errors.New("[credstore.New] durable backend is required")
	}
	if ephemeral == nil {
		return nil, errors.New("[credstore.New] ephemeral backend is required")
	}
	return &Store{durable: durable, ephemeral: ephemeral}, nil
}

// NewDefault creates a Store with a file-backed durable compartment rooted at
// dataFolder and an in-memory ephemeral compartment.
func NewDefault(dataFolder string) (*Store, error) {
	durable, err := NewFileBackend(dataFolder)
	if err != nil {
		return nil, err
	}
	return New(durable, NewMemoryBackend())
}

// ActiveMode returns the recorded compartment choice. The second return is
// false when no mode has been recorded (nothing written yet, or the
// bookkeeping itself was lost).
func (s *Store) ActiveMode() (Mode, bool) {
	raw, ok, err := s.durable.Get(modeKey)
	if err != nil || !ok {
		return "", false
	}
	mode := Mode(raw)
	if mode != ModeDurable && mode != ModeEphemeral {
		return "", false
	}
	return mode, true
}

// Read returns the credential of the given kind from the active compartment.
// When the mode bookkeeping is missing it checks both compartments, so a
// credential is never invisible just because the flag was lost.
func (s *Store) Read(kind Kind) (string, bool) {
	mode, ok := s.ActiveMode()
	if !ok {
		if value, found := get(s.durable, kind); found {
			return value, true
		}
		value, found := get(s.ephemeral, kind)
		return value, found
	}
	return get(s.backendFor(mode), kind)
}

// Write stores the credentials in the compartment selected by persistent,
// clearing every key in both compartments first so no orphaned credential
// survives from a previous login. An empty refresh credential is not stored.
func (s *Store) Write(access, refresh string, persistent bool) error {
	if access == "" {
		return errors.New("[credstore.Write] access credential is required")
	}

	if err := s.Clear(); err != nil {
		return err
	}

	mode := ModeEphemeral
	if persistent {
		mode = ModeDurable
	}
	if err := s.durable.Set(modeKey, string(mode)); err != nil {
		return errors.Wrap(err, "[credstore.Write] record storage mode")
	}

	target := s.backendFor(mode)
	if err := target.Set(string(AccessToken), access); err != nil {
		return errors.Wrap(err, "[credstore.Write] store access credential")
	}
	if refresh != "" {
		if err := target.Set(string(RefreshToken), refresh); err != nil {
			return errors.Wrap(err, "[credstore.Write] store refresh credential")
		}
	}
	return nil
}

// Clear removes every key, including the mode flag, from both compartments.
// It is idempotent: clearing an empty store is a no-op.
func (s *Store) Clear() error {
	for _, backend := range []Backend{s.durable, s.ephemeral} {
		for _, key := range []string{string(AccessToken), string(RefreshToken), modeKey} {
			if err := backend.Delete(key); err != nil {
				return errors.Wrap(err, "[credstore.Clear] delete key")
			}
		}
	}
	return nil
}

func (s *Store) backendFor(mode Mode) Backend {
	if mode == ModeDurable {
		return s.durable
	}
	return s.ephemeral
}

// Backend failures on read degrade to absent: the caller treats an unreadable
// credential the same as a missing one.
func get(backend Backend, kind Kind) (string, bool) {
	value, ok, err := backend.Get(string(kind))
	if err != nil || !ok {
		return "", false
	}
	return value, true
}

package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetdesk/go-client/credstore"
)

// Record describes one login session. It is created on successful login,
// replaced wholesale on the next login, and discarded on logout.
type Record struct {
	ID          string         // Unique session identifier (UUID)
	StorageMode credstore.Mode // Compartment holding this session's credentials
	RetrievedAt time.Time      // When the credentials were obtained
}

// NewRecord creates a Record for a freshly established session.
func NewRecord(mode credstore.Mode, now time.Time) *Record {
	return &Record{
		ID:          uuid.New().String(),
		StorageMode: mode,
		RetrievedAt: now,
	}
}

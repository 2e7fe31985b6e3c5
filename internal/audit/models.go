// Package audit keeps an append-only trail of registry domain events. The
// trail is an observer of committed state, never an authority: registry
// reads answer from the store, not from here.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Record is one audit entry. Addresses and ids are stored as strings so the
// trail stays readable by operators without registry type knowledge.
type Record struct {
	ID         uuid.UUID
	Timestamp  time.Time
	EventType  string
	Actor      string
	Subject    string
	DocumentID string
	RequestID  string
	Details    string
}

// Package events defines the registry's domain events. Events are emitted
// only after a mutation has committed; a rejected operation emits nothing.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"certledger/internal/registry/models"
)

// Type names a registry event.
type Type string

const (
	TypeUserRegistered        Type = "UserRegistered"
	TypeRoleUpdated           Type = "RoleUpdated"
	TypeDocumentIssued        Type = "DocumentIssued"
	TypeDocumentRevoked       Type = "DocumentRevoked"
	TypeVerificationRequested Type = "VerificationRequested"
	TypeVerificationCompleted Type = "VerificationCompleted"
)

// Event is transport-agnostic so sinks (audit trail, metrics, future
// brokers) can fan out without the service knowing about them. Fields not
// relevant to a given type stay zero.
type Event struct {
	Type       Type
	Actor      common.Address
	Subject    common.Address
	Role       models.Role
	DocumentID string
	RequestID  common.Hash
	Hash       string
	Verified   bool
	Notes      string
	Timestamp  time.Time
}

// Publisher is implemented by event sinks. Publish must not block registry
// mutations; implementations drop rather than stall.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// ChanPublisher fans events into a buffered channel consumed by the audit
// worker. When the buffer is full the event is dropped and logged; the
// committed registry state, not the event stream, is authoritative.
type ChanPublisher struct {
	out    chan Event
	logger *slog.Logger
}

func NewChanPublisher(buffer int, logger *slog.Logger) *ChanPublisher {
	return &ChanPublisher{
		out:    make(chan Event, buffer),
		logger: logger,
	}
}

// Events exposes the consumer side of the channel.
func (p *ChanPublisher) Events() <-chan Event {
	return p.out
}

func (p *ChanPublisher) Publish(ctx context.Context, event Event) {
	select {
	case p.out <- event:
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "event buffer full, dropping event",
				"type", string(event.Type),
				"document_id", event.DocumentID,
			)
		}
	}
}

// NopPublisher discards all events. Used by tests that only exercise state
// transitions.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

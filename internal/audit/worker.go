package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"certledger/internal/registry/events"
)

// Worker consumes registry events from a channel and persists them as audit
// records. Runs as a background goroutine managed by main's errgroup.
type Worker struct {
	store  Store
	inbox  <-chan events.Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan events.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, ToRecord(event)); err != nil {
				// The trail is best-effort; a failed append must not take
				// the registry down.
				if w.logger != nil {
					w.logger.ErrorContext(ctx, "audit append failed",
						"type", string(event.Type),
						"error", err,
					)
				}
			}
		}
	}
}

// ToRecord converts a registry event into its audit representation.
func ToRecord(event events.Event) Record {
	record := Record{
		ID:         uuid.New(),
		Timestamp:  event.Timestamp,
		EventType:  string(event.Type),
		Actor:      event.Actor.Hex(),
		DocumentID: event.DocumentID,
	}
	if event.Subject != (common.Address{}) {
		record.Subject = event.Subject.Hex()
	}
	if event.RequestID != (common.Hash{}) {
		record.RequestID = event.RequestID.Hex()
	}
	switch event.Type {
	case events.TypeUserRegistered, events.TypeRoleUpdated:
		record.Details = string(event.Role)
	case events.TypeDocumentIssued:
		record.Details = event.Hash
	case events.TypeVerificationCompleted:
		record.Details = fmt.Sprintf("verified=%t notes=%s", event.Verified, event.Notes)
	}
	return record
}

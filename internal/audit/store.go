package audit

import "context"

// Store persists audit records. Append-only; records are never deleted.
type Store interface {
	Append(ctx context.Context, record Record) error
	ListByActor(ctx context.Context, actor string) ([]Record, error)
	ListByDocument(ctx context.Context, documentID string) ([]Record, error)
}

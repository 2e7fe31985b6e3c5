// Package store persists the registry's four tables: roles, documents,
// verification requests, and the append-only reverse indexes. Stores are
// interface-driven so the service stays testable against memory and the
// deployment runs against PostgreSQL without rewiring business code.
package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"certledger/internal/registry/models"
)

// Store is the persistence boundary for the registry service. Creates must
// be conflict-safe: a second create with the same identity returns
// sentinel.ErrConflict rather than overwriting, so monotonic invariants hold
// even if the service-level serialization is ever bypassed.
//
// Reverse-index listings return ids in insertion order and are never pruned;
// a revoked document's id remains listed.
type Store interface {
	// SetRole overwrites the role assigned to addr. Roles are never
	// deleted, only reset to RoleNone.
	SetRole(ctx context.Context, addr common.Address, role models.Role) error
	// Role returns RoleNone for addresses that were never registered.
	Role(ctx context.Context, addr common.Address) (models.Role, error)

	// CreateDocument stores a new document. Returns sentinel.ErrConflict
	// when the id already maps to an existing document.
	CreateDocument(ctx context.Context, doc models.Document) error
	// Document returns sentinel.ErrNotFound for unknown ids.
	Document(ctx context.Context, id string) (models.Document, error)
	// UpdateDocument replaces an existing document record. Returns
	// sentinel.ErrNotFound when it does not exist.
	UpdateDocument(ctx context.Context, doc models.Document) error
	DocumentIDsByRecipient(ctx context.Context, recipient common.Address) ([]string, error)
	DocumentIDsByIssuer(ctx context.Context, issuer common.Address) ([]string, error)
	DocumentCount(ctx context.Context) (uint64, error)

	// CreateRequest stores a new verification request. Returns
	// sentinel.ErrConflict when the derived id already exists.
	CreateRequest(ctx context.Context, req models.VerificationRequest) error
	// Request returns sentinel.ErrNotFound for unknown ids.
	Request(ctx context.Context, id common.Hash) (models.VerificationRequest, error)
	// UpdateRequest replaces an existing request record.
	UpdateRequest(ctx context.Context, req models.VerificationRequest) error
	RequestIDsByDocument(ctx context.Context, documentID string) ([]common.Hash, error)
}

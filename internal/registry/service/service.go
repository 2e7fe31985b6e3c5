// Package service implements the document/verification registry state
// machine. It is the sole authority for document validity and verification
// outcome: every mutation takes an explicit authenticated caller address,
// re-validates its preconditions against committed state, and either fully
// applies or rejects with zero state change and zero emitted events.
package service

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"certledger/internal/registry/events"
	"certledger/internal/registry/metrics"
	"certledger/internal/registry/models"
	"certledger/internal/registry/store"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/requestcontext"
)

// Rejection reasons are part of the public contract; clients match on them.
var (
	ErrNotOwner            = dErrors.New(dErrors.CodeForbidden, "Caller is not the owner")
	ErrInvalidAddress      = dErrors.New(dErrors.CodeBadRequest, "Invalid address")
	ErrInvalidRole         = dErrors.New(dErrors.CodeBadRequest, "Invalid role")
	ErrNotInstitution      = dErrors.New(dErrors.CodeForbidden, "Insufficient permissions")
	ErrEmptyHash           = dErrors.New(dErrors.CodeBadRequest, "Document hash cannot be empty")
	ErrAlreadyIssued       = dErrors.New(dErrors.CodeConflict, "Document already issued")
	ErrDocumentNotFound    = dErrors.New(dErrors.CodeNotFound, "Document does not exist")
	ErrNotIssuer           = dErrors.New(dErrors.CodeForbidden, "Not the document issuer")
	ErrAlreadyRevoked      = dErrors.New(dErrors.CodeConflict, "Document already revoked")
	ErrNotVerifier         = dErrors.New(dErrors.CodeForbidden, "Not a valid verifier")
	ErrNotDocumentOwner    = dErrors.New(dErrors.CodeForbidden, "Not the document owner")
	ErrNotAssignedVerifier = dErrors.New(dErrors.CodeForbidden, "Not the assigned verifier")
	ErrAlreadyProcessed    = dErrors.New(dErrors.CodeConflict, "Request already processed")
	ErrRequestExists       = dErrors.New(dErrors.CodeConflict, "Request already exists")
)

// TxRunner is implemented by stores that can wrap a mutation in a storage
// transaction. The in-memory store doesn't need one; PostgreSQL does.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service owns the four registry tables through its Store. Mutations are
// serialized behind a single mutex, matching the one-writer transaction
// model of the hosting ledger: no two mutations interleave, and every write
// path re-checks its guards against current committed state. Reads go
// straight to the store.
type Service struct {
	mu      sync.Mutex
	owner   common.Address
	store   store.Store
	events  events.Publisher
	metrics *metrics.Metrics
}

// New builds a registry rooted at the given owner address. The owner is a
// configuration-time constant: the sole authority for role grants, with no
// escalation path besides it.
func New(owner common.Address, st store.Store, publisher events.Publisher, m *metrics.Metrics) (*Service, error) {
	if owner == (common.Address{}) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "owner address must not be zero")
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{owner: owner, store: st, events: publisher, metrics: m}, nil
}

// Owner returns the registry's root-of-trust address.
func (s *Service) Owner() common.Address {
	return s.owner
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if runner, ok := s.store.(TxRunner); ok {
		return runner.RunInTx(ctx, fn)
	}
	return fn(ctx)
}

// RegisterUser assigns a role to an address. Owner only; assignment
// overwrites any prior role.
func (s *Service) RegisterUser(ctx context.Context, caller, user common.Address, role models.Role) error {
	return s.assignRole(ctx, "register_user", events.TypeUserRegistered, caller, user, role)
}

// UpdateUserRole re-assigns a role. Identical guards to RegisterUser; kept
// as a distinct operation so the audit trail records intent.
func (s *Service) UpdateUserRole(ctx context.Context, caller, user common.Address, role models.Role) error {
	return s.assignRole(ctx, "update_user_role", events.TypeRoleUpdated, caller, user, role)
}

func (s *Service) assignRole(ctx context.Context, op string, eventType events.Type, caller, user common.Address, role models.Role) error {
	defer s.metrics.ObserveOperation(op, time.Now())

	if caller != s.owner {
		s.metrics.RecordRejection(op)
		return ErrNotOwner
	}
	if user == (common.Address{}) {
		s.metrics.RecordRejection(op)
		return ErrInvalidAddress
	}
	if role == models.RoleNone {
		s.metrics.RecordRejection(op)
		return ErrInvalidRole
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		s.metrics.RecordRejection(op)
		return ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.inTx(ctx, func(ctx context.Context) error {
		return s.store.SetRole(ctx, user, role)
	}); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "failed to assign role", err)
	}

	s.metrics.RecordRoleAssigned()
	s.events.Publish(ctx, events.Event{
		Type:      eventType,
		Actor:     caller,
		Subject:   user,
		Role:      role,
		Timestamp: requestcontext.Now(ctx),
	})
	return nil
}

// IssueDocument records a new certificate. Caller must hold the INSTITUTION
// role; the id must be unused. expirationDays of zero means the document
// never expires.
func (s *Service) IssueDocument(ctx context.Context, caller common.Address, documentID string, recipient common.Address, documentHash, metadataURI string, expirationDays uint32) (models.Document, error) {
	const op = "issue_document"
	defer s.metrics.ObserveOperation(op, time.Now())

	role, err := s.store.Role(ctx, caller)
	if err != nil {
		return models.Document{}, dErrors.Wrap(dErrors.CodeInternal, "failed to resolve caller role", err)
	}
	if role != models.RoleInstitution {
		s.metrics.RecordRejection(op)
		return models.Document{}, ErrNotInstitution
	}
	if recipient == (common.Address{}) {
		s.metrics.RecordRejection(op)
		return models.Document{}, ErrInvalidAddress
	}
	if documentHash == "" {
		s.metrics.RecordRejection(op)
		return models.Document{}, ErrEmptyHash
	}
	if documentID == "" {
		s.metrics.RecordRejection(op)
		return models.Document{}, dErrors.New(dErrors.CodeBadRequest, "Document id cannot be empty")
	}

	now := requestcontext.Now(ctx)
	doc := models.Document{
		ID:           documentID,
		Issuer:       caller,
		Recipient:    recipient,
		DocumentHash: documentHash,
		MetadataURI:  metadataURI,
		IssuedAt:     now,
		Valid:        true,
		Revoked:      false,
	}
	if expirationDays > 0 {
		doc.ExpiresAt = now.Add(time.Duration(expirationDays) * 24 * time.Hour)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.store.CreateDocument(ctx, doc)
	})
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.RecordRejection(op)
		return models.Document{}, ErrAlreadyIssued
	}
	if err != nil {
		return models.Document{}, dErrors.Wrap(dErrors.CodeInternal, "failed to store document", err)
	}

	s.metrics.RecordDocumentIssued()
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeDocumentIssued,
		Actor:      caller,
		Subject:    recipient,
		DocumentID: documentID,
		Hash:       documentHash,
		Timestamp:  now,
	})
	return doc, nil
}

// RevokeDocument permanently invalidates a document. Only the original
// issuer may revoke, and only once: revoked is terminal.
func (s *Service) RevokeDocument(ctx context.Context, caller common.Address, documentID string) error {
	const op = "revoke_document"
	defer s.metrics.ObserveOperation(op, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(ctx context.Context) error {
		doc, err := s.store.Document(ctx, documentID)
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.RecordRejection(op)
			return ErrDocumentNotFound
		}
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "failed to load document", err)
		}
		if doc.Issuer != caller {
			s.metrics.RecordRejection(op)
			return ErrNotIssuer
		}
		if doc.Revoked {
			s.metrics.RecordRejection(op)
			return ErrAlreadyRevoked
		}

		doc.Revoked = true
		doc.Valid = false
		if err := s.store.UpdateDocument(ctx, doc); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "failed to revoke document", err)
		}

		s.metrics.RecordDocumentRevoked()
		s.events.Publish(ctx, events.Event{
			Type:       events.TypeDocumentRevoked,
			Actor:      caller,
			Subject:    doc.Recipient,
			DocumentID: documentID,
			Timestamp:  requestcontext.Now(ctx),
		})
		return nil
	})
}

// IsDocumentValid is the single authoritative validity check: false when the
// document is missing, revoked, flag-cleared, or past its deadline at query
// time. Expiration is evaluated lazily; no state is mutated and no event is
// emitted when a deadline passes.
func (s *Service) IsDocumentValid(ctx context.Context, documentID string) (bool, error) {
	doc, err := s.store.Document(ctx, documentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodeInternal, "failed to load document", err)
	}
	return doc.EffectivelyValid(requestcontext.Now(ctx)), nil
}

// RequestVerification creates a pending request for the named verifier to
// attest to a document. Only the document's recipient may request, modeling
// holder-initiated third-party attestation.
func (s *Service) RequestVerification(ctx context.Context, caller common.Address, documentID string, verifier common.Address) (models.VerificationRequest, error) {
	const op = "request_verification"
	defer s.metrics.ObserveOperation(op, time.Now())

	if verifier == (common.Address{}) {
		s.metrics.RecordRejection(op)
		return models.VerificationRequest{}, ErrInvalidAddress
	}
	verifierRole, err := s.store.Role(ctx, verifier)
	if err != nil {
		return models.VerificationRequest{}, dErrors.Wrap(dErrors.CodeInternal, "failed to resolve verifier role", err)
	}
	if verifierRole != models.RoleVerifier {
		s.metrics.RecordRejection(op)
		return models.VerificationRequest{}, ErrNotVerifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var req models.VerificationRequest
	err = s.inTx(ctx, func(ctx context.Context) error {
		doc, err := s.store.Document(ctx, documentID)
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.RecordRejection(op)
			return ErrDocumentNotFound
		}
		if err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "failed to load document", err)
		}
		if doc.Recipient != caller {
			s.metrics.RecordRejection(op)
			return ErrNotDocumentOwner
		}

		now := requestcontext.Now(ctx)
		req = models.VerificationRequest{
			ID:         DeriveRequestID(documentID, caller, verifier, now),
			DocumentID: documentID,
			Requester:  caller,
			Verifier:   verifier,
			CreatedAt:  now,
		}
		if err := s.store.CreateRequest(ctx, req); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				s.metrics.RecordRejection(op)
				return ErrRequestExists
			}
			return dErrors.Wrap(dErrors.CodeInternal, "failed to store request", err)
		}

		s.metrics.RecordVerificationRequested()
		s.events.Publish(ctx, events.Event{
			Type:       events.TypeVerificationRequested,
			Actor:      caller,
			Subject:    verifier,
			DocumentID: documentID,
			RequestID:  req.ID,
			Timestamp:  now,
		})
		return nil
	})
	if err != nil {
		return models.VerificationRequest{}, err
	}
	return req, nil
}

// CompleteVerification records the assigned verifier's judgment exactly
// once. Notes are stored unconditionally, on rejection too.
//
// An unknown request id loads as the zero record, whose verifier is the zero
// address; no authenticated caller equals it, so such calls fail the
// assigned-verifier guard rather than a dedicated existence check.
func (s *Service) CompleteVerification(ctx context.Context, caller common.Address, requestID common.Hash, verified bool, notes string) (models.VerificationRequest, error) {
	const op = "complete_verification"
	defer s.metrics.ObserveOperation(op, time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	var req models.VerificationRequest
	err := s.inTx(ctx, func(ctx context.Context) error {
		loaded, err := s.store.Request(ctx, requestID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(dErrors.CodeInternal, "failed to load request", err)
		}
		req = loaded

		if req.Verifier != caller {
			s.metrics.RecordRejection(op)
			return ErrNotAssignedVerifier
		}
		if req.Processed() {
			s.metrics.RecordRejection(op)
			return ErrAlreadyProcessed
		}

		if verified {
			req.Verified = true
		} else {
			req.Rejected = true
		}
		req.Notes = notes
		if err := s.store.UpdateRequest(ctx, req); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "failed to update request", err)
		}

		s.metrics.RecordVerificationCompleted(verified)
		s.events.Publish(ctx, events.Event{
			Type:       events.TypeVerificationCompleted,
			Actor:      caller,
			Subject:    req.Requester,
			DocumentID: req.DocumentID,
			RequestID:  requestID,
			Verified:   verified,
			Notes:      notes,
			Timestamp:  requestcontext.Now(ctx),
		})
		return nil
	})
	if err != nil {
		return models.VerificationRequest{}, err
	}
	return req, nil
}

// GetDocument returns the stored document record. Consumers needing the
// effective state must combine it with IsDocumentValid; the stored Valid
// flag alone does not account for expiry.
func (s *Service) GetDocument(ctx context.Context, documentID string) (models.Document, error) {
	doc, err := s.store.Document(ctx, documentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return models.Document{}, dErrors.Wrap(dErrors.CodeInternal, "failed to load document", err)
	}
	return doc, nil
}

// GetUserDocuments lists ids of documents issued to a recipient, in
// issuance order. Revoked documents remain listed.
func (s *Service) GetUserDocuments(ctx context.Context, recipient common.Address) ([]string, error) {
	if recipient == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	ids, err := s.store.DocumentIDsByRecipient(ctx, recipient)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list documents", err)
	}
	return ids, nil
}

// GetInstitutionDocuments lists ids of documents issued by an institution.
func (s *Service) GetInstitutionDocuments(ctx context.Context, issuer common.Address) ([]string, error) {
	if issuer == (common.Address{}) {
		return nil, ErrInvalidAddress
	}
	ids, err := s.store.DocumentIDsByIssuer(ctx, issuer)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list documents", err)
	}
	return ids, nil
}

// GetDocumentVerifications lists request ids for a document, in creation
// order. The document must exist.
func (s *Service) GetDocumentVerifications(ctx context.Context, documentID string) ([]common.Hash, error) {
	if _, err := s.store.Document(ctx, documentID); errors.Is(err, sentinel.ErrNotFound) {
		return nil, ErrDocumentNotFound
	} else if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load document", err)
	}
	ids, err := s.store.RequestIDsByDocument(ctx, documentID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list requests", err)
	}
	return ids, nil
}

// GetVerificationRequest returns the stored request, or the zero record for
// unknown ids. There is deliberately no existence guard here.
func (s *Service) GetVerificationRequest(ctx context.Context, requestID common.Hash) (models.VerificationRequest, error) {
	req, err := s.store.Request(ctx, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.VerificationRequest{}, nil
	}
	if err != nil {
		return models.VerificationRequest{}, dErrors.Wrap(dErrors.CodeInternal, "failed to load request", err)
	}
	return req, nil
}

// DocumentCount returns the global issuance counter.
func (s *Service) DocumentCount(ctx context.Context) (uint64, error) {
	count, err := s.store.DocumentCount(ctx)
	if err != nil {
		return 0, dErrors.Wrap(dErrors.CodeInternal, "failed to count documents", err)
	}
	return count, nil
}

// RoleOf returns the role currently assigned to an address.
func (s *Service) RoleOf(ctx context.Context, addr common.Address) (models.Role, error) {
	if addr == (common.Address{}) {
		return models.RoleNone, ErrInvalidAddress
	}
	role, err := s.store.Role(ctx, addr)
	if err != nil {
		return models.RoleNone, dErrors.Wrap(dErrors.CodeInternal, "failed to resolve role", err)
	}
	return role, nil
}

// DeriveRequestID computes the deterministic request identifier from the
// request's identifying tuple. Not guessable in advance by third parties
// (the creation timestamp is part of the preimage) but not secret either.
func DeriveRequestID(documentID string, requester, verifier common.Address, createdAt time.Time) common.Hash {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(createdAt.Unix()))
	return crypto.Keccak256Hash([]byte(documentID), requester.Bytes(), verifier.Bytes(), ts[:])
}

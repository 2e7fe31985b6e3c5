// Package models holds the registry's persistent record types. All mutation
// goes through the service package; nothing outside the store packages may
// write these tables directly.
package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	dErrors "certledger/pkg/domain-errors"
)

// Role tags an address with exactly one capability. Assignment overwrites,
// never merges.
type Role string

const (
	RoleNone        Role = "NONE"
	RoleUser        Role = "USER"
	RoleVerifier    Role = "VERIFIER"
	RoleInstitution Role = "INSTITUTION"
)

// ParseRole validates a role string at trust boundaries. RoleNone is a valid
// stored value but never a valid assignment input, so callers that register
// users must additionally reject it.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleNone, RoleUser, RoleVerifier, RoleInstitution:
		return Role(s), nil
	}
	return RoleNone, dErrors.New(dErrors.CodeBadRequest, "Invalid role")
}

// ParseAddress validates and normalizes a hex wallet address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, dErrors.New(dErrors.CodeBadRequest, "Invalid address")
	}
	return common.HexToAddress(s), nil
}

// Document is one issued certificate. Issuer, Recipient, DocumentHash and
// MetadataURI are immutable after issuance; only the Revoked/Valid pair ever
// changes, and only one way.
type Document struct {
	ID           string         `json:"id"`
	Issuer       common.Address `json:"issuer"`
	Recipient    common.Address `json:"recipient"`
	DocumentHash string         `json:"documentHash"`
	MetadataURI  string         `json:"metadataURI"`
	IssuedAt     time.Time      `json:"issuedAt"`
	// ExpiresAt zero means the document never expires.
	ExpiresAt time.Time `json:"expiresAt"`
	Valid     bool      `json:"valid"`
	Revoked   bool      `json:"revoked"`
}

// Exists reports whether the record represents a real document. A missing
// document loads as the zero value, whose issuer is the zero address.
func (d Document) Exists() bool {
	return d.Issuer != (common.Address{})
}

// EffectivelyValid is the single authoritative validity check: false when
// nonexistent, revoked, flag cleared, or expired relative to now. Expiry is
// evaluated lazily; the stored Valid flag is never flipped by time passing.
func (d Document) EffectivelyValid(now time.Time) bool {
	if !d.Exists() || d.Revoked || !d.Valid {
		return false
	}
	if !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt) {
		return false
	}
	return true
}

// VerificationRequest is one verifier's pending or completed judgment on one
// document. Verified and Rejected are mutually exclusive and monotonic.
type VerificationRequest struct {
	ID         common.Hash    `json:"id"`
	DocumentID string         `json:"documentId"`
	Requester  common.Address `json:"requester"`
	Verifier   common.Address `json:"verifier"`
	Verified   bool           `json:"verified"`
	Rejected   bool           `json:"rejected"`
	Notes      string         `json:"notes"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Processed reports whether the request has reached a terminal state.
func (r VerificationRequest) Processed() bool {
	return r.Verified || r.Rejected
}

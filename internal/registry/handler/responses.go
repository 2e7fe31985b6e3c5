package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"certledger/internal/registry/models"
	dErrors "certledger/pkg/domain-errors"
)

// DocumentResponse renders a document plus its effective validity so
// clients never have to re-implement the expiry rule. The stored valid flag
// and the effective state can legitimately disagree after the deadline.
type DocumentResponse struct {
	ID           string `json:"id"`
	Issuer       string `json:"issuer"`
	Recipient    string `json:"recipient"`
	DocumentHash string `json:"document_hash"`
	MetadataURI  string `json:"metadata_uri"`
	IssuedAt     string `json:"issued_at"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	Valid        bool   `json:"valid"`
	Revoked      bool   `json:"revoked"`
	IsValid      bool   `json:"is_valid"`
}

func toDocumentResponse(doc models.Document, effectivelyValid bool) DocumentResponse {
	resp := DocumentResponse{
		ID:           doc.ID,
		Issuer:       doc.Issuer.Hex(),
		Recipient:    doc.Recipient.Hex(),
		DocumentHash: doc.DocumentHash,
		MetadataURI:  doc.MetadataURI,
		IssuedAt:     doc.IssuedAt.UTC().Format(time.RFC3339),
		Valid:        doc.Valid,
		Revoked:      doc.Revoked,
		IsValid:      effectivelyValid,
	}
	if !doc.ExpiresAt.IsZero() {
		resp.ExpiresAt = doc.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// VerificationResponse renders a verification request. For unknown ids this
// carries the zero record, matching the registry's permissive lookup.
type VerificationResponse struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Requester  string `json:"requester"`
	Verifier   string `json:"verifier"`
	Verified   bool   `json:"verified"`
	Rejected   bool   `json:"rejected"`
	Notes      string `json:"notes"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func toVerificationResponse(req models.VerificationRequest) VerificationResponse {
	resp := VerificationResponse{
		ID:         req.ID.Hex(),
		DocumentID: req.DocumentID,
		Requester:  req.Requester.Hex(),
		Verifier:   req.Verifier.Hex(),
		Verified:   req.Verified,
		Rejected:   req.Rejected,
		Notes:      req.Notes,
	}
	if !req.CreatedAt.IsZero() {
		resp.CreatedAt = req.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// RoleResponse reports the role currently assigned to an address.
type RoleResponse struct {
	Address string `json:"address"`
	Role    string `json:"role"`
}

// StatsResponse reports the public registry counters.
type StatsResponse struct {
	Owner         string `json:"owner"`
	DocumentCount uint64 `json:"document_count"`
}

// ListResponse carries an ordered id listing.
type ListResponse struct {
	IDs []string `json:"ids"`
}

// ValidityResponse carries the authoritative validity answer.
type ValidityResponse struct {
	DocumentID string `json:"document_id"`
	IsValid    bool   `json:"is_valid"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the shared JSON error envelope.
// The registry's reason strings pass through untouched; they are part of
// the contract.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}

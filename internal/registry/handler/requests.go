package handler

// RegisterUserRequest registers or re-registers an address under a role.
type RegisterUserRequest struct {
	Address string `json:"address"`
	Role    string `json:"role"`
}

// UpdateRoleRequest re-assigns the role of the address in the URL.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// IssueDocumentRequest records a new certificate.
type IssueDocumentRequest struct {
	DocumentID     string `json:"document_id"`
	Recipient      string `json:"recipient"`
	DocumentHash   string `json:"document_hash"`
	MetadataURI    string `json:"metadata_uri"`
	ExpirationDays uint32 `json:"expiration_days"`
}

// RequestVerificationRequest asks a verifier to attest to a document.
type RequestVerificationRequest struct {
	DocumentID string `json:"document_id"`
	Verifier   string `json:"verifier"`
}

// CompleteVerificationRequest records the assigned verifier's judgment.
type CompleteVerificationRequest struct {
	Verified bool   `json:"verified"`
	Notes    string `json:"notes"`
}

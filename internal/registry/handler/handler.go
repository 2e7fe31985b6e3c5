// Package handler is the thin HTTP layer over the registry service. It
// decodes requests, resolves the authenticated caller, and delegates; no
// guard lives here that the service does not also enforce.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"certledger/internal/platform/metrics"
	"certledger/internal/platform/middleware"
	"certledger/internal/registry/models"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/requestcontext"
)

// Issuing a century-scoped credential is plausible; anything beyond is a
// client bug, and capping here keeps expiry arithmetic in range.
const maxExpirationDays = 36500

// Service is the registry surface the HTTP layer depends on.
type Service interface {
	RegisterUser(ctx context.Context, caller, user common.Address, role models.Role) error
	UpdateUserRole(ctx context.Context, caller, user common.Address, role models.Role) error
	IssueDocument(ctx context.Context, caller common.Address, documentID string, recipient common.Address, documentHash, metadataURI string, expirationDays uint32) (models.Document, error)
	RevokeDocument(ctx context.Context, caller common.Address, documentID string) error
	RequestVerification(ctx context.Context, caller common.Address, documentID string, verifier common.Address) (models.VerificationRequest, error)
	CompleteVerification(ctx context.Context, caller common.Address, requestID common.Hash, verified bool, notes string) (models.VerificationRequest, error)

	GetDocument(ctx context.Context, documentID string) (models.Document, error)
	IsDocumentValid(ctx context.Context, documentID string) (bool, error)
	GetUserDocuments(ctx context.Context, recipient common.Address) ([]string, error)
	GetInstitutionDocuments(ctx context.Context, issuer common.Address) ([]string, error)
	GetDocumentVerifications(ctx context.Context, documentID string) ([]common.Hash, error)
	GetVerificationRequest(ctx context.Context, requestID common.Hash) (models.VerificationRequest, error)
	DocumentCount(ctx context.Context) (uint64, error)
	RoleOf(ctx context.Context, addr common.Address) (models.Role, error)
	Owner() common.Address
}

// Handler handles all registry endpoints.
type Handler struct {
	logger    *slog.Logger
	registry  Service
	metrics   *metrics.Metrics
	validator middleware.WalletValidator
}

func New(registry Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.WalletValidator) *Handler {
	return &Handler{
		logger:    logger,
		registry:  registry,
		metrics:   m,
		validator: validator,
	}
}

// Register mounts the registry routes. Mutations require an authenticated
// wallet; the read surface is public.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics, "registry"))

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireWallet(h.validator, h.logger))
		r.Post("/users", h.handleRegisterUser)
		r.Put("/users/{address}/role", h.handleUpdateUserRole)
		r.Post("/documents", h.handleIssueDocument)
		r.Post("/documents/{id}/revoke", h.handleRevokeDocument)
		r.Post("/verifications", h.handleRequestVerification)
		r.Post("/verifications/{id}/complete", h.handleCompleteVerification)
	})

	router.Get("/documents/{id}", h.handleGetDocument)
	router.Get("/documents/{id}/valid", h.handleIsDocumentValid)
	router.Get("/documents/{id}/verifications", h.handleGetDocumentVerifications)
	router.Get("/users/{address}/documents", h.handleGetUserDocuments)
	router.Get("/users/{address}/role", h.handleGetRole)
	router.Get("/institutions/{address}/documents", h.handleGetInstitutionDocuments)
	router.Get("/verifications/{id}", h.handleGetVerificationRequest)
	router.Get("/stats", h.handleStats)

	r.Mount("/registry", router)
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	h.handleRoleAssignment(w, r, false)
}

func (h *Handler) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	h.handleRoleAssignment(w, r, true)
}

func (h *Handler) handleRoleAssignment(w http.ResponseWriter, r *http.Request, update bool) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var userHex, roleName string
	if update {
		var req UpdateRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, r, "invalid request body", err)
			return
		}
		userHex, roleName = chi.URLParam(r, "address"), req.Role
	} else {
		var req RegisterUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, r, "invalid request body", err)
			return
		}
		userHex, roleName = req.Address, req.Role
	}

	user, err := models.ParseAddress(userHex)
	if err != nil {
		WriteError(w, err)
		return
	}
	role, err := models.ParseRole(roleName)
	if err != nil {
		WriteError(w, err)
		return
	}

	if update {
		err = h.registry.UpdateUserRole(ctx, caller, user, role)
	} else {
		err = h.registry.RegisterUser(ctx, caller, user, role)
	}
	if err != nil {
		h.logRejection(r, "role assignment rejected", err)
		WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if update {
		status = http.StatusOK
	}
	WriteJSON(w, status, RoleResponse{Address: user.Hex(), Role: string(role)})
}

func (h *Handler) handleIssueDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var req IssueDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body", err)
		return
	}
	if req.ExpirationDays > maxExpirationDays {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expiration_days out of range"))
		return
	}
	recipient, err := models.ParseAddress(req.Recipient)
	if err != nil {
		WriteError(w, err)
		return
	}

	doc, err := h.registry.IssueDocument(ctx, caller, req.DocumentID, recipient, req.DocumentHash, req.MetadataURI, req.ExpirationDays)
	if err != nil {
		h.logRejection(r, "document issuance rejected", err)
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, toDocumentResponse(doc, doc.EffectivelyValid(requestcontext.Now(ctx))))
}

func (h *Handler) handleRevokeDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	if err := h.registry.RevokeDocument(ctx, caller, chi.URLParam(r, "id")); err != nil {
		h.logRejection(r, "revocation rejected", err)
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRequestVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var req RequestVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body", err)
		return
	}
	verifier, err := models.ParseAddress(req.Verifier)
	if err != nil {
		WriteError(w, err)
		return
	}

	created, err := h.registry.RequestVerification(ctx, caller, req.DocumentID, verifier)
	if err != nil {
		h.logRejection(r, "verification request rejected", err)
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, toVerificationResponse(created))
}

func (h *Handler) handleCompleteVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	requestID, err := parseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	var req CompleteVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "invalid request body", err)
		return
	}

	completed, err := h.registry.CompleteVerification(ctx, caller, requestID, req.Verified, req.Notes)
	if err != nil {
		h.logRejection(r, "verification completion rejected", err)
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, toVerificationResponse(completed))
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	documentID := chi.URLParam(r, "id")

	doc, err := h.registry.GetDocument(ctx, documentID)
	if err != nil {
		WriteError(w, err)
		return
	}
	valid, err := h.registry.IsDocumentValid(ctx, documentID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toDocumentResponse(doc, valid))
}

func (h *Handler) handleIsDocumentValid(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	valid, err := h.registry.IsDocumentValid(r.Context(), documentID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ValidityResponse{DocumentID: documentID, IsValid: valid})
}

func (h *Handler) handleGetDocumentVerifications(w http.ResponseWriter, r *http.Request) {
	ids, err := h.registry.GetDocumentVerifications(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	hexIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		hexIDs = append(hexIDs, id.Hex())
	}
	WriteJSON(w, http.StatusOK, ListResponse{IDs: hexIDs})
}

func (h *Handler) handleGetUserDocuments(w http.ResponseWriter, r *http.Request) {
	h.handleDocumentListing(w, r, h.registry.GetUserDocuments)
}

func (h *Handler) handleGetInstitutionDocuments(w http.ResponseWriter, r *http.Request) {
	h.handleDocumentListing(w, r, h.registry.GetInstitutionDocuments)
}

func (h *Handler) handleDocumentListing(w http.ResponseWriter, r *http.Request, list func(context.Context, common.Address) ([]string, error)) {
	addr, err := models.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		WriteError(w, err)
		return
	}
	ids, err := list(r.Context(), addr)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ListResponse{IDs: ids})
}

func (h *Handler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	addr, err := models.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		WriteError(w, err)
		return
	}
	role, err := h.registry.RoleOf(r.Context(), addr)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, RoleResponse{Address: addr.Hex(), Role: string(role)})
}

func (h *Handler) handleGetVerificationRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	req, err := h.registry.GetVerificationRequest(r.Context(), requestID)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toVerificationResponse(req))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := h.registry.DocumentCount(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, StatsResponse{
		Owner:         h.registry.Owner().Hex(),
		DocumentCount: count,
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.logger.WarnContext(r.Context(), message,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
	WriteError(w, dErrors.New(dErrors.CodeBadRequest, message))
}

func (h *Handler) logRejection(r *http.Request, message string, err error) {
	h.logger.WarnContext(r.Context(), message,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
}

func parseRequestID(param string) (common.Hash, error) {
	if !strings.HasPrefix(param, "0x") || len(param) != 2+2*common.HashLength {
		return common.Hash{}, dErrors.New(dErrors.CodeBadRequest, "Invalid request id")
	}
	return common.HexToHash(param), nil
}

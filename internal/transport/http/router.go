// Package httptransport assembles the process-level HTTP surface: the
// registry routes, the audit trail read endpoints, health checking and the
// Prometheus scrape endpoint.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certledger/internal/audit"
	"certledger/internal/platform/middleware"
	"certledger/internal/registry/handler"
	"certledger/internal/registry/models"
	dErrors "certledger/pkg/domain-errors"
)

// HealthChecker is implemented by backends that can report liveness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router holds everything the root router mounts.
type Router struct {
	logger   *slog.Logger
	registry *handler.Handler
	audits   audit.Store
	checks   map[string]HealthChecker
}

func NewRouter(logger *slog.Logger, registry *handler.Handler, audits audit.Store, checks map[string]HealthChecker) *Router {
	return &Router{
		logger:   logger,
		registry: registry,
		audits:   audits,
		checks:   checks,
	}
}

// Build constructs the chi router with all routes mounted.
func (rt *Router) Build() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", rt.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	rt.registry.Register(r)

	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.Recovery(rt.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(rt.logger))
		r.Get("/actors/{address}", rt.handleAuditByActor)
		r.Get("/documents/{id}", rt.handleAuditByDocument)
	})

	return r
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(rt.checks))
	for name, check := range rt.checks {
		if err := check.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			components[name] = "unhealthy"
			rt.logger.WarnContext(ctx, "health check failed", "component", name, "error", err)
			continue
		}
		components[name] = "ok"
	}

	handler.WriteJSON(w, status, map[string]any{
		"status":     http.StatusText(status),
		"components": components,
	})
}

// auditRecordResponse renders one audit record for operators.
type auditRecordResponse struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	EventType  string `json:"event_type"`
	Actor      string `json:"actor"`
	Subject    string `json:"subject,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Details    string `json:"details,omitempty"`
}

func toAuditResponses(records []audit.Record) []auditRecordResponse {
	out := make([]auditRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, auditRecordResponse{
			ID:         rec.ID.String(),
			Timestamp:  rec.Timestamp.UTC().Format(time.RFC3339),
			EventType:  rec.EventType,
			Actor:      rec.Actor,
			Subject:    rec.Subject,
			DocumentID: rec.DocumentID,
			RequestID:  rec.RequestID,
			Details:    rec.Details,
		})
	}
	return out
}

func (rt *Router) handleAuditByActor(w http.ResponseWriter, r *http.Request) {
	actor, err := models.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	records, err := rt.audits.ListByActor(r.Context(), actor.Hex())
	if err != nil {
		handler.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "failed to list audit records", err))
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"records": toAuditResponses(records)})
}

func (rt *Router) handleAuditByDocument(w http.ResponseWriter, r *http.Request) {
	records, err := rt.audits.ListByDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handler.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "failed to list audit records", err))
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"records": toAuditResponses(records)})
}

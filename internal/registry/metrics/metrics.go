// Package metrics exposes Prometheus instrumentation for registry
// operations. All service call sites tolerate a nil *Metrics so unit tests
// don't register collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RolesAssigned          prometheus.Counter
	DocumentsIssued        prometheus.Counter
	DocumentsRevoked       prometheus.Counter
	VerificationsRequested prometheus.Counter
	VerificationsCompleted *prometheus.CounterVec
	RejectedOperations     *prometheus.CounterVec
	OperationDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		RolesAssigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_roles_assigned_total",
			Help: "Total role assignments performed by the owner",
		}),
		DocumentsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_documents_issued_total",
			Help: "Total documents issued",
		}),
		DocumentsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_documents_revoked_total",
			Help: "Total documents revoked",
		}),
		VerificationsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "certledger_verifications_requested_total",
			Help: "Total verification requests created",
		}),
		VerificationsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_verifications_completed_total",
			Help: "Total verification requests completed, by outcome",
		}, []string{"outcome"}),
		RejectedOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certledger_rejected_operations_total",
			Help: "Registry operations rejected before any state change, by operation",
		}, []string{"operation"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certledger_operation_duration_seconds",
			Help:    "Registry operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecordRejection(operation string) {
	if m == nil {
		return
	}
	m.RejectedOperations.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordRoleAssigned() {
	if m == nil {
		return
	}
	m.RolesAssigned.Inc()
}

func (m *Metrics) RecordDocumentIssued() {
	if m == nil {
		return
	}
	m.DocumentsIssued.Inc()
}

func (m *Metrics) RecordDocumentRevoked() {
	if m == nil {
		return
	}
	m.DocumentsRevoked.Inc()
}

func (m *Metrics) RecordVerificationRequested() {
	if m == nil {
		return
	}
	m.VerificationsRequested.Inc()
}

func (m *Metrics) RecordVerificationCompleted(verified bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if verified {
		outcome = "verified"
	}
	m.VerificationsCompleted.WithLabelValues(outcome).Inc()
}

// Package metrics defines the custom Prometheus metrics exported by tinygate.
// It is the single source of truth for metric names, labels, and help strings.
//
// Metrics are registered with the default registry on package init through
// promauto and served by the echoprometheus handler at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tinygate"

// ── Authentication metrics ───────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "bad_input" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts self-registration attempts.
// Label:
//   - result: "success", "invalid_token", "bad_input", "conflict", "disabled" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// TokensTotal counts invite token administration actions.
// Label:
//   - action: "issued" or "revoked"
var TokensTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invite_tokens_total",
		Help:      "Total number of invite tokens issued or revoked.",
	},
	[]string{"action"},
)

// SessionRejectionsTotal counts presented session identities that were refused.
// Label:
//   - reason: "invalid", "login_deadline", "visit_deadline" or "revoked"
var SessionRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_rejections_total",
		Help:      "Total number of rejected session identities, by reason.",
	},
	[]string{"reason"},
)

// ── Audit metrics ────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the number of audit events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditEventsDroppedTotal counts audit events discarded because a worker channel was full.
var AuditEventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Total number of audit events dropped before persistence.",
	},
)

// AuditWriteDuration measures how long persisting one audit event takes.
// Label:
//   - result: "ok" or "error"
var AuditWriteDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "audit_write_duration_seconds",
		Help:      "Duration of audit event persistence from dequeue to store.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"result"},
)

// Package metrics defines and registers all custom Prometheus metrics for the
// Q&A voting API. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on import via
// promauto; the HTTP layer exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ama"

// ── Mutation metrics ──────────────────────────────────────────────────────────

// VotesTotal counts vote intents by outcome.
// Label:
//   - result: "accepted", "already_voted", "not_found", "failed"
var VotesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "votes_total",
		Help:      "Total number of vote intents, by outcome.",
	},
	[]string{"result"},
)

// QuestionsSubmittedTotal counts questions accepted by the store.
// Label:
//   - improved: "true" when the stored text came from the text improver
var QuestionsSubmittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_submitted_total",
		Help:      "Total number of questions submitted, by whether the text was improved.",
	},
	[]string{"improved"},
)

// ImproveFallbackTotal counts submissions that fell back to the raw text.
// Label:
//   - reason: "error" or "empty"
var ImproveFallbackTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "improve_fallback_total",
		Help:      "Total number of question submissions that used the raw text.",
	},
	[]string{"reason"},
)

// RollbacksTotal counts optimistic edits undone after a store failure.
// Label:
//   - operation: "vote", "insert", "delete", "delete_all"
var RollbacksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rollbacks_total",
		Help:      "Total number of optimistic view edits rolled back.",
	},
	[]string{"operation"},
)

// StoreOperationDuration measures store round trips issued by the coordinator.
// Label:
//   - operation: "insert", "vote", "answer", "delete", "delete_all"
var StoreOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_operation_duration_seconds",
		Help:      "Duration of question store mutations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// ── Live view metrics ─────────────────────────────────────────────────────────

// FeedEventsTotal counts change-feed events ingested by the live view.
// Label:
//   - kind: "insert", "update", "delete", "reset", or the unknown kind received
var FeedEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_events_total",
		Help:      "Total number of change-feed events received, by kind.",
	},
	[]string{"kind"},
)

// ViewRefreshTotal counts full re-fetches of the live view.
// Label:
//   - result: "ok", "error", "discarded"
var ViewRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "view_refresh_total",
		Help:      "Total number of live view refreshes, by result.",
	},
	[]string{"result"},
)

// ViewQuestions tracks the number of questions currently in the live view.
var ViewQuestions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "view_questions",
		Help:      "Number of questions in the local ranked view.",
	},
)

// FeedConnected is 1 while the change-feed subscription is live.
var FeedConnected = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "feed_connected",
		Help:      "Whether the change-feed subscription is currently connected.",
	},
)

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "messenger_bot"

// Bot-level collectors. HTTP traffic is instrumented separately by
// middleware.Metrics; these track what happens to each webhook event.
var (
	// Events counts webhook messaging events by kind
	// (message, postback, echo, delivery, read, other).
	Events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Webhook messaging events received, by kind.",
	}, []string{"kind"})

	// Replies counts replies by the tier that produced them.
	Replies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replies_total",
		Help:      "Replies produced, by tier (keyword, llm, fallback, greeting).",
	}, []string{"tier"})

	// DryRuns counts admin reply previews by tier. They are kept out of
	// Replies and the LLM collectors so previews do not skew live traffic.
	DryRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reply_dry_runs_total",
		Help:      "Admin reply previews, by tier.",
	}, []string{"tier"})

	// Sends counts Graph Send API calls by type (text, action) and status.
	Sends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sends_total",
		Help:      "Outbound Messenger send calls, by type and status.",
	}, []string{"type", "status"})

	LLMRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "LLM generation requests, by status.",
	}, []string{"status"})

	LLMLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_request_duration_seconds",
		Help:      "Latency of LLM generation requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	Transcriptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcriptions_total",
		Help:      "Voice clip transcriptions, by status.",
	}, []string{"status"})

	// Leads counts lead writes per sink (db, sheets) and status.
	Leads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leads_total",
		Help:      "Lead writes, by sink and status.",
	}, []string{"sink", "status"})

	// DedupeHits counts events suppressed by a seen-set (message, greeting).
	DedupeHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dedupe_hits_total",
		Help:      "Events skipped because their key was already seen.",
	}, []string{"set"})

	DispatchQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatch_queue_depth",
		Help:      "Events waiting in the dispatcher queue.",
	})

	// DispatchInline counts events processed on the request goroutine
	// because the queue was full or the dispatcher was stopped.
	DispatchInline = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_inline_total",
		Help:      "Events processed inline because the queue was full.",
	})

	Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Errors grouped by component.",
	}, []string{"component"})
)

func init() {
	prometheus.MustRegister(
		Events,
		Replies,
		DryRuns,
		Sends,
		LLMRequests,
		LLMLatency,
		Transcriptions,
		Leads,
		DedupeHits,
		DispatchQueueDepth,
		DispatchInline,
		Errors,
	)
}

// Status maps an error to the "ok"/"error" label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

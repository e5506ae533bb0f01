// Package metrics provides Prometheus instrumentation for the flash scope.
// It exposes counters for hop continuity, carried state and evictions, and a
// histogram for commit latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HopsTotal counts completed flash commits, labeled by kind:
	// "postback", "initial" or "redirect".
	HopsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flash_hops_total",
		Help: "Total number of committed flash hops",
	}, []string{"kind"})

	// TokenResolutions counts how the execute token was obtained, labeled by
	// result: "continued" (inbound cookie) or "minted" (no continuity).
	TokenResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flash_token_resolutions_total",
		Help: "Execute token resolutions by outcome",
	}, []string{"result"})

	// KeptTotal counts values copied into a render buffer by Keep.
	KeptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flash_kept_total",
		Help: "Total number of values kept for the next request",
	})

	// EvictedEntries counts execute-buffer entries deleted at commit.
	EvictedEntries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flash_evicted_entries_total",
		Help: "Total number of execute buffer entries evicted",
	})

	// RedirectsTotal counts commits that armed the one-hop redirect flag.
	RedirectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flash_redirects_total",
		Help: "Total number of redirect flags carried to the next request",
	})

	// MessagesCarried counts messages serialized for the next request.
	MessagesCarried = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flash_messages_carried_total",
		Help: "Total number of messages carried across a hop",
	})

	// StoreErrors counts session store failures seen by the flash scope,
	// labeled by operation: "get", "put", "remove", "keys".
	StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flash_store_errors_total",
		Help: "Session store failures by operation",
	}, []string{"op"})

	// SessionsResolved counts session id resolutions, labeled by result:
	// "existing" or "created".
	SessionsResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flash_sessions_resolved_total",
		Help: "Session id cookie resolutions by outcome",
	}, []string{"result"})

	// PostPhaseDuration records how long a commit took, in seconds.
	PostPhaseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flash_post_phase_seconds",
		Help:    "Flash commit latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
	})
)

func init() {
	prometheus.MustRegister(
		HopsTotal,
		TokenResolutions,
		KeptTotal,
		EvictedEntries,
		RedirectsTotal,
		MessagesCarried,
		StoreErrors,
		SessionsResolved,
		PostPhaseDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics constructs the metrics the application will track.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// This holds the single instance of the metrics value needed for
// collecting metrics. The prometheus package registers the collectors
// with the default registry which is served on the debug mux.
var m metrics

// metrics represents the set of metrics we gather. These fields are
// safe to be accessed concurrently thanks to the prometheus collectors.
type metrics struct {
	requests     prometheus.Counter
	errors       prometheus.Counter
	panics       prometheus.Counter
	blocksMined  prometheus.Counter
	replacements *prometheus.CounterVec
}

func init() {
	m = metrics{
		requests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "powchain",
			Name:      "requests_total",
			Help:      "The number of http requests handled.",
		}),
		errors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "powchain",
			Name:      "errors_total",
			Help:      "The number of http requests that returned an error.",
		}),
		panics: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "powchain",
			Name:      "panics_total",
			Help:      "The number of http requests that panicked.",
		}),
		blocksMined: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "powchain",
			Name:      "blocks_mined_total",
			Help:      "The number of blocks mined by this node.",
		}),
		replacements: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powchain",
			Name:      "chain_replacements_total",
			Help:      "The number of peer chains offered to this node by result.",
		}, []string{"result"}),
	}
}

// AddRequests increments the request count by 1.
func AddRequests() {
	m.requests.Inc()
}

// AddErrors increments the errors count by 1.
func AddErrors() {
	m.errors.Inc()
}

// AddPanics increments the panics count by 1.
func AddPanics() {
	m.panics.Inc()
}

// AddBlocksMined increments the mined blocks count by 1.
func AddBlocksMined() {
	m.blocksMined.Inc()
}

// AddChainReplacement records a peer chain being accepted or rejected.
func AddChainReplacement(accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.replacements.WithLabelValues(result).Inc()
}

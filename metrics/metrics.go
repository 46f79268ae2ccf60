package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/engine"
	"github.com/hupe1980/studymesh/graph"
	"github.com/hupe1980/studymesh/router"
)

const namespace = "studymesh"

// Options configures a Collector.
type Options struct {
	// Registry receives the collectors. Defaults to a fresh registry.
	Registry *prometheus.Registry
	// WithRuntime also registers Go runtime and process collectors.
	WithRuntime bool
	// Buckets for node latency histograms.
	Buckets []float64
}

// Collector groups the studymesh metrics.
type Collector struct {
	registry *prometheus.Registry

	nodeVisits   *prometheus.CounterVec
	nodeErrors   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	decisions    *prometheus.CounterVec
	requests     *prometheus.CounterVec
	failures     *prometheus.CounterVec
	degraded     prometheus.Counter
}

// New creates and registers the collectors.
func New(optFns ...func(o *Options)) *Collector {
	opts := Options{
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: opts.Registry,
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Number of times each graph node was executed.",
		}, []string{"node"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_errors_total",
			Help:      "Number of failed node executions.",
		}, []string{"node"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Node execution latency.",
			Buckets:   opts.Buckets,
		}, []string{"node"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Supervisor routing decisions.",
		}, []string{"route", "fallback"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completed requests by answering specialist.",
		}, []string{"route"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_failures_total",
			Help:      "Failed requests by error kind.",
		}, []string{"kind"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "augmentation_degraded_total",
			Help:      "Study plan steps that fell back to the original answer.",
		}),
	}

	c.registry.MustRegister(
		c.nodeVisits, c.nodeErrors, c.nodeDuration,
		c.decisions, c.requests, c.failures, c.degraded,
	)
	if opts.WithRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// GraphHooks returns graph hooks recording node visits and latency.
func (c *Collector) GraphHooks() graph.Hooks {
	return graph.Hooks{
		OnNodeEnd: func(_ context.Context, node string, elapsed time.Duration, err error) {
			c.nodeVisits.WithLabelValues(node).Inc()
			c.nodeDuration.WithLabelValues(node).Observe(elapsed.Seconds())
			if err != nil {
				c.nodeErrors.WithLabelValues(node).Inc()
			}
		},
	}
}

// ObserveDecision records a supervisor decision.
func (c *Collector) ObserveDecision(_ context.Context, d router.Decision) {
	c.decisions.WithLabelValues(d.Route.Node(), strconv.FormatBool(d.Fallback)).Inc()
}

// ObserveDegraded records an absorbed study plan failure.
func (c *Collector) ObserveDegraded(context.Context, *core.AugmentationError) {
	c.degraded.Inc()
}

// ObserveFailure records a failed request by its error kind.
func (c *Collector) ObserveFailure(_ context.Context, _ string, err error) {
	c.failures.WithLabelValues(core.ErrorKind(err)).Inc()
}

// EngineCallbacks returns engine callbacks counting completed and failed
// requests.
func (c *Collector) EngineCallbacks() engine.Callbacks {
	return engine.Callbacks{
		AfterRequest: func(_ context.Context, res *engine.Result) {
			c.requests.WithLabelValues(res.Route).Inc()
		},
		OnError: c.ObserveFailure,
	}
}

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics defines counters for the pack lifecycle and the event pipeline.
type Metrics interface {
	IncArtifactFetched(scheme string)
	IncCacheHit()
	IncCacheMiss()
	IncReload(tenant, outcome string)
	IncRuntimeSwap(tenant string)
	IncDedup(verdict string)
	IncFlowStep(status string)
	ObserveFlowStepDuration(status string, durationSeconds float64)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncArtifactFetched(string)                 {}
func (Noop) IncCacheHit()                              {}
func (Noop) IncCacheMiss()                             {}
func (Noop) IncReload(string, string)                  {}
func (Noop) IncRuntimeSwap(string)                     {}
func (Noop) IncDedup(string)                           {}
func (Noop) IncFlowStep(string)                        {}
func (Noop) ObserveFlowStepDuration(string, float64)   {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	artifactFetched *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	reloads         *prometheus.CounterVec
	runtimeSwaps    *prometheus.CounterVec
	dedupVerdicts   *prometheus.CounterVec
	flowSteps       *prometheus.CounterVec
	flowStepSeconds *prometheus.HistogramVec
	once            sync.Once
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		artifactFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_fetched_total",
			Help:      "Artifacts fetched by locator scheme",
		}, []string{"scheme"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_cache_hits_total",
			Help:      "Content-addressed cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_cache_misses_total",
			Help:      "Content-addressed cache misses",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Reconciliation outcomes by tenant",
		}, []string{"tenant", "outcome"}),
		runtimeSwaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_swaps_total",
			Help:      "Tenant runtime swaps",
		}, []string{"tenant"}),
		dedupVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_verdicts_total",
			Help:      "Dedup ledger verdicts",
		}, []string{"verdict"}),
		flowSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_steps_total",
			Help:      "Flow state machine steps by resulting status",
		}, []string{"status"}),
		flowStepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flow_step_duration_seconds",
			Help:      "Flow step latency by resulting status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		prometheus.MustRegister(
			p.artifactFetched,
			p.cacheHits,
			p.cacheMisses,
			p.reloads,
			p.runtimeSwaps,
			p.dedupVerdicts,
			p.flowSteps,
			p.flowStepSeconds,
		)
	})
}

func (p *Prom) IncArtifactFetched(scheme string) {
	p.artifactFetched.WithLabelValues(scheme).Inc()
}

func (p *Prom) IncCacheHit() {
	p.cacheHits.Inc()
}

func (p *Prom) IncCacheMiss() {
	p.cacheMisses.Inc()
}

func (p *Prom) IncReload(tenant, outcome string) {
	p.reloads.WithLabelValues(tenant, outcome).Inc()
}

func (p *Prom) IncRuntimeSwap(tenant string) {
	p.runtimeSwaps.WithLabelValues(tenant).Inc()
}

func (p *Prom) IncDedup(verdict string) {
	p.dedupVerdicts.WithLabelValues(verdict).Inc()
}

func (p *Prom) IncFlowStep(status string) {
	p.flowSteps.WithLabelValues(status).Inc()
}

func (p *Prom) ObserveFlowStepDuration(status string, durationSeconds float64) {
	p.flowStepSeconds.WithLabelValues(status).Observe(durationSeconds)
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopImplementsMetrics(t *testing.T) {
	var m Metrics = Noop{}
	m.IncArtifactFetched("https")
	m.IncCacheHit()
	m.IncCacheMiss()
	m.IncReload("demo", "ok")
	m.IncRuntimeSwap("demo")
	m.IncDedup("duplicate")
	m.IncFlowStep("completed")
	m.ObserveFlowStepDuration("completed", 0.1)
}

func TestPromCounters(t *testing.T) {
	p := NewProm("packhost_test")

	p.IncArtifactFetched("file")
	p.IncArtifactFetched("file")
	if got := testutil.ToFloat64(p.artifactFetched.WithLabelValues("file")); got != 2 {
		t.Fatalf("unexpected fetch count: %v", got)
	}

	p.IncCacheHit()
	if got := testutil.ToFloat64(p.cacheHits); got != 1 {
		t.Fatalf("unexpected cache hit count: %v", got)
	}

	p.IncReload("demo", "failed")
	if got := testutil.ToFloat64(p.reloads.WithLabelValues("demo", "failed")); got != 1 {
		t.Fatalf("unexpected reload count: %v", got)
	}

	p.IncDedup("fresh")
	if got := testutil.ToFloat64(p.dedupVerdicts.WithLabelValues("fresh")); got != 1 {
		t.Fatalf("unexpected dedup count: %v", got)
	}
}

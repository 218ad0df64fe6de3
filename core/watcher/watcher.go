package watcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/packhost/packhost/core/infra/logging"
	"github.com/packhost/packhost/core/infra/metrics"
	"github.com/packhost/packhost/core/packs"
	"github.com/packhost/packhost/core/runtime"
)

// TenantStatus is the reconciler's last-known state for one tenant.
type TenantStatus struct {
	Tenant     string    `json:"tenant"`
	Digests    []string  `json:"digests,omitempty"`
	LastReload time.Time `json:"last_reload"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

const (
	OutcomeApplied   = "applied"
	OutcomeUnchanged = "unchanged"
	OutcomeFailed    = "failed"
)

// Watcher reconciles the registry against the desired-state index. It polls
// on an interval and also reloads on demand. Failures are contained per
// tenant: a broken pack for one tenant never blocks reloads for the others,
// and the tenant's last good runtime stays live.
type Watcher struct {
	source    *packs.IndexSource
	resolvers packs.ResolverSet
	cache     *packs.Cache
	policy    packs.VerifyPolicy
	registry  *runtime.Registry
	metrics   metrics.Metrics

	interval      time.Duration
	tenantTimeout time.Duration
	cacheMaxAge   time.Duration
	cacheMaxBytes int64

	// runMu serializes whole reconcile passes: a manual reload and a ticker
	// pass must never interleave, or a pass that loaded an older index could
	// finish last and swap a superseded runtime back in.
	runMu sync.Mutex

	mu       sync.Mutex
	statuses map[string]TenantStatus
}

type Options struct {
	Source    *packs.IndexSource
	Resolvers packs.ResolverSet
	Cache     *packs.Cache
	Policy    packs.VerifyPolicy
	Registry  *runtime.Registry
	Metrics   metrics.Metrics

	Interval      time.Duration
	TenantTimeout time.Duration

	// CacheMaxAge and CacheMaxBytes bound the artifact cache; zero disables
	// the corresponding limit.
	CacheMaxAge   time.Duration
	CacheMaxBytes int64
}

func New(opts Options) (*Watcher, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("watcher: index source required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("watcher: cache required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("watcher: registry required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.TenantTimeout <= 0 {
		opts.TenantTimeout = 60 * time.Second
	}
	return &Watcher{
		source:        opts.Source,
		resolvers:     opts.Resolvers,
		cache:         opts.Cache,
		policy:        opts.Policy,
		registry:      opts.Registry,
		metrics:       opts.Metrics,
		interval:      opts.Interval,
		tenantTimeout: opts.TenantTimeout,
		cacheMaxAge:   opts.CacheMaxAge,
		cacheMaxBytes: opts.CacheMaxBytes,
		statuses:      make(map[string]TenantStatus),
	}, nil
}

// Start runs the reconcile loop until the context is canceled. The first
// reconcile happens immediately so startup does not wait a full interval.
func (w *Watcher) Start(ctx context.Context) {
	w.reconcile(ctx, "")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcile(ctx, "")
		}
	}
}

// Reload reconciles synchronously. An empty tenant reloads everything;
// otherwise only the named tenant is considered. It returns the statuses of
// the tenants it touched. A reload racing a ticker pass waits its turn.
func (w *Watcher) Reload(ctx context.Context, tenant string) ([]TenantStatus, error) {
	touched, err := w.reconcile(ctx, tenant)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]TenantStatus, 0, len(touched))
	for _, name := range touched {
		if status, ok := w.statuses[name]; ok {
			out = append(out, status)
		}
	}
	return out, nil
}

// Status returns the per-tenant reconcile state, sorted by tenant id.
func (w *Watcher) Status() []TenantStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]TenantStatus, 0, len(w.statuses))
	for _, status := range w.statuses {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tenant < out[j].Tenant })
	return out
}

// reconcile loads the index and applies each tenant's desired state. Passes
// are serialized: the index is read under the run lock, so a later pass
// always sees state at least as new as an earlier one. An index-level
// failure aborts the pass (last good runtimes stay live); a tenant-level
// failure is recorded and the pass continues.
func (w *Watcher) reconcile(ctx context.Context, only string) ([]string, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	idx, err := w.source.Load(ctx)
	if err != nil {
		logging.Warn("watcher", "index load failed, keeping last good state", "error", err)
		return nil, err
	}

	touched := make([]string, 0, len(idx.Tenants))
	for tenant, entry := range idx.Tenants {
		if only != "" && tenant != only {
			continue
		}
		touched = append(touched, tenant)
		w.reconcileTenant(ctx, tenant, entry)
	}
	if only != "" && len(touched) == 0 {
		return nil, fmt.Errorf("tenant %q not present in index", only)
	}
	w.pruneCache()
	sort.Strings(touched)
	return touched, nil
}

// pruneCache applies the configured age/size bounds after a pass, keeping
// the artifact cache from growing without limit on a long-running host.
func (w *Watcher) pruneCache() {
	if w.cacheMaxAge <= 0 && w.cacheMaxBytes <= 0 {
		return
	}
	removed, err := w.cache.Prune(w.cacheMaxAge, w.cacheMaxBytes)
	if err != nil {
		logging.Warn("watcher", "cache prune failed", "error", err)
		return
	}
	if removed > 0 {
		logging.Info("watcher", "cache pruned", "removed", removed)
	}
}

func (w *Watcher) reconcileTenant(ctx context.Context, tenant string, entry packs.TenantIndexEntry) {
	desired := normalizeDigests(entry.DigestSet())
	if current := w.registry.Get(tenant); current != nil && current.SameDigests(desired) {
		w.setStatus(tenant, desired, OutcomeUnchanged, nil)
		return
	}

	tenantCtx, cancel := context.WithTimeout(ctx, w.tenantTimeout)
	defer cancel()

	rt, err := w.buildRuntime(tenantCtx, tenant, entry)
	if err != nil {
		logging.Error("watcher", "tenant reload failed", "tenant", tenant, "error", err)
		w.metrics.IncReload(tenant, OutcomeFailed)
		w.setStatus(tenant, desired, OutcomeFailed, err)
		return
	}

	w.registry.Swap(rt)
	w.metrics.IncReload(tenant, OutcomeApplied)
	w.metrics.IncRuntimeSwap(tenant)
	w.setStatus(tenant, rt.Digests, OutcomeApplied, nil)
	logging.Info("watcher", "tenant runtime applied", "tenant", tenant, "flows", len(rt.Flows), "digests", len(rt.Digests))
}

func (w *Watcher) buildRuntime(ctx context.Context, tenant string, entry packs.TenantIndexEntry) (*runtime.TenantRuntime, error) {
	main, err := w.loadSource(ctx, entry.MainPack)
	if err != nil {
		return nil, fmt.Errorf("main pack %s: %w", entry.MainPack.Name, err)
	}
	overlays := make([]runtime.Source, 0, len(entry.Overlays))
	for _, overlayEntry := range entry.Overlays {
		overlay, err := w.loadSource(ctx, overlayEntry)
		if err != nil {
			return nil, fmt.Errorf("overlay %s: %w", overlayEntry.Name, err)
		}
		overlays = append(overlays, overlay)
	}
	return runtime.Compose(tenant, main, overlays)
}

// loadSource fetches, verifies, and parses one artifact. Fetch goes through
// the cache, so an already-verified digest never refetches; the verify step
// runs inside the cache's fetch path, before bytes are admitted.
func (w *Watcher) loadSource(ctx context.Context, entry packs.PackEntry) (runtime.Source, error) {
	digest := packs.NormalizeDigest(entry.Digest)
	data, err := w.cache.GetOrFetch(ctx, digest, func(ctx context.Context) ([]byte, error) {
		loc, err := packs.ParseLocator(entry.Locator)
		if err != nil {
			return nil, err
		}
		raw, err := w.resolvers.Resolve(ctx, entry.Locator)
		if err != nil {
			return nil, err
		}
		w.metrics.IncArtifactFetched(loc.Scheme)
		if err := w.policy.Verify(raw, digest, entry.Signature); err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return runtime.Source{}, err
	}
	manifest, err := packs.ParseManifest(data)
	if err != nil {
		return runtime.Source{}, err
	}
	return runtime.Source{Manifest: manifest, Digest: digest}, nil
}

func (w *Watcher) setStatus(tenant string, digests []string, outcome string, err error) {
	status := TenantStatus{
		Tenant:     tenant,
		Digests:    digests,
		LastReload: time.Now().UTC(),
		Outcome:    outcome,
	}
	if err != nil {
		status.Error = err.Error()
		// keep the last applied digest set visible while failing
		if current := w.registry.Get(tenant); current != nil {
			status.Digests = current.Digests
		}
	}
	w.mu.Lock()
	w.statuses[tenant] = status
	w.mu.Unlock()
}

func normalizeDigests(digests []string) []string {
	out := make([]string, len(digests))
	for i, d := range digests {
		out[i] = packs.NormalizeDigest(d)
	}
	return out
}

package runtime

import (
	"sync"
	"sync/atomic"
)

// Registry holds the live runtime per tenant behind an atomic pointer.
// Readers on the hot path never block: Get loads the current map without
// locking, and writers publish a fresh copy on every change. In-flight work
// holding an old runtime keeps using it until released.
type Registry struct {
	current atomic.Value // map[string]*TenantRuntime
	writeMu sync.Mutex
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(map[string]*TenantRuntime{})
	return r
}

// Get returns the tenant's current runtime, or nil when none is registered.
func (r *Registry) Get(tenant string) *TenantRuntime {
	if r == nil {
		return nil
	}
	return r.snapshot()[tenant]
}

// Swap publishes rt for its tenant and returns the runtime it replaced.
func (r *Registry) Swap(rt *TenantRuntime) *TenantRuntime {
	if r == nil || rt == nil {
		return nil
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	old := r.snapshot()
	next := make(map[string]*TenantRuntime, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	prev := next[rt.Tenant]
	next[rt.Tenant] = rt
	r.current.Store(next)
	return prev
}

// Remove drops the tenant's runtime, returning what was removed.
func (r *Registry) Remove(tenant string) *TenantRuntime {
	if r == nil {
		return nil
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	old := r.snapshot()
	prev, ok := old[tenant]
	if !ok {
		return nil
	}
	next := make(map[string]*TenantRuntime, len(old)-1)
	for k, v := range old {
		if k != tenant {
			next[k] = v
		}
	}
	r.current.Store(next)
	return prev
}

// Tenants lists the tenants with a registered runtime.
func (r *Registry) Tenants() []string {
	if r == nil {
		return nil
	}
	snap := r.snapshot()
	out := make([]string, 0, len(snap))
	for tenant := range snap {
		out = append(out, tenant)
	}
	return out
}

func (r *Registry) snapshot() map[string]*TenantRuntime {
	snap, _ := r.current.Load().(map[string]*TenantRuntime)
	return snap
}

package runtime

import (
	"time"

	"github.com/packhost/packhost/core/flow"
)

// TenantRuntime is the composed, immutable flow set a tenant runs against.
// Once published to the registry it is never mutated; reloads build a new
// value and swap it in.
type TenantRuntime struct {
	Tenant     string
	Flows      map[string]*flow.Definition
	EntryFlows []string
	Digests    []string
	BuiltAt    time.Time
}

// Flow returns the definition for id, or nil when the runtime has none.
func (r *TenantRuntime) Flow(id string) *flow.Definition {
	if r == nil {
		return nil
	}
	return r.Flows[id]
}

// DefaultFlow returns the first entry flow, used when an event names none.
func (r *TenantRuntime) DefaultFlow() string {
	if r == nil || len(r.EntryFlows) == 0 {
		return ""
	}
	return r.EntryFlows[0]
}

// SameDigests reports whether the runtime was built from exactly these
// digests in the same order. Order matters: overlay precedence depends on it.
func (r *TenantRuntime) SameDigests(digests []string) bool {
	if r == nil || len(r.Digests) != len(digests) {
		return false
	}
	for i, d := range r.Digests {
		if d != digests[i] {
			return false
		}
	}
	return true
}

package runtime

import (
	"fmt"
	"time"

	"github.com/packhost/packhost/core/flow"
	"github.com/packhost/packhost/core/packs"
)

// Source pairs a parsed manifest with the digest it was fetched under.
type Source struct {
	Manifest *packs.Manifest
	Digest   string
}

// Compose merges the main pack and its overlays into one runtime. Overlays
// apply in order and replace whole flows by id: a later overlay wins over an
// earlier one, and every overlay wins over main. The result is deterministic
// for a given input order.
func Compose(tenant string, main Source, overlays []Source) (*TenantRuntime, error) {
	if main.Manifest == nil {
		return nil, fmt.Errorf("tenant %s: main pack manifest missing", tenant)
	}
	flows := make(map[string]*flow.Definition, len(main.Manifest.Flows))
	digests := make([]string, 0, 1+len(overlays))
	digests = append(digests, main.Digest)

	for id, def := range main.Manifest.Flows {
		flows[id] = def
	}
	for i, overlay := range overlays {
		if overlay.Manifest == nil {
			return nil, fmt.Errorf("tenant %s: overlay %d manifest missing", tenant, i)
		}
		for id, def := range overlay.Manifest.Flows {
			flows[id] = def
		}
		digests = append(digests, overlay.Digest)
	}

	entry := append([]string(nil), main.Manifest.Pack.EntryFlows...)
	if len(entry) == 0 {
		// fall back to a deterministic single entry when main declares none
		if len(main.Manifest.Flows) == 1 {
			for id := range main.Manifest.Flows {
				entry = append(entry, id)
			}
		}
	}
	for _, id := range entry {
		if _, ok := flows[id]; !ok {
			return nil, fmt.Errorf("tenant %s: entry flow %q not present after compose", tenant, id)
		}
	}

	return &TenantRuntime{
		Tenant:     tenant,
		Flows:      flows,
		EntryFlows: entry,
		Digests:    digests,
		BuiltAt:    time.Now().UTC(),
	}, nil
}

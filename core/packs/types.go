package packs

import (
	"fmt"
	"strings"
)

// PackReference identifies an artifact logically.
type PackReference struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// PackLocator carries the physical retrieval address for an artifact.
type PackLocator struct {
	Scheme  string `json:"scheme" yaml:"scheme"`
	Address string `json:"address" yaml:"address"`
}

const (
	SchemeFile  = "file"
	SchemeHTTPS = "https"
	SchemeHTTP  = "http"
	SchemeRedis = "redis"
)

// ParseLocator splits a locator URI into scheme and address. A bare path is
// treated as a filesystem locator.
func ParseLocator(raw string) (PackLocator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PackLocator{}, fmt.Errorf("empty locator")
	}
	switch {
	case strings.HasPrefix(raw, "file://"):
		return PackLocator{Scheme: SchemeFile, Address: strings.TrimPrefix(raw, "file://")}, nil
	case strings.HasPrefix(raw, "https://"), strings.HasPrefix(raw, "http://"):
		scheme := SchemeHTTPS
		if strings.HasPrefix(raw, "http://") {
			scheme = SchemeHTTP
		}
		return PackLocator{Scheme: scheme, Address: raw}, nil
	case strings.HasPrefix(raw, "redis://"):
		key := strings.TrimPrefix(raw, "redis://")
		if key == "" {
			return PackLocator{}, fmt.Errorf("redis locator missing key: %s", raw)
		}
		return PackLocator{Scheme: SchemeRedis, Address: key}, nil
	case strings.Contains(raw, "://"):
		return PackLocator{}, fmt.Errorf("unsupported locator scheme: %s", raw)
	default:
		return PackLocator{Scheme: SchemeFile, Address: raw}, nil
	}
}

// PackEntry describes one artifact in the index: logical reference, physical
// locator, and the digest (plus optional signature) to verify against.
type PackEntry struct {
	Name      string `json:"name" yaml:"name"`
	Version   string `json:"version" yaml:"version"`
	Locator   string `json:"locator" yaml:"locator"`
	Digest    string `json:"digest" yaml:"digest"`
	Signature string `json:"signature,omitempty" yaml:"signature,omitempty"`
}

// Reference returns the logical reference for the entry.
func (e PackEntry) Reference() PackReference {
	return PackReference{Name: e.Name, Version: e.Version}
}

// TenantIndexEntry is the desired state for one tenant: a main pack plus an
// ordered list of overlays. Overlay order determines override precedence.
type TenantIndexEntry struct {
	MainPack PackEntry   `json:"main_pack" yaml:"main_pack"`
	Overlays []PackEntry `json:"overlays,omitempty" yaml:"overlays,omitempty"`
}

// DigestSet returns the main digest followed by overlay digests in order.
func (t TenantIndexEntry) DigestSet() []string {
	out := make([]string, 0, 1+len(t.Overlays))
	out = append(out, t.MainPack.Digest)
	for _, overlay := range t.Overlays {
		out = append(out, overlay.Digest)
	}
	return out
}

// Index maps tenant ids to their desired pack set.
type Index struct {
	Tenants map[string]TenantIndexEntry
}

// Validate checks structural invariants the schema cannot express alone.
func (idx *Index) Validate() error {
	if idx == nil {
		return fmt.Errorf("nil index")
	}
	for tenant, entry := range idx.Tenants {
		if strings.TrimSpace(tenant) == "" {
			return fmt.Errorf("index contains empty tenant id")
		}
		if err := validateEntry(tenant, "main_pack", entry.MainPack); err != nil {
			return err
		}
		for i, overlay := range entry.Overlays {
			if err := validateEntry(tenant, fmt.Sprintf("overlays[%d]", i), overlay); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateEntry(tenant, field string, entry PackEntry) error {
	if strings.TrimSpace(entry.Locator) == "" {
		return fmt.Errorf("tenant %s: %s locator required", tenant, field)
	}
	if strings.TrimSpace(entry.Digest) == "" {
		return fmt.Errorf("tenant %s: %s digest required", tenant, field)
	}
	if _, err := ParseLocator(entry.Locator); err != nil {
		return fmt.Errorf("tenant %s: %s: %w", tenant, field, err)
	}
	return nil
}

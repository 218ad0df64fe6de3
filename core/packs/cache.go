package packs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/packhost/packhost/core/infra/logging"
	"github.com/packhost/packhost/core/infra/metrics"
)

// FetchFunc retrieves and verifies artifact bytes for a digest. It is only
// invoked on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Cache is a content-addressed artifact cache backed by a directory. Entries
// are keyed by digest, so a hit never needs re-verification beyond the hash
// check that guards against on-disk corruption. Concurrent requests for the
// same missing digest collapse into a single fetch.
type Cache struct {
	dir     string
	metrics metrics.Metrics

	mu       sync.Mutex
	inflight map[string]*fetchCall
}

type fetchCall struct {
	done chan struct{}
	data []byte
	err  error
}

func NewCache(dir string, m metrics.Metrics) (*Cache, error) {
	if m == nil {
		m = metrics.Noop{}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, metrics: m, inflight: make(map[string]*fetchCall)}, nil
}

// GetOrFetch returns the bytes for digest, fetching via fn on a miss. A
// corrupt on-disk entry is discarded and refetched. At most one fetch per
// digest runs at a time; waiters share its result.
func (c *Cache) GetOrFetch(ctx context.Context, digest string, fn FetchFunc) ([]byte, error) {
	digest = NormalizeDigest(digest)
	if digest == "" {
		return nil, fmt.Errorf("empty digest")
	}

	if data, ok := c.readLocal(digest); ok {
		c.metrics.IncCacheHit()
		return data, nil
	}

	c.mu.Lock()
	if call, ok := c.inflight[digest]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.data, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &fetchCall{done: make(chan struct{})}
	c.inflight[digest] = call
	c.mu.Unlock()

	call.data, call.err = c.fetch(ctx, digest, fn)
	close(call.done)

	c.mu.Lock()
	delete(c.inflight, digest)
	c.mu.Unlock()

	return call.data, call.err
}

func (c *Cache) fetch(ctx context.Context, digest string, fn FetchFunc) ([]byte, error) {
	// Another goroutine may have populated the entry between our local read
	// and taking ownership of the fetch.
	if data, ok := c.readLocal(digest); ok {
		c.metrics.IncCacheHit()
		return data, nil
	}
	c.metrics.IncCacheMiss()
	data, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if got := ComputeDigest(data); got != digest {
		return nil, fmt.Errorf("%w: want %s got %s", ErrDigestMismatch, digest, got)
	}
	if err := c.writeLocal(digest, data); err != nil {
		// Cache persistence is best effort: the caller still gets the bytes.
		logging.Warn("packs", "cache write failed", "digest", digest, "error", err)
	}
	return data, nil
}

func (c *Cache) readLocal(digest string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(digest))
	if err != nil {
		return nil, false
	}
	if ComputeDigest(data) != digest {
		logging.Warn("packs", "corrupt cache entry discarded", "digest", digest)
		_ = os.Remove(c.path(digest))
		return nil, false
	}
	return data, true
}

func (c *Cache) writeLocal(digest string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, "fetch-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, c.path(digest))
}

func (c *Cache) path(digest string) string {
	return filepath.Join(c.dir, strings.ReplaceAll(digest, ":", "_"))
}

// Prune removes cached entries older than maxAge and, if maxBytes > 0, evicts
// oldest entries until total size fits. Returns the number of files removed.
func (c *Cache) Prune(maxAge time.Duration, maxBytes int64) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	type cacheFile struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []cacheFile
	now := time.Now()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "sha256_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if maxAge > 0 && now.Sub(info.ModTime()) > maxAge {
			if os.Remove(path) == nil {
				removed++
			}
			continue
		}
		files = append(files, cacheFile{path: path, size: info.Size(), modTime: info.ModTime()})
	}
	if maxBytes > 0 {
		var total int64
		for _, f := range files {
			total += f.size
		}
		sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
		for _, f := range files {
			if total <= maxBytes {
				break
			}
			if os.Remove(f.path) == nil {
				total -= f.size
				removed++
			}
		}
	}
	return removed, nil
}

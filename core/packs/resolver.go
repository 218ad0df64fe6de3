package packs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/packhost/packhost/core/infra/redisutil"
)

// Resolver fetches raw artifact bytes for one locator scheme.
type Resolver interface {
	Scheme() string
	Resolve(ctx context.Context, address string) ([]byte, error)
}

// ResolverSet routes locators to the resolver for their scheme.
type ResolverSet map[string]Resolver

// NewResolverSet registers each resolver under its scheme.
func NewResolverSet(resolvers ...Resolver) ResolverSet {
	set := make(ResolverSet, len(resolvers))
	for _, r := range resolvers {
		set[r.Scheme()] = r
	}
	return set
}

// Resolve parses the locator and dispatches to the matching resolver.
func (s ResolverSet) Resolve(ctx context.Context, locator string) ([]byte, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	scheme := loc.Scheme
	if scheme == SchemeHTTP {
		scheme = SchemeHTTPS
	}
	resolver, ok := s[scheme]
	if !ok {
		return nil, fmt.Errorf("no resolver for scheme %q", loc.Scheme)
	}
	return resolver.Resolve(ctx, loc.Address)
}

// FSResolver reads artifacts from the local filesystem.
type FSResolver struct{}

func (FSResolver) Scheme() string { return SchemeFile }

func (FSResolver) Resolve(_ context.Context, address string) ([]byte, error) {
	data, err := os.ReadFile(address)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnreachable, address, err)
	}
	return data, nil
}

// HTTPSResolver fetches artifacts over HTTP(S) with bounded retries. Transient
// failures back off exponentially; a definite 404 aborts immediately.
type HTTPSResolver struct {
	Client      *http.Client
	MaxAttempts int
	Backoff     time.Duration
}

func NewHTTPSResolver() *HTTPSResolver {
	return &HTTPSResolver{
		Client:      &http.Client{Timeout: 15 * time.Second},
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
}

func (*HTTPSResolver) Scheme() string { return SchemeHTTPS }

func (r *HTTPSResolver) Resolve(ctx context.Context, address string) ([]byte, error) {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		data, retryable, err := r.fetch(ctx, client, address)
		if err == nil {
			return data, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, address, lastErr)
}

func (r *HTTPSResolver) fetch(ctx context.Context, client *http.Client, address string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, address)
	case resp.StatusCode >= 400:
		return nil, true, fmt.Errorf("http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	return data, false, nil
}

// RedisResolver fetches artifacts stored as values in redis, keyed by the
// locator address. This backs the object-store locator scheme.
type RedisResolver struct {
	client *redis.Client
}

func NewRedisResolver(redisURL string) (*RedisResolver, error) {
	client, err := redisutil.NewClient(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisResolver{client: client}, nil
}

// NewRedisResolverFromClient wraps an existing client, for shared connections.
func NewRedisResolverFromClient(client *redis.Client) *RedisResolver {
	return &RedisResolver{client: client}
}

func (*RedisResolver) Scheme() string { return SchemeRedis }

func (r *RedisResolver) Resolve(ctx context.Context, address string) ([]byte, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("%w: redis resolver not configured", ErrUnreachable)
	}
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	data, err := r.client.Get(opCtx, address).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, address, err)
	}
	return data, nil
}

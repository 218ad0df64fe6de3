package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/packhost/packhost/core/flow"
	"github.com/packhost/packhost/core/host"
	"github.com/packhost/packhost/core/infra/bus"
	"github.com/packhost/packhost/core/infra/config"
	"github.com/packhost/packhost/core/infra/kvstore"
	infraMetrics "github.com/packhost/packhost/core/infra/metrics"
	"github.com/packhost/packhost/core/ingress"
	"github.com/packhost/packhost/core/packs"
	"github.com/packhost/packhost/core/runtime"
	"github.com/packhost/packhost/core/watcher"
)

func main() {
	log.Println("packhost runner starting...")

	cfg := config.Load()

	metrics := infraMetrics.NewProm("packhost")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:         ":9090",
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		log.Println("runner metrics on :9090/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	store, err := kvstore.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer store.Close()

	natsBus, err := bus.NewNatsBus(cfg.NatsURL)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer natsBus.Close()

	redisResolver, err := packs.NewRedisResolver(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to build redis resolver: %v", err)
	}
	resolvers := packs.NewResolverSet(
		packs.FSResolver{},
		packs.NewHTTPSResolver(),
		redisResolver,
	)

	cache, err := packs.NewCache(cfg.CacheDir, metrics)
	if err != nil {
		log.Fatalf("failed to open pack cache at %s: %v", cfg.CacheDir, err)
	}

	policy, err := packs.NewVerifyPolicy(cfg.PublicKey, cfg.AllowUnsigned)
	if err != nil {
		log.Fatalf("bad pack public key: %v", err)
	}

	source, err := packs.NewIndexSource(cfg.IndexURL, resolvers)
	if err != nil {
		log.Fatalf("bad index locator %s: %v", cfg.IndexURL, err)
	}

	registry := runtime.NewRegistry()
	w, err := watcher.New(watcher.Options{
		Source:        source,
		Resolvers:     resolvers,
		Cache:         cache,
		Policy:        policy,
		Registry:      registry,
		Metrics:       metrics,
		Interval:      cfg.RefreshInterval,
		CacheMaxAge:   cfg.CacheMaxAge,
		CacheMaxBytes: cfg.CacheMaxBytes,
	})
	if err != nil {
		log.Fatalf("failed to build watcher: %v", err)
	}

	ledger := ingress.NewLedger(store, cfg.DedupRetention, metrics)
	snapshots := flow.NewSnapshotStore(store, cfg.SnapshotTTL)
	machine := flow.NewMachine(snapshots, flow.LocalExecutor{}, metrics)

	h, err := host.New(registry, ledger, machine)
	if err != nil {
		log.Fatalf("failed to build host: %v", err)
	}
	if err := host.AttachIngress(natsBus, h); err != nil {
		log.Fatalf("failed to attach ingress: %v", err)
	}
	if err := host.AttachControlPlane(natsBus, w); err != nil {
		log.Fatalf("failed to attach control plane: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	log.Printf("packhost runner ready (index=%s cache=%s refresh=%s)", cfg.IndexURL, cfg.CacheDir, cfg.RefreshInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("packhost runner shutting down")
}

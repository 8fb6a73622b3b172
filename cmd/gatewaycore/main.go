// Package main is the entry point for the gatewaycore gateway.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/devon-ng/gatewaycore/internal/config"
	"github.com/devon-ng/gatewaycore/internal/coordinator"
	"github.com/devon-ng/gatewaycore/internal/credential"
	"github.com/devon-ng/gatewaycore/internal/kv"
	"github.com/devon-ng/gatewaycore/internal/kv/memstore"
	"github.com/devon-ng/gatewaycore/internal/kv/redisstore"
	"github.com/devon-ng/gatewaycore/internal/metrics"
	"github.com/devon-ng/gatewaycore/internal/params"
	"github.com/devon-ng/gatewaycore/internal/provider"
	"github.com/devon-ng/gatewaycore/internal/ratelimit"
	"github.com/devon-ng/gatewaycore/internal/server"
)

func main() {
	apiConfigPath := flag.String("config", "config.yaml", "path to the API config document")
	displayConfigPath := flag.String("display", "display.yaml", "path to the display config document (empty to skip)")
	flag.Parse()

	cfg, err := config.Load(*apiConfigPath, *displayConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store := newStore(cfg)
	registry := provider.NewRegistry()
	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	limits := make(map[config.ProviderID]ratelimit.Config, len(cfg.RateLimits))
	for providerID, rl := range cfg.RateLimits {
		limits[providerID] = ratelimit.Config{RequestsPerSecond: rl.RequestsPerSecond, Burst: rl.Burst}
	}
	limiter := ratelimit.New(limits)

	creds := credential.New(store, credential.NewValidator(cfg, registry, http.DefaultClient))
	resolver := params.New(cfg, params.NewSettingsStore(store))
	coord := coordinator.New(cfg, resolver, registry, store, http.DefaultClient, recorder)

	srv := server.New(cfg, coord, creds, limiter)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("gatewaycore listening on :%d (storage=%s)", cfg.Server.Port, cfg.Storage.Backend)

	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// newStore picks the credential/response-record backing store per
// §3.2: a real Redis instance when configured, otherwise the in-memory
// default.
func newStore(cfg *config.Config) kv.Store {
	if cfg.Storage.Backend != "redis" {
		return memstore.New()
	}
	client := goredis.NewClient(&goredis.Options{Addr: cfg.Storage.RedisAddr})
	return redisstore.New(client, cfg.Storage.KeyPrefix)
}

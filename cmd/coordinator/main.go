package main

import (
	"context"
	"log"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"

	"github.com/VenkatGGG/tiercoord/internal/api"
	"github.com/VenkatGGG/tiercoord/internal/catalog"
	"github.com/VenkatGGG/tiercoord/internal/config"
	"github.com/VenkatGGG/tiercoord/internal/coordinator"
	"github.com/VenkatGGG/tiercoord/internal/idempotency"
	"github.com/VenkatGGG/tiercoord/internal/resource"
	"github.com/VenkatGGG/tiercoord/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pools := resource.NewRegistry()
	for _, spec := range cfg.Pools {
		if err := pools.Define(spec.Name, spec.CapacityBytes); err != nil {
			log.Fatalf("define pool %s: %v", spec.Name, err)
		}
		log.Printf("pool defined: pool=%s capacity=%s", spec.Name, humanize.IBytes(uint64(spec.CapacityBytes)))
	}

	var entries store.Store = store.NewMemory()
	var idem idempotency.Store = idempotency.NewMemory()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		entries = store.NewRedis(client, cfg.RedisKeyPrefix)
		idem = idempotency.NewRedis(client, cfg.RedisKeyPrefix+":idem")
		log.Printf("entry store: redis addr=%s", cfg.RedisAddr)
	} else {
		log.Printf("entry store: in-memory")
	}

	var cat catalog.Catalog = catalog.NewMemory()
	if cfg.PostgresDSN != "" {
		pgCatalog, err := catalog.NewPostgres(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("postgres catalog: %v", err)
		}
		defer pgCatalog.Close()
		cat = pgCatalog
		log.Printf("tier catalog: postgres")
	} else {
		log.Printf("tier catalog: in-memory")
	}

	hub := api.NewHub(cfg.StreamWriteTimeout, log.Default())
	coord := coordinator.NewService(pools, entries, cat, hub, log.Default())
	if err := coord.Restore(context.Background()); err != nil {
		log.Fatalf("restore tiers: %v", err)
	}

	server := api.NewServer(coord, hub, idem, cfg.AdminAPIKey, log.Default())
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	log.Printf("coordinator listening on %s", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("coordinator failed: %v", err)
	}
}

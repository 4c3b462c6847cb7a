package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/shoprec/internal/config"
	"github.com/scrypster/shoprec/internal/engine"
	"github.com/scrypster/shoprec/internal/provider"
	"github.com/scrypster/shoprec/internal/recommend"
	"github.com/scrypster/shoprec/internal/server"
	"github.com/scrypster/shoprec/internal/signals"
	"github.com/scrypster/shoprec/internal/storage"
	"github.com/scrypster/shoprec/internal/storage/postgres"
	redisstore "github.com/scrypster/shoprec/internal/storage/redis"
	"github.com/scrypster/shoprec/internal/storage/sqlite"
	"github.com/scrypster/shoprec/web/handlers"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Durable store. SQLite covers every interface; with postgres the
	// embedding store moves there and SQLite keeps the rest.
	store, err := sqlite.NewStore(cfg.Storage.DataPath + "/shoprec.db")
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	var embeddings storage.EmbeddingStore = store
	if cfg.Storage.Engine == "postgres" {
		pgStore, err := postgres.NewEmbeddingStore(cfg.Storage.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to initialize postgres embedding store: %v", err)
		}
		defer pgStore.Close()
		embeddings = pgStore
	}
	embeddings, err = storage.NewCachedEmbeddingStore(embeddings, cfg.Storage.EmbeddingCacheSize)
	if err != nil {
		log.Fatalf("Failed to initialize embedding cache: %v", err)
	}

	// Signal state lives in Redis when configured, in SQLite otherwise.
	var trendingStore storage.TrendingStore = store
	var recentStore storage.RecentStore = store
	if cfg.Storage.RedisAddr != "" {
		signalStore, err := redisstore.NewSignalStore(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", cfg.Storage.RedisAddr, err)
		}
		defer signalStore.Close()
		trendingStore = signalStore
		recentStore = signalStore
	}

	generator, err := provider.NewEmbeddingGenerator(cfg.Provider)
	if err != nil {
		log.Fatalf("Failed to initialize embedding provider: %v", err)
	}

	trending := signals.NewTrending(store, trendingStore, signals.TrendingConfig{
		Window:         cfg.Signals.TrendingWindow,
		PurchaseWeight: cfg.Signals.PurchaseWeight,
		ViewWeight:     cfg.Signals.ViewWeight,
	})
	coOccurrence := signals.NewCoOccurrence(store)
	recent := signals.NewRecentlyViewed(recentStore, cfg.Signals.RecentlyViewedCap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.NewRecommendationEngine(embeddings, generator, trending, engine.Config{
		NumWorkers:       cfg.Embedding.NumWorkers,
		QueueSize:        cfg.Embedding.QueueSize,
		MaxRetries:       cfg.Embedding.MaxRetries,
		BatchSize:        cfg.Embedding.BatchSize,
		BatchConcurrency: cfg.Embedding.BatchConcurrency,
		TrendingInterval: cfg.Signals.TrendingInterval,
	})
	if err != nil {
		log.Fatalf("Failed to initialize recommendation engine: %v", err)
	}
	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start recommendation engine: %v", err)
	}

	orchestrator := recommend.NewOrchestrator(embeddings, store, trending, coOccurrence, recent, generator)

	api := handlers.NewAPIHandlers(store, eng, orchestrator, embeddings, store, coOccurrence, recent, trending, generator)

	addr, wsHub := server.Start(ctx, cfg, api)
	log.Printf("shoprec API running at http://%s", addr)

	// Push pipeline events to connected storefront clients.
	eng.SetOnEmbeddingComplete(wsHub.BroadcastEmbeddingCompleted)
	eng.SetOnTrendingRefreshed(wsHub.BroadcastTrendingRefreshed)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down recommendation engine: %v", err)
	}

	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

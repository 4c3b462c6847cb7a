// Command shoprec-backfill generates embeddings for every catalog product
// that has no current vector. It is safe to re-run; up-to-date products are
// skipped by text-hash comparison.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/scrypster/shoprec/internal/config"
	"github.com/scrypster/shoprec/internal/engine"
	"github.com/scrypster/shoprec/internal/provider"
	"github.com/scrypster/shoprec/internal/storage"
	"github.com/scrypster/shoprec/internal/storage/postgres"
	"github.com/scrypster/shoprec/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	dryRun := flag.Bool("dry-run", false, "Report what would be embedded without calling the provider")
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

	ctx := context.Background()

	if *dryRun {
		reportDryRun(ctx, store, embeddings, cfg)
		return
	}

	generator, err := provider.NewEmbeddingGenerator(cfg.Provider)
	if err != nil {
		log.Fatalf("Failed to initialize embedding provider: %v", err)
	}

	eng, err := engine.NewRecommendationEngine(embeddings, generator, nil, engine.Config{
		MaxRetries:       cfg.Embedding.MaxRetries,
		BatchSize:        cfg.Embedding.BatchSize,
		BatchConcurrency: cfg.Embedding.BatchConcurrency,
	})
	if err != nil {
		log.Fatalf("Failed to initialize recommendation engine: %v", err)
	}

	result, err := eng.Backfill(ctx, store)
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}

	fmt.Printf("Backfill finished: %d generated, %d skipped, %d failed\n",
		result.Generated, result.Skipped, len(result.Failed))

	if len(result.Failed) > 0 {
		ids := make([]string, 0, len(result.Failed))
		for id := range result.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  failed %s: %v\n", id, result.Failed[id])
		}
		os.Exit(1)
	}
}

// reportDryRun lists the products a real run would embed, without touching
// the provider.
func reportDryRun(ctx context.Context, catalog storage.CatalogStore, embeddings storage.EmbeddingStore, cfg *config.Config) {
	products, err := catalog.AllProducts(ctx)
	if err != nil {
		log.Fatalf("Failed to list catalog: %v", err)
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	existing, err := embeddings.GetMany(ctx, ids)
	if err != nil {
		log.Fatalf("Failed to load existing embeddings: %v", err)
	}

	stale := 0
	for _, p := range products {
		if emb, ok := existing[p.ID]; ok && emb.TextHash == p.TextHash() {
			continue
		}
		stale++
		fmt.Printf("  would embed %s (%s)\n", p.ID, p.Title)
	}
	fmt.Printf("Dry run: %d of %d products need embeddings\n", stale, len(products))
}

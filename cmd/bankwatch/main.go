// Command bankwatch is the entry point for the reputation-event CLI.
// It wires storage, connectors, and services together and hands the
// assembled ports to the command layer.
package main

import (
	"fmt"
	"os"

	"github.com/clearline-labs/bankwatch/internal/adapters/driven/config/file"
	"github.com/clearline-labs/bankwatch/internal/adapters/driven/registry/bankfind"
	"github.com/clearline-labs/bankwatch/internal/adapters/driven/storage/sqlite"
	"github.com/clearline-labs/bankwatch/internal/adapters/driving/cli"
	"github.com/clearline-labs/bankwatch/internal/connectors/fdic"
	"github.com/clearline-labs/bankwatch/internal/connectors/newsapi"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
	"github.com/clearline-labs/bankwatch/internal/core/services"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bankwatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewStore("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := configStore.Config()

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	connectors := buildConnectors(cfg)

	resolver := services.NewResolver(store.InstitutionStore(), bankfind.NewClient())
	normalizer := services.NewNormalizer(services.DefaultMappingConfig(), resolver)
	collector := services.NewCollectionOrchestrator(
		connectors, normalizer, store.EventStore(), cfg.CollectionConfig())
	defer collector.Close()

	catalog := services.NewCatalogService(store.EventStore())
	scheduler := services.NewScheduler(cfg.SchedulerConfig(), store.SchedulerStore(), collector)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Collector: collector,
		Catalog:   catalog,
		Scheduler: scheduler,
	})
	return cli.Execute()
}

func buildConnectors(cfg file.Config) []driven.Connector {
	var connectors []driven.Connector

	if cfg.FDIC.Enabled {
		connectors = append(connectors, fdic.New(fdic.Config{
			BaseURL:  cfg.FDIC.BaseURL,
			PageSize: cfg.FDIC.PageSize,
		}))
	}

	if cfg.NewsAPI.Enabled {
		connectors = append(connectors, newsapi.New(newsapi.Config{
			APIKey:    cfg.NewsAPI.APIKey,
			Watchlist: cfg.NewsAPI.Watchlist,
			PageSize:  cfg.NewsAPI.PageSize,
			MaxPages:  cfg.NewsAPI.MaxPages,
		}))
	}

	return connectors
}

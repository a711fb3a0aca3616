package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/custodia-labs/sheetdex/internal/adapters/driven/ai"
	"github.com/custodia-labs/sheetdex/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sheetdex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sheetdex/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sheetdex/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/cli"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
	"github.com/custodia-labs/sheetdex/internal/core/services"
	"github.com/custodia-labs/sheetdex/internal/index"
	"github.com/custodia-labs/sheetdex/internal/logger"
	"github.com/custodia-labs/sheetdex/internal/parsers"
	"github.com/custodia-labs/sheetdex/internal/workerpool"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Startup logs are emitted before cobra parses flags.
	logger.SetVerbose(verboseRequested(os.Args[1:]))

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	if overrides := configStore.Overrides(); len(overrides) > 0 {
		logger.Debug("Config overrides from environment: %s", strings.Join(overrides, ", "))
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	stores, err := openStores(ctx, settings)
	if err != nil {
		return err
	}
	defer stores.Close()

	ingestPool, err := workerpool.New("ingest", workerpool.Config{
		Size:           settings.Pool.IngestSize,
		Queue:          settings.Pool.IngestQueue,
		Nonblocking:    settings.Pool.Nonblocking,
		ExpiryDuration: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create ingest pool: %w", err)
	}
	defer ingestPool.Release()

	queryPool, err := workerpool.New("query", workerpool.Config{
		Size:           settings.Pool.QuerySize,
		Queue:          settings.Pool.QueryQueue,
		Nonblocking:    settings.Pool.Nonblocking,
		ExpiryDuration: time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create query pool: %w", err)
	}
	defer queryPool.Release()

	providers := ai.Init(settings)
	defer providers.Close()
	for _, w := range providers.Warnings {
		logger.Warn("%s", w)
	}

	embedder := services.NewEmbedder(providers.EmbeddingService, stores.embeddings, ingestPool, queryPool,
		services.EmbedderConfig{
			Dimensions:     settings.Embedding.Dimensions,
			BatchSize:      settings.Embedding.BatchSize,
			BatchWindow:    settings.Embedding.BatchWindow,
			MaxAttempts:    settings.Embedding.MaxAttempts,
			InitialBackoff: 200 * time.Millisecond,
			RateLimit:      settings.Embedding.RateLimit,
			QueryTimeout:   settings.Query.Timeout,
		})
	defer embedder.Close()

	idx := index.New(index.Config{
		Dimensions: settings.Embedding.Dimensions,
		K1:         settings.BM25.K1,
		B:          settings.BM25.B,
	})

	reranker := services.NewReranker(providers.Reranker, queryPool)
	queryService := services.NewQueryService(idx, embedder, reranker, settings.Query, settings.Rerank.Candidates)
	ingestService := services.NewIngestService(stores.chunks, stores.embeddings, embedder, idx)

	if err := ingestService.Restore(ctx); err != nil {
		logger.Error("Index restore incomplete: %v (run 'sheetdex check', then re-ingest affected workbooks)", err)
	}

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Ingest:   ingestService,
		Query:    queryService,
		Settings: settingsService,
		Parsers:  parsers.DefaultRegistry(),
	})

	return cli.Execute(ctx)
}

// storeSet holds the persistence adapters selected by settings.
type storeSet struct {
	chunks     driven.ChunkStore
	embeddings driven.EmbeddingStore
	closers    []io.Closer
}

// Close releases the stores in reverse opening order.
func (s *storeSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			logger.Warn("Closing store: %v", err)
		}
	}
}

func openStores(ctx context.Context, settings *domain.AppSettings) (*storeSet, error) {
	set := &storeSet{}

	var sqliteStore *sqlite.Store
	openSQLite := func() (*sqlite.Store, error) {
		if sqliteStore != nil {
			return sqliteStore, nil
		}
		dataDir := settings.Storage.DataDir
		if dataDir == "" {
			base, err := file.BaseDir()
			if err != nil {
				return nil, err
			}
			dataDir = filepath.Join(base, "data")
		}
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Debug("Using sqlite store at %s", store.Path())
		sqliteStore = store
		set.closers = append(set.closers, store)
		return store, nil
	}

	switch settings.Storage.Backend {
	case domain.StorageMemory:
		set.chunks = memory.NewChunkStore()
	default:
		store, err := openSQLite()
		if err != nil {
			return nil, err
		}
		set.chunks = store.ChunkStore()
	}

	switch settings.Storage.EmbeddingCache {
	case domain.StorageMemory:
		set.embeddings = memory.NewEmbeddingStore()
	case domain.StoragePostgres:
		store, err := postgres.Open(ctx, settings.Storage.PostgresDSN, settings.Embedding.Dimensions)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("open postgres embedding cache: %w", err)
		}
		set.embeddings = store
		set.closers = append(set.closers, store)
	default:
		store, err := openSQLite()
		if err != nil {
			set.Close()
			return nil, err
		}
		set.embeddings = store.EmbeddingStore()
	}

	return set, nil
}

func verboseRequested(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}
	return false
}

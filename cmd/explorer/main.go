// Package main runs the explorer API: cached entity aggregation over the core
// database, the chain index and the core node, served over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/config"
	"stacks-explorer-api/internal/explorer"
	"stacks-explorer-api/internal/node"
	"stacks-explorer-api/internal/search"
	chstore "stacks-explorer-api/internal/storage/clickhouse"
	"stacks-explorer-api/internal/storage/memory"
	"stacks-explorer-api/internal/storage/migrations"
	pgstore "stacks-explorer-api/internal/storage/postgres"
	"stacks-explorer-api/internal/vesting"
)

func main() {
	logger := log.New(os.Stdout, "[explorer] ", log.LstdFlags|log.Lshortfile)

	if err := config.LoadEnvFile(".env"); err != nil {
		logger.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		logger.Fatalf("Failed to parse flags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	sources, cleanup, err := createSources(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create sources: %w", err)
	}
	defer cleanup()

	var genesis *vesting.Genesis
	if cfg.GenesisFile != "" {
		genesis, err = vesting.LoadGenesis(cfg.GenesisFile)
		if err != nil {
			return err
		}
		logger.Printf("Loaded %d genesis accounts", len(genesis.Accounts()))
	}

	engine := aggregate.New(aggregate.Options{
		Store:  createCacheStore(cfg),
		Logger: log.New(os.Stdout, "[cache] ", log.LstdFlags),
	})

	x, err := explorer.New(explorer.Options{
		Engine:      engine,
		Sources:     sources,
		Genesis:     genesis,
		Concurrency: cfg.Concurrency,
		Logger:      log.New(os.Stdout, "[aggregate] ", log.LstdFlags),
	})
	if err != nil {
		return fmt.Errorf("create explorer: %w", err)
	}

	resolver := search.NewResolver(x, x, sources.Core, log.New(os.Stdout, "[search] ", log.LstdFlags))

	a := &api{x: x, search: resolver, logger: logger, started: time.Now()}

	if cfg.CoreWSURL != "" {
		watcher, err := node.NewTipWatcher(ctx, cfg.CoreWSURL, x.OnNewTip, nil, log.New(os.Stdout, "[tip] ", log.LstdFlags))
		if err != nil {
			// The cache still expires by TTL without the feed.
			logger.Printf("Tip watcher disabled: %v", err)
		} else {
			defer watcher.Close()
			a.tip = watcher.Height
		}
	}

	if cfg.PrefetchDays > 0 {
		go func() {
			start := time.Now()
			x.Prefetch(ctx, cfg.PrefetchDays)
			logger.Printf("Prefetched %d days of blocks in %v", cfg.PrefetchDays, time.Since(start))
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Starting HTTP server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Println("Received signal, initiating graceful shutdown...")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// createSources connects the stores and the core node client.
func createSources(ctx context.Context, cfg *config.Config) (explorer.Sources, func(), error) {
	core := node.NewHTTPClient(cfg.CoreAPIURL, node.WithTimeout(cfg.CoreTimeout))

	if cfg.UseMemory {
		return explorer.Sources{
			Chain:    memory.NewChainIndex(),
			History:  memory.NewHistoryStore(),
			Names:    memory.NewNameStore(),
			Accounts: memory.NewAccountStore(),
			Core:     core,
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return explorer.Sources{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return explorer.Sources{}, nil, err
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouse(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return explorer.Sources{}, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	sources := explorer.Sources{
		Chain:    chstore.NewChainIndex(chConn),
		History:  pgstore.NewHistoryStore(pool),
		Names:    pgstore.NewNameStore(pool),
		Accounts: pgstore.NewAccountStore(pool),
		Core:     core,
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return sources, cleanup, nil
}

func createCacheStore(cfg *config.Config) aggregate.Store {
	if cfg.CacheBackend == config.CacheGoCache {
		return aggregate.NewGoCacheStore(cfg.CacheCleanup)
	}
	return aggregate.NewMemoryStore()
}

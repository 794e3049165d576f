package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agoramarket/indexer/internal/chain"
	"github.com/agoramarket/indexer/internal/chain/ratelimit"
	"github.com/agoramarket/indexer/internal/chain/rpc"
	"github.com/agoramarket/indexer/internal/circuitbreaker"
	"github.com/agoramarket/indexer/internal/config"
	"github.com/agoramarket/indexer/internal/cursor"
	"github.com/agoramarket/indexer/internal/indexer"
	"github.com/agoramarket/indexer/internal/indexer/processors"
	"github.com/agoramarket/indexer/internal/metrics"
	"github.com/agoramarket/indexer/internal/scheduler"
	"github.com/agoramarket/indexer/internal/store/postgres"
	"github.com/agoramarket/indexer/internal/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting agora-indexer",
		"rpc_url", cfg.Chain.RPCURL,
		"manifest", cfg.ManifestPath,
		"confirmations", cfg.Indexer.Confirmations,
		"max_blocks_per_run", cfg.Indexer.MaxBlocksPerRun,
		"default_lookback", cfg.Indexer.DefaultLookback,
	)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), "agora-indexer", tracingEndpoint, cfg.Tracing.Insecure)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Enabled {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	manifest, err := config.LoadManifest(cfg.ManifestPath)
	if err != nil {
		logger.Error("failed to load contracts manifest", "error", err, "path", cfg.ManifestPath)
		os.Exit(1)
	}

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err, "dir", cfg.DB.MigrationsDir)
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(cfg.Chain.RateLimitRPS, cfg.Chain.RateLimitBurst)
	breaker := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures: cfg.Chain.BreakerMaxFailures,
		CoolDown:    cfg.Chain.BreakerCoolDown,
		OnStateChange: func(from, to circuitbreaker.State) {
			metrics.BreakerState.Set(float64(to))
			logger.Warn("rpc circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	transport := rpc.NewClient(cfg.Chain.RPCURL, logger)
	chainClient := chain.NewClient(transport, limiter, breaker, chain.ClientConfig{
		RetryAttempts:     cfg.Chain.RetryAttempts,
		RetryDelay:        cfg.Chain.RetryDelay,
		TimestampCacheCap: cfg.Chain.TimestampCacheCap,
		TimestampCacheTTL: cfg.Chain.TimestampCacheTTL,
	}, logger)

	contracts, err := buildContracts(manifest)
	if err != nil {
		logger.Error("failed to build contracts", "error", err)
		os.Exit(1)
	}

	cursorRepo := postgres.NewCursorRepo(db)
	windows := cursor.NewManager(cursorRepo, cfg.Indexer.DefaultLookback)
	times := indexer.NewTimestampResolver(chainClient, logger)

	runners := make([]*indexer.Runner, 0, len(manifest.Jobs))
	for _, job := range manifest.Jobs {
		processor, opts, err := buildProcessor(job.Name, db, times, cfg.Indexer.HandoffTTL, logger)
		if err != nil {
			logger.Error("failed to build processor", "error", err, "job", job.Name)
			os.Exit(1)
		}

		runnerCfg := indexer.Config{
			JobName:         job.Name,
			Confirmations:   cfg.Indexer.Confirmations,
			MaxBlocksPerRun: cfg.Indexer.MaxBlocksPerRun,
		}
		if job.Confirmations != nil {
			runnerCfg.Confirmations = *job.Confirmations
		}
		if job.MaxBlocksPerRun > 0 {
			runnerCfg.MaxBlocksPerRun = job.MaxBlocksPerRun
		}

		runners = append(runners, indexer.NewRunner(
			runnerCfg,
			chainClient,
			contracts[job.Name],
			windows,
			cursorRepo,
			processor,
			logger,
			opts...,
		))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	sched := scheduler.New(logger)
	for i, job := range manifest.Jobs {
		runner := runners[i]
		err := sched.Register(job.Name, job.Cadence, func(ctx context.Context) {
			// Run failures are logged and counted inside the runner;
			// the next cadence tick retries the same window.
			_, _ = runner.Run(ctx)
		})
		if err != nil {
			logger.Error("failed to register job", "error", err, "job", job.Name)
			os.Exit(1)
		}
	}
	g.Go(func() error {
		return sched.Run(gCtx)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("indexer shut down gracefully")
}

// buildContracts creates one contract binding per job, keyed by job
// name. Two jobs watching the same address each get their own binding,
// so each filters and decodes only its own event subset.
func buildContracts(manifest *config.Manifest) (map[string]*chain.Contract, error) {
	contracts := make(map[string]*chain.Contract, len(manifest.Jobs))
	for _, job := range manifest.Jobs {
		spec := manifest.Contracts[job.Contract]
		contract, err := chain.NewContract(job.Contract, spec.Address, spec.ABI, job.Events)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.Name, err)
		}
		contracts[job.Name] = contract
	}
	return contracts, nil
}

// buildProcessor wires the named job to its processor and repository.
// The handoff job additionally gets the TTL expiry sweep as an
// after-run hook.
func buildProcessor(jobName string, db *postgres.DB, times *indexer.TimestampResolver, handoffTTL time.Duration, logger *slog.Logger) (indexer.Processor, []indexer.Option, error) {
	switch jobName {
	case "agents":
		return processors.NewAgents(postgres.NewAgentRepo(db), times, logger), nil, nil
	case "payments":
		return processors.NewPayments(postgres.NewPaymentRepo(db), times, logger), nil, nil
	case "escrow":
		return processors.NewEscrow(postgres.NewEscrowRepo(db), times, logger), nil, nil
	case "reputation":
		return processors.NewReputation(postgres.NewReputationRepo(db), times, logger), nil, nil
	case "trades":
		return processors.NewTrades(postgres.NewTradeRepo(db), times, logger), nil, nil
	case "handoffs":
		p := processors.NewHandoffs(postgres.NewHandoffRepo(db), times, handoffTTL, logger)
		return p, []indexer.Option{indexer.WithAfterRun(p.ExpirePending)}, nil
	default:
		return nil, nil, fmt.Errorf("unknown job %q", jobName)
	}
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

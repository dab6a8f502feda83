package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/api"
	"github.com/umbra-research/umbra-interface/internal/backend"
	"github.com/umbra-research/umbra-interface/internal/graceful"
	"github.com/umbra-research/umbra-interface/internal/inbox"
	"github.com/umbra-research/umbra-interface/internal/lifecycle"
	"github.com/umbra-research/umbra-interface/internal/logging"
	"github.com/umbra-research/umbra-interface/internal/metrics"
	"github.com/umbra-research/umbra-interface/internal/solana"
	"github.com/umbra-research/umbra-interface/internal/status"
	"github.com/umbra-research/umbra-interface/internal/storage"
	"github.com/umbra-research/umbra-interface/internal/storage/memory"
	"github.com/umbra-research/umbra-interface/internal/storage/postgres"
	"github.com/umbra-research/umbra-interface/internal/types"
	"github.com/umbra-research/umbra-interface/internal/wallet"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := newConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogFormat)

	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{
		metrics.ServiceHTTP,
		metrics.ServiceLifecycle,
		metrics.ServiceTracker,
		metrics.ServiceBackend,
	}, logger)
	defer func() {
		if err := metricsServer.Stop(context.Background()); err != nil {
			logger.Errorf("failed to stop metrics server: %v", err)
		}
	}()

	overrides := map[types.Cluster]string{}
	if cfg.RPCURL != "" {
		overrides[cfg.Cluster] = cfg.RPCURL
	}
	network, err := solana.NewNetwork(solana.Endpoints(overrides), logger)
	if err != nil {
		logger.Fatalf("failed to initialize solana network: %v", err)
	}
	if version, err := network.Ping(ctx, cfg.Cluster); err != nil {
		logger.Warnf("solana %s not reachable yet: %v", cfg.Cluster, err)
	} else {
		logger.Infof("connected to solana %s (%s)", cfg.Cluster, version)
	}

	keypair, err := wallet.LoadKeypair(cfg.WalletKeypair, network)
	if err != nil {
		logger.Fatalf("failed to load wallet: %v", err)
	}
	signer := wallet.NewSubmitter(keypair, logger)
	identity := signer.Identity()

	backendClient := backend.NewClient(cfg.BackendURL, logger, metrics.NewBackendMetrics())
	if st := backendClient.Status(ctx); st.Connected {
		logger.Infof("umbra backend %s (%s)", st.System, st.Version)
	}

	activity, closeActivity := newActivityStore(ctx, cfg.Postgres.DSN, logger)
	defer closeActivity()

	scanner := inbox.NewScanner(backendClient, logger)
	orchestrator := lifecycle.New(lifecycle.Deps{
		Funds:    network,
		Builder:  backendClient,
		Signer:   signer,
		Tracker:  status.NewTracker(network, cfg.Tracker, logger, metrics.NewTrackerMetrics()),
		Inbox:    scanner,
		Claimer:  inbox.NewClaimer(backendClient, logger),
		Recorder: activity,
		Metrics:  metrics.NewLifecycleMetrics(),
	}, logger)
	defer orchestrator.Close()

	balance := wallet.NewBalanceWatcher(network, cfg.Cluster, identity, cfg.Token, cfg.BalanceRefresh, logger)
	go balance.Run(ctx)
	go scanner.AutoRefresh(ctx, identity, cfg.InboxRefresh)

	srv := api.NewServer(cfg.Server, api.Deps{
		Cluster:   cfg.Cluster,
		Identity:  identity,
		Lifecycle: orchestrator,
		Inbox:     scanner,
		Activity:  activity,
		Ledger:    network,
		Status:    backendClient,
		Balance:   balance,
	}, []echo.MiddlewareFunc{metrics.HTTPMiddleware()}, logger)

	go graceful.CancelOnSignal(ctx, graceful.MakeSigintChan(), cancel, logger)

	logger.WithFields(logrus.Fields{
		"cluster": cfg.Cluster,
		"wallet":  types.MaskAddress(identity, 4),
	}).Info("umbra interface started")

	if err := srv.Start(ctx); err != nil {
		logger.Fatalf("failed to start server: %v", err)
	}
}

// newActivityStore keeps records in Postgres when a DSN is configured and in
// memory otherwise.
func newActivityStore(ctx context.Context, dsn string, logger *logrus.Logger) (storage.ActivityStore, func()) {
	if dsn == "" {
		return memory.New(), func() {}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatalf("failed to initialize Postgres pool: %v", err)
	}
	store := postgres.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("failed to prepare activity store: %v", err)
	}
	return store, pool.Close
}

package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/umbra-research/umbra-interface/internal/api"
	"github.com/umbra-research/umbra-interface/internal/logging"
	"github.com/umbra-research/umbra-interface/internal/metrics"
	"github.com/umbra-research/umbra-interface/internal/status"
	"github.com/umbra-research/umbra-interface/internal/types"
)

type config struct {
	Cluster        types.Cluster     `envconfig:"CLUSTER" default:"localnet"`
	RPCURL         string            `envconfig:"RPC_URL"`
	BackendURL     string            `envconfig:"BACKEND_URL" default:"http://localhost:8080"`
	WalletKeypair  string            `envconfig:"WALLET_KEYPAIR" required:"true"`
	Token          string            `envconfig:"TOKEN" default:"SOL"`
	BalanceRefresh time.Duration     `envconfig:"BALANCE_REFRESH" default:"10s"`
	InboxRefresh   time.Duration     `envconfig:"INBOX_REFRESH" default:"15s"`
	LogFormat      logging.LogFormat `envconfig:"LOG_FORMAT" default:"text"`
	Tracker        status.Config
	Server         api.Config
	Metrics        metrics.Config
	Postgres       database
}

type database struct {
	DSN string `envconfig:"POSTGRES_DSN"`
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	if !cfg.Cluster.Valid() {
		return config{}, fmt.Errorf("invalid CLUSTER %q", cfg.Cluster)
	}
	if cfg.Cluster == types.ClusterCustom && cfg.RPCURL == "" {
		return config{}, fmt.Errorf("RPC_URL is required when CLUSTER is custom")
	}
	return cfg, nil
}

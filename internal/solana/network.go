package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/types"
)

// DefaultEndpoints are the public RPC endpoints per cluster. ClusterCustom has
// no default and must be configured.
var DefaultEndpoints = map[types.Cluster]string{
	types.ClusterMainnetBeta: "https://api.mainnet-beta.solana.com",
	types.ClusterDevnet:      "https://api.devnet.solana.com",
	types.ClusterLocalnet:    "http://localhost:8899",
}

// Network is the ledger-facing side of the wallet: balances, fees, signature
// statuses, activity. Every call names its cluster explicitly.
type Network struct {
	clients      map[types.Cluster]*rpc.Client
	logger       logrus.FieldLogger
	fee          *feeService
	balance      *balanceService
	tokenAccount *tokenAccountService
	status       *statusService
	activity     *activityService
}

func NewNetwork(endpoints map[types.Cluster]string, logger logrus.FieldLogger) (*Network, error) {
	clients := make(map[types.Cluster]*rpc.Client, len(endpoints))
	for cluster, url := range endpoints {
		if !cluster.Valid() {
			return nil, fmt.Errorf("unknown cluster %q", cluster)
		}
		if url == "" {
			return nil, fmt.Errorf("empty RPC URL for cluster %s", cluster)
		}
		clients[cluster] = rpc.New(url)
	}

	n := &Network{
		clients: clients,
		logger:  logger.WithField("component", "solana"),
	}
	n.tokenAccount = newTokenAccountService()
	n.fee = newFeeService(n.logger)
	n.balance = newBalanceService(n.tokenAccount)
	n.status = newStatusService()
	n.activity = newActivityService(n.logger)
	return n, nil
}

// Endpoints merges configured overrides on top of DefaultEndpoints.
func Endpoints(overrides map[types.Cluster]string) map[types.Cluster]string {
	res := make(map[types.Cluster]string, len(DefaultEndpoints)+len(overrides))
	for c, u := range DefaultEndpoints {
		res[c] = u
	}
	for c, u := range overrides {
		if u != "" {
			res[c] = u
		}
	}
	return res
}

// Client returns the RPC client for a cluster.
func (n *Network) Client(cluster types.Cluster) (*rpc.Client, error) {
	c, ok := n.clients[cluster]
	if !ok {
		return nil, fmt.Errorf("%w: no RPC endpoint configured for cluster %s", types.ErrNetworkFailed, cluster)
	}
	return c, nil
}

// Ping checks the RPC endpoint answers.
func (n *Network) Ping(ctx context.Context, cluster types.Cluster) (string, error) {
	client, err := n.Client(cluster)
	if err != nil {
		return "", err
	}
	v, err := client.GetVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: failed to connect to Solana RPC: %v", types.ErrNetworkFailed, err)
	}
	return v.SolanaCore, nil
}

package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/umbra-research/umbra-interface/internal/status"
	"github.com/umbra-research/umbra-interface/internal/types"
)

type statusService struct{}

func newStatusService() *statusService {
	return &statusService{}
}

func (s *statusService) get(ctx context.Context, client *rpc.Client, signature string) (status.Observation, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return status.Observation{}, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	res, err := client.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return status.Observation{}, fmt.Errorf("%w: failed to get signature status: %v", types.ErrNetworkFailed, err)
	}

	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return status.Observation{Found: false}, nil
	}

	v := res.Value[0]
	return status.Observation{
		Found:         true,
		Err:           v.Err,
		Confirmations: v.Confirmations,
	}, nil
}

// SignatureStatus implements status.Source.
func (n *Network) SignatureStatus(ctx context.Context, cluster types.Cluster, signature string) (status.Observation, error) {
	client, err := n.Client(cluster)
	if err != nil {
		return status.Observation{}, err
	}
	return n.status.get(ctx, client, signature)
}

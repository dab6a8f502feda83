package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/umbra-research/umbra-interface/internal/types"
)

// ActivityItem is one past transaction touching a wallet, as seen by the ledger.
type ActivityItem struct {
	Signature string          `json:"signature"`
	Status    string          `json:"status"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Fee       decimal.Decimal `json:"fee"`
	Slot      uint64          `json:"slot"`
}

const DefaultActivityLimit = 10

type activityService struct {
	logger logrus.FieldLogger
}

func newActivityService(logger logrus.FieldLogger) *activityService {
	return &activityService{
		logger: logger,
	}
}

func (s *activityService) list(
	ctx context.Context,
	client *rpc.Client,
	owner solana.PublicKey,
	limit int,
) ([]ActivityItem, error) {
	sigs, err := client.GetSignaturesForAddressWithOpts(ctx, owner, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures for address: %w", err)
	}

	items := make([]ActivityItem, len(sigs))
	g, gctx := errgroup.WithContext(ctx)

	for _i, _sig := range sigs {
		i, sig := _i, _sig
		item := ActivityItem{
			Signature: sig.Signature.String(),
			Status:    types.TierConfirmed.String(),
			Slot:      sig.Slot,
			Fee:       decimal.Zero,
		}
		if sig.Err != nil {
			item.Status = types.TierFailed.String()
		}
		if sig.BlockTime != nil {
			ts := sig.BlockTime.Time()
			item.Timestamp = &ts
		}
		items[i] = item

		g.Go(func() error {
			// a missing fee is cosmetic, never fail the listing over it
			fee, er := s.fee(gctx, client, sig.Signature)
			if er != nil {
				s.logger.WithError(er).WithField("signature", sig.Signature).Debug("activity: fee lookup failed")
				return nil
			}
			items[i].Fee = fee
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("errgroup failed: %w", err)
	}

	return items, nil
}

func (s *activityService) fee(ctx context.Context, client *rpc.Client, sig solana.Signature) (decimal.Decimal, error) {
	maxVersion := uint64(0)
	tx, err := client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if tx == nil || tx.Meta == nil {
		return decimal.Zero, nil
	}
	return lamportsToSol(tx.Meta.Fee), nil
}

// Activity lists the most recent transactions for owner, newest first.
func (n *Network) Activity(ctx context.Context, cluster types.Cluster, owner string, limit int) ([]ActivityItem, error) {
	client, err := n.Client(cluster)
	if err != nil {
		return nil, err
	}

	ownerPubKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner public key: %w", err)
	}

	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	items, err := n.activity.list(ctx, client, ownerPubKey, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNetworkFailed, err)
	}
	return items, nil
}

// RequestAirdrop asks a test cluster for SOL and returns the airdrop signature.
func (n *Network) RequestAirdrop(ctx context.Context, cluster types.Cluster, owner string, amount decimal.Decimal) (string, error) {
	if !cluster.AirdropAllowed() {
		return "", fmt.Errorf("airdrops only available on devnet/localnet, not %s", cluster)
	}

	client, err := n.Client(cluster)
	if err != nil {
		return "", err
	}

	ownerPubKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return "", fmt.Errorf("invalid owner public key: %w", err)
	}

	sig, err := client.RequestAirdrop(ctx, ownerPubKey, SolToLamports(amount), rpc.CommitmentConfirmed)
	if err != nil {
		return "", fmt.Errorf("%w: failed to request airdrop: %v", types.ErrNetworkFailed, err)
	}
	return sig.String(), nil
}

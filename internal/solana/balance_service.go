package solana

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"github.com/umbra-research/umbra-interface/internal/types"
)

type balanceService struct {
	tokenAccount *tokenAccountService
}

func newBalanceService(tokenAccount *tokenAccountService) *balanceService {
	return &balanceService{
		tokenAccount: tokenAccount,
	}
}

func (s *balanceService) native(ctx context.Context, client *rpc.Client, owner solana.PublicKey) (decimal.Decimal, error) {
	res, err := client.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get SOL balance: %w", err)
	}
	return lamportsToSol(res.Value), nil
}

func (s *balanceService) spl(
	ctx context.Context,
	client *rpc.Client,
	owner solana.PublicKey,
	mint string,
) (decimal.Decimal, error) {
	mintPubKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid mint address: %w", err)
	}

	tokenProgram, _, err := s.tokenAccount.ownerProgram(ctx, client, mintPubKey)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get token program: %w", err)
	}

	ata, _, err := associatedTokenAddress(owner, mintPubKey, tokenProgram)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	return s.tokenAccount.accountBalance(ctx, client, ata)
}

// Balance returns the owner's holding of token (SOL or an SPL mint) in UI units.
func (n *Network) Balance(ctx context.Context, cluster types.Cluster, owner string, token string) (decimal.Decimal, error) {
	client, err := n.Client(cluster)
	if err != nil {
		return decimal.Zero, err
	}

	ownerPubKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid owner public key: %w", err)
	}

	var bal decimal.Decimal
	if types.IsNativeToken(token) {
		bal, err = n.balance.native(ctx, client, ownerPubKey)
	} else {
		bal, err = n.balance.spl(ctx, client, ownerPubKey, token)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", types.ErrNetworkFailed, err)
	}
	return bal, nil
}

func lamportsToSol(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -types.NativeDecimals)
}

// SolToLamports truncates anything below one lamport.
func SolToLamports(sol decimal.Decimal) uint64 {
	return sol.Shift(types.NativeDecimals).Truncate(0).BigInt().Uint64()
}

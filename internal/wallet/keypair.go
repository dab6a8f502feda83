package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/umbra-research/umbra-interface/internal/types"
)

// RPCSource resolves the RPC client of a cluster; *solana.Network (internal) satisfies it.
type RPCSource interface {
	Client(cluster types.Cluster) (*rpc.Client, error)
}

// Keypair is a file-backed wallet for headless use: it signs with a local
// solana-keygen key and broadcasts through the cluster's RPC endpoint.
type Keypair struct {
	key  solana.PrivateKey
	rpcs RPCSource
}

func NewKeypair(key solana.PrivateKey, rpcs RPCSource) *Keypair {
	return &Keypair{
		key:  key,
		rpcs: rpcs,
	}
}

func LoadKeypair(path string, rpcs RPCSource) (*Keypair, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return NewKeypair(key, rpcs), nil
}

func (k *Keypair) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

func (k *Keypair) SignAndSend(ctx context.Context, cluster types.Cluster, tx *solana.Transaction) (solana.Signature, error) {
	client, err := k.rpcs.Client(cluster)
	if err != nil {
		return solana.Signature{}, err
	}

	owner := k.key.PublicKey()
	if !tx.IsSigner(owner) {
		return solana.Signature{}, fmt.Errorf("transaction does not require a signature from %s", owner)
	}

	// The backend may already have signed with its own ephemeral keys, keep those.
	_, err = tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner) {
			return &k.key
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	return sig, nil
}

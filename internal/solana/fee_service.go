package solana

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/types"
)

// FallbackFee is returned whenever the network cannot be asked, in SOL.
var FallbackFee = decimal.RequireFromString("0.00005")

// feeProbeKey only shapes the probe message; the fee of a single-signer
// transfer does not depend on who signs it.
var feeProbeKey = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

type feeService struct {
	logger logrus.FieldLogger
}

func newFeeService(logger logrus.FieldLogger) *feeService {
	return &feeService{
		logger: logger,
	}
}

func (s *feeService) estimate(ctx context.Context, client *rpc.Client) (decimal.Decimal, error) {
	block, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	msg, err := buildProbeMessage(block.Value.Blockhash)
	if err != nil {
		return decimal.Zero, err
	}

	fee, err := client.GetFeeForMessage(ctx, msg, rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get fee for message: %w", err)
	}
	if fee == nil || fee.Value == nil {
		return decimal.Zero, fmt.Errorf("fee unavailable for blockhash %s", block.Value.Blockhash)
	}

	return lamportsToSol(*fee.Value), nil
}

func buildProbeMessage(blockhash solana.Hash) (string, error) {
	transferInst := system.NewTransferInstruction(
		1,
		feeProbeKey,
		feeProbeKey,
	).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{transferInst},
		blockhash,
		solana.TransactionPayer(feeProbeKey),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create probe transaction: %w", err)
	}

	msgBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal probe message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(msgBytes), nil
}

// EstimateFee returns the approximate cost of one transfer in SOL. It never
// fails: any network problem yields FallbackFee.
func (n *Network) EstimateFee(ctx context.Context, cluster types.Cluster) decimal.Decimal {
	log := n.logger.WithField("cluster", cluster)

	client, err := n.Client(cluster)
	if err != nil {
		log.WithError(err).Warn("fee estimate: falling back to default")
		return FallbackFee
	}

	fee, err := n.fee.estimate(ctx, client)
	if err != nil {
		log.WithError(err).Warn("fee estimate: falling back to default")
		return FallbackFee
	}
	return fee
}

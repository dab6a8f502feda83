package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/types"
)

// ErrRejected is what a wallet returns when its user declines to sign.
var ErrRejected = errors.New("user rejected the request")

// Capability is the wallet that owns the keys. It may prompt a user.
type Capability interface {
	PublicKey() solana.PublicKey
	SignAndSend(ctx context.Context, cluster types.Cluster, tx *solana.Transaction) (solana.Signature, error)
}

// Submitter hands backend-built payloads to the wallet. It never retries:
// a second attempt is a new user action.
type Submitter struct {
	wallet Capability
	logger logrus.FieldLogger
}

func NewSubmitter(wallet Capability, logger logrus.FieldLogger) *Submitter {
	return &Submitter{
		wallet: wallet,
		logger: logger.WithField("component", "submitter"),
	}
}

func (s *Submitter) Identity() string {
	return s.wallet.PublicKey().String()
}

// SignAndSubmit decodes payload, has the wallet sign and broadcast it, and
// returns the transaction signature. Every failure wraps types.ErrSigningFailed.
func (s *Submitter) SignAndSubmit(ctx context.Context, cluster types.Cluster, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: empty payload", types.ErrSigningFailed)
	}

	tx, err := solana.TransactionFromBytes(payload)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse transaction: %v", types.ErrSigningFailed, err)
	}

	sig, err := s.wallet.SignAndSend(ctx, cluster, tx)
	if err != nil {
		s.logger.WithError(err).WithField("cluster", cluster).Warn("wallet did not submit transaction")
		return "", fmt.Errorf("%w: %v", types.ErrSigningFailed, err)
	}
	if sig.IsZero() {
		return "", fmt.Errorf("%w: wallet returned an empty signature", types.ErrSigningFailed)
	}

	return sig.String(), nil
}

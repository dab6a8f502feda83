package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionSend  Direction = "send"
	DirectionClaim Direction = "claim"
)

// NativeToken is the token identifier used for SOL. Anything else is an SPL mint address.
const NativeToken = "SOL"

// NativeDecimals is the lamport precision of SOL.
const NativeDecimals = 9

func IsNativeToken(token string) bool {
	return token == "" || strings.EqualFold(token, NativeToken) || strings.EqualFold(token, "native")
}

// TransferIntent is what the user asked for. It is never mutated once accepted;
// a new submission produces a new intent.
type TransferIntent struct {
	ID        string          `json:"id"`
	Direction Direction       `json:"direction"`
	Cluster   Cluster         `json:"cluster"`
	Payer     string          `json:"payer"`
	Recipient string          `json:"recipient"`
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	RawAmount string          `json:"rawAmount"`
	Memo      string          `json:"memo,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type ConfirmationTier int

const (
	TierSubmitted ConfirmationTier = iota
	TierConfirmed
	TierFinalized
	TierFailed
)

func (t ConfirmationTier) String() string {
	switch t {
	case TierSubmitted:
		return "submitted"
	case TierConfirmed:
		return "confirmed"
	case TierFinalized:
		return "finalized"
	case TierFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (t ConfirmationTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func ParseTier(s string) (ConfirmationTier, error) {
	for _, t := range []ConfirmationTier{TierSubmitted, TierConfirmed, TierFinalized, TierFailed} {
		if t.String() == s {
			return t, nil
		}
	}
	return TierSubmitted, fmt.Errorf("unknown confirmation tier: %q", s)
}

func (t *ConfirmationTier) UnmarshalText(b []byte) error {
	tier, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

func (t ConfirmationTier) Terminal() bool {
	return t == TierFinalized || t == TierFailed
}

// Advances reports whether moving from t to next is allowed: forward only,
// Failed reachable from any non-terminal tier, nothing leaves a terminal tier.
func (t ConfirmationTier) Advances(next ConfirmationTier) bool {
	if t.Terminal() {
		return false
	}
	return next > t
}

// SubmissionRecord is one broadcast attempt. A retry produces a new record; a
// failed record stays around for history and never changes again.
type SubmissionRecord struct {
	ReceiptID   string           `json:"receiptId"`
	Direction   Direction        `json:"direction"`
	Cluster     Cluster          `json:"cluster"`
	Signature   string           `json:"signature"`
	SubmittedAt time.Time        `json:"submittedAt"`
	Tier        ConfirmationTier `json:"tier"`
	TimedOut    bool             `json:"timedOut"`
	Error       string           `json:"error,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Settled is true once the record can no longer change.
func (r SubmissionRecord) Settled() bool {
	return r.Tier.Terminal() || r.TimedOut
}

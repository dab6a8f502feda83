package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type InboxStatus string

const (
	InboxClaimable InboxStatus = "claimable"
	InboxClaiming  InboxStatus = "claiming"
	InboxClaimed   InboxStatus = "claimed"
	InboxFailed    InboxStatus = "failed"
)

// InboxEntry is an inbound transfer reported by the backend.
type InboxEntry struct {
	ID           string          `json:"id"`
	Sender       string          `json:"sender"`
	Recipient    string          `json:"recipient"`
	Token        string          `json:"token"`
	Amount       decimal.Decimal `json:"amount"`
	Signature    string          `json:"signature,omitempty"`
	SentAt       time.Time       `json:"sentAt"`
	DiscoveredAt time.Time       `json:"discoveredAt"`
	Status       InboxStatus     `json:"status"`
	ClaimSigs    []string        `json:"claimSignatures,omitempty"`
	Error        string          `json:"error,omitempty"`
}

func (e InboxEntry) SenderMasked() string {
	return MaskAddress(e.Sender, 4)
}

// MaskAddress shortens an address to its first and last chars characters.
func MaskAddress(address string, chars int) string {
	r := []rune(address)
	if len(r) <= chars*2 {
		return address
	}
	return string(r[:chars]) + "…" + string(r[len(r)-chars:])
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// InboxItem is the wire form of an inbound transfer.
type InboxItem struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Payer     string          `json:"payer"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Token     string          `json:"token"`
	Status    string          `json:"status"`
	Signature string          `json:"signature"`
}

func (c *Client) Inbox(ctx context.Context, recipient string) ([]InboxItem, error) {
	items, err := call[[]InboxItem](ctx, c, http.MethodGet, "/api/inbox", url.Values{"recipient": {recipient}}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inbox: %w", err)
	}
	return items, nil
}

const ClaimSuccess = "success"

type ClaimResponse struct {
	Status     string   `json:"status"`
	Signatures []string `json:"signatures,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type claimRequest struct {
	Recipient string `json:"recipient"`
}

// Claim asks the backend to sweep every claimable transfer for recipient.
// A non-2xx answer is folded into a failed ClaimResponse carrying the body.
func (c *Client) Claim(ctx context.Context, recipient string) (ClaimResponse, error) {
	res, err := call[ClaimResponse](ctx, c, http.MethodPost, "/api/claim", nil, claimRequest{Recipient: recipient})
	if err != nil {
		var he *httpError
		if errors.As(err, &he) {
			return ClaimResponse{
				Status: "failed",
				Error:  fmt.Sprintf("Claim failed (%d): %s", he.Code, he.Body),
			}, fmt.Errorf("claim rejected: %w", err)
		}
		return ClaimResponse{Status: "failed", Error: err.Error()}, fmt.Errorf("failed to claim: %w", err)
	}
	return res, nil
}

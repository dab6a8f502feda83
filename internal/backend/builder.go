package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/umbra-research/umbra-interface/internal/types"
)

type BuildStatus string

const (
	BuildReady  BuildStatus = "ready"
	BuildFailed BuildStatus = "failed"
)

type BuildRequest struct {
	Payer     string `json:"payer"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Token     string `json:"token"`
}

type sendResponse struct {
	Transaction string `json:"transaction"`
	Status      string `json:"status"`
}

// BuildResult holds an unsigned serialized transaction. Payload is empty
// whenever Status is BuildFailed.
type BuildResult struct {
	Payload []byte
	Status  BuildStatus
	Err     error
}

func (r BuildResult) OK() bool {
	return r.Status == BuildReady && len(r.Payload) > 0
}

func buildFailure(err error) BuildResult {
	return BuildResult{
		Status: BuildFailed,
		Err:    fmt.Errorf("%w: %v", types.ErrBuildFailed, err),
	}
}

// BuildTransfer asks the backend for an unsigned stealth transfer. Each call
// stands alone; nothing is cached between calls.
func (c *Client) BuildTransfer(ctx context.Context, req BuildRequest) BuildResult {
	res, err := call[sendResponse](ctx, c, http.MethodPost, "/api/send", nil, req)
	if err != nil {
		c.logger.WithError(err).WithField("payer", req.Payer).Error("failed to create transfer")
		return buildFailure(err)
	}

	if strings.EqualFold(res.Status, string(BuildFailed)) || res.Transaction == "" {
		return buildFailure(fmt.Errorf("backend returned status %q without a transaction", res.Status))
	}

	payload, err := base64.StdEncoding.DecodeString(res.Transaction)
	if err != nil {
		return buildFailure(fmt.Errorf("transaction is not valid base64: %w", err))
	}
	if len(payload) == 0 {
		return buildFailure(fmt.Errorf("backend returned an empty transaction"))
	}

	return BuildResult{
		Payload: payload,
		Status:  BuildReady,
	}
}

package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/backend"
	"github.com/umbra-research/umbra-interface/internal/types"
)

type ClaimAPI interface {
	Claim(ctx context.Context, recipient string) (backend.ClaimResponse, error)
}

type ClaimStatus string

const (
	ClaimSubmitted ClaimStatus = "submitted"
	ClaimPartial   ClaimStatus = "partial"
	ClaimFailed    ClaimStatus = "failed"
)

// ClaimResult may carry signatures and an error at the same time when the
// backend settled only part of the batch.
type ClaimResult struct {
	Status     ClaimStatus
	Signatures []string
	Err        error
}

type Claimer struct {
	api    ClaimAPI
	logger logrus.FieldLogger
}

func NewClaimer(api ClaimAPI, logger logrus.FieldLogger) *Claimer {
	return &Claimer{
		api:    api,
		logger: logger.WithField("component", "claimer"),
	}
}

func (c *Claimer) Claim(ctx context.Context, recipient string) ClaimResult {
	res, err := c.api.Claim(ctx, recipient)
	sigs := nonEmpty(res.Signatures)

	if err != nil {
		c.logger.WithError(err).Error("claim failed")
		if !errors.Is(err, types.ErrNetworkFailed) {
			err = fmt.Errorf("%w: %v", types.ErrBuildFailed, err)
		}
		return ClaimResult{Status: ClaimFailed, Err: err}
	}

	if !strings.EqualFold(res.Status, backend.ClaimSuccess) {
		msg := res.Error
		if msg == "" {
			msg = fmt.Sprintf("backend returned status %q", res.Status)
		}
		err = fmt.Errorf("%w: %s", types.ErrBuildFailed, msg)
		if len(sigs) > 0 {
			return ClaimResult{Status: ClaimPartial, Signatures: sigs, Err: err}
		}
		return ClaimResult{Status: ClaimFailed, Err: err}
	}

	if res.Error != "" {
		return ClaimResult{
			Status:     ClaimPartial,
			Signatures: sigs,
			Err:        fmt.Errorf("%w: %s", types.ErrBuildFailed, res.Error),
		}
	}

	return ClaimResult{Status: ClaimSubmitted, Signatures: sigs}
}

// Bind decides which signatures settle which entry. One signature per entry is
// paired in order; any other shape is a batch where every entry waits on every
// signature.
func Bind(entries []types.InboxEntry, sigs []string) map[string][]string {
	bound := make(map[string][]string, len(entries))
	if len(sigs) == 0 {
		return bound
	}
	for i, e := range entries {
		if len(sigs) == len(entries) {
			bound[e.ID] = []string{sigs[i]}
			continue
		}
		bound[e.ID] = append([]string(nil), sigs...)
	}
	return bound
}

func nonEmpty(sigs []string) []string {
	out := make([]string, 0, len(sigs))
	for _, s := range sigs {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

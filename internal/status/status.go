package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/types"
)

const (
	DefaultInterval          = time.Second
	DefaultTimeout           = 60 * time.Second
	DefaultFinalityThreshold = 30
)

// Observation is one raw answer from the ledger about a signature.
type Observation struct {
	Found         bool
	Err           any
	Confirmations *uint64
}

type Source interface {
	SignatureStatus(ctx context.Context, cluster types.Cluster, signature string) (Observation, error)
}

// Metrics is satisfied by metrics.TrackerMetrics.
type Metrics interface {
	RecordPoll(result string)
	RecordSettled(outcome string, took time.Duration)
}

type Config struct {
	Interval          time.Duration `envconfig:"TRACKER_INTERVAL" default:"1s"`
	Timeout           time.Duration `envconfig:"TRACKER_TIMEOUT" default:"60s"`
	FinalityThreshold uint64        `envconfig:"TRACKER_FINALITY_THRESHOLD" default:"30"`
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.FinalityThreshold == 0 {
		c.FinalityThreshold = DefaultFinalityThreshold
	}
	return c
}

// Classify maps an observation to a tier. The second result is false when the
// ledger does not know the signature yet, in which case nothing changes.
//
// A missing confirmation count is read as finalized: that is how the RPC
// reports rooted transactions. It also means "unknown depth" is treated as
// maximally confirmed, which is a product decision rather than a fact.
func Classify(obs Observation, finalityThreshold uint64) (types.ConfirmationTier, bool) {
	switch {
	case !obs.Found:
		return types.TierSubmitted, false
	case obs.Err != nil:
		return types.TierFailed, true
	case obs.Confirmations == nil:
		return types.TierFinalized, true
	case *obs.Confirmations > finalityThreshold:
		return types.TierFinalized, true
	case *obs.Confirmations > 1:
		return types.TierConfirmed, true
	default:
		return types.TierSubmitted, true
	}
}

// Outcome is how tracking of one signature ended.
type Outcome struct {
	Signature string
	Tier      types.ConfirmationTier
	TimedOut  bool
	Err       error
	Polls     int
	Took      time.Duration
}

func (o Outcome) Label() string {
	if o.TimedOut {
		return "timed_out"
	}
	return o.Tier.String()
}

type Tracker struct {
	source  Source
	cfg     Config
	logger  logrus.FieldLogger
	metrics Metrics
}

func NewTracker(source Source, cfg Config, logger logrus.FieldLogger, metrics Metrics) *Tracker {
	return &Tracker{
		source:  source,
		cfg:     cfg.withDefaults(),
		logger:  logger.WithField("component", "tracker"),
		metrics: metrics,
	}
}

// Track polls the signature until it is finalized, fails on chain, or the
// timeout budget runs out. Polls never overlap. onTier is called once per tier
// change, in increasing order, and never after a terminal tier. The caller
// is expected to have already recorded the optimistic Submitted tier.
func (t *Tracker) Track(
	ctx context.Context,
	cluster types.Cluster,
	signature string,
	onTier func(types.ConfirmationTier),
) Outcome {
	start := time.Now()
	log := t.logger.WithFields(logrus.Fields{
		"cluster":   cluster,
		"signature": signature,
	})

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	out := Outcome{
		Signature: signature,
		Tier:      types.TierSubmitted,
	}
	finish := func() Outcome {
		out.Took = time.Since(start)
		if t.metrics != nil {
			t.metrics.RecordSettled(out.Label(), out.Took)
		}
		return out
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			out.TimedOut = true
			out.Err = fmt.Errorf("%w: %s still %s after %s (%v)", types.ErrTimedOut, signature, out.Tier, t.cfg.Timeout, ctx.Err())
			log.WithField("tier", out.Tier).Warn("confirmation tracking timed out")
			return finish()
		case <-timer.C:
		}

		obs, err := t.source.SignatureStatus(ctx, cluster, signature)
		out.Polls++
		if err != nil {
			t.recordPoll("error")
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				log.WithError(err).Debug("signature status poll failed")
			}
		} else {
			tier, known := Classify(obs, t.cfg.FinalityThreshold)
			if !known {
				t.recordPoll("unknown")
			} else {
				t.recordPoll(tier.String())
			}
			if known && out.Tier.Advances(tier) {
				out.Tier = tier
				log.WithField("tier", tier).Info("signature advanced")
				if onTier != nil {
					onTier(tier)
				}
				if tier == types.TierFailed {
					out.Err = fmt.Errorf("%w: %s: %v", types.ErrOnChainFailed, signature, obs.Err)
				}
				if tier.Terminal() {
					return finish()
				}
			}
		}

		timer.Reset(t.cfg.Interval)
	}
}

// Wait tracks a signature and turns anything short of Finalized into an error.
func (t *Tracker) Wait(ctx context.Context, cluster types.Cluster, signature string) error {
	out := t.Track(ctx, cluster, signature, nil)
	if out.Err != nil {
		return out.Err
	}
	return nil
}

func (t *Tracker) recordPoll(result string) {
	if t.metrics != nil {
		t.metrics.RecordPoll(result)
	}
}

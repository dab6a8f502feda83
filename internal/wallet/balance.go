package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/umbra-research/umbra-interface/internal/types"
)

const DefaultBalanceRefresh = 10 * time.Second

type BalanceSource interface {
	Balance(ctx context.Context, cluster types.Cluster, owner string, token string) (decimal.Decimal, error)
}

type BalanceSnapshot struct {
	Cluster   types.Cluster   `json:"cluster"`
	Owner     string          `json:"owner"`
	Token     string          `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Error     string          `json:"error,omitempty"`
}

// BalanceWatcher keeps a periodically refreshed balance for one wallet/token.
// A failed refresh keeps the last good amount and only records the error.
type BalanceWatcher struct {
	source BalanceSource
	every  time.Duration
	logger logrus.FieldLogger

	mu   sync.RWMutex
	snap BalanceSnapshot
}

func NewBalanceWatcher(
	source BalanceSource,
	cluster types.Cluster,
	owner string,
	token string,
	every time.Duration,
	logger logrus.FieldLogger,
) *BalanceWatcher {
	if every <= 0 {
		every = DefaultBalanceRefresh
	}
	return &BalanceWatcher{
		source: source,
		every:  every,
		logger: logger.WithField("component", "balance"),
		snap: BalanceSnapshot{
			Cluster: cluster,
			Owner:   owner,
			Token:   token,
			Amount:  decimal.Zero,
		},
	}
}

func (w *BalanceWatcher) Snapshot() BalanceSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snap
}

func (w *BalanceWatcher) Refresh(ctx context.Context) BalanceSnapshot {
	cur := w.Snapshot()
	amount, err := w.source.Balance(ctx, cur.Cluster, cur.Owner, cur.Token)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.logger.WithError(err).Warn("failed to fetch balance")
		w.snap.Error = err.Error()
		return w.snap
	}
	w.snap.Amount = amount
	w.snap.UpdatedAt = time.Now()
	w.snap.Error = ""
	return w.snap
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
func (w *BalanceWatcher) Run(ctx context.Context) {
	w.Refresh(ctx)

	ticker := time.NewTicker(w.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Refresh(ctx)
		}
	}
}

package graceful

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func MakeSigintChan() chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}

// CancelOnSignal calls cancel on the first signal from sigCh, or returns when
// ctx is done first. Background refreshers and trackers stop through cancel.
func CancelOnSignal(ctx context.Context, sigCh <-chan os.Signal, cancel context.CancelFunc, logger logrus.FieldLogger) {
	select {
	case sig := <-sigCh:
		logger.Infof("received exit signal: %v", sig)
		cancel()
	case <-ctx.Done():
	}
}

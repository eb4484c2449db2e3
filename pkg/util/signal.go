package util

import (
	"context"
	"os"
	"os/signal"

	"github.com/apex/log"
)

var logger = log.WithFields(log.Fields{
	"component": "util",
})

// WaitSignals blocks until one of signals arrives or ctx is done. It reports
// whether a signal ended the wait.
func WaitSignals(ctx context.Context, signals ...os.Signal) bool {
	var sigs = make(chan os.Signal, 1)

	signal.Notify(sigs, signals...)
	defer signal.Stop(sigs)

	// block the caller until the signal is caught
	select {
	case <-ctx.Done():
		if err := ctx.Err(); err != context.Canceled {
			logger.WithError(err).Errorf("context is done")
		}
		return false
	case sig := <-sigs:
		logger.Debugf("caught signal: %+v", sig)
		return true
	}
}

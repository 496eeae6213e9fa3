// Package signals turns SIGINT/SIGTERM into context cancellation so a
// running test can be disposed instead of leaving its container behind.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalContext returns a context canceled on the first SIGINT or
// SIGTERM. onSignal, when non-nil, runs once with the received signal
// before the context is canceled.
func SetupSignalContext(parent context.Context, onSignal func(os.Signal)) (context.Context, context.CancelFunc) {
	return notifyContext(parent, onSignal, syscall.SIGINT, syscall.SIGTERM)
}

func notifyContext(parent context.Context, onSignal func(os.Signal), sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, sigs...)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			if onSignal != nil {
				onSignal(sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

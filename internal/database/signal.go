package database

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandlerWithCallback creates a context that is cancelled on
// SIGTERM or SIGINT, invoking callback with the received signal first. The
// extraction loop treats cancellation of this context as a clean shutdown
// request: the in-flight batch finishes or is abandoned without advancing
// the checkpoint.
func SetupSignalHandlerWithCallback(callback func(os.Signal)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigChan:
			if callback != nil {
				callback(sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/storacha/shockaudit/cmd"
	"github.com/storacha/shockaudit/internal/output"
)

var errInterrupted = errors.New("received interrupt signal")

func main() {
	ctx, cancel := context.WithCancelCause(context.Background())

	// Traversals stop between nodes once the context is cancelled, and still
	// print their summary.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel(errInterrupted)
		signal.Stop(sigs)
	}()

	err := cmd.ExecuteContext(ctx)
	cancel(nil)
	if err != nil {
		output.Error(err)
		os.Exit(1)
	}
}

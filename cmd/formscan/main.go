package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes: 1 for errors, 2 when the run completed but rows were rejected
// (run --strict, validate, learn).
const (
	exitError    = 1
	exitRejected = 2
)

func main() {
	// Set up context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errValidationFailed) || errors.Is(err, errValidationMismatch) || errors.Is(err, errLearnRejected) {
			os.Exit(exitRejected)
		}
		os.Exit(exitError)
	}
}

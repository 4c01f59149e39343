package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// severityExceededError signals the fail-on-severity exit contract. The scan
// itself succeeded; the exit code tells CI gates that findings at or above
// the threshold exist.
type severityExceededError struct {
	threshold int
}

func (e severityExceededError) Error() string {
	return fmt.Sprintf("findings at or above severity %d", e.threshold)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var sev severityExceededError
		if errors.As(err, &sev) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

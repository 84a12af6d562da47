package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/brewprobe/internal/cmd"
	"github.com/felixgeelhaar/brewprobe/internal/exitcode"
	"github.com/felixgeelhaar/brewprobe/internal/ux"
)

func main() {
	// Cancelling the context stops the current step; cleanup still runs.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		exitcode.Exit(exitcode.Success)
	}

	// A bare verdict code was already explained by the run summary.
	var verdict *exitcode.Error
	if !stderrors.As(err, &verdict) || stderrors.Unwrap(err) != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ux.EnhanceError(err))
		}
	}
	exitcode.ExitWithError(err)
}

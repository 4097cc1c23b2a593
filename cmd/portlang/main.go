// Package main provides the entry point for the portlang CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/victortavares4/dsl-investments/cmd/portlang/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.NewRootCommand().ExecuteContext(ctx)

	stop()

	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if errors.Is(err, commands.ErrValidationFailed) {
		os.Exit(commands.ExitCodeValidationFailure)
	}

	os.Exit(1)
}

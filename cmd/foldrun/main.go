package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/westberg-lab/foldrun/internal/cmd"
	"github.com/westberg-lab/foldrun/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()

	cmd.PrintError(os.Stderr, err)
	os.Exit(errors.ExitCode(err))
}

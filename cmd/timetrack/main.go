package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"timetrack/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !cli.IsReported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(cli.ExitCommandError)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}

// Command bumpflow decides the next package version from git history.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/bumpflow/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "bumpflow:", err)
	}
	os.Exit(cli.GetExitCode(err))
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/stratustools/core/cli"
	"github.com/stratustools/core/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cmd.NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		verbose, _ := root.PersistentFlags().GetBool("verbose")
		cli.NewErrorHandler(verbose).Handle(err)
	}

	stop()
	os.Exit(cli.ExitCode(err))
}

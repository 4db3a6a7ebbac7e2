package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "parking-gateway",
		Short:        "Drive parking sessions against a parking server",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.AddCommand(newParkCmd(), newRelayCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parkmeter/backend/libs/logging"
	"parkmeter/backend/services/parking-gateway/internal/gateway"
)

type relayOptions struct {
	server  string
	input   string
	timeout time.Duration
}

func newRelayCmd() *cobra.Command {
	opts := relayOptions{}
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Forward controller reports from a serial line to the parking server",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			logger, err := logging.NewLogger(level)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runRelay(cmd, opts, logger)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "127.0.0.1:55152", "parking server address")
	cmd.Flags().StringVar(&opts.input, "input", "-", "controller line to read reports from, - for stdin")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "network timeout per request")
	return cmd
}

func runRelay(cmd *cobra.Command, opts relayOptions, logger *zap.Logger) error {
	ctx := cmd.Context()

	var in io.Reader = cmd.InOrStdin()
	if opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("open controller line: %w", err)
		}
		defer f.Close()
		// unblock the pending read on shutdown
		stop := context.AfterFunc(ctx, func() { _ = f.Close() })
		defer stop()
		in = f
	}

	dial := func(ctx context.Context) (*gateway.Client, error) {
		return gateway.Dial(ctx, opts.server, opts.timeout)
	}
	out := cmd.OutOrStdout()
	err := gateway.Relay(ctx, in, dial, func(e gateway.Event) {
		fields := []zap.Field{zap.String("device_id", e.DeviceID.String()), zap.Stringer("status", e.Status)}
		switch {
		case e.Err != nil:
			logger.Warn("report not accepted", append(fields, zap.Error(e.Err))...)
		case e.Status == gateway.StatusOn:
			logger.Info("parking started", append(fields, zap.String("zone", e.Zone))...)
			fmt.Fprintf(out, "Parking in %s\n", e.Zone)
		case e.Status == gateway.StatusOff:
			logger.Info("parking closed", append(fields, zap.Float64("fee", e.Receipt.Fee), zap.Duration("elapsed", e.Receipt.Elapsed))...)
			fmt.Fprintf(out, "%s\nHave a good one!\n", e.Receipt)
		default:
			logger.Debug("controller report", fields...)
		}
	})
	if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled) || errors.Is(err, os.ErrClosed)) {
		return nil
	}
	return err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"parkmeter/backend/libs/logging"
	"parkmeter/backend/libs/wire"
	"parkmeter/backend/services/parking-gateway/internal/gateway"
)

type parkOptions struct {
	server   string
	device   string
	x, y     uint8
	random   bool
	duration time.Duration
	timeout  time.Duration
}

func newParkCmd() *cobra.Command {
	opts := parkOptions{}
	cmd := &cobra.Command{
		Use:   "park",
		Short: "Start a parking session, wait, then close it and print the receipt",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			logger, err := logging.NewLogger(level)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runPark(cmd, opts, logger)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "127.0.0.1:55152", "parking server address")
	cmd.Flags().StringVar(&opts.device, "device", "", "device id, aa:bb:cc:dd:ee:ff")
	cmd.Flags().Uint8Var(&opts.x, "x", 0, "x coordinate (0-127)")
	cmd.Flags().Uint8Var(&opts.y, "y", 0, "y coordinate (0-127)")
	cmd.Flags().BoolVar(&opts.random, "random", false, "pick random coordinates")
	cmd.Flags().DurationVar(&opts.duration, "duration", 10*time.Second, "how long to stay parked")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "network timeout per request")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func runPark(cmd *cobra.Command, opts parkOptions, logger *zap.Logger) error {
	ctx := cmd.Context()

	id, err := wire.ParseDeviceID(opts.device)
	if err != nil {
		return err
	}
	if opts.random {
		opts.x = uint8(rand.IntN(128))
		opts.y = uint8(rand.IntN(128))
	}

	client, err := gateway.Dial(ctx, opts.server, opts.timeout)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	// the button cycle drives the session: On starts it, Off closes it
	status := gateway.Status(0).Next()
	started, err := client.Report(ctx, status, id, opts.x, opts.y)
	if errors.Is(err, gateway.ErrRejected) {
		return fmt.Errorf("server refused to start parking at (%d, %d): %w", opts.x, opts.y, err)
	}
	if err != nil {
		return err
	}
	logger.Info("parking started",
		zap.String("device_id", id.String()),
		zap.Stringer("status", status),
		zap.String("zone", started.Zone),
		zap.Uint8("x", opts.x),
		zap.Uint8("y", opts.y),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Parking in %s\n", started.Zone)

	select {
	case <-ctx.Done():
		logger.Info("interrupted, closing session early")
	case <-time.After(opts.duration):
	}

	// the session is closed even when interrupted
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.timeout)
	defer cancel()
	status = status.Next()
	closed, err := client.Report(closeCtx, status, id, 0, 0)
	if err != nil {
		return err
	}
	receipt := closed.Receipt
	logger.Info("parking closed",
		zap.String("device_id", id.String()),
		zap.Float64("fee", receipt.Fee),
		zap.Duration("elapsed", receipt.Elapsed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\nHave a good one!\n", receipt)
	return nil
}

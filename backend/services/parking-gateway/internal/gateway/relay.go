package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"

	"parkmeter/backend/libs/wire"
)

// Dialer opens a fresh server connection.
type Dialer func(ctx context.Context) (*Client, error)

// Event is the result of one relayed controller report.
type Event struct {
	Outcome
	DeviceID wire.DeviceID
	Err      error
}

// Relay reads controller reports from r and forwards them to the server until r
// is exhausted. A connection is dialed on demand and dropped after Off or any
// failed exchange. Server rejections are delivered as events; only read and dial
// failures stop the relay.
func Relay(ctx context.Context, r io.Reader, dial Dialer, onEvent func(Event)) error {
	var (
		client  *Client
		current Status
		device  wire.DeviceID
	)
	defer func() {
		if client != nil {
			_ = client.Disconnect()
		}
	}()

	for {
		raw, err := wire.ReadFrame(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gateway: read report: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, status := ClassifyReport(raw, current)
		current = status
		if frame.DeviceID != (wire.DeviceID{}) {
			device = frame.DeviceID
		}

		// nothing to keep alive without a connection
		if client == nil && !status.Actionable() {
			onEvent(Event{Outcome: Outcome{Status: status}, DeviceID: device})
			continue
		}
		if client == nil {
			if client, err = dial(ctx); err != nil {
				return err
			}
		}

		out, err := client.Report(ctx, status, device, frame.X, frame.Y)
		if err != nil || status == StatusOff {
			_ = client.Disconnect()
			client = nil
		}
		onEvent(Event{Outcome: out, DeviceID: device, Err: err})
	}
}

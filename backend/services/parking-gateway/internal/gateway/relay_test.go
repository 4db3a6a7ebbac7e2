package gateway

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmeter/backend/libs/wire"
	"parkmeter/backend/libs/wire/protocol"
)

func reports(frames ...[]byte) *bytes.Reader {
	return bytes.NewReader(bytes.Join(frames, nil))
}

func TestRelayForwardsButtonCycle(t *testing.T) {
	zone, err := protocol.ZoneReply("Jerusalem")
	require.NoError(t, err)
	c, frames := fakeServer(t, zone, nil, protocol.CloseReply(1.2, 100))

	corrupted := wire.Encode(byte(StatusOn), device, 10, 90)
	corrupted[wire.FrameSize-1] ^= 0x01
	in := reports(
		wire.Encode(byte(StatusOn), device, 10, 90),
		corrupted,
		wire.Encode(byte(StatusOff), device, 0, 0),
	)

	dials := 0
	dial := func(context.Context) (*Client, error) {
		dials++
		return c, nil
	}
	var events []Event
	require.NoError(t, Relay(context.Background(), in, dial, func(e Event) { events = append(events, e) }))

	assert.Equal(t, 1, dials)
	require.Len(t, events, 3)
	assert.Equal(t, "Jerusalem", events[0].Zone)
	assert.Equal(t, StatusStayOn, events[1].Status, "a corrupted report holds the running state")
	assert.Equal(t, StatusOff, events[2].Status)
	assert.Equal(t, 100*time.Second, events[2].Receipt.Elapsed)
	for _, e := range events {
		assert.NoError(t, e.Err)
		assert.Equal(t, device, e.DeviceID)
	}

	sent := <-frames
	require.Len(t, sent, 3)
	assert.Equal(t, protocol.StatusStart.Byte(), sent[0].Status)
	assert.Equal(t, protocol.StatusHeartbeat.Byte(), sent[1].Status)
	assert.Equal(t, protocol.StatusClose.Byte(), sent[2].Status)
}

func TestRelayIdleReportsStayLocal(t *testing.T) {
	in := reports(
		wire.Encode(byte(StatusStayOff), device, 0, 0),
		wire.Encode(byte(StatusRestart), device, 0, 0),
	)
	dial := func(context.Context) (*Client, error) {
		t.Fatal("idle reports must not dial the server")
		return nil, nil
	}
	var events []Event
	require.NoError(t, Relay(context.Background(), in, dial, func(e Event) { events = append(events, e) }))

	require.Len(t, events, 2)
	assert.Equal(t, StatusStayOff, events[0].Status)
	assert.Equal(t, StatusRestart, events[1].Status)
}

func TestRelayDeliversRejection(t *testing.T) {
	c, _ := fakeServer(t, protocol.ErrorReply())
	in := reports(wire.Encode(byte(StatusOff), device, 0, 0))

	var events []Event
	dial := func(context.Context) (*Client, error) { return c, nil }
	require.NoError(t, Relay(context.Background(), in, dial, func(e Event) { events = append(events, e) }))

	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, ErrRejected)
}

func TestRelayStopsOnDialFailure(t *testing.T) {
	in := reports(wire.Encode(byte(StatusOn), device, 1, 1))
	refused := errors.New("connection refused")
	dial := func(context.Context) (*Client, error) { return nil, refused }

	err := Relay(context.Background(), in, dial, func(Event) {})
	assert.ErrorIs(t, err, refused)
}

func TestRelayTruncatedReport(t *testing.T) {
	in := bytes.NewReader(wire.Encode(byte(StatusOn), device, 1, 1)[:4])
	dial := func(context.Context) (*Client, error) { return nil, errors.New("unused") }

	err := Relay(context.Background(), in, dial, func(Event) {})
	require.Error(t, err)
}

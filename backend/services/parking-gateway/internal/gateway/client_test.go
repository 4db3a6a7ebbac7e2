package gateway

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmeter/backend/libs/wire"
	"parkmeter/backend/libs/wire/protocol"
)

var device = wire.DeviceID{0xaa, 0xbb, 0xcc, 0x00, 0x00, 0x07}

// fakeServer answers each frame with the next scripted reply, then closes.
func fakeServer(t *testing.T, replies ...[]byte) (*Client, <-chan []wire.Frame) {
	t.Helper()
	server, client := net.Pipe()
	frames := make(chan []wire.Frame, 1)
	go func() {
		defer server.Close()
		var got []wire.Frame
		defer func() { frames <- got }()
		for _, reply := range replies {
			raw, err := wire.ReadFrame(server)
			if err != nil {
				return
			}
			f, err := wire.Decode(raw)
			if err != nil {
				return
			}
			got = append(got, f)
			if reply == nil {
				continue
			}
			if _, err := server.Write(reply); err != nil {
				return
			}
		}
	}()
	c := NewClient(client, time.Second)
	t.Cleanup(func() { c.Disconnect() })
	return c, frames
}

func TestStartAndClose(t *testing.T) {
	zone, err := protocol.ZoneReply("Jerusalem")
	require.NoError(t, err)
	c, frames := fakeServer(t, zone, nil, protocol.CloseReply(1.2, 100))
	ctx := context.Background()

	got, err := c.Start(ctx, device, 10, 90)
	require.NoError(t, err)
	assert.Equal(t, "Jerusalem", got)

	require.NoError(t, c.Heartbeat(ctx, device))

	receipt, err := c.Close(ctx, device)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Second, receipt.Elapsed)
	assert.InDelta(t, 1.2, receipt.Fee, 1e-9)

	sent := <-frames
	require.Len(t, sent, 3)
	assert.Equal(t, protocol.StatusStart.Byte(), sent[0].Status)
	assert.Equal(t, uint8(10), sent[0].X)
	assert.Equal(t, uint8(90), sent[0].Y)
	assert.Equal(t, protocol.StatusHeartbeat.Byte(), sent[1].Status)
	assert.Equal(t, protocol.StatusClose.Byte(), sent[2].Status)
	assert.Equal(t, device, sent[2].DeviceID)
}

func TestErrorReplyIsRejection(t *testing.T) {
	c, _ := fakeServer(t, protocol.ErrorReply())

	_, err := c.Start(context.Background(), device, 200, 200)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestCloseRejected(t *testing.T) {
	c, _ := fakeServer(t, protocol.ErrorReply())

	_, err := c.Close(context.Background(), device)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestTruncatedReply(t *testing.T) {
	c, _ := fakeServer(t, []byte("Ash"))

	_, err := c.Start(context.Background(), device, 1, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCancelledContextAbortsWait(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	go func() {
		_, _ = wire.ReadFrame(server)
	}()
	c := NewClient(client, time.Minute)
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Start(ctx, device, 1, 1)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestReceiptString(t *testing.T) {
	r := Receipt{Fee: 45.678, Elapsed: 3*time.Hour + 4*time.Minute + 5*time.Second}
	assert.Equal(t, "You parked for 3:4:5 paid 45.68 ILS", r.String())

	r = Receipt{Fee: 0.6, Elapsed: 100 * time.Second}
	assert.Equal(t, "You parked for 0:1:40 paid 0.60 ILS", r.String())
}

func TestReportTranslatesControllerStatus(t *testing.T) {
	zone, err := protocol.ZoneReply("Herzliya")
	require.NoError(t, err)
	c, frames := fakeServer(t, zone, nil, nil, protocol.CloseReply(0.5, 50))
	ctx := context.Background()

	status := Status(0).Next()
	out, err := c.Report(ctx, status, device, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusOn, out.Status)
	assert.Equal(t, "Herzliya", out.Zone)

	_, err = c.Report(ctx, StatusRestart, device, 0, 0)
	require.NoError(t, err)
	_, err = c.Report(ctx, StatusStayOn, device, 0, 0)
	require.NoError(t, err)

	status = status.Next()
	out, err = c.Report(ctx, status, device, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusOff, out.Status)
	assert.Equal(t, 50*time.Second, out.Receipt.Elapsed)

	sent := <-frames
	require.Len(t, sent, 4)
	assert.Equal(t, protocol.StatusStart.Byte(), sent[0].Status)
	assert.Equal(t, protocol.StatusHeartbeat.Byte(), sent[1].Status)
	assert.Equal(t, protocol.StatusHeartbeat.Byte(), sent[2].Status)
	assert.Equal(t, protocol.StatusClose.Byte(), sent[3].Status)
}

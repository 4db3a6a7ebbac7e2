package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"parkmeter/backend/libs/wire"
	"parkmeter/backend/libs/wire/protocol"
)

// ErrRejected is returned when the server answers ERROR.
var ErrRejected = errors.New("gateway: rejected by server")

const defaultTimeout = 10 * time.Second

// Receipt is the outcome of a closed parking session.
type Receipt struct {
	Fee     float64
	Elapsed time.Duration
}

// String renders the receipt the way the gateway terminal prints it.
func (r Receipt) String() string {
	total := int64(r.Elapsed / time.Second)
	hours := (total / 3600) % 24
	minutes := (total / 60) % 60
	seconds := total % 60
	return fmt.Sprintf("You parked for %d:%d:%d paid %.2f ILS", hours, minutes, seconds, r.Fee)
}

// Client speaks the device protocol on behalf of one parking device.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to the parking server. A zero timeout selects the default.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial %s: %w", addr, err)
	}
	return NewClient(conn, timeout), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{conn: conn, timeout: timeout}
}

// Outcome is the server answer to a reported controller status.
type Outcome struct {
	Status  Status
	Zone    string
	Receipt Receipt
}

// Report forwards a controller status to the server. On opens the session and Off
// closes it; every other status goes out as a heartbeat with no answer.
func (c *Client) Report(ctx context.Context, status Status, id wire.DeviceID, x, y uint8) (Outcome, error) {
	out := Outcome{Status: status}
	var err error
	switch {
	case !status.Actionable():
		err = c.heartbeat(ctx, status, id)
	case status == StatusOn:
		out.Zone, err = c.Start(ctx, id, x, y)
	default:
		out.Receipt, err = c.Close(ctx, id)
	}
	return out, err
}

// Start opens or resumes the device session and returns its zone.
func (c *Client) Start(ctx context.Context, id wire.DeviceID, x, y uint8) (string, error) {
	reply, err := c.roundTrip(ctx, StatusOn, id, x, y, protocol.ZoneReplySize)
	if err != nil {
		return "", err
	}
	return protocol.DecodeZoneReply(reply)
}

// Close ends the device session and returns the receipt. The server closes the
// connection afterwards.
func (c *Client) Close(ctx context.Context, id wire.DeviceID) (Receipt, error) {
	reply, err := c.roundTrip(ctx, StatusOff, id, 0, 0, protocol.CloseReplySize)
	if err != nil {
		return Receipt{}, err
	}
	fee, elapsed, err := protocol.DecodeCloseReply(reply)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Fee: fee, Elapsed: time.Duration(elapsed * float64(time.Second))}, nil
}

// Heartbeat sends a frame the server ignores. No reply is expected.
func (c *Client) Heartbeat(ctx context.Context, id wire.DeviceID) error {
	return c.heartbeat(ctx, StatusStayOn, id)
}

func (c *Client) heartbeat(ctx context.Context, status Status, id wire.DeviceID) error {
	stop := c.bind(ctx)
	defer stop()
	return c.send(status, id, 0, 0)
}

// Disconnect drops the connection without closing the session.
func (c *Client) Disconnect() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(ctx context.Context, status Status, id wire.DeviceID, x, y uint8, replySize int) ([]byte, error) {
	stop := c.bind(ctx)
	defer stop()

	if err := c.send(status, id, x, y); err != nil {
		return nil, err
	}
	return c.readReply(replySize)
}

// send translates status to its server tier code before writing the frame.
func (c *Client) send(status Status, id wire.DeviceID, x, y uint8) error {
	code, _ := status.ToWire()
	if _, err := c.conn.Write(wire.Encode(code.Byte(), id, x, y)); err != nil {
		return fmt.Errorf("gateway: send %s: %w", status, err)
	}
	return nil
}

// readReply reads a reply of size bytes. The ERROR literal followed by the server
// closing the connection is a rejection.
func (c *Client) readReply(size int) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(c.conn, buf[:protocol.ErrorReplySize]); err != nil {
		return nil, fmt.Errorf("gateway: read reply: %w", err)
	}
	if _, err := io.ReadFull(c.conn, buf[protocol.ErrorReplySize:]); err != nil {
		if errors.Is(err, io.EOF) && protocol.IsErrorReply(buf[:protocol.ErrorReplySize]) {
			return nil, ErrRejected
		}
		return nil, fmt.Errorf("gateway: read reply: %w", err)
	}
	return buf, nil
}

// bind applies the context deadline, or the client timeout, to the connection and
// aborts blocked I/O when ctx is cancelled.
func (c *Client) bind(ctx context.Context) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	_ = c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	return func() { stop() }
}

package handler

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"parkmeter/backend/libs/wire"
	"parkmeter/backend/libs/wire/protocol"
	"parkmeter/backend/services/parking-server/internal/metrics"
	"parkmeter/backend/services/parking-server/internal/models"
	"parkmeter/backend/services/parking-server/internal/service"
)

// ErrDeviceMismatch is returned when a connection already bound to one device
// carries a frame for another.
var ErrDeviceMismatch = errors.New("handler: frame for a different device")

// SessionStore is the part of the session store a handler drives.
type SessionStore interface {
	CreateOrResume(ctx context.Context, owner service.Owner, deviceID, zone string, feeRate float64) (models.Session, error)
	Finalize(ctx context.Context, owner service.Owner, deviceID string) (int64, float64, error)
	MarkDisconnected(ctx context.Context, owner service.Owner, deviceID string) error
}

// Locator maps coordinates to a zone and its price.
type Locator interface {
	Resolve(x, y uint8) (string, error)
	PriceFor(ctx context.Context, zone string) (float64, error)
}

// Options tunes connection deadlines.
type Options struct {
	// ReadTimeout bounds the wait for the next frame. Zero waits forever.
	ReadTimeout time.Duration
	// WriteTimeout bounds every reply write. Zero disables the deadline.
	WriteTimeout time.Duration
	// OpTimeout bounds a single store operation.
	OpTimeout time.Duration
}

const defaultOpTimeout = 5 * time.Second

// SessionHandler runs the session machine for one connection at a time.
// A single SessionHandler is shared by every connection.
type SessionHandler struct {
	store   SessionStore
	locator Locator
	opts    Options
	logger  *zap.Logger
}

// NewSessionHandler builds handler.
func NewSessionHandler(store SessionStore, locator Locator, opts Options, logger *zap.Logger) *SessionHandler {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	return &SessionHandler{
		store:   store,
		locator: locator,
		opts:    opts,
		logger:  logger,
	}
}

// Serve drives conn until it terminates and closes it. The returned error is the
// termination cause; a clean close or a device hang up between frames yields nil.
func (h *SessionHandler) Serve(ctx context.Context, conn net.Conn, owner service.Owner) error {
	c := &connection{
		h:      h,
		conn:   conn,
		owner:  owner,
		logger: h.logger.With(zap.Uint64("conn_id", uint64(owner)), zap.String("remote_addr", conn.RemoteAddr().String())),
		state:  StateAwaitFrame,
	}
	defer conn.Close()

	for c.state != StateTerminated {
		c.logger.Debug("session state", zap.Stringer("state", c.state))
		c.state = c.step(ctx)
	}
	c.release(ctx)
	return c.err
}

// connection is the machine state of one served connection.
type connection struct {
	h      *SessionHandler
	conn   net.Conn
	owner  service.Owner
	logger *zap.Logger

	state State
	raw   []byte
	frame wire.Frame

	deviceID string
	// active is set while this connection owns a counting session.
	active bool
	err    error
}

func (c *connection) step(ctx context.Context) State {
	switch c.state {
	case StateAwaitFrame:
		return c.awaitFrame(ctx)
	case StateValidating:
		return c.validate()
	case StateStarting:
		return c.start(ctx)
	case StateClosing:
		return c.close(ctx)
	default:
		return StateTerminated
	}
}

func (c *connection) awaitFrame(ctx context.Context) State {
	if ctx.Err() != nil {
		return StateTerminated
	}
	if c.h.opts.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.h.opts.ReadTimeout))
		// shutdown may have interrupted the conn before the deadline was re-armed
		if ctx.Err() != nil {
			return StateTerminated
		}
	}

	raw, err := wire.ReadFrame(c.conn)
	switch {
	case err == nil:
		c.raw = raw
		return StateValidating
	case errors.Is(err, io.EOF):
		c.logger.Info("device disconnected", zap.String("device_id", c.deviceID))
	case ctx.Err() != nil:
		c.logger.Info("connection interrupted by shutdown", zap.String("device_id", c.deviceID))
	default:
		c.logger.Warn("connection read failed", zap.String("device_id", c.deviceID), zap.Error(err))
		c.err = err
	}
	return StateTerminated
}

func (c *connection) validate() State {
	frame, err := wire.Decode(c.raw)
	if err != nil {
		result := metrics.FrameChecksum
		if errors.Is(err, wire.ErrFrameLength) {
			result = metrics.FrameLength
		}
		metrics.FramesTotal.WithLabelValues(result).Inc()
		return c.fault(err)
	}
	metrics.FramesTotal.WithLabelValues(metrics.FrameOK).Inc()
	c.frame = frame

	id := frame.DeviceID.String()
	if c.deviceID != "" && id != c.deviceID {
		c.logger.Warn("frame device differs from bound device", zap.String("device_id", c.deviceID), zap.String("frame_device_id", id))
		return c.fault(ErrDeviceMismatch)
	}

	status := protocol.ParseStatus(frame.Status)
	c.logger.Debug("frame received",
		zap.String("device_id", id),
		zap.Stringer("status", status),
		zap.Uint8("x", frame.X),
		zap.Uint8("y", frame.Y),
	)
	switch status {
	case protocol.StatusStart:
		return StateStarting
	case protocol.StatusClose:
		return StateClosing
	default:
		return StateAwaitFrame
	}
}

func (c *connection) start(ctx context.Context) State {
	id := c.frame.DeviceID.String()

	zone, err := c.h.locator.Resolve(c.frame.X, c.frame.Y)
	if err != nil {
		return c.fault(err)
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	rate, err := c.h.locator.PriceFor(opCtx, zone)
	if err != nil {
		return c.fault(err)
	}
	session, err := c.h.store.CreateOrResume(opCtx, c.owner, id, zone, rate)
	if err != nil {
		return c.fault(err)
	}
	c.deviceID = id
	c.active = true

	reply, err := protocol.ZoneReply(session.Zone)
	if err != nil {
		return c.fault(err)
	}
	if err := c.reply(protocol.ReplyZone, reply); err != nil {
		return StateTerminated
	}
	return StateAwaitFrame
}

func (c *connection) close(ctx context.Context) State {
	id := c.frame.DeviceID.String()

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	elapsed, fee, err := c.h.store.Finalize(opCtx, c.owner, id)
	if err != nil {
		return c.fault(err)
	}
	c.deviceID = id
	c.active = false

	_ = c.reply(protocol.ReplyClose, protocol.CloseReply(fee, elapsed))
	return StateTerminated
}

// fault answers ERROR and terminates. Storage failures were already logged by the store.
func (c *connection) fault(err error) State {
	if !errors.Is(err, service.ErrStorage) {
		c.logger.Warn("rejecting frame", zap.String("device_id", c.frame.DeviceID.String()), zap.Error(err))
	}
	c.err = err
	_ = c.reply(protocol.ReplyError, protocol.ErrorReply())
	return StateTerminated
}

func (c *connection) reply(kind string, payload []byte) error {
	if c.h.opts.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.h.opts.WriteTimeout))
	}
	if _, err := c.conn.Write(payload); err != nil {
		c.logger.Warn("reply write failed", zap.String("kind", kind), zap.String("device_id", c.deviceID), zap.Error(err))
		if c.err == nil {
			c.err = err
		}
		return err
	}
	metrics.RepliesTotal.WithLabelValues(kind).Inc()
	return nil
}

// release stops the clock of a session this connection still owns.
func (c *connection) release(ctx context.Context) {
	if !c.active {
		return
	}
	c.active = false

	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.h.store.MarkDisconnected(opCtx, c.owner, c.deviceID); err != nil {
		c.logger.Warn("failed to mark session disconnected", zap.String("device_id", c.deviceID), zap.Error(err))
	}
}

// opContext survives shutdown cancellation so an in flight transition completes.
func (c *connection) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.h.opts.OpTimeout)
}

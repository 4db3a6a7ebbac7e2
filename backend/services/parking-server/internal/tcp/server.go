package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"parkmeter/backend/services/parking-server/internal/metrics"
	"parkmeter/backend/services/parking-server/internal/service"
)

// ConnHandler serves one accepted connection until it terminates.
type ConnHandler interface {
	Serve(ctx context.Context, conn net.Conn, owner service.Owner) error
}

// Options tunes the listener.
type Options struct {
	Addr            string
	MaxSessions     int
	ShutdownTimeout time.Duration
}

// Server accepts device connections and runs one handler per connection.
type Server struct {
	opts    Options
	handler ConnHandler
	manager *Manager
	logger  *zap.Logger

	nextID atomic.Uint64
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// NewServer builds tcp server.
func NewServer(opts Options, handler ConnHandler, manager *Manager, logger *zap.Logger) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		opts:    opts,
		handler: handler,
		manager: manager,
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// Addr returns the bound address once the server listens.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens and serves until ctx is done, then drains handlers. It returns nil
// after a graceful stop.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		close(s.ready)
		return fmt.Errorf("tcp: listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done. At most MaxSessions connections are
// served at once; further dials wait in the accept backlog.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.MaxSessions > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxSessions)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.Info("starting tcp server",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_sessions", s.opts.MaxSessions),
	)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return s.drain()
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("temporary accept failure", zap.Error(err))
				time.Sleep(50 * time.Millisecond)
				continue
			}
			_ = s.drain()
			return fmt.Errorf("tcp: accept: %w", err)
		}
		s.dispatch(ctx, conn)
	}
}

func (s *Server) dispatch(ctx context.Context, conn net.Conn) {
	id := service.Owner(s.nextID.Add(1))
	s.manager.Add(id, conn)
	metrics.ConnectionsTotal.Inc()
	s.logger.Info("device connected", zap.Uint64("conn_id", uint64(id)), zap.String("remote_addr", conn.RemoteAddr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.manager.Remove(id)

		err := s.handler.Serve(ctx, conn, id)
		fields := []zap.Field{zap.Uint64("conn_id", uint64(id))}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		s.logger.Info("connection closed", fields...)
	}()
}

// drain wakes blocked handlers and waits for them, force closing stragglers
// after the shutdown timeout.
func (s *Server) drain() error {
	s.manager.Interrupt()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("tcp server stopped")
		return nil
	case <-time.After(s.opts.ShutdownTimeout):
		s.logger.Warn("shutdown timeout, closing remaining connections", zap.Int("live", s.manager.Len()))
		s.manager.CloseAll()
		<-done
		return nil
	}
}

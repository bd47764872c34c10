package audiosocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// handshakeTimeout bounds how long a new connection may take to deliver its
// UUID frame before it is dropped.
const handshakeTimeout = 5 * time.Second

// shutdownWait is how long Shutdown waits for in-flight calls to finish
// after cancelling them before forcibly closing their connections.
const shutdownWait = 5 * time.Second

// Handler processes one established call. The context is cancelled when the
// server shuts down; the handler owns the connection until it returns.
type Handler func(ctx context.Context, conn *Conn)

// Server accepts AudioSocket TCP connections and runs a [Handler] per call
// in a tracked goroutine.
type Server struct {
	addr    string
	handler Handler
	log     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	active   map[*Conn]context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a server listening on addr ("host:port") that passes
// each call to handler.
func NewServer(addr string, handler Handler, log *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("audiosocket: handler must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		addr:    addr,
		handler: handler,
		log:     log,
		active:  make(map[*Conn]context.CancelFunc),
	}, nil
}

// ListenAndServe binds the address and accepts connections until ctx ends
// or [Server.Shutdown] is called. It always returns a non-nil error;
// [net.ErrClosed] after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("audiosocket: listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.Info("audiosocket server listening", slog.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return net.ErrClosed
			}
			return fmt.Errorf("audiosocket: accept: %w", err)
		}
		s.wg.Add(1)
		go s.serveConn(ctx, nc)
	}
}

// Addr returns the bound listener address, or nil before ListenAndServe.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveCalls returns the number of calls currently being handled.
func (s *Server) ActiveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()

	conn := NewConn(nc, s.log)
	hsCtx, hsCancel := context.WithTimeout(ctx, handshakeTimeout)
	err := conn.Start(hsCtx)
	hsCancel()
	if err != nil {
		s.log.Warn("rejecting connection",
			slog.String("remote", nc.RemoteAddr().String()),
			slog.String("error", err.Error()))
		_ = conn.Close()
		return
	}

	callCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.active[conn] = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		_ = conn.Close()
		s.mu.Lock()
		delete(s.active, conn)
		s.mu.Unlock()
	}()

	s.handler(callCtx, conn)
}

// Shutdown stops accepting connections, cancels all in-flight calls, and
// waits up to [shutdownWait] (or the ctx deadline, whichever is sooner) for
// their handlers to finish. Calls still running after the wait have their
// connections closed out from under them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	cancels := make([]context.CancelFunc, 0, len(s.active))
	for _, cancel := range s.active {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	wait := shutdownWait
	if d, ok := ctx.Deadline(); ok {
		if until := time.Until(d); until < wait {
			wait = until
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	s.mu.Lock()
	n := len(s.active)
	for conn := range s.active {
		_ = conn.Close()
	}
	s.mu.Unlock()
	if n > 0 {
		s.log.Warn("forced close of lingering calls", slog.Int("count", n))
	}
	<-done
	return nil
}

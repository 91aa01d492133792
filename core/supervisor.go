package core

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dyastin-0/vortex/logger"
	"github.com/Dyastin-0/vortex/types"
	"golang.org/x/sync/errgroup"
)

// Supervisor owns the listener and decides which socket becomes the one
// active connection.
type Supervisor struct {
	self types.Peer
	addr string

	handshakeTimeout time.Duration
	dialTimeout      time.Duration

	serve  func(context.Context, *link) error
	status func(types.Status)
	log    logger.Logger

	// connected is the latch. It is set when a link is adopted and cleared
	// only after that link is served and closed.
	connected atomic.Bool
	dialing   atomic.Bool
	handoff   chan *link

	mu     sync.Mutex
	active *link
}

func newSupervisor(self types.Peer, opts Options, serve func(context.Context, *link) error, status func(types.Status)) *Supervisor {
	return &Supervisor{
		self:             self,
		addr:             opts.Addr,
		handshakeTimeout: opts.HandshakeTimeout,
		dialTimeout:      opts.DialTimeout,
		serve:            serve,
		status:           status,
		log:              opts.Logger.WithStr("component", "supervisor"),
		handoff:          make(chan *link, 1),
	}
}

func (s *Supervisor) Run(ctx context.Context) error {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return &ConnectionError{Op: "listen", Addr: s.addr, Err: err}
	}

	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done. The listener stays armed while a
// connection is active; extra sockets are refused after the handshake.
func (s *Supervisor) Serve(ctx context.Context, ln net.Listener) error {
	s.log.WithStr("addr", ln.Addr().String()).WithStr("id", s.self.ID).Info("listening")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		return s.accept(ctx, ln)
	})

	g.Go(func() error {
		return s.loop(ctx)
	})

	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

func (s *Supervisor) accept(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.WithErr(err).Warn("accept failed")
				continue
			}

			return &ConnectionError{Op: "accept", Addr: ln.Addr().String(), Err: err}
		}

		go func() {
			if err := s.adopt(ctx, conn, false); err != nil {
				s.log.WithStr("addr", conn.RemoteAddr().String()).WithErr(err).Info("refused connection")
			}
		}()
	}
}

// loop serves adopted links one at a time.
func (s *Supervisor) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			select {
			case l := <-s.handoff:
				l.conn.Close()
			default:
			}
			return nil

		case l := <-s.handoff:
			// a preferred link taking over keeps the same peer connected
			s.status(types.Status{State: types.Connected, Peer: l.peer})

			for l != nil {
				err := s.serve(ctx, l)
				l.conn.Close()

				l = s.release(l, err)
			}
		}
	}
}

// release returns the link that replaced l, if any. Otherwise it clears the
// latch and reports the disconnect.
func (s *Supervisor) release(l *link, err error) *link {
	s.mu.Lock()
	if s.active != l && s.active != nil {
		next := s.active
		s.mu.Unlock()

		s.log.WithStr("peer", l.peer.ID).Info("switched to preferred link")
		return next
	}

	s.active = nil
	s.connected.Store(false)
	s.mu.Unlock()

	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		err = nil
	}

	s.status(types.Status{State: types.Disconnected, Peer: l.peer, Err: err})

	return nil
}

func (s *Supervisor) Dial(ctx context.Context, addr string) error {
	if s.connected.Load() {
		return ErrAlreadyConnected
	}

	if !s.dialing.CompareAndSwap(false, true) {
		return ErrDialInProgress
	}
	defer s.dialing.Store(false)

	s.status(types.Status{State: types.Connecting, Peer: types.Peer{Addr: addr}})

	d := net.Dialer{Timeout: s.dialTimeout}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		err = &ConnectionError{Op: "dial", Addr: addr, Err: err}
		s.failed(addr, err)
		return err
	}

	if err := s.adopt(ctx, conn, true); err != nil {
		if !errors.Is(err, ErrAlreadyConnected) {
			s.failed(addr, err)
		}
		return err
	}

	return nil
}

// failed reports a dial that went nowhere, unless something else connected
// in the meantime.
func (s *Supervisor) failed(addr string, err error) {
	if s.connected.Load() {
		return
	}

	s.status(types.Status{State: types.Disconnected, Peer: types.Peer{Addr: addr}, Err: err})
}

func (s *Supervisor) adopt(ctx context.Context, conn net.Conn, dialed bool) error {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	l, err := handshake(conn, s.self, dialed, s.handshakeTimeout)
	if err != nil {
		conn.Close()
		return err
	}

	if l.peer.ID == s.self.ID {
		conn.Close()
		return ErrSelfConnect
	}

	return s.offer(l)
}

// offer adopts l when the latch is free. When both peers dialed each other
// at the same time, each side keeps the link dialed by the smaller id.
func (s *Supervisor) offer(l *link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected.CompareAndSwap(false, true) {
		s.active = l
		s.handoff <- l
		return nil
	}

	cur := s.active
	if cur != nil && cur.peer.ID == l.peer.ID && preferred(l, cur, s.self.ID) {
		s.active = l
		cur.conn.Close()
		return nil
	}

	l.conn.Close()

	return ErrAlreadyConnected
}

func preferred(cand, cur *link, self string) bool {
	return cand.dialer != cur.dialer && cand.dialer == min(self, cand.peer.ID)
}

func (s *Supervisor) Drop() error {
	s.mu.Lock()
	l := s.active
	s.mu.Unlock()

	if l == nil {
		return ErrNotConnected
	}

	return l.conn.Close()
}

func (s *Supervisor) Connected() bool {
	return s.connected.Load()
}

func (s *Supervisor) Remote() (types.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return types.Peer{}, false
	}

	return s.active.peer, true
}

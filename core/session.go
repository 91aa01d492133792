package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/Dyastin-0/vortex/command"
	"github.com/Dyastin-0/vortex/frame"
	"github.com/Dyastin-0/vortex/logger"
	"github.com/Dyastin-0/vortex/types"
)

const readBufferSize = 32 * 1024

// Session is one adopted connection: its read loop, its write path and its
// transfer table.
type Session struct {
	conn      net.Conn
	codec     *frame.Codec
	remote    types.Peer
	router    *Router
	transfers *Transfers
	log       logger.Logger

	closeOnce sync.Once
}

func newSession(l *link, p *Peer) *Session {
	s := &Session{
		conn:   l.conn,
		codec:  l.codec,
		remote: l.peer,
		log: p.opts.Logger.
			WithStr("component", "session").
			WithStr("peer", l.peer.ID).
			WithStr("addr", l.peer.Addr),
	}

	s.router = NewRouter(l.conn)
	s.transfers = newTransfers(s.router, p.opts, func(err error) {
		s.log.WithErr(err).Error("tearing down connection")
		s.Close()
	})

	p.register(s.router)
	s.transfers.register(s.router)
	s.router.Handle(command.Hello, func(context.Context, command.Command, Origin) error {
		s.log.Warn("ignoring repeated hello")
		return nil
	})

	return s
}

// Serve runs the read loop until the connection fails or ctx is done. Every
// live transfer is failed on the way out.
func (s *Session) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.Close()
	})
	defer stop()

	err := s.read(ctx)

	s.Close()
	s.transfers.abort(err)

	return err
}

func (s *Session) read(ctx context.Context) error {
	// bytes that arrived together with the handshake
	if err := s.feed(ctx, nil); err != nil {
		return err
	}

	buf := make([]byte, readBufferSize)

	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			if ferr := s.feed(ctx, buf[:n]); ferr != nil {
				return ferr
			}
		}

		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) && s.codec.Absorbing() {
			return fmt.Errorf("%w: connection closed with %d payload bytes outstanding", ErrProtocolDesync, s.codec.Remaining())
		}

		return &ConnectionError{Op: "read", Addr: s.remote.Addr, Err: err}
	}
}

func (s *Session) feed(ctx context.Context, p []byte) error {
	for ev := range s.codec.Feed(p) {
		var err error

		switch ev.Kind {
		case frame.Line:
			err = s.line(ctx, string(ev.Data))
		case frame.RawChunk:
			err = s.transfers.write(ev.Data)
		case frame.AbsorptionComplete:
			err = s.transfers.finish()
		}

		if err != nil {
			return err
		}
	}

	if err := s.codec.Check(); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolDesync, err)
	}

	return nil
}

func (s *Session) line(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	cmd, err := command.Parse(text)
	if err != nil {
		// a payload we cannot size would be read as commands
		if strings.HasPrefix(text, string(command.FileStartTransfer)+command.Delim) {
			return fmt.Errorf("%w: %v", ErrProtocolDesync, err)
		}

		s.log.WithErr(err).Warn("dropping malformed line")
		return nil
	}

	if cmd.Verb == command.FileStartTransfer {
		n, err := s.transfers.onStart(cmd)
		if err != nil {
			return err
		}

		s.codec.Absorb(n)
		return nil
	}

	err = s.router.Dispatch(ctx, cmd, OriginRemote)

	var connErr *ConnectionError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrProtocolDesync), errors.As(err, &connErr):
		return err
	default:
		s.log.WithStr("verb", string(cmd.Verb)).WithErr(err).Warn("command failed")
		return nil
	}
}

func (s *Session) Remote() types.Peer {
	return s.remote
}

func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})

	return err
}

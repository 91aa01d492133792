package core

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Dyastin-0/vortex/command"
	"github.com/Dyastin-0/vortex/frame"
	"github.com/Dyastin-0/vortex/types"
	"golang.org/x/sync/errgroup"
)

// link is a socket that completed the hello exchange. The codec may already
// hold bytes the peer sent right after its hello.
type link struct {
	conn  net.Conn
	codec *frame.Codec
	peer  types.Peer
	// dialer is the id of the side that opened the socket
	dialer string
}

// handshake trades hello lines over a fresh socket. Both sides write first,
// so neither waits on the other. HELLO is an extension to the chat, draw and
// file verbs; a peer that never sends it fails here after the timeout.
func handshake(conn net.Conn, self types.Peer, dialed bool, timeout time.Duration) (*link, error) {
	hello, err := command.Greeting(self.ID, self.Name).Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	codec := frame.New()
	var remote command.Command

	var g errgroup.Group
	g.Go(func() error {
		_, err := conn.Write(hello)
		return err
	})
	g.Go(func() error {
		var err error
		remote, err = readHello(conn, codec)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	l := &link{
		conn:  conn,
		codec: codec,
		peer: types.Peer{
			ID:   remote.ID(),
			Name: remote.Sender(),
			Addr: conn.RemoteAddr().String(),
		},
		dialer: remote.ID(),
	}

	if dialed {
		l.dialer = self.ID
	}

	return l, nil
}

// readHello stops at the first line and leaves the rest in the codec.
func readHello(r io.Reader, codec *frame.Codec) (command.Command, error) {
	buf := make([]byte, 512)
	var chunk []byte

	for {
		for ev := range codec.Feed(chunk) {
			cmd, err := command.Parse(string(ev.Data))
			if err != nil {
				return command.Command{}, err
			}

			if cmd.Verb != command.Hello {
				return command.Command{}, fmt.Errorf("expected %s, got %s", command.Hello, cmd.Verb)
			}

			return cmd, nil
		}

		if err := codec.Check(); err != nil {
			return command.Command{}, err
		}

		n, err := r.Read(buf)
		if n == 0 && err != nil {
			return command.Command{}, err
		}

		chunk = buf[:n]
	}
}

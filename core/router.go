package core

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Dyastin-0/vortex/command"
)

type Handler func(ctx context.Context, cmd command.Command, from Origin) error

// Router maps verbs to handlers and owns the only write path to the peer.
// Handlers are registered before the router is used and never afterwards.
type Router struct {
	mu       sync.Mutex
	w        io.Writer
	handlers map[command.Verb]Handler
}

func NewRouter(w io.Writer) *Router {
	return &Router{
		w:        w,
		handlers: make(map[command.Verb]Handler),
	}
}

func (r *Router) Handle(v command.Verb, h Handler) {
	r.handlers[v] = h
}

func (r *Router) Dispatch(ctx context.Context, cmd command.Command, from Origin) error {
	h, ok := r.handlers[cmd.Verb]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, cmd.Verb)
	}

	return h(ctx, cmd, from)
}

// Send writes one command line. Concurrent callers never interleave.
func (r *Router) Send(cmd command.Command) error {
	b, err := cmd.Encode()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return ErrNotConnected
	}

	if _, err := r.w.Write(b); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}

	return nil
}

// Stream writes cmd followed by exactly n bytes from src while holding the
// write path, so nothing else lands inside the payload. tee, when set, sees
// every payload byte written.
func (r *Router) Stream(cmd command.Command, src io.Reader, n int64, tee io.Writer) (int64, error) {
	b, err := cmd.Encode()
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return 0, ErrNotConnected
	}

	if _, err := r.w.Write(b); err != nil {
		return 0, &ConnectionError{Op: "write", Err: err}
	}

	dst := r.w
	if tee != nil {
		dst = io.MultiWriter(r.w, tee)
	}

	written, err := io.CopyN(dst, src, n)
	if err != nil {
		return written, fmt.Errorf("%w: wrote %d of %d payload bytes: %v", ErrProtocolDesync, written, n, err)
	}

	return written, nil
}

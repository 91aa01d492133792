package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Dyastin-0/vortex/command"
	"github.com/Dyastin-0/vortex/frame"
	"github.com/Dyastin-0/vortex/logger"
	"github.com/Dyastin-0/vortex/types"
	"github.com/google/uuid"
)

const (
	DefaultPort             = 12345
	DefaultDecisionTimeout  = 120 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultDialTimeout      = 10 * time.Second
	DefaultDir              = "Vortex_Downloads"
)

type Options struct {
	// Name is shown to the peer. Delimiters are replaced.
	Name string
	// Addr is the listen address used by Run.
	Addr string
	// Dir is where inbound files are suggested to land.
	Dir string

	DecisionTimeout  time.Duration
	HandshakeTimeout time.Duration
	DialTimeout      time.Duration

	Decider  Decider
	Sink     Sink
	Meter    Meter
	Recorder Recorder
	Logger   logger.Logger
}

func (o *Options) defaults() {
	o.Name = strings.NewReplacer(command.Delim, "_", "\n", " ", "\r", " ").Replace(strings.TrimSpace(o.Name))
	if o.Name == "" {
		o.Name = "anonymous"
	}

	if o.Addr == "" {
		o.Addr = fmt.Sprintf(":%d", DefaultPort)
	}

	if o.Dir == "" {
		o.Dir = DefaultDir
	}

	if o.DecisionTimeout <= 0 {
		o.DecisionTimeout = DefaultDecisionTimeout
	}

	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}

	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}

	if o.Decider == nil {
		o.Decider = AutoDecider{}
	}

	if o.Sink == nil {
		o.Sink = NopSink{}
	}

	if o.Meter == nil {
		o.Meter = nopMeter{}
	}

	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}

	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
}

// Peer is one side of the conversation. It keeps listening for the whole
// process lifetime and talks to at most one remote peer at a time.
//
// Sink and Recorder calls happen on the read loop for remote commands and
// on the caller's goroutine for local ones, so both must be safe for
// concurrent use.
type Peer struct {
	self types.Peer
	opts Options
	log  logger.Logger

	sup     *Supervisor
	local   *Router
	session atomic.Pointer[Session]
}

func New(opts Options) *Peer {
	opts.defaults()

	p := &Peer{
		self: types.Peer{
			ID:   uuid.NewString(),
			Name: opts.Name,
			Addr: opts.Addr,
		},
		opts: opts,
		log:  opts.Logger.WithStr("component", "peer"),
	}

	p.local = NewRouter(nil)
	p.register(p.local)

	p.sup = newSupervisor(p.self, opts, p.serve, p.status)

	return p
}

func (p *Peer) Self() types.Peer {
	return p.self
}

// Run binds the listen address and serves until ctx is done.
func (p *Peer) Run(ctx context.Context) error {
	return p.sup.Run(ctx)
}

// Serve is Run on a listener the caller already bound.
func (p *Peer) Serve(ctx context.Context, ln net.Listener) error {
	return p.sup.Serve(ctx, ln)
}

func (p *Peer) Connect(ctx context.Context, addr string) error {
	return p.sup.Dial(ctx, addr)
}

func (p *Peer) Disconnect() error {
	return p.sup.Drop()
}

func (p *Peer) Connected() bool {
	return p.sup.Connected()
}

func (p *Peer) Remote() (types.Peer, bool) {
	return p.sup.Remote()
}

func (p *Peer) serve(ctx context.Context, l *link) error {
	s := newSession(l, p)

	p.session.Store(s)
	defer p.session.CompareAndSwap(s, nil)

	return s.Serve(ctx)
}

func (p *Peer) status(s types.Status) {
	log := p.log.WithStr("state", s.State.String()).WithStr("peer", s.Peer.Name)
	if s.Err != nil {
		log.WithErr(s.Err).Warn("connection state changed")
	} else {
		log.Info("connection state changed")
	}

	p.opts.Sink.OnStatus(s)
}

// publish sends cmd and, once it is on the wire, applies it to our own view.
func (p *Peer) publish(cmd command.Command) error {
	s := p.session.Load()
	if s == nil {
		return ErrNotConnected
	}

	if err := s.router.Send(cmd); err != nil {
		return err
	}

	return p.local.Dispatch(context.Background(), cmd, OriginLocal)
}

// SendChat returns the id of the new message.
func (p *Peer) SendChat(body string) (string, error) {
	id := uuid.NewString()
	if err := p.publish(command.Chat(id, p.self.Name, body)); err != nil {
		return "", err
	}

	return id, nil
}

func (p *Peer) EditChat(id, body string) error {
	return p.publish(command.Edit(id, p.self.Name, body))
}

func (p *Peer) DeleteChat(id string) error {
	return p.publish(command.New(command.DeleteMsg, id))
}

func (p *Peer) ClearChat() error {
	return p.publish(command.New(command.ClearChat))
}

func (p *Peer) Draw(s command.Stroke) error {
	return p.publish(command.DrawStroke(s))
}

func (p *Peer) ClearCanvas() error {
	return p.publish(command.New(command.Clear))
}

func (p *Peer) DeleteFile(id string) error {
	return p.publish(command.New(command.DeleteFile, id))
}

func (p *Peer) ClearGallery() error {
	return p.publish(command.New(command.ClearGallery))
}

// SendFile offers the file at path. The bytes follow once the peer accepts.
func (p *Peer) SendFile(path string) (Transfer, error) {
	s := p.session.Load()
	if s == nil {
		return Transfer{}, ErrNotConnected
	}

	return s.transfers.Offer(path)
}

// Transfers lists the live transfers of the current connection.
func (p *Peer) Transfers() []Transfer {
	s := p.session.Load()
	if s == nil {
		return nil
	}

	return s.transfers.Snapshot()
}

// Replay feeds recorded chat lines back to the sink as history. Lines that
// are not chat commands are skipped.
func (p *Peer) Replay(r io.Reader) error {
	codec := frame.New()
	buf := make([]byte, readBufferSize)

	replay := func(chunk []byte) error {
		for ev := range codec.Feed(chunk) {
			p.replayLine(string(ev.Data))
		}

		return codec.Check()
	}

	for {
		n, err := r.Read(buf)
		if n > 0 {
			if cerr := replay(buf[:n]); cerr != nil {
				return cerr
			}
		}

		if err == io.EOF {
			// flush a last line without a delimiter
			return replay([]byte{frame.Delim})
		}

		if err != nil {
			return err
		}
	}
}

func (p *Peer) replayLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	cmd, err := command.Parse(line)
	if err != nil {
		p.log.WithErr(err).Warn("skipping unreadable history line")
		return
	}

	switch cmd.Verb {
	case command.ChatMsg, command.EditMsg, command.DeleteMsg, command.ClearChat:
		p.local.Dispatch(context.Background(), cmd, OriginHistory)
	}
}

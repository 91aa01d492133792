package core

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Dyastin-0/vortex/command"
	"github.com/Dyastin-0/vortex/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

type sink struct {
	mu        sync.Mutex
	chats     []types.ChatEvent
	strokes   []command.Stroke
	clears    int
	transfers []Transfer
	gallery   []types.GalleryEvent
	statuses  []types.Status
}

func (s *sink) OnChat(ev types.ChatEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats, ev)
}

func (s *sink) OnDraw(st command.Stroke) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strokes = append(s.strokes, st)
}

func (s *sink) OnClear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *sink) OnTransferStateChanged(t Transfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, t)
}

func (s *sink) OnGalleryChanged(ev types.GalleryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gallery = append(s.gallery, ev)
}

func (s *sink) OnStatus(st types.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *sink) chat(body string) (types.ChatEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range s.chats {
		if ev.Kind == types.ChatAdded && ev.Body == body {
			return ev, true
		}
	}

	return types.ChatEvent{}, false
}

func (s *sink) chatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

func (s *sink) stroke() (command.Stroke, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.strokes) == 0 {
		return command.Stroke{}, false
	}

	return s.strokes[len(s.strokes)-1], true
}

// last returns the most recent state reported for the first transfer with
// the given name.
func (s *sink) last(name string) (Transfer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found Transfer
	ok := false
	for _, t := range s.transfers {
		if t.Name == name {
			found, ok = t, true
		}
	}

	return found, ok
}

func (s *sink) states(name string) []State {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []State
	for _, t := range s.transfers {
		if t.Name == name {
			out = append(out, t.State)
		}
	}

	return out
}

func (s *sink) galleryKinds(id string) []types.GalleryKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.GalleryKind
	for _, ev := range s.gallery {
		if ev.ID == id {
			out = append(out, ev.Kind)
		}
	}

	return out
}

func (s *sink) galleryPath(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range s.gallery {
		if ev.ID == id && ev.Kind == types.GalleryAdded {
			return ev.Path
		}
	}

	return ""
}

func (s *sink) lastStatus() (types.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.statuses) == 0 {
		return types.Status{}, false
	}

	return s.statuses[len(s.statuses)-1], true
}

type testPeer struct {
	*Peer
	addr string
	sink *sink
	dir  string
}

func startPeer(t *testing.T, name string, opts Options) *testPeer {
	t.Helper()

	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)

	s := &sink{}
	opts.Name = name
	opts.Sink = s
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = time.Second
	}

	p := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Serve(ctx, ln)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testPeer{Peer: p, addr: ln.Addr().String(), sink: s, dir: opts.Dir}
}

// ready reports that p adopted a link and its session is serving it.
func ready(p *Peer) bool {
	s := p.session.Load()
	return p.Connected() && s != nil && s.conn == activeConn(p)
}

func connectPair(t *testing.T, aOpts, bOpts Options) (*testPeer, *testPeer) {
	t.Helper()

	a := startPeer(t, "alice", aOpts)
	b := startPeer(t, "bob", bOpts)

	require.NoError(t, a.Connect(context.Background(), b.addr))
	require.Eventually(t, func() bool {
		return ready(a.Peer) && ready(b.Peer)
	}, waitFor, tick)

	return a, b
}

// rawClient completes the hello exchange by hand and leaves the socket to
// the test.
func rawClient(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Write([]byte("HELLO:raw-peer:raw\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "HELLO:")

	return conn, r
}

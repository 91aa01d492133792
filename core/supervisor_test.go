package core

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Dyastin-0/vortex/logger"
	"github.com/Dyastin-0/vortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
)

func activeConn(p *Peer) net.Conn {
	p.sup.mu.Lock()
	defer p.sup.mu.Unlock()

	if p.sup.active == nil {
		return nil
	}

	return p.sup.active.conn
}

// sameSocket reports whether a and b hold the two ends of one connection.
func sameSocket(a, b *Peer) bool {
	ca, cb := activeConn(a), activeConn(b)
	if ca == nil || cb == nil {
		return false
	}

	return ca.LocalAddr().String() == cb.RemoteAddr().String() &&
		ca.RemoteAddr().String() == cb.LocalAddr().String()
}

func TestSimultaneousDialSingleWinner(t *testing.T) {
	for range 5 {
		a := startPeer(t, "alice", Options{})
		b := startPeer(t, "bob", Options{})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			a.Connect(context.Background(), b.addr)
		}()
		go func() {
			defer wg.Done()
			b.Connect(context.Background(), a.addr)
		}()
		wg.Wait()

		require.Eventually(t, func() bool {
			return ready(a.Peer) && ready(b.Peer) && sameSocket(a.Peer, b.Peer)
		}, waitFor, tick)

		// the survivor stays put
		time.Sleep(100 * time.Millisecond)
		require.True(t, sameSocket(a.Peer, b.Peer))

		_, err := a.SendChat("one link")
		require.NoError(t, err)
		waitChat(t, b.sink, "one link")

		remote, ok := a.Remote()
		require.True(t, ok)
		assert.Equal(t, b.Self().ID, remote.ID)
		assert.Equal(t, "bob", remote.Name)
	}
}

func TestPreferredLinkTakeoverReportsOnce(t *testing.T) {
	var mu sync.Mutex
	var states []types.ConnState

	serve := func(_ context.Context, l *link) error {
		_, err := io.Copy(io.Discard, l.conn)
		return err
	}
	status := func(st types.Status) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, st.State)
	}

	self := types.Peer{ID: "alice", Name: "alice"}
	s := newSupervisor(self, Options{Logger: logger.Nop()}, serve, status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.loop(ctx)
	}()

	bob := types.Peer{ID: "bob", Name: "bob"}

	first, firstRemote := net.Pipe()
	defer firstRemote.Close()
	require.NoError(t, s.offer(&link{conn: first, peer: bob, dialer: "bob"}))

	second, secondRemote := net.Pipe()
	defer secondRemote.Close()
	require.NoError(t, s.offer(&link{conn: second, peer: bob, dialer: "alice"}))

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.active != nil && s.active.conn == second
	}, waitFor, tick)

	require.NoError(t, s.Drop())

	require.Eventually(t, func() bool {
		return !s.Connected()
	}, waitFor, tick)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.ConnState{types.Connected, types.Disconnected}, states)
}

func TestSecondPeerIsRefused(t *testing.T) {
	a, b := connectPair(t, Options{}, Options{})
	c := startPeer(t, "carol", Options{})

	// carol may hold the socket until alice hangs up after the hello
	c.Connect(context.Background(), a.addr)

	require.Eventually(t, func() bool {
		st, ok := c.sink.lastStatus()
		return ok && st.State == types.Disconnected && !c.Connected()
	}, waitFor, tick)

	assert.True(t, sameSocket(a.Peer, b.Peer))

	remote, ok := a.Remote()
	require.True(t, ok)
	assert.Equal(t, "bob", remote.Name)
}

func TestConnectWhileConnected(t *testing.T) {
	a, b := connectPair(t, Options{}, Options{})

	assert.ErrorIs(t, a.Connect(context.Background(), b.addr), ErrAlreadyConnected)
}

func TestReconnectAfterDisconnect(t *testing.T) {
	a, b := connectPair(t, Options{}, Options{})

	require.NoError(t, a.Disconnect())

	require.Eventually(t, func() bool {
		return !a.Connected() && !b.Connected()
	}, waitFor, tick)

	require.Eventually(t, func() bool {
		st, ok := b.sink.lastStatus()
		return ok && st.State == types.Disconnected
	}, waitFor, tick)

	assert.ErrorIs(t, a.Disconnect(), ErrNotConnected)

	// the other side dials this time, a's listener is still armed
	require.NoError(t, b.Connect(context.Background(), a.addr))
	require.Eventually(t, func() bool {
		return ready(a.Peer) && ready(b.Peer)
	}, waitFor, tick)

	_, err := b.SendChat("back again")
	require.NoError(t, err)
	waitChat(t, a.sink, "back again")
}

func TestDialFailureKeepsListening(t *testing.T) {
	a := startPeer(t, "alice", Options{})
	b := startPeer(t, "bob", Options{})

	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	dead := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = a.Connect(context.Background(), dead)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "dial", connErr.Op)

	st, ok := a.sink.lastStatus()
	require.True(t, ok)
	assert.Equal(t, types.Disconnected, st.State)
	assert.Error(t, st.Err)

	require.NoError(t, b.Connect(context.Background(), a.addr))
	require.Eventually(t, func() bool {
		return ready(a.Peer) && ready(b.Peer)
	}, waitFor, tick)
}

func TestSelfConnectRefused(t *testing.T) {
	a := startPeer(t, "alice", Options{})

	err := a.Connect(context.Background(), a.addr)
	assert.ErrorIs(t, err, ErrSelfConnect)
	assert.False(t, a.Connected())
}

func TestProtocolDesyncDropsConnection(t *testing.T) {
	b := startPeer(t, "bob", Options{})
	conn, r := rawClient(t, b.addr)

	require.Eventually(t, func() bool { return ready(b.Peer) }, waitFor, tick)

	_, err := conn.Write([]byte("FILE_START_TRANSFER:x:y.bin:lots\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, ok := b.sink.lastStatus()
		return ok && st.State == types.Disconnected
	}, waitFor, tick)

	st, _ := b.sink.lastStatus()
	assert.ErrorIs(t, st.Err, ErrProtocolDesync)
	assert.False(t, b.Connected())

	_, err = r.ReadByte()
	assert.Error(t, err)
}

func TestUnknownVerbResilience(t *testing.T) {
	b := startPeer(t, "bob", Options{})
	conn, _ := rawClient(t, b.addr)

	_, err := conn.Write([]byte("BOGUS:1:2\nDRAW:not-a-stroke\nCHAT_MSG\n\r\nCHAT_MSG:1:raw:still here\n"))
	require.NoError(t, err)

	waitChat(t, b.sink, "still here")
	assert.Equal(t, 1, b.sink.chatCount())
	assert.True(t, b.Connected())
}

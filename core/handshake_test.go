package core

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/Dyastin-0/vortex/frame"
	"github.com/Dyastin-0/vortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestHandshake(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	alice := types.Peer{ID: "a-id", Name: "alice"}
	bob := types.Peer{ID: "b-id", Name: "bob"}

	var fromAlice, fromBob *link

	var g errgroup.Group
	g.Go(func() (err error) {
		fromAlice, err = handshake(left, alice, true, time.Second)
		return err
	})
	g.Go(func() (err error) {
		fromBob, err = handshake(right, bob, false, time.Second)
		return err
	})
	require.NoError(t, g.Wait())

	assert.Equal(t, "b-id", fromAlice.peer.ID)
	assert.Equal(t, "bob", fromAlice.peer.Name)
	assert.Equal(t, "a-id", fromBob.peer.ID)
	assert.Equal(t, "alice", fromBob.peer.Name)

	// both sides agree on who dialed
	assert.Equal(t, "a-id", fromAlice.dialer)
	assert.Equal(t, "a-id", fromBob.dialer)
}

func TestReadHelloKeepsLeftover(t *testing.T) {
	codec := frame.New()

	hello, err := readHello(strings.NewReader("HELLO:id:some name\nCHAT_MSG:1:x:early\n"), codec)
	require.NoError(t, err)
	assert.Equal(t, "id", hello.ID())
	assert.Equal(t, "some name", hello.Sender())

	var lines []string
	for ev := range codec.Feed(nil) {
		lines = append(lines, string(ev.Data))
	}
	assert.Equal(t, []string{"CHAT_MSG:1:x:early"}, lines)
}

func TestReadHelloRejects(t *testing.T) {
	tests := map[string]string{
		"wrong verb": "CHAT_MSG:1:x:hi\n",
		"bad hello":  "HELLO:only-id\n",
		"eof":        "HELLO:id:na",
	}

	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := readHello(strings.NewReader(in), frame.New())
			assert.Error(t, err)
		})
	}
}

func TestHandshakeTimeout(t *testing.T) {
	left, right := net.Pipe()
	defer left.Close()
	defer right.Close()

	go func() {
		// drain the hello, never answer
		buf := make([]byte, 64)
		for {
			if _, err := right.Read(buf); err != nil {
				return
			}
		}
	}()

	_, err := handshake(left, types.Peer{ID: "a", Name: "a"}, true, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrHandshake)
}

func TestPreferred(t *testing.T) {
	// alice < bob, so on both sides the link alice dialed wins
	aliceDialed := &link{peer: types.Peer{ID: "bob"}, dialer: "alice"}
	bobDialed := &link{peer: types.Peer{ID: "bob"}, dialer: "bob"}

	assert.True(t, preferred(aliceDialed, bobDialed, "alice"))
	assert.False(t, preferred(bobDialed, aliceDialed, "alice"))

	onBobAliceDialed := &link{peer: types.Peer{ID: "alice"}, dialer: "alice"}
	onBobBobDialed := &link{peer: types.Peer{ID: "alice"}, dialer: "bob"}

	assert.True(t, preferred(onBobAliceDialed, onBobBobDialed, "bob"))
	assert.False(t, preferred(onBobBobDialed, onBobAliceDialed, "bob"))

	assert.False(t, preferred(aliceDialed, aliceDialed, "alice"))
}

package progress

import (
	"bytes"
	"io"
	"testing"

	"github.com/Dyastin-0/vortex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaugeCompletes(t *testing.T) {
	data := make([]byte, 1024)
	dst := &bytes.Buffer{}

	p := NewWithOutput(io.Discard)
	g := p.Track(core.Transfer{Name: "data.bin", Size: int64(len(data)), Direction: core.Outbound})

	n, err := io.Copy(io.MultiWriter(dst, g), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	g.Done()
	p.Wait()

	bar := g.(*gauge).bar
	assert.True(t, bar.Completed())
	assert.Equal(t, int64(len(data)), bar.Current())
	assert.Equal(t, data, dst.Bytes())
}

func TestEmptyTransferCompletes(t *testing.T) {
	p := NewWithOutput(io.Discard)
	g := p.Track(core.Transfer{Name: "empty", Direction: core.Inbound})

	g.Done()
	p.Wait()

	assert.True(t, g.(*gauge).bar.Completed())
}

func TestAbortReleasesWait(t *testing.T) {
	p := NewWithOutput(io.Discard)
	g := p.Track(core.Transfer{Name: "cut", Size: 100})

	g.Write(make([]byte, 10))
	g.Abort()
	p.Wait()

	assert.False(t, g.(*gauge).bar.Completed())
}

func TestPlainGauge(t *testing.T) {
	out := &bytes.Buffer{}

	p := NewPlain(out)
	g := p.Track(core.Transfer{Name: "plain.bin", Size: 64, Direction: core.Inbound})

	n, err := g.Write(make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, 64, n)

	g.Done()

	bar := g.(*plainGauge).bar
	assert.True(t, bar.IsFinished())
	assert.Contains(t, out.String(), "receiving plain.bin")
}

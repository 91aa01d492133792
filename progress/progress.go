package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/Dyastin-0/vortex/core"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress draws one bar per transfer. It satisfies core.Meter.
type Progress struct {
	mu       sync.Mutex
	progress *mpb.Progress
	opts     []mpb.ContainerOption
}

func New(opts ...mpb.ContainerOption) *Progress {
	return &Progress{
		progress: mpb.New(opts...),
		opts:     opts,
	}
}

// NewWithOutput renders to w instead of stdout.
func NewWithOutput(w io.Writer) *Progress {
	return New(mpb.WithOutput(w), mpb.WithWidth(40))
}

func (p *Progress) NewBar(n int64, text string) *mpb.Bar {
	p.mu.Lock()
	defer p.mu.Unlock()

	bar := p.progress.AddBar(n,
		mpb.PrependDecorators(
			decor.Name(text, decor.WC{W: 12, C: decor.DindentRight}),
			decor.CountersKibiByte(" % .2f / % .2f", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnAbort(decor.Elapsed(1, decor.WC{W: 12, C: decor.DindentRight}), "failed"),
		),
	)

	return bar
}

func (p *Progress) Track(t core.Transfer) core.Gauge {
	verb := "sending"
	if t.Direction == core.Inbound {
		verb = "receiving"
	}

	return &gauge{bar: p.NewBar(t.Size, fmt.Sprintf("%s %s", verb, t.Name))}
}

func (p *Progress) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress.Wait()
}

// Reset waits for the current bars and starts a fresh container.
func (p *Progress) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.progress != nil {
		p.progress.Wait()
	}

	p.progress = mpb.New(p.opts...)
}

type gauge struct {
	bar *mpb.Bar
}

func (g *gauge) Write(b []byte) (int, error) {
	g.bar.IncrBy(len(b))
	return len(b), nil
}

// Done completes the bar at whatever was counted, empty files included.
func (g *gauge) Done() {
	g.bar.SetTotal(-1, true)
}

func (g *gauge) Abort() {
	g.bar.Abort(false)
}

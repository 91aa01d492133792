package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/Dyastin-0/vortex/core"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

// Plain draws a single line bar per transfer. It is the meter for headless
// runs where there is no interactive terminal to stack bars in.
type Plain struct {
	w io.Writer
}

// NewPlain renders to w, or to an ANSI aware stdout when w is nil.
func NewPlain(w io.Writer) *Plain {
	if w == nil {
		w = ansi.NewAnsiStdout()
	}

	return &Plain{w: w}
}

func (p *Plain) bar(n int64, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		n,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowTotalBytes(true),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *Plain) Track(t core.Transfer) core.Gauge {
	verb := "sending"
	if t.Direction == core.Inbound {
		verb = "receiving"
	}

	return &plainGauge{bar: p.bar(t.Size, fmt.Sprintf("%s %s", verb, t.Name))}
}

type plainGauge struct {
	bar *progressbar.ProgressBar
}

// Write never fails, a rendering hiccup must not cut a transfer.
func (g *plainGauge) Write(b []byte) (int, error) {
	g.bar.Add(len(b))
	return len(b), nil
}

func (g *plainGauge) Done() {
	g.bar.Finish()
}

// Abort leaves the bar where it stopped.
func (g *plainGauge) Abort() {
	g.bar.Exit()
}

// Package cui is the terminal front end: it renders what the peer reports,
// asks the questions an inbound transfer needs answered and turns typed
// lines into commands.
package cui

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"github.com/Dyastin-0/vortex/command"
	"github.com/Dyastin-0/vortex/config"
	"github.com/Dyastin-0/vortex/core"
	"github.com/Dyastin-0/vortex/logger"
	"github.com/Dyastin-0/vortex/progress"
	"github.com/Dyastin-0/vortex/styles"
	"github.com/Dyastin-0/vortex/types"
	"github.com/dustin/go-humanize"
)

// Peer is what the UI drives. *core.Peer satisfies it.
type Peer interface {
	Self() types.Peer
	Connect(ctx context.Context, addr string) error
	Disconnect() error
	Connected() bool
	Remote() (types.Peer, bool)

	SendChat(body string) (string, error)
	EditChat(id, body string) error
	DeleteChat(id string) error
	ClearChat() error
	Draw(s command.Stroke) error
	ClearCanvas() error
	DeleteFile(id string) error
	ClearGallery() error
	SendFile(path string) (core.Transfer, error)
	Transfers() []core.Transfer
}

var (
	_ core.Sink    = (*UI)(nil)
	_ core.Decider = (*UI)(nil)
	_ core.Picker  = (*UI)(nil)
	_ core.Meter   = (*UI)(nil)
	_ Peer         = (*core.Peer)(nil)
)

type Options struct {
	Out io.Writer
	// Dir is where the file picker starts.
	Dir      string
	Progress *progress.Progress
	Logger   logger.Logger
	// Profiles are offered by /connect without an address.
	Profiles []config.Profile
}

type message struct {
	n      int
	id     string
	sender string
	body   string
	own    bool
}

type item struct {
	n         int
	id        string
	name      string
	path      string
	confirmed bool
}

// UI implements core.Sink, core.Decider, core.Picker and core.Meter.
type UI struct {
	out      io.Writer
	dir      string
	progress *progress.Progress
	log      logger.Logger
	profiles []config.Profile

	pmu sync.Mutex

	mu      sync.Mutex
	seq     int
	chat    []message
	gallery []item
	strokes int
	status  types.Status
	// last peer we knew by name, kept across disconnects
	known string

	prompts chan prompt
	wake    chan struct{}

	// terminal interactions run by commands, swapped out in tests
	confirm func(ctx context.Context, title string) (bool, error)
	choose  func(ctx context.Context) (string, bool)
	dial    func(ctx context.Context, p Peer, addr string) error
	pick    func(ctx context.Context) (string, bool)
}

func New(opts Options) *UI {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	if opts.Dir == "" {
		opts.Dir = "."
	}

	if opts.Progress == nil {
		opts.Progress = progress.NewWithOutput(opts.Out)
	}

	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	u := &UI{
		out:      opts.Out,
		dir:      opts.Dir,
		progress: opts.Progress,
		log:      opts.Logger.WithStr("component", "cui"),
		profiles: opts.Profiles,
		prompts:  make(chan prompt, 8),
		wake:     make(chan struct{}, 1),
		confirm:  confirmNow,
	}
	u.choose = u.ChoosePathToSend
	u.dial = u.Dial
	u.pick = u.PickProfile

	return u
}

func (u *UI) println(s string) {
	u.pmu.Lock()
	defer u.pmu.Unlock()

	fmt.Fprintln(u.out, s)
}

func (u *UI) next() int {
	u.seq++
	return u.seq
}

func (u *UI) OnChat(ev types.ChatEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch ev.Kind {
	case types.ChatAdded:
		if slices.ContainsFunc(u.chat, func(m message) bool { return m.id == ev.ID }) {
			return
		}

		m := message{n: u.next(), id: ev.ID, sender: ev.Sender, body: ev.Body, own: ev.Own}
		u.chat = append(u.chat, m)
		u.println(renderMessage(m, ev.Replayed, ""))

	case types.ChatEdited:
		i := slices.IndexFunc(u.chat, func(m message) bool { return m.id == ev.ID })
		if i < 0 {
			return
		}

		u.chat[i].body = ev.Body
		u.println(renderMessage(u.chat[i], ev.Replayed, "edited"))

	case types.ChatDeleted:
		i := slices.IndexFunc(u.chat, func(m message) bool { return m.id == ev.ID })
		if i < 0 {
			return
		}

		n := u.chat[i].n
		u.chat = slices.Delete(u.chat, i, i+1)
		if !ev.Replayed {
			u.println(styles.MUTED.Render(fmt.Sprintf("message %d deleted", n)))
		}

	case types.ChatCleared:
		u.chat = nil
		if !ev.Replayed {
			u.println(styles.MUTED.Render("chat cleared"))
		}
	}
}

func renderMessage(m message, replayed bool, note string) string {
	name := styles.PEER.Render(m.sender + ":")
	if m.own {
		name = styles.OWN.Render(m.sender + ":")
	}

	line := fmt.Sprintf("%s %s %s", styles.MUTED.Render(fmt.Sprintf("[%d]", m.n)), name, m.body)
	if note != "" {
		line += " " + styles.MUTED.Render("("+note+")")
	}

	if replayed {
		return styles.MUTED.Render(line)
	}

	return line
}

func (u *UI) OnDraw(s command.Stroke) {
	u.mu.Lock()
	u.strokes++
	u.mu.Unlock()

	u.println(fmt.Sprintf("%s (%d,%d) -> (%d,%d) width %v",
		styles.Swatch(s.Color), s.X1, s.Y1, s.X2, s.Y2, s.Width))
}

func (u *UI) OnClear() {
	u.mu.Lock()
	u.strokes = 0
	u.mu.Unlock()

	u.println(styles.MUTED.Render("canvas cleared"))
}

func (u *UI) OnTransferStateChanged(t core.Transfer) {
	size := humanize.Bytes(uint64(max(t.Size, 0)))

	switch t.State {
	case core.StateRequested:
		if t.Direction == core.Outbound {
			u.println(styles.INFO.Render(fmt.Sprintf("offered %s (%s), waiting for the peer...", t.Name, size)))
		}
	case core.StateAccepted:
		if t.Direction == core.Outbound {
			u.println(styles.INFO.Render(fmt.Sprintf("%s accepted", t.Name)))
		}
	case core.StateComplete:
		verb := "sent"
		if t.Direction == core.Inbound {
			verb = "saved to " + t.Path
		}
		u.println(styles.SUCCESS.Render(fmt.Sprintf("%s %s (%s)", t.Name, verb, size)))
	case core.StateRejected:
		u.println(styles.WARN.Render(fmt.Sprintf("%s rejected", t.Name)))
	case core.StateCancelled:
		u.println(styles.WARN.Render(fmt.Sprintf("%s cancelled", t.Name)))
	case core.StateFailed:
		u.println(styles.ERROR.Render(fmt.Sprintf("%s failed: %v", t.Name, t.Err)))
	}
}

func (u *UI) OnGalleryChanged(ev types.GalleryEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	i := slices.IndexFunc(u.gallery, func(it item) bool { return it.id == ev.ID })

	switch ev.Kind {
	case types.GalleryAdded:
		if i >= 0 {
			u.gallery[i].path = ev.Path
			return
		}

		it := item{n: u.next(), id: ev.ID, name: ev.Name, path: ev.Path}
		u.gallery = append(u.gallery, it)
		u.println(styles.INFO.Render(fmt.Sprintf("[%d] %s added to the gallery", it.n, it.name)))

	case types.GalleryConfirmed:
		if i >= 0 {
			u.gallery[i].confirmed = true
			return
		}

		u.gallery = append(u.gallery, item{n: u.next(), id: ev.ID, name: ev.Name, confirmed: true})

	case types.GalleryDeleted:
		if i < 0 {
			return
		}

		u.println(styles.MUTED.Render(fmt.Sprintf("%s removed from the gallery", u.gallery[i].name)))
		u.gallery = slices.Delete(u.gallery, i, i+1)

	case types.GalleryCleared:
		u.gallery = nil
		u.println(styles.MUTED.Render("gallery cleared"))
	}
}

func (u *UI) OnStatus(s types.Status) {
	u.mu.Lock()
	u.status = s
	if s.Peer.Name != "" {
		u.known = s.Peer.Name
	}
	u.mu.Unlock()

	u.println(renderStatus(s))
}

func renderStatus(s types.Status) string {
	switch s.State {
	case types.Connecting:
		return styles.INFO.Render(fmt.Sprintf("connecting to %s...", s.Peer.Addr))
	case types.Connected:
		return styles.SUCCESS.Render(fmt.Sprintf("connected to %s (%s)", s.Peer.Name, s.Peer.Addr))
	case types.Disconnected:
		if s.Err != nil {
			return styles.ERROR.Render(fmt.Sprintf("disconnected: %v", s.Err))
		}
		return styles.ERROR.Render("disconnected")
	default:
		return styles.MUTED.Render("idle, listening for the peer")
	}
}

// Track hands the transfer to the progress bars.
func (u *UI) Track(t core.Transfer) core.Gauge {
	return u.progress.Track(t)
}

func (u *UI) message(n int) (message, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	i := slices.IndexFunc(u.chat, func(m message) bool { return m.n == n })
	if i < 0 {
		return message{}, false
	}

	return u.chat[i], true
}

func (u *UI) item(n int) (item, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	i := slices.IndexFunc(u.gallery, func(it item) bool { return it.n == n })
	if i < 0 {
		return item{}, false
	}

	return u.gallery[i], true
}

func (u *UI) items() []item {
	u.mu.Lock()
	defer u.mu.Unlock()

	return slices.Clone(u.gallery)
}

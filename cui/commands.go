package cui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/Dyastin-0/vortex/command"
	"github.com/Dyastin-0/vortex/config"
	"github.com/Dyastin-0/vortex/core"
	"github.com/Dyastin-0/vortex/styles"
	"github.com/charmbracelet/huh/spinner"
	"github.com/dustin/go-humanize"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrNotYours       = errors.New("only your own messages can be changed")
	ErrNoSuchEntry    = errors.New("no such entry")

	errQuit = errors.New("quit")
)

// input is one typed line. Lines starting with a slash are commands, the
// rest is chat.
type input struct {
	name string
	args string
}

func parseInput(line string) input {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return input{args: line}
	}

	name, args, _ := strings.Cut(line[1:], " ")
	return input{name: strings.ToLower(name), args: strings.TrimSpace(args)}
}

type slash struct {
	name  string
	args  string
	usage string
	run   func(u *UI, ctx context.Context, p Peer, args string) error
}

func commands() []slash {
	return []slash{
		{"edit", "<n> <text>", "edit one of your messages", (*UI).edit},
		{"delete", "<n>", "delete one of your messages", (*UI).deleteMessage},
		{"clearchat", "", "clear the chat for both of you", (*UI).clearChat},
		{"draw", "<x1,y1,x2,y2,#color,width>", "draw a stroke on the shared canvas", (*UI).draw},
		{"clear", "", "clear the shared canvas", (*UI).clearCanvas},
		{"send", "[path]", "offer a file, opens a picker without a path", (*UI).send},
		{"gallery", "", "list shared files", (*UI).listGallery},
		{"rm", "<n>", "remove a file from the gallery", (*UI).removeFile},
		{"cleargallery", "", "remove every file from the gallery", (*UI).clearGallery},
		{"transfers", "", "list transfers in flight", (*UI).listTransfers},
		{"connect", "[addr]", "connect to a peer, picks a profile without an address", (*UI).connect},
		{"disconnect", "", "drop the connection", (*UI).disconnect},
		{"status", "", "show the connection", (*UI).showStatus},
		{"help", "", "show this help", (*UI).help},
		{"quit", "", "leave", (*UI).quit},
	}
}

func lookup(name string) (slash, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}

	return slash{}, false
}

// exec runs one typed line against p.
func (u *UI) exec(ctx context.Context, p Peer, line string) error {
	in := parseInput(line)

	if in.name == "" {
		if in.args == "" {
			return nil
		}

		_, err := p.SendChat(in.args)
		return err
	}

	c, ok := lookup(in.name)
	if !ok {
		return fmt.Errorf("%w: /%s, try /help", ErrUnknownCommand, in.name)
	}

	return c.run(u, ctx, p, in.args)
}

func usage(c string) error {
	s, _ := lookup(c)
	return fmt.Errorf("%w: /%s %s", ErrUsage, s.name, s.args)
}

func index(arg string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	return n, err == nil && n > 0
}

// own finds message n and checks that we wrote it.
func (u *UI) own(arg string) (message, error) {
	n, ok := index(arg)
	if !ok {
		return message{}, ErrUsage
	}

	m, ok := u.message(n)
	if !ok {
		return message{}, fmt.Errorf("%w: message %d", ErrNoSuchEntry, n)
	}

	if !m.own {
		return message{}, ErrNotYours
	}

	return m, nil
}

func (u *UI) edit(_ context.Context, p Peer, args string) error {
	n, body, _ := strings.Cut(args, " ")
	body = strings.TrimSpace(body)
	if body == "" {
		return usage("edit")
	}

	m, err := u.own(n)
	if errors.Is(err, ErrUsage) {
		return usage("edit")
	}
	if err != nil {
		return err
	}

	return p.EditChat(m.id, body)
}

func (u *UI) deleteMessage(_ context.Context, p Peer, args string) error {
	m, err := u.own(args)
	if errors.Is(err, ErrUsage) {
		return usage("delete")
	}
	if err != nil {
		return err
	}

	return p.DeleteChat(m.id)
}

func (u *UI) clearChat(ctx context.Context, p Peer, _ string) error {
	ok, err := u.confirm(ctx, "clear the chat history for everyone?")
	if err != nil || !ok {
		return err
	}

	return p.ClearChat()
}

func (u *UI) draw(_ context.Context, p Peer, args string) error {
	if args == "" {
		return usage("draw")
	}

	s, err := command.ParseStroke(strings.ReplaceAll(args, " ", ""))
	if err != nil {
		return err
	}

	return p.Draw(s)
}

func (u *UI) clearCanvas(_ context.Context, p Peer, _ string) error {
	return p.ClearCanvas()
}

func (u *UI) send(ctx context.Context, p Peer, args string) error {
	if !p.Connected() {
		return core.ErrNotConnected
	}

	path := strings.Trim(args, `"'`)
	if path == "" {
		var ok bool
		if path, ok = u.choose(ctx); !ok {
			return nil
		}
	}

	_, err := p.SendFile(path)
	return err
}

func (u *UI) listGallery(context.Context, Peer, string) error {
	items := u.items()
	if len(items) == 0 {
		u.println(styles.MUTED.Render("the gallery is empty"))
		return nil
	}

	for _, it := range items {
		line := fmt.Sprintf("[%d] %s", it.n, it.name)
		if it.path != "" {
			line += " " + styles.MUTED.Render(it.path)
		}
		if it.confirmed {
			line += " " + styles.SUCCESS.Render("✓")
		}
		u.println(line)
	}

	return nil
}

func (u *UI) removeFile(_ context.Context, p Peer, args string) error {
	n, ok := index(args)
	if !ok {
		return usage("rm")
	}

	it, ok := u.item(n)
	if !ok {
		return fmt.Errorf("%w: file %d", ErrNoSuchEntry, n)
	}

	return p.DeleteFile(it.id)
}

func (u *UI) clearGallery(_ context.Context, p Peer, _ string) error {
	return p.ClearGallery()
}

func (u *UI) listTransfers(_ context.Context, p Peer, _ string) error {
	transfers := p.Transfers()
	if len(transfers) == 0 {
		u.println(styles.MUTED.Render("no transfers in flight"))
		return nil
	}

	for _, t := range transfers {
		u.println(fmt.Sprintf("%s %-3s %s %s / %s",
			styles.MUTED.Render(t.ID[:min(8, len(t.ID))]),
			t.Direction,
			t.Name,
			humanize.Bytes(uint64(max(t.Moved, 0))),
			humanize.Bytes(uint64(max(t.Size, 0))),
		))
	}

	return nil
}

// WithPort appends the default port to an address that has none.
func WithPort(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return addr
	}

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return net.JoinHostPort(strings.Trim(addr, "[]"), strconv.Itoa(config.DefaultPort))
}

func (u *UI) connect(ctx context.Context, p Peer, args string) error {
	addr := WithPort(args)
	if addr == "" {
		var ok bool
		if addr, ok = u.pick(ctx); !ok {
			return usage("connect")
		}
	}

	return u.dial(ctx, p, addr)
}

// Dial connects p to addr behind a spinner.
func (u *UI) Dial(ctx context.Context, p Peer, addr string) error {
	return spinner.New().
		Title(styles.INFO.Render(fmt.Sprintf("connecting to %s...", addr))).
		Context(ctx).
		ActionWithErr(func(ctx context.Context) error {
			return p.Connect(ctx, addr)
		}).
		Run()
}

func (u *UI) disconnect(_ context.Context, p Peer, _ string) error {
	return p.Disconnect()
}

func (u *UI) showStatus(_ context.Context, p Peer, _ string) error {
	self := p.Self()
	u.println(fmt.Sprintf("%s %s", styles.TITLE.Render(self.Name), styles.MUTED.Render(self.Addr)))

	if remote, ok := p.Remote(); ok {
		u.println(styles.SUCCESS.Render(fmt.Sprintf("connected to %s (%s)", remote.Name, remote.Addr)))
		return nil
	}

	u.mu.Lock()
	s := u.status
	u.mu.Unlock()

	u.println(renderStatus(s))
	return nil
}

func (u *UI) help(context.Context, Peer, string) error {
	u.println(styles.MUTED.Render("type to chat, or use a command:"))

	for _, c := range commands() {
		u.println(fmt.Sprintf("  %-14s %-30s %s", "/"+c.name, c.args, styles.MUTED.Render(c.usage)))
	}

	return nil
}

func (u *UI) quit(context.Context, Peer, string) error {
	return errQuit
}

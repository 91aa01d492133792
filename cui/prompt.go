package cui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dyastin-0/vortex/styles"
	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
)

// prompt is a form that has to run on the goroutine reading the terminal.
type prompt struct {
	ctx  context.Context
	run  func(ctx context.Context) error
	done chan error
}

// ask queues run for the input loop and waits for it. The loop drops the
// line it is reading, runs the form with ctx and then goes back to reading.
func (u *UI) ask(ctx context.Context, run func(ctx context.Context) error) error {
	p := prompt{ctx: ctx, run: run, done: make(chan error, 1)}

	select {
	case u.prompts <- p:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case u.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pending runs every queued prompt.
func (u *UI) pending() {
	for {
		select {
		case p := <-u.prompts:
			if err := p.ctx.Err(); err != nil {
				p.done <- err
				continue
			}
			p.done <- p.run(p.ctx)
		default:
			return
		}
	}
}

func confirmForm(ctx context.Context, title string, value *bool) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Affirmative("yes").
				Negative("no").
				Title(title).
				Value(value),
		),
	).RunWithContext(ctx)
}

func (u *UI) peerName() string {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.known == "" {
		return "the peer"
	}

	return u.known
}

func (u *UI) DecideFileAccept(ctx context.Context, name string, size int64) bool {
	var accept bool

	title := fmt.Sprintf("%s wants to send %s (%s), accept?", u.peerName(), name, humanize.Bytes(uint64(max(size, 0))))
	err := u.ask(ctx, func(ctx context.Context) error {
		return confirmForm(ctx, title, &accept)
	})
	if err != nil {
		u.log.WithErr(err).WithStr("name", name).Warn("file request unanswered")
		u.println(styles.WARN.Render(fmt.Sprintf("no answer for %s, rejecting", name)))
		return false
	}

	return accept
}

// ChooseDestinationPath offers the suggested path for editing. An empty
// answer cancels the transfer.
func (u *UI) ChooseDestinationPath(ctx context.Context, name, suggested string) (string, bool) {
	path := suggested

	err := u.ask(ctx, func(ctx context.Context) error {
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(fmt.Sprintf("save %s as", name)).
					Description("leave empty to cancel").
					Value(&path),
			),
		).RunWithContext(ctx)
	})
	if err != nil {
		u.log.WithErr(err).WithStr("name", name).Warn("no destination chosen")
		return "", false
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return "", false
	}

	return path, true
}

// confirmNow asks on the calling goroutine, which has to be the input loop.
func confirmNow(ctx context.Context, title string) (bool, error) {
	var ok bool
	if err := confirmForm(ctx, title, &ok); err != nil {
		return false, err
	}

	return ok, nil
}

// ChoosePathToSend opens the file picker. It reads the terminal itself, so
// it must be called from the input loop.
func (u *UI) ChoosePathToSend(ctx context.Context) (string, bool) {
	path, err := newPicker(u.dir).Run(ctx)
	if err != nil {
		if !errors.Is(err, ErrCanceled) {
			u.println(styles.ERROR.Render(err.Error()))
		}
		return "", false
	}

	return path, true
}

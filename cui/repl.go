package cui

import (
	"context"
	"errors"

	"github.com/Dyastin-0/vortex/styles"
	"github.com/charmbracelet/huh"
)

var errInterrupted = errors.New("input interrupted")

// Run reads lines until ctx is done or the user quits. Questions asked by
// the peer take over the terminal between two lines.
func (u *UI) Run(ctx context.Context, p Peer) error {
	u.println(styles.MUTED.Render("type to chat, /help for commands"))

	for {
		u.pending()

		if ctx.Err() != nil {
			return nil
		}

		line, err := u.read(ctx)
		switch {
		case errors.Is(err, errInterrupted):
			continue
		case errors.Is(err, huh.ErrUserAborted), ctx.Err() != nil:
			return nil
		case err != nil:
			return err
		}

		err = u.exec(ctx, p, line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			u.log.WithErr(err).WithStr("line", line).Debug("command failed")
			u.println(styles.ERROR.Render(err.Error()))
		}
	}
}

// read waits for one line. A queued prompt cancels it with errInterrupted.
func (u *UI) read(parent context.Context) (string, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go func() {
		select {
		case <-u.wake:
			cancel()
		case <-ctx.Done():
		}
	}()

	var line string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Prompt("> ").
				Value(&line),
		),
	).RunWithContext(ctx)
	if err != nil {
		if parent.Err() == nil && ctx.Err() != nil {
			return "", errInterrupted
		}
		return "", err
	}

	return line, nil
}

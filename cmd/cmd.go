// Package cmd builds the vortex command line and wires the peer to the
// terminal.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Dyastin-0/vortex/config"
	"github.com/Dyastin-0/vortex/core"
	"github.com/Dyastin-0/vortex/cui"
	"github.com/Dyastin-0/vortex/history"
	"github.com/Dyastin-0/vortex/logger"
	"github.com/Dyastin-0/vortex/progress"
	"github.com/Dyastin-0/vortex/styles"
	"github.com/charmbracelet/huh"
	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const Version = "0.1.0"

func New() *cli.Command {
	return &cli.Command{
		Name:    "vortex",
		Usage:   "chat, draw and share files with one peer over a direct TCP link",
		Version: Version,
		Flags:   flags(),
		Action:  vortexAction,
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "name shown to the peer",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "port to listen on and to dial by default",
		},
		&cli.StringFlag{
			Name:    "listen",
			Aliases: []string{"l"},
			Usage:   "interface to listen on, all of them when empty",
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "where received files are saved",
		},
		&cli.StringFlag{
			Name:  "peer",
			Usage: "address to connect to on start",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "saved profile to use, created when missing",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "config file, ~/vortex/config.yaml by default",
		},
		&cli.StringFlag{
			Name:  "history",
			Usage: "chat history log, relative to the config directory",
		},
		&cli.StringFlag{
			Name:  "log",
			Usage: "log directory under ~/vortex",
			Value: "logs",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "how long to wait for an answer to a file request",
		},
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "run without the interactive terminal",
		},
		&cli.BoolFlag{
			Name:  "auto-accept",
			Usage: "accept every file request when headless",
		},
	}
}

// settings is the config file with the flags applied on top. The file itself
// is only written back for the profile in use.
type settings struct {
	name      string
	addr      string
	dir       string
	history   string
	timeout   time.Duration
	peer      string
	headless  bool
	autoAcc   bool
	logDir    string
	profile   config.Profile
	inProfile bool
}

func resolve(cfg *config.Config, cfgPath string, cmd *cli.Command) (settings, error) {
	s := settings{
		name:     cfg.Name,
		dir:      cfg.Downloads,
		history:  cfg.History,
		timeout:  cfg.DecisionTimeout,
		peer:     cmd.String("peer"),
		headless: cmd.Bool("headless"),
		autoAcc:  cmd.Bool("auto-accept"),
		logDir:   cmd.String("log"),
	}

	port := cfg.Port
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
		if port < 1 || port > 65535 {
			return s, fmt.Errorf("%w: %d", config.ErrInvalidPort, port)
		}
	}
	s.addr = net.JoinHostPort(cmd.String("listen"), strconv.Itoa(port))

	if name := cmd.String("profile"); name != "" {
		s.profile, s.inProfile = cfg.Profile(name)
		if !s.inProfile {
			s.profile = config.Profile{Name: name}
			s.inProfile = true
		}
	} else if cfg.LastProfile != "" && !s.headless {
		s.profile, s.inProfile = cfg.Profile(cfg.LastProfile)
	}

	if s.inProfile && s.profile.Me != "" {
		s.name = s.profile.Me
	}

	if cmd.IsSet("name") {
		s.name = cmd.String("name")
	}

	if cmd.IsSet("dir") {
		s.dir = cmd.String("dir")
	}

	if cmd.IsSet("history") {
		s.history = cmd.String("history")
	}
	if !filepath.IsAbs(s.history) {
		s.history = filepath.Join(filepath.Dir(cfgPath), s.history)
	}

	if cmd.IsSet("timeout") {
		s.timeout = cmd.Duration("timeout")
	}

	return s, nil
}

func vortexAction(ctx context.Context, cmd *cli.Command) error {
	figure.NewFigure("vortex", "", true).Print()
	fmt.Println()

	cfgPath := cmd.String("config")
	if cfgPath == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	s, err := resolve(cfg, cfgPath, cmd)
	if err != nil {
		return err
	}

	logPath, err := logger.LogPath(s.logDir)
	if err != nil {
		return err
	}

	log := logger.New()
	if s.headless {
		log.InitMultiWriter(logPath)
	} else {
		log.Init(logPath)
	}

	store := history.New(s.history)

	ui := cui.New(cui.Options{Logger: log, Profiles: cfg.Profiles})

	opts := core.Options{
		Name:            s.name,
		Addr:            s.addr,
		Dir:             s.dir,
		DecisionTimeout: s.timeout,
		Decider:         ui,
		Sink:            ui,
		Meter:           ui,
		Recorder:        store,
		Logger:          log,
	}

	if s.headless {
		opts.Decider = core.AutoDecider{Accept: s.autoAcc}
		opts.Meter = progress.NewPlain(nil)
	}

	peer := core.New(opts)
	self := peer.Self()

	fmt.Println(styles.TITLE.Render("vortex"), styles.SUCCESS.Render(fmt.Sprintf("as %s, listening on %s", self.Name, self.Addr)))
	fmt.Println(styles.INFO.Render(fmt.Sprintf("files will be saved in %s", s.dir)))

	if err := replay(peer, store); err != nil {
		log.WithErr(err).Warn("failed to replay chat history")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return peer.Run(ctx)
	})

	g.Go(func() error {
		defer cancel()

		if s.headless {
			if s.peer != "" {
				connect(ctx, peer, cui.WithPort(s.peer), log)
			}
			<-ctx.Done()
			return nil
		}

		if addr := startPeer(ctx, s); addr != "" {
			if err := ui.Dial(ctx, peer, addr); err != nil && !errors.Is(err, core.ErrAlreadyConnected) {
				fmt.Println(styles.ERROR.Render(err.Error()))
			} else if err == nil {
				s.profile.Addr = addr
			}
		}

		return ui.Run(ctx, peer)
	})

	err = g.Wait()

	if s.inProfile {
		s.profile.Me = self.Name
		if s.profile.Addr == "" && s.peer != "" {
			s.profile.Addr = cui.WithPort(s.peer)
		}

		cfg.Use(s.profile)
		if serr := cfg.Save(cfgPath); serr != nil {
			log.WithErr(serr).Error("failed to save config")
		}
	}

	return err
}

// startPeer picks the address to dial before the prompt opens: the --peer
// flag, or the last profile once the user agrees.
func startPeer(ctx context.Context, s settings) string {
	if s.peer != "" {
		return cui.WithPort(s.peer)
	}

	if !s.inProfile || s.profile.Addr == "" {
		return ""
	}

	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Affirmative("yes").
				Negative("no").
				Title(fmt.Sprintf("connect to %s at %s?", s.profile.Name, s.profile.Addr)).
				Value(&ok),
		),
	).WithTimeout(30 * time.Second).RunWithContext(ctx)
	if err != nil || !ok {
		return ""
	}

	return s.profile.Addr
}

func connect(ctx context.Context, peer *core.Peer, addr string, log logger.Logger) {
	if err := peer.Connect(ctx, addr); err != nil {
		log.WithErr(err).WithStr("addr", addr).Warn("failed to connect on start")
	}
}

func replay(peer *core.Peer, store *history.Store) error {
	r, err := store.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	return peer.Replay(r)
}

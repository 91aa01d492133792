package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/Dyastin-0/vortex/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

const cfgPath = "/home/alice/vortex/config.yaml"

func resolved(t *testing.T, cfg *config.Config, args ...string) (settings, error) {
	t.Helper()

	var got settings
	c := &cli.Command{
		Name:  "vortex",
		Flags: flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			var err error
			got, err = resolve(cfg, cfgPath, cmd)
			return err
		},
	}

	err := c.Run(context.Background(), append([]string{"vortex"}, args...))
	return got, err
}

func TestResolveDefaults(t *testing.T) {
	s, err := resolved(t, config.Default())
	require.NoError(t, err)

	assert.Equal(t, ":12345", s.addr)
	assert.Equal(t, config.DefaultDownloads, s.dir)
	assert.Equal(t, "/home/alice/vortex/chat_history.log", s.history)
	assert.Equal(t, config.DefaultDecisionTimeout, s.timeout)
	assert.Equal(t, "logs", s.logDir)
	assert.False(t, s.inProfile)
}

func TestResolveFlagsOverrideFile(t *testing.T) {
	cfg := config.Default()
	cfg.Name = "from-file"
	cfg.Port = 4000

	s, err := resolved(t, cfg,
		"--name", "alice",
		"--port", "5000",
		"--listen", "127.0.0.1",
		"--dir", "/tmp/in",
		"--history", "/var/h.log",
		"--timeout", "30s",
		"--peer", "10.0.0.2",
	)
	require.NoError(t, err)

	assert.Equal(t, "alice", s.name)
	assert.Equal(t, "127.0.0.1:5000", s.addr)
	assert.Equal(t, "/tmp/in", s.dir)
	assert.Equal(t, "/var/h.log", s.history)
	assert.Equal(t, 30*time.Second, s.timeout)
	assert.Equal(t, "10.0.0.2", s.peer)
}

func TestResolveFilePort(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 4000

	s, err := resolved(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, ":4000", s.addr)
}

func TestResolveProfiles(t *testing.T) {
	cfg := config.Default()
	cfg.Use(config.Profile{Name: "home", Me: "nathan", Addr: "10.0.0.2:12345"})

	s, err := resolved(t, cfg)
	require.NoError(t, err)
	assert.True(t, s.inProfile)
	assert.Equal(t, "nathan", s.name)
	assert.Equal(t, "10.0.0.2:12345", s.profile.Addr)

	s, err = resolved(t, cfg, "--profile", "work", "--name", "majid")
	require.NoError(t, err)
	assert.True(t, s.inProfile)
	assert.Equal(t, config.Profile{Name: "work"}, s.profile)
	assert.Equal(t, "majid", s.name)

	// headless runs never pick up the last profile on their own
	s, err = resolved(t, cfg, "--headless")
	require.NoError(t, err)
	assert.False(t, s.inProfile)
}

func TestResolveRejectsBadPort(t *testing.T) {
	_, err := resolved(t, config.Default(), "--port", "70000")
	assert.ErrorIs(t, err, config.ErrInvalidPort)
}

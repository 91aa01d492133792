package core

import (
	"context"
	"io"

	"github.com/Dyastin-0/vortex/command"
	"github.com/Dyastin-0/vortex/types"
)

// Origin tells a handler where a command came from.
type Origin uint8

const (
	OriginRemote Origin = iota
	OriginLocal
	OriginHistory
)

// Decider answers the questions an inbound transfer asks. Both calls block
// the read loop until they return or the decision timeout expires.
type Decider interface {
	DecideFileAccept(ctx context.Context, name string, size int64) bool
	ChooseDestinationPath(ctx context.Context, name, suggested string) (string, bool)
}

type Picker interface {
	ChoosePathToSend(ctx context.Context) (string, bool)
}

// Sink receives everything the UI renders. Calls come from the read loop
// and must return promptly.
type Sink interface {
	OnChat(ev types.ChatEvent)
	OnDraw(s command.Stroke)
	OnClear()
	OnTransferStateChanged(t Transfer)
	OnGalleryChanged(ev types.GalleryEvent)
	OnStatus(s types.Status)
}

// Recorder persists chat commands so they can be replayed on the next start.
type Recorder interface {
	Record(cmd command.Command) error
	Reset() error
}

type Meter interface {
	Track(t Transfer) Gauge
}

// Gauge counts the bytes of one transfer.
type Gauge interface {
	io.Writer
	Done()
	Abort()
}

type NopSink struct{}

func (NopSink) OnChat(types.ChatEvent) {}
func (NopSink) OnDraw(command.Stroke) {}
func (NopSink) OnClear() {}
func (NopSink) OnTransferStateChanged(Transfer) {}
func (NopSink) OnGalleryChanged(types.GalleryEvent) {}
func (NopSink) OnStatus(types.Status) {}

// AutoDecider answers without asking anyone, for headless peers.
type AutoDecider struct {
	Accept bool
}

func (d AutoDecider) DecideFileAccept(context.Context, string, int64) bool {
	return d.Accept
}

func (d AutoDecider) ChooseDestinationPath(_ context.Context, _, suggested string) (string, bool) {
	return suggested, d.Accept
}

type nopRecorder struct{}

func (nopRecorder) Record(command.Command) error { return nil }
func (nopRecorder) Reset() error { return nil }

type nopMeter struct{}

func (nopMeter) Track(Transfer) Gauge { return nopGauge{} }

type nopGauge struct{}

func (nopGauge) Write(p []byte) (int, error) { return len(p), nil }
func (nopGauge) Done() {}
func (nopGauge) Abort() {}

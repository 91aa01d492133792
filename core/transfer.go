package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Dyastin-0/vortex/command"
	"github.com/Dyastin-0/vortex/logger"
	"github.com/Dyastin-0/vortex/types"
	"github.com/google/uuid"
)

type Direction uint8

const (
	Outbound Direction = iota + 1
	Inbound
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "out"
	case Inbound:
		return "in"
	default:
		return "unknown"
	}
}

type State uint8

const (
	StateIdle State = iota
	StateRequested
	StateAccepted
	StateStreaming
	StateReceiving
	StateComplete
	StateRejected
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateAccepted:
		return "accepted"
	case StateStreaming:
		return "streaming"
	case StateReceiving:
		return "receiving"
	case StateComplete:
		return "complete"
	case StateRejected:
		return "rejected"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal states drop the transfer from the table.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateRejected, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// Transfer is a snapshot of one file moving in one direction.
type Transfer struct {
	ID        string
	Name      string
	Direction Direction
	State     State
	Size      int64
	Moved     int64
	// Path is the source file for outbound transfers and the destination for
	// inbound ones once it has been chosen.
	Path string
	Err  error
}

type transfer struct {
	Transfer

	// owned by the read loop
	file    *os.File
	gauge   Gauge
	discard bool
}

// Transfers is the transfer table of one connection.
type Transfers struct {
	mu     sync.Mutex
	table  map[string]*transfer
	closed bool

	// recv is the inbound payload currently being absorbed
	recv *transfer

	router   *Router
	opts     Options
	log      logger.Logger
	teardown func(error)

	wg sync.WaitGroup
}

func newTransfers(r *Router, opts Options, teardown func(error)) *Transfers {
	return &Transfers{
		table:    make(map[string]*transfer),
		router:   r,
		opts:     opts,
		log:      opts.Logger.WithStr("component", "transfers"),
		teardown: teardown,
	}
}

func (ts *Transfers) register(r *Router) {
	r.Handle(command.FileRequest, ts.onRequest)
	r.Handle(command.FileAccept, ts.onAccept)
	r.Handle(command.FileReject, ts.onReject)
}

// Offer proposes the file at path to the peer. The file is only read once
// the peer accepts.
func (ts *Transfers) Offer(path string) (Transfer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Transfer{}, &TransferIOError{Op: "stat", Err: err}
	}

	if !info.Mode().IsRegular() {
		return Transfer{}, fmt.Errorf("%w: %s", ErrNotAFile, path)
	}

	t := &transfer{
		Transfer: Transfer{
			ID:        uuid.NewString(),
			Name:      filepath.Base(path),
			Direction: Outbound,
			State:     StateRequested,
			Size:      info.Size(),
			Path:      path,
		},
	}

	ts.mu.Lock()
	if ts.closed {
		ts.mu.Unlock()
		return Transfer{}, ErrSessionClosed
	}
	ts.table[t.ID] = t
	snap := t.Transfer
	ts.mu.Unlock()

	ts.notify(snap)

	offer := command.FileOffer{ID: t.ID, Name: t.Name, Size: t.Size}
	if err := ts.router.Send(command.Request(offer)); err != nil {
		ts.move(t, StateFailed, err)
		return ts.snapshot(t), err
	}

	return snap, nil
}

func (ts *Transfers) onRequest(ctx context.Context, cmd command.Command, _ Origin) error {
	offer, err := cmd.Offer()
	if err != nil {
		return err
	}

	name := safeName(offer.Name)
	log := ts.log.WithStr("transfer", offer.ID).WithStr("name", name)

	ts.mu.Lock()
	if _, dup := ts.table[offer.ID]; dup || ts.closed {
		ts.mu.Unlock()
		log.Warn("ignoring duplicate file request")
		return nil
	}

	t := &transfer{
		Transfer: Transfer{
			ID:        offer.ID,
			Name:      name,
			Direction: Inbound,
			State:     StateRequested,
			Size:      offer.Size,
		},
	}
	ts.table[t.ID] = t
	snap := t.Transfer
	ts.mu.Unlock()

	ts.notify(snap)

	accept := await(ctx, ts.opts.DecisionTimeout, false, func(ctx context.Context) bool {
		return ts.opts.Decider.DecideFileAccept(ctx, name, offer.Size)
	})

	if !accept {
		ts.move(t, StateRejected, nil)
		return ts.router.Send(command.New(command.FileReject, t.ID))
	}

	ts.move(t, StateAccepted, nil)

	suggested := filepath.Join(ts.opts.Dir, t.ID+"_"+name)
	dst := await(ctx, ts.opts.DecisionTimeout, destination{}, func(ctx context.Context) destination {
		path, ok := ts.opts.Decider.ChooseDestinationPath(ctx, name, suggested)
		return destination{path: path, ok: ok}
	})

	if !dst.ok || dst.path == "" {
		// the sender streams regardless, the payload gets drained
		ts.move(t, StateCancelled, nil)
	} else {
		ts.mu.Lock()
		t.Path = dst.path
		ts.mu.Unlock()
	}

	return ts.router.Send(command.New(command.FileAccept, t.ID))
}

func (ts *Transfers) onAccept(_ context.Context, cmd command.Command, _ Origin) error {
	id := cmd.ID()

	ts.mu.Lock()
	t, ok := ts.table[id]
	if !ok || t.Direction != Outbound || t.State != StateRequested || ts.closed {
		ts.mu.Unlock()
		ts.log.WithStr("transfer", id).Warn("accept for unknown transfer")
		return nil
	}

	t.State = StateStreaming
	snap := t.Transfer
	ts.wg.Add(1)
	ts.mu.Unlock()

	ts.notify(snap)

	go ts.stream(t)

	return nil
}

func (ts *Transfers) onReject(_ context.Context, cmd command.Command, _ Origin) error {
	id := cmd.ID()

	ts.mu.Lock()
	t, ok := ts.table[id]
	var dir Direction
	var state State
	if ok {
		dir, state = t.Direction, t.State
	}
	ts.mu.Unlock()

	switch {
	case ok && dir == Outbound:
		ts.move(t, StateRejected, nil)
	case ok && dir == Inbound && state == StateAccepted:
		// the sender could not read the file after we accepted it
		ts.move(t, StateFailed, ErrWithdrawn)
	default:
		ts.log.WithStr("transfer", id).Warn("reject for unknown transfer")
	}

	return nil
}

// withdraw fails an accepted outbound transfer before its start line and
// tells the peer, which is still waiting for the payload.
func (ts *Transfers) withdraw(t *transfer, err error) {
	ts.move(t, StateFailed, err)

	if err := ts.router.Send(command.New(command.FileReject, t.ID)); err != nil {
		ts.log.WithStr("transfer", t.ID).WithErr(err).Warn("failed to withdraw transfer")
	}
}

// stream writes the start line and the whole file while holding the write
// path. Failures before the start line withdraw the transfer. Once the start
// line is out the peer expects exactly Size bytes, so any failure from there
// on costs the connection.
func (ts *Transfers) stream(t *transfer) {
	defer ts.wg.Done()

	file, err := os.Open(t.Path)
	if err != nil {
		ts.withdraw(t, &TransferIOError{ID: t.ID, Op: "open", Err: err})
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		ts.withdraw(t, &TransferIOError{ID: t.ID, Op: "stat", Err: err})
		return
	}

	if info.Size() != t.Size {
		err := fmt.Errorf("size changed from %d to %d", t.Size, info.Size())
		ts.withdraw(t, &TransferIOError{ID: t.ID, Op: "stat", Err: err})
		return
	}

	gauge := ts.opts.Meter.Track(ts.snapshot(t))
	offer := command.FileOffer{ID: t.ID, Name: t.Name, Size: t.Size}

	_, err = ts.router.Stream(command.StartTransfer(offer), file, t.Size, &counter{ts: ts, t: t, gauge: gauge})
	if err != nil {
		gauge.Abort()
		ts.move(t, StateFailed, err)
		ts.teardown(err)
		return
	}

	gauge.Done()

	if !ts.move(t, StateComplete, nil) {
		return
	}

	ts.opts.Sink.OnGalleryChanged(types.GalleryEvent{
		Kind: types.GalleryAdded,
		ID:   t.ID,
		Name: t.Name,
		Path: ts.keep(t),
	})
}

// keep copies a sent file next to the received ones so the gallery entry
// outlives the source. It falls back to the source path when the copy fails.
func (ts *Transfers) keep(t *transfer) string {
	dst := filepath.Join(ts.opts.Dir, t.ID+"_"+t.Name)

	if err := copyFile(t.Path, dst); err != nil {
		ts.log.WithStr("transfer", t.ID).WithErr(err).Warn("failed to keep a copy of the sent file")
		os.Remove(dst)
		return t.Path
	}

	return dst
}

// onStart prepares the destination for a payload and returns how many raw
// bytes follow the line. Payloads nobody is waiting for are drained.
func (ts *Transfers) onStart(cmd command.Command) (int64, error) {
	offer, err := cmd.Offer()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProtocolDesync, err)
	}

	if ts.recv != nil {
		return 0, fmt.Errorf("%w: payload %s started inside payload %s", ErrProtocolDesync, offer.ID, ts.recv.ID)
	}

	log := ts.log.WithStr("transfer", offer.ID).WithInt64("size", offer.Size)

	ts.mu.Lock()
	t, ok := ts.table[offer.ID]
	if !ok || t.Direction != Inbound || t.State != StateAccepted {
		ts.mu.Unlock()
		log.Info("draining payload of unknown or cancelled transfer")
		ts.drain(offer)
		return offer.Size, nil
	}
	path := t.Path
	ts.mu.Unlock()

	if offer.Size != t.Size {
		err := fmt.Errorf("announced %d bytes, offered %d", offer.Size, t.Size)
		ts.move(t, StateFailed, &TransferIOError{ID: t.ID, Op: "start", Err: err})
		ts.drain(offer)
		return offer.Size, nil
	}

	file, err := create(path)
	if err != nil {
		ts.move(t, StateFailed, &TransferIOError{ID: t.ID, Op: "create", Err: err})
		ts.drain(offer)
		return offer.Size, nil
	}

	ts.mu.Lock()
	t.State = StateReceiving
	snap := t.Transfer
	ts.mu.Unlock()

	t.file = file
	t.gauge = ts.opts.Meter.Track(snap)
	ts.recv = t

	ts.notify(snap)

	return offer.Size, nil
}

func (ts *Transfers) drain(offer command.FileOffer) {
	ts.recv = &transfer{
		Transfer: Transfer{ID: offer.ID, Name: offer.Name, Size: offer.Size},
		discard:  true,
	}
}

// write stores one raw chunk of the current payload. A local write failure
// fails the transfer and drains the rest.
func (ts *Transfers) write(p []byte) error {
	t := ts.recv
	if t == nil {
		return fmt.Errorf("%w: raw bytes outside a payload", ErrProtocolDesync)
	}

	if t.discard {
		return nil
	}

	if _, err := t.file.Write(p); err != nil {
		ts.dropPartial(t)
		t.discard = true
		ts.move(t, StateFailed, &TransferIOError{ID: t.ID, Op: "write", Err: err})
		return nil
	}

	t.gauge.Write(p)

	ts.mu.Lock()
	t.Moved += int64(len(p))
	ts.mu.Unlock()

	return nil
}

// finish runs when the codec has absorbed the whole payload.
func (ts *Transfers) finish() error {
	t := ts.recv
	ts.recv = nil

	if t == nil {
		return fmt.Errorf("%w: payload ended without a start", ErrProtocolDesync)
	}

	if t.discard {
		return nil
	}

	file := t.file
	t.file = nil

	if err := file.Close(); err != nil {
		t.gauge.Abort()
		os.Remove(t.Path)
		ts.move(t, StateFailed, &TransferIOError{ID: t.ID, Op: "close", Err: err})
		return nil
	}

	t.gauge.Done()

	if !ts.move(t, StateComplete, nil) {
		return nil
	}

	ts.opts.Sink.OnGalleryChanged(types.GalleryEvent{
		Kind: types.GalleryAdded,
		ID:   t.ID,
		Name: t.Name,
		Path: t.Path,
	})

	return ts.router.Send(command.New(command.AddToGallery, t.ID, t.Name))
}

// abort fails every live transfer once the connection is gone. It must be
// called from the read loop after it stopped reading.
func (ts *Transfers) abort(cause error) {
	if cause == nil {
		cause = ErrSessionClosed
	}

	if t := ts.recv; t != nil && !t.discard {
		ts.dropPartial(t)
	}
	ts.recv = nil

	ts.mu.Lock()
	ts.closed = true
	live := make([]*transfer, 0, len(ts.table))
	for _, t := range ts.table {
		live = append(live, t)
	}
	ts.mu.Unlock()

	for _, t := range live {
		ts.move(t, StateFailed, fmt.Errorf("connection lost: %w", cause))
	}

	ts.wg.Wait()
}

func (ts *Transfers) dropPartial(t *transfer) {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}

	if t.gauge != nil {
		t.gauge.Abort()
	}

	if err := os.Remove(t.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		ts.log.WithStr("transfer", t.ID).WithErr(err).Warn("failed to remove partial file")
	}
}

// move sets a new state and reports it. It reports false when the transfer
// had already settled, so late failures never overwrite an outcome.
func (ts *Transfers) move(t *transfer, s State, err error) bool {
	ts.mu.Lock()
	if t.State.Terminal() {
		ts.mu.Unlock()
		return false
	}

	t.State = s
	if err != nil {
		t.Err = err
	}

	if s.Terminal() {
		delete(ts.table, t.ID)
	}

	snap := t.Transfer
	ts.mu.Unlock()

	ts.notify(snap)

	return true
}

func (ts *Transfers) notify(snap Transfer) {
	log := ts.log.
		WithStr("transfer", snap.ID).
		WithStr("direction", snap.Direction.String()).
		WithStr("state", snap.State.String())

	if snap.Err != nil {
		log.WithErr(snap.Err).Warn("transfer state changed")
	} else {
		log.Info("transfer state changed")
	}

	ts.opts.Sink.OnTransferStateChanged(snap)
}

func (ts *Transfers) snapshot(t *transfer) Transfer {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return t.Transfer
}

// Snapshot lists the live transfers ordered by id.
func (ts *Transfers) Snapshot() []Transfer {
	ts.mu.Lock()
	out := make([]Transfer, 0, len(ts.table))
	for _, t := range ts.table {
		out = append(out, t.Transfer)
	}
	ts.mu.Unlock()

	slices.SortFunc(out, func(a, b Transfer) int {
		return strings.Compare(a.ID, b.ID)
	})

	return out
}

type counter struct {
	ts    *Transfers
	t     *transfer
	gauge Gauge
}

func (c *counter) Write(p []byte) (int, error) {
	c.gauge.Write(p)

	c.ts.mu.Lock()
	c.t.Moved += int64(len(p))
	c.ts.mu.Unlock()

	return len(p), nil
}

type destination struct {
	path string
	ok   bool
}

// await asks and gives up after d, returning fallback. A late answer is
// dropped.
func await[T any](ctx context.Context, d time.Duration, fallback T, ask func(context.Context) T) T {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	answer := make(chan T, 1)
	go func() {
		answer <- ask(ctx)
	}()

	select {
	case v := <-answer:
		return v
	case <-ctx.Done():
		return fallback
	}
}

// safeName keeps only the last path element so a peer cannot steer where
// files land.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "file"
	}

	return name
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	return os.Create(path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

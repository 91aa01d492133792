// Package frame splits a byte stream into newline terminated lines and, on
// request, into raw blocks of a declared length.
package frame

import (
	"bytes"
	"errors"
	"iter"
)

const (
	Delim       byte = '\n'
	MaxLineSize      = 1 << 20 // 1 MiB
)

var ErrLineTooLong = errors.New("line exceeds maximum size")

type Kind uint8

const (
	Line Kind = iota + 1
	RawChunk
	AbsorptionComplete
)

func (k Kind) String() string {
	switch k {
	case Line:
		return "line"
	case RawChunk:
		return "raw"
	case AbsorptionComplete:
		return "absorbed"
	default:
		return "unknown"
	}
}

// Event is one unit yielded by Feed. Data aliases the codec buffer and is
// only valid until the consumer returns from the yield.
type Event struct {
	Kind Kind
	Data []byte
}

// Codec is not safe for concurrent use; it belongs to a single read loop.
type Codec struct {
	buf []byte
	r   int

	absorbing bool
	remaining int64

	fed     int64
	yielded int64
}

func New() *Codec {
	return &Codec{buf: make([]byte, 0, 4096)}
}

// Absorb switches the codec to raw mode for the next n bytes, counting any
// bytes that are already buffered. It is meant to be called by the consumer
// of a Line event; the running Feed iteration picks the new mode up.
func (c *Codec) Absorb(n int64) {
	if n < 0 {
		n = 0
	}

	c.absorbing = true
	c.remaining = n
}

func (c *Codec) Absorbing() bool {
	return c.absorbing
}

func (c *Codec) Remaining() int64 {
	return c.remaining
}

// Feed buffers p and returns the events it makes available, left to right.
// Bytes that do not complete an event stay buffered for the next call.
func (c *Codec) Feed(p []byte) iter.Seq[Event] {
	c.compact()
	c.buf = append(c.buf, p...)
	c.fed += int64(len(p))

	return c.events
}

func (c *Codec) events(yield func(Event) bool) {
	for {
		if c.absorbing {
			if c.remaining == 0 {
				c.absorbing = false
				if !yield(Event{Kind: AbsorptionComplete}) {
					return
				}
				continue
			}

			pending := c.buf[c.r:]
			if len(pending) == 0 {
				return
			}

			n := int64(len(pending))
			if n > c.remaining {
				n = c.remaining
			}

			chunk := pending[:n]
			c.r += int(n)
			c.remaining -= n
			c.yielded += n

			if !yield(Event{Kind: RawChunk, Data: chunk}) {
				return
			}
			continue
		}

		pending := c.buf[c.r:]
		i := bytes.IndexByte(pending, Delim)
		if i < 0 {
			return
		}

		line := pending[:i]
		c.r += i + 1
		c.yielded += int64(i + 1)

		if !yield(Event{Kind: Line, Data: line}) {
			return
		}
	}
}

// Check reports a line that outgrew MaxLineSize without a delimiter.
func (c *Codec) Check() error {
	if !c.absorbing && c.Buffered() > MaxLineSize {
		return ErrLineTooLong
	}

	return nil
}

func (c *Codec) Buffered() int {
	return len(c.buf) - c.r
}

func (c *Codec) Fed() int64 {
	return c.fed
}

func (c *Codec) Yielded() int64 {
	return c.yielded
}

// compact runs before appending so no slice handed out by a yield is
// overwritten while still in use.
func (c *Codec) compact() {
	switch {
	case c.r == len(c.buf):
		c.buf = c.buf[:0]
		c.r = 0
	case c.r > 0 && c.r >= len(c.buf)/2:
		n := copy(c.buf, c.buf[c.r:])
		c.buf = c.buf[:n]
		c.r = 0
	}
}

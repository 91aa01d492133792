// Package command is the closed set of verbs exchanged between two peers and
// their colon delimited text form.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Dyastin-0/vortex/frame"
)

const (
	Delim      = ":"
	FrameDelim = "\n"
)

type Verb string

const (
	Hello             Verb = "HELLO"
	ChatMsg           Verb = "CHAT_MSG"
	EditMsg           Verb = "EDIT_MSG"
	DeleteMsg         Verb = "DELETE_MSG"
	ClearChat         Verb = "CLEAR_CHAT"
	Draw              Verb = "DRAW"
	Clear             Verb = "CLEAR"
	FileRequest       Verb = "FILE_REQUEST"
	FileAccept        Verb = "FILE_ACCEPT"
	FileReject        Verb = "FILE_REJECT"
	FileStartTransfer Verb = "FILE_START_TRANSFER"
	AddToGallery      Verb = "ADD_TO_GALLERY"
	DeleteFile        Verb = "DELETE_FILE"
	ClearGallery      Verb = "CLEAR_GALLERY"
)

var (
	ErrUnknownVerb  = errors.New("unknown verb")
	ErrArity        = errors.New("wrong number of fields")
	ErrInvalidField = errors.New("invalid field")
)

type layout uint8

const (
	// fields split on every delimiter
	fixed layout = iota
	// the last field runs to end of line
	tail
	// first and last fields are fixed, the middle one absorbs delimiters
	middle
)

type shape struct {
	arity  int
	layout layout
}

var shapes = map[Verb]shape{
	Hello:             {2, tail},
	ChatMsg:           {3, tail},
	EditMsg:           {3, tail},
	DeleteMsg:         {1, fixed},
	ClearChat:         {0, fixed},
	Draw:              {1, fixed},
	Clear:             {0, fixed},
	FileRequest:       {3, middle},
	FileAccept:        {1, fixed},
	FileReject:        {1, fixed},
	FileStartTransfer: {3, middle},
	AddToGallery:      {2, tail},
	DeleteFile:        {1, fixed},
	ClearGallery:      {0, fixed},
}

// Known reports whether v is part of the protocol.
func Known(v Verb) bool {
	_, ok := shapes[v]
	return ok
}

// Command is immutable once built; Fields must not be modified.
type Command struct {
	Verb   Verb
	Fields []string
}

func New(v Verb, fields ...string) Command {
	return Command{Verb: v, Fields: fields}
}

// ParseError is a recoverable decoding failure: the line is dropped.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Field returns the i-th field or an empty string.
func (c Command) Field(i int) string {
	if i < 0 || i >= len(c.Fields) {
		return ""
	}

	return c.Fields[i]
}

// ID returns the first field, which for every id-carrying verb is the id.
func (c Command) ID() string {
	return c.Field(0)
}

func (c Command) String() string {
	if len(c.Fields) == 0 {
		return string(c.Verb)
	}

	return string(c.Verb) + Delim + strings.Join(c.Fields, Delim)
}

// Validate checks arity and that no field can break framing.
func (c Command) Validate() error {
	s, ok := shapes[c.Verb]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVerb, c.Verb)
	}

	if len(c.Fields) != s.arity {
		return fmt.Errorf("%w: %s wants %d, got %d", ErrArity, c.Verb, s.arity, len(c.Fields))
	}

	for i, f := range c.Fields {
		if strings.Contains(f, FrameDelim) {
			return fmt.Errorf("%w: field %d of %s contains a newline", ErrInvalidField, i, c.Verb)
		}

		if strings.Contains(f, Delim) && !s.delimAllowed(i) {
			return fmt.Errorf("%w: field %d of %s contains %q", ErrInvalidField, i, c.Verb, Delim)
		}
	}

	return c.validateValues()
}

func (s shape) delimAllowed(i int) bool {
	switch s.layout {
	case tail:
		return i == s.arity-1
	case middle:
		return i > 0 && i < s.arity-1
	default:
		return false
	}
}

// Encode returns the wire form including the frame delimiter. Lines the
// receiving codec would refuse are rejected here.
func (c Command) Encode() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	line := c.String()
	if len(line) > frame.MaxLineSize {
		return nil, fmt.Errorf("%w: %s line is %d bytes, at most %d fit", ErrInvalidField, c.Verb, len(line), frame.MaxLineSize)
	}

	return []byte(line + FrameDelim), nil
}

// Parse decodes one line without its frame delimiter.
func Parse(line string) (Command, error) {
	line = strings.TrimSuffix(line, "\r")

	verb, rest, hasFields := strings.Cut(line, Delim)
	v := Verb(verb)

	s, ok := shapes[v]
	if !ok {
		return Command{}, &ParseError{Line: line, Err: ErrUnknownVerb}
	}

	var fields []string

	switch {
	case !hasFields:
		fields = nil
	case s.arity == 0:
		return Command{}, &ParseError{Line: line, Err: ErrArity}
	case s.layout == tail:
		fields = strings.SplitN(rest, Delim, s.arity)
	case s.layout == middle:
		fields = splitMiddle(rest)
	default:
		fields = strings.Split(rest, Delim)
	}

	if len(fields) != s.arity {
		return Command{}, &ParseError{Line: line, Err: ErrArity}
	}

	c := Command{Verb: v, Fields: fields}
	if err := c.validateValues(); err != nil {
		return Command{}, &ParseError{Line: line, Err: err}
	}

	return c, nil
}

// splitMiddle keeps the first and last delimiter-free fields and joins the
// rest into the middle one.
func splitMiddle(rest string) []string {
	first, rest, ok := strings.Cut(rest, Delim)
	if !ok {
		return []string{first}
	}

	i := strings.LastIndex(rest, Delim)
	if i < 0 {
		return []string{first, rest}
	}

	return []string{first, rest[:i], rest[i+1:]}
}

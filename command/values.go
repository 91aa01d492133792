package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const strokeDelim = ","

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Stroke is one segment of a freehand drawing.
type Stroke struct {
	X1, Y1 int
	X2, Y2 int
	Color  string
	Width  float64
}

func (s Stroke) String() string {
	return strings.Join([]string{
		strconv.Itoa(s.X1),
		strconv.Itoa(s.Y1),
		strconv.Itoa(s.X2),
		strconv.Itoa(s.Y2),
		s.Color,
		strconv.FormatFloat(s.Width, 'f', -1, 64),
	}, strokeDelim)
}

func (s Stroke) Validate() error {
	if !colorPattern.MatchString(s.Color) {
		return fmt.Errorf("%w: color %q", ErrInvalidField, s.Color)
	}

	if s.Width <= 0 {
		return fmt.Errorf("%w: width %v", ErrInvalidField, s.Width)
	}

	return nil
}

// ParseStroke decodes "x1,y1,x2,y2,color,width".
func ParseStroke(field string) (Stroke, error) {
	parts := strings.Split(field, strokeDelim)
	if len(parts) != 6 {
		return Stroke{}, fmt.Errorf("%w: stroke wants 6 values, got %d", ErrArity, len(parts))
	}

	var coords [4]int
	for i := range coords {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return Stroke{}, fmt.Errorf("%w: coordinate %q", ErrInvalidField, parts[i])
		}
		coords[i] = n
	}

	width, err := strconv.ParseFloat(strings.TrimSpace(parts[5]), 64)
	if err != nil {
		return Stroke{}, fmt.Errorf("%w: width %q", ErrInvalidField, parts[5])
	}

	s := Stroke{
		X1:    coords[0],
		Y1:    coords[1],
		X2:    coords[2],
		Y2:    coords[3],
		Color: strings.TrimSpace(parts[4]),
		Width: width,
	}

	return s, s.Validate()
}

// FileOffer is the id, name and byte size carried by FILE_REQUEST and
// FILE_START_TRANSFER.
type FileOffer struct {
	ID   string
	Name string
	Size int64
}

func Chat(id, sender, body string) Command {
	return New(ChatMsg, id, sender, body)
}

func Edit(id, sender, body string) Command {
	return New(EditMsg, id, sender, body)
}

func DrawStroke(s Stroke) Command {
	return New(Draw, s.String())
}

func Request(o FileOffer) Command {
	return New(FileRequest, o.ID, o.Name, strconv.FormatInt(o.Size, 10))
}

func StartTransfer(o FileOffer) Command {
	return New(FileStartTransfer, o.ID, o.Name, strconv.FormatInt(o.Size, 10))
}

func Greeting(peerID, name string) Command {
	return New(Hello, peerID, name)
}

// Sender is the second field of chat and hello commands.
func (c Command) Sender() string {
	return c.Field(1)
}

// Body is the tail field of chat commands.
func (c Command) Body() string {
	return c.Field(2)
}

// Name is the file name of file and gallery commands.
func (c Command) Name() string {
	return c.Field(1)
}

func (c Command) Stroke() (Stroke, error) {
	if c.Verb != Draw {
		return Stroke{}, fmt.Errorf("%w: %s has no stroke", ErrInvalidField, c.Verb)
	}

	return ParseStroke(c.Field(0))
}

func (c Command) Offer() (FileOffer, error) {
	if c.Verb != FileRequest && c.Verb != FileStartTransfer {
		return FileOffer{}, fmt.Errorf("%w: %s has no offer", ErrInvalidField, c.Verb)
	}

	size, err := strconv.ParseInt(c.Field(2), 10, 64)
	if err != nil || size < 0 {
		return FileOffer{}, fmt.Errorf("%w: size %q", ErrInvalidField, c.Field(2))
	}

	return FileOffer{ID: c.Field(0), Name: c.Field(1), Size: size}, nil
}

func (c Command) validateValues() error {
	switch c.Verb {
	case Draw:
		_, err := c.Stroke()
		return err

	case FileRequest, FileStartTransfer:
		o, err := c.Offer()
		if err != nil {
			return err
		}
		if o.ID == "" || o.Name == "" {
			return fmt.Errorf("%w: empty id or name", ErrInvalidField)
		}

	case Hello, ChatMsg, EditMsg, DeleteMsg, FileAccept, FileReject, AddToGallery, DeleteFile:
		if c.ID() == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidField)
		}
	}

	return nil
}

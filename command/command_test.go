package command

import (
	"strings"
	"testing"

	"github.com/Dyastin-0/vortex/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{
			name: "chat body keeps delimiters",
			line: "CHAT_MSG:42:Nathan:see you at 10:30: ok?",
			want: Chat("42", "Nathan", "see you at 10:30: ok?"),
		},
		{
			name: "chat empty body",
			line: "CHAT_MSG:42:Nathan:",
			want: Chat("42", "Nathan", ""),
		},
		{
			name: "edit",
			line: "EDIT_MSG:42::fixed: typo",
			want: Edit("42", "", "fixed: typo"),
		},
		{
			name: "delete message",
			line: "DELETE_MSG:42",
			want: New(DeleteMsg, "42"),
		},
		{
			name: "clear chat",
			line: "CLEAR_CHAT",
			want: New(ClearChat),
		},
		{
			name: "draw",
			line: "DRAW:0,0,10,10,#ffffff,3",
			want: New(Draw, "0,0,10,10,#ffffff,3"),
		},
		{
			name: "file request with colon in name",
			line: "FILE_REQUEST:abc:12:00 notes.txt:2048",
			want: New(FileRequest, "abc", "12:00 notes.txt", "2048"),
		},
		{
			name: "start transfer of empty file",
			line: "FILE_START_TRANSFER:abc:empty.bin:0",
			want: New(FileStartTransfer, "abc", "empty.bin", "0"),
		},
		{
			name: "gallery add",
			line: "ADD_TO_GALLERY:abc:a:b.png",
			want: New(AddToGallery, "abc", "a:b.png"),
		},
		{
			name: "carriage return stripped",
			line: "CLEAR\r",
			want: New(Clear),
		},
		{
			name: "hello",
			line: "HELLO:peer-1:Majid",
			want: Greeting("peer-1", "Majid"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Verb, got.Verb)
			assert.Equal(t, tt.want.Fields, got.Fields)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{name: "unknown verb", line: "FILE_INFO:1:a.txt:3", want: ErrUnknownVerb},
		{name: "lowercase verb", line: "chat_msg:1:a:b", want: ErrUnknownVerb},
		{name: "empty", line: "", want: ErrUnknownVerb},
		{name: "chat missing body", line: "CHAT_MSG:1:Nathan", want: ErrArity},
		{name: "delete extra field", line: "DELETE_MSG:1:2", want: ErrArity},
		{name: "clear with field", line: "CLEAR:now", want: ErrArity},
		{name: "request missing size", line: "FILE_REQUEST:1:a.txt", want: ErrArity},
		{name: "request non numeric size", line: "FILE_REQUEST:1:a.txt:big", want: ErrInvalidField},
		{name: "request negative size", line: "FILE_REQUEST:1:a.txt:-4", want: ErrInvalidField},
		{name: "draw non numeric", line: "DRAW:a,0,10,10,#ffffff,3", want: ErrInvalidField},
		{name: "draw bad color", line: "DRAW:0,0,10,10,white,3", want: ErrInvalidField},
		{name: "draw short", line: "DRAW:0,0,10,10", want: ErrArity},
		{name: "accept empty id", line: "FILE_ACCEPT:", want: ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncode(t *testing.T) {
	b, err := Chat("1", "Nathan", "a:b").Encode()
	require.NoError(t, err)
	assert.Equal(t, "CHAT_MSG:1:Nathan:a:b\n", string(b))

	b, err = New(ClearGallery).Encode()
	require.NoError(t, err)
	assert.Equal(t, "CLEAR_GALLERY\n", string(b))

	b, err = Request(FileOffer{ID: "x", Name: "photo.png", Size: 99}).Encode()
	require.NoError(t, err)
	assert.Equal(t, "FILE_REQUEST:x:photo.png:99\n", string(b))
}

func TestEncodeRejects(t *testing.T) {
	_, err := Chat("1", "Nathan", "two\nlines").Encode()
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = Chat("1", "Nat:han", "hi").Encode()
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = New(DeleteMsg).Encode()
	assert.ErrorIs(t, err, ErrArity)

	_, err = New(Verb("FILE_INFO"), "1").Encode()
	assert.ErrorIs(t, err, ErrUnknownVerb)
}

func TestEncodeLineLimit(t *testing.T) {
	head := len("CHAT_MSG:1:n:")

	b, err := Chat("1", "n", strings.Repeat("x", frame.MaxLineSize-head)).Encode()
	require.NoError(t, err)
	assert.Len(t, b, frame.MaxLineSize+1)

	_, err = Chat("1", "n", strings.Repeat("x", frame.MaxLineSize-head+1)).Encode()
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = Chat("1", "n", strings.Repeat("x", 2<<20)).Encode()
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestStroke(t *testing.T) {
	c, err := Parse("DRAW:0,0,10,10,#ffffff,3")
	require.NoError(t, err)

	s, err := c.Stroke()
	require.NoError(t, err)
	assert.Equal(t, Stroke{X1: 0, Y1: 0, X2: 10, Y2: 10, Color: "#ffffff", Width: 3}, s)

	b, err := DrawStroke(s).Encode()
	require.NoError(t, err)
	assert.Equal(t, "DRAW:0,0,10,10,#ffffff,3\n", string(b))

	s.Width = 2.5
	assert.Equal(t, "0,0,10,10,#ffffff,2.5", s.String())
}

func TestOffer(t *testing.T) {
	c, err := Parse("FILE_START_TRANSFER:abc:a:b:c.txt:12")
	require.NoError(t, err)

	o, err := c.Offer()
	require.NoError(t, err)
	assert.Equal(t, FileOffer{ID: "abc", Name: "a:b:c.txt", Size: 12}, o)

	_, err = New(FileAccept, "abc").Offer()
	assert.ErrorIs(t, err, ErrInvalidField)
}

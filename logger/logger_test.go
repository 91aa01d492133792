package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsAttached(t *testing.T) {
	var buf bytes.Buffer

	l := NewWriter(&buf).
		WithStr("transfer", "abc").
		WithInt64("size", 42).
		WithErr(errors.New("boom"))

	l.Warn("transfer failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "transfer failed", entry["message"])
	assert.Equal(t, "abc", entry["transfer"])
	assert.Equal(t, float64(42), entry["size"])
	assert.Equal(t, "boom", entry["error"])
}

func TestWithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer

	base := NewWriter(&buf)
	base.WithStr("peer", "a")
	base.Info("plain")

	assert.NotContains(t, buf.String(), `"peer"`)
}

func TestNop(t *testing.T) {
	l := Nop().WithStr("k", "v")
	l.Info("nothing")
	l.Error("nothing")
}

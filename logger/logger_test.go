package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"":        InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSlogWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)

	l.Debug("hidden")
	l.Info("robolink: link state changed", "prev", "OPEN", "next", "DEGRADED")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "robolink: link state changed", rec["msg"])
	assert.Equal(t, "DEGRADED", rec["next"])
	assert.Contains(t, rec, "ts")
	assert.NotContains(t, rec, "time")
}

func TestSlogWriter_LevelSharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, WarnLevel, false)
	child := l.With("component", "link")

	child.Info("dropped")
	assert.Empty(t, buf.String())

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, child.Level())

	child.Debug("kept")
	assert.Contains(t, buf.String(), `"component":"link"`)
	assert.Contains(t, buf.String(), "kept")
}

func TestSlogWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, true)

	l.Warn("reconnect failed", "attempt", 2)
	assert.Contains(t, buf.String(), "reconnect failed")
	assert.Contains(t, buf.String(), "attempt")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing")
	l.SetLevel(DebugLevel)
	assert.Equal(t, FatalLevel, l.Level())
	assert.Equal(t, l, l.With("k", "v"))
}

func TestMockLogger_AllowAll(t *testing.T) {
	m := NewMockLogger().AllowAll()

	m.Info("first", "k", 1)
	m.Warn("second")
	m.Info("third")

	assert.Equal(t, []string{"first", "third"}, m.Messages("Info"))
	assert.Equal(t, []string{"second"}, m.Messages("Warn"))
	assert.Same(t, m, m.With("k", "v"))
}

func TestDefaultLogger(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	m := NewMockLogger().AllowAll()
	SetLogger(m)
	SetLogger(nil)
	assert.Same(t, m, GetLogger())

	Info("hello")
	assert.Equal(t, []string{"hello"}, m.Messages("Info"))
}

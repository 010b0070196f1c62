package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"text":  FormatText,
		"TINT":  FormatText,
		"human": FormatText,
		"json":  FormatJSON,
		"":      FormatAuto,
		"bogus": FormatAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseFormat(in), "ParseFormat(%q)", in)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nope"))
}

func TestNewHandler_JSONWhenNotTTY(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, FormatAuto, slog.LevelInfo))
	logger.Info("hello", "k", "v")

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "{"), "expected JSON output, got %q", out)
	assert.Contains(t, out, `"msg":"hello"`)
}

func TestNewHandler_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, FormatJSON, slog.LevelWarn))
	logger.Info("dropped")
	assert.Empty(t, buf.String())
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("hello")
	assert.Len(t, a, 12)
	assert.Equal(t, a, Fingerprint("hello"))
	assert.NotEqual(t, a, Fingerprint("hello "))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", Preview("a\nb"))

	long := strings.Repeat("é", 200)
	p := Preview(long)
	assert.True(t, strings.HasSuffix(p, "…"))
	assert.Equal(t, previewLimit+1, len([]rune(p)))
}

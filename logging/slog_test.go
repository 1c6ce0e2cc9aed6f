package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-userauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ auth.Logger = (*SlogLogger)(nil)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return New(Options{Format: "text", Level: "debug", Writer: &buf}), &buf
}

func TestSlogLogger_Levels_WriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)

	log.Debug("dbg", "a", 1)
	log.Info("inf", "b", 2)
	log.Warn("wrn", "c", 3)
	log.Error("err", "d", 4)

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		attr  string
	}{
		{"DEBUG", "dbg", "a=1"},
		{"INFO", "inf", "b=2"},
		{"WARN", "wrn", "c=3"},
		{"ERROR", "err", "d=4"},
	}

	for _, tc := range tests {
		assert.Contains(t, out, "level="+tc.level)
		assert.Contains(t, out, "msg="+tc.msg)
		assert.Contains(t, out, tc.attr)
	}
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Writer: &buf})

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSlogLogger_JSONExpandsRichErrors(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Format: "json", Level: "info", Writer: &buf})

	log.Error("request failed", "error", auth.ErrEmailInUse, "path", "/signup")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	group, ok := entry["error"].(map[string]any)
	require.True(t, ok, "error should be rendered as a group: %s", buf.String())
	assert.Equal(t, "EMAIL_IN_USE", group["text_code"])
	assert.EqualValues(t, goerrors.CodeConflict, group["code"])
	assert.Equal(t, "/signup", entry["path"])
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("component", "auth").Info("hello")

	assert.True(t, strings.Contains(buf.String(), "component=auth"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	logger.Info("search settled", "epoch", 3)

	assert.Contains(t, buf.String(), `"msg":"search settled"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"epoch":3`)
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantJSON    bool
	}{
		{name: "production uses json", environment: "production", wantJSON: true},
		{name: "development uses pretty", environment: "development", wantJSON: false},
		{name: "test uses pretty", environment: "test", wantJSON: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			logger.Info("test")

			if tt.wantJSON {
				assert.Contains(t, buf.String(), `"msg":"test"`)
			} else {
				assert.Contains(t, buf.String(), "INF test")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	r := slog.NewRecord(time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC), slog.LevelWarn, "stale response dropped", 0)
	r.AddAttrs(slog.Int("epoch", 2), slog.String("reason", "newer cycle"))
	require.NoError(t, h.Handle(context.Background(), r))

	assert.Equal(t, "15:04:05 WRN stale response dropped epoch=2 reason=\"newer cycle\"\n", buf.String())
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	base := NewPrettyHandler(&buf, nil)
	h := base.WithAttrs([]slog.Attr{slog.String("component", "session")}).WithGroup("auth")

	slog.New(h).Info("token loaded", "store", "file")

	assert.Contains(t, buf.String(), "auth.component=session")
	assert.Contains(t, buf.String(), "auth.store=file")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value slog.Value
		want  string
	}{
		{name: "plain string", value: slog.StringValue("abc"), want: "abc"},
		{name: "string with space", value: slog.StringValue("a b"), want: `"a b"`},
		{name: "int", value: slog.IntValue(42), want: "42"},
		{name: "duration", value: slog.DurationValue(1500 * time.Millisecond), want: "1.5s"},
		{name: "time", value: slog.TimeValue(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), want: "2024-01-02T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.value))
		})
	}
}

func TestLogger_WithHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	logger.WithError(errors.New("boom")).
		WithField("op", "login").
		WithFields(map[string]any{"user": "alice"}).
		Error("request failed")

	out := buf.String()
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"op":"login"`)
	assert.Contains(t, out, `"user":"alice"`)
}

func TestNew_FileTee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docshelf.log")
	var console bytes.Buffer

	logger := New(Config{Level: slog.LevelInfo, Format: "pretty", Writer: &console, File: path})
	logger.Info("written twice", "page", 1)
	require.NoError(t, logger.Close())

	assert.Contains(t, console.String(), "written twice page=1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written twice"`)
	assert.Contains(t, string(data), `"page":1`)
}

func TestLogger_CloseWithoutFile(t *testing.T) {
	logger := New(Config{Writer: &bytes.Buffer{}})
	assert.NoError(t, logger.Close())
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_LogConfiguration_logLevel(t *testing.T) {
	var cases = []struct {
		name  string
		level slog.Level
	}{
		{"", slog.LevelInfo},
		{"error", slog.LevelError},
		{"InfO", slog.LevelInfo},
		{"ERROR", slog.LevelError},
		{"WARNING", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"INFO", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"TRACE", LevelTrace},
		{"NONE", levelNone},
		{"info-1", slog.LevelInfo - 1},
		{"info+1", slog.LevelInfo + 1},
		{"garbage", slog.LevelInfo},
	}

	for _, tc := range cases {
		cfg := LogConfiguration{Level: tc.name}
		if lvl := cfg.logLevel(); lvl != tc.level {
			t.Errorf("expected %q to return %d (%s) but got %d (%s)", tc.name, tc.level, tc.level, lvl, lvl)
		}
	}

	// special case - when OutputPath is "discard" return levelNone
	cfg := LogConfiguration{Level: "info", OutputPath: "discard"}
	require.Equal(t, levelNone, cfg.logLevel())

	cfg = LogConfiguration{Level: "info", OutputPath: os.DevNull}
	require.Equal(t, levelNone, cfg.logLevel())
}

func Test_New(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		log, err := New(nil)
		require.NoError(t, err)
		require.NotNil(t, log)
	})

	t.Run("unknown format", func(t *testing.T) {
		log, err := New(&LogConfiguration{Format: "xml"})
		require.EqualError(t, err, `creating log handler: unknown log format "xml"`)
		require.Nil(t, log)
	})

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, err := New(&LogConfiguration{Format: FormatJSON, Writer: buf, Level: "trace", TimeFormat: "none"})
		require.NoError(t, err)
		log.Log(context.Background(), LevelTrace, "trace msg", Height(7))

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		require.Equal(t, "TRACE", rec[slog.LevelKey])
		require.Equal(t, "trace msg", rec[slog.MessageKey])
		require.EqualValues(t, 7, rec[HeightKey])
		require.NotContains(t, rec, slog.TimeKey)
	})

	t.Run("ecs", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, err := New(&LogConfiguration{Format: FormatECS, Writer: buf})
		require.NoError(t, err)
		log.Info("ecs msg", Height(5), PeerID("peer-A"))

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		require.Equal(t, "ecs msg", rec["message"])
		require.Equal(t, "8.6", rec["ecs.version"])
		require.Equal(t, map[string]any{"height": 5.0}, rec["ledger"])
		require.Equal(t, map[string]any{"id": "peer-A"}, rec["peer"])
	})

	t.Run("console", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, err := New(&LogConfiguration{Format: FormatConsole, Writer: buf, Level: "debug"})
		require.NoError(t, err)
		log.Debug("console msg", PeerID("peer-A"))

		out := buf.String()
		require.Contains(t, out, "console msg")
		require.Contains(t, out, "DBG")
		require.Contains(t, out, "peer-A")
	})

	t.Run("level filters records", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, err := New(&LogConfiguration{Format: FormatText, Writer: buf, Level: "warn"})
		require.NoError(t, err)
		log.Info("not logged")
		require.Zero(t, buf.Len())
		log.Warn("logged")
		require.Contains(t, buf.String(), "logged")
	})

	t.Run("output file", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "logs", "validator.log")
		log, err := New(&LogConfiguration{OutputPath: fn})
		require.NoError(t, err)
		log.Info("into file")

		b, err := os.ReadFile(fn)
		require.NoError(t, err)
		require.Contains(t, string(b), "into file")
	})
}

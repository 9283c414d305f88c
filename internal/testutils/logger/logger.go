package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/alphabill-org/poolvalidator/logger"
)

/*
New returns logger for test t on debug level.
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, slog.LevelDebug)
}

/*
NewLvl returns logger for test t on given level.

Log level can be overridden with env var PV_TEST_LOG_LEVEL.
*/
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	if lvl := os.Getenv("PV_TEST_LOG_LEVEL"); lvl != "" {
		if err := level.UnmarshalText([]byte(lvl)); err != nil {
			t.Logf("invalid PV_TEST_LOG_LEVEL %q: %v", lvl, err)
		}
	}
	log, err := logger.New(&logger.LogConfiguration{
		Level:      level.String(),
		Format:     logger.FormatText,
		TimeFormat: "15:04:05.0000",
		Writer:     testLogWriter{t: t},
	})
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}
	return log
}

/*
LoggerBuilder returns logger factory which creates logger for test t.
Configuration passed to the factory is ignored.
*/
func LoggerBuilder(t testing.TB) func(*logger.LogConfiguration) (*slog.Logger, error) {
	return func(*logger.LogConfiguration) (*slog.Logger, error) {
		return New(t), nil
	}
}

/*
NOP returns logger which doesn't log anything.
*/
func NOP() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

// testLogWriter routes log output to the test log, so it is shown only for failed tests.
type testLogWriter struct {
	t testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

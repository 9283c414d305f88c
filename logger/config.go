package logger

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	// levelNone is used to disable logging
	levelNone slog.Level = math.MaxInt32

	// values of the Format field
	FormatText    = "text"
	FormatJSON    = "json"
	FormatECS     = "ecs"
	FormatConsole = "console"
)

/*
LogConfiguration describes logger settings. It is loaded from the logger
config file (YAML) and the values can be overridden by command line flags.
*/
type LogConfiguration struct {
	// one of DEBUG, INFO, WARN, ERROR, TRACE, NONE; relative levels like "info+1"
	// are accepted too
	Level string `yaml:"defaultLevel"`
	// one of text, json, ecs, console
	Format string `yaml:"format"`
	// file name or one of the special values: stdout, stderr, discard
	OutputPath string `yaml:"outputPath"`
	// Go time format string for the time field, "none" to not log time
	TimeFormat string `yaml:"timeFormat"`
	// how to log peer IDs (libp2p node IDs and pool member IDs): none,
	// short or long (default)
	PeerIDFormat string `yaml:"peerIdFormat"`
	// include source code position of the log statement
	ShowSource bool `yaml:"showSource"`
	// when set OutputPath is ignored and logs are written into this writer
	Writer io.Writer `yaml:"-"`
}

/*
New creates logger based on the configuration. When "cfg" is nil default
configuration is used (text format, INFO level, stderr).
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	h, err := cfg.handler()
	if err != nil {
		return nil, fmt.Errorf("creating log handler: %w", err)
	}
	return slog.New(h), nil
}

func (cfg *LogConfiguration) handler() (slog.Handler, error) {
	out, err := cfg.writer()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		AddSource: cfg.ShowSource,
		Level:     cfg.logLevel(),
	}

	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		opts.ReplaceAttr = chainFormatters(formatTime(cfg.TimeFormat), formatPeerIDs(cfg.PeerIDFormat), formatLevel)
		return slog.NewTextHandler(out, opts), nil
	case FormatJSON:
		opts.ReplaceAttr = chainFormatters(formatTime(cfg.TimeFormat), formatPeerIDs(cfg.PeerIDFormat), formatLevel)
		return slog.NewJSONHandler(out, opts), nil
	case FormatECS:
		opts.ReplaceAttr = chainFormatters(formatPeerIDs(cfg.PeerIDFormat), formatECS)
		return slog.NewJSONHandler(out, opts).WithAttrs([]slog.Attr{slog.String("ecs.version", "8.6")}), nil
	case FormatConsole:
		// records are encoded as JSON and pretty printed by zerolog's console writer
		cw := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = out
			w.TimeFormat = cfg.consoleTimeFormat()
			w.NoColor = out != os.Stdout && out != os.Stderr
		})
		opts.ReplaceAttr = chainFormatters(formatPeerIDs(cfg.PeerIDFormat), formatDataAsJSON, formatConsole)
		return slog.NewJSONHandler(cw, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (cfg *LogConfiguration) writer() (io.Writer, error) {
	if cfg.Writer != nil {
		return cfg.Writer, nil
	}
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "discard", os.DevNull:
		return io.Discard, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0700); err != nil {
			return nil, fmt.Errorf("creating directory for log file: %w", err)
		}
		f, err := os.OpenFile(filepath.Clean(cfg.OutputPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		return f, nil
	}
}

func (cfg *LogConfiguration) logLevel() slog.Level {
	switch strings.ToLower(cfg.OutputPath) {
	case "discard", os.DevNull:
		return levelNone
	}

	switch strings.ToUpper(cfg.Level) {
	case "":
		return slog.LevelInfo
	case "NONE":
		return levelNone
	case "TRACE":
		return LevelTrace
	case "WARNING":
		return slog.LevelWarn
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (cfg *LogConfiguration) consoleTimeFormat() string {
	switch cfg.TimeFormat {
	case "":
		return "15:04:05.000000"
	case "none":
		return " "
	default:
		return cfg.TimeFormat
	}
}

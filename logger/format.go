package logger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"

	"github.com/alphabill-org/poolvalidator/types"
)

// attrFormatter has the signature of slog.HandlerOptions.ReplaceAttr.
type attrFormatter func(groups []string, a slog.Attr) slog.Attr

/*
chainFormatters returns formatter which runs the attribute through all the
non-nil formatters in the order given. Returns nil when there is nothing to
run so the handler can skip the ReplaceAttr step.
*/
func chainFormatters(formatters ...attrFormatter) attrFormatter {
	var chain []attrFormatter
	for _, f := range formatters {
		if f != nil {
			chain = append(chain, f)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		for _, f := range chain {
			a = f(groups, a)
		}
		return a
	}
}

// formatTime formats the record time using Go time layout, "none" drops
// the time field and empty layout leaves it to the handler.
func formatTime(layout string) attrFormatter {
	if layout == "" {
		return nil
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.TimeKey || len(groups) != 0 || a.Value.Kind() != slog.KindTime {
			return a
		}
		if layout == "none" {
			return slog.Attr{}
		}
		if t := a.Value.Time(); !t.IsZero() {
			a.Value = slog.StringValue(t.Format(layout))
		}
		return a
	}
}

/*
formatPeerIDs applies the peer ID format to both libp2p node IDs and pool
member IDs: "none" drops them, "short" keeps just enough of the ID to tell
peers apart in the log. Anything else keeps the full ID.
*/
func formatPeerIDs(format string) attrFormatter {
	if format != "none" && format != "short" {
		return nil
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		id, ok := peerIDValue(a.Value)
		switch {
		case !ok:
			return a
		case format == "none":
			return slog.Attr{}
		default:
			return slog.String(a.Key, shortID(id))
		}
	}
}

func peerIDValue(v slog.Value) (string, bool) {
	if v.Kind() != slog.KindAny {
		return "", false
	}
	switch id := v.Any().(type) {
	case peer.ID:
		return id.String(), true
	case types.PeerID:
		return string(id), true
	}
	return "", false
}

// shortID keeps two leading and six trailing characters of long IDs.
func shortID(id string) string {
	if len(id) <= 10 {
		return id
	}
	return id[:2] + "*" + id[len(id)-6:]
}

func formatDataAsJSON(groups []string, a slog.Attr) slog.Attr {
	if a.Key != DataKey || a.Value.Kind() != slog.KindAny {
		return a
	}
	if b, err := json.Marshal(a.Value.Any()); err == nil {
		a.Value = slog.StringValue(string(b))
	}
	return a
}

// ecsFields maps top level attribute keys to the ECS field they are logged as.
// Top level names must be distinct, the JSON handler doesn't merge groups.
var ecsFields = map[string]string{
	slog.MessageKey: "message",
	NodeIDKey:       "service.node.name",
	ErrorKey:        "error.message",
	ReqIDKey:        "http.request.id",
	HeightKey:       "ledger.height",
	PeerIDKey:       "peer.id",
	traceID:         "trace.id",
	spanID:          "span.id",
}

/*
formatECS moves the well known attributes to their ECS fields so that the
JSON handler output can be shipped to Elastic without an ingest pipeline.
*/
func formatECS(groups []string, a slog.Attr) slog.Attr {
	if len(groups) != 0 {
		return a
	}
	switch a.Key {
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		return nestAttr("log.origin", slog.Attr{Value: slog.GroupValue(
			slog.String("function", shortFuncName(src.Function)),
			slog.Group("file", slog.String("name", src.File), slog.Int("line", src.Line)),
		)})
	case DataKey:
		// typed sub-key so that values of different types do not clash in the index
		return nestAttr(DataKey+"."+dataName(a.Value), a)
	}
	if path, ok := ecsFields[a.Key]; ok {
		return nestAttr(path, a)
	}
	return a
}

// nestAttr renames "a" to the last element of the dotted path and wraps it
// into groups named by the preceding elements.
func nestAttr(path string, a slog.Attr) slog.Attr {
	keys := strings.Split(path, ".")
	a.Key = keys[len(keys)-1]
	for i := len(keys) - 2; i >= 0; i-- {
		a = slog.Attr{Key: keys[i], Value: slog.GroupValue(a)}
	}
	return a
}

// dataName is the type name of the value with package separator replaced,
// ie "*logger.LogConfiguration" becomes "logger_LogConfiguration".
func dataName(v slog.Value) string {
	if k := v.Kind(); k != slog.KindAny && k != slog.KindLogValuer {
		return k.String()
	}
	if v.Any() == nil {
		return "nil"
	}
	name := strings.TrimLeft(reflect.TypeOf(v.Any()).String(), "*")
	return strings.ReplaceAll(name, ".", "_")
}

// shortFuncName drops the package path from the function name, ie
// "github.com/alphabill-org/poolvalidator/validator.(*Loop).tick" becomes "(*Loop).tick".
func shortFuncName(fn string) string {
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.IndexByte(fn, '.'); i >= 0 {
		fn = fn[i+1:]
	}
	return fn
}

// formatLevel gives the custom trace level a readable name.
func formatLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

/*
formatConsole renames the standard keys of the slog JSON record to the
names zerolog console writer expects.
*/
func formatConsole(groups []string, a slog.Attr) slog.Attr {
	if len(groups) != 0 {
		return a
	}
	switch a.Key {
	case slog.MessageKey:
		return slog.String(zerolog.MessageFieldName, a.Value.String())
	case slog.LevelKey:
		lvl, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		return slog.String(zerolog.LevelFieldName, zeroLevel(lvl).String())
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok {
			return slog.String(zerolog.CallerFieldName, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	case ErrorKey:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(zerolog.ErrorFieldName, err.Error())
		}
	}
	return a
}

func zeroLevel(lvl slog.Level) zerolog.Level {
	switch {
	case lvl < slog.LevelDebug:
		return zerolog.TraceLevel
	case lvl < slog.LevelInfo:
		return zerolog.DebugLevel
	case lvl < slog.LevelWarn:
		return zerolog.InfoLevel
	case lvl < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

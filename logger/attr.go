package logger

import (
	"log/slog"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/alphabill-org/poolvalidator/types"
)

/*
Log attribute key values. Generally shouldn't be used directly, use
appropriate "attribute constructor function" instead.

Only define names here if they are common for multiple modules, module
specific names should be defined in the module.
*/
const (
	NodeIDKey = "node_id"
	ModuleKey = "module"
	ErrorKey  = "err"
	HeightKey = "height"
	PeerIDKey = "peer_id"
	DataKey   = "data"
	ReqIDKey  = "req_id"

	traceID = "TraceId" // OTEL data model
	spanID  = "SpanId"  // OTEL data model
)

/*
NodeID adds "validator node ID" field.

This function should be used with logger.With() method to create sub-logger
for the node (rather than adding NodeID call to individual logging calls).
*/
func NodeID(id peer.ID) slog.Attr {
	return slog.Any(NodeIDKey, id)
}

/*
Error adds error to the log

	if err:= f(); err != nil {
		log.Error("calling f", logger.Error(err))
	}
*/
func Error(err error) slog.Attr {
	return slog.Any(ErrorKey, err)
}

/*
Data adds additional data field to the message.

slog.GroupValue shouldn't be used as the data - in the ECS formatter all
groups will end up under the same key possibly causing problems with index!

Use of anonymous types is discouraged too.
*/
func Data(d any) slog.Attr {
	return slog.Any(DataKey, d)
}

// Height is the ledger block height the logging call is related to.
func Height(h uint64) slog.Attr {
	return slog.Uint64(HeightKey, h)
}

// PeerID is the pool member the logging call is related to. The value
// is subject to the PeerIDFormat setting of the logger.
func PeerID(id types.PeerID) slog.Attr {
	return slog.Any(PeerIDKey, id)
}

// RequestID of the inbound request being forwarded.
func RequestID(id string) slog.Attr {
	return slog.String(ReqIDKey, id)
}

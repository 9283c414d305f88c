package observability

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/alphabill-org/poolvalidator/types"
)

const PeerIDKey attribute.Key = "peer.id"
const HeightKey attribute.Key = "block.height"
const NodeIDKey attribute.Key = "service.node.name" // ECS convention

func Height(h uint64) attribute.KeyValue {
	return attribute.Int64(string(HeightKey), int64(h)) /* #nosec G115 block height doesn't exceed int64 max value */
}

func PeerID(id types.PeerID) attribute.KeyValue {
	return PeerIDKey.String(string(id))
}

/*
ErrStatus returns attribute named "status" with value "ok" if the param
err is nil and "err" when it is not.
*/
func ErrStatus(err error) attribute.KeyValue {
	status := "ok"
	if err != nil {
		status = "err"
	}
	return attribute.String("status", status)
}

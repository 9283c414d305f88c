/*
Package transport contains the wire format shared by the forward transports.
*/
package transport

import "github.com/alphabill-org/poolvalidator/types"

// CodeFailure is the outcome code returned by the forward handlers when the request failed.
const CodeFailure types.OutcomeCode = 2

// ForwardResponse is the response of the pool member to forwarded request.
type ForwardResponse struct {
	_       struct{} `cbor:",toarray"`
	Code    types.OutcomeCode
	Payload []byte
}

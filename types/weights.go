package types

import "fmt"

// OutcomeSuccess is the only outcome code which is considered successful,
// all other codes are failures.
const OutcomeSuccess OutcomeCode = 1

type (
	// OutcomeCode is the status of a forwarded request as reported by the transport.
	OutcomeCode int32

	// PeerWeight is a weight assigned to a peer in a weight commit.
	PeerWeight struct {
		_      struct{} `cbor:",toarray"`
		ID     PeerID   `json:"id"`
		UID    uint16   `json:"uid"`
		Weight float64  `json:"weight"`
	}

	WeightVector []PeerWeight

	// CommitResult describes the outcome of a weight submission to the ledger.
	CommitResult struct {
		_            struct{}     `cbor:",toarray"`
		Height       uint64       `json:"height"`        // block height at which the submission was finalized
		SubmissionID []byte       `json:"submission_id"` // ledger assigned id of the submission
		Finalized    bool         `json:"finalized"`
		Weights      WeightVector `json:"weights"`
	}
)

func (c OutcomeCode) Success() bool {
	return c == OutcomeSuccess
}

func (c OutcomeCode) String() string {
	if c == OutcomeSuccess {
		return "success"
	}
	return fmt.Sprintf("failure(%d)", int32(c))
}

// UIDs returns uid of every weight in vector order.
func (w WeightVector) UIDs() []uint16 {
	uids := make([]uint16, len(w))
	for i := range w {
		uids[i] = w[i].UID
	}
	return uids
}

// Values returns weights in vector order.
func (w WeightVector) Values() []float64 {
	v := make([]float64, len(w))
	for i := range w {
		v[i] = w[i].Weight
	}
	return v
}

package ledger

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alphabill-org/poolvalidator/types"
)

const (
	BlockHeightPath = "api/v1/block-height"
	WeightsPath     = "api/v1/weights"
)

// submission status reported by the ledger
const (
	StatusPending   = "pending"
	StatusFinalized = "finalized"
	StatusFailed    = "failed"
)

type (
	BlockHeightResponse struct {
		Height hexutil.Uint64 `json:"height"`
	}

	WeightsRequest struct {
		_       struct{} `cbor:",toarray"`
		Weights types.WeightVector
	}

	SubmitResponse struct {
		_            struct{} `cbor:",toarray"`
		SubmissionID []byte
	}

	SubmissionStatus struct {
		_      struct{} `cbor:",toarray"`
		Status string
		Height uint64 // block in which the weights were finalized
		Reason string // set when the status is "failed"
	}
)

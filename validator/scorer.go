package validator

import (
	"fmt"
	"math"

	"github.com/alphabill-org/poolvalidator/types"
)

const DefaultDelta = 0.9

/*
ResponseScorer updates peer scores with exponential moving average

	new = delta*old + (1-delta)*observation

where observation is 1 for success and 0 for failure.
*/
type ResponseScorer struct {
	table *ScoreTable
	delta float64
}

func NewResponseScorer(table *ScoreTable, delta float64) (*ResponseScorer, error) {
	if table == nil {
		return nil, fmt.Errorf("score table is nil")
	}
	if !(delta > 0 && delta < 1) {
		return nil, fmt.Errorf("invalid smoothing constant %v, must be in range (0,1)", delta)
	}
	return &ResponseScorer{table: table, delta: delta}, nil
}

// Update applies single forward outcome to the score of the peer and returns the new score.
func (s *ResponseScorer) Update(id types.PeerID, success bool) float64 {
	var obs float64
	if success {
		obs = 1
	}
	return s.table.apply(id, func(old float64) float64 {
		return math.Max(0, math.Min(1, s.delta*old+(1-s.delta)*obs))
	})
}

func (s *ResponseScorer) Delta() float64 { return s.delta }

// HalfLife returns number of scoring events after which the weight of an observation is halved.
func (s *ResponseScorer) HalfLife() float64 {
	return math.Log(0.5) / math.Log(s.delta)
}

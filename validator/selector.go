package validator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/alphabill-org/poolvalidator/types"
)

type PeerSelector interface {
	// Select returns peer to forward the next request to.
	Select(snapshot *types.Snapshot) (*types.Peer, error)
}

// RandomSelector selects peer uniformly at random, stake and score are ignored.
type RandomSelector struct {
	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rnd *rand.Rand
}

// NewRandomSelector creates selector using rnd as source, when nil time seeded source is used.
func NewRandomSelector(rnd *rand.Rand) *RandomSelector {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 peer selection is not security sensitive
	}
	return &RandomSelector{rnd: rnd}
}

func (s *RandomSelector) Select(snapshot *types.Snapshot) (*types.Peer, error) {
	n := snapshot.Len()
	if n == 0 {
		return nil, ErrEmptyRegistry
	}
	s.mu.Lock()
	idx := s.rnd.Intn(n)
	s.mu.Unlock()
	return snapshot.Peers[idx], nil
}

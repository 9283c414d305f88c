package validator

import (
	"context"
	"fmt"
	"sync"

	"github.com/alphabill-org/poolvalidator/types"
)

type mockLedger struct {
	mu        sync.Mutex
	height    func(ctx context.Context) (uint64, error)
	submit    func(ctx context.Context, weights types.WeightVector, wait bool) (*types.CommitResult, error)
	submitted []types.WeightVector
	waits     []bool
}

// heightSequence returns ledger which reports given heights in order, after the
// last one onDone is called and the last height is returned.
func heightSequence(onDone func(), heights ...uint64) *mockLedger {
	var mu sync.Mutex
	idx := 0
	return &mockLedger{
		height: func(ctx context.Context) (uint64, error) {
			mu.Lock()
			defer mu.Unlock()
			if idx >= len(heights) {
				if onDone != nil {
					onDone()
				}
				return heights[len(heights)-1], nil
			}
			idx++
			return heights[idx-1], nil
		},
	}
}

func (l *mockLedger) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	if l.height == nil {
		return 0, fmt.Errorf("height not mocked")
	}
	return l.height(ctx)
}

func (l *mockLedger) SubmitWeights(ctx context.Context, weights types.WeightVector, wait bool) (*types.CommitResult, error) {
	l.mu.Lock()
	l.submitted = append(l.submitted, weights)
	l.waits = append(l.waits, wait)
	l.mu.Unlock()
	if l.submit != nil {
		return l.submit(ctx, weights, wait)
	}
	return &types.CommitResult{SubmissionID: []byte{1}, Finalized: true, Weights: weights}, nil
}

func (l *mockLedger) submitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.submitted)
}

type mockRegistry struct {
	mu    sync.Mutex
	calls int
	sync  func(ctx context.Context) (*types.Snapshot, error)
}

func staticRegistry(s *types.Snapshot) *mockRegistry {
	return &mockRegistry{sync: func(ctx context.Context) (*types.Snapshot, error) { return s, nil }}
}

func (r *mockRegistry) SyncSnapshot(ctx context.Context) (*types.Snapshot, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.sync(ctx)
}

func (r *mockRegistry) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type mockTransport struct {
	forward func(ctx context.Context, peer *types.Peer, payload []byte) ([]byte, types.OutcomeCode, error)
}

func (t *mockTransport) Forward(ctx context.Context, peer *types.Peer, payload []byte) ([]byte, types.OutcomeCode, error) {
	return t.forward(ctx, peer, payload)
}

// sequenceSelector selects peers by id in the given order.
type sequenceSelector struct {
	mu  sync.Mutex
	ids []types.PeerID
}

func (s *sequenceSelector) Select(snapshot *types.Snapshot) (*types.Peer, error) {
	if snapshot.Len() == 0 {
		return nil, ErrEmptyRegistry
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return nil, fmt.Errorf("selection sequence exhausted")
	}
	p := snapshot.Get(s.ids[0])
	s.ids = s.ids[1:]
	if p == nil {
		return nil, fmt.Errorf("peer not in snapshot")
	}
	return p, nil
}

func newPeers(ids ...types.PeerID) []*types.Peer {
	peers := make([]*types.Peer, len(ids))
	for i, id := range ids {
		peers[i] = &types.Peer{ID: id, UID: uint16(i)}
	}
	return peers
}

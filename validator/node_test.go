package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testobserve "github.com/alphabill-org/poolvalidator/internal/testutils/observability"
	"github.com/alphabill-org/poolvalidator/keyvaluedb/memorydb"
	"github.com/alphabill-org/poolvalidator/types"
)

// outcomeTransport responds with the payload and outcome code configured per peer.
func outcomeTransport(outcomes map[types.PeerID]types.OutcomeCode) *mockTransport {
	return &mockTransport{forward: func(ctx context.Context, peer *types.Peer, payload []byte) ([]byte, types.OutcomeCode, error) {
		return append([]byte(peer.ID+":"), payload...), outcomes[peer.ID], nil
	}}
}

func TestNewNode(t *testing.T) {
	obs := testobserve.NOPObservability()
	registry := staticRegistry(nil)
	transport := outcomeTransport(nil)

	_, err := NewNode(&mockLedger{}, nil, transport, obs)
	require.EqualError(t, err, "registry client is nil")
	_, err = NewNode(&mockLedger{}, registry, nil, obs)
	require.EqualError(t, err, "transport is nil")
	_, err = NewNode(nil, registry, transport, obs)
	require.EqualError(t, err, "creating weight committer: ledger client is nil")
	_, err = NewNode(&mockLedger{}, registry, transport, obs, WithDelta(1))
	require.EqualError(t, err, "invalid node configuration: invalid smoothing constant 1, must be in range (0,1)")
	_, err = NewNode(&mockLedger{}, registry, transport, obs, WithIdleInterval(-time.Second))
	require.ErrorContains(t, err, "idle interval must not be negative")

	n, err := NewNode(&mockLedger{}, registry, transport, obs)
	require.NoError(t, err)
	require.Equal(t, DefaultDelta, n.scorer.Delta())
	require.Equal(t, DefaultCadence, n.loop.cadence)
	require.Equal(t, DefaultIdleInterval, n.loop.idleInterval)
	require.IsType(t, &RandomSelector{}, n.conf.selector)
}

func TestNode_HandleEmptyRegistry(t *testing.T) {
	n, err := NewNode(&mockLedger{}, staticRegistry(nil), outcomeTransport(nil), testobserve.Default(t))
	require.NoError(t, err)

	rsp, err := n.Handle(context.Background(), []byte("work"))
	require.ErrorIs(t, err, ErrEmptyRegistry)
	require.Nil(t, rsp)
	require.Zero(t, n.table.Len())
}

func TestNode_ForwardAndScore(t *testing.T) {
	registry := staticRegistry(types.NewSnapshot(1, newPeers("A", "B")...))
	transport := outcomeTransport(map[types.PeerID]types.OutcomeCode{"A": types.OutcomeSuccess, "B": 2})
	selector := &sequenceSelector{ids: []types.PeerID{"A", "A", "B"}}
	n, err := NewNode(&mockLedger{}, registry, transport, testobserve.Default(t), WithDelta(0.9), WithSelector(selector))
	require.NoError(t, err)
	_, err = n.snapshots.Resync(context.Background())
	require.NoError(t, err)

	rsp, err := n.Handle(context.Background(), []byte("one"))
	require.NoError(t, err)
	require.Equal(t, []byte("A:one"), rsp)
	rsp, err = n.Handle(context.Background(), []byte("two"))
	require.NoError(t, err)
	require.Equal(t, []byte("A:two"), rsp)

	rsp, err = n.Handle(context.Background(), []byte("three"))
	require.ErrorIs(t, err, ErrForwardFailure)
	require.ErrorContains(t, err, "peer responded with failure(2)")
	require.Equal(t, []byte("B:three"), rsp)

	scores := n.Scores()
	require.Len(t, scores, 2)
	require.InDelta(t, 0.19, scores["A"], 1e-12)
	require.Zero(t, scores["B"])
}

func TestNode_TransportErrorIsFailure(t *testing.T) {
	expErr := errors.New("connection reset")
	transport := &mockTransport{forward: func(ctx context.Context, peer *types.Peer, payload []byte) ([]byte, types.OutcomeCode, error) {
		return nil, types.OutcomeSuccess, expErr
	}}
	n, err := NewNode(&mockLedger{}, staticRegistry(types.NewSnapshot(1, newPeers("A")...)), transport, testobserve.Default(t))
	require.NoError(t, err)
	_, err = n.snapshots.Resync(context.Background())
	require.NoError(t, err)
	setScore(n.table, "A", 1)

	rsp, err := n.Handle(context.Background(), []byte("work"))
	require.ErrorIs(t, err, ErrForwardFailure)
	require.ErrorIs(t, err, expErr)
	require.Nil(t, rsp)
	require.InDelta(t, 0.9, n.table.Get("A"), 1e-12)
}

func TestNode_Run(t *testing.T) {
	db := memorydb.New()
	require.NoError(t, db.Write([]byte("A"), 0.5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledger := heightSequence(cancel, 9, 10, 11)
	registry := staticRegistry(types.NewSnapshot(3, newPeers("A", "B")...))
	transport := outcomeTransport(map[types.PeerID]types.OutcomeCode{"A": types.OutcomeSuccess, "B": types.OutcomeSuccess})
	n, err := NewNode(ledger, registry, transport, testobserve.Default(t),
		WithScoreStore(db), WithIdleInterval(time.Millisecond), WithSelector(&sequenceSelector{ids: []types.PeerID{"B"}}))
	require.NoError(t, err)
	// persisted score was loaded
	require.Equal(t, 0.5, n.table.Get("A"))

	require.ErrorIs(t, n.Run(ctx), context.Canceled)
	require.Equal(t, 1, ledger.submitCount())
	require.Equal(t, types.WeightVector{{ID: "A", UID: 0, Weight: 0.5}, {ID: "B", UID: 1, Weight: 0}}, ledger.submitted[0])

	info := n.Info()
	require.EqualValues(t, 11, info.Height)
	require.EqualValues(t, 3, info.SnapshotHeight)
	require.Equal(t, 2, info.Peers)
	require.Equal(t, 1, info.ScoredPeers)
	require.NotNil(t, info.LastCommit)

	// scoring continues after the loop has stopped
	_, err = n.Handle(context.Background(), []byte("work"))
	require.NoError(t, err)
	require.NoError(t, n.table.Store(db))
	var v float64
	found, err := db.Read([]byte("B"), &v)
	require.NoError(t, err)
	require.True(t, found)
	require.InDelta(t, 0.1, v, 1e-12)
}

func TestNode_RunInitialSyncFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry := &mockRegistry{sync: func(ctx context.Context) (*types.Snapshot, error) {
		return nil, errors.New("registry down")
	}}
	ledger := heightSequence(cancel, 10)
	n, err := NewNode(ledger, registry, outcomeTransport(nil), testobserve.Default(t), WithIdleInterval(time.Millisecond))
	require.NoError(t, err)

	require.ErrorIs(t, n.Run(ctx), context.Canceled)
	// commit at 10 failed because of empty registry, resync was attempted
	require.Zero(t, ledger.submitCount())
	require.Equal(t, 2, registry.callCount())

	_, err = n.Handle(context.Background(), []byte("work"))
	require.ErrorIs(t, err, ErrEmptyRegistry)
}

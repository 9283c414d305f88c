package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabill-org/poolvalidator/logger"
	"github.com/alphabill-org/poolvalidator/observability"
	"github.com/alphabill-org/poolvalidator/types"
)

type (
	/*
		Node is the validator of the pool. It forwards inbound requests to the
		pool members, scores them and commits the scores to the ledger.
	*/
	Node struct {
		conf      *configuration
		table     *ScoreTable
		scorer    *ResponseScorer
		snapshots *SnapshotHolder
		transport Transport
		committer *WeightCommitter
		loop      *Loop

		log    *slog.Logger
		tracer trace.Tracer

		fwdCnt metric.Int64Counter
		fwdDur metric.Float64Histogram
	}

	// Info is a summary of the validator state.
	Info struct {
		Height         uint64              `json:"height"`          // last observed ledger block height
		SnapshotHeight uint64              `json:"snapshot_height"` // height of the registry snapshot
		Peers          int                 `json:"peers"`
		ScoredPeers    int                 `json:"scored_peers"`
		Delta          float64             `json:"delta"`
		HalfLife       float64             `json:"half_life"`
		LastCommit     *types.CommitResult `json:"last_commit,omitempty"`
	}
)

/*
NewNode creates validator node. Ledger, registry and transport are required,
optional configuration is supplied with Option functions.

When score store is configured scores persisted by previous run are loaded.
*/
func NewNode(ledger LedgerClient, registry RegistryClient, transport Transport, observe Observability, opts ...Option) (*Node, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry client is nil")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is nil")
	}
	conf, err := loadConfiguration(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid node configuration: %w", err)
	}

	table := NewScoreTable()
	if conf.scoreStore != nil {
		if err := table.Load(conf.scoreStore); err != nil {
			return nil, fmt.Errorf("loading score table: %w", err)
		}
	}
	scorer, err := NewResponseScorer(table, conf.delta)
	if err != nil {
		return nil, err
	}
	committer, err := NewWeightCommitter(table, ledger, observe, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating weight committer: %w", err)
	}
	snapshots := NewSnapshotHolder(registry)
	loop, err := NewLoop(ledger, committer, snapshots, observe, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating validation loop: %w", err)
	}

	n := &Node{
		conf:      conf,
		table:     table,
		scorer:    scorer,
		snapshots: snapshots,
		transport: transport,
		committer: committer,
		loop:      loop,
		log:       observe.Logger(),
		tracer:    observe.Tracer("validator.node"),
	}
	if err := n.initMetrics(observe); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	return n, nil
}

func (n *Node) initMetrics(observe Observability) (err error) {
	m := observe.Meter("validator.node")

	if n.fwdCnt, err = m.Int64Counter("forward.count", metric.WithDescription("Number of forwarded requests"), metric.WithUnit("{request}")); err != nil {
		return fmt.Errorf("creating forward counter: %w", err)
	}
	if n.fwdDur, err = m.Float64Histogram("forward.time",
		metric.WithDescription("How long it took for the peer to respond to forwarded request"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10)); err != nil {
		return fmt.Errorf("creating forward duration histogram: %w", err)
	}
	_, err = m.Int64ObservableGauge("peers", metric.WithDescription("Number of peers in the registry snapshot"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			io.Observe(int64(n.snapshots.Load().Len()))
			return nil
		}))
	return err
}

/*
Run syncs the registry and runs the validation loop until ctx is cancelled.
Failing initial sync is not fatal, forward requests fail with ErrEmptyRegistry
until a resync succeeds.
*/
func (n *Node) Run(ctx context.Context) error {
	n.log.InfoContext(ctx, fmt.Sprintf("starting validator, delta %v (half-life %.2f scoring events), commit every %d blocks",
		n.scorer.Delta(), n.scorer.HalfLife(), n.conf.cadence))

	if s, err := n.snapshots.Resync(ctx); err != nil {
		n.log.WarnContext(ctx, "initial registry sync", logger.Error(err))
	} else {
		n.log.InfoContext(ctx, fmt.Sprintf("registry synced, %d peers", s.Len()))
	}

	err := n.loop.Run(ctx)
	if n.conf.scoreStore != nil {
		if sErr := n.table.Store(n.conf.scoreStore); sErr != nil {
			err = errors.Join(err, fmt.Errorf("persisting score table: %w", sErr))
		}
	}
	return err
}

/*
Handle forwards payload to a random peer of the current registry snapshot
and scores the peer by the outcome.

When the peer fails the returned error wraps ErrForwardFailure, the response
of the peer (if any) is returned too.
*/
func (n *Node) Handle(ctx context.Context, payload []byte) (_ []byte, rErr error) {
	reqID := uuid.NewString()
	ctx, span := n.tracer.Start(ctx, "node.Handle", trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(attribute.String("req_id", reqID)))
	var peerAttr attribute.KeyValue
	start := time.Now()
	defer func() {
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		n.fwdCnt.Add(ctx, 1, metric.WithAttributes(observability.ErrStatus(rErr)))
		if peerAttr.Valid() {
			n.fwdDur.Record(ctx, time.Since(start).Seconds())
		}
		span.End()
	}()

	peer, err := n.conf.selector.Select(n.snapshots.Load())
	if err != nil {
		return nil, fmt.Errorf("selecting peer: %w", err)
	}
	peerAttr = observability.PeerID(peer.ID)
	span.SetAttributes(peerAttr)

	start = time.Now()
	rsp, code, err := n.transport.Forward(ctx, peer, payload)
	success := err == nil && code.Success()
	score := n.scorer.Update(peer.ID, success)

	if !success {
		if err == nil {
			err = fmt.Errorf("peer responded with %s", code)
		}
		n.log.DebugContext(ctx, fmt.Sprintf("forward failed, score %.4f", score), logger.PeerID(peer.ID), logger.RequestID(reqID), logger.Error(err))
		return rsp, fmt.Errorf("%w: peer %s: %w", ErrForwardFailure, peer, err)
	}
	n.log.Log(ctx, logger.LevelTrace, fmt.Sprintf("forward succeeded, score %.4f", score), logger.PeerID(peer.ID), logger.RequestID(reqID))
	return rsp, nil
}

func (n *Node) Scores() map[types.PeerID]float64 {
	return n.table.Copy()
}

func (n *Node) Info() Info {
	s := n.snapshots.Load()
	var snapshotHeight uint64
	if s != nil {
		snapshotHeight = s.Height
	}
	return Info{
		Height:         n.loop.Height(),
		SnapshotHeight: snapshotHeight,
		Peers:          s.Len(),
		ScoredPeers:    n.table.Len(),
		Delta:          n.scorer.Delta(),
		HalfLife:       n.scorer.HalfLife(),
		LastCommit:     n.loop.LastCommit(),
	}
}

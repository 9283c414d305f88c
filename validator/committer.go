package validator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabill-org/poolvalidator/observability"
	"github.com/alphabill-org/poolvalidator/types"
)

/*
WeightCommitter submits the score table to the ledger as weight vector.
*/
type WeightCommitter struct {
	table   *ScoreTable
	ledger  LedgerClient
	timeout time.Duration

	log       *slog.Logger
	tracer    trace.Tracer
	commitCnt metric.Int64Counter
	commitDur metric.Float64Histogram
}

func NewWeightCommitter(table *ScoreTable, ledger LedgerClient, observe Observability, opts ...Option) (*WeightCommitter, error) {
	if table == nil {
		return nil, fmt.Errorf("score table is nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger client is nil")
	}
	conf, err := loadConfiguration(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	c := &WeightCommitter{
		table:   table,
		ledger:  ledger,
		timeout: conf.commitTimeout,
		log:     observe.Logger(),
		tracer:  observe.Tracer("validator.committer"),
	}

	m := observe.Meter("validator.committer")
	if c.commitCnt, err = m.Int64Counter("commit.count", metric.WithDescription("Number of weight commit attempts")); err != nil {
		return nil, fmt.Errorf("creating commit counter: %w", err)
	}
	if c.commitDur, err = m.Float64Histogram("commit.time",
		metric.WithDescription("How long it took to submit weights and wait for finalization"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 4, 8, 12, 24, 48, 96)); err != nil {
		return nil, fmt.Errorf("creating commit duration histogram: %w", err)
	}
	return c, nil
}

/*
Commit submits weights of the peers in the snapshot and waits for finalization.
Scores are copied before the ledger call so scoring is not blocked while the
submission is pending. Peers without score are committed with weight 0.
*/
func (c *WeightCommitter) Commit(ctx context.Context, snapshot *types.Snapshot) (_ *types.CommitResult, rErr error) {
	ctx, span := c.tracer.Start(ctx, "WeightCommitter.Commit", trace.WithAttributes(attribute.Int("peers", snapshot.Len())))
	start := time.Now()
	defer func() {
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		c.commitCnt.Add(ctx, 1, metric.WithAttributes(observability.ErrStatus(rErr)))
		c.commitDur.Record(ctx, time.Since(start).Seconds())
		span.End()
	}()

	if snapshot.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrCommitFailure, ErrEmptyRegistry)
	}
	weights := projectScores(c.table.Copy(), snapshot)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	res, err := c.ledger.SubmitWeights(ctx, weights, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommitFailure, err)
	}
	if res == nil || !res.Finalized {
		return res, fmt.Errorf("%w: submission was not finalized", ErrCommitFailure)
	}
	return res, nil
}

// projectScores returns weights in snapshot order.
func projectScores(scores map[types.PeerID]float64, snapshot *types.Snapshot) types.WeightVector {
	weights := make(types.WeightVector, 0, snapshot.Len())
	for _, p := range snapshot.Peers {
		weights = append(weights, types.PeerWeight{ID: p.ID, UID: p.UID, Weight: scores[p.ID]})
	}
	return weights
}

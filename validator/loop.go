package validator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabill-org/poolvalidator/keyvaluedb"
	"github.com/alphabill-org/poolvalidator/logger"
	"github.com/alphabill-org/poolvalidator/observability"
	"github.com/alphabill-org/poolvalidator/types"
)

/*
Loop is the block synchronized scheduler of the validator. On every tick it
reads the ledger block height and either runs commit cycle (commit weights,
resync registry) or sleeps the idle interval.
*/
type Loop struct {
	ledger     LedgerClient
	committer  *WeightCommitter
	table      *ScoreTable
	snapshots  *SnapshotHolder
	scoreStore keyvaluedb.KeyValueDB

	cadence      uint64
	idleInterval time.Duration

	// written only by the loop goroutine
	lastCommitted uint64
	hasCommitted  bool

	height     atomic.Uint64
	lastCommit atomic.Pointer[types.CommitResult]

	log       *slog.Logger
	tracer    trace.Tracer
	resyncCnt metric.Int64Counter
}

func NewLoop(ledger LedgerClient, committer *WeightCommitter, snapshots *SnapshotHolder, observe Observability, opts ...Option) (*Loop, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger client is nil")
	}
	if committer == nil {
		return nil, fmt.Errorf("weight committer is nil")
	}
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot holder is nil")
	}
	conf, err := loadConfiguration(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	l := &Loop{
		ledger:       ledger,
		committer:    committer,
		table:        committer.table,
		snapshots:    snapshots,
		scoreStore:   conf.scoreStore,
		cadence:      conf.cadence,
		idleInterval: conf.idleInterval,
		log:          observe.Logger(),
		tracer:       observe.Tracer("validator.loop"),
	}

	m := observe.Meter("validator.loop")
	if l.resyncCnt, err = m.Int64Counter("resync.count", metric.WithDescription("Number of registry resync attempts")); err != nil {
		return nil, fmt.Errorf("creating resync counter: %w", err)
	}
	if _, err = m.Int64ObservableGauge("block.height", metric.WithDescription("Last observed ledger block height"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			io.Observe(int64(l.height.Load())) /* #nosec G115 block height doesn't exceed int64 max value */
			return nil
		})); err != nil {
		return nil, fmt.Errorf("creating block height gauge: %w", err)
	}
	return l, nil
}

// isCadenceBoundary reports whether weights are to be committed at block height h.
func isCadenceBoundary(h, n uint64) bool {
	return n != 0 && h%n == 0
}

/*
Run runs the loop until ctx is cancelled. Commit and resync failures are
logged and the loop continues, the returned error is always ctx.Err().
*/
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.tick(ctx) {
			continue
		}
		timer.Reset(l.idleInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tick returns true when commit cycle was executed and false when the loop should idle.
func (l *Loop) tick(ctx context.Context) bool {
	h, err := l.ledger.CurrentBlockHeight(ctx)
	if err != nil {
		l.log.WarnContext(ctx, "reading ledger block height", logger.Error(err))
		return false
	}
	l.height.Store(h)
	if l.hasCommitted && h < l.lastCommitted {
		l.log.DebugContext(ctx, fmt.Sprintf("ledger height is behind the last committed height %d", l.lastCommitted), logger.Height(h))
		return false
	}
	// weights are committed at most once per height and heights only move forward
	if !isCadenceBoundary(h, l.cadence) || (l.hasCommitted && h == l.lastCommitted) {
		l.log.Log(ctx, logger.LevelTrace, "idle", logger.Height(h))
		return false
	}
	l.commitCycle(ctx, h)
	return true
}

func (l *Loop) commitCycle(ctx context.Context, h uint64) {
	ctx, span := l.tracer.Start(ctx, "Loop.commitCycle", trace.WithNewRoot(), trace.WithAttributes(observability.Height(h)))
	defer span.End()

	// height is handled even when the commit fails, next attempt is on the next cadence boundary
	l.lastCommitted, l.hasCommitted = h, true

	res, err := l.committer.Commit(ctx, l.snapshots.Load())
	if err != nil {
		l.log.WarnContext(ctx, "committing weights", logger.Height(h), logger.Error(err))
	} else {
		l.lastCommit.Store(res)
		l.log.InfoContext(ctx, fmt.Sprintf("committed weights of %d peers", len(res.Weights)), logger.Height(h), logger.Data(res))
	}

	if l.scoreStore != nil {
		if err := l.table.Store(l.scoreStore); err != nil {
			l.log.WarnContext(ctx, "persisting score table", logger.Error(err))
		}
	}

	s, err := l.snapshots.Resync(ctx)
	l.resyncCnt.Add(ctx, 1, metric.WithAttributes(observability.ErrStatus(err)))
	if err != nil {
		l.log.WarnContext(ctx, "registry resync, using previous snapshot", logger.Height(h), logger.Error(err))
		return
	}
	l.log.DebugContext(ctx, fmt.Sprintf("registry synced, %d peers", s.Len()), logger.Height(h))
}

// Height returns the last observed ledger block height.
func (l *Loop) Height() uint64 {
	return l.height.Load()
}

// LastCommit returns the result of the last successful commit, nil when there is none.
func (l *Loop) LastCommit() *types.CommitResult {
	return l.lastCommit.Load()
}

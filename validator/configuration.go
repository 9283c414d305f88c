package validator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabill-org/poolvalidator/keyvaluedb"
	"github.com/alphabill-org/poolvalidator/types"
)

const (
	DefaultCadence      uint64 = 10
	DefaultIdleInterval        = 12 * time.Second
)

type (
	// LedgerClient is the consensus ledger the weights are committed to.
	LedgerClient interface {
		CurrentBlockHeight(ctx context.Context) (uint64, error)
		// SubmitWeights submits weight vector, when wait is true blocks until the
		// submission is finalized or failed.
		SubmitWeights(ctx context.Context, weights types.WeightVector, wait bool) (*types.CommitResult, error)
	}

	RegistryClient interface {
		SyncSnapshot(ctx context.Context) (*types.Snapshot, error)
	}

	// Transport executes forward call to the peer and returns the peer's response and outcome code.
	Transport interface {
		Forward(ctx context.Context, peer *types.Peer, payload []byte) ([]byte, types.OutcomeCode, error)
	}

	Observability interface {
		Tracer(name string, options ...trace.TracerOption) trace.Tracer
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}

	configuration struct {
		delta         float64
		cadence       uint64        // commit weights on every cadence-th block
		idleInterval  time.Duration // sleep between block height checks
		commitTimeout time.Duration // zero means the ledger client decides
		scoreStore    keyvaluedb.KeyValueDB
		selector      PeerSelector
	}

	Option func(c *configuration)
)

func WithDelta(delta float64) Option {
	return func(c *configuration) {
		c.delta = delta
	}
}

func WithCadence(n uint64) Option {
	return func(c *configuration) {
		c.cadence = n
	}
}

func WithIdleInterval(d time.Duration) Option {
	return func(c *configuration) {
		c.idleInterval = d
	}
}

func WithCommitTimeout(d time.Duration) Option {
	return func(c *configuration) {
		c.commitTimeout = d
	}
}

// WithScoreStore persists score table into db after every commit cycle.
func WithScoreStore(db keyvaluedb.KeyValueDB) Option {
	return func(c *configuration) {
		c.scoreStore = db
	}
}

func WithSelector(s PeerSelector) Option {
	return func(c *configuration) {
		c.selector = s
	}
}

func loadConfiguration(opts ...Option) (*configuration, error) {
	c := &configuration{
		delta:        DefaultDelta,
		cadence:      DefaultCadence,
		idleInterval: DefaultIdleInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.selector == nil {
		c.selector = NewRandomSelector(nil)
	}
	if err := c.isValid(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *configuration) isValid() error {
	if !(c.delta > 0 && c.delta < 1) {
		return fmt.Errorf("invalid smoothing constant %v, must be in range (0,1)", c.delta)
	}
	if c.cadence == 0 {
		return fmt.Errorf("cadence must be greater than zero")
	}
	if c.idleInterval < 0 {
		return fmt.Errorf("idle interval must not be negative, got %s", c.idleInterval)
	}
	if c.commitTimeout < 0 {
		return fmt.Errorf("commit timeout must not be negative, got %s", c.commitTimeout)
	}
	return nil
}

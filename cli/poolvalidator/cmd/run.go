package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/poolvalidator/internal/debug"
	"github.com/alphabill-org/poolvalidator/keyvaluedb/boltdb"
	"github.com/alphabill-org/poolvalidator/ledger"
	"github.com/alphabill-org/poolvalidator/logger"
	"github.com/alphabill-org/poolvalidator/registry"
	"github.com/alphabill-org/poolvalidator/rpc"
	httptransport "github.com/alphabill-org/poolvalidator/transport/http"
	"github.com/alphabill-org/poolvalidator/transport/p2p"
	"github.com/alphabill-org/poolvalidator/validator"
)

const (
	defaultScoreDBFile = "scores.db"

	transportHTTP = "http"
	transportP2P  = "p2p"
)

type runFlags struct {
	*baseConfiguration

	LedgerURL      string
	RegistryURL    string
	Transport      string
	RPCAddress     string
	MaxBodySize    int64
	Cadence        uint64
	Delta          float64
	IdleInterval   time.Duration
	CommitTimeout  time.Duration
	PollInterval   time.Duration
	ForwardTimeout time.Duration
	ScoreDBFile    string
	P2PAddress     string
	P2PKey         string
}

func newRunCmd(baseConfig *baseConfiguration) *cobra.Command {
	flags := &runFlags{baseConfiguration: baseConfig}
	var cmd = &cobra.Command{
		Use:   "run",
		Short: "Starts the pool validator",
		Long:  `Starts the pool validator: serves forward requests and commits peer scores to the ledger every N blocks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidator(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.LedgerURL, "ledger-url", "", "base URL of the ledger REST API")
	cmd.Flags().StringVar(&flags.RegistryURL, "registry-url", "", "base URL of the peer registry REST API")
	cmd.Flags().StringVar(&flags.Transport, "transport", transportHTTP, "transport used to forward requests to peers, one of: http, p2p")
	cmd.Flags().StringVar(&flags.RPCAddress, "rpc-address", "localhost:29866", "address of the validator REST API, empty disables the server")
	cmd.Flags().Int64Var(&flags.MaxBodySize, "rpc-max-body-size", rpc.DefaultMaxBodySize, "maximum size of the request body accepted by the REST API (in bytes)")
	cmd.Flags().Uint64Var(&flags.Cadence, "cadence", validator.DefaultCadence, "weights are committed when block height is multiple of cadence")
	cmd.Flags().Float64Var(&flags.Delta, "delta", validator.DefaultDelta, "score decay factor, must be in range (0,1)")
	cmd.Flags().DurationVar(&flags.IdleInterval, "idle-interval", validator.DefaultIdleInterval, "how long to wait before next block height check when there is nothing to commit")
	cmd.Flags().DurationVar(&flags.CommitTimeout, "commit-timeout", 0, "timeout of the weight commit, zero means no timeout")
	cmd.Flags().DurationVar(&flags.PollInterval, "ledger-poll-interval", 2*time.Second, "how often to query the weight submission status")
	cmd.Flags().DurationVar(&flags.ForwardTimeout, "forward-timeout", 30*time.Second, "timeout of the request forwarded to a peer")
	cmd.Flags().StringVar(&flags.ScoreDBFile, "score-db", "", fmt.Sprintf("path to the score database (default $PV_HOME/%s)", defaultScoreDBFile))
	cmd.Flags().StringVar(&flags.P2PAddress, "p2p-address", "/ip4/0.0.0.0/tcp/26652", "listen address of the p2p host, used with p2p transport")
	cmd.Flags().StringVar(&flags.P2PKey, "p2p-key", "", "hex encoded private key of the p2p host, random key is generated when not set")
	return cmd
}

func (f *runFlags) validate() error {
	var errs []error
	if f.LedgerURL == "" {
		errs = append(errs, errors.New("ledger URL is required"))
	}
	if f.RegistryURL == "" {
		errs = append(errs, errors.New("registry URL is required"))
	}
	if f.Transport != transportHTTP && f.Transport != transportP2P {
		errs = append(errs, fmt.Errorf("unsupported transport %q", f.Transport))
	}
	return errors.Join(errs...)
}

func (f *runFlags) p2pKey() (crypto.PrivKey, error) {
	if f.P2PKey == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(f.P2PKey)
	if err != nil {
		return nil, fmt.Errorf("decoding p2p key: %w", err)
	}
	return crypto.UnmarshalPrivateKey(b)
}

func runValidator(ctx context.Context, flags *runFlags) error {
	if err := flags.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	obs := flags.observe
	log := obs.Logger()

	ledgerClient, err := ledger.New(flags.LedgerURL, ledger.WithPollInterval(flags.PollInterval))
	if err != nil {
		return fmt.Errorf("creating ledger client: %w", err)
	}
	registryClient, err := registry.New(flags.RegistryURL)
	if err != nil {
		return fmt.Errorf("creating registry client: %w", err)
	}

	scoreDB, err := boltdb.New(flags.pathInHome(flags.ScoreDBFile, defaultScoreDBFile))
	if err != nil {
		return fmt.Errorf("opening score database: %w", err)
	}
	defer func() {
		if err := scoreDB.Close(); err != nil {
			log.Warn("closing score database", logger.Error(err))
		}
	}()

	// the node is created in the transport setup as p2p handler needs it
	var node *validator.Node
	newNode := func(tr validator.Transport) (err error) {
		node, err = validator.NewNode(ledgerClient, registryClient, tr, obs,
			validator.WithDelta(flags.Delta),
			validator.WithCadence(flags.Cadence),
			validator.WithIdleInterval(flags.IdleInterval),
			validator.WithCommitTimeout(flags.CommitTimeout),
			validator.WithScoreStore(scoreDB),
		)
		return err
	}

	switch flags.Transport {
	case transportP2P:
		key, err := flags.p2pKey()
		if err != nil {
			return err
		}
		h, err := p2p.NewHost(flags.P2PAddress, key, obs.PrometheusRegisterer())
		if err != nil {
			return fmt.Errorf("creating p2p host: %w", err)
		}
		defer func() {
			if err := h.Close(); err != nil {
				log.Warn("closing p2p host", logger.Error(err))
			}
		}()
		if err := newNode(p2p.New(h, log)); err != nil {
			return fmt.Errorf("creating validator: %w", err)
		}
		p2p.Serve(h, node.Handle, log)
		log.InfoContext(ctx, fmt.Sprintf("p2p host %s listening on %v", h.ID(), h.Addrs()), logger.NodeID(h.ID()))
	default:
		if err := newNode(httptransport.New(flags.ForwardTimeout)); err != nil {
			return fmt.Errorf("creating validator: %w", err)
		}
	}

	log.InfoContext(ctx, fmt.Sprintf("starting pool validator: BuildInfo=%s", debug.ReadBuildInfo()))
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return node.Run(ctx) })

	g.Go(func() error {
		if flags.RPCAddress == "" {
			return nil // do not kill the group
		}
		server := rpc.NewRESTServer(flags.RPCAddress, flags.MaxBodySize, obs,
			rpc.ForwardEndpoints(node, log),
			rpc.StateEndpoints(node, log),
			rpc.MetricsEndpoints(obs.MetricsHandler()),
		)
		log.InfoContext(ctx, "REST server starting on "+server.Addr, slog.String("transport", flags.Transport))
		return httpsrv.Run(ctx, *server,
			httpsrv.ShutdownTimeout(5*time.Second),
			httpsrv.LogError(func(format string, args ...any) { log.Warn(fmt.Sprintf(format, args...)) }),
		)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

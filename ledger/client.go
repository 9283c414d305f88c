package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fxamacker/cbor/v2"

	"github.com/alphabill-org/poolvalidator/internal/rest"
	"github.com/alphabill-org/poolvalidator/types"
)

const defaultPollInterval = 500 * time.Millisecond

var ErrSubmissionFailed = errors.New("weight submission failed")

/*
Client is REST client of the ledger the weights are committed to.
*/
type Client struct {
	httpClient   http.Client
	pollInterval time.Duration

	heightURL  *url.URL
	weightsURL *url.URL
}

type Option func(c *Client)

// WithPollInterval sets how often submission status is queried while waiting for finalization.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

func WithHTTPClient(hc http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseUrl string, opts ...Option) (*Client, error) {
	baseUrl = rest.BaseURL(baseUrl)
	u, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing ledger URL (%s): %w", baseUrl, err)
	}
	c := &Client{
		httpClient:   http.Client{Timeout: time.Minute},
		pollInterval: defaultPollInterval,
		heightURL:    u.JoinPath(BlockHeightPath),
		weightsURL:   u.JoinPath(WeightsPath),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", c.pollInterval)
	}
	return c, nil
}

func (c *Client) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	var rsp BlockHeightResponse
	if err := c.get(ctx, c.heightURL, rest.ApplicationJson, &rsp); err != nil {
		return 0, fmt.Errorf("get block height: %w", err)
	}
	return uint64(rsp.Height), nil
}

/*
SubmitWeights posts the weight vector to the ledger. When wait is true the
call blocks until the submission is finalized, failed or ctx is done.
*/
func (c *Client) SubmitWeights(ctx context.Context, weights types.WeightVector, wait bool) (*types.CommitResult, error) {
	body, err := cbor.Marshal(WeightsRequest{Weights: weights})
	if err != nil {
		return nil, fmt.Errorf("encoding weights: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.weightsURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building submit weights request: %w", err)
	}
	req.Header.Set(rest.ContentType, rest.ApplicationCbor)

	var rsp SubmitResponse
	if err := rest.Do(&c.httpClient, req, &rsp, http.StatusAccepted); err != nil {
		return nil, fmt.Errorf("submit weights: %w", err)
	}
	if len(rsp.SubmissionID) == 0 {
		return nil, fmt.Errorf("submit weights: ledger returned empty submission id")
	}

	res := &types.CommitResult{SubmissionID: rsp.SubmissionID, Weights: weights}
	if !wait {
		return res, nil
	}
	if err := c.confirmSubmission(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SubmissionStatus returns the status of the submission with given id.
func (c *Client) SubmissionStatus(ctx context.Context, id []byte) (*SubmissionStatus, error) {
	var rsp SubmissionStatus
	if err := c.get(ctx, c.weightsURL.JoinPath(hexutil.Encode(id)), rest.ApplicationCbor, &rsp); err != nil {
		return nil, fmt.Errorf("get submission %s status: %w", hexutil.Encode(id), err)
	}
	return &rsp, nil
}

func (c *Client) confirmSubmission(ctx context.Context, res *types.CommitResult) error {
	for {
		status, err := c.SubmissionStatus(ctx, res.SubmissionID)
		if err != nil {
			return err
		}
		switch status.Status {
		case StatusFinalized:
			res.Finalized = true
			res.Height = status.Height
			return nil
		case StatusFailed:
			return fmt.Errorf("%w: %s", ErrSubmissionFailed, status.Reason)
		case StatusPending:
		default:
			return fmt.Errorf("unknown submission status %q", status.Status)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for finalization of submission %s: %w", hexutil.Encode(res.SubmissionID), ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) get(ctx context.Context, u *url.URL, accept string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", accept)
	return rest.Do(&c.httpClient, req, data, http.StatusOK)
}

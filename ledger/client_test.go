package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/poolvalidator/internal/rest"
	"github.com/alphabill-org/poolvalidator/types"
)

// mockLedger serves the ledger REST API, submissions become finalized after
// "pendingPolls" status queries.
type mockLedger struct {
	mu           sync.Mutex
	height       uint64
	pendingPolls int
	fail         string
	polls        int
	submitted    []types.WeightVector
}

func (m *mockLedger) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+BlockHeightPath, func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		w.Header().Set(rest.ContentType, rest.ApplicationJson)
		assert.NoError(t, json.NewEncoder(w).Encode(BlockHeightResponse{Height: hexutil.Uint64(m.height)}))
	})
	mux.HandleFunc("/"+WeightsPath, func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if r.Method != http.MethodPost || r.Header.Get(rest.ContentType) != rest.ApplicationCbor {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req WeightsRequest
		if err := cbor.NewDecoder(r.Body).Decode(&req); err != nil {
			w.Header().Set(rest.ContentType, rest.ApplicationJson)
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Message: err.Error()})
			return
		}
		m.submitted = append(m.submitted, req.Weights)
		w.Header().Set(rest.ContentType, rest.ApplicationCbor)
		w.WriteHeader(http.StatusAccepted)
		assert.NoError(t, cbor.NewEncoder(w).Encode(SubmitResponse{SubmissionID: []byte{0xab, byte(len(m.submitted))}}))
	})
	mux.HandleFunc("/"+WeightsPath+"/", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		id := strings.TrimPrefix(r.URL.Path, "/"+WeightsPath+"/")
		if _, err := hexutil.Decode(id); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.polls++
		status := SubmissionStatus{Status: StatusPending}
		switch {
		case m.fail != "":
			status = SubmissionStatus{Status: StatusFailed, Reason: m.fail}
		case m.polls > m.pendingPolls:
			status = SubmissionStatus{Status: StatusFinalized, Height: m.height}
		}
		w.Header().Set(rest.ContentType, rest.ApplicationCbor)
		assert.NoError(t, cbor.NewEncoder(w).Encode(status))
	})
	return mux
}

func newTestClient(t *testing.T, m *mockLedger) *Client {
	t.Helper()
	srv := httptest.NewServer(m.handler(t))
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	return c
}

var testWeights = types.WeightVector{{ID: "A", UID: 0, Weight: 0.19}, {ID: "B", UID: 1, Weight: 0}}

func TestNew(t *testing.T) {
	c, err := New("localhost:1234")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:1234/api/v1/block-height", c.heightURL.String())
	require.Equal(t, "http://localhost:1234/api/v1/weights", c.weightsURL.String())

	_, err = New("http://localhost", WithPollInterval(0))
	require.EqualError(t, err, "poll interval must be positive, got 0s")
}

func TestClient_CurrentBlockHeight(t *testing.T) {
	c := newTestClient(t, &mockLedger{height: 42})
	h, err := c.CurrentBlockHeight(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 42, h)
}

func TestClient_SubmitWeights(t *testing.T) {
	t.Run("no wait", func(t *testing.T) {
		m := &mockLedger{height: 10, pendingPolls: 100}
		c := newTestClient(t, m)
		res, err := c.SubmitWeights(context.Background(), testWeights, false)
		require.NoError(t, err)
		require.False(t, res.Finalized)
		require.Equal(t, []byte{0xab, 1}, res.SubmissionID)
		m.mu.Lock()
		defer m.mu.Unlock()
		require.Equal(t, []types.WeightVector{testWeights}, m.submitted)
		require.Zero(t, m.polls)
	})

	t.Run("wait for finalization", func(t *testing.T) {
		m := &mockLedger{height: 10, pendingPolls: 3}
		c := newTestClient(t, m)
		res, err := c.SubmitWeights(context.Background(), testWeights, true)
		require.NoError(t, err)
		require.True(t, res.Finalized)
		require.EqualValues(t, 10, res.Height)
		require.Equal(t, testWeights, res.Weights)
		m.mu.Lock()
		defer m.mu.Unlock()
		require.Equal(t, 4, m.polls)
	})

	t.Run("submission failed", func(t *testing.T) {
		c := newTestClient(t, &mockLedger{fail: "insufficient stake"})
		res, err := c.SubmitWeights(context.Background(), testWeights, true)
		require.ErrorIs(t, err, ErrSubmissionFailed)
		require.ErrorContains(t, err, "insufficient stake")
		require.Nil(t, res)
	})

	t.Run("finalization timeout", func(t *testing.T) {
		c := newTestClient(t, &mockLedger{pendingPolls: 1 << 30})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		res, err := c.SubmitWeights(ctx, testWeights, true)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Nil(t, res)
	})
}

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(rest.ContentType, rest.ApplicationJson)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Message: "node is syncing"})
	}))
	defer srv.Close()
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.CurrentBlockHeight(context.Background())
	require.EqualError(t, err, "get block height: unexpected response status 503 Service Unavailable: node is syncing")

	_, err = c.SubmitWeights(context.Background(), testWeights, true)
	require.ErrorContains(t, err, "submit weights: unexpected response status 503")
}

func TestClient_UnsupportedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(rest.ContentType, "text/plain")
		_, _ = w.Write([]byte("42"))
	}))
	defer srv.Close()
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.CurrentBlockHeight(context.Background())
	require.EqualError(t, err, `get block height: unsupported response content type "text/plain"`)
}

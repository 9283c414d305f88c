package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/holiman/uint256"
	"github.com/multiformats/go-multiaddr"

	"github.com/alphabill-org/poolvalidator/internal/rest"
	"github.com/alphabill-org/poolvalidator/types"
)

const PeersPath = "api/v1/peers"

type (
	PeersResponse struct {
		_      struct{} `cbor:",toarray"`
		Height uint64
		Peers  []*PeerRecord
	}

	// PeerRecord is the wire format of the registry member.
	PeerRecord struct {
		_       struct{} `cbor:",toarray"`
		ID      string
		UID     uint16
		Stake   []byte // big-endian, at most 32 bytes
		Address []byte // binary multiaddr
	}

	// Client fetches pool membership from the registry REST API.
	Client struct {
		httpClient http.Client
		peersURL   *url.URL
	}
)

func New(baseUrl string) (*Client, error) {
	baseUrl = rest.BaseURL(baseUrl)
	u, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("parsing registry URL (%s): %w", baseUrl, err)
	}
	return &Client{
		httpClient: http.Client{Timeout: time.Minute},
		peersURL:   u.JoinPath(PeersPath),
	}, nil
}

// SyncSnapshot returns new snapshot of the registry members.
func (c *Client) SyncSnapshot(ctx context.Context) (*types.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.peersURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building peers request: %w", err)
	}
	req.Header.Set("Accept", rest.ApplicationCbor)

	var rsp PeersResponse
	if err := rest.Do(&c.httpClient, req, &rsp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("get peers: %w", err)
	}
	return rsp.Snapshot()
}

// Snapshot converts the response to snapshot, peer ids must be unique.
func (r *PeersResponse) Snapshot() (*types.Snapshot, error) {
	peers := make([]*types.Peer, 0, len(r.Peers))
	seen := make(map[types.PeerID]struct{}, len(r.Peers))
	for i, rec := range r.Peers {
		p, err := rec.toPeer()
		if err != nil {
			return nil, fmt.Errorf("invalid peer record %d: %w", i, err)
		}
		if _, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("duplicate peer id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		peers = append(peers, p)
	}
	return types.NewSnapshot(r.Height, peers...), nil
}

func (rec *PeerRecord) toPeer() (*types.Peer, error) {
	if rec == nil {
		return nil, fmt.Errorf("peer record is nil")
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("peer id is empty")
	}
	if len(rec.Stake) > 32 {
		return nil, fmt.Errorf("stake of %q is %d bytes, max 32 allowed", rec.ID, len(rec.Stake))
	}
	p := &types.Peer{
		ID:    types.PeerID(rec.ID),
		UID:   rec.UID,
		Stake: new(uint256.Int).SetBytes(rec.Stake),
	}
	if len(rec.Address) > 0 {
		addr, err := multiaddr.NewMultiaddrBytes(rec.Address)
		if err != nil {
			return nil, fmt.Errorf("address of %q: %w", rec.ID, err)
		}
		p.Address = addr
	}
	return p, nil
}

// NewPeerRecord converts peer to its wire format.
func NewPeerRecord(p *types.Peer) *PeerRecord {
	rec := &PeerRecord{ID: string(p.ID), UID: p.UID}
	if p.Stake != nil {
		rec.Stake = p.Stake.Bytes()
	}
	if p.Address != nil {
		rec.Address = p.Address.Bytes()
	}
	return rec
}

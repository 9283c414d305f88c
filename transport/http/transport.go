package http

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/alphabill-org/poolvalidator/internal/rest"
	"github.com/alphabill-org/poolvalidator/transport"
	"github.com/alphabill-org/poolvalidator/types"
)

const ForwardPath = "/api/v1/forward"

// Transport forwards requests to the pool members over HTTP.
type Transport struct {
	client http.Client
	scheme string
}

func New(timeout time.Duration) *Transport {
	return &Transport{
		client: http.Client{Timeout: timeout},
		scheme: "http",
	}
}

func (t *Transport) Forward(ctx context.Context, peer *types.Peer, payload []byte) ([]byte, types.OutcomeCode, error) {
	hp, err := hostPort(peer.Address)
	if err != nil {
		return nil, 0, fmt.Errorf("address of peer %s: %w", peer, err)
	}
	u := fmt.Sprintf("%s://%s%s", t.scheme, hp, ForwardPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("building forward request: %w", err)
	}
	req.Header.Set(rest.ContentType, rest.ApplicationOctet)
	req.Header.Set("Accept", rest.ApplicationCbor)

	var rsp transport.ForwardResponse
	if err := rest.Do(&t.client, req, &rsp, http.StatusOK); err != nil {
		return nil, 0, fmt.Errorf("forward to %s: %w", peer, err)
	}
	return rsp.Payload, rsp.Code, nil
}

/*
hostPort returns "host:port" of the TCP multiaddr, both IP and DNS
addresses are supported.
*/
func hostPort(addr multiaddr.Multiaddr) (string, error) {
	if addr == nil {
		return "", fmt.Errorf("address is missing")
	}
	port, err := addr.ValueForProtocol(multiaddr.P_TCP)
	if err != nil {
		return "", fmt.Errorf("not a TCP address %s: %w", addr, err)
	}
	for _, p := range []int{multiaddr.P_DNS, multiaddr.P_DNS4, multiaddr.P_DNS6} {
		if host, err := addr.ValueForProtocol(p); err == nil {
			return net.JoinHostPort(host, port), nil
		}
	}
	na, err := manet.ToNetAddr(addr)
	if err != nil {
		return "", fmt.Errorf("converting %s to network address: %w", addr, err)
	}
	return na.String(), nil
}

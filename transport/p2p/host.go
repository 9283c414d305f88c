package p2p

import (
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/config"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/p2p/host/peerstore/pstoremem"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultAddress = "/ip4/0.0.0.0/tcp/0"

/*
NewHost creates libp2p host listening on the given multiaddr, when empty
"/ip4/0.0.0.0/tcp/0" is used. When key is nil random identity is generated.
*/
func NewHost(address string, key crypto.PrivKey, prom prometheus.Registerer) (host.Host, error) {
	if address == "" {
		address = defaultAddress
	}
	if key == nil {
		var err error
		if key, _, err = crypto.GenerateEd25519Key(nil); err != nil {
			return nil, fmt.Errorf("generating host key: %w", err)
		}
	}
	peerStore, err := pstoremem.NewPeerstore()
	if err != nil {
		return nil, fmt.Errorf("creating peerstore: %w", err)
	}

	opts := []config.Option{
		libp2p.ListenAddrStrings(address),
		libp2p.Identity(key),
		libp2p.Peerstore(peerStore),
		libp2p.Ping(true),
	}
	if prom != nil {
		opts = append(opts, libp2p.PrometheusRegisterer(prom))
	} else {
		opts = append(opts, libp2p.DisableMetrics())
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating libp2p host: %w", err)
	}
	return h, nil
}

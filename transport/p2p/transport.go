package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/alphabill-org/poolvalidator/logger"
	"github.com/alphabill-org/poolvalidator/transport"
	"github.com/alphabill-org/poolvalidator/types"
)

const (
	ProtocolForward = "/pool/forward/1.0.0"

	defaultStreamTimeout = 30 * time.Second
	maxFrameSize         = 16 << 20
)

type (
	ForwardRequest struct {
		_       struct{} `cbor:",toarray"`
		Payload []byte
	}

	// Transport forwards requests to the pool members over libp2p stream.
	Transport struct {
		host    host.Host
		timeout time.Duration
		log     *slog.Logger
	}

	HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)
)

func New(h host.Host, log *slog.Logger) *Transport {
	return &Transport{host: h, timeout: defaultStreamTimeout, log: log}
}

/*
Forward sends the payload to the peer. Address of the peer must contain
the peer id ("/ip4/127.0.0.1/tcp/1234/p2p/12D3...").
*/
func (t *Transport) Forward(ctx context.Context, p *types.Peer, payload []byte) (_ []byte, _ types.OutcomeCode, rErr error) {
	if p.Address == nil {
		return nil, 0, fmt.Errorf("address of peer %s is missing", p)
	}
	info, err := peer.AddrInfoFromP2pAddr(p.Address)
	if err != nil {
		return nil, 0, fmt.Errorf("address of peer %s: %w", p, err)
	}
	t.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	s, err := t.host.NewStream(ctx, info.ID, protocol.ID(ProtocolForward))
	if err != nil {
		return nil, 0, fmt.Errorf("open p2p stream to %s: %w", p, err)
	}
	defer func() { rErr = endStream(s, rErr, t.log) }()

	deadline, _ := ctx.Deadline()
	if err := s.SetDeadline(deadline); err != nil {
		return nil, 0, fmt.Errorf("setting stream deadline: %w", err)
	}
	if err := cbor.NewEncoder(s).Encode(&ForwardRequest{Payload: payload}); err != nil {
		return nil, 0, fmt.Errorf("writing forward request: %w", err)
	}
	if err := s.CloseWrite(); err != nil {
		return nil, 0, fmt.Errorf("closing stream for writing: %w", err)
	}

	var rsp transport.ForwardResponse
	if err := readFrame(s, maxFrameSize, &rsp); err != nil {
		return nil, 0, fmt.Errorf("reading forward response: %w", err)
	}
	return rsp.Payload, rsp.Code, nil
}

/*
Serve registers handler for the forward protocol on the host. Handler error
is returned to the caller as transport.CodeFailure outcome.
*/
func Serve(h host.Host, handler HandlerFunc, log *slog.Logger) {
	h.SetStreamHandler(protocol.ID(ProtocolForward), func(s network.Stream) {
		success := false
		defer func() {
			if success {
				if err := s.Close(); err != nil {
					log.Warn("closing forward stream", logger.Error(err))
				}
			} else if err := s.Reset(); err != nil {
				log.Warn("reset forward stream", logger.Error(err))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), defaultStreamTimeout)
		defer cancel()
		if err := s.SetReadDeadline(time.Now().Add(defaultStreamTimeout)); err != nil {
			log.Warn("setting forward stream read deadline", logger.Error(err))
			return
		}

		var req ForwardRequest
		if err := readFrame(s, maxFrameSize, &req); err != nil {
			log.Warn(fmt.Sprintf("reading forward request from %s", s.Conn().RemotePeer()), logger.Error(err))
			return
		}

		rsp := transport.ForwardResponse{Code: types.OutcomeSuccess}
		payload, err := handler(ctx, req.Payload)
		if err != nil {
			log.Debug(fmt.Sprintf("forward request from %s failed", s.Conn().RemotePeer()), logger.Error(err))
			rsp.Code = transport.CodeFailure
		}
		rsp.Payload = payload

		if err := s.SetWriteDeadline(time.Now().Add(defaultStreamTimeout)); err != nil {
			log.Warn("setting forward stream write deadline", logger.Error(err))
			return
		}
		if err := cbor.NewEncoder(s).Encode(&rsp); err != nil {
			log.Warn("writing forward response", logger.Error(err))
			return
		}
		success = true
	})
}

// readFrame decodes single CBOR item from "r" reading at most "limit" bytes.
func readFrame(r io.Reader, limit int64, v any) error {
	lr := &io.LimitedReader{R: r, N: limit}
	if err := cbor.NewDecoder(lr).Decode(v); err != nil {
		if lr.N <= 0 {
			return fmt.Errorf("frame exceeds %d bytes: %w", limit, err)
		}
		return err
	}
	return nil
}

type stream interface {
	Close() error
	Reset() error
}

/*
endStream resets the stream when the exchange failed (forcing close of both
ends) and closes it otherwise. Once the response has been decoded the
exchange is complete so close error is only logged.
*/
func endStream(s stream, exchangeErr error, log *slog.Logger) error {
	if exchangeErr != nil {
		return errors.Join(exchangeErr, s.Reset())
	}
	if err := s.Close(); err != nil {
		log.Debug("closing forward stream", logger.Error(err))
	}
	return nil
}

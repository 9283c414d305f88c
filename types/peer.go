package types

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/multiformats/go-multiaddr"
)

type (
	// PeerID identifies a pool member. It is unique within a registry
	// snapshot and stays stable across snapshots.
	PeerID string

	/*
		Peer is a member of the pool as seen in a registry snapshot.

		Peer is immutable once it is part of a Snapshot, a registry resync
		produces new Peer values.
	*/
	Peer struct {
		ID      PeerID              `json:"id"`
		UID     uint16              `json:"uid"`
		Stake   *uint256.Int        `json:"stake"`
		Address multiaddr.Multiaddr `json:"address"`
	}
)

func (id PeerID) String() string {
	return string(id)
}

func (p *Peer) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(uid=%d)", p.ID, p.UID)
}

// StakeOrZero returns the stake of the peer, zero when registry didn't supply it.
func (p *Peer) StakeOrZero() *uint256.Int {
	if p.Stake == nil {
		return uint256.NewInt(0)
	}
	return p.Stake.Clone()
}

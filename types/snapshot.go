package types

/*
Snapshot is an immutable point-in-time view of the peer registry.

Snapshot must not be modified after it has been published, registry resync
creates a new Snapshot which replaces the previous one as a whole.
*/
type Snapshot struct {
	// Height is the ledger block height at which the registry was read,
	// zero when the registry doesn't report it.
	Height uint64
	Peers  []*Peer
}

// NewSnapshot creates snapshot of the given peers.
func NewSnapshot(height uint64, peers ...*Peer) *Snapshot {
	return &Snapshot{Height: height, Peers: peers}
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Peers)
}

// IDs returns peer identifiers in snapshot order.
func (s *Snapshot) IDs() []PeerID {
	if s == nil {
		return nil
	}
	ids := make([]PeerID, len(s.Peers))
	for i, p := range s.Peers {
		ids[i] = p.ID
	}
	return ids
}

// Get returns peer with given id or nil when the peer is not part of the snapshot.
func (s *Snapshot) Get(id PeerID) *Peer {
	if s == nil {
		return nil
	}
	for _, p := range s.Peers {
		if p.ID == id {
			return p
		}
	}
	return nil
}

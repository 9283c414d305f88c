package validator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/alphabill-org/poolvalidator/keyvaluedb"
	"github.com/alphabill-org/poolvalidator/types"
)

/*
ScoreTable maps peer id to score in range [0,1]. Entries are created on the
first scoring event and never removed, ids missing from the current registry
snapshot are simply not used.
*/
type ScoreTable struct {
	mu     sync.Mutex
	scores map[types.PeerID]float64
}

func NewScoreTable() *ScoreTable {
	return &ScoreTable{scores: make(map[types.PeerID]float64)}
}

// Get returns score of the peer, zero when the peer has not been scored yet.
func (t *ScoreTable) Get(id types.PeerID) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scores[id]
}

func (t *ScoreTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.scores)
}

// Copy returns point-in-time copy of the table.
func (t *ScoreTable) Copy() map[types.PeerID]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := make(map[types.PeerID]float64, len(t.scores))
	for k, v := range t.scores {
		c[k] = v
	}
	return c
}

// apply replaces the score of the peer with the result of f, under the table lock.
func (t *ScoreTable) apply(id types.PeerID, f func(old float64) float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := f(t.scores[id])
	t.scores[id] = v
	return v
}

/*
Store writes the table into db in a single transaction. Table lock is
held only while copying.
*/
func (t *ScoreTable) Store(db keyvaluedb.DBTx) (err error) {
	scores := t.Copy()
	tx, err := db.StartTx()
	if err != nil {
		return fmt.Errorf("starting score db transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()
	for id, v := range scores {
		if err := tx.Write([]byte(id), v); err != nil {
			return fmt.Errorf("writing score of %q: %w", id, err)
		}
	}
	return tx.Commit()
}

// Load adds all scores stored in db to the table, stored values override the existing ones.
func (t *ScoreTable) Load(db keyvaluedb.Iterable) (err error) {
	it := db.First()
	defer func() { err = errors.Join(err, it.Close()) }()

	loaded := make(map[types.PeerID]float64)
	for ; it.Valid(); it.Next() {
		var v float64
		if err := it.Value(&v); err != nil {
			return fmt.Errorf("reading score of %q: %w", it.Key(), err)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid score %v of %q, must be in range [0,1]", v, it.Key())
		}
		loaded[types.PeerID(it.Key())] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range loaded {
		t.scores[k] = v
	}
	return nil
}

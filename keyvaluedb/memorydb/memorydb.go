package memorydb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/alphabill-org/poolvalidator/keyvaluedb"
)

type (
	EncodeFn func(v any) ([]byte, error)
	DecodeFn func(data []byte, v any) error

	MemoryDB struct {
		db       map[string][]byte
		encoder  EncodeFn
		decoder  DecodeFn
		writeErr error
		lock     sync.RWMutex
	}
)

// New creates a new mock key value db that currently uses map as storage.
func New() *MemoryDB {
	return &MemoryDB{
		db:      make(map[string][]byte),
		encoder: json.Marshal,
		decoder: json.Unmarshal,
	}
}

// Empty returns true if no values are stored in db
func (db *MemoryDB) Empty() bool {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return len(db.db) == 0
}

// Read retrieves the given key if it's present in the key-value store.
func (db *MemoryDB) Read(key []byte, value any) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return false, err
	}
	if data, ok := db.db[string(key)]; ok {
		return true, db.decoder(data, value)
	}
	return false, nil
}

// Write inserts the given value into the key-value store.
func (db *MemoryDB) Write(key []byte, value any) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	if db.writeErr != nil {
		return db.writeErr
	}
	b, err := db.encoder(value)
	if err != nil {
		return err
	}
	db.db[string(key)] = b
	return nil
}

// Delete removes the key from the key-value store.
func (db *MemoryDB) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	delete(db.db, string(key))
	return nil
}

// First returns forward iterator to the first element in DB
func (db *MemoryDB) First() keyvaluedb.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()
	it := newIterator(db.db, db.decoder)
	if len(it.keys) > 0 {
		it.index = 0
	}
	return it
}

func (db *MemoryDB) StartTx() (keyvaluedb.DBTransaction, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return &Tx{mem: db, db: copyMap(db.db)}, nil
}

// MockWriteError makes all following writes to fail with given error, nil restores normal operation.
func (db *MemoryDB) MockWriteError(err error) {
	db.lock.Lock()
	defer db.lock.Unlock()
	db.writeErr = err
}

type Itr struct {
	keys    [][]byte
	values  [][]byte
	decoder DecodeFn
	index   int
}

func newIterator(db map[string][]byte, d DecodeFn) *Itr {
	keys := make([][]byte, 0, len(db))
	for key := range db {
		keys = append(keys, []byte(key))
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		values = append(values, db[string(key)])
	}
	return &Itr{keys: keys, values: values, decoder: d, index: -1}
}

func (it *Itr) Next() {
	if !it.Valid() {
		return
	}
	it.index++
	if it.index >= len(it.keys) {
		it.index = -1
	}
}

func (it *Itr) Valid() bool {
	return it.index >= 0
}

func (it *Itr) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.keys[it.index]
}

func (it *Itr) Value(v any) error {
	if !it.Valid() {
		return fmt.Errorf("iterator invalid")
	}
	return it.decoder(it.values[it.index], v)
}

func (it *Itr) Close() error {
	return nil
}

type Tx struct {
	mem *MemoryDB
	db  map[string][]byte
}

func (t *Tx) Write(key []byte, value any) error {
	t.mem.lock.Lock()
	defer t.mem.lock.Unlock()
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	if t.db == nil {
		return fmt.Errorf("memdb tx write failed, tx closed")
	}
	if t.mem.writeErr != nil {
		return t.mem.writeErr
	}
	b, err := t.mem.encoder(value)
	if err != nil {
		return err
	}
	t.db[string(key)] = b
	return nil
}

func (t *Tx) Delete(key []byte) error {
	t.mem.lock.Lock()
	defer t.mem.lock.Unlock()
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	if t.db == nil {
		return fmt.Errorf("memdb tx delete failed, tx closed")
	}
	delete(t.db, string(key))
	return nil
}

func (t *Tx) Rollback() error {
	t.mem.lock.Lock()
	defer t.mem.lock.Unlock()
	t.db = nil
	return nil
}

func (t *Tx) Commit() error {
	t.mem.lock.Lock()
	defer t.mem.lock.Unlock()
	if t.db == nil {
		return fmt.Errorf("memdb tx commit failed, tx closed")
	}
	t.mem.db = t.db
	t.db = nil
	return nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	result := make(map[K]V, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

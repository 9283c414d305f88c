package boltdb

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Itr holds a read-only transaction open until Close is called.
type Itr struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	decoder DecodeFn
	key     []byte
	value   []byte
}

func newIterator(db *bolt.DB, bucket []byte, d DecodeFn) *Itr {
	it := &Itr{decoder: d}
	tx, err := db.Begin(false)
	if err != nil {
		return it
	}
	it.tx = tx
	it.cursor = tx.Bucket(bucket).Cursor()
	return it
}

func (it *Itr) first() {
	if it.cursor == nil {
		return
	}
	it.key, it.value = it.cursor.First()
}

func (it *Itr) Next() {
	if !it.Valid() {
		return
	}
	it.key, it.value = it.cursor.Next()
}

func (it *Itr) Valid() bool {
	return it.key != nil
}

func (it *Itr) Key() []byte {
	return it.key
}

func (it *Itr) Value(v any) error {
	if !it.Valid() {
		return fmt.Errorf("iterator invalid")
	}
	return it.decoder(it.value, v)
}

func (it *Itr) Close() error {
	it.key, it.value, it.cursor = nil, nil, nil
	if it.tx == nil {
		return nil
	}
	tx := it.tx
	it.tx = nil
	return tx.Rollback()
}

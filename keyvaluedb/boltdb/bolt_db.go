package boltdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/alphabill-org/poolvalidator/keyvaluedb"
)

// use more than one db file instead of buckets
const defaultBucket = "default"

type (
	EncodeFn func(v any) ([]byte, error)
	DecodeFn func(data []byte, v any) error

	BoltDB struct {
		db      *bolt.DB
		bucket  []byte
		encoder EncodeFn
		decoder DecodeFn
	}
)

var errNotFound = errors.New("db entry not found")

// New opens (creates when missing) Bolt DB in the dbFile. Values are CBOR encoded.
func New(dbFile string) (*BoltDB, error) {
	db, err := bolt.Open(dbFile, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	s := &BoltDB{
		db:      db,
		bucket:  []byte(defaultBucket),
		encoder: cbor.Marshal,
		decoder: cbor.Unmarshal,
	}
	if err = s.createBuckets(); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return s, nil
}

func (db *BoltDB) Path() string {
	return db.db.Path()
}

func (db *BoltDB) createBuckets() error {
	return db.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(db.bucket)
		return err
	})
}

func (db *BoltDB) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	if err := db.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(db.bucket).Get(key)
		if data == nil {
			return errNotFound
		}
		return db.decoder(data, v)
	}); err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return true, fmt.Errorf("bolt db read failed, %w", err)
	}
	return true, nil
}

func (db *BoltDB) Write(key []byte, v any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return err
	}
	b, err := db.encoder(v)
	if err != nil {
		return err
	}
	if err = db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(db.bucket).Put(key, b)
	}); err != nil {
		return fmt.Errorf("bolt db write failed, %w", err)
	}
	return nil
}

func (db *BoltDB) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	if err := db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(db.bucket).Delete(key)
	}); err != nil {
		return fmt.Errorf("bolt db delete failed, %w", err)
	}
	return nil
}

func (db *BoltDB) First() keyvaluedb.Iterator {
	it := newIterator(db.db, db.bucket, db.decoder)
	it.first()
	return it
}

func (db *BoltDB) StartTx() (keyvaluedb.DBTransaction, error) {
	tx, err := NewBoltTx(db.db, db.bucket, db.encoder)
	if err != nil {
		return nil, fmt.Errorf("failed to start Bolt tx, %w", err)
	}
	return tx, nil
}

func (db *BoltDB) Close() error {
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}

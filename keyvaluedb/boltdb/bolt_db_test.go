package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/poolvalidator/keyvaluedb"
)

func initBoltDB(t *testing.T) *BoltDB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "scores.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func isEmpty(t *testing.T, db *BoltDB) bool {
	t.Helper()
	empty, err := keyvaluedb.IsEmpty(db)
	require.NoError(t, err)
	return empty
}

type scoreRecord struct {
	_     struct{} `cbor:",toarray"`
	Score float64
	UID   uint16
}

func TestBoltDB_ReadWriteDelete(t *testing.T) {
	db := initBoltDB(t)
	require.True(t, isEmpty(t, db))

	var rec scoreRecord
	found, err := db.Read([]byte("A"), &rec)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, db.Write([]byte("A"), &scoreRecord{Score: 0.19, UID: 3}))
	require.False(t, isEmpty(t, db))
	found, err = db.Read([]byte("A"), &rec)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 0.19, rec.Score)
	require.EqualValues(t, 3, rec.UID)

	require.NoError(t, db.Delete([]byte("A")))
	found, err = db.Read([]byte("A"), &rec)
	require.NoError(t, err)
	require.False(t, found)
	require.True(t, isEmpty(t, db))
}

func TestBoltDB_InvalidArgs(t *testing.T) {
	db := initBoltDB(t)
	require.Error(t, db.Write(nil, 1))
	require.Error(t, db.Write([]byte("k"), nil))
	require.Error(t, db.Delete([]byte{}))
	_, err := db.Read([]byte("k"), nil)
	require.Error(t, err)
}

func TestBoltDB_Reopen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "scores.db")
	db, err := New(file)
	require.NoError(t, err)
	require.Equal(t, file, db.Path())
	require.NoError(t, db.Write([]byte("B"), 0.5))
	require.NoError(t, db.Close())

	db, err = New(file)
	require.NoError(t, err)
	defer db.Close()
	var v float64
	found, err := db.Read([]byte("B"), &v)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 0.5, v)
}

package keyvaluedb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckKeyAndValue(t *testing.T) {
	var nilPtr *uint64
	v := uint64(1)

	require.ErrorIs(t, CheckKeyAndValue(nil, &v), errInvalidKey)
	require.ErrorIs(t, CheckKeyAndValue([]byte{}, &v), errInvalidKey)
	require.ErrorIs(t, CheckKeyAndValue([]byte("k"), nil), errValueIsNil)
	require.ErrorIs(t, CheckKeyAndValue([]byte("k"), nilPtr), errValueIsNil)
	require.NoError(t, CheckKeyAndValue([]byte("k"), &v))
	require.NoError(t, CheckKeyAndValue([]byte("k"), v))
}

func TestIsEmpty_nil(t *testing.T) {
	empty, err := IsEmpty(nil)
	require.EqualError(t, err, "db is nil")
	require.True(t, empty)
}

type iteratorStub struct {
	Iterator
	valid    bool
	closeErr error
}

func (it *iteratorStub) Valid() bool  { return it.valid }
func (it *iteratorStub) Close() error { return it.closeErr }

type dbStub struct {
	KeyValueDB
	it *iteratorStub
}

func (db dbStub) First() Iterator { return db.it }

func TestIsEmpty(t *testing.T) {
	empty, err := IsEmpty(dbStub{it: &iteratorStub{}})
	require.NoError(t, err)
	require.True(t, empty)

	empty, err = IsEmpty(dbStub{it: &iteratorStub{valid: true}})
	require.NoError(t, err)
	require.False(t, empty)

	_, err = IsEmpty(dbStub{it: &iteratorStub{closeErr: errors.New("boom")}})
	require.EqualError(t, err, "closing iterator: boom")
}

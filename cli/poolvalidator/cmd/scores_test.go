package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/poolvalidator/keyvaluedb/boltdb"
)

func TestScoresCmd(t *testing.T) {
	homeDir := t.TempDir()

	_, err := execCommand(t, context.Background(), "scores", "--home", homeDir)
	require.ErrorContains(t, err, "score database")

	db, err := boltdb.New(filepath.Join(homeDir, defaultScoreDBFile))
	require.NoError(t, err)
	require.NoError(t, db.Write([]byte("B"), 0.0))
	require.NoError(t, db.Write([]byte("A"), 0.19))
	require.NoError(t, db.Close())

	out, err := execCommand(t, context.Background(), "scores", "--home", homeDir)
	require.NoError(t, err)
	require.Equal(t, "A\t0.190000\nB\t0.000000\n", out)
}

func TestScoresCmd_Empty(t *testing.T) {
	homeDir := t.TempDir()
	db, err := boltdb.New(filepath.Join(homeDir, "custom.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := execCommand(t, context.Background(), "scores", "--home", homeDir, "--score-db", filepath.Join(homeDir, "custom.db"))
	require.NoError(t, err)
	require.Equal(t, "no scores\n", out)
}

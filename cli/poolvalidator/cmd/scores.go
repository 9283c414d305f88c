package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/poolvalidator/keyvaluedb"
	"github.com/alphabill-org/poolvalidator/keyvaluedb/boltdb"
	"github.com/alphabill-org/poolvalidator/types"
	"github.com/alphabill-org/poolvalidator/validator"
)

func newScoresCmd(baseConfig *baseConfiguration) *cobra.Command {
	var dbFile string
	var cmd = &cobra.Command{
		Use:   "scores",
		Short: "Prints persisted peer scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printScores(cmd, baseConfig.pathInHome(dbFile, defaultScoreDBFile))
		},
	}
	cmd.Flags().StringVar(&dbFile, "score-db", "", fmt.Sprintf("path to the score database (default $PV_HOME/%s)", defaultScoreDBFile))
	return cmd
}

func printScores(cmd *cobra.Command, dbFile string) (rErr error) {
	// bolt.Open would create missing file
	if _, err := os.Stat(dbFile); err != nil {
		return fmt.Errorf("score database: %w", err)
	}
	db, err := boltdb.New(dbFile)
	if err != nil {
		return fmt.Errorf("opening score database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil && rErr == nil {
			rErr = fmt.Errorf("closing score database: %w", err)
		}
	}()

	out := cmd.OutOrStdout()
	empty, err := keyvaluedb.IsEmpty(db)
	if err != nil {
		return fmt.Errorf("reading score database: %w", err)
	}
	if empty {
		fmt.Fprintln(out, "no scores")
		return nil
	}

	table := validator.NewScoreTable()
	if err := table.Load(db); err != nil {
		return fmt.Errorf("loading scores: %w", err)
	}
	scores := table.Copy()
	ids := make([]types.PeerID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if len(ids) == 0 {
		fmt.Fprintln(out, "no scores")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintf(out, "%s\t%.6f\n", id, scores[id])
	}
	return nil
}

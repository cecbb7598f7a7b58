package cli

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blametrail/authorship-engine/internal/format"
	"github.com/blametrail/authorship-engine/internal/git"
	"github.com/blametrail/authorship-engine/internal/promptstore"
)

// newStatsCmd implements `stats`: summary statistics aggregated from the
// prompt database, rebuilding it first if HEAD has moved since the last
// rebuild.
func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show summary statistics across tracked commits",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := mustEnv(cmd)
			if !e.initialized() {
				return fmt.Errorf("blamebot is not initialized in this repo (run 'blamebot enable')")
			}

			shas, err := git.RevList(e.root, "HEAD")
			if err != nil {
				return err
			}

			store := promptstore.AuthorshipLogStore{Loader: e.store()}
			db, err := promptstore.Open(e.paths, store, shas)
			if err != nil {
				return err
			}
			defer db.Close()

			sessionTotals, err := promptstore.SessionStats(db)
			if err != nil {
				return err
			}

			printStats(len(shas), sessionTotals)
			return nil
		},
	}
	return cmd
}

func printStats(commitCount int, sessionTotals map[string]int) {
	var totalAccepted int
	sessions := make([]string, 0, len(sessionTotals))
	for hash, n := range sessionTotals {
		sessions = append(sessions, hash)
		totalAccepted += n
	}
	sort.Slice(sessions, func(i, j int) bool { return sessionTotals[sessions[i]] > sessionTotals[sessions[j]] })

	body := fmt.Sprintf("Commits indexed:    %s\nSessions tracked:   %d\nAI-accepted lines:  %s",
		humanize.Comma(int64(commitCount)), len(sessions), humanize.Comma(int64(totalAccepted)))
	fmt.Println(format.FormatBorderedText(body, "blamebot statistics"))

	if len(sessions) == 0 {
		return
	}
	fmt.Printf("\n%sBy session:%s\n", format.Bold, format.Reset)
	for _, hash := range sessions {
		fmt.Printf("  %4d  %s\n", sessionTotals[hash], hash)
	}
}

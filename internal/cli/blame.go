package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blametrail/authorship-engine/internal/config"
	"github.com/blametrail/authorship-engine/internal/format"
	"github.com/blametrail/authorship-engine/internal/git"
	"github.com/blametrail/authorship-engine/internal/virtualattr"
)

// newBlameCmd implements `blame`: for each given path, project the
// per-line AI/human attribution a reader at a given commit (HEAD by
// default) would see, via the virtual-attribution loader (C9).
func newBlameCmd() *cobra.Command {
	var rev string
	var jsonOut bool
	var showDiff bool

	cmd := &cobra.Command{
		Use:   "blame <path>...",
		Short: "Show per-line AI/human attribution for one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, paths []string) error {
			e := mustEnv(cmd)
			if rev == "" {
				rev = headSHA(e.root)
			}

			if showDiff {
				return printBlameDiff(e.root, rev, paths)
			}

			results, err := virtualattr.Compute(e.root, e.store(), rev, paths, config.Default())
			if err != nil {
				return err
			}

			if jsonOut {
				return printBlameJSON(results)
			}
			printBlameText(rev, results)
			return nil
		},
	}

	cmd.Flags().StringVar(&rev, "rev", "", "Commit to blame against (default: HEAD)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showDiff, "diff", false, "Show each file's side-by-side diff against its parent commit instead of attribution")
	return cmd
}

func printBlameText(rev string, results []virtualattr.FileResult) {
	for _, r := range results {
		fmt.Printf("%s%s%s @ %s\n", format.Bold, r.FilePath, format.Reset, shortSHA(rev))
		if r.Err != nil {
			fmt.Printf("  %serror: %v%s\n", format.Yellow, r.Err, format.Reset)
			continue
		}
		for _, seg := range r.Lines {
			author := seg.AuthorID
			color := format.Dim
			if author != "human" {
				color = format.Bold
			}
			fmt.Printf("  %s%4d-%-4d %-12s%s\n", color, seg.StartLine, seg.EndLine, author, format.Reset)
		}
		fmt.Println()
	}
}

// printBlameDiff shows each path's change since rev's parent, side by
// side, for a reader who wants to see what changed rather than who
// changed it.
func printBlameDiff(root, rev string, paths []string) error {
	parent, err := resolveRev(root, rev+"~1")
	if err != nil {
		parent = "" // rev is the root commit, diff against an empty file
	}
	for _, p := range paths {
		var before string
		if parent != "" {
			before, _ = git.ShowFile(root, parent, p)
		}
		after, err := git.ShowFile(root, rev, p)
		if err != nil {
			fmt.Printf("%s%s%s: not present at %s\n\n", format.Bold, p, format.Reset, shortSHA(rev))
			continue
		}
		fmt.Printf("%s%s%s\n", format.Bold, p, format.Reset)
		fmt.Println(format.FormatSideBySideDiff(before, after))
		fmt.Println()
	}
	return nil
}

func printBlameJSON(results []virtualattr.FileResult) error {
	type segmentJSON struct {
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
		AuthorID  string `json:"author_id"`
	}
	type fileJSON struct {
		FilePath string        `json:"file_path"`
		Segments []segmentJSON `json:"segments"`
		Error    string        `json:"error,omitempty"`
	}

	out := make([]fileJSON, len(results))
	for i, r := range results {
		fj := fileJSON{FilePath: r.FilePath}
		if r.Err != nil {
			fj.Error = r.Err.Error()
		}
		for _, seg := range r.Lines {
			fj.Segments = append(fj.Segments, segmentJSON{StartLine: seg.StartLine, EndLine: seg.EndLine, AuthorID: seg.AuthorID})
		}
		out[i] = fj
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

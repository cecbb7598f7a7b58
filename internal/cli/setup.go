package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blametrail/authorship-engine/internal/git"
	"github.com/blametrail/authorship-engine/internal/project"
)

// newEnableCmd implements `enable`: create the local cache directory a
// working repo needs (checkpoint state, the prompt index) and ensure the
// authorship notes ref exists so project.IsInitialized recognizes this
// repo on every future invocation, including a fresh clone that hasn't
// run a single checkpoint yet.
func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Enable authorship tracking in this repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := project.FindRoot()
			if err != nil {
				return err
			}
			paths := project.NewPaths(root)
			if err := os.MkdirAll(paths.CacheDir, 0o755); err != nil {
				return fmt.Errorf("enable: create cache dir: %w", err)
			}

			head := exec.Command("git", "rev-parse", "--verify", "--quiet", "HEAD")
			head.Dir = root
			if out, err := head.Output(); err == nil {
				sha := strings.TrimSpace(string(out))
				note := exec.Command("git", "notes", "--ref="+git.NotesRef, "add", "-f", "-m", "", sha)
				note.Dir = root
				_ = note.Run()
			}

			fmt.Println("blamebot enabled. Use `blamebot git-ai <commit|amend|rebase|merge|reset|push|fetch>` in place of the matching git command.")
			return nil
		},
	}
}

// newDisableCmd implements the inverse of enable: it removes the local
// working-log/prompt-index cache but leaves the authorship notes ref
// alone, since those notes are committed, pushed history and remain
// valid whether or not tracking is currently active.
func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable authorship tracking in this repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := mustEnv(cmd)
			if err := os.RemoveAll(e.paths.CacheDir); err != nil {
				return fmt.Errorf("disable: remove cache dir: %w", err)
			}
			fmt.Println("blamebot disabled. Existing authorship notes are untouched.")
			return nil
		},
	}
}

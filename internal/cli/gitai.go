package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blametrail/authorship-engine/internal/git"
)

// newGitAICmd groups the `git-ai` wrappers named in §6.6: explicit
// pass-through replacements for the git subcommands that rewrite or
// create history, each followed by the matching authorship-log
// retargeting. They exist instead of git hooks because distinguishing an
// amend from a squash-merge-in-progress from a plain commit reliably from
// hook state alone (ORIG_HEAD, reflog, MERGE_HEAD) is fragile; a wrapper
// knows exactly which operation is running because the caller said so.
func newGitAICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git-ai",
		Short: "git wrappers that keep the authorship log in sync across history rewrites",
	}
	cmd.AddCommand(
		newGitAICommitCmd(),
		newGitAIAmendCmd(),
		newGitAIRebaseCmd(),
		newGitAIMergeCmd(),
		newGitAIResetCmd(),
		newGitAIPushCmd(),
		newGitAIFetchCmd(),
	)
	return cmd
}

// runGit execs git with the process's own stdio attached, so interactive
// subcommands (an editor for the commit message, a merge conflict) behave
// exactly as they would run directly.
func runGit(root string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = root
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func resolveRev(root, rev string) (string, error) {
	cmd := exec.Command("git", "rev-parse", rev)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git: rev-parse %s: %w", rev, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func passthroughCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		DisableFlagParsing: true,
	}
}

// newGitAICommitCmd wraps `git commit`. A plain commit folds the working
// log's checkpoints into the parent's stored log and retargets the
// result to the new commit, unless a `merge --squash` is pending, in
// which case it completes that reconstruction instead.
func newGitAICommitCmd() *cobra.Command {
	cmd := passthroughCmd("commit -- [git commit args...]", "git commit, then fold checkpoints into the new commit")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		e := mustEnv(cmd)
		parent := headSHA(e.root)

		if err := runGit(e.root, append([]string{"commit"}, args...)...); err != nil {
			return err
		}
		newSHA := headSHA(e.root)
		if newSHA == "" || newSHA == parent || !e.initialized() {
			return nil
		}

		if log, originalSHAs, ok, err := e.loadPendingSquash(); err != nil {
			return err
		} else if ok {
			if err := e.coordinator().CompleteSquashMerge(log, newSHA, originalSHAs); err != nil {
				return err
			}
			if err := e.clearPendingSquash(); err != nil {
				return err
			}
			e.logf("completed pending squash merge", map[string]any{"commit": newSHA, "originals": originalSHAs})
			return e.workingLogFor(parent).Reset()
		}

		if err := e.foldPlainCommit(parent, newSHA); err != nil {
			return err
		}
		e.logf("folded plain commit", map[string]any{"parent": parent, "commit": newSHA})
		return nil
	}
	return cmd
}

// newGitAIAmendCmd wraps `git commit --amend`.
func newGitAIAmendCmd() *cobra.Command {
	cmd := passthroughCmd("amend -- [git commit --amend args...]", "git commit --amend, then retarget the authorship log")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		e := mustEnv(cmd)
		oldSHA := headSHA(e.root)

		if err := runGit(e.root, append([]string{"commit", "--amend"}, args...)...); err != nil {
			return err
		}
		newSHA := headSHA(e.root)
		if !e.initialized() || newSHA == "" {
			return nil
		}

		wl := e.workingLogFor(oldSHA)
		checkpoints, err := wl.ReadAllCheckpoints()
		if err != nil {
			return err
		}
		if err := e.coordinator().Amend(oldSHA, newSHA, checkpoints); err != nil {
			return err
		}
		e.logf("amended commit", map[string]any{"old": oldSHA, "new": newSHA})
		return wl.Reset()
	}
	return cmd
}

// newGitAIRebaseCmd wraps `git rebase`. It snapshots the old and new
// commit ranges against the same upstream before and after, pairing them
// index-for-index — valid as long as the rebase doesn't drop or squash
// commits, which a plain linear rebase doesn't.
func newGitAIRebaseCmd() *cobra.Command {
	cmd := passthroughCmd("rebase -- [git rebase args...]", "git rebase, then reconstruct each rebased commit's authorship log")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		e := mustEnv(cmd)

		upstream := "@{upstream}"
		for _, a := range args {
			if !strings.HasPrefix(a, "-") {
				upstream = a
				break
			}
		}

		oldSHAs, err := git.RevList(e.root, upstream+"..HEAD")
		if err != nil {
			oldSHAs = nil
		}

		if err := runGit(e.root, append([]string{"rebase"}, args...)...); err != nil {
			return err
		}
		if !e.initialized() || len(oldSHAs) == 0 {
			return nil
		}

		newSHAs, err := git.RevList(e.root, upstream+"..HEAD")
		if err != nil {
			return err
		}
		if len(newSHAs) != len(oldSHAs) {
			return nil // commits were combined or dropped; outside a plain index pairing
		}
		if err := e.coordinator().Rebase(oldSHAs, newSHAs); err != nil {
			return err
		}
		e.logf("rebased commits", map[string]any{"count": len(oldSHAs)})
		return nil
	}
	return cmd
}

// newGitAIMergeCmd wraps `git merge`. Only --squash needs special
// handling: it reconstructs the log against a hanging commit before the
// real (uncommitted) squash merge, and hands the reconstruction off to
// the `commit` wrapper via a pending-squash marker.
func newGitAIMergeCmd() *cobra.Command {
	cmd := passthroughCmd("merge -- [git merge args...]", "git merge; --squash also reconstructs the merged authorship log")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		e := mustEnv(cmd)

		squash := false
		var branch string
		for _, a := range args {
			if a == "--squash" {
				squash = true
			} else if !strings.HasPrefix(a, "-") {
				branch = a
			}
		}

		if !squash {
			return runGit(e.root, append([]string{"merge"}, args...)...)
		}
		if branch == "" {
			return fmt.Errorf("git-ai merge --squash: a branch is required")
		}

		ours := headSHA(e.root)
		theirs, err := resolveRev(e.root, branch)
		if err != nil {
			return err
		}
		base, err := git.MergeBase(e.root, ours, theirs)
		if err != nil {
			return err
		}

		if err := runGit(e.root, append([]string{"merge"}, args...)...); err != nil {
			return err
		}
		if !e.initialized() {
			return nil
		}

		log, _, err := e.coordinator().SquashMergePreCommit(base, ours, theirs)
		if err != nil {
			return err
		}
		return e.savePendingSquash(log, base, ours, theirs)
	}
	return cmd
}

// newGitAIResetCmd wraps `git reset`. Working logs are keyed by base
// commit SHA, so resetting to an older commit simply resumes (or starts)
// whatever working log already lives at that key; nothing needs explicit
// reconciliation.
func newGitAIResetCmd() *cobra.Command {
	cmd := passthroughCmd("reset -- [git reset args...]", "git reset")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		e := mustEnv(cmd)
		return runGit(e.root, append([]string{"reset"}, args...)...)
	}
	return cmd
}

// newGitAIPushCmd wraps `git push`, additionally pushing the authorship
// notes ref so a collaborator pulling this branch can blame it.
func newGitAIPushCmd() *cobra.Command {
	cmd := passthroughCmd("push -- [git push args...]", "git push, then push the authorship notes ref")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		e := mustEnv(cmd)
		if err := runGit(e.root, append([]string{"push"}, args...)...); err != nil {
			return err
		}
		if !e.initialized() {
			return nil
		}
		remote := firstNonFlag(args, "origin")
		return git.PushNotes(e.root, remote)
	}
	return cmd
}

// newGitAIFetchCmd wraps `git fetch`, additionally fetching and merging
// the authorship notes ref.
func newGitAIFetchCmd() *cobra.Command {
	cmd := passthroughCmd("fetch -- [git fetch args...]", "git fetch, then fetch and merge the authorship notes ref")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		e := mustEnv(cmd)
		if err := runGit(e.root, append([]string{"fetch"}, args...)...); err != nil {
			return err
		}
		if !e.initialized() {
			return nil
		}
		remote := firstNonFlag(args, "origin")
		if err := git.FetchNotes(e.root, remote); err != nil {
			return err
		}
		return git.MergeFetchedNotes(e.root)
	}
	return cmd
}

func firstNonFlag(args []string, fallback string) string {
	for _, a := range args {
		if !strings.HasPrefix(a, "-") {
			return a
		}
	}
	return fallback
}

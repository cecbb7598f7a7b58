package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// NotesRef is the dedicated git-notes ref the authorship log is stored
// under, one note per commit (see internal/rewrite.NotesStore).
const NotesRef = "refs/notes/authorship"

// HasNotesRef reports whether the notes ref exists locally, the signal
// internal/project uses to decide whether a repo has been initialized.
func HasNotesRef(root string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", NotesRef)
	cmd.Dir = root
	return cmd.Run() == nil
}

// PushNotes pushes the authorship notes ref to remote, retrying once
// against a fetch+merge if the remote has notes we don't have locally —
// grounded on internal/provenance.PushBranch's fetch-and-rebuild retry,
// adapted to git's own notes-merge machinery instead of a manual
// read-tree since notes already have a dedicated merge command.
func PushNotes(root, remote string) error {
	if remote == "" {
		remote = "origin"
	}
	if cmd := exec.Command("git", "remote", "get-url", remote); cmd.Run() != nil {
		return nil // no remote configured, nothing to do
	}

	refspec := NotesRef + ":" + NotesRef
	push := exec.Command("git", "push", remote, refspec)
	push.Dir = root
	if out, err := push.CombinedOutput(); err == nil {
		return nil
	} else if !strings.Contains(string(out), "fetch first") && !strings.Contains(string(out), "non-fast-forward") {
		return fmt.Errorf("git: push notes: %w: %s", err, out)
	}

	if err := FetchNotes(root, remote); err != nil {
		return err
	}
	if err := MergeFetchedNotes(root); err != nil {
		return err
	}

	push = exec.Command("git", "push", remote, refspec)
	push.Dir = root
	if out, err := push.CombinedOutput(); err != nil {
		return fmt.Errorf("git: push notes (after merge): %w: %s", err, out)
	}
	return nil
}

// FetchNotes fetches the remote's authorship notes into
// refs/notes/origin/authorship, leaving the local notes ref untouched so
// PushNotes can merge explicitly.
func FetchNotes(root, remote string) error {
	if remote == "" {
		remote = "origin"
	}
	refspec := NotesRef + ":refs/notes/origin/authorship"
	cmd := exec.Command("git", "fetch", remote, refspec)
	cmd.Dir = root
	if out, err := cmd.CombinedOutput(); err != nil {
		if strings.Contains(string(out), "couldn't find remote ref") {
			return nil // remote has no notes yet
		}
		return fmt.Errorf("git: fetch notes: %w: %s", err, out)
	}
	return nil
}

// MergeFetchedNotes merges refs/notes/origin/authorship (left by FetchNotes)
// into the local notes ref via git's union strategy, making fetched
// authorship data visible to Load without touching entries only present
// locally.
func MergeFetchedNotes(root string) error {
	cmd := exec.Command("git", "notes", "--ref="+NotesRef, "merge", "-s", "union", "refs/notes/origin/authorship")
	cmd.Dir = root
	if out, err := cmd.CombinedOutput(); err != nil {
		if strings.Contains(string(out), "no notes ref") || strings.Contains(string(out), "unknown revision") {
			return nil // nothing fetched yet
		}
		return fmt.Errorf("git: merge notes: %w: %s", err, out)
	}
	return nil
}

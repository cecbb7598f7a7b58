// Package checkpointer implements the checkpoint orchestrator (spec
// component C7): given the current working copy and the previous
// checkpoint's file state, it builds one workinglog.Checkpoint covering
// every file with a non-empty added or deleted line set.
//
// Grounded on the teacher's internal/hook.HandlePostToolUse (the closest
// analog of "observe the working copy and emit a record"), generalized
// from a single-tool-call payload to a full git-status scan, and on
// internal/project for root/paths resolution and internal/provenance's
// exec.Command("git", ...) plumbing style.
package checkpointer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	blamegit "github.com/blametrail/authorship-engine/internal/git"
	"github.com/blametrail/authorship-engine/internal/lineset"
	"github.com/blametrail/authorship-engine/internal/workinglog"
)

// PreviousState maps file path to the content it held as of the previous
// checkpoint (or the base commit's tree, on the first checkpoint).
type PreviousState map[string]string

// AgentContext carries the active AI session, if any, into a checkpoint.
// A nil AgentContext (or one with a nil AgentID) means no interactive
// session is active; the checkpoint falls back to Human or Passthrough.
type AgentContext struct {
	AgentID    *workinglog.AgentID
	Transcript []workinglog.Message
}

// Orchestrator builds checkpoints by comparing the working copy rooted at
// Root against a PreviousState, persisting new file content into Log.
type Orchestrator struct {
	Root string
	Log  *workinglog.Log
}

// New returns an orchestrator for the repository at root, persisting blobs
// and checkpoints through log.
func New(root string, log *workinglog.Log) *Orchestrator {
	return &Orchestrator{Root: root, Log: log}
}

// ChangedFiles enumerates tracked paths with any working-tree change,
// excluding unmerged paths. Ignored paths are excluded because `git
// status` omits them by default (no --ignored flag is passed).
func (o *Orchestrator) ChangedFiles() ([]string, error) {
	cmd := exec.Command("git", "status", "--porcelain=v1")
	cmd.Dir = o.Root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("checkpointer: git status: %w", err)
	}

	seen := map[string]bool{}
	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		if strings.ContainsRune(code, 'U') || code == "AA" || code == "DD" {
			continue
		}
		path := unquotePath(strings.TrimSpace(line[3:]))
		// Renames report as "old -> new"; only the new path matters here.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func unquotePath(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

// SnapshotFromCheckpoints reconstructs the previous-state map a new
// checkpoint should diff against: the latest persisted content for every
// file touched by any earlier checkpoint in the journal.
func SnapshotFromCheckpoints(log *workinglog.Log, checkpoints []workinglog.Checkpoint) (PreviousState, error) {
	prev := PreviousState{}
	for _, cp := range checkpoints {
		for _, e := range cp.Entries {
			content, err := log.ReadBlob(e.BlobSHA)
			if err != nil {
				return nil, fmt.Errorf("checkpointer: read blob for %s: %w", e.FilePath, err)
			}
			prev[e.FilePath] = content
		}
	}
	return prev, nil
}

// SnapshotFromBaseTree reads base-commit content for the given paths, used
// to seed PreviousState before any checkpoint has been recorded. Paths
// absent from the base tree (new files) are simply omitted.
func SnapshotFromBaseTree(root, baseSHA string, paths []string) PreviousState {
	prev := PreviousState{}
	for _, p := range paths {
		if content, err := blamegit.ShowFile(root, baseSHA, p); err == nil {
			prev[p] = content
		}
	}
	return prev
}

// Build enumerates working-copy changes against prev, persists new file
// content into the blob store, computes per-file added/deleted line
// ranges and the combined fingerprint, and returns the checkpoint to
// append. ok is false if no file's line ranges actually changed, in which
// case no checkpoint should be appended (§4.7 step 5).
func (o *Orchestrator) Build(prev PreviousState, agent *AgentContext, author string, timestamp int64) (workinglog.Checkpoint, bool, error) {
	paths, err := o.ChangedFiles()
	if err != nil {
		return workinglog.Checkpoint{}, false, err
	}

	// Deleted-from-working-tree files that still hold prior text content
	// must be considered too, even if `git status` already lists them (it
	// does, as a "D" status), so no extra enumeration is needed there.

	var entries []workinglog.Entry
	fingerprint := map[string]string{}

	for _, path := range paths {
		newContent, existed, err := readCurrent(o.Root, path)
		if err != nil {
			return workinglog.Checkpoint{}, false, err
		}
		prevContent, hadPrev := prev[path]

		if !existed && !hadPrev {
			continue
		}
		if isBinary(newContent) || (hadPrev && isBinary(prevContent)) {
			continue
		}

		blobSHA, err := o.Log.PersistFileVersion(newContent)
		if err != nil {
			return workinglog.Checkpoint{}, false, fmt.Errorf("checkpointer: persist %s: %w", path, err)
		}

		added, deleted := lineDiff(normalizeForDiff(prevContent), normalizeForDiff(newContent))
		if added.IsEmpty() && deleted.IsEmpty() {
			continue
		}

		entries = append(entries, workinglog.Entry{
			FilePath:     path,
			BlobSHA:      blobSHA,
			AddedLines:   added,
			DeletedLines: deleted,
		})
		fingerprint[path] = blobSHA
	}

	if len(entries) == 0 {
		return workinglog.Checkpoint{}, false, nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].FilePath < entries[j].FilePath })

	kind := workinglog.Human
	var agentID *workinglog.AgentID
	var transcript []workinglog.Message
	if agent != nil && agent.AgentID != nil {
		kind = workinglog.AiAgent
		agentID = agent.AgentID
		transcript = agent.Transcript
	} else if DetectCIContext() {
		kind = workinglog.Passthrough
	}

	var stats workinglog.LineStats
	for _, e := range entries {
		stats.Added += e.AddedLines.Len()
		stats.Deleted += e.DeletedLines.Len()
	}

	cp := workinglog.Checkpoint{
		DiffHash:   combinedFingerprint(fingerprint),
		Author:     author,
		AgentID:    agentID,
		Transcript: transcript,
		Timestamp:  timestamp,
		Kind:       kind,
		Entries:    entries,
		LineStats:  stats,
	}
	return cp, true, nil
}

// DetectCIContext reports whether the process is running under a
// recognized CI environment, restoring original_source's CI/bot-context
// detector (§6.2 of the expanded spec). It never mints a new author
// sentinel — it only steers the Human/Passthrough choice above when no
// interactive agent session is active.
func DetectCIContext() bool {
	for _, key := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI"} {
		v := os.Getenv(key)
		if v != "" && v != "0" && v != "false" {
			return true
		}
	}
	return false
}

func readCurrent(root, path string) (content string, existed bool, err error) {
	data, err := os.ReadFile(filepath.Join(root, path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("checkpointer: read %s: %w", path, err)
	}
	return string(data), true, nil
}

func isBinary(content string) bool {
	return strings.IndexByte(content, 0) >= 0
}

// normalizeForDiff replaces invalid UTF-8 with the replacement character
// and ensures a trailing newline, for diffing purposes only — the stored
// blob keeps the original bytes.
func normalizeForDiff(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, string(utf8.RuneError))
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

func combinedFingerprint(pairs map[string]string) string {
	type kv struct{ path, hash string }
	list := make([]kv, 0, len(pairs))
	for p, h := range pairs {
		list = append(list, kv{p, h})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].path < list[j].path })

	h := sha256.New()
	for _, e := range list {
		h.Write([]byte(e.path))
		h.Write([]byte{0})
		h.Write([]byte(e.hash))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// lineDiff compares oldText and newText line by line via LCS, returning
// the 1-based line numbers deleted from oldText and added in newText.
// Generalizes internal/lineset's ChangedLines (which only reports the new
// side) to report both sides, matching §4.7 step 3's added/deleted pair.
func lineDiff(oldText, newText string) (added, deleted lineset.LineSet) {
	if oldText == newText {
		return lineset.LineSet{}, lineset.LineSet{}
	}

	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	if len(oldLines) == 0 {
		return lineset.FromRange(1, len(newLines)), lineset.LineSet{}
	}
	if len(newLines) == 0 {
		return lineset.LineSet{}, lineset.FromRange(1, len(oldLines))
	}
	if len(oldLines)*len(newLines) > 10000 {
		return lineset.FromRange(1, len(newLines)), lineset.FromRange(1, len(oldLines))
	}

	matchedOld, matchedNew := lcsMatch(oldLines, newLines)

	var addedLines, deletedLines []int
	for j, m := range matchedNew {
		if !m {
			addedLines = append(addedLines, j+1)
		}
	}
	for i, m := range matchedOld {
		if !m {
			deletedLines = append(deletedLines, i+1)
		}
	}
	return lineset.New(addedLines...), lineset.New(deletedLines...)
}

func lcsMatch(a, b []string) (matchedA, matchedB []bool) {
	m, n := len(a), len(b)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	matchedA = make([]bool, m)
	matchedB = make([]bool, n)
	i, j := m, n
	for i > 0 && j > 0 {
		if a[i-1] == b[j-1] {
			matchedA[i-1] = true
			matchedB[j-1] = true
			i--
			j--
		} else if dp[i-1][j] >= dp[i][j-1] {
			i--
		} else {
			j--
		}
	}
	return matchedA, matchedB
}

// splitLines splits on "\n" and drops the trailing empty element a
// terminating newline otherwise produces, so line numbers correspond to
// actual lines rather than counting one past the last line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "\n")
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

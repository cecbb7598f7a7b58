// Package rewrite implements the history-rewrite coordinator (spec
// component C8): retargeting an authorship log across amend, squash-merge,
// and rebase, per §4.8.
//
// Grounded on internal/provenance/branch.go's git-plumbing sequence for
// constructing a commit object outside the working tree, and
// original_source/src/authorship/rebase_authorship.rs for the
// reconstruct-via-blame-replay algorithm the distilled spec compresses
// into one paragraph. The append-only rewrite-event journal follows
// internal/workinglog's JSON-lines journal shape.
package rewrite

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blametrail/authorship-engine/internal/authorshiplog"
	"github.com/blametrail/authorship-engine/internal/engineerr"
	"github.com/blametrail/authorship-engine/internal/git"
	"github.com/blametrail/authorship-engine/internal/serialize"
	"github.com/blametrail/authorship-engine/internal/workinglog"
)

// Kind distinguishes the three history-rewrite operations §4.8 names.
type Kind string

const (
	Amend  Kind = "amend"
	Squash Kind = "squash"
	Rebase Kind = "rebase"
)

// Event is one record in the rewrite-event journal: what kind of rewrite
// happened, when, and which commit SHAs it mapped from and to.
type Event struct {
	ID           string   `json:"id"`
	Kind         Kind     `json:"kind"`
	At           int64    `json:"at"`
	OriginalSHAs []string `json:"original_shas"`
	NewSHAs      []string `json:"new_shas"`
}

const journalName = "rewrite-log.jsonl"

// Journal is an append-only log of rewrite events, one JSON line per
// event, matching internal/workinglog's crash-safe append/scan shape.
type Journal struct {
	dir string
}

// OpenJournal returns a handle onto the rewrite journal rooted at dir
// (typically a paths.CacheDir). The directory need not exist yet.
func OpenJournal(dir string) *Journal {
	return &Journal{dir: dir}
}

// Append writes one event to the journal.
func (j *Journal) Append(ev Event) error {
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return engineerr.Wrap(engineerr.IoFailure, "rewrite: create journal dir", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return engineerr.Wrap(engineerr.IoFailure, "rewrite: marshal event", err)
	}
	f, err := os.OpenFile(filepath.Join(j.dir, journalName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return engineerr.Wrap(engineerr.IoFailure, "rewrite: open journal", err)
	}
	defer f.Close()
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return engineerr.Wrap(engineerr.IoFailure, "rewrite: append event", err)
	}
	return f.Sync()
}

// ReadAll returns every event in journal order, silently skipping a
// crash-truncated trailing line.
func (j *Journal) ReadAll() ([]Event, error) {
	f, err := os.Open(filepath.Join(j.dir, journalName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, engineerr.Wrap(engineerr.IoFailure, "rewrite: open journal", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, engineerr.Wrap(engineerr.IoFailure, "rewrite: scan journal", err)
	}
	return events, nil
}

// Store persists and retrieves one authorship log per commit SHA. Load on
// a commit with no stored log returns a fresh empty log rather than an
// error, per the decision that amending a commit with no prior authorship
// history starts empty (§9 Open Question 4).
type Store interface {
	Load(commitSHA string) (*authorshiplog.Log, error)
	Save(commitSHA string, log *authorshiplog.Log) error
	Delete(commitSHA string) error
}

// NotesStore backs Store with git notes under a dedicated ref, one note
// per commit, keeping the payload out of the worktree and out of commit
// history itself — grounded on internal/provenance's use of a dedicated
// ref for out-of-band metadata, adapted from a manifest-per-file orphan
// branch to git's own notes mechanism since the payload here is one blob
// per commit rather than a directory of files.
type NotesStore struct {
	Root string
}

func (s NotesStore) Load(commitSHA string) (*authorshiplog.Log, error) {
	cmd := exec.Command("git", "notes", "--ref="+git.NotesRef, "show", commitSHA)
	cmd.Dir = s.Root
	out, err := cmd.Output()
	if err != nil {
		return authorshiplog.New(commitSHA), nil
	}
	log, err := serialize.Unmarshal(string(out))
	if err != nil {
		return nil, engineerr.Wrap(engineerr.SchemaFailure, "rewrite: load note for "+commitSHA, err)
	}
	return log, nil
}

func (s NotesStore) Save(commitSHA string, log *authorshiplog.Log) error {
	data, err := serialize.Marshal(log)
	if err != nil {
		return err
	}
	cmd := exec.Command("git", "notes", "--ref="+git.NotesRef, "add", "-f", "-F", "-", commitSHA)
	cmd.Dir = s.Root
	cmd.Stdin = strings.NewReader(data)
	if err := cmd.Run(); err != nil {
		return engineerr.Wrap(engineerr.IoFailure, "rewrite: save note for "+commitSHA, err)
	}
	return nil
}

func (s NotesStore) Delete(commitSHA string) error {
	cmd := exec.Command("git", "notes", "--ref="+git.NotesRef, "remove", "--ignore-missing", commitSHA)
	cmd.Dir = s.Root
	if err := cmd.Run(); err != nil {
		return engineerr.Wrap(engineerr.IoFailure, "rewrite: delete note for "+commitSHA, err)
	}
	return nil
}

// Coordinator drives the three rewrite operations against a Store and a
// rewrite-event Journal.
type Coordinator struct {
	Root    string
	Store   Store
	Journal *Journal
}

// New builds a coordinator backed by git notes and a journal rooted at
// journalDir (typically paths.CacheDir).
func New(root, journalDir string) *Coordinator {
	return &Coordinator{Root: root, Store: NotesStore{Root: root}, Journal: OpenJournal(journalDir)}
}

func (c *Coordinator) logEvent(kind Kind, originalSHAs, newSHAs []string) error {
	return c.Journal.Append(Event{
		ID:           uuid.New().String(),
		Kind:         kind,
		At:           time.Now().Unix(),
		OriginalSHAs: originalSHAs,
		NewSHAs:      newSHAs,
	})
}

// Amend folds the given checkpoints (whatever was staged into the amend)
// into the authorship log of oldSHA, retargets it to newSHA, and records
// the rewrite event. If oldSHA carries no stored log, it starts from an
// empty one (§9 Open Question 4).
func (c *Coordinator) Amend(oldSHA, newSHA string, checkpoints []workinglog.Checkpoint) error {
	log, err := c.Store.Load(oldSHA)
	if err != nil {
		return err
	}
	for _, cp := range checkpoints {
		log.Apply(cp)
	}
	log.Finalize()
	log.BaseCommitSHA = newSHA

	if err := c.Store.Save(newSHA, log); err != nil {
		return err
	}
	if oldSHA != newSHA {
		if err := c.Store.Delete(oldSHA); err != nil {
			return err
		}
	}
	return c.logEvent(Amend, []string{oldSHA}, []string{newSHA})
}

// SquashMergePreCommit reconstructs the log a squash merge of ours into
// base via theirs will produce, before the real merge commit exists. It
// builds a hanging commit (a commit object reachable by nothing, used
// purely to diff and blame against) via a three-way merge favoring ours,
// and returns the reconstructed log along with the hanging commit's SHA.
// The caller performs the real commit afterward and finishes with
// CompleteSquashMerge.
func (c *Coordinator) SquashMergePreCommit(base, ours, theirs string) (*authorshiplog.Log, string, error) {
	treeSHA, err := git.MergeTreeFavoringOurs(c.Root, base, ours, theirs)
	if err != nil {
		return nil, "", engineerr.Wrap(engineerr.RewriteLineage, "squash pre-commit: merge-tree", err)
	}
	// Only ours is a parent: a second parent onto theirs would let git blame
	// trace into the target branch's own lineage instead of staying inside
	// the feature branch's authorship history being reconstructed here.
	hangingSHA, err := git.CommitTree(c.Root, treeSHA, []string{ours}, "authorship-engine: squash-merge reconstruction")
	if err != nil {
		return nil, "", engineerr.Wrap(engineerr.RewriteLineage, "squash pre-commit: commit-tree", err)
	}
	log, err := c.reconstructAt(hangingSHA, base, ours, theirs)
	return log, hangingSHA, err
}

// SquashMergePostCommit reconstructs the log for a squash merge that
// already happened as mergeCommitSHA — a real, reachable commit — so no
// hanging commit needs to be built.
func (c *Coordinator) SquashMergePostCommit(mergeCommitSHA, base, ours, theirs string) (*authorshiplog.Log, error) {
	return c.reconstructAt(mergeCommitSHA, base, ours, theirs)
}

// reconstructAt rebuilds an authorship log for commitSHA by diffing base
// against commitSHA to find every inserted line, blaming each at
// commitSHA to learn which commit its content traces to, and crediting it
// to whatever session owned that line in the corresponding parent's log.
// A blamed commit is credited from oursLog/theirsLog whenever it is
// reachable from ours/theirs respectively — not only when it is literally
// the branch tip — since a real feature branch is almost always more than
// one commit, and oursLog/theirsLog (loaded from the tip) already carry
// attribution for every line the branch has ever introduced. A commit
// already reachable from base carries no new authorship and is left
// unattested.
func (c *Coordinator) reconstructAt(commitSHA, base, ours, theirs string) (*authorshiplog.Log, error) {
	oursLog, err := c.Store.Load(ours)
	if err != nil {
		return nil, err
	}
	theirsLog, err := c.Store.Load(theirs)
	if err != nil {
		return nil, err
	}

	changed, err := git.DiffTreeToTree(c.Root, base, commitSHA)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.RewriteLineage, "reconstruct: diff-tree", err)
	}

	result := authorshiplog.New(commitSHA)
	for _, cf := range changed {
		for _, line := range cf.InsertedLines {
			blame, err := git.BlameRangeAt(c.Root, commitSHA, cf.Path, line, line)
			if err != nil {
				continue
			}
			entry, ok := blame[line]
			if !ok {
				continue
			}
			source, err := c.sourceLogFor(entry.SHA, base, ours, theirs, oursLog, theirsLog)
			if err != nil {
				return nil, err
			}
			if source == nil {
				continue
			}
			hash, prompt, ok := source.GetLineAttribution(cf.Path, entry.OrigLine)
			if !ok {
				continue
			}
			result.Credit(cf.Path, hash, prompt, line)
		}
	}
	result.Finalize()
	return result, nil
}

// sourceLogFor decides which branch's log a blamed commit's content
// belongs to: base lineage (reachable from base) carries no new
// authorship, so it returns nil; otherwise it returns oursLog or
// theirsLog for any commit reachable from that branch's tip, not just the
// tip itself.
func (c *Coordinator) sourceLogFor(blamedSHA, base, ours, theirs string, oursLog, theirsLog *authorshiplog.Log) (*authorshiplog.Log, error) {
	onBase, err := git.IsAncestor(c.Root, blamedSHA, base)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.RewriteLineage, "reconstruct: is-ancestor base", err)
	}
	if onBase {
		return nil, nil
	}
	onOurs, err := git.IsAncestor(c.Root, blamedSHA, ours)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.RewriteLineage, "reconstruct: is-ancestor ours", err)
	}
	if onOurs {
		return oursLog, nil
	}
	onTheirs, err := git.IsAncestor(c.Root, blamedSHA, theirs)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.RewriteLineage, "reconstruct: is-ancestor theirs", err)
	}
	if onTheirs {
		return theirsLog, nil
	}
	return nil, nil
}

// CompleteSquashMerge retargets a reconstructed log to the real merge
// commit SHA, saves it, and records the rewrite event. ours and theirs
// keep their own stored logs: both commits remain independently
// reachable and blame-able regardless of the squash.
func (c *Coordinator) CompleteSquashMerge(log *authorshiplog.Log, finalSHA string, originalSHAs []string) error {
	log.BaseCommitSHA = finalSHA
	log.Finalize()
	if err := c.Store.Save(finalSHA, log); err != nil {
		return err
	}
	return c.logEvent(Squash, originalSHAs, []string{finalSHA})
}

// Rebase reconstructs the authorship log for each commit in a rebased
// linear chain, where oldSHAs and newSHAs are parallel slices — oldSHAs[i]
// rebased onto newSHAs[i] — walked oldest-first so each step's "base" is
// the previous step's already-retargeted new commit.
func (c *Coordinator) Rebase(oldSHAs, newSHAs []string) error {
	if len(oldSHAs) != len(newSHAs) {
		return engineerr.New(engineerr.RewriteLineage, "rebase: mismatched commit counts")
	}
	for i := range oldSHAs {
		oldSHA, newSHA := oldSHAs[i], newSHAs[i]
		log, err := c.Store.Load(oldSHA)
		if err != nil {
			return err
		}

		var base string
		if i == 0 {
			parentBase, err := git.MergeBase(c.Root, oldSHA, newSHA)
			if err != nil {
				base = oldSHA
			} else {
				base = parentBase
			}
		} else {
			base = newSHAs[i-1]
		}

		changed, err := git.DiffTreeToTree(c.Root, base, newSHA)
		if err != nil {
			return engineerr.Wrap(engineerr.RewriteLineage, fmt.Sprintf("rebase: diff-tree for %s", newSHA), err)
		}

		rebuilt := authorshiplog.New(newSHA)
		for _, cf := range changed {
			// log is indexed by oldSHA's own line numbers, which rarely
			// match newSHA's: any commit upstream of base between the old
			// and new history can shift a file's lines. Match content
			// against oldSHA's version of the file before looking up
			// attribution, instead of assuming the line number held.
			oldContent, _ := git.ReadTreeFile(c.Root, oldSHA, cf.Path)
			newContent, _ := git.ReadTreeFile(c.Root, newSHA, cf.Path)
			lineMap := git.MatchLines(oldContent, newContent)

			for _, line := range cf.InsertedLines {
				oldLine := line
				if mapped, ok := lineMap[line]; ok {
					oldLine = mapped
				}
				hash, prompt, ok := log.GetLineAttribution(cf.Path, oldLine)
				if !ok {
					continue
				}
				rebuilt.Credit(cf.Path, hash, prompt, line)
			}
		}
		rebuilt.Finalize()

		if err := c.Store.Save(newSHA, rebuilt); err != nil {
			return err
		}
		if oldSHA != newSHA {
			if err := c.Store.Delete(oldSHA); err != nil {
				return err
			}
		}
	}
	return c.logEvent(Rebase, oldSHAs, newSHAs)
}

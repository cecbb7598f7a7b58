package cli

import (
	"os"
	"path/filepath"

	"github.com/blametrail/authorship-engine/internal/authorshiplog"
	"github.com/blametrail/authorship-engine/internal/git"
	"github.com/blametrail/authorship-engine/internal/lineset"
	"github.com/blametrail/authorship-engine/internal/serialize"
	"github.com/blametrail/authorship-engine/internal/workinglog"
)

const carryFileName = "carry.authorship"

// foldPlainCommit folds parent's stored log and any carried-forward
// attribution plus every checkpoint recorded since parent into a new log
// for newSHA, restricted to the lines git actually committed, and leaves
// parent's own stored log untouched — unlike Amend, a plain commit's
// parent remains independently reachable history.
func (e *env) foldPlainCommit(parent, newSHA string) error {
	store := e.store()
	log, err := store.Load(parent)
	if err != nil {
		return err
	}

	wl := e.workingLogFor(parent)
	if carry, err := loadCarry(wl); err != nil {
		return err
	} else if carry != nil {
		creditAll(log, carry)
	}

	checkpoints, err := wl.ReadAllCheckpoints()
	if err != nil {
		return err
	}
	for _, cp := range checkpoints {
		log.Apply(cp)
	}
	log.Finalize()

	committed, err := committedLineRanges(e.root, parent, newSHA)
	if err != nil {
		return err
	}

	finalLog := log
	if committed != nil {
		finalLog = log.FilterToCommittedLines(committed)
	}
	finalLog.BaseCommitSHA = newSHA
	if err := store.Save(newSHA, finalLog); err != nil {
		return err
	}

	if committed != nil {
		unstaged, err := unstagedLineRanges(e.root, newSHA, checkpoints)
		if err != nil {
			return err
		}
		if len(unstaged) > 0 {
			if err := saveCarry(e.workingLogFor(newSHA), log.ExtractUnstaged(unstaged)); err != nil {
				return err
			}
		}
	}

	return wl.Reset()
}

// committedLineRanges reports, per file, which lines in newSHA's tree are
// new relative to parent's. A "" parent (the repository's first commit)
// has no prior tree to diff against, so nil signals "don't filter" rather
// than "nothing changed".
func committedLineRanges(root, parent, newSHA string) (map[string]lineset.LineSet, error) {
	if parent == "" {
		return nil, nil
	}
	changed, err := git.DiffTreeToTree(root, parent, newSHA)
	if err != nil {
		return nil, err
	}
	out := map[string]lineset.LineSet{}
	for _, cf := range changed {
		out[cf.Path] = lineset.New(cf.InsertedLines...)
	}
	return out, nil
}

// unstagedLineRanges finds, among files any checkpoint touched, lines
// still present in the working copy but absent from newSHA's committed
// tree — the part of a partially-staged edit a plain commit left behind.
func unstagedLineRanges(root, newSHA string, checkpoints []workinglog.Checkpoint) (map[string]lineset.LineSet, error) {
	out := map[string]lineset.LineSet{}
	for _, path := range workinglog.EditedFiles(checkpoints) {
		committedContent, _ := git.ShowFile(root, newSHA, path)
		working, err := os.ReadFile(filepath.Join(root, path))
		if err != nil {
			continue
		}
		if string(working) == committedContent {
			continue
		}
		if changed := lineset.ChangedLines(committedContent, string(working), 1); !changed.IsEmpty() {
			out[path] = changed
		}
	}
	return out, nil
}

// creditAll folds every line src attests to into dst, preserving src's
// per-line session/prompt attribution rather than re-deriving it.
func creditAll(dst, src *authorshiplog.Log) {
	for _, fa := range src.Files {
		for _, entry := range fa.Entries {
			prompt := src.Prompts[entry.Hash]
			for _, line := range entry.LineRanges.Lines() {
				dst.Credit(fa.FilePath, entry.Hash, prompt, line)
			}
		}
	}
}

// loadCarry reads a working log's carried-forward authorship, left behind
// by a prior plain commit that didn't stage every checkpointed line.
func loadCarry(wl *workinglog.Log) (*authorshiplog.Log, error) {
	data, err := os.ReadFile(filepath.Join(wl.Dir(), carryFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return serialize.Unmarshal(string(data))
}

// saveCarry persists log's attribution for lines a commit left uncommitted
// in the working copy, to be folded into whichever commit picks them up.
func saveCarry(wl *workinglog.Log, log *authorshiplog.Log) error {
	if err := os.MkdirAll(wl.Dir(), 0o755); err != nil {
		return err
	}
	data, err := serialize.Marshal(log)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(wl.Dir(), carryFileName), []byte(data), 0o644)
}

// Package authorshiplog implements the authorship log (spec component C6):
// the finalized, per-commit, line-range attribution record built by folding
// a base commit's working-log checkpoints, one at a time, into a set of
// per-file attestation entries keyed by session short hash.
//
// Grounded on the teacher's internal/index.Rebuild (fold-a-sequence-of-
// records-into-a-consolidated-structure shape) and internal/lineset's range
// algebra (Shift/ApplyDeletions/ApplyInsertion), which is the load-bearing
// machinery for the line-shifting contract below.
package authorshiplog

import (
	"sort"

	"github.com/blametrail/authorship-engine/internal/lineset"
	"github.com/blametrail/authorship-engine/internal/sessionhash"
	"github.com/blametrail/authorship-engine/internal/workinglog"
)

// SchemaVersion is the explicit wire-format version readers must check
// before trusting a deserialized log (§4.10).
const SchemaVersion = "authorship/3.0.0"

// PromptRecord is the per-session analytics record attached to an
// attestation entry via its session hash.
type PromptRecord struct {
	AgentID         *workinglog.AgentID
	HumanAuthor     string
	Messages        []workinglog.Message
	TotalAdditions  int
	TotalDeletions  int
	AcceptedLines   int
	OverriddenLines int
}

// AttestationEntry asserts that a session authored a set of lines in a
// file.
type AttestationEntry struct {
	Hash       string
	LineRanges lineset.LineSet
}

// FileAttestation is the ordered list of attestation entries for one file.
type FileAttestation struct {
	FilePath string
	Entries  []AttestationEntry
}

// Log is a finalized, per-commit attribution record.
type Log struct {
	SchemaVersion string
	BaseCommitSHA string
	Prompts       map[string]*PromptRecord
	Files         []*FileAttestation
}

// New starts an empty log against the given base commit.
func New(baseCommitSHA string) *Log {
	return &Log{
		SchemaVersion: SchemaVersion,
		BaseCommitSHA: baseCommitSHA,
		Prompts:       map[string]*PromptRecord{},
	}
}

func (l *Log) fileFor(path string) *FileAttestation {
	for _, fa := range l.Files {
		if fa.FilePath == path {
			return fa
		}
	}
	fa := &FileAttestation{FilePath: path}
	l.Files = append(l.Files, fa)
	return fa
}

func (l *Log) resolveOrCreateSession(hash string, agentID *workinglog.AgentID) *PromptRecord {
	if l.Prompts == nil {
		l.Prompts = map[string]*PromptRecord{}
	}
	pr, ok := l.Prompts[hash]
	if !ok {
		pr = &PromptRecord{AgentID: agentID}
		l.Prompts[hash] = pr
	}
	return pr
}

// Apply folds one checkpoint into the log, per the construction algorithm
// of §4.6: resolve/create the session, then for each file entry process
// deletions (tracking overridden_lines against whichever session owned the
// deleted lines) before insertions (minting a fresh attestation entry for
// the acting session, unless the checkpoint is a Passthrough).
func (l *Log) Apply(cp workinglog.Checkpoint) {
	var sessionHash string
	var session *PromptRecord
	if cp.AgentID != nil {
		sessionHash = sessionhash.ShortHash(cp.AgentID.Tool, cp.AgentID.ID)
		session = l.resolveOrCreateSession(sessionHash, cp.AgentID)
		if len(cp.Transcript) > len(session.Messages) {
			session.Messages = cp.Transcript
		}
	}

	for _, e := range cp.Entries {
		fa := l.fileFor(e.FilePath)

		if !e.DeletedLines.IsEmpty() {
			if cp.Kind != workinglog.AiAgent {
				l.recordOverrides(fa, e.DeletedLines)
			}
			for i := range fa.Entries {
				fa.Entries[i].LineRanges = fa.Entries[i].LineRanges.Subtract(e.DeletedLines)
			}
			dl := e.DeletedLines.Lines()
			for i := len(dl) - 1; i >= 0; i-- {
				for j := range fa.Entries {
					fa.Entries[j].LineRanges = fa.Entries[j].LineRanges.Shift(dl[i]+1, -1)
				}
			}
		}

		if !e.AddedLines.IsEmpty() {
			insertionPoint := e.AddedLines.Min()
			count := e.AddedLines.Len()
			for i := range fa.Entries {
				fa.Entries[i].LineRanges = fa.Entries[i].LineRanges.ApplyInsertion(insertionPoint, count)
			}
			if cp.Kind != workinglog.Passthrough && sessionHash != "" {
				fa.Entries = append(fa.Entries, AttestationEntry{Hash: sessionHash, LineRanges: e.AddedLines})
			}
		}

		if session != nil {
			session.TotalAdditions += e.AddedLines.Len()
			session.TotalDeletions += e.DeletedLines.Len()
		}
	}
}

// recordOverrides credits overridden_lines to whichever sessions currently
// own any of the deleted line numbers, computed against the pre-deletion
// line ranges.
func (l *Log) recordOverrides(fa *FileAttestation, deleted lineset.LineSet) {
	for _, entry := range fa.Entries {
		count := 0
		for _, ln := range deleted.Lines() {
			if entry.LineRanges.Contains(ln) {
				count++
			}
		}
		if count == 0 {
			continue
		}
		if pr, ok := l.Prompts[entry.Hash]; ok {
			pr.OverriddenLines += count
		}
	}
}

// Credit appends line to the attestation entry for hash in filePath,
// creating the file/entry/session records as needed and copying prompt
// verbatim into the session the first time it's referenced. Used by the
// history-rewrite coordinator, which recovers (file, line, session)
// tuples by blame-replay rather than by folding checkpoints (§4.8).
func (l *Log) Credit(filePath, hash string, prompt *PromptRecord, line int) {
	fa := l.fileFor(filePath)
	for i := range fa.Entries {
		if fa.Entries[i].Hash == hash {
			fa.Entries[i].LineRanges = fa.Entries[i].LineRanges.Add(line)
			l.ensurePrompt(hash, prompt)
			return
		}
	}
	fa.Entries = append(fa.Entries, AttestationEntry{Hash: hash, LineRanges: lineset.New(line)})
	l.ensurePrompt(hash, prompt)
}

func (l *Log) ensurePrompt(hash string, prompt *PromptRecord) {
	if l.Prompts == nil {
		l.Prompts = map[string]*PromptRecord{}
	}
	if _, ok := l.Prompts[hash]; ok {
		return
	}
	if prompt == nil {
		l.Prompts[hash] = &PromptRecord{}
		return
	}
	cp := *prompt
	l.Prompts[hash] = &cp
}

// Finalize consolidates the log: drops empty entries, sorts each file's
// entries by session hash, merges consecutive same-hash entries, recomputes
// accepted_lines per session, and garbage-collects unreferenced prompts.
// Idempotent: Finalize(Finalize(l)) == Finalize(l).
func (l *Log) Finalize() {
	var kept []*FileAttestation
	for _, fa := range l.Files {
		var entries []AttestationEntry
		for _, e := range fa.Entries {
			if !e.LineRanges.IsEmpty() {
				entries = append(entries, e)
			}
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Hash < entries[j].Hash })

		var consolidated []AttestationEntry
		for _, e := range entries {
			if n := len(consolidated); n > 0 && consolidated[n-1].Hash == e.Hash {
				consolidated[n-1].LineRanges = consolidated[n-1].LineRanges.Union(e.LineRanges)
			} else {
				consolidated = append(consolidated, e)
			}
		}
		fa.Entries = consolidated
		if len(fa.Entries) > 0 {
			kept = append(kept, fa)
		}
	}
	l.Files = kept

	accepted := map[string]int{}
	referenced := map[string]bool{}
	for _, fa := range l.Files {
		for _, e := range fa.Entries {
			accepted[e.Hash] += e.LineRanges.Len()
			referenced[e.Hash] = true
		}
	}
	for hash, pr := range l.Prompts {
		if !referenced[hash] {
			delete(l.Prompts, hash)
			continue
		}
		pr.AcceptedLines = accepted[hash]
	}
}

// GetLineAttribution scans a file's entries from newest to oldest and
// returns the first entry whose ranges contain line, along with its prompt
// record.
func (l *Log) GetLineAttribution(filePath string, line int) (hash string, prompt *PromptRecord, ok bool) {
	for _, fa := range l.Files {
		if fa.FilePath != filePath {
			continue
		}
		for i := len(fa.Entries) - 1; i >= 0; i-- {
			e := fa.Entries[i]
			if e.LineRanges.Contains(line) {
				return e.Hash, l.Prompts[e.Hash], true
			}
		}
	}
	return "", nil, false
}

// FilterToCommittedLines returns a new log restricted to the given per-file
// committed line ranges: entries are clipped to those ranges, entries that
// become empty are dropped, files with no remaining entries are dropped,
// and unreferenced prompts are garbage-collected.
func (l *Log) FilterToCommittedLines(committed map[string]lineset.LineSet) *Log {
	return l.restrictTo(committed)
}

// ExtractUnstaged is the inverse of FilterToCommittedLines: it returns a new
// log containing only the entries intersected with a per-file map of
// unstaged line ranges, used to carry authorship for unstaged AI work
// forward to the next commit's working log.
func (l *Log) ExtractUnstaged(unstaged map[string]lineset.LineSet) *Log {
	return l.restrictTo(unstaged)
}

func (l *Log) restrictTo(ranges map[string]lineset.LineSet) *Log {
	out := &Log{SchemaVersion: l.SchemaVersion, BaseCommitSHA: l.BaseCommitSHA, Prompts: map[string]*PromptRecord{}}
	for _, fa := range l.Files {
		allowed, ok := ranges[fa.FilePath]
		if !ok {
			continue
		}
		var entries []AttestationEntry
		for _, e := range fa.Entries {
			restricted := intersectLineSet(e.LineRanges, allowed)
			if !restricted.IsEmpty() {
				entries = append(entries, AttestationEntry{Hash: e.Hash, LineRanges: restricted})
			}
		}
		if len(entries) == 0 {
			continue
		}
		out.Files = append(out.Files, &FileAttestation{FilePath: fa.FilePath, Entries: entries})
	}
	for _, fa := range out.Files {
		for _, e := range fa.Entries {
			if _, ok := out.Prompts[e.Hash]; ok {
				continue
			}
			if pr, ok := l.Prompts[e.Hash]; ok {
				cp := *pr
				out.Prompts[e.Hash] = &cp
			}
		}
	}
	return out
}

func intersectLineSet(a, b lineset.LineSet) lineset.LineSet {
	var keep []int
	for _, ln := range a.Lines() {
		if b.Contains(ln) {
			keep = append(keep, ln)
		}
	}
	return lineset.New(keep...)
}

// Stats summarizes attested authorship. totalFileLines, if non-nil, maps
// file path to its current total line count; when provided, TotalLines and
// HumanAuthoredLines are populated as well as the AI-only figures the log
// can compute on its own.
type Stats struct {
	TotalLines         int
	AIAuthoredLines    int
	HumanAuthoredLines int
	BySession          map[string]int
}

// Stats computes attribution totals grounded on original_source's
// src/metrics/attrs.rs, the AI/human line-count breakdown the distilled
// spec omitted but original_source tracks.
func (l *Log) Stats(totalFileLines map[string]int) Stats {
	st := Stats{BySession: map[string]int{}}
	for _, fa := range l.Files {
		for _, e := range fa.Entries {
			n := e.LineRanges.Len()
			st.AIAuthoredLines += n
			st.BySession[e.Hash] += n
		}
	}
	if totalFileLines != nil {
		total := 0
		for _, n := range totalFileLines {
			total += n
		}
		st.TotalLines = total
		if st.TotalLines > st.AIAuthoredLines {
			st.HumanAuthoredLines = st.TotalLines - st.AIAuthoredLines
		}
	}
	return st
}

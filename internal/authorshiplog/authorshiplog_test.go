package authorshiplog

import (
	"testing"

	"github.com/blametrail/authorship-engine/internal/lineset"
	"github.com/blametrail/authorship-engine/internal/workinglog"
)

func aiCheckpoint(tool, id string, added lineset.LineSet) workinglog.Checkpoint {
	return workinglog.Checkpoint{
		AgentID: &workinglog.AgentID{Tool: tool, ID: id},
		Kind:    workinglog.AiAgent,
		Entries: []workinglog.Entry{{FilePath: "a.txt", AddedLines: added}},
	}
}

func humanCheckpoint(added, deleted lineset.LineSet) workinglog.Checkpoint {
	return workinglog.Checkpoint{
		Kind:    workinglog.Human,
		Entries: []workinglog.Entry{{FilePath: "a.txt", AddedLines: added, DeletedLines: deleted}},
	}
}

// TestApply_SimpleInsertThenHumanOverride mirrors scenario S1: an AI session
// adds line 3, then a human checkpoint deletes it. The session's
// OverriddenLines must increase by exactly 1, and after the human checkpoint
// line 3 has no surviving attestation.
func TestApply_SimpleInsertThenHumanOverride(t *testing.T) {
	l := New("base-sha")
	l.Apply(aiCheckpoint("claude-code", "sess-x", lineset.New(3)))

	session := l.Prompts[firstHash(l)]
	if session == nil {
		t.Fatal("expected a session to be resolved")
	}

	l.Apply(humanCheckpoint(lineset.LineSet{}, lineset.New(3)))

	if session.OverriddenLines != 1 {
		t.Errorf("OverriddenLines = %d, want 1", session.OverriddenLines)
	}

	l.Finalize()
	if _, _, ok := l.GetLineAttribution("a.txt", 3); ok {
		t.Errorf("line 3 should have no surviving attestation after override+finalize")
	}
}

func TestApply_DeletionShiftsRemainingRanges(t *testing.T) {
	l := New("base-sha")
	l.Apply(aiCheckpoint("claude-code", "sess-x", lineset.New(1, 2, 3, 4, 5)))

	// Delete line 2: lines 3,4,5 should shift down to 2,3,4.
	l.Apply(workinglog.Checkpoint{
		Kind: workinglog.Human,
		Entries: []workinglog.Entry{
			{FilePath: "a.txt", DeletedLines: lineset.New(2)},
		},
	})
	l.Finalize()

	hash, _, ok := l.GetLineAttribution("a.txt", 2)
	if !ok {
		t.Fatal("expected attribution at line 2 after shift")
	}
	if hash == "" {
		t.Error("expected non-empty session hash")
	}
	if _, _, ok := l.GetLineAttribution("a.txt", 5); ok {
		t.Errorf("line 5 should no longer be attributed after the shift (only 4 lines remain)")
	}
}

func TestApply_InsertionBelowRangesLeavesThemInPlace(t *testing.T) {
	l := New("base-sha")
	l.Apply(aiCheckpoint("claude-code", "sess-a", lineset.New(1, 2)))
	l.Apply(aiCheckpoint("claude-code", "sess-b", lineset.New(5))) // insert at line 5, after lines 1-2, which stay in place
	l.Finalize()

	if hash, _, ok := l.GetLineAttribution("a.txt", 1); !ok || hash == "" {
		t.Errorf("line 1 attribution missing after insertion elsewhere")
	}
}

func TestFinalize_Convergence(t *testing.T) {
	l := New("base-sha")
	l.Apply(aiCheckpoint("claude-code", "sess-x", lineset.New(1, 2, 3)))
	l.Apply(humanCheckpoint(lineset.LineSet{}, lineset.New(2)))
	l.Finalize()

	snapshot := snapshotRanges(l)
	l.Finalize()
	if !rangesEqual(snapshot, snapshotRanges(l)) {
		t.Errorf("Finalize is not idempotent: %v != %v", snapshot, snapshotRanges(l))
	}
}

func TestFinalize_ConsolidatesSameSessionEntries(t *testing.T) {
	l := New("base-sha")
	l.Apply(aiCheckpoint("claude-code", "sess-x", lineset.New(1)))
	l.Apply(aiCheckpoint("claude-code", "sess-x", lineset.New(3)))
	l.Finalize()

	if len(l.Files) != 1 {
		t.Fatalf("expected 1 file attestation, got %d", len(l.Files))
	}
	if len(l.Files[0].Entries) != 1 {
		t.Fatalf("expected entries for the same session to consolidate into 1, got %d", len(l.Files[0].Entries))
	}
}

func TestFinalize_DropsUnreferencedPrompts(t *testing.T) {
	l := New("base-sha")
	l.Apply(aiCheckpoint("claude-code", "sess-x", lineset.New(1)))
	l.Apply(humanCheckpoint(lineset.LineSet{}, lineset.New(1))) // deletes the only AI line
	l.Finalize()

	if len(l.Prompts) != 0 {
		t.Errorf("expected unreferenced prompt to be garbage-collected, got %d prompts", len(l.Prompts))
	}
}

func TestFilterToCommittedLines(t *testing.T) {
	l := New("base-sha")
	l.Apply(aiCheckpoint("claude-code", "sess-x", lineset.New(1, 2, 3)))
	l.Finalize()

	filtered := l.FilterToCommittedLines(map[string]lineset.LineSet{
		"a.txt": lineset.New(1, 2),
	})
	if _, _, ok := filtered.GetLineAttribution("a.txt", 3); ok {
		t.Errorf("line 3 should have been filtered out")
	}
	if _, _, ok := filtered.GetLineAttribution("a.txt", 1); !ok {
		t.Errorf("line 1 should remain after filtering")
	}
}

func TestApply_InsertionShiftsExistingRangesDown(t *testing.T) {
	l := New("base-sha")
	l.Apply(aiCheckpoint("claude-code", "sess-a", lineset.New(10)))
	// sess-b's insertion at line 1 shifts sess-a's line 10 to line 11.
	l.Apply(aiCheckpoint("claude-code", "sess-b", lineset.New(1)))

	hash, _, ok := l.GetLineAttribution("a.txt", 11)
	if !ok {
		t.Fatal("expected attribution at shifted line 11")
	}
	if hash == "" {
		t.Error("expected a session hash")
	}
}

func firstHash(l *Log) string {
	for h := range l.Prompts {
		return h
	}
	return ""
}

func snapshotRanges(l *Log) map[string]string {
	out := map[string]string{}
	for _, fa := range l.Files {
		for _, e := range fa.Entries {
			out[fa.FilePath+"|"+e.Hash] = e.LineRanges.String()
		}
	}
	return out
}

func rangesEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

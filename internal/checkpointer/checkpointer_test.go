package checkpointer

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/blametrail/authorship-engine/internal/workinglog"
)

func setupGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "Test")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestBuild_NewFileIsPureInsertion(t *testing.T) {
	dir := setupGitRepo(t)
	writeFile(t, dir, "a.txt", "line1\nline2\n")

	o := New(dir, workinglog.Open(t.TempDir()))
	cp, ok, err := o.Build(PreviousState{}, nil, "alice", 100)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !ok {
		t.Fatal("Build: ok = false, want true")
	}
	if len(cp.Entries) != 1 {
		t.Fatalf("Entries = %d, want 1", len(cp.Entries))
	}
	e := cp.Entries[0]
	if e.FilePath != "a.txt" {
		t.Errorf("FilePath = %q", e.FilePath)
	}
	if !e.AddedLines.Contains(1) || !e.AddedLines.Contains(2) {
		t.Errorf("AddedLines = %v, want lines 1-2", e.AddedLines)
	}
	if !e.DeletedLines.IsEmpty() {
		t.Errorf("DeletedLines = %v, want empty", e.DeletedLines)
	}
	if cp.Kind != workinglog.Human {
		t.Errorf("Kind = %v, want Human (no agent context)", cp.Kind)
	}
	if cp.DiffHash == "" {
		t.Error("expected non-empty DiffHash")
	}
}

func TestBuild_NoChangesReturnsNotOK(t *testing.T) {
	dir := setupGitRepo(t)
	o := New(dir, workinglog.Open(t.TempDir()))

	_, ok, err := o.Build(PreviousState{}, nil, "alice", 100)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ok {
		t.Error("Build: ok = true, want false with no working-tree changes")
	}
}

func TestBuild_ModificationAgainstPreviousState(t *testing.T) {
	dir := setupGitRepo(t)
	writeFile(t, dir, "a.txt", "line1\nline2 modified\nline3\n")

	prev := PreviousState{"a.txt": "line1\nline2\nline3\n"}
	o := New(dir, workinglog.Open(t.TempDir()))
	cp, ok, err := o.Build(prev, nil, "alice", 100)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !ok {
		t.Fatal("Build: ok = false, want true")
	}
	e := cp.Entries[0]
	if !e.AddedLines.Contains(2) {
		t.Errorf("AddedLines = %v, want line 2", e.AddedLines)
	}
	if !e.DeletedLines.Contains(2) {
		t.Errorf("DeletedLines = %v, want line 2", e.DeletedLines)
	}
}

func TestBuild_BinaryFileExcluded(t *testing.T) {
	dir := setupGitRepo(t)
	writeFile(t, dir, "bin.dat", "abc\x00def")

	o := New(dir, workinglog.Open(t.TempDir()))
	_, ok, err := o.Build(PreviousState{}, nil, "alice", 100)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ok {
		t.Error("Build: ok = true, want false (only change is a binary file)")
	}
}

func TestBuild_AgentContextMarksAiAgent(t *testing.T) {
	dir := setupGitRepo(t)
	writeFile(t, dir, "a.txt", "line1\n")

	o := New(dir, workinglog.Open(t.TempDir()))
	agent := &AgentContext{AgentID: &workinglog.AgentID{Tool: "claude-code", ID: "sess-1"}}
	cp, ok, err := o.Build(PreviousState{}, agent, "claude", 100)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !ok {
		t.Fatal("Build: ok = false")
	}
	if cp.Kind != workinglog.AiAgent {
		t.Errorf("Kind = %v, want AiAgent", cp.Kind)
	}
	if cp.AgentID == nil || cp.AgentID.ID != "sess-1" {
		t.Errorf("AgentID = %+v", cp.AgentID)
	}
}

func TestDetectCIContext(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("GITLAB_CI", "")
	if DetectCIContext() {
		t.Error("DetectCIContext() = true with no CI env vars set")
	}

	t.Setenv("CI", "true")
	if !DetectCIContext() {
		t.Error("DetectCIContext() = false with CI=true")
	}
}

func TestLineDiff_PureInsertionAndDeletion(t *testing.T) {
	added, deleted := lineDiff("", "a\nb\n")
	if added.String() != "1-2" || !deleted.IsEmpty() {
		t.Errorf("pure insertion: added=%v deleted=%v", added, deleted)
	}

	added, deleted = lineDiff("a\nb\n", "")
	if deleted.String() != "1-2" || !added.IsEmpty() {
		t.Errorf("pure deletion: added=%v deleted=%v", added, deleted)
	}
}

func TestCombinedFingerprint_OrderIndependent(t *testing.T) {
	a := combinedFingerprint(map[string]string{"a.txt": "h1", "b.txt": "h2"})
	b := combinedFingerprint(map[string]string{"b.txt": "h2", "a.txt": "h1"})
	if a != b {
		t.Errorf("combinedFingerprint not order-independent: %s != %s", a, b)
	}
	if a == "" {
		t.Error("expected non-empty fingerprint")
	}
}

package promptstore

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/blametrail/authorship-engine/internal/authorshiplog"
	"github.com/blametrail/authorship-engine/internal/lineset"
	"github.com/blametrail/authorship-engine/internal/project"
	"github.com/blametrail/authorship-engine/internal/workinglog"
)

func sampleAuthorshipLog() *authorshiplog.Log {
	log := authorshiplog.New("sha1")
	log.Files = append(log.Files, &authorshiplog.FileAttestation{
		FilePath: "a.go",
		Entries:  []authorshiplog.AttestationEntry{{Hash: "sess001", LineRanges: lineset.FromRange(5, 8)}},
	})
	log.Prompts["sess001"] = &authorshiplog.PromptRecord{
		AgentID:  &workinglog.AgentID{Tool: "claude-code", ID: "sess-1"},
		Messages: []workinglog.Message{{Role: "user", Text: "hi"}},
	}
	return log
}

type fakeStore struct {
	logs map[string]*Log
}

func (f fakeStore) Load(commitSHA string) (*Log, error) {
	return f.logs[commitSHA], nil
}

func setupRepoPaths(t *testing.T) project.Paths {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "a.go")
	cmd := exec.Command("git", "commit", "-m", "init")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %v\n%s", err, out)
	}
	return project.NewPaths(dir)
}

func sampleLog(sha string) *Log {
	return &Log{
		BaseCommitSHA: sha,
		Files: []FileAttestation{
			{FilePath: "a.go", Entries: []Entry{{Hash: "sess001", Ranges: "1-2"}}},
		},
		Prompts: map[string]PromptRecord{
			"sess001": {Tool: "claude-code", AgentSessionID: "s1", MessageCount: 2, TotalAdditions: 2, AcceptedLines: 2},
		},
	}
}

func TestRebuild_PopulatesTables(t *testing.T) {
	paths := setupRepoPaths(t)
	store := fakeStore{logs: map[string]*Log{"sha1": sampleLog("sha1")}}

	db, err := Rebuild(paths, store, []string{"sha1"})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	defer db.Close()

	entries, err := AttributionsForFile(db, "a.go")
	if err != nil {
		t.Fatalf("AttributionsForFile: %v", err)
	}
	if len(entries) != 1 || entries[0].Hash != "sess001" || entries[0].Ranges != "1-2" {
		t.Errorf("entries = %+v", entries)
	}

	stats, err := SessionStats(db)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if stats["sess001"] != 2 {
		t.Errorf("stats[sess001] = %d, want 2", stats["sess001"])
	}
}

func TestIsStale_TrueWhenNoDatabase(t *testing.T) {
	paths := setupRepoPaths(t)
	if !IsStale(paths) {
		t.Error("IsStale = false for a project with no database yet")
	}
}

func TestOpen_RebuildsWhenStale(t *testing.T) {
	paths := setupRepoPaths(t)
	store := fakeStore{logs: map[string]*Log{"sha1": sampleLog("sha1")}}

	db, err := Open(paths, store, []string{"sha1"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if IsStale(paths) {
		t.Error("IsStale = true immediately after a rebuild")
	}
}

func TestAdapt_FlattensAgentIDAndMessages(t *testing.T) {
	src := sampleAuthorshipLog()
	out := adapt(src)

	pr, ok := out.Prompts["sess001"]
	if !ok {
		t.Fatal("expected sess001 in adapted prompts")
	}
	if pr.Tool != "claude-code" || pr.AgentSessionID != "sess-1" {
		t.Errorf("adapted PromptRecord = %+v", pr)
	}
	if pr.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", pr.MessageCount)
	}
	if len(out.Files) != 1 || out.Files[0].Entries[0].Ranges != "5-8" {
		t.Errorf("Files = %+v", out.Files)
	}
}

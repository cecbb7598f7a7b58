package virtualattr

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/blametrail/authorship-engine/internal/authorshiplog"
	"github.com/blametrail/authorship-engine/internal/config"
	"github.com/blametrail/authorship-engine/internal/lineset"
)

type fakeLoader struct {
	log *authorshiplog.Log
	err error
}

func (f fakeLoader) Load(commitSHA string) (*authorshiplog.Log, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.log, nil
}

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

func commitFile(t *testing.T, dir, path, content string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, path), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	cmd := exec.Command("git", "add", path)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git add: %v\n%s", err, out)
	}
	cmd = exec.Command("git", "commit", "-m", "commit "+path)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %v\n%s", err, out)
	}
	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		t.Fatalf("rev-parse HEAD: %v", err)
	}
	return string(out[:40])
}

func TestCompute_MixedHumanAndSessionLines(t *testing.T) {
	dir := setupGitRepo(t)
	sha := commitFile(t, dir, "a.go", "line1\nline2\nline3\nline4\n")

	log := authorshiplog.New(sha)
	log.Files = append(log.Files, &authorshiplog.FileAttestation{
		FilePath: "a.go",
		Entries:  []authorshiplog.AttestationEntry{{Hash: "sess001", LineRanges: lineset.FromRange(2, 3)}},
	})
	log.Prompts["sess001"] = &authorshiplog.PromptRecord{}

	results, err := Compute(dir, fakeLoader{log: log}, sha, []string{"a.go"}, config.Default())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	r := results[0]
	if r.Err != nil {
		t.Fatalf("FileResult.Err = %v", r.Err)
	}
	if len(r.Lines) != 3 {
		t.Fatalf("Lines = %+v, want 3 segments", r.Lines)
	}
	if r.Lines[0].AuthorID != "human" || r.Lines[0].StartLine != 1 || r.Lines[0].EndLine != 1 {
		t.Errorf("segment 0 = %+v, want human 1-1", r.Lines[0])
	}
	if r.Lines[1].AuthorID != "sess001" || r.Lines[1].StartLine != 2 || r.Lines[1].EndLine != 3 {
		t.Errorf("segment 1 = %+v, want sess001 2-3", r.Lines[1])
	}
	if r.Lines[2].AuthorID != "human" || r.Lines[2].StartLine != 4 || r.Lines[2].EndLine != 4 {
		t.Errorf("segment 2 = %+v, want human 4-4", r.Lines[2])
	}
}

func TestCompute_NoLogEntryIsAllHuman(t *testing.T) {
	dir := setupGitRepo(t)
	sha := commitFile(t, dir, "b.go", "x\ny\n")

	log := authorshiplog.New(sha)
	results, err := Compute(dir, fakeLoader{log: log}, sha, []string{"b.go"}, config.Default())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(results[0].Lines) != 1 || results[0].Lines[0].AuthorID != "human" {
		t.Errorf("Lines = %+v, want single human segment", results[0].Lines)
	}
}

func TestCompute_MultipleFilesPreserveOrder(t *testing.T) {
	dir := setupGitRepo(t)
	commitFile(t, dir, "a.go", "a\n")
	sha := commitFile(t, dir, "b.go", "b\n")

	log := authorshiplog.New(sha)
	results, err := Compute(dir, fakeLoader{log: log}, sha, []string{"a.go", "b.go"}, config.Config{Concurrency: 2})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(results) != 2 || results[0].FilePath != "a.go" || results[1].FilePath != "b.go" {
		t.Errorf("results out of order: %+v", results)
	}
}

func TestCompute_MissingFileReturnsErrInResult(t *testing.T) {
	dir := setupGitRepo(t)
	sha := commitFile(t, dir, "a.go", "a\n")

	log := authorshiplog.New(sha)
	results, err := Compute(dir, fakeLoader{log: log}, sha, []string{"missing.go"}, config.Default())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if results[0].Err == nil {
		t.Error("expected non-nil Err for a path absent from the commit's tree")
	}
}

func TestCompute_ZeroConcurrencyFallsBackToDefault(t *testing.T) {
	dir := setupGitRepo(t)
	sha := commitFile(t, dir, "a.go", "a\n")

	log := authorshiplog.New(sha)
	_, err := Compute(dir, fakeLoader{log: log}, sha, []string{"a.go"}, config.Config{Concurrency: 0})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
}

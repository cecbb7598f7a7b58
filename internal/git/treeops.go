package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// OpenRepo opens the repository rooted at root.
func OpenRepo(root string) (*git.Repository, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("git: open repo: %w", err)
	}
	return repo, nil
}

// MergeBase returns the best common ancestor commit SHA of a and b.
func MergeBase(root, a, b string) (string, error) {
	repo, err := OpenRepo(root)
	if err != nil {
		return "", err
	}
	commitA, err := repo.CommitObject(plumbing.NewHash(a))
	if err != nil {
		return "", fmt.Errorf("git: resolve %s: %w", a, err)
	}
	commitB, err := repo.CommitObject(plumbing.NewHash(b))
	if err != nil {
		return "", fmt.Errorf("git: resolve %s: %w", b, err)
	}
	bases, err := commitA.MergeBase(commitB)
	if err != nil {
		return "", fmt.Errorf("git: merge-base %s %s: %w", a, b, err)
	}
	if len(bases) == 0 {
		return "", errors.New("git: no common ancestor")
	}
	return bases[0].Hash.String(), nil
}

// ReadTreeFile reads a file's content out of a commit's tree without
// touching the working copy or the index.
func ReadTreeFile(root, commitSHA, path string) (string, error) {
	repo, err := OpenRepo(root)
	if err != nil {
		return "", err
	}
	commit, err := repo.CommitObject(plumbing.NewHash(commitSHA))
	if err != nil {
		return "", fmt.Errorf("git: resolve %s: %w", commitSHA, err)
	}
	file, err := commit.File(path)
	if err != nil {
		return "", fmt.Errorf("git: read %s at %s: %w", path, commitSHA, err)
	}
	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("git: read contents of %s at %s: %w", path, commitSHA, err)
	}
	return content, nil
}

// ChangedFile describes one file changed between two trees, with the
// 1-based line numbers present in the "to" side's content that were not
// present in the "from" side's content.
type ChangedFile struct {
	Path          string
	InsertedLines []int
}

// DiffTreeToTree lists files changed between two commits along with the
// lines each introduced, via go-git's object.DiffTree plus a line-level
// LCS match (the same matched-vector technique used by internal/diffengine
// and internal/checkpointer, here applied to whole-file
// content read out of two trees instead of two in-memory strings).
func DiffTreeToTree(root, fromSHA, toSHA string) ([]ChangedFile, error) {
	repo, err := OpenRepo(root)
	if err != nil {
		return nil, err
	}
	fromTree, err := treeFor(repo, fromSHA)
	if err != nil {
		return nil, err
	}
	toTree, err := treeFor(repo, toSHA)
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, fmt.Errorf("git: diff-tree %s..%s: %w", fromSHA, toSHA, err)
	}

	var out []ChangedFile
	for _, ch := range changes {
		path := ch.To.Name
		if path == "" {
			continue // deletion: nothing inserted on the "to" side
		}
		var oldContent string
		if ch.From.Name != "" {
			if f, ferr := fromTree.File(ch.From.Name); ferr == nil {
				oldContent, _ = f.Contents()
			}
		}
		toFile, ferr := toTree.File(path)
		if ferr != nil {
			continue
		}
		newContent, cerr := toFile.Contents()
		if cerr != nil {
			continue
		}
		inserted := insertedLineNumbers(oldContent, newContent)
		if len(inserted) == 0 {
			continue
		}
		out = append(out, ChangedFile{Path: path, InsertedLines: inserted})
	}
	return out, nil
}

func treeFor(repo *git.Repository, sha string) (*object.Tree, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("git: resolve %s: %w", sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("git: tree for %s: %w", sha, err)
	}
	return tree, nil
}

// MergeTreeFavoringOurs performs a three-way merge of base/ours/theirs,
// resolving conflicts in favor of ours, and returns the resulting tree
// SHA. Grounded on the teacher's mergeRemoteBranch read-tree/write-tree
// plumbing sequence, but uses the newer `merge-tree --write-tree` porcelain
// since it resolves conflicts (-X ours) without needing a temporary index.
func MergeTreeFavoringOurs(root, base, ours, theirs string) (string, error) {
	cmd := exec.Command("git", "merge-tree", "--write-tree", "--merge-base="+base, "-X", "ours", ours, theirs)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git: merge-tree %s %s %s: %w", base, ours, theirs, err)
	}
	lines := strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)
	return lines[0], nil
}

// CommitTree creates a commit object from a tree SHA and parent SHAs
// without touching any ref or the working copy, and returns its SHA.
func CommitTree(root, treeSHA string, parents []string, message string) (string, error) {
	args := []string{"commit-tree", treeSHA}
	for _, p := range parents {
		args = append(args, "-p", p)
	}
	args = append(args, "-m", message)
	cmd := exec.Command("git", args...)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git: commit-tree: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// WriteTreeFromPath stages the tree at root's current index and returns
// its SHA — used to snapshot a staged-but-uncommitted tree during a
// pre-commit squash-merge reconstruction.
func WriteTreeFromPath(root string) (string, error) {
	cmd := exec.Command("git", "write-tree")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git: write-tree: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func insertedLineNumbers(oldContent, newContent string) []int {
	if oldContent == newContent {
		return nil
	}
	oldLines := splitLinesKeep(oldContent)
	newLines := splitLinesKeep(newContent)

	if len(oldLines) == 0 || len(oldLines)*len(newLines) > 20000 {
		out := make([]int, len(newLines))
		for i := range out {
			out[i] = i + 1
		}
		return out
	}

	matched := matchedNewLines(oldLines, newLines)
	var out []int
	for i, m := range matched {
		if !m {
			out = append(out, i+1)
		}
	}
	return out
}

// MatchLines maps each line number in newContent to the line number in
// oldContent carrying identical content, via the same LCS match
// matchedNewLines uses for diffing. Used by the rewrite coordinator to
// translate a rebased commit's line numbers back into the old commit's
// own numbering before looking up its stored attribution — a line's
// position shifts whenever an intervening commit inserts or deletes lines
// earlier in the same file, so a direct line-number lookup against the
// old log silently misses. Lines with no match (content genuinely new to
// this commit) are absent from the result.
func MatchLines(oldContent, newContent string) map[int]int {
	oldLines := splitLinesKeep(oldContent)
	newLines := splitLinesKeep(newContent)
	if len(oldLines) == 0 || len(newLines) == 0 || len(oldLines)*len(newLines) > 20000 {
		return nil
	}

	m, n := len(oldLines), len(newLines)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if oldLines[i-1] == newLines[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	mapping := make(map[int]int)
	i, j := m, n
	for i > 0 && j > 0 {
		if oldLines[i-1] == newLines[j-1] {
			mapping[j] = i
			i--
			j--
		} else if dp[i-1][j] >= dp[i][j-1] {
			i--
		} else {
			j--
		}
	}
	return mapping
}

func matchedNewLines(a, b []string) []bool {
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
	matched := make([]bool, n)
	i, j := m, n
	for i > 0 && j > 0 {
		if a[i-1] == b[j-1] {
			matched[j-1] = true
			i--
			j--
		} else if dp[i-1][j] >= dp[i][j-1] {
			i--
		} else {
			j--
		}
	}
	return matched
}

func splitLinesKeep(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "\n")
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

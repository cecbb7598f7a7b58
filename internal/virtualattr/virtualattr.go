// Package virtualattr implements virtual attributions (spec component C9):
// loading the authorship log for an arbitrary commit and projecting, for a
// set of file paths, the per-line attribution a reader at that commit
// would see. Files with no log entry get the sentinel "human" attribution.
//
// Grounded on §4.9 and §5's description of C9 as the one place in the core
// that needs concurrency: a bounded worker pool fanning out one task per
// file, plain stdlib goroutines/channels since no repo in the retrieval
// pack imports a task-pool library directly.
package virtualattr

import (
	"strings"
	"sync"

	"github.com/blametrail/authorship-engine/internal/authorshiplog"
	"github.com/blametrail/authorship-engine/internal/config"
	"github.com/blametrail/authorship-engine/internal/git"
	"github.com/blametrail/authorship-engine/internal/linebridge"
)

// Loader resolves the authorship log stored for a commit. Satisfied by
// internal/rewrite.Store (and by any test double backing one commit SHA
// with one log) without this package importing internal/rewrite, which in
// turn depends on internal/git's heavier plumbing surface.
type Loader interface {
	Load(commitSHA string) (*authorshiplog.Log, error)
}

// FileResult is one file's projected attribution, or the error encountered
// reading or attributing it.
type FileResult struct {
	FilePath string
	Lines    []linebridge.LineAttr
	Err      error
}

// Compute loads commitSHA's authorship log once, then fans out across
// paths with a worker pool bounded by cfg.Concurrency (falling back to
// config.Default().Concurrency if cfg.Concurrency <= 0), reading each
// file's content from the commit's tree and projecting its line
// attribution. Results are returned in the same order as paths.
func Compute(root string, loader Loader, commitSHA string, paths []string, cfg config.Config) ([]FileResult, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = config.Default().Concurrency
	}

	log, err := loader.Load(commitSHA)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, len(paths))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = computeFile(root, log, commitSHA, path)
		}(i, path)
	}
	wg.Wait()

	return results, nil
}

func computeFile(root string, log *authorshiplog.Log, commitSHA, path string) FileResult {
	content, err := git.ReadTreeFile(root, commitSHA, path)
	if err != nil {
		return FileResult{FilePath: path, Err: err}
	}

	total := countLines(content)
	var attrs []linebridge.LineAttr
	var cur *linebridge.LineAttr
	for line := 1; line <= total; line++ {
		author := linebridge.HumanAuthor
		if hash, _, ok := log.GetLineAttribution(path, line); ok {
			author = hash
		}
		if cur != nil && cur.AuthorID == author && cur.EndLine == line-1 {
			cur.EndLine = line
			continue
		}
		if cur != nil {
			attrs = append(attrs, *cur)
		}
		cur = &linebridge.LineAttr{StartLine: line, EndLine: line, AuthorID: author}
	}
	if cur != nil {
		attrs = append(attrs, *cur)
	}

	return FileResult{FilePath: path, Lines: attrs}
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

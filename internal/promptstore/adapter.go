package promptstore

import (
	"github.com/blametrail/authorship-engine/internal/authorshiplog"
)

// AuthorshipLogStore adapts an internal/rewrite.Store (or any
// authorshiplog.Log loader with the same Load signature) into the Store
// interface this package consumes, flattening its richer types into
// promptstore's storage-only shapes.
type AuthorshipLogStore struct {
	Loader interface {
		Load(commitSHA string) (*authorshiplog.Log, error)
	}
}

func (a AuthorshipLogStore) Load(commitSHA string) (*Log, error) {
	src, err := a.Loader.Load(commitSHA)
	if err != nil {
		return nil, err
	}
	return adapt(src), nil
}

func adapt(src *authorshiplog.Log) *Log {
	out := &Log{BaseCommitSHA: src.BaseCommitSHA, Prompts: map[string]PromptRecord{}}

	for _, fa := range src.Files {
		dst := FileAttestation{FilePath: fa.FilePath}
		for _, e := range fa.Entries {
			dst.Entries = append(dst.Entries, Entry{Hash: e.Hash, Ranges: e.LineRanges.String()})
		}
		out.Files = append(out.Files, dst)
	}

	for hash, pr := range src.Prompts {
		rec := PromptRecord{
			HumanAuthor:     pr.HumanAuthor,
			MessageCount:    len(pr.Messages),
			TotalAdditions:  pr.TotalAdditions,
			TotalDeletions:  pr.TotalDeletions,
			AcceptedLines:   pr.AcceptedLines,
			OverriddenLines: pr.OverriddenLines,
		}
		if pr.AgentID != nil {
			rec.Tool = pr.AgentID.Tool
			rec.AgentSessionID = pr.AgentID.ID
			rec.Model = pr.AgentID.Model
		}
		out.Prompts[hash] = rec
	}

	return out
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/blametrail/authorship-engine/internal/authorshiplog"
	"github.com/blametrail/authorship-engine/internal/serialize"
)

const pendingSquashFileName = "pending-squash-merge.json"

// pendingSquash is the hand-off between `git-ai merge --squash`, which
// reconstructs the log against a hanging commit before the real merge
// commit exists, and the `git-ai commit` that follows it, which retargets
// the reconstruction onto the real commit SHA.
type pendingSquash struct {
	LogData string `json:"log"`
	Base    string `json:"base"`
	Ours    string `json:"ours"`
	Theirs  string `json:"theirs"`
}

func (e *env) pendingSquashPath() string {
	return filepath.Join(e.paths.CacheDir, pendingSquashFileName)
}

func (e *env) savePendingSquash(log *authorshiplog.Log, base, ours, theirs string) error {
	data, err := serialize.Marshal(log)
	if err != nil {
		return err
	}
	b, err := json.Marshal(pendingSquash{LogData: data, Base: base, Ours: ours, Theirs: theirs})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(e.paths.CacheDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(e.pendingSquashPath(), b, 0o644)
}

// loadPendingSquash returns the pending reconstruction left by a prior
// `git-ai merge --squash`, if any. ok is false when no squash merge is in
// progress, the normal case for every other commit.
func (e *env) loadPendingSquash() (log *authorshiplog.Log, originalSHAs []string, ok bool, err error) {
	data, err := os.ReadFile(e.pendingSquashPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	var p pendingSquash
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil, false, err
	}
	log, err = serialize.Unmarshal(p.LogData)
	if err != nil {
		return nil, nil, false, err
	}
	return log, []string{p.Ours, p.Theirs}, true, nil
}

func (e *env) clearPendingSquash() error {
	err := os.Remove(e.pendingSquashPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

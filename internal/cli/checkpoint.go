package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/blametrail/authorship-engine/internal/checkpointer"
	"github.com/blametrail/authorship-engine/internal/git"
	"github.com/blametrail/authorship-engine/internal/transcript"
	"github.com/blametrail/authorship-engine/internal/workinglog"
)

// newCheckpointCmd implements the `checkpoint` entry point spec.md §6.6
// names: the host tool invokes it between edits, each call snapshotting
// the working copy and appending at most one checkpoint to the working
// log rooted at HEAD.
func newCheckpointCmd() *cobra.Command {
	var tool, sessionID, model, transcriptPath string

	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Snapshot the working copy into a new checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := mustEnv(cmd)
			if !e.initialized() {
				return nil // silently no-op outside an enabled repo, hooks must not fail
			}

			base := headSHA(e.root)
			wl := e.workingLogFor(base)
			orch := checkpointer.New(e.root, wl)

			changed, err := orch.ChangedFiles()
			if err != nil {
				return err
			}

			existing, err := wl.ReadAllCheckpoints()
			if err != nil {
				return err
			}

			var prev checkpointer.PreviousState
			if len(existing) == 0 {
				prev = checkpointer.SnapshotFromBaseTree(e.root, base, changed)
			} else {
				prev, err = checkpointer.SnapshotFromCheckpoints(wl, existing)
				if err != nil {
					return err
				}
			}

			var agent *checkpointer.AgentContext
			if tool != "" {
				agent = &checkpointer.AgentContext{
					AgentID: &workinglog.AgentID{Tool: tool, ID: sessionID, Model: model},
				}
				if transcriptPath != "" {
					for _, prompt := range transcript.ExtractSessionPrompts(transcriptPath) {
						agent.Transcript = append(agent.Transcript, workinglog.Message{Role: "user", Text: prompt})
					}
				}
			}

			author := git.Author()
			cp, ok, err := orch.Build(prev, agent, author, time.Now().Unix())
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			return wl.AppendCheckpoint(cp)
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "Acting agent tool name (e.g. claude-code); empty means a human checkpoint")
	cmd.Flags().StringVar(&sessionID, "session", "", "Agent session identifier")
	cmd.Flags().StringVar(&model, "model", "", "Agent model identifier")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Path to the agent session's transcript JSONL file")
	return cmd
}

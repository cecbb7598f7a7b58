// Command blamebot understands why AI-authored code exists: it tracks
// per-line authorship across AI and human edits and survives amends,
// squash merges, and rebases.
package main

import "github.com/blametrail/authorship-engine/internal/cli"

func main() {
	cli.Execute()
}

// Package serialize implements the authorship-log wire format (spec
// component C10): a two-part text, attestation section then a `---`
// separator then a pretty-printed JSON metadata section, per §4.10.
//
// Grounded on the teacher's two-part serialization instincts
// (internal/record writes structured-plus-JSON; internal/provenance
// manifests are JSON blobs written via git plumbing) and
// internal/lineset's String()/FromString for the compact range notation
// the attestation section uses.
package serialize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blametrail/authorship-engine/internal/authorshiplog"
	"github.com/blametrail/authorship-engine/internal/engineerr"
	"github.com/blametrail/authorship-engine/internal/lineset"
	"github.com/blametrail/authorship-engine/internal/sessionhash"
	"github.com/blametrail/authorship-engine/internal/workinglog"
)

// ShortHash re-exports sessionhash.ShortHash: the session-hash function is
// defined in its own leaf package (shared with internal/authorshiplog,
// which mints hashes while folding checkpoints) so that this package and
// authorshiplog don't need to import each other.
func ShortHash(tool, id string) string {
	return sessionhash.ShortHash(tool, id)
}

const separator = "---"

type wireAgentID struct {
	Tool  string `json:"tool"`
	ID    string `json:"id"`
	Model string `json:"model,omitempty"`
}

type wireMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type wirePrompt struct {
	AgentID         *wireAgentID  `json:"agent_id,omitempty"`
	HumanAuthor     string        `json:"human_author,omitempty"`
	Messages        []wireMessage `json:"messages,omitempty"`
	TotalAdditions  int           `json:"total_additions"`
	TotalDeletions  int           `json:"total_deletions"`
	AcceptedLines   int           `json:"accepted_lines"`
	OverriddenLines int           `json:"overridden_lines"`
}

type wireMetadata struct {
	SchemaVersion string                 `json:"schema_version"`
	BaseCommitSHA string                 `json:"base_commit_sha"`
	Prompts       map[string]*wirePrompt `json:"prompts"`
}

// Marshal renders log into the two-part wire format. Returns an error
// wrapped with engineerr.SchemaFailure if log carries an unrecognized
// schema version.
func Marshal(log *authorshiplog.Log) (string, error) {
	if log.SchemaVersion != authorshiplog.SchemaVersion {
		return "", engineerr.New(engineerr.SchemaFailure, "marshal: unknown schema version "+log.SchemaVersion)
	}

	var b strings.Builder
	writeAttestationSection(&b, log)
	b.WriteString(separator)
	b.WriteString("\n")

	meta := toWireMetadata(log)
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", engineerr.Wrap(engineerr.IoFailure, "marshal: metadata", err)
	}
	b.Write(data)
	b.WriteString("\n")

	return b.String(), nil
}

func writeAttestationSection(b *strings.Builder, log *authorshiplog.Log) {
	files := append([]*authorshiplog.FileAttestation{}, log.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })

	for _, fa := range files {
		if len(fa.Entries) == 0 {
			continue
		}
		b.WriteString(quotePathIfNeeded(fa.FilePath))
		b.WriteString("\n")

		entries := append([]authorshiplog.AttestationEntry{}, fa.Entries...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Hash < entries[j].Hash })
		for _, e := range entries {
			fmt.Fprintf(b, "  %s %s\n", e.Hash, e.LineRanges.String())
		}
	}
}

func quotePathIfNeeded(path string) string {
	if strings.ContainsAny(path, " \t") {
		return strconv.Quote(path)
	}
	return path
}

func toWireMetadata(log *authorshiplog.Log) wireMetadata {
	meta := wireMetadata{
		SchemaVersion: log.SchemaVersion,
		BaseCommitSHA: log.BaseCommitSHA,
		Prompts:       map[string]*wirePrompt{},
	}
	for hash, pr := range log.Prompts {
		meta.Prompts[hash] = toWirePrompt(pr)
	}
	return meta
}

func toWirePrompt(pr *authorshiplog.PromptRecord) *wirePrompt {
	wp := &wirePrompt{
		HumanAuthor:     pr.HumanAuthor,
		TotalAdditions:  pr.TotalAdditions,
		TotalDeletions:  pr.TotalDeletions,
		AcceptedLines:   pr.AcceptedLines,
		OverriddenLines: pr.OverriddenLines,
	}
	if pr.AgentID != nil {
		wp.AgentID = &wireAgentID{Tool: pr.AgentID.Tool, ID: pr.AgentID.ID, Model: pr.AgentID.Model}
	}
	for _, m := range pr.Messages {
		wp.Messages = append(wp.Messages, wireMessage{Role: m.Role, Text: m.Text, Timestamp: m.Timestamp})
	}
	return wp
}

// Unmarshal parses the two-part wire format back into an authorship log.
// Rejects unknown schema versions with an engineerr.SchemaFailure-wrapped
// error, per §4.10 ("Readers must reject unknown versions").
func Unmarshal(data string) (*authorshiplog.Log, error) {
	attestationText, metadataText, err := splitSections(data)
	if err != nil {
		return nil, err
	}

	var meta wireMetadata
	if err := json.Unmarshal([]byte(metadataText), &meta); err != nil {
		return nil, engineerr.Wrap(engineerr.SchemaFailure, "unmarshal: metadata", err)
	}
	if meta.SchemaVersion != authorshiplog.SchemaVersion {
		return nil, engineerr.New(engineerr.SchemaFailure, "unmarshal: unknown schema version "+meta.SchemaVersion)
	}

	log := authorshiplog.New(meta.BaseCommitSHA)
	log.Prompts = map[string]*authorshiplog.PromptRecord{}
	for hash, wp := range meta.Prompts {
		log.Prompts[hash] = fromWirePrompt(wp)
	}

	files, err := parseAttestationSection(attestationText)
	if err != nil {
		return nil, err
	}
	log.Files = files

	return log, nil
}

func fromWirePrompt(wp *wirePrompt) *authorshiplog.PromptRecord {
	pr := &authorshiplog.PromptRecord{
		HumanAuthor:     wp.HumanAuthor,
		TotalAdditions:  wp.TotalAdditions,
		TotalDeletions:  wp.TotalDeletions,
		AcceptedLines:   wp.AcceptedLines,
		OverriddenLines: wp.OverriddenLines,
	}
	if wp.AgentID != nil {
		pr.AgentID = &workinglog.AgentID{Tool: wp.AgentID.Tool, ID: wp.AgentID.ID, Model: wp.AgentID.Model}
	}
	for _, m := range wp.Messages {
		pr.Messages = append(pr.Messages, workinglog.Message{Role: m.Role, Text: m.Text, Timestamp: m.Timestamp})
	}
	return pr
}

func splitSections(data string) (attestation, metadata string, err error) {
	lines := strings.Split(data, "\n")
	for i, line := range lines {
		if line == separator {
			return strings.Join(lines[:i], "\n"), strings.Join(lines[i+1:], "\n"), nil
		}
	}
	return "", "", engineerr.New(engineerr.SchemaFailure, "unmarshal: missing --- separator")
}

func parseAttestationSection(text string) ([]*authorshiplog.FileAttestation, error) {
	var files []*authorshiplog.FileAttestation
	var current *authorshiplog.FileAttestation

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "  ") {
			if current == nil {
				return nil, engineerr.New(engineerr.SchemaFailure, "unmarshal: attestation entry before any file path")
			}
			hash, rangesStr, ok := strings.Cut(strings.TrimSpace(line), " ")
			if !ok {
				return nil, engineerr.New(engineerr.SchemaFailure, "unmarshal: malformed attestation entry "+line)
			}
			ranges, err := lineset.FromString(rangesStr)
			if err != nil {
				return nil, engineerr.Wrap(engineerr.SchemaFailure, "unmarshal: ranges "+rangesStr, err)
			}
			current.Entries = append(current.Entries, authorshiplog.AttestationEntry{Hash: hash, LineRanges: ranges})
			continue
		}

		path := unquotePath(strings.TrimSpace(line))
		current = &authorshiplog.FileAttestation{FilePath: path}
		files = append(files, current)
	}
	return files, nil
}

func unquotePath(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}

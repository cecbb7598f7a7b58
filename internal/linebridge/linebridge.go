// Package linebridge converts between the character-range attributions C3
// produces and the line-range view everything downstream of a commit
// actually wants (spec component C4): blame output, the authorship log, and
// per-line "who wrote this" queries all operate on lines, not byte offsets.
package linebridge

import (
	"sort"
	"strings"

	"github.com/blametrail/authorship-engine/internal/attribution"
	"github.com/blametrail/authorship-engine/internal/lineset"
)

// HumanAuthor is the sentinel author_id for lines with no surviving AI
// attribution, or whose only candidates were discarded as whitespace-only.
const HumanAuthor = "human"

// Override records that a later human edit replaced content an AI session
// had previously authored.
type Override struct {
	Author string
	Ts     int64
}

// LineAttr is a closed, 1-indexed line range attributed to a single author.
type LineAttr struct {
	StartLine, EndLine int
	AuthorID           string
	Overrode           *Override
}

type textLine struct {
	start, end int // byte range, terminator included
}

// segmentLines splits text into 1-indexed lines with byte offsets. Content
// ending without a final newline produces one trailing line whose end
// equals the content length. Empty content has zero lines.
func segmentLines(text string) []textLine {
	if text == "" {
		return nil
	}
	var lines []textLine
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, textLine{start: start, end: i + 1})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, textLine{start: start, end: len(text)})
	}
	return lines
}

func isWhitespaceOnly(s string) bool {
	return strings.TrimSpace(s) == ""
}

// CharToLine projects a set of character-range attributions onto the lines
// of text, resolving a single dominant author per line.
//
// For each line: candidates are every attribution intersecting it, clipped
// to the line and with whitespace-only intersections discarded. With no
// candidates the line is "human". Otherwise the dominant author is the
// candidate with the latest Ts (ties broken by order of appearance in
// attrs). If the line has both an AI candidate and a human candidate and the
// human candidate's Ts is strictly later than the most recent AI
// candidate's, the line is marked as overriding that AI author. Consecutive
// lines with identical (author, overrode) are merged into ranges, and
// "human" ranges are dropped from the output (they are implicit).
func CharToLine(text string, attrs []attribution.Attr) []LineAttr {
	lines := segmentLines(text)
	if len(lines) == 0 {
		return nil
	}

	type candidate struct {
		authorID string
		ts       int64
		order    int
	}

	perLine := make([]string, len(lines))   // dominant author per line
	overrode := make([]*Override, len(lines))

	for li, ln := range lines {
		var cands []candidate
		for order, a := range attrs {
			s, e, ok := intersect(a.Start, a.End, ln.start, ln.end)
			if !ok {
				continue
			}
			if isWhitespaceOnly(text[s:e]) {
				continue
			}
			cands = append(cands, candidate{authorID: a.AuthorID, ts: a.Ts, order: order})
		}
		if len(cands) == 0 {
			perLine[li] = HumanAuthor
			continue
		}

		dominant := cands[0]
		for _, c := range cands[1:] {
			if c.ts > dominant.ts {
				dominant = c
			}
		}
		perLine[li] = dominant.authorID

		var latestAI *candidate
		var latestHuman *candidate
		for i := range cands {
			c := &cands[i]
			if c.authorID == HumanAuthor {
				if latestHuman == nil || c.ts > latestHuman.ts {
					latestHuman = c
				}
			} else {
				if latestAI == nil || c.ts > latestAI.ts {
					latestAI = c
				}
			}
		}
		if latestAI != nil && latestHuman != nil && latestHuman.ts > latestAI.ts {
			overrode[li] = &Override{Author: latestAI.authorID, Ts: latestAI.ts}
		}
	}

	var out []LineAttr
	i := 0
	for i < len(lines) {
		author := perLine[i]
		ov := overrode[i]
		j := i
		for j+1 < len(lines) && perLine[j+1] == author && sameOverride(overrode[j+1], ov) {
			j++
		}
		if author != HumanAuthor {
			out = append(out, LineAttr{StartLine: i + 1, EndLine: j + 1, AuthorID: author, Overrode: ov})
		}
		i = j + 1
	}
	return out
}

func sameOverride(a, b *Override) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// LineToChar is the inverse projection: given a list of line ranges over
// text, emit one character-range attribution per line range, spanning from
// the byte offset of the range's first line to the byte offset just past
// the last line's terminator.
func LineToChar(text string, ranges []LineAttr) []attribution.Attr {
	lines := segmentLines(text)
	if len(lines) == 0 {
		return nil
	}
	var out []attribution.Attr
	for _, r := range ranges {
		if r.StartLine < 1 || r.EndLine > len(lines) || r.StartLine > r.EndLine {
			continue
		}
		start := lines[r.StartLine-1].start
		end := lines[r.EndLine-1].end
		out = append(out, attribution.Attr{Start: start, End: end, AuthorID: r.AuthorID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// LineNumbersFor collects every line number attributed to author across
// ranges, as a LineSet suitable for compact serialization.
func LineNumbersFor(ranges []LineAttr, author string) lineset.LineSet {
	var ls lineset.LineSet
	for _, r := range ranges {
		if r.AuthorID == author {
			ls = ls.Union(lineset.FromRange(r.StartLine, r.EndLine))
		}
	}
	return ls
}

func intersect(aStart, aEnd, bStart, bEnd int) (int, int, bool) {
	s := aStart
	if bStart > s {
		s = bStart
	}
	e := aEnd
	if bEnd < e {
		e = bEnd
	}
	if e <= s {
		return 0, 0, false
	}
	return s, e, true
}

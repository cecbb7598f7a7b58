// Package move implements the move detector (spec component C2): given the
// deletions and insertions produced by a diff, it identifies which
// deletion/insertion pairs are really the same lines relocated rather than
// independent edits, so attribution can follow the moved text instead of
// being dropped and re-attributed to whoever performed the move.
package move

import "sort"

// Deletion is one deleted byte range in the old text, tagged with the index
// of the diff operation it came from.
type Deletion struct {
	Index      int
	Start, End int
}

// Insertion is one inserted byte range in the new text, tagged with the
// index of the diff operation it came from.
type Insertion struct {
	Index      int
	Start, End int
}

// Mapping asserts that a subrange of a deletion corresponds to a subrange of
// an insertion: the same lines, relocated.
type Mapping struct {
	DeletionIndex  int
	InsertionIndex int
	SourceStart    int
	SourceEnd      int
	TargetStart    int
	TargetEnd      int
}

// DefaultThreshold is the minimum number of consecutive matching lines
// required to treat a deletion/insertion pair as a move.
const DefaultThreshold = 3

type lineRec struct {
	content    string // line text with trailing \r\n / \n trimmed, for equality
	start, end int    // byte offsets in the owning text
	ownerIndex int    // the Deletion.Index or Insertion.Index this line belongs to
}

// Detect finds move mappings between deletions (in oldText) and insertions
// (in newText). threshold is the minimum number of consecutive exactly
// matching lines required; threshold <= 0 disables move detection entirely.
func Detect(oldText, newText string, deletions []Deletion, insertions []Insertion, threshold int) []Mapping {
	if threshold <= 0 {
		return nil
	}

	dels := append([]Deletion(nil), deletions...)
	sort.Slice(dels, func(i, j int) bool { return dels[i].Start < dels[j].Start })
	inss := append([]Insertion(nil), insertions...)
	sort.Slice(inss, func(i, j int) bool { return inss[i].Start < inss[j].Start })

	delLines := deletionLines(oldText, dels)
	insLines := insertionLines(newText, inss)

	usedDel := make([]bool, len(delLines))
	usedIns := make([]bool, len(insLines))

	var mappings []Mapping
	for ii := 0; ii < len(insLines); ii++ {
		if usedIns[ii] {
			continue
		}
		for di := 0; di < len(delLines); di++ {
			if usedDel[di] {
				continue
			}
			if delLines[di].content != insLines[ii].content {
				continue
			}

			length := 0
			for di+length < len(delLines) && ii+length < len(insLines) &&
				!usedDel[di+length] && !usedIns[ii+length] &&
				delLines[di+length].ownerIndex == delLines[di].ownerIndex &&
				insLines[ii+length].ownerIndex == insLines[ii].ownerIndex &&
				delLines[di+length].content == insLines[ii+length].content {
				length++
			}
			if length < threshold {
				continue
			}

			srcStart, srcEnd := delLines[di].start, delLines[di+length-1].end
			tgtStart, tgtEnd := insLines[ii].start, insLines[ii+length-1].end
			if srcEnd <= srcStart || tgtEnd <= tgtStart {
				continue
			}

			for k := 0; k < length; k++ {
				usedDel[di+k] = true
				usedIns[ii+k] = true
			}
			mappings = append(mappings, Mapping{
				DeletionIndex:  delLines[di].ownerIndex,
				InsertionIndex: insLines[ii].ownerIndex,
				SourceStart:    srcStart,
				SourceEnd:      srcEnd,
				TargetStart:    tgtStart,
				TargetEnd:      tgtEnd,
			})
			ii += length - 1
			break
		}
	}
	return mappings
}

// rawLine is one line of a segmented text, byte range inclusive of its
// terminator.
type rawLine struct {
	text       string
	start, end int
}

func segmentLines(s string) []rawLine {
	var lines []rawLine
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, rawLine{text: s[start : i+1], start: start, end: i + 1})
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, rawLine{text: s[start:], start: start, end: len(s)})
	}
	return lines
}

func trimTerminator(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}

func deletionLines(oldText string, dels []Deletion) []lineRec {
	all := segmentLines(oldText)
	var out []lineRec
	for _, d := range dels {
		for _, ln := range all {
			if ln.start >= d.Start && ln.end <= d.End {
				out = append(out, lineRec{content: trimTerminator(ln.text), start: ln.start, end: ln.end, ownerIndex: d.Index})
			}
		}
	}
	return out
}

func insertionLines(newText string, inss []Insertion) []lineRec {
	all := segmentLines(newText)
	var out []lineRec
	for _, ins := range inss {
		for _, ln := range all {
			if ln.start >= ins.Start && ln.end <= ins.End {
				out = append(out, lineRec{content: trimTerminator(ln.text), start: ln.start, end: ln.end, ownerIndex: ins.Index})
			}
		}
	}
	return out
}

// Package attribution implements the attribution tracker (spec component
// C3): it transforms a set of character-range attributions over an old text
// into the corresponding set over a new text, given the diff between them
// and any move mappings the move detector found. This is the one place the
// "who wrote this byte" history is actually carried forward across an edit.
package attribution

import (
	"sort"

	"github.com/blametrail/authorship-engine/internal/diffengine"
	"github.com/blametrail/authorship-engine/internal/move"
)

// Attr is a character-range attribution: a half-open byte interval over a
// file's text, claimed by author_id at timestamp ts.
type Attr struct {
	Start, End int
	AuthorID   string
	Ts         int64
}

// Transform walks the diff between old and new, carrying every incoming
// attribution forward across Equal operations, across Delete operations
// that participate in a detected move, and minting fresh current-author
// attributions over the parts of Insert operations not covered by a move.
//
// moveThreshold is the minimum run of matching consecutive lines the move
// detector requires; 0 disables move detection entirely.
func Transform(old, new string, attrs []Attr, currentAuthor string, ts int64, moveThreshold int) ([]Attr, error) {
	if old == new {
		return sortDedup(append([]Attr(nil), attrs...)), nil
	}

	ops, err := diffengine.Diff(old, new)
	if err != nil {
		return nil, err
	}

	if old == "" {
		if new == "" {
			return nil, nil
		}
		return []Attr{{Start: 0, End: len(new), AuthorID: currentAuthor, Ts: ts}}, nil
	}

	dels, inss := catalogOps(ops)
	mappings := move.Detect(old, new, dels, inss, moveThreshold)

	// Index mappings by deletion op index and by insertion op index, each
	// potentially pointing at several mappings (rare, but not precluded).
	byDelIdx := map[int][]move.Mapping{}
	byInsIdx := map[int][]move.Mapping{}
	for _, m := range mappings {
		byDelIdx[m.DeletionIndex] = append(byDelIdx[m.DeletionIndex], m)
		byInsIdx[m.InsertionIndex] = append(byInsIdx[m.InsertionIndex], m)
	}

	var out []Attr
	oldPos, newPos := 0, 0
	delIdx, insIdx := 0, 0
	for _, op := range ops {
		n := opLen(op)
		switch op.Type {
		case diffengine.Equal:
			for _, a := range attrs {
				s, e, ok := intersect(a.Start, a.End, oldPos, oldPos+n)
				if !ok {
					continue
				}
				shift := newPos - oldPos
				out = append(out, Attr{Start: s + shift, End: e + shift, AuthorID: a.AuthorID, Ts: a.Ts})
			}
			oldPos += n
			newPos += n

		case diffengine.Delete:
			for _, m := range byDelIdx[delIdx] {
				for _, a := range attrs {
					s, e, ok := intersect(a.Start, a.End, m.SourceStart, m.SourceEnd)
					if !ok {
						continue
					}
					shift := m.TargetStart - m.SourceStart
					out = append(out, Attr{Start: s + shift, End: e + shift, AuthorID: a.AuthorID, Ts: a.Ts})
				}
			}
			oldPos += n
			delIdx++

		case diffengine.Insert:
			covered := movedSubranges(byInsIdx[insIdx], newPos, newPos+n)
			for _, sub := range uncoveredGaps(newPos, newPos+n, covered) {
				if sub.end > sub.start {
					out = append(out, Attr{Start: sub.start, End: sub.end, AuthorID: currentAuthor, Ts: ts})
				}
			}
			newPos += n
			insIdx++
		}
	}

	return sortDedup(out), nil
}

type byteRange struct{ start, end int }

func opLen(op diffengine.Op) int {
	switch op.Type {
	case diffengine.Equal:
		return op.OldEnd - op.OldStart
	case diffengine.Delete:
		return op.OldEnd - op.OldStart
	case diffengine.Insert:
		return op.NewEnd - op.NewStart
	}
	return 0
}

// catalogOps assigns a stable index to each Delete/Insert operation in
// diff-order, matching the op index the move detector keys mappings by.
func catalogOps(ops []diffengine.Op) ([]move.Deletion, []move.Insertion) {
	var dels []move.Deletion
	var inss []move.Insertion
	di, ii := 0, 0
	for _, op := range ops {
		switch op.Type {
		case diffengine.Delete:
			dels = append(dels, move.Deletion{Index: di, Start: op.OldStart, End: op.OldEnd})
			di++
		case diffengine.Insert:
			inss = append(inss, move.Insertion{Index: ii, Start: op.NewStart, End: op.NewEnd})
			ii++
		}
	}
	return dels, inss
}

// intersect returns the overlap of [aStart,aEnd) and [bStart,bEnd), if any.
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

// movedSubranges clips each mapping's target range to [lo,hi) and returns
// the resulting covered subranges, sorted by start.
func movedSubranges(mappings []move.Mapping, lo, hi int) []byteRange {
	var covered []byteRange
	for _, m := range mappings {
		s, e, ok := intersect(m.TargetStart, m.TargetEnd, lo, hi)
		if ok {
			covered = append(covered, byteRange{s, e})
		}
	}
	sort.Slice(covered, func(i, j int) bool { return covered[i].start < covered[j].start })
	return covered
}

// uncoveredGaps returns the subranges of [lo,hi) not covered by any range in
// covered (which must be sorted by start and is assumed non-overlapping).
func uncoveredGaps(lo, hi int, covered []byteRange) []byteRange {
	var gaps []byteRange
	cursor := lo
	for _, c := range covered {
		if c.start > cursor {
			gaps = append(gaps, byteRange{cursor, c.start})
		}
		if c.end > cursor {
			cursor = c.end
		}
	}
	if cursor < hi {
		gaps = append(gaps, byteRange{cursor, hi})
	}
	return gaps
}

func sortDedup(attrs []Attr) []Attr {
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Start != attrs[j].Start {
			return attrs[i].Start < attrs[j].Start
		}
		if attrs[i].End != attrs[j].End {
			return attrs[i].End < attrs[j].End
		}
		return attrs[i].AuthorID < attrs[j].AuthorID
	})
	out := attrs[:0]
	var prev *Attr
	for i := range attrs {
		a := attrs[i]
		if prev != nil && prev.Start == a.Start && prev.End == a.End && prev.AuthorID == a.AuthorID && prev.Ts == a.Ts {
			continue
		}
		out = append(out, a)
		prev = &out[len(out)-1]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Package diffengine computes byte-level diff operations between two texts
// (spec component C1). It wraps github.com/sergi/go-diff/diffmatchpatch —
// the same library the teacher uses for side-by-side diff rendering in
// internal/format/diff.go — and adds the char-boundary safety net that
// byte-oriented diff libraries need when the input is UTF-8 text: an
// operation boundary that lands mid-codepoint would make the output unsafe
// to slice, so every operation is validated and, on failure, the diff is
// recomputed in codepoint (rune) mode and re-encoded as byte ranges.
package diffengine

import (
	"fmt"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// OpType identifies the kind of a diff operation.
type OpType int

const (
	Equal OpType = iota
	Delete
	Insert
)

func (t OpType) String() string {
	switch t {
	case Equal:
		return "equal"
	case Delete:
		return "delete"
	case Insert:
		return "insert"
	default:
		return "unknown"
	}
}

// Op is one operation in a diff, expressed as byte ranges into the old and
// new text. Equal operations carry both ranges (same length); Delete only
// OldStart/OldEnd; Insert only NewStart/NewEnd.
type Op struct {
	Type     OpType
	OldStart int
	OldEnd   int
	NewStart int
	NewEnd   int
}

// largeInputGuard bounds the rune-mode LCS fallback, which is O(len(old)*len(new)).
// Beyond this the fallback degrades to a single delete-all/insert-all pair rather
// than risk unbounded memory use — mirroring the teacher's own guard in
// internal/checkpoint/attribution.go.
const largeInputGuard = 25_000_000

// Diff computes the byte-level diff between old and new. It never returns a
// partial result: on unrecoverable failure it returns a non-nil error and a
// nil op slice, per spec.md §4.1 ("on unrecoverable diff engine failure, the
// caller receives an error; no partial attribution is emitted").
func Diff(old, new string) ([]Op, error) {
	if old == new {
		if old == "" {
			return nil, nil
		}
		return []Op{{Type: Equal, OldStart: 0, OldEnd: len(old), NewStart: 0, NewEnd: len(new)}}, nil
	}

	ops, err := byteDiff(old, new)
	if err != nil {
		return nil, fmt.Errorf("diffengine: byte-mode diff failed: %w", err)
	}
	if boundariesValid(ops, old, new) {
		return ops, nil
	}

	ops, err = codepointDiff(old, new)
	if err != nil {
		return nil, fmt.Errorf("diffengine: codepoint-mode fallback failed: %w", err)
	}
	if !boundariesValid(ops, old, new) {
		return nil, fmt.Errorf("diffengine: codepoint-mode fallback produced misaligned byte boundaries")
	}
	return ops, nil
}

// byteDiff runs diffmatchpatch and walks the resulting diff list, tracking
// byte cursors into old and new, emitting one Op per diffmatchpatch.Diff.
func byteDiff(old, new string) ([]Op, error) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(old, new, false)

	var ops []Op
	oldPos, newPos := 0, 0
	for _, d := range diffs {
		n := len(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			ops = append(ops, Op{Type: Equal, OldStart: oldPos, OldEnd: oldPos + n, NewStart: newPos, NewEnd: newPos + n})
			oldPos += n
			newPos += n
		case diffmatchpatch.DiffDelete:
			ops = append(ops, Op{Type: Delete, OldStart: oldPos, OldEnd: oldPos + n})
			oldPos += n
		case diffmatchpatch.DiffInsert:
			ops = append(ops, Op{Type: Insert, NewStart: newPos, NewEnd: newPos + n})
			newPos += n
		}
	}
	if oldPos != len(old) || newPos != len(new) {
		return nil, fmt.Errorf("diff did not consume full input (old %d/%d, new %d/%d)", oldPos, len(old), newPos, len(new))
	}
	return ops, nil
}

// boundariesValid reports whether every operation's byte range starts and
// ends on a UTF-8 rune boundary of the text it slices.
func boundariesValid(ops []Op, old, new string) bool {
	for _, op := range ops {
		switch op.Type {
		case Equal:
			if !isBoundary(old, op.OldStart) || !isBoundary(old, op.OldEnd) {
				return false
			}
			if !isBoundary(new, op.NewStart) || !isBoundary(new, op.NewEnd) {
				return false
			}
		case Delete:
			if !isBoundary(old, op.OldStart) || !isBoundary(old, op.OldEnd) {
				return false
			}
		case Insert:
			if !isBoundary(new, op.NewStart) || !isBoundary(new, op.NewEnd) {
				return false
			}
		}
	}
	return true
}

func isBoundary(s string, pos int) bool {
	if pos == 0 || pos == len(s) {
		return true
	}
	if pos < 0 || pos > len(s) {
		return false
	}
	return utf8.RuneStart(s[pos])
}

// codepointDiff recomputes the diff at rune granularity via an LCS, then
// re-encodes the result as byte-level operations by mapping rune indices to
// byte offsets in old and new.
func codepointDiff(old, new string) ([]Op, error) {
	oldRunes := []rune(old)
	newRunes := []rune(new)
	oldByteOf := runeByteOffsets(old, len(oldRunes))
	newByteOf := runeByteOffsets(new, len(newRunes))

	if int64(len(oldRunes))*int64(len(newRunes)) > largeInputGuard {
		var ops []Op
		if len(old) > 0 {
			ops = append(ops, Op{Type: Delete, OldStart: 0, OldEnd: len(old)})
		}
		if len(new) > 0 {
			ops = append(ops, Op{Type: Insert, NewStart: 0, NewEnd: len(new)})
		}
		return ops, nil
	}

	matchedOld, matchedNew := lcsMatch(oldRunes, newRunes)

	var ops []Op
	i, j := 0, 0
	for i < len(oldRunes) || j < len(newRunes) {
		switch {
		case i < len(oldRunes) && matchedOld[i] == j && j < len(newRunes):
			// Equal run: extend while both sides stay matched to each other.
			startI, startJ := i, j
			for i < len(oldRunes) && j < len(newRunes) && matchedOld[i] == j {
				i++
				j++
			}
			ops = append(ops, Op{
				Type:     Equal,
				OldStart: oldByteOf[startI], OldEnd: oldByteOf[i],
				NewStart: newByteOf[startJ], NewEnd: newByteOf[j],
			})
		case i < len(oldRunes) && matchedOld[i] < 0:
			startI := i
			for i < len(oldRunes) && matchedOld[i] < 0 {
				i++
			}
			ops = append(ops, Op{Type: Delete, OldStart: oldByteOf[startI], OldEnd: oldByteOf[i]})
		case j < len(newRunes):
			startJ := j
			for j < len(newRunes) && (i >= len(oldRunes) || matchedNew[j] < 0) {
				j++
			}
			ops = append(ops, Op{Type: Insert, NewStart: newByteOf[startJ], NewEnd: newByteOf[j]})
		default:
			i++
		}
	}
	return ops, nil
}

// runeByteOffsets returns, for each rune index 0..n, the byte offset in s at
// which that rune begins (index n maps to len(s)).
func runeByteOffsets(s string, n int) []int {
	offsets := make([]int, n+1)
	i := 0
	pos := 0
	for pos < len(s) {
		offsets[i] = pos
		_, size := utf8.DecodeRuneInString(s[pos:])
		pos += size
		i++
	}
	offsets[n] = len(s)
	return offsets
}

// lcsMatch computes the LCS of a and b at rune granularity, returning, for
// each index in a and b, the matched index in the other slice or -1.
func lcsMatch(a, b []rune) (matchedA, matchedB []int) {
	m, n := len(a), len(b)
	matchedA = make([]int, m)
	matchedB = make([]int, n)
	for i := range matchedA {
		matchedA[i] = -1
	}
	for j := range matchedB {
		matchedB[j] = -1
	}

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

	i, j := m, n
	for i > 0 && j > 0 {
		if a[i-1] == b[j-1] {
			matchedA[i-1] = j - 1
			matchedB[j-1] = i - 1
			i--
			j--
		} else if dp[i-1][j] >= dp[i][j-1] {
			i--
		} else {
			j--
		}
	}
	return matchedA, matchedB
}

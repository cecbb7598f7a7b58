package linebridge

import (
	"reflect"
	"testing"

	"github.com/blametrail/authorship-engine/internal/attribution"
)

func TestCharToLine_NoAttributionsAllHuman(t *testing.T) {
	text := "L1\nL2\nL3\n"
	got := CharToLine(text, nil)
	if got != nil {
		t.Errorf("CharToLine with no attributions = %+v, want nil (all human, dropped)", got)
	}
}

func TestCharToLine_SingleAIAuthoredLine(t *testing.T) {
	text := "L1\nL2\nAI\nL3\n"
	// line 3 is "AI\n", byte range [6, 9).
	attrs := []attribution.Attr{{Start: 6, End: 9, AuthorID: "x1234ab", Ts: 1}}
	got := CharToLine(text, attrs)
	want := []LineAttr{{StartLine: 3, EndLine: 3, AuthorID: "x1234ab"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CharToLine = %+v, want %+v", got, want)
	}
}

// TestCharToLine_HumanOverrideDropsAIOwnership mirrors scenario S1: after a
// human edit on the same line with a later timestamp, the AI attribution is
// outranked and the line is reported as human (i.e., absent from the
// output), even though the override itself is computed internally.
func TestCharToLine_HumanOverrideDropsAIOwnership(t *testing.T) {
	text := "L1\nL2\nHuman-edit\nL3\n"
	line3Start, line3End := 6, 17
	attrs := []attribution.Attr{
		{Start: line3Start, End: line3End, AuthorID: "x1234ab", Ts: 1},
		{Start: line3Start, End: line3End, AuthorID: HumanAuthor, Ts: 2},
	}
	got := CharToLine(text, attrs)
	if got != nil {
		t.Errorf("CharToLine after human override = %+v, want nil (line reported human)", got)
	}
}

// TestCharToLine_IndentOnlyEditPreservesAuthor mirrors scenario S3: a
// whitespace-only human edit on an AI-authored line must not flip dominant
// authorship.
func TestCharToLine_IndentOnlyEditPreservesAuthor(t *testing.T) {
	text := "    code();\n" // 4-space indent
	attrs := []attribution.Attr{
		{Start: 4, End: 11, AuthorID: "a1111bb", Ts: 1},     // "code();"
		{Start: 0, End: 4, AuthorID: HumanAuthor, Ts: 2},    // the re-indent: whitespace only
	}
	got := CharToLine(text, attrs)
	want := []LineAttr{{StartLine: 1, EndLine: 1, AuthorID: "a1111bb"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CharToLine with whitespace-only human edit = %+v, want %+v", got, want)
	}
}

func TestCharToLine_MergesConsecutiveSameAuthorLines(t *testing.T) {
	text := "a\nb\nc\nd\n"
	attrs := []attribution.Attr{
		{Start: 0, End: 2, AuthorID: "s1", Ts: 1}, // line 1
		{Start: 2, End: 4, AuthorID: "s1", Ts: 1}, // line 2
		{Start: 4, End: 6, AuthorID: "s2", Ts: 1}, // line 3
		{Start: 6, End: 8, AuthorID: "s1", Ts: 1}, // line 4
	}
	got := CharToLine(text, attrs)
	want := []LineAttr{
		{StartLine: 1, EndLine: 2, AuthorID: "s1"},
		{StartLine: 3, EndLine: 3, AuthorID: "s2"},
		{StartLine: 4, EndLine: 4, AuthorID: "s1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CharToLine = %+v, want %+v", got, want)
	}
}

func TestCharToLine_NoFinalNewline(t *testing.T) {
	text := "one\ntwo"
	attrs := []attribution.Attr{{Start: 4, End: 7, AuthorID: "s1", Ts: 1}}
	got := CharToLine(text, attrs)
	want := []LineAttr{{StartLine: 2, EndLine: 2, AuthorID: "s1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CharToLine(no final newline) = %+v, want %+v", got, want)
	}
}

func TestLineToChar_RoundTripsRange(t *testing.T) {
	text := "a\nb\nc\nd\n"
	ranges := []LineAttr{{StartLine: 2, EndLine: 3, AuthorID: "s1"}}
	got := LineToChar(text, ranges)
	want := []attribution.Attr{{Start: 2, End: 6, AuthorID: "s1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LineToChar = %+v, want %+v", got, want)
	}
}

func TestLineToChar_OutOfRangeDropped(t *testing.T) {
	text := "a\nb\n"
	ranges := []LineAttr{{StartLine: 5, EndLine: 6, AuthorID: "s1"}}
	if got := LineToChar(text, ranges); got != nil {
		t.Errorf("LineToChar with out-of-range input = %+v, want nil", got)
	}
}

func TestLineNumbersFor(t *testing.T) {
	ranges := []LineAttr{
		{StartLine: 1, EndLine: 2, AuthorID: "s1"},
		{StartLine: 4, EndLine: 4, AuthorID: "s2"},
		{StartLine: 6, EndLine: 7, AuthorID: "s1"},
	}
	got := LineNumbersFor(ranges, "s1")
	want := []int{1, 2, 6, 7}
	if !reflect.DeepEqual(got.Lines(), want) {
		t.Errorf("LineNumbersFor(s1) = %v, want %v", got.Lines(), want)
	}
}

package diffengine

import "testing"

func TestDiff_Identical(t *testing.T) {
	ops, err := Diff("hello world", "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ops) != 1 || ops[0].Type != Equal {
		t.Fatalf("Diff(identical) = %+v, want single Equal op", ops)
	}
	if ops[0].OldEnd != len("hello world") || ops[0].NewEnd != len("hello world") {
		t.Errorf("Diff(identical) op ranges = %+v, want full-length equal", ops[0])
	}
}

func TestDiff_Empty(t *testing.T) {
	ops, err := Diff("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ops != nil {
		t.Errorf("Diff(\"\", \"\") = %+v, want nil", ops)
	}
}

func TestDiff_PureInsertion(t *testing.T) {
	ops, err := Diff("", "new content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertReconstructs(t, "", "new content", ops)

	found := false
	for _, op := range ops {
		if op.Type == Insert && op.NewStart == 0 && op.NewEnd == len("new content") {
			found = true
		}
	}
	if !found {
		t.Errorf("Diff(pure insertion) = %+v, want a single Insert op covering the whole string", ops)
	}
}

func TestDiff_PureDeletion(t *testing.T) {
	ops, err := Diff("old content", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertReconstructs(t, "old content", "", ops)
}

func TestDiff_SimpleReplace(t *testing.T) {
	ops, err := Diff("the quick brown fox", "the slow brown fox")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertReconstructs(t, "the quick brown fox", "the slow brown fox", ops)
	assertBoundariesValid(t, ops, "the quick brown fox", "the slow brown fox")
}

// TestDiff_UnicodeSafeBoundary exercises the scenario where an edit is
// adjacent to a multi-byte codepoint: "é" is two bytes in UTF-8, and the
// inserted "!" sits immediately after it. Every operation boundary must
// fall on a rune boundary in both old and new text.
func TestDiff_UnicodeSafeBoundary(t *testing.T) {
	old := "a é b"
	new := "a é! b"
	ops, err := Diff(old, new)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertReconstructs(t, old, new, ops)
	assertBoundariesValid(t, ops, old, new)

	foundInsert := false
	for _, op := range ops {
		if op.Type == Insert {
			text := new[op.NewStart:op.NewEnd]
			if text == "!" {
				foundInsert = true
			}
		}
	}
	if !foundInsert {
		t.Errorf("Diff(%q, %q) = %+v, want an Insert op covering \"!\"", old, new, ops)
	}
}

func TestDiff_MultibyteReplace(t *testing.T) {
	// Replace an entire multi-byte rune sequence with another.
	old := "café résumé"
	new := "café resume"
	ops, err := Diff(old, new)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertReconstructs(t, old, new, ops)
	assertBoundariesValid(t, ops, old, new)
}

func TestCodepointDiff_Fallback(t *testing.T) {
	old := "a é b"
	new := "a é! b"
	ops, err := codepointDiff(old, new)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertReconstructs(t, old, new, ops)
	assertBoundariesValid(t, ops, old, new)
}

func TestIsBoundary(t *testing.T) {
	s := "aébc" // 'é' occupies bytes 1-2
	tests := []struct {
		pos  int
		want bool
	}{
		{0, true},
		{1, true},
		{2, false}, // mid-codepoint
		{3, true},
		{4, true}, // start of 'c'
	}
	for _, tt := range tests {
		if got := isBoundary(s, tt.pos); got != tt.want {
			t.Errorf("isBoundary(%q, %d) = %v, want %v", s, tt.pos, got, tt.want)
		}
	}
}

func assertReconstructs(t *testing.T, old, new string, ops []Op) {
	t.Helper()
	var gotOld, gotNew []byte
	for _, op := range ops {
		switch op.Type {
		case Equal:
			gotOld = append(gotOld, old[op.OldStart:op.OldEnd]...)
			gotNew = append(gotNew, new[op.NewStart:op.NewEnd]...)
		case Delete:
			gotOld = append(gotOld, old[op.OldStart:op.OldEnd]...)
		case Insert:
			gotNew = append(gotNew, new[op.NewStart:op.NewEnd]...)
		}
	}
	if string(gotOld) != old {
		t.Errorf("reconstructed old = %q, want %q", gotOld, old)
	}
	if string(gotNew) != new {
		t.Errorf("reconstructed new = %q, want %q", gotNew, new)
	}
}

func assertBoundariesValid(t *testing.T, ops []Op, old, new string) {
	t.Helper()
	if !boundariesValid(ops, old, new) {
		t.Errorf("boundariesValid = false for ops %+v", ops)
	}
}

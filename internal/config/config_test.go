package config

import "testing"

func TestDefault(t *testing.T) {
	c := Default()
	if c.MoveThreshold != 3 {
		t.Errorf("MoveThreshold = %d, want 3", c.MoveThreshold)
	}
	if c.Concurrency != 30 {
		t.Errorf("Concurrency = %d, want 30", c.Concurrency)
	}
}

func TestWithMoveThreshold_DoesNotMutateOriginal(t *testing.T) {
	base := Default()
	custom := base.WithMoveThreshold(5)

	if base.MoveThreshold != 3 {
		t.Errorf("base.MoveThreshold = %d, want unchanged 3", base.MoveThreshold)
	}
	if custom.MoveThreshold != 5 {
		t.Errorf("custom.MoveThreshold = %d, want 5", custom.MoveThreshold)
	}
	if custom.Concurrency != base.Concurrency {
		t.Errorf("Concurrency should carry over unchanged: %d vs %d", custom.Concurrency, base.Concurrency)
	}
}

func TestWithConcurrency_DoesNotMutateOriginal(t *testing.T) {
	base := Default()
	custom := base.WithConcurrency(8)

	if base.Concurrency != 30 {
		t.Errorf("base.Concurrency = %d, want unchanged 30", base.Concurrency)
	}
	if custom.Concurrency != 8 {
		t.Errorf("custom.Concurrency = %d, want 8", custom.Concurrency)
	}
}

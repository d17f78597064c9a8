package render

import "testing"

func TestScrollState_RecomputesOnResize(t *testing.T) {
	var flips []bool
	s := NewScrollState(func(v bool) { flips = append(flips, v) })

	if s.SetContentWidth(900) {
		t.Error("expected not scrollable before the viewport is known")
	}
	if !s.SetViewportWidth(600) {
		t.Error("expected scrollable when content exceeds viewport")
	}
	if s.SetViewportWidth(1200) {
		t.Error("expected resize to clear scrollability")
	}
	if !s.SetContentWidth(1500) {
		t.Error("expected content growth to restore scrollability")
	}
	if !s.Scrollable() {
		t.Error("expected Scrollable to reflect last computation")
	}

	want := []bool{true, false, true}
	if len(flips) != len(want) {
		t.Fatalf("expected %d change callbacks, got %v", len(want), flips)
	}
	for i := range want {
		if flips[i] != want[i] {
			t.Errorf("flip %d: got %v, want %v", i, flips[i], want[i])
		}
	}
}

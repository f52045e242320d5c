package idgen

import (
	"strings"
	"testing"
)

func TestWithPrefix(t *testing.T) {
	id := WithPrefix("run_")
	if !strings.HasPrefix(id, "run_") {
		t.Errorf("expected run_ prefix, got %s", id)
	}
	if len(id) != len("run_")+24 {
		t.Errorf("expected 24 hex chars after prefix, got %s", id)
	}
}

func TestHex_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Hex(12)
		if len(id) != 24 {
			t.Fatalf("expected 24 chars, got %d", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

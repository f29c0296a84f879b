package ledger

import (
	"strings"
	"testing"
)

func TestParseGroupMembers(t *testing.T) {
	input := "A\n\n  B  \nC\n\n"

	set, err := ParseGroupMembers(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseGroupMembers failed: %v", err)
	}

	if len(set) != 3 {
		t.Fatalf("len(set) = %d, want 3", len(set))
	}
	for _, m := range []string{"A", "B", "C"} {
		if !set.Contains(m) {
			t.Errorf("set should contain %q", m)
		}
	}
	if set.Contains("D") {
		t.Error("set should not contain D")
	}
}

func TestParseGroupMembers_Empty(t *testing.T) {
	set, err := ParseGroupMembers(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseGroupMembers failed: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("len(set) = %d, want 0", len(set))
	}
}

func TestNewGroupSet(t *testing.T) {
	set := NewGroupSet([]string{"A", "", "B", "A"})
	if len(set) != 2 {
		t.Errorf("len(set) = %d, want 2 (empties and duplicates dropped)", len(set))
	}
	if !set.Contains("A") || !set.Contains("B") {
		t.Error("set should contain A and B")
	}
}

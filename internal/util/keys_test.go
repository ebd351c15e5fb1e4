package util

import (
	"strings"
	"testing"
)

func TestBatchKeyIgnoresOrder(t *testing.T) {
	a := BatchKey("batch:ns", []int64{3, 1, 2})
	b := BatchKey("batch:ns", []int64{1, 2, 3})
	if a != b {
		t.Fatalf("order changed key: %s vs %s", a, b)
	}
	if c := BatchKey("batch:ns", []int64{1, 2, 4}); c == a {
		t.Fatalf("different sets collided: %s", c)
	}
	if !strings.HasPrefix(a, "batch:ns:") || len(a) != len("batch:ns:")+16 {
		t.Fatalf("unexpected shape %q", a)
	}
}

func TestBatchKeyDoesNotMutateInput(t *testing.T) {
	in := []int64{9, 4, 7}
	_ = BatchKey("p", in)
	if in[0] != 9 || in[1] != 4 || in[2] != 7 {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestEntryKey(t *testing.T) {
	if got := EntryKey("item:ns", -12); got != "item:ns:-12" {
		t.Fatalf("got %q", got)
	}
}

package partition

import "testing"

func TestBandIndexObserve(t *testing.T) {
	ix := NewBandIndex()
	if !ix.Observe("a-1-2-3") {
		t.Fatal("expected first observation to be new")
	}
	if ix.Observe("a-1-2-3") {
		t.Fatal("expected repeat observation to be known")
	}
	if ix.Len() != 1 {
		t.Fatalf("expected 1 region, got %d", ix.Len())
	}
}

func TestBandIndexRelated(t *testing.T) {
	ix := NewBandIndex()
	for _, id := range []RegionID{"a-1-2-3", "a-1-2-4", "a-f-f-f", "0-0-0-0", "b-1-2-3"} {
		ix.Observe(id)
	}

	got := ix.Related("a-1-2-3", 10)
	want := []RegionID{"b-1-2-3", "a-1-2-4", "a-f-f-f"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank %d: expected %s, got %s (all: %v)", i, want[i], got[i], got)
		}
	}

	if got := ix.Related("a-1-2-3", 1); len(got) != 1 || got[0] != "b-1-2-3" {
		t.Fatalf("expected truncation to best match, got %v", got)
	}
	if got := ix.Related("a-1-2-3", 0); got != nil {
		t.Fatalf("expected nil for k=0, got %v", got)
	}
}

func TestHamming(t *testing.T) {
	cases := []struct {
		a, b RegionID
		want int
	}{
		{"0-0", "0-0", 0},
		{"0-0", "1-0", 1},
		{"f-0", "0-f", 8},
		{"a-1-2-3", "a-1-2-4", 3},
	}
	for _, tc := range cases {
		if got := Hamming(tc.a, tc.b); got != tc.want {
			t.Errorf("Hamming(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
	if got := Hamming("0-0", "0-0-0"); got <= 8 {
		t.Errorf("expected shape mismatch to be maximally distant, got %d", got)
	}
}

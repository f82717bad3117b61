package interval

import (
	"math"
	"testing"
)

func spansEqual(a, b []Span) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i].Start-b[i].Start) > 1e-9 || math.Abs(a[i].End-b[i].End) > 1e-9 {
			return false
		}
	}
	return true
}

func TestMergeEmpty(t *testing.T) {
	if got := Merge(nil, 0); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestMergeOverlapping(t *testing.T) {
	in := []Span{{0, 2}, {1, 3}, {5, 6}}
	want := []Span{{0, 3}, {5, 6}}
	got := Merge(in, 0.2)
	if !spansEqual(got, want) {
		t.Fatalf("merge = %v, want %v", got, want)
	}
}

func TestMergeBridgesShortGap(t *testing.T) {
	in := []Span{{0, 1}, {1.1, 2}}
	want := []Span{{0, 2}}
	got := Merge(in, 0.2)
	if !spansEqual(got, want) {
		t.Fatalf("merge = %v, want %v", got, want)
	}
}

func TestMergeZeroGapKeepsAdjacent(t *testing.T) {
	in := []Span{{0, 1}, {1.1, 2}}
	got := Merge(in, 0)
	if !spansEqual(got, in) {
		t.Fatalf("merge = %v, want %v", got, in)
	}
}

func TestMergeSortsUnorderedInput(t *testing.T) {
	in := []Span{{5, 6}, {0, 2}, {1.5, 3}}
	want := []Span{{0, 3}, {5, 6}}
	got := Merge(in, 0)
	if !spansEqual(got, want) {
		t.Fatalf("merge = %v, want %v", got, want)
	}
}

func TestMergeIdempotent(t *testing.T) {
	cases := [][]Span{
		nil,
		{{0, 1}},
		{{0, 2}, {1, 3}, {5, 6}},
		{{0, 1}, {1.05, 2}, {2.1, 2.2}, {10, 11}},
		{{3, 4}, {0, 5}, {4.5, 6}},
	}
	for _, in := range cases {
		once := Merge(in, 0.2)
		twice := Merge(once, 0.2)
		if !spansEqual(once, twice) {
			t.Fatalf("merge not idempotent: once=%v twice=%v", once, twice)
		}
	}
}

func TestMergeOutputDisjointAndNotLarger(t *testing.T) {
	in := []Span{{0, 2}, {0.5, 1}, {1.9, 4}, {6, 7}, {6.1, 6.2}, {9, 9.5}}
	got := Merge(in, 0.2)
	if len(got) > len(in) {
		t.Fatalf("merge grew interval count: %d > %d", len(got), len(in))
	}
	for i := 0; i+1 < len(got); i++ {
		if got[i].End > got[i+1].Start {
			t.Fatalf("adjacent output spans overlap: %v then %v", got[i], got[i+1])
		}
	}
}

func TestTotalDuration(t *testing.T) {
	spans := []Span{{0, 2}, {5, 6.5}, {8, 8}}
	if got := TotalDuration(spans); math.Abs(got-3.5) > 1e-9 {
		t.Fatalf("total duration = %v, want 3.5", got)
	}
}

// Package interval provides speech interval arithmetic for the cutting
// pipeline: merging overlapping detections and measuring total speech time.
package interval

import "sort"

// Span is a half-open time range in seconds relative to the source start.
// A well-formed span has End > Start.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the span length in seconds, never negative.
func (s Span) Duration() float64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// TotalDuration sums the durations of all spans.
func TotalDuration(spans []Span) float64 {
	total := 0.0
	for _, s := range spans {
		total += s.Duration()
	}
	return total
}

// Merge sorts spans by start time and coalesces any pair closer than gap
// seconds. A gap of zero merges true overlaps only; a positive gap also
// bridges short silences between detections. Merging an already-merged
// sequence returns the same sequence.
func Merge(spans []Span, gap float64) []Span {
	if len(spans) == 0 {
		return nil
	}
	if gap < 0 {
		gap = 0
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := make([]Span, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start < current.End+gap {
			if next.End > current.End {
				current.End = next.End
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)
	return merged
}

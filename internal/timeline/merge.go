// Package timeline implements the cyclic weekly minute timeline: merging
// busy intervals and mapping between wall-clock points and minute offsets.
package timeline

import (
	"sort"

	"schedgen/internal/model"
)

// Merge returns the union of set and added as a sorted, pairwise disjoint
// slice. Touching intervals (next.Start == last.End) are merged. The input
// slices are not modified.
func Merge(set []model.Interval, added ...model.Interval) []model.Interval {
	all := make([]model.Interval, 0, len(set)+len(added))
	all = append(all, set...)
	all = append(all, added...)
	if len(all) == 0 {
		return []model.Interval{}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start < all[j].Start
	})

	merged := []model.Interval{all[0]}
	for _, cur := range all[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End {
			last.End = max(last.End, cur.End)
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Remove returns set without the interval whose bounds equal iv exactly.
// Removal never splits an interval.
func Remove(set []model.Interval, iv model.Interval) []model.Interval {
	out := make([]model.Interval, 0, len(set))
	for _, cur := range set {
		if cur == iv {
			continue
		}
		out = append(out, cur)
	}
	return out
}

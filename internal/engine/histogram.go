package engine

import (
	"sort"

	"golang.org/x/xerrors"
)

type HistogramPoint struct {
	Time    int64 `json:"time"`
	Inserts int   `json:"inserts"`
	Deletes int   `json:"deletes"`
}

// ComputeHistogram buckets write intervals by start time. Rows rejected by
// match are skipped; a nil match keeps every row.
func ComputeHistogram(tc *TimelineColumns, interval int64, match func(key string, iv Interval) bool) ([]HistogramPoint, error) {
	if interval <= 0 {
		return nil, xerrors.Errorf("histogram interval must be positive, got %d", interval)
	}
	n := tc.Len()
	if n < 0 {
		return nil, xerrors.New("histogram columns have mismatched lengths")
	}

	buckets := make(map[int64]*HistogramPoint)
	for i := 0; i < n; i++ {
		key, iv := tc.Row(i)
		if match != nil && !match(key, iv) {
			continue
		}

		bucket := floorDiv(iv.Start, interval) * interval
		p, ok := buckets[bucket]
		if !ok {
			p = &HistogramPoint{Time: bucket}
			buckets[bucket] = p
		}
		if iv.Delta > 0 {
			p.Inserts++
		} else {
			p.Deletes++
		}
	}

	points := make([]HistogramPoint, 0, len(buckets))
	for _, p := range buckets {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Time < points[j].Time
	})
	return points, nil
}

// floorDiv rounds towards negative infinity so negative times bucket correctly.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

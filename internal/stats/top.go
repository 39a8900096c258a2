package stats

import (
	"math"
	"sort"

	"github.com/verte-zerg/keyscore/internal/model"
)

// WorstAttempts returns the indices of the n attempts with the largest start
// time error, worst first. Ties keep attempt order.
func WorstAttempts(r model.Report, n int) []int {
	if n <= 0 || len(r.Attempts) == 0 {
		return nil
	}
	items := make([]model.AttemptResult, len(r.Attempts))
	copy(items, r.Attempts)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Press.StartTimeError > items[j].Press.StartTimeError
	})
	if n > len(items) {
		n = len(items)
	}
	out := make([]int, 0, n)
	for _, res := range items[:n] {
		out = append(out, res.Window.Index)
	}
	return out
}

// BestAttempt returns the index of the attempt with the most matched starts,
// preferring the smaller start time error on ties. ok is false for an empty report.
func BestAttempt(r model.Report) (index int, ok bool) {
	best := -1
	for i, res := range r.Attempts {
		if best < 0 {
			best = i
			continue
		}
		cur, prev := res.Press, r.Attempts[best].Press
		if cur.MatchedStart > prev.MatchedStart ||
			(cur.MatchedStart == prev.MatchedStart && cur.StartTimeError < prev.StartTimeError) {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return r.Attempts[best].Window.Index, true
}

func metricValue(m model.Metric) float64 {
	if !m.Available {
		return math.NaN()
	}
	return m.Value
}

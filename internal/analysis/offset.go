package analysis

import (
	"math"

	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/song"
)

// OffsetEstimate is the result of aligning a score onto an attempt.
type OffsetEstimate struct {
	PredictedStart float64
	PredictedEnd   float64
	// MeanOffset is zero when Samples is zero.
	MeanOffset float64
	Samples    int
}

// EstimateOffset shifts softStart by the mean nearest-press offset of every
// reference note. Per note only the candidate with the smallest |offset| within
// tolerance counts, and equal distances keep the earliest press.
func EstimateOffset(score *song.Score, s *recording.Session, layout model.KeyLayout, softStart, tolerance float64) OffsetEstimate {
	sum := 0.0
	n := 0
	for _, pitch := range score.Pitches() {
		if !layout.Playable(pitch) {
			continue
		}
		presses := s.Presses(pitch)
		if len(presses) == 0 {
			continue
		}
		for _, note := range score.Notes(pitch) {
			noteStart := score.Seconds(note.StartBeat)
			best, found := 0.0, false
			for _, p := range presses {
				off := (p.Start - softStart) - noteStart
				if math.Abs(off) > tolerance {
					continue
				}
				if !found || math.Abs(off) < math.Abs(best) {
					best, found = off, true
				}
			}
			if found {
				sum += best
				n++
			}
		}
	}

	est := OffsetEstimate{PredictedStart: softStart, Samples: n}
	if n > 0 {
		est.MeanOffset = sum / float64(n)
		est.PredictedStart = softStart + est.MeanOffset
	}
	est.PredictedEnd = est.PredictedStart + score.Duration()
	return est
}

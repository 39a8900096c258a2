package analysis

import (
	"math"

	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/song"
)

// claimSet records which presses of one pitch a matching pass has used.
type claimSet map[int]struct{}

func (c claimSet) has(i int) bool {
	_, ok := c[i]
	return ok
}

func (c claimSet) claim(i int) {
	c[i] = struct{}{}
}

// MatchAttempt greedily pairs reference notes with recorded presses inside the
// attempt window. Starts and ends are claimed independently, so one press may
// supply the start of one note and the end of another.
func MatchAttempt(score *song.Score, s *recording.Session, layout model.KeyLayout, w model.AttemptWindow) model.AttemptMetrics {
	var m model.AttemptMetrics
	beat := score.BeatLength()
	shift := w.PredictedStart - w.RollStart
	inRange := func(p model.Press) bool {
		return p.Start >= w.RollStart && p.Start <= w.PredictedEnd
	}

	for _, pitch := range score.Pitches() {
		var presses []model.Press
		if layout.Playable(pitch) {
			presses = s.Presses(pitch)
		}
		starts, ends := claimSet{}, claimSet{}

		for _, note := range score.Notes(pitch) {
			noteStart := score.Seconds(note.StartBeat) + shift
			noteEnd := noteStart + score.Seconds(note.LengthBeats)

			if i, d := closestStart(presses, starts, w.RollStart, noteStart, noteEnd, beat); i >= 0 {
				starts.claim(i)
				m.MatchedStart++
				m.StartTimeError += d
			}
			if i, d := closestEnd(presses, ends, w.RollStart, noteStart, noteEnd, beat); i >= 0 {
				ends.claim(i)
				m.MatchedEnd++
				m.EndTimeError += d
			}
		}

		for i, p := range presses {
			if !inRange(p) {
				continue
			}
			if !starts.has(i) {
				m.ExtraStart++
			}
			if !ends.has(i) {
				m.ExtraEnd++
			}
		}
	}

	for _, pitch := range s.Pitches() {
		if !layout.Playable(pitch) || score.HasPitch(pitch) {
			continue
		}
		for _, p := range s.Presses(pitch) {
			if inRange(p) {
				m.ExtraStart++
				m.ExtraEnd++
			}
		}
	}

	m.MissedStart = score.NoteCount() - m.MatchedStart
	m.MissedEnd = score.NoteCount() - m.MatchedEnd
	return m
}

// closestStart returns the unclaimed press whose start is nearest noteStart
// within (noteStart - beat/2, noteEnd), or -1.
func closestStart(presses []model.Press, claimed claimSet, rollStart, noteStart, noteEnd, beat float64) (int, float64) {
	best, bestDist := -1, 0.0
	for i, p := range presses {
		if claimed.has(i) {
			continue
		}
		rel := p.Start - rollStart
		if rel <= noteStart-beat/2 || rel >= noteEnd {
			continue
		}
		d := math.Abs(rel - noteStart)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// closestEnd returns the unclaimed press whose release is nearest noteEnd
// within (noteStart, noteEnd + beat/2), or -1.
func closestEnd(presses []model.Press, claimed claimSet, rollStart, noteStart, noteEnd, beat float64) (int, float64) {
	best, bestDist := -1, 0.0
	for i, p := range presses {
		if claimed.has(i) {
			continue
		}
		relEnd := p.End() - rollStart
		if relEnd >= noteEnd+beat/2 || relEnd <= noteStart {
			continue
		}
		d := math.Abs(relEnd - noteEnd)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

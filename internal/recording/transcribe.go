package recording

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/verte-zerg/keyscore/internal/model"
)

// DefaultResolution is the transcription grid in beats per second.
const DefaultResolution = 2.0

// ErrNothingPlayed is returned when no playable press follows the last marker.
var ErrNothingPlayed = errors.New("no playable presses after the last marker")

// Transcription is a performance quantized into score notes.
type Transcription struct {
	// Tempo replays the notes at the recorded speed, in beats per second.
	Tempo            float64
	TotalLengthBeats float64
	Notes            []model.Note
}

// Transcribe quantizes the take after the last marker press onto a grid of
// resolution beats per second. Beat zero is the first playable press of the take.
// Ties round to even.
func Transcribe(s *Session, layout model.KeyLayout, resolution float64) (Transcription, error) {
	if resolution <= 0 {
		return Transcription{}, fmt.Errorf("resolution must be > 0")
	}
	markers := s.MarkerStarts(layout.MarkerPitch)
	if len(markers) == 0 {
		return Transcription{}, ErrNoMarkers
	}
	cutoff := markers[len(markers)-1]

	beginning := math.Inf(1)
	for _, pitch := range s.Pitches() {
		if !layout.Playable(pitch) {
			continue
		}
		for _, p := range s.Presses(pitch) {
			if p.Start > cutoff && p.Start < beginning {
				beginning = p.Start
			}
		}
	}
	if math.IsInf(beginning, 1) {
		return Transcription{}, ErrNothingPlayed
	}

	out := Transcription{Tempo: resolution}
	for _, pitch := range s.Pitches() {
		if !layout.Playable(pitch) {
			continue
		}
		for _, p := range s.Presses(pitch) {
			if p.Start <= cutoff {
				continue
			}
			n := model.Note{
				Pitch:       pitch,
				StartBeat:   math.RoundToEven((p.Start - beginning) * resolution),
				LengthBeats: math.RoundToEven(p.Length * resolution),
			}
			out.Notes = append(out.Notes, n)
			if end := n.StartBeat + n.LengthBeats; end > out.TotalLengthBeats {
				out.TotalLengthBeats = end
			}
		}
	}
	sort.SliceStable(out.Notes, func(i, j int) bool {
		if out.Notes[i].Pitch != out.Notes[j].Pitch {
			return out.Notes[i].Pitch < out.Notes[j].Pitch
		}
		return out.Notes[i].StartBeat < out.Notes[j].StartBeat
	})
	return out, nil
}

package analysis

import (
	"math"

	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/recording"
)

// LocateRoll bounds attempt index between marker presses and finds its soft start,
// the earliest playable press strictly inside the roll.
// The predicted fields of the returned window are left at the soft start.
func LocateRoll(s *recording.Session, layout model.KeyLayout, index int) (model.AttemptWindow, error) {
	markers := s.MarkerStarts(layout.MarkerPitch)
	if len(markers) == 0 {
		return model.AttemptWindow{}, &PreconditionError{Index: index, Err: ErrNoMarkerPresses}
	}
	if index < 0 || index >= len(markers) {
		return model.AttemptWindow{}, &PreconditionError{Index: index, Err: ErrAttemptOutOfRange}
	}

	w := model.AttemptWindow{
		Index:     index,
		RollStart: markers[index],
		RollEnd:   math.Inf(1),
	}
	if index+1 < len(markers) {
		w.RollEnd = markers[index+1]
	}

	soft := w.RollEnd
	for _, pitch := range s.Pitches() {
		if !layout.Playable(pitch) {
			continue
		}
		for _, p := range s.Presses(pitch) {
			if p.Start > w.RollStart && p.Start < soft {
				soft = p.Start
			}
		}
	}
	w.SoftStart = soft
	w.PredictedStart = soft
	w.PredictedEnd = soft
	return w, nil
}

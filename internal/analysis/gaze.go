package analysis

import (
	"math"

	"github.com/verte-zerg/keyscore/internal/model"
)

// lateralLimit is the |x| of a focus point beyond which the gaze is off the keyboard.
const lateralLimit = 1.0

// AnalyzeGaze scans one time-sorted pose stream over [start, end] and returns
// its attention metrics. The scan stops at the first sign of corruption: a gap
// of at least timeGap seconds between scanned samples (or between the last one
// and end), or more than focusAway seconds of gaze off the keyboard.
func AnalyzeGaze(poses []model.Pose, start, end, timeGap, focusAway float64) model.AttentionMetrics {
	m := model.AttentionMetrics{Status: model.StatusScanning}
	prev := start
	away := 0.0
	depth := 0.0

	for k := range poses {
		cur := poses[k]
		if cur.Time < start {
			continue
		}
		if cur.Time > end {
			break
		}
		if k+1 >= len(poses) {
			break
		}
		next := poses[k+1]

		gap := cur.Time - prev
		prev = cur.Time
		if gap >= timeGap {
			return corrupt(m, model.ReasonTimeGap)
		}

		m.AngularMovement += angleBetween(cur.Rotation, next.Rotation)

		curFocus := focusPoint(cur.Position, cur.Rotation)
		nextFocus := focusPoint(next.Position, next.Rotation)
		curOn, nextOn := curFocus.Z > 0, nextFocus.Z > 0
		dt := next.Time - cur.Time
		if curOn && nextOn {
			m.OnTargetTime += dt
		}
		if curOn != nextOn {
			m.FocusSwitches++
		}

		depth += curFocus.Z
		m.Samples++

		if math.Abs(curFocus.X) > lateralLimit && math.Abs(nextFocus.X) > lateralLimit {
			away += dt
			if away > focusAway {
				return corrupt(m, model.ReasonFocusAway)
			}
		}
	}

	if m.Samples == 0 {
		return corrupt(m, model.ReasonNoSamples)
	}
	if end-prev >= timeGap {
		return corrupt(m, model.ReasonEndedEarly)
	}
	m.Status = model.StatusClean
	m.MeanFocusDepth = depth / float64(m.Samples)
	return m
}

func corrupt(m model.AttentionMetrics, reason model.CorruptionReason) model.AttentionMetrics {
	m.Status = model.StatusCorrupted
	m.Reason = reason
	return m
}

// attentionVector is the mean of the clean streams as angular movement, focus
// switches, on-target time and mean focus depth. ok is false when none is clean.
func attentionVector(streams ...model.AttentionMetrics) (v [4]float64, samples int, ok bool) {
	n := 0
	for _, s := range streams {
		if !s.Clean() {
			continue
		}
		v[0] += s.AngularMovement
		v[1] += float64(s.FocusSwitches)
		v[2] += s.OnTargetTime
		v[3] += s.MeanFocusDepth
		samples += s.Samples
		n++
	}
	if n == 0 {
		return v, 0, false
	}
	for i := range v {
		v[i] /= float64(n)
	}
	return v, samples, true
}

// combineAttention averages the clean streams. It returns nil when none is clean.
// Focus switches are rounded to the nearest whole switch.
func combineAttention(streams ...model.AttentionMetrics) *model.AttentionMetrics {
	v, samples, ok := attentionVector(streams...)
	if !ok {
		return nil
	}
	return &model.AttentionMetrics{
		AngularMovement: v[0],
		FocusSwitches:   int(math.Round(v[1])),
		OnTargetTime:    v[2],
		MeanFocusDepth:  v[3],
		Samples:         samples,
		Status:          model.StatusClean,
	}
}

// Gap is a stretch without pose samples.
type Gap struct {
	Start  float64
	Length float64
}

// ScanGaps lists every gap between consecutive samples longer than threshold.
func ScanGaps(poses []model.Pose, threshold float64) []Gap {
	var gaps []Gap
	for k := 1; k < len(poses); k++ {
		d := poses[k].Time - poses[k-1].Time
		if d > threshold {
			gaps = append(gaps, Gap{Start: poses[k-1].Time, Length: d})
		}
	}
	return gaps
}

package api

import (
	"math"
	"time"

	"github.com/verte-zerg/keyscore/internal/model"
)

type errorJSON struct {
	Error string `json:"error"`
}

type songJSON struct {
	Name      string  `json:"name"`
	Tempo     float64 `json:"tempo"`
	Beats     float64 `json:"beats"`
	Seconds   float64 `json:"seconds"`
	NoteCount int     `json:"note_count"`
}

// Infinite bounds encode as null.
type windowJSON struct {
	Index          int      `json:"index"`
	RollStart      float64  `json:"roll_start"`
	RollEnd        *float64 `json:"roll_end"`
	SoftStart      *float64 `json:"soft_start"`
	PredictedStart *float64 `json:"predicted_start"`
	PredictedEnd   *float64 `json:"predicted_end"`
	OffsetSamples  int      `json:"offset_samples"`
}

type streamJSON struct {
	Status          model.StreamStatus     `json:"status"`
	Reason          model.CorruptionReason `json:"reason,omitempty"`
	Samples         int                    `json:"samples"`
	AngularMovement float64                `json:"angular_movement"`
	FocusSwitches   int                    `json:"focus_switches"`
	OnTargetTime    float64                `json:"on_target_time"`
	MeanFocusDepth  float64                `json:"mean_focus_depth"`
}

type attemptJSON struct {
	Window         windowJSON `json:"window"`
	StartTimeError float64    `json:"start_time_error"`
	EndTimeError   float64    `json:"end_time_error"`
	MatchedStart   int        `json:"matched_start"`
	MatchedEnd     int        `json:"matched_end"`
	MissedStart    int        `json:"missed_start"`
	MissedEnd      int        `json:"missed_end"`
	ExtraStart     int        `json:"extra_start"`
	ExtraEnd       int        `json:"extra_end"`
	Left           streamJSON `json:"left"`
	Right          streamJSON `json:"right"`
}

// Unavailable averages encode as null.
type reportJSON struct {
	AttemptCount int                 `json:"attempt_count"`
	EyeDataCount int                 `json:"eye_data_count"`
	Averages     map[string]*float64 `json:"averages"`
	Attempts     []attemptJSON       `json:"attempts,omitempty"`
}

type runJSON struct {
	RunID     string     `json:"run_id"`
	Song      string     `json:"song"`
	Indices   []int      `json:"indices"`
	CreatedAt time.Time  `json:"created_at"`
	Report    reportJSON `json:"report"`
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func toWindowJSON(w model.AttemptWindow) windowJSON {
	return windowJSON{
		Index:          w.Index,
		RollStart:      w.RollStart,
		RollEnd:        finite(w.RollEnd),
		SoftStart:      finite(w.SoftStart),
		PredictedStart: finite(w.PredictedStart),
		PredictedEnd:   finite(w.PredictedEnd),
		OffsetSamples:  w.OffsetSamples,
	}
}

func toStreamJSON(a model.AttentionMetrics) streamJSON {
	return streamJSON{
		Status:          a.Status,
		Reason:          a.Reason,
		Samples:         a.Samples,
		AngularMovement: a.AngularMovement,
		FocusSwitches:   a.FocusSwitches,
		OnTargetTime:    a.OnTargetTime,
		MeanFocusDepth:  a.MeanFocusDepth,
	}
}

func toReportJSON(r model.Report) reportJSON {
	metrics := append(r.PressMetrics(), r.AttentionMetrics()...)
	avgs := make(map[string]*float64, len(metrics)+2)
	for i, m := range metrics {
		avgs[model.ReportColumns[i]] = metricPtr(m)
	}
	avgs["MISSED_START"] = metricPtr(r.MissedStartAvg)
	avgs["MISSED_END"] = metricPtr(r.MissedEndAvg)

	out := reportJSON{
		AttemptCount: r.AttemptCount,
		EyeDataCount: r.EyeDataCount,
		Averages:     avgs,
	}
	for _, res := range r.Attempts {
		p := res.Press
		out.Attempts = append(out.Attempts, attemptJSON{
			Window:         toWindowJSON(res.Window),
			StartTimeError: p.StartTimeError,
			EndTimeError:   p.EndTimeError,
			MatchedStart:   p.MatchedStart,
			MatchedEnd:     p.MatchedEnd,
			MissedStart:    p.MissedStart,
			MissedEnd:      p.MissedEnd,
			ExtraStart:     p.ExtraStart,
			ExtraEnd:       p.ExtraEnd,
			Left:           toStreamJSON(res.Left),
			Right:          toStreamJSON(res.Right),
		})
	}
	return out
}

func metricPtr(m model.Metric) *float64 {
	if !m.Available {
		return nil
	}
	v := m.Value
	return &v
}

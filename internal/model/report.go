package model

import (
	"strconv"
	"strings"
)

// PressMetrics returns the press averages in report column order.
func (r Report) PressMetrics() []Metric {
	return []Metric{
		r.StartTimeErrorAvg,
		r.EndTimeErrorAvg,
		r.MatchedStartAvg,
		r.MatchedEndAvg,
		r.ExtraStartAvg,
		r.ExtraEndAvg,
	}
}

// AttentionMetrics returns the attention averages in report column order.
func (r Report) AttentionMetrics() []Metric {
	return []Metric{
		r.AngularMovementAvg,
		r.FocusSwitchAvg,
		r.OnTargetTimeAvg,
		r.MeanFocusDepthAvg,
	}
}

// TSV renders the report as one tab separated line, "-" for unavailable values.
func (r Report) TSV() string {
	metrics := append(r.PressMetrics(), r.AttentionMetrics()...)
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		parts[i] = m.String()
	}
	return strings.Join(parts, "\t")
}

// String formats the metric or "-" when unavailable.
func (m Metric) String() string {
	if !m.Available {
		return "-"
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

// ReportColumns names the TSV columns in order.
var ReportColumns = []string{"STE", "ETE", "MSC", "MEC", "ESC", "EEC", "EM", "FS", "PRFT", "MFD"}

package stats

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/verte-zerg/keyscore/internal/analysis"
	"github.com/verte-zerg/keyscore/internal/model"
)

const sparkChars = "_.:-=+*#%@"

var metricDescriptions = []string{
	"start time error (s)",
	"end time error (s)",
	"matched starts",
	"matched ends",
	"extra starts",
	"extra ends",
	"angular movement (deg)",
	"focus switches",
	"on-target time (s)",
	"mean focus depth",
}

// MovingAverage computes a rolling mean over the finite values of each window.
// A window without finite values yields NaN.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		vals := finite(values[start : i+1])
		if len(vals) == 0 {
			out[i] = math.NaN()
			continue
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		out[i] = sum / float64(len(vals))
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline. Unavailable values are blank.
func Sparkline(values []float64) string {
	vals := finite(values)
	if len(vals) == 0 {
		return strings.Repeat(" ", len(values))
	}
	minVal, maxVal := vals[0], vals[0]
	for _, v := range vals[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	flat := math.Abs(maxVal-minVal) < 1e-9
	var b strings.Builder
	for _, v := range values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			b.WriteByte(' ')
		case flat:
			b.WriteByte(sparkChars[len(sparkChars)/2])
		default:
			pos := (v - minVal) / (maxVal - minVal)
			idx := int(math.Round(pos * float64(len(sparkChars)-1)))
			b.WriteByte(sparkChars[idx])
		}
	}
	return b.String()
}

// RenderSummary prints the averaged metrics of a report.
func RenderSummary(w io.Writer, r model.Report) error {
	if _, err := fmt.Fprintln(w, "Summary"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Attempts: %d\n", r.AttemptCount); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "With eye data: %d\n", r.EyeDataCount); err != nil {
		return err
	}
	metrics := append(r.PressMetrics(), r.AttentionMetrics()...)
	rows := make([][]string, len(metrics))
	for i, m := range metrics {
		rows[i] = []string{model.ReportColumns[i], formatMetric(m), metricDescriptions[i]}
	}
	for _, line := range formatTable([]string{"Metric", "Avg", ""}, rows, map[int]bool{1: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderAttempts prints one row per analyzed attempt.
func RenderAttempts(w io.Writer, r model.Report) error {
	if len(r.Attempts) == 0 {
		_, err := fmt.Fprintln(w, "No attempts analyzed.")
		return err
	}
	headers := []string{"#", "Start", "End", "STE", "ETE", "Matched", "Missed", "Extra", "Left", "Right"}
	rows := make([][]string, 0, len(r.Attempts))
	for _, res := range r.Attempts {
		p := res.Press
		rows = append(rows, []string{
			strconv.Itoa(res.Window.Index),
			formatSeconds(res.Window.PredictedStart),
			formatSeconds(res.Window.PredictedEnd),
			formatFloat(p.StartTimeError),
			formatFloat(p.EndTimeError),
			fmt.Sprintf("%d/%d", p.MatchedStart, p.MatchedEnd),
			fmt.Sprintf("%d/%d", p.MissedStart, p.MissedEnd),
			fmt.Sprintf("%d/%d", p.ExtraStart, p.ExtraEnd),
			StreamLabel(res.Left),
			StreamLabel(res.Right),
		})
	}
	rightAlign := map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 6: true, 7: true}
	if _, err := fmt.Fprintln(w, "Attempts (start/end counts)"); err != nil {
		return err
	}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// StreamLabel is "clean" or the corruption reason of a gaze stream.
func StreamLabel(a model.AttentionMetrics) string {
	if a.Clean() {
		return string(model.StatusClean)
	}
	if a.Reason != model.ReasonNone {
		return string(a.Reason)
	}
	return string(a.Status)
}

// AttemptSeries extracts per-attempt curves. Attempts without clean gaze data
// are NaN in the attention curves.
func AttemptSeries(r model.Report) map[string][]float64 {
	n := len(r.Attempts)
	out := map[string][]float64{}
	for _, key := range model.ReportColumns {
		out[key] = make([]float64, n)
	}
	out["MISS"] = make([]float64, n)
	for i, res := range r.Attempts {
		p := res.Press
		out["STE"][i] = p.StartTimeError
		out["ETE"][i] = p.EndTimeError
		out["MSC"][i] = float64(p.MatchedStart)
		out["MEC"][i] = float64(p.MatchedEnd)
		out["ESC"][i] = float64(p.ExtraStart)
		out["EEC"][i] = float64(p.ExtraEnd)
		out["MISS"][i] = float64(p.MissedStart)
		att := res.Attention
		if att == nil {
			for _, key := range model.ReportColumns[6:] {
				out[key][i] = math.NaN()
			}
			continue
		}
		out["EM"][i] = att.AngularMovement
		out["FS"][i] = float64(att.FocusSwitches)
		out["PRFT"][i] = att.OnTargetTime
		out["MFD"][i] = att.MeanFocusDepth
	}
	return out
}

// RenderCurves prints per-attempt curves of a report.
func RenderCurves(w io.Writer, r model.Report, window int) error {
	return RenderCurvesWithSize(w, r, window, 0, defaultPlotHeight, false)
}

// RenderCurvesWithSize prints per-attempt curves sized to a given total width.
func RenderCurvesWithSize(w io.Writer, r model.Report, window, totalWidth, height int, useColor bool) error {
	if len(r.Attempts) < 2 {
		return nil
	}
	series := AttemptSeries(r)
	smooth := func(key string) []float64 {
		return MovingAverage(series[key], window)
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	title := "Timing error per attempt (s)"
	if window > 1 {
		title = fmt.Sprintf("%s, moving average %d", title, window)
	}
	if err := PlotSeriesWithColor(w, title, []Series{
		{Name: "start", Values: smooth("STE")},
		{Name: "end", Values: smooth("ETE")},
	}, width, height, useColor); err != nil {
		return err
	}
	if err := PlotSeriesWithColor(w, "Note starts per attempt", []Series{
		{Name: "matched", Values: smooth("MSC")},
		{Name: "missed", Values: smooth("MISS")},
		{Name: "extra", Values: smooth("ESC")},
	}, width, height, useColor); err != nil {
		return err
	}
	return PlotSeriesWithColor(w, "On-target time per attempt (s)", []Series{
		{Name: "on target", Values: smooth("PRFT")},
	}, width, height, useColor)
}

// RenderSparklines prints one sparkline per report column.
func RenderSparklines(w io.Writer, r model.Report) error {
	if len(r.Attempts) == 0 {
		return nil
	}
	series := AttemptSeries(r)
	rows := make([][]string, 0, len(model.ReportColumns))
	for _, key := range model.ReportColumns {
		rows = append(rows, []string{key, Sparkline(series[key])})
	}
	for _, line := range formatTable(nil, rows, nil) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderSessions prints stored sessions.
func RenderSessions(w io.Writer, sessions []model.SessionInfo) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.User,
			s.Song,
			strconv.Itoa(s.Attempts),
			strconv.Itoa(s.PressCount),
			strconv.Itoa(s.PoseCount),
		})
	}
	headers := []string{"ID", "User", "Song", "Attempts", "Presses", "Poses"}
	for _, line := range formatTable(headers, rows, map[int]bool{0: true, 3: true, 4: true, 5: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderGaps prints the marker presses and the pose gaps of both streams.
func RenderGaps(w io.Writer, scan analysis.GapScan) error {
	markers := make([]string, len(scan.Markers))
	for i, m := range scan.Markers {
		markers[i] = formatSeconds(m)
	}
	if _, err := fmt.Fprintf(w, "Markers: %s\n", strings.Join(markers, ", ")); err != nil {
		return err
	}
	rows := make([][]string, 0, len(scan.Left)+len(scan.Right))
	add := func(side model.Side, gaps []analysis.Gap) {
		for _, g := range gaps {
			rows = append(rows, []string{string(side), formatSeconds(g.Start), formatSeconds(g.Length)})
		}
	}
	add(model.Left, scan.Left)
	add(model.Right, scan.Right)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No gaps found.")
		return err
	}
	for _, line := range formatTable([]string{"Side", "Start", "Length"}, rows, map[int]bool{1: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatMetric(m model.Metric) string {
	if !m.Available {
		return "-"
	}
	return formatFloat(m.Value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatSeconds(v float64) string {
	if math.IsInf(v, 1) {
		return "end"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

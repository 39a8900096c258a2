package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/verte-zerg/keyscore/internal/analysis"
	"github.com/verte-zerg/keyscore/internal/model"
)

func sampleReport() model.Report {
	results := []model.AttemptResult{
		{
			Window:    model.AttemptWindow{Index: 0, PredictedStart: 10.2, PredictedEnd: 48.6},
			Press:     model.AttemptMetrics{StartTimeError: 0.1, MatchedStart: 35, MatchedEnd: 34, MissedEnd: 1},
			Left:      model.AttentionMetrics{Status: model.StatusClean, OnTargetTime: 20},
			Right:     model.AttentionMetrics{Status: model.StatusCorrupted, Reason: model.ReasonTimeGap},
			Attention: &model.AttentionMetrics{OnTargetTime: 20, Status: model.StatusClean},
		},
		{
			Window: model.AttemptWindow{Index: 1, PredictedStart: 60, PredictedEnd: math.Inf(1)},
			Press:  model.AttemptMetrics{StartTimeError: 0.3, MatchedStart: 30, MissedStart: 5, ExtraStart: 2},
			Left:   model.AttentionMetrics{Status: model.StatusCorrupted, Reason: model.ReasonNoSamples},
			Right:  model.AttentionMetrics{Status: model.StatusCorrupted, Reason: model.ReasonFocusAway},
		},
	}
	return analysis.Aggregate(results)
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{1, 3, 5, 7}, 2)
	want := []float64{1, 2, 4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	nan := math.NaN()
	gapped := MovingAverage([]float64{nan, nan, 4}, 2)
	if !math.IsNaN(gapped[1]) || gapped[2] != 4 {
		t.Fatalf("expected NaN to be skipped, got %v", gapped)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 9}); got != "_@" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{2, math.NaN(), 2}); got != "+ +" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
	if got := Sparkline(nil); got != "" {
		t.Fatalf("expected empty sparkline, got %q", got)
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, sampleReport()); err != nil {
		t.Fatalf("render summary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Attempts: 2", "With eye data: 1", "STE", "0.200", "PRFT", "20.000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderSummaryUnavailable(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, analysis.Aggregate(nil)); err != nil {
		t.Fatalf("render summary: %v", err)
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, "STE") && !strings.Contains(line, "-") {
			t.Fatalf("expected unavailable STE, got %q", line)
		}
	}
}

func TestRenderAttempts(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderAttempts(&buf, sampleReport()); err != nil {
		t.Fatalf("render attempts: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"clean", "time gap", "no samples", "focus away", "end", "30/0", "35/34"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestAttemptSeriesMarksMissingAttention(t *testing.T) {
	series := AttemptSeries(sampleReport())
	if series["PRFT"][0] != 20 {
		t.Fatalf("expected on-target time 20, got %v", series["PRFT"][0])
	}
	if !math.IsNaN(series["PRFT"][1]) {
		t.Fatalf("expected NaN for attempt without eye data, got %v", series["PRFT"][1])
	}
	if series["MISS"][1] != 5 {
		t.Fatalf("expected 5 missed starts, got %v", series["MISS"][1])
	}
}

func TestRenderCurvesWithSize(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderCurvesWithSize(&buf, sampleReport(), 1, 60, 4, false); err != nil {
		t.Fatalf("render curves: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Timing error per attempt") || !strings.Contains(out, "Note starts per attempt") {
		t.Fatalf("expected curve titles in output:\n%s", out)
	}
}

func TestRenderGaps(t *testing.T) {
	var buf bytes.Buffer
	scan := analysis.GapScan{
		Markers: []float64{1, 50},
		Left:    []analysis.Gap{{Start: 12, Length: 4}},
	}
	if err := RenderGaps(&buf, scan); err != nil {
		t.Fatalf("render gaps: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Markers: 1.00, 50.00") || !strings.Contains(out, "left") || !strings.Contains(out, "4.00") {
		t.Fatalf("unexpected gap output:\n%s", out)
	}

	buf.Reset()
	if err := RenderGaps(&buf, analysis.GapScan{}); err != nil {
		t.Fatalf("render gaps: %v", err)
	}
	if !strings.Contains(buf.String(), "No gaps found.") {
		t.Fatalf("expected empty message, got %q", buf.String())
	}
}

func TestRenderSessions(t *testing.T) {
	var buf bytes.Buffer
	err := RenderSessions(&buf, []model.SessionInfo{{ID: 3, User: "ada", Song: "cuckoo", Attempts: 2, PressCount: 80, PoseCount: 900}})
	if err != nil {
		t.Fatalf("render sessions: %v", err)
	}
	if !strings.Contains(buf.String(), "cuckoo") || !strings.Contains(buf.String(), "900") {
		t.Fatalf("unexpected sessions output:\n%s", buf.String())
	}
}

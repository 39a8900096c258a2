package analysis

import (
	"fmt"

	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/monitoring"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/song"
)

// Analyzer scores attempts of one session against one score. It only reads its
// inputs, so concurrent calls are safe.
type Analyzer struct {
	score   *song.Score
	session *recording.Session
	cfg     model.AnalysisConfig
}

// NewAnalyzer validates cfg and freezes a snapshot of session.
func NewAnalyzer(score *song.Score, session *recording.Session, cfg model.AnalysisConfig) (*Analyzer, error) {
	if score == nil {
		return nil, &PreconditionError{Index: -1, Err: fmt.Errorf("%w: score is nil", ErrInvalidConfig)}
	}
	if session == nil {
		return nil, &PreconditionError{Index: -1, Err: fmt.Errorf("%w: session is nil", ErrInvalidConfig)}
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Analyzer{score: score, session: session.Snapshot(), cfg: cfg}, nil
}

// ValidateConfig checks thresholds and key layout.
func ValidateConfig(cfg model.AnalysisConfig) error {
	fail := func(format string, args ...any) error {
		return &PreconditionError{Index: -1, Err: fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)}
	}
	l := cfg.Layout
	switch {
	case cfg.Tolerance < 0:
		return fail("tolerance must be >= 0")
	case cfg.TimeGapThreshold <= 0:
		return fail("time gap threshold must be > 0")
	case cfg.FocusAwayThreshold <= 0:
		return fail("focus away threshold must be > 0")
	case l.LowKey > l.HighKey:
		return fail("low key %d above high key %d", l.LowKey, l.HighKey)
	case l.Playable(l.MarkerPitch):
		return fail("marker pitch %d inside playable range %d-%d", l.MarkerPitch, l.LowKey, l.HighKey)
	}
	return nil
}

// Score returns the reference score.
func (a *Analyzer) Score() *song.Score { return a.score }

// Session returns the frozen session.
func (a *Analyzer) Session() *recording.Session { return a.session }

// Config returns the analysis settings.
func (a *Analyzer) Config() model.AnalysisConfig { return a.cfg }

// AttemptCount returns the number of marker presses, i.e. the valid attempt indices.
func (a *Analyzer) AttemptCount() int {
	return len(a.session.Presses(a.cfg.Layout.MarkerPitch))
}

// AllAttempts returns every valid attempt index in order.
func (a *Analyzer) AllAttempts() []int {
	out := make([]int, a.AttemptCount())
	for i := range out {
		out[i] = i
	}
	return out
}

// LocateAttemptWindow locates attempt index and aligns the score onto it.
func (a *Analyzer) LocateAttemptWindow(index int) (model.AttemptWindow, error) {
	w, err := LocateRoll(a.session, a.cfg.Layout, index)
	if err != nil {
		return model.AttemptWindow{}, err
	}
	est := EstimateOffset(a.score, a.session, a.cfg.Layout, w.SoftStart, a.cfg.Tolerance)
	w.PredictedStart = est.PredictedStart
	w.PredictedEnd = est.PredictedEnd
	w.OffsetSamples = est.Samples
	return w, nil
}

// AnalyzeAttempt runs the full pipeline on one attempt.
func (a *Analyzer) AnalyzeAttempt(index int) (model.AttemptResult, error) {
	w, err := a.LocateAttemptWindow(index)
	if err != nil {
		return model.AttemptResult{}, err
	}
	res := model.AttemptResult{
		Window: w,
		Press:  MatchAttempt(a.score, a.session, a.cfg.Layout, w),
	}
	res.Left = a.gaze(index, model.Left, w)
	res.Right = a.gaze(index, model.Right, w)
	res.Attention = combineAttention(res.Left, res.Right)
	return res, nil
}

func (a *Analyzer) gaze(index int, side model.Side, w model.AttemptWindow) model.AttentionMetrics {
	m := AnalyzeGaze(a.session.Poses(side), w.PredictedStart, w.PredictedEnd, a.cfg.TimeGapThreshold, a.cfg.FocusAwayThreshold)
	if m.Status == model.StatusCorrupted {
		monitoring.Logf("attempt %d: %s gaze stream corrupted (%s)", index, side, m.Reason)
	}
	return m
}

// Analyze scores every index in order and averages the results. Press metrics
// are averaged over the attempts, attention metrics over the attempts with at
// least one clean gaze stream. Any invalid index rejects the whole call.
func (a *Analyzer) Analyze(indices []int) (model.Report, error) {
	results := make([]model.AttemptResult, 0, len(indices))
	for _, idx := range indices {
		res, err := a.AnalyzeAttempt(idx)
		if err != nil {
			return model.Report{}, err
		}
		results = append(results, res)
	}
	return Aggregate(results), nil
}

// Aggregate averages attempt results into a report.
func Aggregate(results []model.AttemptResult) model.Report {
	r := model.Report{
		Attempts:     results,
		AttemptCount: len(results),
	}
	var press [8]float64
	var eye [4]float64
	for _, res := range results {
		p := res.Press
		press[0] += p.StartTimeError
		press[1] += p.EndTimeError
		press[2] += float64(p.MatchedStart)
		press[3] += float64(p.MatchedEnd)
		press[4] += float64(p.MissedStart)
		press[5] += float64(p.MissedEnd)
		press[6] += float64(p.ExtraStart)
		press[7] += float64(p.ExtraEnd)

		if v, _, ok := attentionVector(res.Left, res.Right); ok {
			for i := range eye {
				eye[i] += v[i]
			}
			r.EyeDataCount++
		}
	}

	avg := func(sum float64, n int) model.Metric {
		if n == 0 {
			return model.Unavailable
		}
		return model.Avail(sum / float64(n))
	}
	n := r.AttemptCount
	r.StartTimeErrorAvg = avg(press[0], n)
	r.EndTimeErrorAvg = avg(press[1], n)
	r.MatchedStartAvg = avg(press[2], n)
	r.MatchedEndAvg = avg(press[3], n)
	r.MissedStartAvg = avg(press[4], n)
	r.MissedEndAvg = avg(press[5], n)
	r.ExtraStartAvg = avg(press[6], n)
	r.ExtraEndAvg = avg(press[7], n)

	e := r.EyeDataCount
	r.AngularMovementAvg = avg(eye[0], e)
	r.FocusSwitchAvg = avg(eye[1], e)
	r.OnTargetTimeAvg = avg(eye[2], e)
	r.MeanFocusDepthAvg = avg(eye[3], e)
	return r
}

// GapScan is the gap report of a whole session.
type GapScan struct {
	Markers []float64
	Left    []Gap
	Right   []Gap
}

// ScanGaps lists pose gaps longer than threshold in both streams.
func (a *Analyzer) ScanGaps(threshold float64) GapScan {
	return GapScan{
		Markers: a.session.MarkerStarts(a.cfg.Layout.MarkerPitch),
		Left:    ScanGaps(a.session.Poses(model.Left), threshold),
		Right:   ScanGaps(a.session.Poses(model.Right), threshold),
	}
}

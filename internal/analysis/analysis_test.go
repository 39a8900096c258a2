package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/monitoring"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/song"
)

func init() {
	monitoring.SetLogger(nil)
}

var identity = quat.Number{Real: 1}

func newSession(t *testing.T, presses ...model.Press) *recording.Session {
	t.Helper()
	s := recording.NewSession("tester", "test")
	for _, p := range presses {
		require.NoError(t, s.AddPress(p))
	}
	return s
}

func marker(at float64) model.Press {
	return model.Press{Pitch: model.DefaultMarkerPitch, Start: at}
}

func singleNoteScore(t *testing.T) *song.Score {
	t.Helper()
	s, err := song.NewBuilder("single", 1, 8).Pitch(60, 0, 0, 1).Build()
	require.NoError(t, err)
	return s
}

func TestScenarioPressNearSoftStart(t *testing.T) {
	score := singleNoteScore(t)
	s := newSession(t, marker(10), marker(20), model.Press{Pitch: 60, Start: 10.2, Length: 0.9})

	a, err := NewAnalyzer(score, s, model.DefaultAnalysisConfig())
	require.NoError(t, err)

	w, err := a.LocateAttemptWindow(0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, w.RollStart)
	assert.Equal(t, 20.0, w.RollEnd)
	assert.Equal(t, 10.2, w.SoftStart)
	assert.InDelta(t, 10.2, w.PredictedStart, 1e-9)
	assert.InDelta(t, 18.2, w.PredictedEnd, 1e-9)
	assert.Equal(t, 1, w.OffsetSamples)

	m := MatchAttempt(score, a.Session(), a.Config().Layout, w)
	assert.Equal(t, 1, m.MatchedStart)
	assert.Equal(t, 0, m.MissedStart)
	assert.Equal(t, 1, m.MatchedEnd)
	assert.InDelta(t, 0, m.StartTimeError, 1e-9)
	assert.InDelta(t, 0.1, m.EndTimeError, 1e-9)
	assert.Equal(t, 0, m.ExtraStart)
}

func TestScenarioPressOutsideTolerance(t *testing.T) {
	score := singleNoteScore(t)
	layout := model.DefaultKeyLayout()
	s := newSession(t, marker(10), marker(20), model.Press{Pitch: 60, Start: 15.0, Length: 0.5})

	est := EstimateOffset(score, s, layout, 10.2, model.DefaultTolerance)
	assert.Equal(t, 10.2, est.PredictedStart)
	assert.Equal(t, 0, est.Samples)
	assert.InDelta(t, 18.2, est.PredictedEnd, 1e-9)

	w := model.AttemptWindow{
		RollStart:      10,
		RollEnd:        20,
		SoftStart:      10.2,
		PredictedStart: est.PredictedStart,
		PredictedEnd:   est.PredictedEnd,
	}
	m := MatchAttempt(score, s, layout, w)
	assert.Equal(t, 0, m.MatchedStart)
	assert.Equal(t, 1, m.MissedStart)
	assert.Equal(t, 1, m.ExtraStart)
}

func TestEmptyAttemptListIsUnavailable(t *testing.T) {
	a, err := NewAnalyzer(singleNoteScore(t), newSession(t, marker(0)), model.DefaultAnalysisConfig())
	require.NoError(t, err)

	r, err := a.Analyze(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.AttemptCount)
	for i, m := range append(r.PressMetrics(), r.AttentionMetrics()...) {
		assert.False(t, m.Available, "metric %d", i)
	}
	assert.Equal(t, strings.TrimSuffix(strings.Repeat("-\t", 10), "\t"), r.TSV())
}

func TestPreconditionErrors(t *testing.T) {
	score := singleNoteScore(t)

	a, err := NewAnalyzer(score, newSession(t, model.Press{Pitch: 60, Start: 1}), model.DefaultAnalysisConfig())
	require.NoError(t, err)
	_, err = a.LocateAttemptWindow(0)
	require.True(t, errors.Is(err, ErrNoMarkerPresses))
	assert.Equal(t, 0, a.AttemptCount())

	a, err = NewAnalyzer(score, newSession(t, marker(1), marker(5)), model.DefaultAnalysisConfig())
	require.NoError(t, err)
	_, err = a.Analyze([]int{0, 2})
	require.True(t, errors.Is(err, ErrAttemptOutOfRange))
	var pe *PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Index)
	assert.True(t, IsPrecondition(err))

	_, err = a.LocateAttemptWindow(-1)
	require.True(t, errors.Is(err, ErrAttemptOutOfRange))
}

func TestConfigValidation(t *testing.T) {
	score := singleNoteScore(t)
	s := newSession(t, marker(0))
	cases := map[string]func(*model.AnalysisConfig){
		"marker inside range": func(c *model.AnalysisConfig) { c.Layout.MarkerPitch = 60 },
		"inverted range":      func(c *model.AnalysisConfig) { c.Layout.LowKey, c.Layout.HighKey = 90, 30 },
		"negative tolerance":  func(c *model.AnalysisConfig) { c.Tolerance = -1 },
		"zero time gap":       func(c *model.AnalysisConfig) { c.TimeGapThreshold = 0 },
		"zero focus away":     func(c *model.AnalysisConfig) { c.FocusAwayThreshold = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := model.DefaultAnalysisConfig()
			mutate(&cfg)
			_, err := NewAnalyzer(score, s, cfg)
			require.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
	_, err := NewAnalyzer(nil, s, model.DefaultAnalysisConfig())
	require.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSoftStartSkipsMarkerAndUnplayable(t *testing.T) {
	layout := model.DefaultKeyLayout()
	s := newSession(t,
		marker(10), marker(20),
		model.Press{Pitch: 60, Start: 10},
		model.Press{Pitch: 20, Start: 10.5},
		model.Press{Pitch: 64, Start: 11},
		model.Press{Pitch: 62, Start: 10.75},
		model.Press{Pitch: 62, Start: 20},
	)
	w, err := LocateRoll(s, layout, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.75, w.SoftStart)

	w, err = LocateRoll(s, layout, 1)
	require.NoError(t, err)
	assert.True(t, w.OpenEnd())
	assert.True(t, math.IsInf(w.SoftStart, 1), "no press after the last marker leaves the soft start open")
}

func TestZeroPressPitchIsMissed(t *testing.T) {
	score, err := song.NewBuilder("two", 1, 8).
		Pitch(60, 0, 0, 1, 2, 1).
		Pitch(62, 0, 1, 1, 3, 1, 5, 1).
		Build()
	require.NoError(t, err)
	s := newSession(t, marker(0),
		model.Press{Pitch: 60, Start: 1, Length: 1},
		model.Press{Pitch: 60, Start: 3, Length: 1},
	)
	a, err := NewAnalyzer(score, s, model.DefaultAnalysisConfig())
	require.NoError(t, err)
	res, err := a.AnalyzeAttempt(0)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Window.OffsetSamples)
	assert.Equal(t, 2, res.Press.MatchedStart)
	assert.Equal(t, 3, res.Press.MissedStart)
	assert.Equal(t, 3, res.Press.MissedEnd)
	assert.Equal(t, score.NoteCount(), res.Press.MatchedStart+res.Press.MissedStart)
}

func TestEstimateOffsetTieKeepsEarliestPress(t *testing.T) {
	score := singleNoteScore(t)
	s := newSession(t,
		model.Press{Pitch: 60, Start: 9.75},
		model.Press{Pitch: 60, Start: 10.25},
	)
	est := EstimateOffset(score, s, model.DefaultKeyLayout(), 10, 0.5)
	assert.Equal(t, 9.75, est.PredictedStart)
	assert.Equal(t, 1, est.Samples)
	assert.Equal(t, -0.25, est.MeanOffset)
}

func TestEstimateOffsetIsIdempotent(t *testing.T) {
	score := song.Cuckoo(song.DefaultTempo)
	s := simulatedSession(t, rand.New(rand.NewSource(7)), score, 3)
	layout := model.DefaultKeyLayout()
	first := EstimateOffset(score, s, layout, 1.3, 0.5)
	second := EstimateOffset(score, s, layout, 1.3, 0.5)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("estimate changed between runs (-first +second):\n%s", diff)
	}
}

func TestMatchTieKeepsEarliestPress(t *testing.T) {
	score := singleNoteScore(t)
	s := newSession(t,
		model.Press{Pitch: 60, Start: 0.75, Length: 0.25},
		model.Press{Pitch: 60, Start: 1.25, Length: 0.25},
	)
	w := model.AttemptWindow{RollStart: 0, PredictedStart: 1, PredictedEnd: 9}
	m := MatchAttempt(score, s, model.DefaultKeyLayout(), w)
	assert.Equal(t, 1, m.MatchedStart)
	assert.Equal(t, 0.25, m.StartTimeError)
	assert.Equal(t, 1, m.ExtraStart)
}

func TestMatchSplitsStartAndEndClaims(t *testing.T) {
	score, err := song.NewBuilder("pair", 1, 4).Pitch(60, 0, 0, 1, 1, 1).Build()
	require.NoError(t, err)
	s := newSession(t,
		model.Press{Pitch: 60, Start: 0, Length: 0.25},
		model.Press{Pitch: 60, Start: 0.625, Length: 0.5},
	)
	w := model.AttemptWindow{RollStart: 0, PredictedStart: 0, PredictedEnd: 4}
	m := MatchAttempt(score, s, model.DefaultKeyLayout(), w)

	// The second press ends the first note and starts the second one.
	assert.Equal(t, 2, m.MatchedStart)
	assert.Equal(t, 1, m.MatchedEnd)
	assert.Equal(t, 0.375, m.StartTimeError)
	assert.Equal(t, 0.125, m.EndTimeError)
	assert.Equal(t, 0, m.ExtraStart)
	assert.Equal(t, 1, m.ExtraEnd)
	assert.Equal(t, 1, m.MissedEnd)
}

func TestMatchCountsUnscoredPlayablePitches(t *testing.T) {
	score := singleNoteScore(t)
	s := newSession(t,
		marker(0),
		model.Press{Pitch: 60, Start: 0, Length: 1},
		model.Press{Pitch: 70, Start: 1, Length: 1},
		model.Press{Pitch: 70, Start: 50, Length: 1},
		model.Press{Pitch: 20, Start: 2, Length: 1},
	)
	w := model.AttemptWindow{RollStart: 0, PredictedStart: 0, PredictedEnd: 8}
	m := MatchAttempt(score, s, model.DefaultKeyLayout(), w)
	assert.Equal(t, 1, m.ExtraStart)
	assert.Equal(t, 1, m.ExtraEnd)
}

func TestWindowAndCoverageInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cat := song.BuiltIn()
	for _, name := range cat.Names() {
		score, err := cat.Score(name)
		require.NoError(t, err)
		for trial := 0; trial < 5; trial++ {
			s := simulatedSession(t, rng, score, 3)
			a, err := NewAnalyzer(score, s, model.DefaultAnalysisConfig())
			require.NoError(t, err)

			r, err := a.Analyze(a.AllAttempts())
			require.NoError(t, err)
			require.Equal(t, 3, r.AttemptCount)
			for _, res := range r.Attempts {
				w := res.Window
				assert.LessOrEqual(t, w.RollStart, w.SoftStart)
				assert.LessOrEqual(t, w.SoftStart, w.RollEnd)
				assert.GreaterOrEqual(t, w.PredictedStart, w.SoftStart-model.DefaultTolerance)
				assert.Equal(t, score.NoteCount(), res.Press.MatchedStart+res.Press.MissedStart)
				assert.Equal(t, score.NoteCount(), res.Press.MatchedEnd+res.Press.MissedEnd)
			}
		}
	}
}

func TestSimulatedCleanTakeMatchesEveryNote(t *testing.T) {
	score := song.AlleMeineEntchen(song.DefaultTempo)
	s := newSession(t, marker(5))
	for _, n := range score.AllNotes() {
		require.NoError(t, s.AddPress(model.Press{
			Pitch:  n.Pitch,
			Start:  7 + score.Seconds(n.StartBeat),
			Length: score.Seconds(n.LengthBeats) * 0.9,
		}))
	}
	a, err := NewAnalyzer(score, s, model.DefaultAnalysisConfig())
	require.NoError(t, err)
	r, err := a.Analyze([]int{0})
	require.NoError(t, err)
	assert.Equal(t, float64(score.NoteCount()), r.MatchedStartAvg.Value)
	assert.Equal(t, 0.0, r.MissedStartAvg.Value)
	assert.Equal(t, 0.0, r.ExtraStartAvg.Value)
	assert.InDelta(t, 0, r.StartTimeErrorAvg.Value, 1e-9)
}

func TestConcurrentAnalyzeIsConsistent(t *testing.T) {
	score := song.Cuckoo(song.DefaultTempo)
	s := simulatedSession(t, rand.New(rand.NewSource(3)), score, 4)
	a, err := NewAnalyzer(score, s, model.DefaultAnalysisConfig())
	require.NoError(t, err)
	want, err := a.Analyze(a.AllAttempts())
	require.NoError(t, err)

	var wg sync.WaitGroup
	reports := make([]model.Report, 8)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], _ = a.Analyze(a.AllAttempts())
		}(i)
	}
	wg.Wait()
	for _, got := range reports {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("concurrent report differs (-want +got):\n%s", diff)
		}
	}
}

func TestAnalyzerUsesSnapshot(t *testing.T) {
	score := singleNoteScore(t)
	s := newSession(t, marker(0))
	a, err := NewAnalyzer(score, s, model.DefaultAnalysisConfig())
	require.NoError(t, err)
	require.NoError(t, s.AddPress(marker(30)))
	assert.Equal(t, 1, a.AttemptCount())
}

func TestAnalyzeAttentionPolicy(t *testing.T) {
	score := singleNoteScore(t)
	s := newSession(t, marker(10), marker(30), model.Press{Pitch: 60, Start: 10.25, Length: 0.5})
	for i := 0; i <= 40; i++ {
		require.NoError(t, s.AddPose(model.Right, model.Pose{
			Time:     10 + 0.25*float64(i),
			Position: r3.Vec{Y: 1, Z: 1},
			Rotation: identity,
		}))
	}

	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	a, err := NewAnalyzer(score, s, model.DefaultAnalysisConfig())
	require.NoError(t, err)
	r, err := a.Analyze([]int{0})
	require.NoError(t, err)

	res := r.Attempts[0]
	assert.Equal(t, model.StatusCorrupted, res.Left.Status)
	assert.Equal(t, model.ReasonNoSamples, res.Left.Reason)
	assert.Equal(t, model.StatusClean, res.Right.Status)
	require.NotNil(t, res.Attention)
	assert.Equal(t, 33, res.Right.Samples)

	assert.Equal(t, 1, r.EyeDataCount)
	assert.Equal(t, model.Avail(8.25), r.OnTargetTimeAvg)
	assert.Equal(t, model.Avail(1), r.MeanFocusDepthAvg)
	assert.Equal(t, model.Avail(0), r.FocusSwitchAvg)
	assert.Equal(t, model.Avail(0), r.AngularMovementAvg)

	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "attempt 0")
	assert.Contains(t, logged[0], "left")
	assert.Contains(t, logged[0], "no samples")
}

func TestAnalyzeWithoutCleanStreamsKeepsPressMetrics(t *testing.T) {
	score := singleNoteScore(t)
	s := newSession(t, marker(10), model.Press{Pitch: 60, Start: 10.25, Length: 0.5})
	a, err := NewAnalyzer(score, s, model.DefaultAnalysisConfig())
	require.NoError(t, err)
	r, err := a.Analyze([]int{0, 0})
	require.NoError(t, err)

	assert.Equal(t, 2, r.AttemptCount)
	assert.Equal(t, 0, r.EyeDataCount)
	assert.Equal(t, model.Avail(1), r.MatchedStartAvg)
	assert.False(t, r.AngularMovementAvg.Available)
	assert.Nil(t, r.Attempts[0].Attention)
	assert.True(t, strings.HasSuffix(r.TSV(), "-\t-\t-\t-"))
}

func TestScanGapsReportsMarkersAndGaps(t *testing.T) {
	s := newSession(t, marker(0), marker(40))
	for _, tm := range []float64{0, 1, 5, 6, 6.5} {
		require.NoError(t, s.AddPose(model.Left, model.Pose{Time: tm, Rotation: identity}))
	}
	a, err := NewAnalyzer(singleNoteScore(t), s, model.DefaultAnalysisConfig())
	require.NoError(t, err)
	scan := a.ScanGaps(3)
	assert.Equal(t, []float64{0, 40}, scan.Markers)
	assert.Equal(t, []Gap{{Start: 1, Length: 4}}, scan.Left)
	assert.Empty(t, scan.Right)
}

// simulatedSession plays score attempts times with timing jitter, stray presses
// and occasional skipped notes.
func simulatedSession(t *testing.T, rng *rand.Rand, score *song.Score, attempts int) *recording.Session {
	t.Helper()
	s := recording.NewSession("sim", score.Name())
	at := 1.0
	for i := 0; i < attempts; i++ {
		require.NoError(t, s.AddPress(marker(at)))
		lead := 1 + rng.Float64()
		for _, n := range score.AllNotes() {
			if rng.Float64() < 0.1 {
				continue
			}
			require.NoError(t, s.AddPress(model.Press{
				Pitch:  n.Pitch,
				Start:  at + lead + score.Seconds(n.StartBeat) + rng.NormFloat64()*0.05,
				Length: math.Max(0, score.Seconds(n.LengthBeats)+rng.NormFloat64()*0.1),
			}))
		}
		for k := 0; k < 3; k++ {
			require.NoError(t, s.AddPress(model.Press{
				Pitch:  40 + rng.Intn(40),
				Start:  at + lead + rng.Float64()*score.Duration(),
				Length: rng.Float64(),
			}))
		}
		at += lead + score.Duration() + 5
	}
	return s
}

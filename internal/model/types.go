// Package model defines shared data structures.
package model

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Default key layout of the recording keyboard.
const (
	DefaultMarkerPitch = 108
	DefaultLowKey      = 23
	DefaultHighKey     = 105
)

// Default analysis thresholds, in seconds.
const (
	DefaultTolerance          = 0.5
	DefaultTimeGapThreshold   = 3.0
	DefaultFocusAwayThreshold = 3.0
)

// Note is one reference note of a score, in beats.
type Note struct {
	Pitch       int
	StartBeat   float64
	LengthBeats float64
}

// Press is one recorded key press, in seconds.
type Press struct {
	Pitch  int
	Start  float64
	Length float64
}

// End returns the release time of the press.
func (p Press) End() float64 {
	return p.Start + p.Length
}

// Pose is one gaze proxy sample.
type Pose struct {
	Time     float64
	Position r3.Vec
	Rotation quat.Number
}

// Side names a pose stream.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// KeyLayout describes which pitches are playable and which one marks attempts.
type KeyLayout struct {
	MarkerPitch int
	LowKey      int
	HighKey     int
}

// DefaultKeyLayout returns the layout of an 88-key recording keyboard.
func DefaultKeyLayout() KeyLayout {
	return KeyLayout{
		MarkerPitch: DefaultMarkerPitch,
		LowKey:      DefaultLowKey,
		HighKey:     DefaultHighKey,
	}
}

// Playable reports whether pitch takes part in scoring.
func (l KeyLayout) Playable(pitch int) bool {
	return pitch >= l.LowKey && pitch <= l.HighKey
}

// AnalysisConfig holds the tunables of one analysis run.
type AnalysisConfig struct {
	Tolerance          float64
	TimeGapThreshold   float64
	FocusAwayThreshold float64
	Layout             KeyLayout
}

// DefaultAnalysisConfig returns the stock thresholds.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Tolerance:          DefaultTolerance,
		TimeGapThreshold:   DefaultTimeGapThreshold,
		FocusAwayThreshold: DefaultFocusAwayThreshold,
		Layout:             DefaultKeyLayout(),
	}
}

// AttemptWindow bounds one practice attempt inside a session, in session seconds.
type AttemptWindow struct {
	Index          int
	RollStart      float64
	RollEnd        float64
	SoftStart      float64
	PredictedStart float64
	PredictedEnd   float64
	OffsetSamples  int
}

// OpenEnd reports whether the attempt runs to the end of the recording.
func (w AttemptWindow) OpenEnd() bool {
	return math.IsInf(w.RollEnd, 1)
}

// AttemptMetrics captures press timing and coverage for one attempt.
type AttemptMetrics struct {
	StartTimeError float64
	EndTimeError   float64
	MatchedStart   int
	MatchedEnd     int
	MissedStart    int
	MissedEnd      int
	ExtraStart     int
	ExtraEnd       int
}

// StreamStatus is the state of the gaze corruption scan.
type StreamStatus string

const (
	StatusScanning  StreamStatus = "scanning"
	StatusClean     StreamStatus = "clean"
	StatusCorrupted StreamStatus = "corrupted"
)

// CorruptionReason explains a corrupted stream.
type CorruptionReason string

const (
	ReasonNone       CorruptionReason = ""
	ReasonTimeGap    CorruptionReason = "time gap"
	ReasonFocusAway  CorruptionReason = "focus away"
	ReasonEndedEarly CorruptionReason = "ended early"
	ReasonNoSamples  CorruptionReason = "no samples"
)

// AttentionMetrics summarizes one pose stream over one attempt.
type AttentionMetrics struct {
	AngularMovement float64 // degrees
	FocusSwitches   int
	OnTargetTime    float64
	MeanFocusDepth  float64
	Samples         int
	Status          StreamStatus
	Reason          CorruptionReason
}

// Clean reports whether the stream passed the corruption scan.
func (a AttentionMetrics) Clean() bool {
	return a.Status == StatusClean
}

// AttemptResult is the full analysis of one attempt.
type AttemptResult struct {
	Window AttemptWindow
	Press  AttemptMetrics
	Left   AttentionMetrics
	Right  AttentionMetrics
	// Attention combines the clean streams; nil when both are corrupted.
	Attention *AttentionMetrics
}

// Metric is an averaged value that may be unavailable.
type Metric struct {
	Value     float64
	Available bool
}

// Avail wraps a computed value.
func Avail(v float64) Metric {
	return Metric{Value: v, Available: true}
}

// Unavailable is the sentinel for averages with an empty denominator.
var Unavailable = Metric{}

// Report averages attempt results.
type Report struct {
	Attempts     []AttemptResult
	AttemptCount int
	EyeDataCount int

	StartTimeErrorAvg Metric
	EndTimeErrorAvg   Metric
	MatchedStartAvg   Metric
	MatchedEndAvg     Metric
	MissedStartAvg    Metric
	MissedEndAvg      Metric
	ExtraStartAvg     Metric
	ExtraEndAvg       Metric

	AngularMovementAvg Metric
	FocusSwitchAvg     Metric
	OnTargetTimeAvg    Metric
	MeanFocusDepthAvg  Metric
}

// SessionInfo describes a stored session.
type SessionInfo struct {
	ID         int64
	User       string
	Song       string
	Attempts   int
	PressCount int
	PoseCount  int
}

// AnalysisRun is a stored report.
type AnalysisRun struct {
	RunID     string
	SessionID int64
	Song      string
	Indices   []int
	Config    AnalysisConfig
	Report    Report
	CreatedAt time.Time
}

// Package generator simulates recorded practice sessions.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/song"
)

// Options shapes a simulated performance. Times are in seconds.
type Options struct {
	Attempts  int
	Lead      float64 // marker press to first beat
	Pause     float64 // end of the piece to the next marker press
	Jitter    float64 // standard deviation of press timing
	MissRate  float64 // probability of skipping a note
	ExtraRate float64 // probability of a stray press per note
	PoseRate  float64 // samples per second per stream, 0 disables poses
	// DropoutRate is the probability that one stream of an attempt loses
	// DropoutLength seconds of samples.
	DropoutRate   float64
	DropoutLength float64
}

// DefaultOptions returns a moderately sloppy learner with clean head tracking.
func DefaultOptions() Options {
	return Options{
		Attempts:      3,
		Lead:          2,
		Pause:         4,
		Jitter:        0.08,
		MissRate:      0.05,
		ExtraRate:     0.03,
		PoseRate:      10,
		DropoutRate:   0.2,
		DropoutLength: 4,
	}
}

// Generator produces randomized sessions.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Session plays score opts.Attempts times, each attempt opened by a marker press.
func (g *Generator) Session(user string, score *song.Score, layout model.KeyLayout, opts Options) (*recording.Session, error) {
	if opts.Attempts <= 0 {
		return nil, fmt.Errorf("attempts must be > 0")
	}
	if opts.Lead < 0 || opts.Pause < 0 || opts.Jitter < 0 {
		return nil, fmt.Errorf("lead, pause and jitter must be >= 0")
	}
	s := recording.NewSession(user, score.Name())
	pitches, weights := pitchWeights(score, layout)

	t := 1.0
	for a := 0; a < opts.Attempts; a++ {
		marker := t
		if err := s.AddPress(model.Press{Pitch: layout.MarkerPitch, Start: marker, Length: 0.2}); err != nil {
			return nil, err
		}
		origin := marker + opts.Lead
		for _, n := range score.AllNotes() {
			if g.rnd.Float64() < opts.MissRate {
				continue
			}
			start := math.Max(origin+score.Seconds(n.StartBeat)+g.rnd.NormFloat64()*opts.Jitter, marker+0.01)
			length := math.Max(score.Seconds(n.LengthBeats)+g.rnd.NormFloat64()*opts.Jitter, 0.05)
			if err := s.AddPress(model.Press{Pitch: n.Pitch, Start: start, Length: length}); err != nil {
				return nil, err
			}
			if len(pitches) > 0 && g.rnd.Float64() < opts.ExtraRate {
				stray := pitches[pickWeighted(g.rnd, weights)]
				if err := s.AddPress(model.Press{Pitch: stray, Start: start + 0.1, Length: 0.1}); err != nil {
					return nil, err
				}
			}
		}
		end := origin + score.Duration()
		if opts.PoseRate > 0 {
			if err := g.poses(s, marker, origin, end, opts); err != nil {
				return nil, err
			}
		}
		t = end + opts.Pause
	}
	return s, nil
}

// poses samples both streams over [from, to]. A dropout always falls inside
// the played part [origin, to].
func (g *Generator) poses(s *recording.Session, from, origin, to float64, opts Options) error {
	step := 1 / opts.PoseRate
	dropSide := model.Side("")
	var dropStart float64
	if g.rnd.Float64() < opts.DropoutRate && opts.DropoutLength > 0 && to-origin > opts.DropoutLength {
		dropSide = model.Left
		if g.rnd.Intn(2) == 1 {
			dropSide = model.Right
		}
		dropStart = origin + (to-origin-opts.DropoutLength)*g.rnd.Float64()
	}
	for _, side := range []model.Side{model.Left, model.Right} {
		x := -0.03
		if side == model.Right {
			x = 0.03
		}
		for t := from; t <= to+step; t += step {
			if side == dropSide && t >= dropStart && t < dropStart+opts.DropoutLength {
				continue
			}
			p := model.Pose{
				Time:     t,
				Position: r3.Vec{X: x, Y: 0.4, Z: -0.1},
				Rotation: g.lookDown(),
			}
			if err := s.AddPose(side, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// lookDown returns a head rotation pitched 35 to 55 degrees toward the keys
// with a few degrees of yaw.
func (g *Generator) lookDown() quat.Number {
	pitch := (35 + 20*g.rnd.Float64()) * math.Pi / 180
	yaw := (g.rnd.Float64()*6 - 3) * math.Pi / 180
	qPitch := quat.Number{Real: math.Cos(pitch / 2), Imag: math.Sin(pitch / 2)}
	qYaw := quat.Number{Real: math.Cos(yaw / 2), Jmag: math.Sin(yaw / 2)}
	return quat.Mul(qYaw, qPitch)
}

// pitchWeights weights each playable scored pitch by its note count.
func pitchWeights(score *song.Score, layout model.KeyLayout) ([]int, []float64) {
	var pitches []int
	var weights []float64
	for _, p := range score.Pitches() {
		if !layout.Playable(p) {
			continue
		}
		pitches = append(pitches, p)
		weights = append(weights, float64(len(score.Notes(p))))
	}
	return pitches, weights
}

func pickWeighted(rnd *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rnd.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r < acc {
			return i
		}
	}
	return len(weights) - 1
}

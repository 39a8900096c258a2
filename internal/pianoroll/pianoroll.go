// Package pianoroll renders an attempt window as a piano-roll image.
package pianoroll

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/song"
)

// Default image size.
const (
	DefaultWidth  = 14 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

// ErrOpenWindow is returned for a window without a predicted end.
var ErrOpenWindow = errors.New("attempt window has no predicted end")

var (
	scoreColor  = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	playedColor = color.RGBA{R: 58, G: 154, B: 200, A: 255}
	boundColor  = color.RGBA{R: 200, G: 154, B: 58, A: 255}
)

// New plots the score aligned at the predicted start of w over the playable
// presses recorded between the roll start and the predicted end.
func New(score *song.Score, s *recording.Session, layout model.KeyLayout, w model.AttemptWindow) (*plot.Plot, error) {
	if math.IsInf(w.PredictedEnd, 0) || math.IsInf(w.PredictedStart, 0) {
		return nil, ErrOpenWindow
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s, attempt %d", score.Name(), w.Index)
	p.X.Label.Text = "Session time (s)"
	p.Y.Label.Text = "Pitch"

	var scoreLine, playedLine *plotter.Line
	for _, n := range score.AllNotes() {
		start := w.PredictedStart + score.Seconds(n.StartBeat)
		l, err := bar(start, score.Seconds(n.LengthBeats), float64(n.Pitch)+0.15, scoreColor)
		if err != nil {
			return nil, err
		}
		p.Add(l)
		scoreLine = l
	}
	for _, pitch := range s.Pitches() {
		if !layout.Playable(pitch) {
			continue
		}
		for _, pr := range s.Presses(pitch) {
			if pr.Start < w.RollStart || pr.Start > w.PredictedEnd || pr.Start >= w.RollEnd {
				continue
			}
			l, err := bar(pr.Start, pr.Length, float64(pitch)-0.15, playedColor)
			if err != nil {
				return nil, err
			}
			p.Add(l)
			playedLine = l
		}
	}

	lo, hi := pitchRange(score)
	for _, t := range []float64{w.PredictedStart, w.PredictedEnd} {
		l, err := plotter.NewLine(plotter.XYs{{X: t, Y: lo - 1}, {X: t, Y: hi + 1}})
		if err != nil {
			return nil, err
		}
		l.Color = boundColor
		l.Width = vg.Points(1)
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(l)
	}

	if scoreLine != nil {
		p.Legend.Add("score", scoreLine)
	}
	if playedLine != nil {
		p.Legend.Add("played", playedLine)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.Add(plotter.NewGrid())
	return p, nil
}

func bar(start, length, y float64, c color.Color) (*plotter.Line, error) {
	l, err := plotter.NewLine(plotter.XYs{{X: start, Y: y}, {X: start + length, Y: y}})
	if err != nil {
		return nil, err
	}
	l.Color = c
	l.Width = vg.Points(4)
	return l, nil
}

func pitchRange(score *song.Score) (float64, float64) {
	pitches := score.Pitches()
	return float64(pitches[0]), float64(pitches[len(pitches)-1])
}

// WritePNG encodes p as a PNG image of the given size.
func WritePNG(out io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to render piano roll: %w", err)
	}
	if _, err := wt.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write piano roll: %w", err)
	}
	return nil
}

// Save writes p to path; the format follows the file extension.
func Save(p *plot.Plot, path string) error {
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("failed to save piano roll: %w", err)
	}
	return nil
}

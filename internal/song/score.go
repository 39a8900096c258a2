// Package song holds reference scores and the sources they are loaded from.
package song

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/verte-zerg/keyscore/internal/model"
)

// KeyOffset converts a keyboard key index to its MIDI pitch.
const KeyOffset = 21

// nameBase is the key index of the lowest named note "a".
const nameBase = 36

var noteNames = []string{"a", "a#", "b", "c", "c#", "d", "d#", "e", "f", "f#", "g", "g#"}

// ErrEmptyScore is returned when a score has no notes.
var ErrEmptyScore = errors.New("score has no notes")

// Score is an immutable reference score. Times are in beats.
type Score struct {
	name        string
	tempo       float64
	totalLength float64
	notes       map[int][]model.Note
	pitches     []int
	noteCount   int
}

// Name returns the score identifier.
func (s *Score) Name() string { return s.name }

// Tempo returns the tempo in beats per second.
func (s *Score) Tempo() float64 { return s.tempo }

// TotalLengthBeats returns the scored length of the piece.
func (s *Score) TotalLengthBeats() float64 { return s.totalLength }

// NoteCount returns the number of note instances across all pitches.
func (s *Score) NoteCount() int { return s.noteCount }

// BeatLength returns the duration of one beat in seconds.
func (s *Score) BeatLength() float64 { return 1 / s.tempo }

// Seconds converts beats to seconds.
func (s *Score) Seconds(beats float64) float64 { return beats / s.tempo }

// Duration returns the piece length in seconds.
func (s *Score) Duration() float64 { return s.totalLength / s.tempo }

// Pitches returns the scored pitches in ascending order.
func (s *Score) Pitches() []int {
	out := make([]int, len(s.pitches))
	copy(out, s.pitches)
	return out
}

// HasPitch reports whether the score has notes for pitch.
func (s *Score) HasPitch(pitch int) bool {
	_, ok := s.notes[pitch]
	return ok
}

// Notes returns the notes of pitch in composition order.
func (s *Score) Notes(pitch int) []model.Note {
	notes := s.notes[pitch]
	out := make([]model.Note, len(notes))
	copy(out, notes)
	return out
}

// AllNotes returns every note, pitch by pitch.
func (s *Score) AllNotes() []model.Note {
	out := make([]model.Note, 0, s.noteCount)
	for _, p := range s.pitches {
		out = append(out, s.notes[p]...)
	}
	return out
}

// Builder assembles a Score. The first error sticks and is returned by Build.
type Builder struct {
	name        string
	tempo       float64
	totalLength float64
	notes       map[int][]model.Note
	count       int
	err         error
}

// NewBuilder starts a score with tempo in beats per second and a total length in beats.
func NewBuilder(name string, tempo, totalLength float64) *Builder {
	return &Builder{
		name:        name,
		tempo:       tempo,
		totalLength: totalLength,
		notes:       map[int][]model.Note{},
	}
}

// Pitch adds notes for a MIDI pitch. pairs alternate start and length in beats,
// and every start is shifted by barOffset.
func (b *Builder) Pitch(pitch int, barOffset float64, pairs ...float64) *Builder {
	if b.err != nil {
		return b
	}
	if len(pairs)%2 != 0 {
		b.err = fmt.Errorf("pitch %d: odd number of start/length values", pitch)
		return b
	}
	for i := 0; i < len(pairs); i += 2 {
		if pairs[i+1] < 0 {
			b.err = fmt.Errorf("pitch %d: negative length %v", pitch, pairs[i+1])
			return b
		}
		b.notes[pitch] = append(b.notes[pitch], model.Note{
			Pitch:       pitch,
			StartBeat:   pairs[i] + barOffset,
			LengthBeats: pairs[i+1],
		})
		b.count++
	}
	return b
}

// Key adds notes for a keyboard key index (pitch = key + KeyOffset).
func (b *Builder) Key(key int, barOffset float64, pairs ...float64) *Builder {
	return b.Pitch(key+KeyOffset, barOffset, pairs...)
}

// Named adds notes for a note name between "a" and "g#" in the middle octave.
func (b *Builder) Named(name string, barOffset float64, pairs ...float64) *Builder {
	if b.err != nil {
		return b
	}
	idx := -1
	for i, n := range noteNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.err = fmt.Errorf("unknown note name %q", name)
		return b
	}
	return b.Key(idx+nameBase, barOffset, pairs...)
}

// Build validates and freezes the score.
func (b *Builder) Build() (*Score, error) {
	if b.err != nil {
		return nil, fmt.Errorf("score %q: %w", b.name, b.err)
	}
	if b.tempo <= 0 {
		return nil, fmt.Errorf("score %q: tempo must be > 0", b.name)
	}
	if b.totalLength < 0 {
		return nil, fmt.Errorf("score %q: total length must be >= 0", b.name)
	}
	if b.count == 0 {
		return nil, fmt.Errorf("score %q: %w", b.name, ErrEmptyScore)
	}
	notes := make(map[int][]model.Note, len(b.notes))
	pitches := make([]int, 0, len(b.notes))
	for p, ns := range b.notes {
		frozen := make([]model.Note, len(ns))
		copy(frozen, ns)
		notes[p] = frozen
		pitches = append(pitches, p)
	}
	sort.Ints(pitches)
	return &Score{
		name:        b.name,
		tempo:       b.tempo,
		totalLength: b.totalLength,
		notes:       notes,
		pitches:     pitches,
		noteCount:   b.count,
	}, nil
}

// MustBuild is Build for the static catalogue.
func (b *Builder) MustBuild() *Score {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

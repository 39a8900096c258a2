package song

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/keyscore/internal/midifile"
	"github.com/verte-zerg/keyscore/internal/model"
)

// scoreFile is the TOML layout of a score file.
type scoreFile struct {
	Name   string      `toml:"name"`
	Tempo  float64     `toml:"tempo"`
	Length float64     `toml:"length"`
	Notes  []noteEntry `toml:"notes"`
}

// noteEntry selects its pitch by exactly one of pitch, key or note name.
type noteEntry struct {
	Pitch  *int      `toml:"pitch"`
	Key    *int      `toml:"key"`
	Note   *string   `toml:"note"`
	Offset float64   `toml:"offset"`
	Pairs  []float64 `toml:"pairs"`
}

// DecodeTOML reads a score from TOML. fallbackName is used when the file has no name.
func DecodeTOML(r io.Reader, fallbackName string) (*Score, error) {
	var sf scoreFile
	if _, err := toml.NewDecoder(r).Decode(&sf); err != nil {
		return nil, fmt.Errorf("failed to decode score: %w", err)
	}
	name := sf.Name
	if name == "" {
		name = fallbackName
	}
	b := NewBuilder(name, sf.Tempo, sf.Length)
	for i, n := range sf.Notes {
		set := 0
		if n.Pitch != nil {
			set++
		}
		if n.Key != nil {
			set++
		}
		if n.Note != nil {
			set++
		}
		if set != 1 {
			return nil, fmt.Errorf("score %q: notes[%d] needs exactly one of pitch, key or note", name, i)
		}
		switch {
		case n.Pitch != nil:
			b.Pitch(*n.Pitch, n.Offset, n.Pairs...)
		case n.Key != nil:
			b.Key(*n.Key, n.Offset, n.Pairs...)
		default:
			b.Named(*n.Note, n.Offset, n.Pairs...)
		}
	}
	return b.Build()
}

// EncodeTOML writes a score in the format DecodeTOML reads, one entry per pitch.
func EncodeTOML(w io.Writer, s *Score) error {
	sf := scoreFile{Name: s.Name(), Tempo: s.Tempo(), Length: s.TotalLengthBeats()}
	for _, p := range s.Pitches() {
		pitch := p
		entry := noteEntry{Pitch: &pitch}
		for _, n := range s.Notes(p) {
			entry.Pairs = append(entry.Pairs, n.StartBeat, n.LengthBeats)
		}
		sf.Notes = append(sf.Notes, entry)
	}
	if err := toml.NewEncoder(w).Encode(sf); err != nil {
		return fmt.Errorf("failed to encode score: %w", err)
	}
	return nil
}

// FromMIDI converts decoded MIDI notes to a score at tempo beats per second.
// A zero tempo takes the file tempo, falling back to DefaultTempo.
func FromMIDI(name string, f midifile.File, tempo float64) (*Score, error) {
	if tempo <= 0 {
		tempo = f.BPM / 60
	}
	if tempo <= 0 {
		tempo = DefaultTempo
	}
	b := NewBuilder(name, tempo, f.End()*tempo)
	for _, n := range f.Notes {
		b.Pitch(n.Pitch, 0, n.Start*tempo, n.Duration*tempo)
	}
	return b.Build()
}

// FromNotes builds a score from notes already in beats.
func FromNotes(name string, tempo, totalLength float64, notes []model.Note) (*Score, error) {
	b := NewBuilder(name, tempo, totalLength)
	for _, n := range notes {
		b.Pitch(n.Pitch, 0, n.StartBeat, n.LengthBeats)
	}
	return b.Build()
}

// LoadFile reads a .toml, .mid or .midi score file.
func LoadFile(path string) (*Score, error) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	name := strings.TrimSuffix(base, filepath.Ext(base))
	switch ext {
	case ".toml":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open score: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				// Best-effort file close.
				_ = cerr
			}
		}()
		return DecodeTOML(f, name)
	case ".mid", ".midi":
		mf, err := midifile.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return FromMIDI(name, mf, 0)
	default:
		return nil, fmt.Errorf("unsupported score file %q", base)
	}
}

// Dir serves scores from a directory, falling back to a base provider.
type Dir struct {
	Path string
	Base Provider
}

// Score implements Provider. Files are looked up as <name>.toml, <name>.mid and
// <name>.midi under Path before the base provider is asked.
func (d Dir) Score(name string) (*Score, error) {
	if d.Path != "" && name != "" && !strings.ContainsAny(name, `/\`) {
		for _, ext := range []string{".toml", ".mid", ".midi"} {
			path := filepath.Join(d.Path, name+ext)
			if _, err := os.Stat(path); err == nil {
				return LoadFile(path)
			} else if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to stat score: %w", err)
			}
		}
	}
	if d.Base != nil {
		return d.Base.Score(name)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSong, name)
}

// Names lists the score names found in the directory followed by the base names.
func (d Dir) Names() ([]string, error) {
	var out []string
	seen := map[string]bool{}
	if d.Path != "" {
		entries, err := os.ReadDir(d.Path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read score dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if ext != ".toml" && ext != ".mid" && ext != ".midi" {
				continue
			}
			name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	if c, ok := d.Base.(*Catalog); ok {
		for _, name := range c.Names() {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out, nil
}

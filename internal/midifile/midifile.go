// Package midifile reads note intervals from Standard MIDI Files.
package midifile

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Note is one sounded note, in seconds from the start of the file.
type Note struct {
	Pitch    int
	Start    float64
	Duration float64
}

// File is the decoded content of a MIDI file.
type File struct {
	Notes []Note
	// BPM is the first tempo found in the file, zero when absent.
	BPM float64
}

// End returns the release time of the last note.
func (f File) End() float64 {
	end := 0.0
	for _, n := range f.Notes {
		if e := n.Start + n.Duration; e > end {
			end = e
		}
	}
	return end
}

// ReadFile decodes the MIDI file at path.
func ReadFile(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to open midi file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort file close.
			_ = cerr
		}
	}()
	return Read(f)
}

// Read decodes note on/off pairs from r. Notes are keyed by channel and pitch so
// overlapping voices on different channels stay apart. Notes still held at the
// end of the file are dropped.
func Read(r io.Reader) (File, error) {
	type voice struct {
		ch  uint8
		key uint8
	}
	var out File
	open := map[voice]float64{}
	tracks := smf.ReadTracksFrom(r)
	tracks.Do(func(ev smf.TrackEvent) {
		at := float64(ev.AbsMicroSeconds) / 1_000_000
		var bpm float64
		if out.BPM == 0 && ev.Message.GetMetaTempo(&bpm) {
			out.BPM = bpm
			return
		}
		var ch, key, vel uint8
		if ev.Message.GetNoteStart(&ch, &key, &vel) {
			v := voice{ch: ch, key: key}
			if _, ok := open[v]; !ok {
				open[v] = at
			}
			return
		}
		if ev.Message.GetNoteEnd(&ch, &key) {
			v := voice{ch: ch, key: key}
			if start, ok := open[v]; ok {
				out.Notes = append(out.Notes, Note{Pitch: int(key), Start: start, Duration: at - start})
				delete(open, v)
			}
		}
	})
	if err := tracks.Error(); err != nil {
		return File{}, fmt.Errorf("failed to read midi tracks: %w", err)
	}
	sort.SliceStable(out.Notes, func(i, j int) bool {
		return out.Notes[i].Start < out.Notes[j].Start
	})
	return out, nil
}

package song

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultTempo is the practice tempo of the built-in songs, in beats per second.
const DefaultTempo = 1.25

// ErrUnknownSong is returned when no source knows a song name.
var ErrUnknownSong = errors.New("unknown song")

// Provider returns reference scores by name.
type Provider interface {
	Score(name string) (*Score, error)
}

// Catalog is an in-memory Provider.
type Catalog struct {
	scores map[string]*Score
	order  []string
}

// NewCatalog returns a catalog holding the given scores in order.
func NewCatalog(scores ...*Score) *Catalog {
	c := &Catalog{scores: map[string]*Score{}}
	for _, s := range scores {
		c.Add(s)
	}
	return c
}

// Add registers a score, replacing any score with the same name.
func (c *Catalog) Add(s *Score) {
	key := strings.ToLower(s.Name())
	if _, ok := c.scores[key]; !ok {
		c.order = append(c.order, key)
	}
	c.scores[key] = s
}

// Score implements Provider. Names are case-insensitive; a numeric name selects by index.
func (c *Catalog) Score(name string) (*Score, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if s, ok := c.scores[key]; ok {
		return s, nil
	}
	var idx int
	if _, err := fmt.Sscanf(key, "%d", &idx); err == nil && fmt.Sprint(idx) == key {
		if idx >= 0 && idx < len(c.order) {
			return c.scores[c.order[idx]], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSong, name)
}

// Names returns the registered names in insertion order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.scores[key].Name())
	}
	return out
}

// SortedNames returns the registered names alphabetically.
func (c *Catalog) SortedNames() []string {
	out := c.Names()
	sort.Strings(out)
	return out
}

// BuiltIn returns the songs shipped with the practice application.
func BuiltIn() *Catalog {
	return NewCatalog(
		Tutorial(DefaultTempo),
		Cuckoo(DefaultTempo),
		AlleMeineEntchen(DefaultTempo),
	)
}

// Tutorial is the warm-up exercise: scales up and down, chords, then a cadence.
func Tutorial(tempo float64) *Score {
	return NewBuilder("tutorial", tempo, 56).
		Key(39, 0, 0, 1, 8, 1).
		Key(41, 0, 1, 1, 7, 1).
		Key(43, 0, 2, 1, 6, 1).
		Key(44, 0, 3, 1, 5, 1).
		Key(46, 0, 4, 1).
		Key(39, 16, 0, 2, 8, 2).
		Key(43, 16, 2, 2, 6, 2).
		Key(46, 16, 4, 2).
		Key(46, 32, 0, 1, 8, 4).
		Key(48, 32, 1, 1, 7, 1).
		Key(50, 32, 2, 1, 6, 1).
		Key(51, 32, 3, 1, 5, 1).
		Key(53, 32, 4, 1).
		Key(41, 48, 2, 1).
		Key(46, 48, 3, 4).
		Key(34, 48, 0, 1).
		Key(38, 48, 1, 1).
		MustBuild()
}

// Cuckoo is the folk song "Kuckuck, Kuckuck".
func Cuckoo(tempo float64) *Score {
	return NewBuilder("cuckoo", tempo, 48).
		Named("g", 0, 0, 2, 3, 2).
		Named("e", 0, 2, 1, 5, 1, 9, 2).
		Named("d", 0, 6, 1, 8, 1).
		Named("c", 0, 7, 1, 11, 1).
		Named("g", 12, 0, 2, 3, 2).
		Named("e", 12, 2, 1, 5, 1, 7, 1).
		Named("d", 12, 6, 1, 8, 1).
		Named("c", 12, 9, 3).
		Named("d", 24, 0, 1, 1, 1, 5, 1).
		Named("e", 24, 2, 1, 6, 1, 7, 1, 11, 1).
		Named("f", 24, 3, 2, 8, 1).
		Named("g", 24, 9, 2).
		Named("g", 36, 0, 2, 3, 2).
		Named("e", 36, 2, 1, 5, 1, 7, 1).
		Named("f", 36, 6, 1).
		Named("d", 36, 8, 1).
		Named("c", 36, 9, 3).
		MustBuild()
}

// AlleMeineEntchen is the children's song "Alle meine Entchen".
func AlleMeineEntchen(tempo float64) *Score {
	return NewBuilder("alle-meine-entchen", tempo, 64).
		Key(39, 0, 0, 1).
		Key(41, 0, 1, 1).
		Key(43, 0, 2, 1).
		Key(44, 0, 3, 1).
		Key(46, 0, 4, 2, 6, 2, 12, 4).
		Key(48, 0, 8, 1, 9, 1, 10, 1, 11, 1).
		Key(41, 16, 8, 1, 9, 1, 10, 1, 11, 1).
		Key(43, 16, 4, 2, 6, 2).
		Key(44, 16, 0, 1, 1, 1, 2, 1, 3, 1).
		Key(46, 16, 12, 4).
		Key(39, 32, 0, 1).
		Key(41, 32, 1, 1).
		Key(43, 32, 2, 1).
		Key(44, 32, 3, 1).
		Key(46, 32, 4, 2, 6, 2, 12, 4).
		Key(48, 32, 8, 1, 9, 1, 10, 1, 11, 1).
		Key(39, 48, 12, 4).
		Key(41, 48, 8, 1, 9, 1, 10, 1, 11, 1).
		Key(43, 48, 4, 2, 6, 2).
		Key(44, 48, 0, 1, 1, 1, 2, 1, 3, 1).
		MustBuild()
}

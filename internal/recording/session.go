// Package recording holds recorded practice sessions and their importers.
package recording

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/verte-zerg/keyscore/internal/model"
)

// ErrNoMarkers is returned when an operation needs marker presses and the session has none.
var ErrNoMarkers = errors.New("session has no marker presses")

// Session is the append-only log of one recorded practice session.
// Presses are kept per pitch in ascending start order, poses per side in
// ascending time order.
type Session struct {
	ID   int64
	User string
	Song string

	mu      sync.RWMutex
	presses map[int][]model.Press
	left    []model.Pose
	right   []model.Pose
}

// NewSession returns an empty session.
func NewSession(user, song string) *Session {
	return &Session{User: user, Song: song, presses: map[int][]model.Press{}}
}

// AddPress records a key press. Presses with equal start keep arrival order.
func (s *Session) AddPress(p model.Press) error {
	if p.Length < 0 {
		return fmt.Errorf("press on pitch %d has negative length %v", p.Pitch, p.Length)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presses == nil {
		s.presses = map[int][]model.Press{}
	}
	list := s.presses[p.Pitch]
	i := sort.Search(len(list), func(i int) bool { return list[i].Start > p.Start })
	list = append(list, model.Press{})
	copy(list[i+1:], list[i:])
	list[i] = p
	s.presses[p.Pitch] = list
	return nil
}

// AddPose inserts a pose sample into the stream of side, keeping time order.
// Samples with equal times keep arrival order.
func (s *Session) AddPose(side model.Side, p model.Pose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream, err := s.stream(side)
	if err != nil {
		return err
	}
	list := *stream
	i := sort.Search(len(list), func(i int) bool { return list[i].Time > p.Time })
	list = append(list, model.Pose{})
	copy(list[i+1:], list[i:])
	list[i] = p
	*stream = list
	return nil
}

// ReplacePoses swaps the whole stream of side, sorting the new samples by time.
func (s *Session) ReplacePoses(side model.Side, poses []model.Pose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream, err := s.stream(side)
	if err != nil {
		return err
	}
	next := make([]model.Pose, len(poses))
	copy(next, poses)
	sort.SliceStable(next, func(i, j int) bool { return next[i].Time < next[j].Time })
	*stream = next
	return nil
}

func (s *Session) stream(side model.Side) (*[]model.Pose, error) {
	switch side {
	case model.Left:
		return &s.left, nil
	case model.Right:
		return &s.right, nil
	default:
		return nil, fmt.Errorf("unknown pose side %q", side)
	}
}

// Presses returns a copy of the presses of pitch.
func (s *Session) Presses(pitch int) []model.Press {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.presses[pitch]
	out := make([]model.Press, len(list))
	copy(out, list)
	return out
}

// Pitches returns every pitch with at least one press, ascending.
func (s *Session) Pitches() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, 0, len(s.presses))
	for p, list := range s.presses {
		if len(list) > 0 {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// AllPresses returns every press ordered by pitch then start.
func (s *Session) AllPresses() []model.Press {
	var out []model.Press
	for _, p := range s.Pitches() {
		out = append(out, s.Presses(p)...)
	}
	return out
}

// Poses returns a copy of the pose stream of side. Unknown sides yield nil.
func (s *Session) Poses(side model.Side) []model.Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []model.Pose
	switch side {
	case model.Left:
		list = s.left
	case model.Right:
		list = s.right
	default:
		return nil
	}
	out := make([]model.Pose, len(list))
	copy(out, list)
	return out
}

// MarkerStarts returns the start times of the marker presses.
func (s *Session) MarkerStarts(marker int) []float64 {
	presses := s.Presses(marker)
	out := make([]float64, len(presses))
	for i, p := range presses {
		out[i] = p.Start
	}
	return out
}

// PressCount returns the number of recorded presses.
func (s *Session) PressCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.presses {
		n += len(list)
	}
	return n
}

// PoseCount returns the number of pose samples over both sides.
func (s *Session) PoseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.left) + len(s.right)
}

// Info summarizes the session for listings.
func (s *Session) Info(marker int) model.SessionInfo {
	return model.SessionInfo{
		ID:         s.ID,
		User:       s.User,
		Song:       s.Song,
		Attempts:   len(s.Presses(marker)),
		PressCount: s.PressCount(),
		PoseCount:  s.PoseCount(),
	}
}

// Snapshot returns a deep copy that later appends cannot affect.
func (s *Session) Snapshot() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &Session{
		ID:      s.ID,
		User:    s.User,
		Song:    s.Song,
		presses: make(map[int][]model.Press, len(s.presses)),
		left:    append([]model.Pose(nil), s.left...),
		right:   append([]model.Pose(nil), s.right...),
	}
	for p, list := range s.presses {
		out.presses[p] = append([]model.Press(nil), list...)
	}
	return out
}

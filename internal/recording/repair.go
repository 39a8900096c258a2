package recording

import (
	"fmt"
	"math"

	"github.com/verte-zerg/keyscore/internal/model"
)

// MaxRepairGap caps the gap that splits a pose stream into recording groups, in seconds.
const MaxRepairGap = 5.0

// poseGroup is an inclusive index range of a pose stream.
type poseGroup struct {
	first, last int
}

// RepairPoses re-anchors a pose stream whose clock restarted at every marker press.
//
// The stream is cut into groups wherever consecutive samples are further apart
// than min(MaxRepairGap, half the distance between the current and the next
// marker). Group k is then shifted so its first sample lands on marker k. A
// single remaining group is held back for the last marker. Groups without a
// marker are dropped.
func RepairPoses(poses []model.Pose, markers []float64) ([]model.Pose, error) {
	if len(markers) == 0 {
		return nil, ErrNoMarkers
	}
	if len(poses) == 0 {
		return nil, nil
	}
	groups := splitPoses(poses, markers)

	out := make([]model.Pose, 0, len(poses))
	for i, marker := range markers {
		if len(groups) == 0 {
			break
		}
		if len(groups) == 1 && i < len(markers)-1 {
			break
		}
		g := groups[0]
		offset := marker - poses[g.first].Time
		for j := g.first; j <= g.last; j++ {
			p := poses[j]
			p.Time += offset
			out = append(out, p)
		}
		groups = groups[1:]
	}
	return out, nil
}

func splitPoses(poses []model.Pose, markers []float64) []poseGroup {
	var groups []poseGroup
	first := 0
	for i := 1; i < len(poses); i++ {
		threshold := MaxRepairGap
		k := len(groups)
		if k+1 < len(markers) {
			threshold = math.Min(threshold, (markers[k+1]-markers[k])/2)
		}
		if poses[i].Time-poses[i-1].Time > threshold {
			groups = append(groups, poseGroup{first: first, last: i - 1})
			first = i
		}
	}
	return append(groups, poseGroup{first: first, last: len(poses) - 1})
}

// RepairSession repairs both pose streams of s in place.
func RepairSession(s *Session, marker int) error {
	markers := s.MarkerStarts(marker)
	for _, side := range []model.Side{model.Left, model.Right} {
		fixed, err := RepairPoses(s.Poses(side), markers)
		if err != nil {
			return fmt.Errorf("failed to repair %s poses: %w", side, err)
		}
		if err := s.ReplacePoses(side, fixed); err != nil {
			return err
		}
	}
	return nil
}

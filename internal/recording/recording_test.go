package recording

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verte-zerg/keyscore/internal/model"
)

func poseAt(t float64) model.Pose {
	return model.Pose{Time: t, Position: r3.Vec{Y: 1}, Rotation: quat.Number{Real: 1}}
}

func poseTimes(poses []model.Pose) []float64 {
	out := make([]float64, len(poses))
	for i, p := range poses {
		out[i] = p.Time
	}
	return out
}

func TestAddPressKeepsStartOrder(t *testing.T) {
	s := NewSession("u", "cuckoo")
	require.NoError(t, s.AddPress(model.Press{Pitch: 60, Start: 2, Length: 1}))
	require.NoError(t, s.AddPress(model.Press{Pitch: 60, Start: 1, Length: 1}))
	require.NoError(t, s.AddPress(model.Press{Pitch: 60, Start: 2, Length: 0.5}))

	got := s.Presses(60)
	want := []model.Press{
		{Pitch: 60, Start: 1, Length: 1},
		{Pitch: 60, Start: 2, Length: 1},
		{Pitch: 60, Start: 2, Length: 0.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("presses mismatch (-want +got):\n%s", diff)
	}
	require.Error(t, s.AddPress(model.Press{Pitch: 60, Start: 3, Length: -1}))
}

func TestAddPoseBinaryInsert(t *testing.T) {
	s := NewSession("u", "")
	for _, tm := range []float64{3, 1, 2, 0.5, 2.5} {
		require.NoError(t, s.AddPose(model.Left, poseAt(tm)))
	}
	assert.Equal(t, []float64{0.5, 1, 2, 2.5, 3}, poseTimes(s.Poses(model.Left)))
	assert.Empty(t, s.Poses(model.Right))
	require.Error(t, s.AddPose(model.Side("up"), poseAt(1)))
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewSession("u", "")
	require.NoError(t, s.AddPress(model.Press{Pitch: 108, Start: 1}))
	snap := s.Snapshot()
	require.NoError(t, s.AddPress(model.Press{Pitch: 108, Start: 5}))
	require.NoError(t, s.AddPose(model.Right, poseAt(1)))

	assert.Len(t, snap.Presses(108), 1)
	assert.Equal(t, 0, snap.PoseCount())
	assert.Equal(t, 2, s.PressCount())
}

func TestConcurrentAppends(t *testing.T) {
	s := NewSession("u", "")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.AddPose(model.Left, poseAt(float64(j*8+i)))
				_ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	times := poseTimes(s.Poses(model.Left))
	require.Len(t, times, 400)
	for i := 1; i < len(times); i++ {
		require.LessOrEqual(t, times[i-1], times[i])
	}
}

func TestImportPressCSV(t *testing.T) {
	src := "Key,Start Time,Length Pressed\n108,1.5,0.1\n60,2.25,0.5\n60,3,0.25\n"
	s := NewSession("u", "")
	n, err := ImportPressCSV(strings.NewReader(src), s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float64{1.5}, s.MarkerStarts(108))
	assert.Equal(t, []int{60, 108}, s.Pitches())

	_, err = ImportPressCSV(strings.NewReader("60,x,1\n"), NewSession("u", ""))
	require.Error(t, err)
}

func TestPressCSVRoundTrip(t *testing.T) {
	presses := []model.Press{{Pitch: 60, Start: 1.25, Length: 0.5}, {Pitch: 62, Start: 2, Length: 1}}
	var buf bytes.Buffer
	require.NoError(t, WritePressCSV(&buf, presses))
	s := NewSession("u", "")
	_, err := ImportPressCSV(&buf, s)
	require.NoError(t, err)
	if diff := cmp.Diff(presses, s.AllPresses()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePoseLine(t *testing.T) {
	side, p, err := ParsePoseLine("Left,1.5,0.1,0.4,-0.2,0,0.7071,0,0.7071")
	require.NoError(t, err)
	assert.Equal(t, model.Left, side)
	assert.Equal(t, 1.5, p.Time)
	assert.Equal(t, r3.Vec{X: 0.1, Y: 0.4, Z: -0.2}, p.Position)
	assert.Equal(t, quat.Number{Real: 0.7071, Jmag: 0.7071}, p.Rotation)

	side, back, err := ParsePoseLine(FormatPoseLine(model.Right, p))
	require.NoError(t, err)
	assert.Equal(t, model.Right, side)
	assert.Equal(t, p, back)

	_, _, err = ParsePoseLine("X,1,2,3,4,5,6,7,8")
	require.Error(t, err)
	_, _, err = ParsePoseLine("L,1,2")
	require.Error(t, err)
}

func TestImportPoseLog(t *testing.T) {
	src := "# header\nR,2,0,1,0,0,0,0,1\n\nL,1,0,1,0,0,0,0,1\nR,1,0,1,0,0,0,0,1\n"
	s := NewSession("u", "")
	n, err := ImportPoseLog(strings.NewReader(src), s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []float64{1, 2}, poseTimes(s.Poses(model.Right)))

	var buf bytes.Buffer
	require.NoError(t, WritePoseLog(&buf, s))
	again := NewSession("u", "")
	_, err = ImportPoseLog(&buf, again)
	require.NoError(t, err)
	assert.Equal(t, s.Poses(model.Left), again.Poses(model.Left))
}

func TestRepairPosesReanchorsGroups(t *testing.T) {
	// Two takes, each restarting its clock at zero.
	var poses []model.Pose
	for _, tm := range []float64{0, 0.5, 1, 20, 20.5} {
		poses = append(poses, poseAt(tm))
	}
	markers := []float64{10, 40}
	fixed, err := RepairPoses(poses, markers)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10.5, 11, 40, 40.5}, poseTimes(fixed))
}

func TestRepairPosesSingleGroupWaitsForLastMarker(t *testing.T) {
	poses := []model.Pose{poseAt(0), poseAt(1)}
	fixed, err := RepairPoses(poses, []float64{10, 40, 70})
	require.NoError(t, err)
	assert.Empty(t, fixed)

	fixed, err = RepairPoses(poses, []float64{10})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11}, poseTimes(fixed))

	_, err = RepairPoses(poses, nil)
	require.True(t, errors.Is(err, ErrNoMarkers))
}

func TestTranscribeQuantizesLastTake(t *testing.T) {
	s := NewSession("u", "")
	layout := model.DefaultKeyLayout()
	for _, p := range []model.Press{
		{Pitch: 108, Start: 0},
		{Pitch: 60, Start: 1, Length: 0.5},
		{Pitch: 108, Start: 10},
		{Pitch: 60, Start: 11, Length: 0.5},
		{Pitch: 62, Start: 11.5, Length: 1.1},
		{Pitch: 60, Start: 12.6, Length: 0.25},
		{Pitch: 20, Start: 12, Length: 1},
	} {
		require.NoError(t, s.AddPress(p))
	}
	tr, err := Transcribe(s, layout, DefaultResolution)
	require.NoError(t, err)
	want := []model.Note{
		{Pitch: 60, StartBeat: 0, LengthBeats: 1},
		{Pitch: 60, StartBeat: 3, LengthBeats: 0},
		{Pitch: 62, StartBeat: 1, LengthBeats: 2},
	}
	if diff := cmp.Diff(want, tr.Notes); diff != "" {
		t.Fatalf("notes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3.0, tr.TotalLengthBeats)
	assert.Equal(t, DefaultResolution, tr.Tempo)
}

func TestTranscribeErrors(t *testing.T) {
	s := NewSession("u", "")
	_, err := Transcribe(s, model.DefaultKeyLayout(), 2)
	require.True(t, errors.Is(err, ErrNoMarkers))

	require.NoError(t, s.AddPress(model.Press{Pitch: 108, Start: 5}))
	require.NoError(t, s.AddPress(model.Press{Pitch: 60, Start: 1}))
	_, err = Transcribe(s, model.DefaultKeyLayout(), 2)
	require.True(t, errors.Is(err, ErrNothingPlayed))
}

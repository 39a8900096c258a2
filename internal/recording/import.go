package recording

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verte-zerg/keyscore/internal/model"
)

// PressHeader is the header line written by the keyboard recorder.
var PressHeader = []string{"Key", "Start Time", "Length Pressed"}

// ImportPressCSV reads recorder CSV rows into s and returns the number of presses added.
func ImportPressCSV(r io.Reader, s *Session) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true
	added := 0
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return added, fmt.Errorf("failed to read press csv: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), PressHeader[0]) {
			continue
		}
		press, err := parsePress(rec)
		if err != nil {
			return added, fmt.Errorf("press csv line %d: %w", line, err)
		}
		if err := s.AddPress(press); err != nil {
			return added, fmt.Errorf("press csv line %d: %w", line, err)
		}
		added++
	}
	return added, nil
}

func parsePress(rec []string) (model.Press, error) {
	pitch, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	if err != nil {
		return model.Press{}, fmt.Errorf("invalid key %q", rec[0])
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	if err != nil {
		return model.Press{}, fmt.Errorf("invalid start time %q", rec[1])
	}
	length, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
	if err != nil {
		return model.Press{}, fmt.Errorf("invalid length %q", rec[2])
	}
	return model.Press{Pitch: pitch, Start: start, Length: length}, nil
}

// WritePressCSV writes presses in the recorder CSV layout.
func WritePressCSV(w io.Writer, presses []model.Press) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(PressHeader); err != nil {
		return fmt.Errorf("failed to write press header: %w", err)
	}
	for _, p := range presses {
		rec := []string{
			strconv.Itoa(p.Pitch),
			strconv.FormatFloat(p.Start, 'f', -1, 64),
			strconv.FormatFloat(p.Length, 'f', -1, 64),
		}
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("failed to write press: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ParsePoseLine parses "L|R,time,px,py,pz,qx,qy,qz,qw". Only the first letter
// of the side field is significant.
func ParsePoseLine(line string) (model.Side, model.Pose, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 9 {
		return "", model.Pose{}, fmt.Errorf("pose line has %d fields, want 9", len(fields))
	}
	var side model.Side
	switch tag := strings.TrimSpace(fields[0]); {
	case strings.HasPrefix(tag, "L"), strings.HasPrefix(tag, "l"):
		side = model.Left
	case strings.HasPrefix(tag, "R"), strings.HasPrefix(tag, "r"):
		side = model.Right
	default:
		return "", model.Pose{}, fmt.Errorf("incorrect side %q", fields[0])
	}
	var v [8]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return "", model.Pose{}, fmt.Errorf("invalid pose value %q", fields[i+1])
		}
		v[i] = f
	}
	return side, model.Pose{
		Time:     v[0],
		Position: r3.Vec{X: v[1], Y: v[2], Z: v[3]},
		Rotation: quat.Number{Imag: v[4], Jmag: v[5], Kmag: v[6], Real: v[7]},
	}, nil
}

// FormatPoseLine is the inverse of ParsePoseLine.
func FormatPoseLine(side model.Side, p model.Pose) string {
	tag := "L"
	if side == model.Right {
		tag = "R"
	}
	vals := []float64{
		p.Time,
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Rotation.Imag, p.Rotation.Jmag, p.Rotation.Kmag, p.Rotation.Real,
	}
	parts := make([]string, 0, len(vals)+1)
	parts = append(parts, tag)
	for _, v := range vals {
		parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

// ImportPoseLog reads one pose per line into s. Blank lines and lines starting
// with '#' are skipped.
func ImportPoseLog(r io.Reader, s *Session) (int, error) {
	scanner := bufio.NewScanner(r)
	added := 0
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		side, pose, err := ParsePoseLine(text)
		if err != nil {
			return added, fmt.Errorf("pose log line %d: %w", line, err)
		}
		if err := s.AddPose(side, pose); err != nil {
			return added, fmt.Errorf("pose log line %d: %w", line, err)
		}
		added++
	}
	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("failed to read pose log: %w", err)
	}
	return added, nil
}

// WritePoseLog writes both streams of s, left first.
func WritePoseLog(w io.Writer, s *Session) error {
	bw := bufio.NewWriter(w)
	for _, side := range []model.Side{model.Left, model.Right} {
		for _, p := range s.Poses(side) {
			if _, err := fmt.Fprintln(bw, FormatPoseLine(side, p)); err != nil {
				return fmt.Errorf("failed to write pose log: %w", err)
			}
		}
	}
	return bw.Flush()
}

// ImportFiles loads a press CSV and an optional pose log into a new session.
func ImportFiles(user, song, pressPath, posePath string) (*Session, error) {
	s := NewSession(user, song)
	if err := importFile(pressPath, func(r io.Reader) error {
		_, err := ImportPressCSV(r, s)
		return err
	}); err != nil {
		return nil, err
	}
	if posePath != "" {
		if err := importFile(posePath, func(r io.Reader) error {
			_, err := ImportPoseLog(r, s)
			return err
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func importFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close for read-only import.
			_ = cerr
		}
	}()
	return fn(f)
}

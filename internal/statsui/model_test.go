package statsui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/keyscore/internal/generator"
	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/monitoring"
	"github.com/verte-zerg/keyscore/internal/song"
)

func init() {
	monitoring.SetLogger(nil)
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	score := song.Cuckoo(song.DefaultTempo)
	opts := generator.DefaultOptions()
	opts.Attempts = 2
	sess, err := generator.NewSeeded(11).Session("ada", score, model.DefaultKeyLayout(), opts)
	if err != nil {
		t.Fatalf("simulate session: %v", err)
	}
	m := NewModel(score, sess, model.DefaultAnalysisConfig(), nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func TestNewModelAnalyzesAllAttempts(t *testing.T) {
	m := newTestModel(t)
	if m.errMsg != "" {
		t.Fatalf("unexpected error %q", m.errMsg)
	}
	if got := m.Report().AttemptCount; got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	view := m.View()
	if !strings.Contains(view, "Overview") || !strings.Contains(view, "cuckoo") {
		t.Fatalf("expected tabs and song in view:\n%s", view)
	}
}

func TestAttemptDetail(t *testing.T) {
	m := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabAttempts {
		t.Fatalf("expected attempts tab, got %d", m.activeTab)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.detailMode {
		t.Fatalf("expected detail mode")
	}
	if view := m.View(); !strings.Contains(view, "Attempt 0") {
		t.Fatalf("expected attempt detail in view:\n%s", view)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.detailMode {
		t.Fatalf("expected detail mode to close")
	}
}

func TestApplySettings(t *testing.T) {
	m := newTestModel(t)
	m.startSettings()
	m.settingsInputs[0].SetValue("0.3")
	m.settingsInputs[3].SetValue("1")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.settingsMode {
		t.Fatalf("expected settings to close, error %q", m.settingsError)
	}
	if m.cfg.Tolerance != 0.3 {
		t.Fatalf("expected tolerance 0.3, got %v", m.cfg.Tolerance)
	}
	if r := m.Report(); r.AttemptCount != 1 || r.Attempts[0].Window.Index != 1 {
		t.Fatalf("expected only attempt 1, got %+v", r.Attempts)
	}
}

func TestApplySettingsRejectsInvalid(t *testing.T) {
	m := newTestModel(t)
	m.startSettings()
	m.settingsInputs[1].SetValue("-2")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.settingsMode || m.settingsError == "" {
		t.Fatalf("expected settings error to keep the form open")
	}
	if m.cfg.TimeGapThreshold != model.DefaultTimeGapThreshold {
		t.Fatalf("config changed despite error: %+v", m.cfg)
	}
}

func TestOutOfRangeAttemptShowsError(t *testing.T) {
	score := song.Cuckoo(song.DefaultTempo)
	sess, err := generator.NewSeeded(2).Session("ada", score, model.DefaultKeyLayout(), generator.DefaultOptions())
	if err != nil {
		t.Fatalf("simulate session: %v", err)
	}
	m := NewModel(score, sess, model.DefaultAnalysisConfig(), []int{9})
	if m.errMsg == "" {
		t.Fatalf("expected error for out of range attempt")
	}
}

func TestParseIndices(t *testing.T) {
	got, err := parseIndices(" 0, 2 ,2")
	if err != nil {
		t.Fatalf("parse indices: %v", err)
	}
	if joinIndices(got) != "0,2,2" {
		t.Fatalf("unexpected indices %v", got)
	}
	if _, err := parseIndices("a"); err == nil {
		t.Fatalf("expected error for non-numeric index")
	}
}

func TestCurveWindowSteps(t *testing.T) {
	if got := nextCurveWindow(1); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := nextCurveWindow(7); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := prevCurveWindow(7); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := prevCurveWindow(5); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

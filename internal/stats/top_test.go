package stats

import (
	"reflect"
	"testing"

	"github.com/verte-zerg/keyscore/internal/model"
)

func attempt(index, matched int, ste float64) model.AttemptResult {
	return model.AttemptResult{
		Window: model.AttemptWindow{Index: index},
		Press:  model.AttemptMetrics{MatchedStart: matched, StartTimeError: ste},
	}
}

func TestWorstAttempts(t *testing.T) {
	r := model.Report{Attempts: []model.AttemptResult{
		attempt(0, 10, 0.2),
		attempt(1, 12, 0.9),
		attempt(2, 11, 0.2),
		attempt(3, 9, 0.5),
	}}
	got := WorstAttempts(r, 3)
	want := []int{1, 3, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := WorstAttempts(r, 10); len(got) != 4 {
		t.Fatalf("expected all attempts, got %v", got)
	}
	if got := WorstAttempts(model.Report{}, 3); got != nil {
		t.Fatalf("expected nil for empty report, got %v", got)
	}
}

func TestBestAttempt(t *testing.T) {
	r := model.Report{Attempts: []model.AttemptResult{
		attempt(4, 10, 0.2),
		attempt(5, 12, 0.9),
		attempt(6, 12, 0.4),
	}}
	idx, ok := BestAttempt(r)
	if !ok || idx != 6 {
		t.Fatalf("expected attempt 6, got %d (ok=%v)", idx, ok)
	}
	if _, ok := BestAttempt(model.Report{}); ok {
		t.Fatalf("expected no best attempt for empty report")
	}
}

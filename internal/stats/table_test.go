package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"#", "Status", "STE"}
	rows := [][]string{
		{"0", "clean", "0.125"},
		{"12", "time gap", "1.5"},
	}
	rightAlign := map[int]bool{0: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != " #  Status      STE" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != " 0  clean     0.125" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "12  time gap    1.5" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestDisplayWidthCountsWideRunes(t *testing.T) {
	if got := displayWidth("音符"); got != 4 {
		t.Fatalf("expected width 4, got %d", got)
	}
	if got := padCell("音", 4, false); got != "音  " {
		t.Fatalf("unexpected padding %q", got)
	}
}

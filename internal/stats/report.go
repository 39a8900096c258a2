package stats

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/store"
)

// History is the stored analysis runs of one session, oldest first.
type History struct {
	SessionID int64
	Runs      []model.AnalysisRun
}

// BuildHistory loads the last runs of a session. last <= 0 keeps every run.
func BuildHistory(ctx context.Context, st *store.Store, sessionID int64, last int) (History, error) {
	runs, err := st.ListRuns(ctx, sessionID)
	if err != nil {
		return History{}, err
	}
	// ListRuns is newest first.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	if last > 0 && len(runs) > last {
		runs = runs[len(runs)-last:]
	}
	return History{SessionID: sessionID, Runs: runs}, nil
}

// RenderHistory prints the run table and the trend of the main averages.
func RenderHistory(w io.Writer, h History, totalWidth, height int, useColor bool) error {
	if len(h.Runs) == 0 {
		_, err := fmt.Fprintf(w, "No analysis runs for session %d.\n", h.SessionID)
		return err
	}
	headers := []string{"Run", "Created", "Song", "Attempts", "STE", "MSC", "PRFT"}
	rows := make([][]string, 0, len(h.Runs))
	ste := make([]float64, len(h.Runs))
	msc := make([]float64, len(h.Runs))
	for i, run := range h.Runs {
		r := run.Report
		rows = append(rows, []string{
			shortID(run.RunID),
			run.CreatedAt.Local().Format("2006-01-02 15:04"),
			run.Song,
			strconv.Itoa(r.AttemptCount),
			formatMetric(r.StartTimeErrorAvg),
			formatMetric(r.MatchedStartAvg),
			formatMetric(r.OnTargetTimeAvg),
		})
		ste[i] = metricValue(r.StartTimeErrorAvg)
		msc[i] = metricValue(r.MatchedStartAvg)
	}
	for _, line := range formatTable(headers, rows, map[int]bool{3: true, 4: true, 5: true, 6: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	if len(h.Runs) < 2 {
		return nil
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	if err := PlotSeriesWithColor(w, "Start time error by run (s)", []Series{{Name: "STE", Values: ste}}, width, height, useColor); err != nil {
		return err
	}
	return PlotSeriesWithColor(w, "Matched starts by run", []Series{{Name: "MSC", Values: msc}}, width, height, useColor)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

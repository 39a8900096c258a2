package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/keyscore/internal/analysis"
	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/pianoroll"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/song"
	"github.com/verte-zerg/keyscore/internal/stats"
	"github.com/verte-zerg/keyscore/internal/statsui"
	"github.com/verte-zerg/keyscore/internal/store"
)

var (
	attemptList  string
	analyzeTSV   bool
	analyzeSave  bool
	analyzeCurve bool
	analyzeWorst int
	curveWindow  int
	historyLast  int

	gapThreshold float64

	transcribeName       string
	transcribeOut        string
	transcribeResolution float64

	renderOut string
)

func newSongsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "songs",
		Short: "List available reference songs",
		Args:  cobra.NoArgs,
		RunE:  runSongsCmd,
	}
}

func runSongsCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	dir := songs()
	names, err := dir.Names()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range names {
		score, err := dir.Score(name)
		if err != nil {
			logErrln("skipping", name+":", err)
			continue
		}
		fmt.Fprintf(out, "%-24s %4d notes %7.1fs\n", score.Name(), score.NoteCount(), score.Duration())
	}
	return nil
}

func newWindowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "window <session-id> <attempt>",
		Short: "Locate the time window of one attempt",
		Args:  cobra.ExactArgs(2),
		RunE:  runWindowCmd,
	}
	addSongFlag(cmd)
	addAnalysisFlags(cmd)
	return cmd
}

func runWindowCmd(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid attempt %q", args[1])
	}
	return withAnalyzer(cmd, args[0], func(_ *store.Store, a *analysis.Analyzer) error {
		w, err := a.LocateAttemptWindow(index)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Attempt %d (%d recorded)\n", w.Index, a.AttemptCount())
		fmt.Fprintf(out, "Roll start:      %s\n", formatTime(w.RollStart))
		fmt.Fprintf(out, "Roll end:        %s\n", formatTime(w.RollEnd))
		fmt.Fprintf(out, "Soft start:      %s\n", formatTime(w.SoftStart))
		fmt.Fprintf(out, "Predicted start: %s\n", formatTime(w.PredictedStart))
		fmt.Fprintf(out, "Predicted end:   %s\n", formatTime(w.PredictedEnd))
		fmt.Fprintf(out, "Offset samples:  %d\n", w.OffsetSamples)
		return nil
	})
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <session-id>",
		Short: "Score attempts of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyzeCmd,
	}
	addSongFlag(cmd)
	addAnalysisFlags(cmd)
	cmd.Flags().StringVar(&attemptList, "attempts", "", "comma separated attempt indices (default: all)")
	cmd.Flags().BoolVar(&analyzeTSV, "tsv", false, "print only the averages as one tab separated line")
	cmd.Flags().BoolVar(&analyzeSave, "save", false, "store the report as an analysis run")
	cmd.Flags().BoolVar(&analyzeCurve, "curves", false, "plot per-attempt curves")
	cmd.Flags().IntVar(&analyzeWorst, "worst", 3, "list the attempts with the largest start error (0 to disable)")
	cmd.Flags().IntVar(&curveWindow, "window", defaultCurveWindow, "moving average window for curves")
	cmd.Flags().IntVar(&historyLast, "history", 0, "also show the last N stored runs of the session")
	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	if curveWindow < 1 {
		return fmt.Errorf("--window must be >= 1")
	}
	indices, err := parseAttempts(attemptList)
	if err != nil {
		return err
	}
	return withAnalyzer(cmd, args[0], func(st *store.Store, a *analysis.Analyzer) error {
		if indices == nil {
			indices = a.AllAttempts()
		}
		report, err := a.Analyze(indices)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if analyzeTSV {
			fmt.Fprintln(out, report.TSV())
		} else if err := renderReport(out, report); err != nil {
			return err
		}

		sessionID, _ := parseSessionID(args[0])
		if analyzeSave {
			run := &model.AnalysisRun{
				SessionID: sessionID,
				Song:      a.Score().Name(),
				Indices:   indices,
				Config:    a.Config(),
				Report:    report,
			}
			if err := st.SaveRun(cmd.Context(), run); err != nil {
				return err
			}
			if !analyzeTSV {
				fmt.Fprintf(out, "Saved run %s\n", run.RunID)
			}
		}
		if historyLast > 0 && !analyzeTSV {
			h, err := stats.BuildHistory(cmd.Context(), st, sessionID, historyLast)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			if err := stats.RenderHistory(out, h, 0, 0, false); err != nil {
				return err
			}
		}
		return nil
	})
}

func renderReport(out io.Writer, report model.Report) error {
	if err := stats.RenderSummary(out, report); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := stats.RenderAttempts(out, report); err != nil {
		return err
	}
	if len(report.Attempts) > 1 {
		fmt.Fprintln(out)
		if err := stats.RenderSparklines(out, report); err != nil {
			return err
		}
	}
	if analyzeWorst > 0 && len(report.Attempts) > 1 {
		worst := stats.WorstAttempts(report, analyzeWorst)
		labels := make([]string, len(worst))
		for i, idx := range worst {
			labels[i] = strconv.Itoa(report.Attempts[idx].Window.Index)
		}
		fmt.Fprintf(out, "\nLargest start error: %s\n", strings.Join(labels, ", "))
		if best, ok := stats.BestAttempt(report); ok {
			fmt.Fprintf(out, "Best attempt: %d\n", report.Attempts[best].Window.Index)
		}
	}
	if analyzeCurve {
		fmt.Fprintln(out)
		if err := stats.RenderCurves(out, report, curveWindow); err != nil {
			return err
		}
	}
	return nil
}

func newGapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gaps <session-id>",
		Short: "List pose gaps of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runGapsCmd,
	}
	addSongFlag(cmd)
	addAnalysisFlags(cmd)
	cmd.Flags().Float64Var(&gapThreshold, "threshold", 0, "minimum gap length in seconds (default: --time-gap)")
	return cmd
}

func runGapsCmd(cmd *cobra.Command, args []string) error {
	return withAnalyzer(cmd, args[0], func(_ *store.Store, a *analysis.Analyzer) error {
		threshold := gapThreshold
		if threshold <= 0 {
			threshold = a.Config().TimeGapThreshold
		}
		return stats.RenderGaps(cmd.OutOrStdout(), a.ScanGaps(threshold))
	})
}

func newTranscribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <session-id>",
		Short: "Turn the last take of a session into a TOML score",
		Args:  cobra.ExactArgs(1),
		RunE:  runTranscribeCmd,
	}
	addAnalysisFlags(cmd)
	cmd.Flags().StringVar(&transcribeName, "name", "", "score name (default: transcribed-<session-id>)")
	cmd.Flags().StringVarP(&transcribeOut, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().Float64Var(&transcribeResolution, "resolution", defaultResolution, "quantization grid in beats per second")
	return cmd
}

func runTranscribeCmd(cmd *cobra.Command, args []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	cfg := analysisConfig()
	if err := validateConfig(cfg); err != nil {
		return err
	}
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(st *store.Store) error {
		sess, err := st.LoadSession(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to load session %d: %w", id, err)
		}
		tr, err := recording.Transcribe(sess, cfg.Layout, transcribeResolution)
		if err != nil {
			return err
		}
		name := transcribeName
		if name == "" {
			name = fmt.Sprintf("transcribed-%d", id)
		}
		score, err := song.FromNotes(name, tr.Tempo, tr.TotalLengthBeats, tr.Notes)
		if err != nil {
			return err
		}
		if transcribeOut == "" {
			return song.EncodeTOML(cmd.OutOrStdout(), score)
		}
		if err := writeFile(transcribeOut, func(f *os.File) error {
			return song.EncodeTOML(f, score)
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d notes to %s\n", score.NoteCount(), transcribeOut)
		return nil
	})
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <session-id> <attempt>",
		Short: "Draw a piano roll of one attempt",
		Args:  cobra.ExactArgs(2),
		RunE:  runRenderCmd,
	}
	addSongFlag(cmd)
	addAnalysisFlags(cmd)
	cmd.Flags().StringVarP(&renderOut, "out", "o", "", "output image, format by extension (default: roll-<session>-<attempt>.png)")
	return cmd
}

func runRenderCmd(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid attempt %q", args[1])
	}
	return withAnalyzer(cmd, args[0], func(_ *store.Store, a *analysis.Analyzer) error {
		w, err := a.LocateAttemptWindow(index)
		if err != nil {
			return err
		}
		p, err := pianoroll.New(a.Score(), a.Session(), a.Config().Layout, w)
		if err != nil {
			return err
		}
		path := renderOut
		if path == "" {
			path = fmt.Sprintf("roll-%s-%d.png", strings.TrimSpace(args[0]), index)
		}
		if err := pianoroll.Save(p, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	})
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <session-id>",
		Short: "Browse the analysis of a session interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  runViewCmd,
	}
	addSongFlag(cmd)
	addAnalysisFlags(cmd)
	cmd.Flags().StringVar(&attemptList, "attempts", "", "comma separated attempt indices (default: all)")
	return cmd
}

func runViewCmd(cmd *cobra.Command, args []string) error {
	indices, err := parseAttempts(attemptList)
	if err != nil {
		return err
	}
	var ui *statsui.Model
	if err := withAnalyzer(cmd, args[0], func(_ *store.Store, a *analysis.Analyzer) error {
		ui = statsui.NewModel(a.Score(), a.Session(), a.Config(), indices)
		return nil
	}); err != nil {
		return err
	}
	if _, err := tea.NewProgram(ui, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run stats UI: %w", err)
	}
	return nil
}

// withAnalyzer resolves settings, opens the store and builds an analyzer for a session.
func withAnalyzer(cmd *cobra.Command, rawID string, fn func(st *store.Store, a *analysis.Analyzer) error) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	if err := validateConfig(analysisConfig()); err != nil {
		return err
	}
	return withStore(func(st *store.Store) error {
		a, err := newAnalyzer(cmd, st, rawID)
		if err != nil {
			return err
		}
		return fn(st, a)
	})
}

func formatTime(v float64) string {
	if math.IsInf(v, 1) {
		return "end of recording"
	}
	return strconv.FormatFloat(v, 'f', 3, 64) + "s"
}

// Package main provides the CLI entrypoint for keyscore.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/keyscore/internal/analysis"
	"github.com/verte-zerg/keyscore/internal/config"
	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/monitoring"
	"github.com/verte-zerg/keyscore/internal/song"
	"github.com/verte-zerg/keyscore/internal/store"
)

const (
	defaultAddr        = ":8080"
	defaultCurveWindow = 1
	defaultResolution  = 2.0
)

var (
	dbPath   string
	scoreDir string
	quiet    bool

	tolerance float64
	timeGap   float64
	focusAway float64
	markerKey int
	lowKey    int
	highKey   int
	songName  string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keyscore",
		Short:         "Score recorded keyboard practice against a reference song",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if quiet {
				monitoring.SetLogger(nil)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&scoreDir, "scores", config.DefaultScoreDir(), "directory of TOML and MIDI scores")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "mute diagnostics about discarded gaze streams")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newRepairCmd())
	rootCmd.AddCommand(newSongsCmd())
	rootCmd.AddCommand(newWindowCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newGapsCmd())
	rootCmd.AddCommand(newTranscribeCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newSimulateCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// addAnalysisFlags registers the scoring thresholds and key layout flags.
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&tolerance, "tolerance", model.DefaultTolerance, "offset estimation tolerance in seconds")
	cmd.Flags().Float64Var(&timeGap, "time-gap", model.DefaultTimeGapThreshold, "pose gap that corrupts a gaze stream, in seconds")
	cmd.Flags().Float64Var(&focusAway, "focus-away", model.DefaultFocusAwayThreshold, "look-away time that corrupts a gaze stream, in seconds")
	cmd.Flags().IntVar(&markerKey, "marker", model.DefaultMarkerPitch, "MIDI pitch of the attempt marker key")
	cmd.Flags().IntVar(&lowKey, "low", model.DefaultLowKey, "lowest scored MIDI pitch")
	cmd.Flags().IntVar(&highKey, "high", model.DefaultHighKey, "highest scored MIDI pitch")
}

func addSongFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&songName, "song", "", "reference song (default: the song the session was recorded for)")
}

// loadSettings overlays the config file onto every flag the user did not set.
func loadSettings(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Storage.DB)
	applyStringConfig(cmd, "scores", &scoreDir, fileCfg.Storage.Scores)
	applyFloatConfig(cmd, "tolerance", &tolerance, fileCfg.Analysis.Tolerance)
	applyFloatConfig(cmd, "time-gap", &timeGap, fileCfg.Analysis.TimeGap)
	applyFloatConfig(cmd, "focus-away", &focusAway, fileCfg.Analysis.FocusAway)
	applyIntConfig(cmd, "marker", &markerKey, fileCfg.Keys.Marker)
	applyIntConfig(cmd, "low", &lowKey, fileCfg.Keys.Low)
	applyIntConfig(cmd, "high", &highKey, fileCfg.Keys.High)
	return fileCfg, nil
}

func analysisConfig() model.AnalysisConfig {
	return model.AnalysisConfig{
		Tolerance:          tolerance,
		TimeGapThreshold:   timeGap,
		FocusAwayThreshold: focusAway,
		Layout: model.KeyLayout{
			MarkerPitch: markerKey,
			LowKey:      lowKey,
			HighKey:     highKey,
		},
	}
}

func validateConfig(cfg model.AnalysisConfig) error {
	if err := analysis.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func songs() song.Dir {
	return song.Dir{Path: scoreDir, Base: song.BuiltIn()}
}

func withStore(fn func(st *store.Store) error) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	return fn(st)
}

// newAnalyzer loads a stored session and its reference song.
func newAnalyzer(cmd *cobra.Command, st *store.Store, rawID string) (*analysis.Analyzer, error) {
	id, err := parseSessionID(rawID)
	if err != nil {
		return nil, err
	}
	sess, err := st.LoadSession(cmd.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %d: %w", id, err)
	}
	name := songName
	if name == "" {
		name = sess.Song
	}
	score, err := songs().Score(name)
	if err != nil {
		return nil, err
	}
	return analysis.NewAnalyzer(score, sess, analysisConfig())
}

func parseSessionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", raw)
	}
	return id, nil
}

func parseAttempts(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid --attempts value %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil || cmd.Flags().Lookup(name) == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil || cmd.Flags().Lookup(name) == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil || cmd.Flags().Lookup(name) == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# keyscore configuration
# Uncomment a value to enable it. CLI flags override config values.

[analysis]
# tolerance = %.1f         # Offset estimation tolerance (s)
# time-gap = %.1f          # Pose gap that corrupts a gaze stream (s)
# focus-away = %.1f        # Look-away time that corrupts a gaze stream (s)

[keys]
# marker = %d             # MIDI pitch of the attempt marker key
# low = %d                 # Lowest scored MIDI pitch
# high = %d               # Highest scored MIDI pitch

[server]
# addr = %q           # HTTP API listen address

[storage]
# db = %q
# scores = %q
`,
		model.DefaultTolerance,
		model.DefaultTimeGapThreshold,
		model.DefaultFocusAwayThreshold,
		model.DefaultMarkerPitch,
		model.DefaultLowKey,
		model.DefaultHighKey,
		defaultAddr,
		config.DefaultDBPath(),
		config.DefaultScoreDir(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

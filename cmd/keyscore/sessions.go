package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/keyscore/internal/generator"
	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/stats"
	"github.com/verte-zerg/keyscore/internal/store"
)

var (
	importUser    string
	importSong    string
	importPresses string
	importPoses   string
	importRepair  bool

	simUser      string
	simSong      string
	simSeed      int64
	simAttempts  int
	simDropout   float64
	simPressOut  string
	simPoseOut   string
	simNoStore   bool
	simMissRate  float64
	simExtraRate float64
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a press CSV and pose log as a new session",
		Args:  cobra.NoArgs,
		RunE:  runImportCmd,
	}
	cmd.Flags().StringVar(&importUser, "user", "", "user who recorded the session")
	cmd.Flags().StringVar(&importSong, "song", "", "song the session was recorded for")
	cmd.Flags().StringVar(&importPresses, "presses", "", "press CSV (pitch,start,length)")
	cmd.Flags().StringVar(&importPoses, "poses", "", "pose log")
	cmd.Flags().BoolVar(&importRepair, "repair", false, "re-anchor mis-timed pose streams to the marker presses")
	cmd.Flags().IntVar(&markerKey, "marker", model.DefaultMarkerPitch, "MIDI pitch of the attempt marker key")
	_ = cmd.MarkFlagRequired("presses")
	_ = cmd.MarkFlagRequired("song")
	return cmd
}

func runImportCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	if _, err := songs().Score(importSong); err != nil {
		return err
	}
	sess, err := recording.ImportFiles(importUser, importSong, importPresses, importPoses)
	if err != nil {
		return err
	}
	if importRepair {
		if err := recording.RepairSession(sess, markerKey); err != nil {
			return err
		}
	}
	return withStore(func(st *store.Store) error {
		id, err := st.InsertSession(cmd.Context(), sess)
		if err != nil {
			return err
		}
		info := sess.Info(markerKey)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported session %d: %d presses, %d poses, %d attempts\n",
			id, info.PressCount, info.PoseCount, info.Attempts)
		return nil
	})
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsCmd,
	}
	cmd.Flags().IntVar(&markerKey, "marker", model.DefaultMarkerPitch, "MIDI pitch of the attempt marker key")
	return cmd
}

func runSessionsCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	return withStore(func(st *store.Store) error {
		sessions, err := st.ListSessions(cmd.Context(), markerKey)
		if err != nil {
			return err
		}
		return stats.RenderSessions(cmd.OutOrStdout(), sessions)
	})
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session with its recordings and analysis runs",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteCmd,
	}
}

func runDeleteCmd(cmd *cobra.Command, args []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(st *store.Store) error {
		if err := st.DeleteSession(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %d\n", id)
		return nil
	})
}

func newRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair <session-id>",
		Short: "Re-anchor the pose streams of a stored session to its marker presses",
		Args:  cobra.ExactArgs(1),
		RunE:  runRepairCmd,
	}
	cmd.Flags().IntVar(&markerKey, "marker", model.DefaultMarkerPitch, "MIDI pitch of the attempt marker key")
	return cmd
}

func runRepairCmd(cmd *cobra.Command, args []string) error {
	if _, err := loadSettings(cmd); err != nil {
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
		if err := recording.RepairSession(sess, markerKey); err != nil {
			return err
		}
		if err := st.ReplacePoses(cmd.Context(), sess); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Repaired session %d: %d poses\n", id, sess.PoseCount())
		return nil
	})
}

func newSimulateCmd() *cobra.Command {
	defaults := generator.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic practice session",
		Args:  cobra.NoArgs,
		RunE:  runSimulateCmd,
	}
	cmd.Flags().StringVar(&simUser, "user", "simulated", "user recorded on the session")
	cmd.Flags().StringVar(&simSong, "song", "tutorial", "song to play")
	cmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (0 picks one from the clock)")
	cmd.Flags().IntVar(&simAttempts, "attempts", defaults.Attempts, "number of attempts")
	cmd.Flags().Float64Var(&simMissRate, "miss-rate", defaults.MissRate, "probability of skipping a note")
	cmd.Flags().Float64Var(&simExtraRate, "extra-rate", defaults.ExtraRate, "probability of a stray press per note")
	cmd.Flags().Float64Var(&simDropout, "dropout-rate", defaults.DropoutRate, "probability of a pose dropout per attempt")
	cmd.Flags().StringVar(&simPressOut, "presses-out", "", "also write the presses as CSV")
	cmd.Flags().StringVar(&simPoseOut, "poses-out", "", "also write the poses as a pose log")
	cmd.Flags().BoolVar(&simNoStore, "no-store", false, "do not save the session to the database")
	addAnalysisFlags(cmd)
	return cmd
}

func runSimulateCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	cfg := analysisConfig()
	if err := validateConfig(cfg); err != nil {
		return err
	}
	score, err := songs().Score(simSong)
	if err != nil {
		return err
	}

	opts := generator.DefaultOptions()
	opts.Attempts = simAttempts
	opts.MissRate = simMissRate
	opts.ExtraRate = simExtraRate
	opts.DropoutRate = simDropout
	seed := simSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sess, err := generator.NewSeeded(seed).Session(simUser, score, cfg.Layout, opts)
	if err != nil {
		return err
	}

	if simPressOut != "" {
		if err := writeFile(simPressOut, func(f *os.File) error {
			return recording.WritePressCSV(f, sess.AllPresses())
		}); err != nil {
			return err
		}
	}
	if simPoseOut != "" {
		if err := writeFile(simPoseOut, func(f *os.File) error {
			return recording.WritePoseLog(f, sess)
		}); err != nil {
			return err
		}
	}
	if simNoStore {
		fmt.Fprintf(cmd.OutOrStdout(), "Simulated %d attempts of %s (seed %d)\n", opts.Attempts, score.Name(), seed)
		return nil
	}
	return withStore(func(st *store.Store) error {
		id, err := st.InsertSession(cmd.Context(), sess)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Simulated session %d: %d attempts of %s (seed %d)\n", id, opts.Attempts, score.Name(), seed)
		return nil
	})
}

func writeFile(path string, fn func(f *os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return fn(f)
}

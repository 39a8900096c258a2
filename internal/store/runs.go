package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/keyscore/internal/model"
)

// SaveRun stores an analysis run and its attempts. A missing RunID is filled
// with a new UUID and a zero CreatedAt with the current time.
func (s *Store) SaveRun(ctx context.Context, run *model.AnalysisRun) (err error) {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	r := run.Report
	c := run.Config
	_, err = tx.ExecContext(ctx,
		`INSERT INTO analysis_runs (run_id, session_id, song, indices, tolerance, time_gap, focus_away,
			marker_pitch, low_key, high_key, created_at, attempt_count, eye_data_count,
			ste, ete, msc, mec, missed_start, missed_end, esc, eec, em, fs, prft, mfd)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.SessionID, run.Song, joinIndices(run.Indices),
		c.Tolerance, c.TimeGapThreshold, c.FocusAwayThreshold,
		c.Layout.MarkerPitch, c.Layout.LowKey, c.Layout.HighKey,
		run.CreatedAt.UTC().Format(timeLayout), r.AttemptCount, r.EyeDataCount,
		metricArg(r.StartTimeErrorAvg), metricArg(r.EndTimeErrorAvg),
		metricArg(r.MatchedStartAvg), metricArg(r.MatchedEndAvg),
		metricArg(r.MissedStartAvg), metricArg(r.MissedEndAvg),
		metricArg(r.ExtraStartAvg), metricArg(r.ExtraEndAvg),
		metricArg(r.AngularMovementAvg), metricArg(r.FocusSwitchAvg),
		metricArg(r.OnTargetTimeAvg), metricArg(r.MeanFocusDepthAvg),
	)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_attempts (run_id, position, attempt_index, roll_start, roll_end, soft_start,
			predicted_start, predicted_end, offset_samples, start_error, end_error,
			matched_start, matched_end, missed_start, missed_end, extra_start, extra_end,
			left_status, left_reason, right_status, right_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer closeStmt(stmt)
	for i, a := range r.Attempts {
		w, p := a.Window, a.Press
		if _, err = stmt.ExecContext(ctx, run.RunID, i, w.Index, w.RollStart,
			finiteArg(w.RollEnd), finiteArg(w.SoftStart), finiteArg(w.PredictedStart), finiteArg(w.PredictedEnd),
			w.OffsetSamples, p.StartTimeError, p.EndTimeError,
			p.MatchedStart, p.MatchedEnd, p.MissedStart, p.MissedEnd, p.ExtraStart, p.ExtraEnd,
			string(a.Left.Status), string(a.Left.Reason), string(a.Right.Status), string(a.Right.Reason)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const runColumns = `run_id, session_id, song, indices, tolerance, time_gap, focus_away,
	marker_pitch, low_key, high_key, created_at, attempt_count, eye_data_count,
	ste, ete, msc, mec, missed_start, missed_end, esc, eec, em, fs, prft, mfd`

// ListRuns returns the runs of a session, newest first, without attempt details.
func (s *Store) ListRuns(ctx context.Context, sessionID int64) ([]model.AnalysisRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM analysis_runs WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var out []model.AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadRun reads one run with its attempts. Attention details beyond stream
// status are not stored.
func (s *Store) LoadRun(ctx context.Context, runID string) (model.AnalysisRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.AnalysisRun{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return model.AnalysisRun{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT attempt_index, roll_start, roll_end, soft_start,
			predicted_start, predicted_end, offset_samples, start_error, end_error,
			matched_start, matched_end, missed_start, missed_end, extra_start, extra_end,
			left_status, left_reason, right_status, right_reason
		FROM run_attempts WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return model.AnalysisRun{}, err
	}
	defer closeRows(rows)
	for rows.Next() {
		var a model.AttemptResult
		var rollEnd, soft, pStart, pEnd sql.NullFloat64
		var ls, lr, rs, rr string
		w := &a.Window
		p := &a.Press
		if err := rows.Scan(&w.Index, &w.RollStart, &rollEnd, &soft, &pStart, &pEnd, &w.OffsetSamples,
			&p.StartTimeError, &p.EndTimeError, &p.MatchedStart, &p.MatchedEnd,
			&p.MissedStart, &p.MissedEnd, &p.ExtraStart, &p.ExtraEnd,
			&ls, &lr, &rs, &rr); err != nil {
			return model.AnalysisRun{}, err
		}
		w.RollEnd = finiteOrInf(rollEnd)
		w.SoftStart = finiteOrInf(soft)
		w.PredictedStart = finiteOrInf(pStart)
		w.PredictedEnd = finiteOrInf(pEnd)
		a.Left = model.AttentionMetrics{Status: model.StreamStatus(ls), Reason: model.CorruptionReason(lr)}
		a.Right = model.AttentionMetrics{Status: model.StreamStatus(rs), Reason: model.CorruptionReason(rr)}
		run.Report.Attempts = append(run.Report.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return model.AnalysisRun{}, err
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.AnalysisRun, error) {
	var run model.AnalysisRun
	var indices, createdAt string
	var m [12]sql.NullFloat64
	c := &run.Config
	r := &run.Report
	if err := row.Scan(&run.RunID, &run.SessionID, &run.Song, &indices,
		&c.Tolerance, &c.TimeGapThreshold, &c.FocusAwayThreshold,
		&c.Layout.MarkerPitch, &c.Layout.LowKey, &c.Layout.HighKey,
		&createdAt, &r.AttemptCount, &r.EyeDataCount,
		&m[0], &m[1], &m[2], &m[3], &m[4], &m[5], &m[6], &m[7], &m[8], &m[9], &m[10], &m[11]); err != nil {
		return model.AnalysisRun{}, err
	}
	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return model.AnalysisRun{}, err
	}
	run.CreatedAt = parsed
	run.Indices, err = splitIndices(indices)
	if err != nil {
		return model.AnalysisRun{}, err
	}
	targets := []*model.Metric{
		&r.StartTimeErrorAvg, &r.EndTimeErrorAvg,
		&r.MatchedStartAvg, &r.MatchedEndAvg,
		&r.MissedStartAvg, &r.MissedEndAvg,
		&r.ExtraStartAvg, &r.ExtraEndAvg,
		&r.AngularMovementAvg, &r.FocusSwitchAvg,
		&r.OnTargetTimeAvg, &r.MeanFocusDepthAvg,
	}
	for i, t := range targets {
		*t = model.Metric{Value: m[i].Float64, Available: m[i].Valid}
	}
	return run, nil
}

func metricArg(m model.Metric) any {
	if !m.Available {
		return nil
	}
	return m.Value
}

// finiteArg stores non-finite times as NULL.
func finiteArg(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

func finiteOrInf(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.Inf(1)
	}
	return n.Float64
}

func joinIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}

func splitIndices(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid attempt index %q", p)
		}
		out[i] = v
	}
	return out, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/recording"
)

// InsertSession stores a recorded session with its presses and poses and
// returns the new session id. The id is also set on s.
func (s *Store) InsertSession(ctx context.Context, sess *recording.Session) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (user, song, created_at) VALUES (?, ?, ?)`,
		sess.User, sess.Song, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	pressStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO presses (session_id, seq, pitch, start, length) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer closeStmt(pressStmt)
	for i, p := range sess.AllPresses() {
		if _, err = pressStmt.ExecContext(ctx, id, i, p.Pitch, p.Start, p.Length); err != nil {
			return 0, err
		}
	}

	poseStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO poses (session_id, side, seq, time, px, py, pz, qx, qy, qz, qw)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer closeStmt(poseStmt)
	for _, side := range []model.Side{model.Left, model.Right} {
		for i, p := range sess.Poses(side) {
			if _, err = poseStmt.ExecContext(ctx, id, string(side), i, p.Time,
				p.Position.X, p.Position.Y, p.Position.Z,
				p.Rotation.Imag, p.Rotation.Jmag, p.Rotation.Kmag, p.Rotation.Real); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	sess.ID = id
	return id, nil
}

// LoadSession reads a stored session back. It returns ErrNotFound for unknown ids.
func (s *Store) LoadSession(ctx context.Context, id int64) (*recording.Session, error) {
	var user, song string
	err := s.db.QueryRowContext(ctx, `SELECT user, song FROM sessions WHERE id = ?`, id).Scan(&user, &song)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	sess := recording.NewSession(user, song)
	sess.ID = id

	rows, err := s.db.QueryContext(ctx,
		`SELECT pitch, start, length FROM presses WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p model.Press
		if err := rows.Scan(&p.Pitch, &p.Start, &p.Length); err != nil {
			closeRows(rows)
			return nil, err
		}
		if err := sess.AddPress(p); err != nil {
			closeRows(rows)
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		closeRows(rows)
		return nil, err
	}
	closeRows(rows)

	rows, err = s.db.QueryContext(ctx,
		`SELECT side, time, px, py, pz, qx, qy, qz, qw FROM poses WHERE session_id = ? ORDER BY side, seq`, id)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)
	poses := map[model.Side][]model.Pose{}
	for rows.Next() {
		var side string
		var p model.Pose
		var pos r3.Vec
		var rot quat.Number
		if err := rows.Scan(&side, &p.Time, &pos.X, &pos.Y, &pos.Z, &rot.Imag, &rot.Jmag, &rot.Kmag, &rot.Real); err != nil {
			return nil, err
		}
		p.Position = pos
		p.Rotation = rot
		poses[model.Side(side)] = append(poses[model.Side(side)], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for side, list := range poses {
		if err := sess.ReplacePoses(side, list); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// ListSessions returns a summary of every stored session, oldest first.
// Attempts counts the presses of marker.
func (s *Store) ListSessions(ctx context.Context, marker int) ([]model.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.user, s.song,
			(SELECT COUNT(*) FROM presses p WHERE p.session_id = s.id AND p.pitch = ?),
			(SELECT COUNT(*) FROM presses p WHERE p.session_id = s.id),
			(SELECT COUNT(*) FROM poses o WHERE o.session_id = s.id)
		FROM sessions s
		ORDER BY s.id ASC`, marker)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var out []model.SessionInfo
	for rows.Next() {
		var info model.SessionInfo
		if err := rows.Scan(&info.ID, &info.User, &info.Song, &info.Attempts, &info.PressCount, &info.PoseCount); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplacePoses overwrites the stored pose streams of a session, used after repair.
func (s *Store) ReplacePoses(ctx context.Context, sess *recording.Session) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM poses WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO poses (session_id, side, seq, time, px, py, pz, qx, qy, qz, qw)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer closeStmt(stmt)
	for _, side := range []model.Side{model.Left, model.Right} {
		for i, p := range sess.Poses(side) {
			if _, err = stmt.ExecContext(ctx, sess.ID, string(side), i, p.Time,
				p.Position.X, p.Position.Y, p.Position.Z,
				p.Rotation.Imag, p.Rotation.Jmag, p.Rotation.Kmag, p.Rotation.Real); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// DeleteSession removes a session with its data and runs.
func (s *Store) DeleteSession(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()
	stmts := []string{
		`DELETE FROM run_attempts WHERE run_id IN (SELECT run_id FROM analysis_runs WHERE session_id = ?)`,
		`DELETE FROM analysis_runs WHERE session_id = ?`,
		`DELETE FROM poses WHERE session_id = ?`,
		`DELETE FROM presses WHERE session_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = fmt.Errorf("session %d: %w", id, ErrNotFound)
		return err
	}
	return tx.Commit()
}

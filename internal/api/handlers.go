package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/verte-zerg/keyscore/internal/analysis"
	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/monitoring"
	"github.com/verte-zerg/keyscore/internal/pianoroll"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/song"
	"github.com/verte-zerg/keyscore/internal/store"
)

// App holds the dependencies of the handlers.
type App struct {
	Store  *store.Store
	Songs  song.Dir
	Config model.AnalysisConfig
}

// errBadRequest marks malformed path or query parameters.
var errBadRequest = errors.New("bad request")

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func (app *App) SongsHandler(w http.ResponseWriter, r *http.Request) {
	names, err := app.Songs.Names()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]songJSON, 0, len(names))
	for _, name := range names {
		s, err := app.Songs.Score(name)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, songJSON{
			Name:      s.Name(),
			Tempo:     s.Tempo(),
			Beats:     s.TotalLengthBeats(),
			Seconds:   s.Duration(),
			NoteCount: s.NoteCount(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (app *App) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := app.Store.ListSessions(r.Context(), app.Config.Layout.MarkerPitch)
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []model.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (app *App) WindowHandler(w http.ResponseWriter, r *http.Request) {
	a, err := app.analyzer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := pathInt(r, "n")
	if err != nil {
		writeError(w, err)
		return
	}
	win, err := a.LocateAttemptWindow(n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWindowJSON(win))
}

func (app *App) ReportHandler(w http.ResponseWriter, r *http.Request) {
	a, err := app.analyzer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	indices, err := parseAttempts(r.URL.Query().Get("attempts"))
	if err != nil {
		writeError(w, err)
		return
	}
	if indices == nil {
		indices = a.AllAttempts()
	}
	report, err := a.Analyze(indices)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportJSON(report))
}

func (app *App) RunsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := app.Store.LoadSession(r.Context(), int64(id)); err != nil {
		writeError(w, err)
		return
	}
	runs, err := app.Store.ListRuns(r.Context(), int64(id))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON{
			RunID:     run.RunID,
			Song:      run.Song,
			Indices:   run.Indices,
			CreatedAt: run.CreatedAt,
			Report:    toReportJSON(run.Report),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (app *App) RollHandler(w http.ResponseWriter, r *http.Request) {
	a, err := app.analyzer(r)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := pathInt(r, "n")
	if err != nil {
		writeError(w, err)
		return
	}
	win, err := a.LocateAttemptWindow(n)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := pianoroll.New(a.Score(), a.Session(), a.Config().Layout, win)
	if err != nil {
		if errors.Is(err, pianoroll.ErrOpenWindow) {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := pianoroll.WritePNG(w, p, pianoroll.DefaultWidth, pianoroll.DefaultHeight); err != nil {
		monitoring.Logf("api: failed to write roll of attempt %d: %v", n, err)
	}
}

// analyzer loads the session of the {id} path parameter and the song named by
// the song query parameter, defaulting to the song the session was recorded for.
func (app *App) analyzer(r *http.Request) (*analysis.Analyzer, error) {
	id, err := pathInt(r, "id")
	if err != nil {
		return nil, err
	}
	sess, err := app.Store.LoadSession(r.Context(), int64(id))
	if err != nil {
		return nil, err
	}
	name := r.URL.Query().Get("song")
	if name == "" {
		name = sess.Song
	}
	score, err := app.Songs.Score(name)
	if err != nil {
		return nil, err
	}
	return analysis.NewAnalyzer(score, sess, app.Config)
}

func pathInt(r *http.Request, key string) (int, error) {
	raw := chi.URLParam(r, key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, key, raw)
	}
	return n, nil
}

// parseAttempts reads a comma separated index list; empty means all attempts.
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
			return nil, fmt.Errorf("%w: invalid attempt %q", errBadRequest, part)
		}
		out = append(out, n)
	}
	return out, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), analysis.IsPrecondition(err):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, song.ErrUnknownSong):
		return http.StatusNotFound
	case errors.Is(err, recording.ErrNoMarkers):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		monitoring.Logf("api: %v", err)
	}
	writeJSON(w, status, errorJSON{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("api: failed to encode response: %v", err)
	}
}

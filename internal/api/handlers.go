package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/KarimEG45/CoranBuilding/internal/analysis"
	"github.com/KarimEG45/CoranBuilding/internal/history"
	"github.com/KarimEG45/CoranBuilding/internal/observe"
	"github.com/KarimEG45/CoranBuilding/internal/tajweed"
)

// handleAnalyze handles POST /v1/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseUpload(w, r, analyzeForm)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rep, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.discard(r, req.AudioPath)
		s.fail(w, r, analysisError(err))
		return
	}
	rep.AudioURL = audioURL(req.AudioPath)
	writeJSON(w, http.StatusOK, rep)
}

// handleValidate handles POST /v1/validate.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseUpload(w, r, validateForm)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := s.analyzer.Validate(r.Context(), req)
	if err != nil {
		s.discard(r, req.AudioPath)
		s.fail(w, r, analysisError(err))
		return
	}
	v.AudioURL = audioURL(req.AudioPath)
	writeJSON(w, http.StatusOK, v)
}

// historyEntry is one item of the history list.
type historyEntry struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	Score     int       `json:"score"`
	Feedback  string    `json:"feedback"`
}

// handleHistory handles GET /v1/history/{page}?user_id=. Anonymous callers
// get an empty list.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		s.fail(w, r, badRequest("page must be an integer"))
		return
	}
	user := r.URL.Query().Get("user_id")

	out := []historyEntry{}
	if s.history == nil || user == "" {
		writeJSON(w, http.StatusOK, out)
		return
	}

	recs, err := s.history.List(r.Context(), user, page, history.DefaultLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for _, rec := range recs {
		out = append(out, historyEntry{
			ID:        rec.ID,
			URL:       audioURL(rec.FilePath),
			Timestamp: rec.CreatedAt,
			Score:     rec.Score,
			Feedback:  rec.Feedback,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDelete handles DELETE /v1/recordings/{id}?user_id=.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.fail(w, r, badRequest("id must be an integer"))
		return
	}
	user := r.URL.Query().Get("user_id")
	if user == "" {
		s.fail(w, r, badRequest("user_id is required"))
		return
	}
	if s.history == nil {
		s.fail(w, r, history.ErrNotFound)
		return
	}

	rec, err := s.history.Delete(r.Context(), id, user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.removeRecording(rec.FilePath); err != nil {
		observe.Logger(r.Context()).Warn("api: recording file not removed", "id", id, "path", rec.FilePath, "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleRules handles GET /v1/rules?text=&level=. The level defaults to
// [tajweed.LevelExcellence] so every rule family is shown.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("text")
	if text == "" {
		s.fail(w, r, badRequest("text is required"))
		return
	}
	level := tajweed.LevelExcellence
	if v := q.Get("level"); v != "" {
		var err error
		if level, err = tajweed.ParseLevel(v); err != nil {
			s.fail(w, r, badRequest("level: %v", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, analysis.Rules(text, level))
}

// analysisError maps analyzer errors to HTTP statuses.
func analysisError(err error) error {
	switch {
	case errors.Is(err, analysis.ErrReferenceNotFound):
		return &httpError{status: http.StatusNotFound, msg: "Texte Coranique introuvable"}
	case errors.Is(err, analysis.ErrTranscription):
		return &httpError{status: http.StatusBadGateway, msg: "transcription failed"}
	case errors.Is(err, analysis.ErrNoAudio):
		return badRequest("empty recording")
	}
	return err
}

// fail writes err as a JSON error. Unclassified errors answer 500 without
// leaking their text.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	var he *httpError
	switch {
	case errors.As(err, &he):
		status, msg = he.status, he.msg
	case errors.Is(err, history.ErrNotFound):
		status, msg = http.StatusNotFound, "Enregistrement introuvable"
	case errors.Is(err, history.ErrForbidden):
		status, msg = http.StatusForbidden, "Non autorisé"
	}

	log := observe.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("api: request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		log.Debug("api: request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// discard removes the upload of a failed analysis; no history row refers
// to it.
func (s *Server) discard(r *http.Request, path string) {
	if err := s.removeRecording(path); err != nil {
		observe.Logger(r.Context()).Warn("api: upload not removed", "path", path, "err", err)
	}
}

// writeJSON encodes v before touching the response, so a value that cannot
// be marshalled becomes a 500 instead of a truncated body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("api: encode response", "error", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

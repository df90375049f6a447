package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/KarimEG45/CoranBuilding/internal/analysis"
	"github.com/KarimEG45/CoranBuilding/internal/tajweed"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

// httpError carries the status a handler should answer with.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...any) *httpError {
	return &httpError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// form names the multipart fields of an upload endpoint.
type form struct {
	page   string
	audio  string
	prefix string
}

var (
	analyzeForm  = form{page: "page_id", audio: "audio", prefix: "analysis"}
	validateForm = form{page: "page", audio: "file", prefix: "page"}
)

// parseUpload reads a recording upload into an analysis request. The audio
// is stored under the recordings directory when one is configured; the
// caller owns the stored file.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, f form) (analysis.Request, error) {
	var req analysis.Request

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return req, &httpError{status: http.StatusRequestEntityTooLarge, msg: fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit)}
		}
		return req, badRequest("invalid multipart form: %v", err)
	}

	page, err := strconv.Atoi(r.FormValue(f.page))
	if err != nil {
		return req, badRequest("%s must be an integer", f.page)
	}
	req.Page = page

	if v := r.FormValue("difficulty_level"); v != "" {
		if req.Level, err = tajweed.ParseLevel(v); err != nil {
			return req, badRequest("difficulty_level: %v", err)
		}
	}
	req.UserID = r.FormValue("user_id")

	file, hdr, err := r.FormFile(f.audio)
	if err != nil {
		return req, badRequest("%s file is required", f.audio)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return req, badRequest("read %s: %v", f.audio, err)
	}
	if len(data) == 0 {
		return req, badRequest("%s file is empty", f.audio)
	}
	req.Audio = stt.Audio{Data: data, Filename: hdr.Filename}

	if s.recordingsDir != "" {
		path, err := s.store(f.prefix, page, hdr.Filename, data)
		if err != nil {
			return req, &httpError{status: http.StatusInternalServerError, msg: "failed to store recording"}
		}
		req.AudioPath = path
	}
	return req, nil
}

// store writes data to a new file of the recordings directory.
func (s *Server) store(prefix string, page int, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.recordingsDir, 0o755); err != nil {
		return "", fmt.Errorf("api: create recordings dir: %w", err)
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".webm"
	}
	name := fmt.Sprintf("%s_p%03d_%s%s", prefix, page, uuid.NewString(), ext)
	path := filepath.Join(s.recordingsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("api: write recording: %w", err)
	}
	return path, nil
}

// removeRecording deletes a stored upload. Only the base name of path is
// used, so history rows cannot point outside the recordings directory.
func (s *Server) removeRecording(path string) error {
	if s.recordingsDir == "" || path == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.recordingsDir, filepath.Base(path)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// audioURL is the public URL of a stored upload, "" when none was stored.
func audioURL(path string) string {
	if path == "" {
		return ""
	}
	return "/recordings/" + filepath.Base(path)
}

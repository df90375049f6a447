// Package api serves the recitation analyzer over HTTP:
//
//	POST   /v1/analyze             word-by-word analysis of a recorded page
//	POST   /v1/validate            quick pass/fail check of a recorded page
//	GET    /v1/history/{page}      last recordings of a user for a page
//	DELETE /v1/recordings/{id}     deletes a recording and its audio file
//	GET    /v1/rules               Tajweed rules of a text, without audio
//	GET    /recordings/{file}      stored audio files
//
// Uploads are multipart forms. Errors are JSON objects {"error": "..."}.
package api

import (
	"context"
	"net/http"

	"github.com/KarimEG45/CoranBuilding/internal/analysis"
	"github.com/KarimEG45/CoranBuilding/internal/history"
	"github.com/KarimEG45/CoranBuilding/internal/observe"
)

// DefaultMaxUploadSize bounds a multipart upload.
const DefaultMaxUploadSize = 32 << 20

// Analyzer runs analyses. *analysis.Analyzer satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error)
	Validate(ctx context.Context, req analysis.Request) (*analysis.Verdict, error)
}

// Option configures a [Server].
type Option func(*Server)

// WithHistory serves the history endpoints from store. Without a store
// history lists are empty and deletions answer 404.
func WithHistory(store history.Store) Option {
	return func(s *Server) { s.history = store }
}

// WithRecordingsDir keeps uploads in dir and serves them under /recordings/.
// Without a directory uploads are analysed in memory only.
func WithRecordingsDir(dir string) Option {
	return func(s *Server) { s.recordingsDir = dir }
}

// WithMaxUploadSize overrides [DefaultMaxUploadSize].
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithMetrics records HTTP metrics on m. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Server holds the HTTP handlers. It is safe for concurrent use.
type Server struct {
	analyzer      Analyzer
	history       history.Store
	recordingsDir string
	maxUpload     int64
	metrics       *observe.Metrics
}

// New creates a Server backed by a.
func New(a Analyzer, opts ...Option) *Server {
	s := &Server{
		analyzer:  a,
		maxUpload: DefaultMaxUploadSize,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routes wrapped in the observe middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/validate", s.handleValidate)
	mux.HandleFunc("GET /v1/history/{page}", s.handleHistory)
	mux.HandleFunc("DELETE /v1/recordings/{id}", s.handleDelete)
	mux.HandleFunc("GET /v1/rules", s.handleRules)
	if s.recordingsDir != "" {
		mux.Handle("GET /recordings/", http.StripPrefix("/recordings/", http.FileServer(http.Dir(s.recordingsDir))))
	}
	return observe.Middleware(s.metrics)(mux)
}

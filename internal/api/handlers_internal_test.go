package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		v          any
		wantStatus int
		wantKey    string
	}{
		{"encodable", http.StatusOK, map[string]float64{"score": 0.75}, http.StatusOK, "score"},
		{"NaN confidence", http.StatusOK, map[string]float64{"confidence": math.NaN()}, http.StatusInternalServerError, "error"},
		{"infinite score", http.StatusCreated, struct{ Score float64 }{math.Inf(1)}, http.StatusInternalServerError, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			writeJSON(rec, tt.status, tt.v)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type: got %q", ct)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v (%q)", err, rec.Body.String())
			}
			if _, ok := body[tt.wantKey]; !ok {
				t.Errorf("body %v: missing key %q", body, tt.wantKey)
			}
		})
	}
}

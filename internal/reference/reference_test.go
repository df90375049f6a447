package reference_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KarimEG45/CoranBuilding/internal/reference"
	"github.com/KarimEG45/CoranBuilding/internal/resilience"
)

const page1JSON = `{
  "code": 200,
  "status": "OK",
  "data": {
    "number": 1,
    "ayahs": [
      {"number": 1, "text": "بِسْمِ ٱللَّهِ ٱلرَّحْمَـٰنِ ٱلرَّحِيمِ"},
      {"number": 2, "text": "ٱلْحَمْدُ لِلَّهِ رَبِّ ٱلْعَـٰلَمِينَ"}
    ]
  }
}`

func TestAlQuran_Text(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(page1JSON))
	}))
	defer srv.Close()

	a := reference.NewAlQuran(reference.WithBaseURL(srv.URL + "/v1/"))
	got, err := a.Text(context.Background(), 1)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	want := "بِسْمِ ٱللَّهِ ٱلرَّحْمَـٰنِ ٱلرَّحِيمِ ٱلْحَمْدُ لِلَّهِ رَبِّ ٱلْعَـٰلَمِينَ"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if gotPath != "/v1/page/1/quran-uthmani" {
		t.Errorf("path: got %q, want /v1/page/1/quran-uthmani", gotPath)
	}
}

func TestAlQuran_Edition(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(page1JSON))
	}))
	defer srv.Close()

	a := reference.NewAlQuran(reference.WithBaseURL(srv.URL), reference.WithEdition("quran-simple"))
	if _, err := a.Text(context.Background(), 42); err != nil {
		t.Fatalf("Text: %v", err)
	}
	if gotPath != "/page/42/quran-simple" {
		t.Errorf("path: got %q", gotPath)
	}
}

func TestAlQuran_NotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		page    int
		wantReq bool
	}{
		{name: "404", status: http.StatusNotFound, body: `{"code":404}`, page: 3, wantReq: true},
		{name: "no ayahs", status: http.StatusOK, body: `{"code":200,"data":{"ayahs":[]}}`, page: 3, wantReq: true},
		{name: "page zero", page: 0},
		{name: "page 605", page: 605},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var requests atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := reference.NewAlQuran(reference.WithBaseURL(srv.URL)).Text(context.Background(), tt.page)
			if !errors.Is(err, reference.ErrNotFound) {
				t.Errorf("got %v, want ErrNotFound", err)
			}
			if got := requests.Load() > 0; got != tt.wantReq {
				t.Errorf("request made: got %v, want %v", got, tt.wantReq)
			}
		})
	}
}

func TestAlQuran_BadJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := reference.NewAlQuran(reference.WithBaseURL(srv.URL)).Text(context.Background(), 1)
	if err == nil || errors.Is(err, reference.ErrNotFound) {
		t.Errorf("got %v, want a decode error", err)
	}
}

func TestAlQuran_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	a := reference.NewAlQuran(reference.WithBaseURL(srv.URL), reference.WithTimeout(50*time.Millisecond))
	if _, err := a.Text(context.Background(), 1); err == nil {
		t.Fatal("expected timeout error")
	}
}

func writePage(t *testing.T, dir string, page int, text string) {
	t.Helper()
	p := reference.NewDir(dir).Path(page)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

func TestDir_Text(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePage(t, dir, 7, "الم\nذلك الكتاب  لا ريب فيه\n")
	d := reference.NewDir(dir)

	if got := filepath.Base(d.Path(7)); got != "007.txt" {
		t.Errorf("Path(7): got %q, want 007.txt", got)
	}
	got, err := d.Text(context.Background(), 7)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "الم ذلك الكتاب لا ريب فيه" {
		t.Errorf("got %q", got)
	}
	if err := d.Check(context.Background()); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestDir_NotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePage(t, dir, 2, "   \n")
	d := reference.NewDir(dir)

	for _, page := range []int{0, 1, 2, 700} {
		if _, err := d.Text(context.Background(), page); !errors.Is(err, reference.ErrNotFound) {
			t.Errorf("page %d: got %v, want ErrNotFound", page, err)
		}
	}
	if err := reference.NewDir(filepath.Join(dir, "missing")).Check(context.Background()); err == nil {
		t.Error("Check on missing directory: expected error")
	}
}

type stubProvider struct {
	text  string
	err   error
	calls atomic.Int32
}

func (s *stubProvider) Text(context.Context, int) (string, error) {
	s.calls.Add(1)
	return s.text, s.err
}

func TestFallback(t *testing.T) {
	t.Parallel()

	t.Run("primary ok", func(t *testing.T) {
		t.Parallel()
		primary := &stubProvider{text: "a"}
		secondary := &stubProvider{text: "b"}
		f := reference.NewFallback(primary, "alquran", resilience.CircuitBreakerConfig{})
		f.AddFallback("dir", secondary)

		got, err := f.Text(context.Background(), 1)
		if err != nil || got != "a" {
			t.Errorf("got (%q, %v), want (a, nil)", got, err)
		}
		if secondary.calls.Load() != 0 {
			t.Error("secondary called although primary succeeded")
		}
	})

	t.Run("primary down", func(t *testing.T) {
		t.Parallel()
		f := reference.NewFallback(&stubProvider{err: errors.New("dial tcp: refused")}, "alquran", resilience.CircuitBreakerConfig{})
		f.AddFallback("dir", &stubProvider{text: "b"})

		got, err := f.Text(context.Background(), 1)
		if err != nil || got != "b" {
			t.Errorf("got (%q, %v), want (b, nil)", got, err)
		}
		if names := f.Names(); len(names) != 2 || names[1] != "dir" {
			t.Errorf("Names: got %v", names)
		}
	})

	t.Run("missing everywhere", func(t *testing.T) {
		t.Parallel()
		f := reference.NewFallback(&stubProvider{err: reference.ErrNotFound}, "alquran", resilience.CircuitBreakerConfig{})
		f.AddFallback("dir", &stubProvider{err: reference.ErrNotFound})

		_, err := f.Text(context.Background(), 1)
		if !errors.Is(err, reference.ErrNotFound) || !errors.Is(err, resilience.ErrAllFailed) {
			t.Errorf("got %v, want ErrNotFound and ErrAllFailed", err)
		}
	})

	t.Run("not found does not trip breaker", func(t *testing.T) {
		t.Parallel()
		primary := &stubProvider{err: reference.ErrNotFound}
		f := reference.NewFallback(primary, "alquran", resilience.CircuitBreakerConfig{MaxFailures: 1})
		for range 3 {
			f.Text(context.Background(), 1)
		}
		if got := primary.calls.Load(); got != 3 {
			t.Errorf("primary calls: got %d, want 3", got)
		}
	})

	t.Run("out of range skips providers", func(t *testing.T) {
		t.Parallel()
		primary := &stubProvider{text: "a"}
		f := reference.NewFallback(primary, "alquran", resilience.CircuitBreakerConfig{})
		if _, err := f.Text(context.Background(), 605); !errors.Is(err, reference.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
		if primary.calls.Load() != 0 {
			t.Error("provider called for out-of-range page")
		}
	})
}

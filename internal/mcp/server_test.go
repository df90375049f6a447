package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/KarimEG45/CoranBuilding/internal/analysis"
	"github.com/KarimEG45/CoranBuilding/internal/mcp"
	"github.com/KarimEG45/CoranBuilding/internal/tajweed"
)

type fakeAnalyzer struct {
	mu   sync.Mutex
	reqs []analysis.Request
	err  error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (*analysis.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.Report{
		Page:       req.Page,
		Level:      tajweed.LevelFundamental,
		Overall:    tajweed.NewOverall(3, 4),
		Disclaimer: analysis.Disclaimer,
	}, nil
}

func connect(t *testing.T, a mcp.Analyzer) *sdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	srv, err := mcp.NewServer(a, "test")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	st, ct := sdk.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, st)
	if err != nil {
		t.Fatalf("server Connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func call(t *testing.T, cs *sdk.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool %s: %v", name, err)
	}
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*sdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String(), res.IsError
}

func TestNewServer_RequiresAnalyzer(t *testing.T) {
	t.Parallel()
	if _, err := mcp.NewServer(nil, "test"); err == nil {
		t.Error("expected error for nil analyzer")
	}
}

func TestListTools(t *testing.T) {
	t.Parallel()
	cs := connect(t, &fakeAnalyzer{})

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"tajweed_rules", "analyze_recitation"} {
		if !names[want] {
			t.Errorf("tool %q not listed; got %v", want, names)
		}
	}
}

func TestTajweedRules(t *testing.T) {
	t.Parallel()
	cs := connect(t, &fakeAnalyzer{})

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		wantRules int
	}{
		{name: "default level", args: map[string]any{"text": "أَحَدٌ"}, wantRules: 2},
		{name: "level 2", args: map[string]any{"text": "أَحَدٌ", "level": 2}, wantRules: 2},
		{name: "empty text", args: map[string]any{"text": ""}, wantError: true},
		{name: "bad level", args: map[string]any{"text": "أَحَدٌ", "level": 7}, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, cs, "tajweed_rules", tt.args)
			if isErr != tt.wantError {
				t.Fatalf("IsError: got %v, want %v (%s)", isErr, tt.wantError, text)
			}
			if tt.wantError {
				return
			}
			var words []struct {
				Word  string           `json:"word"`
				Rules []map[string]any `json:"rules"`
			}
			if err := json.Unmarshal([]byte(text), &words); err != nil {
				t.Fatalf("decode %q: %v", text, err)
			}
			if len(words) != 1 || len(words[0].Rules) != tt.wantRules {
				t.Errorf("got %+v, want one word with %d rules", words, tt.wantRules)
			}
		})
	}
}

func TestAnalyzeRecitation(t *testing.T) {
	t.Parallel()
	fa := &fakeAnalyzer{}
	cs := connect(t, fa)

	path := filepath.Join(t.TempDir(), "page1.webm")
	if err := os.WriteFile(path, []byte("webm"), 0o644); err != nil {
		t.Fatal(err)
	}

	text, isErr := call(t, cs, "analyze_recitation", map[string]any{
		"page":       1,
		"level":      2,
		"audio_path": path,
		"user_id":    "u1",
	})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var rep map[string]any
	if err := json.Unmarshal([]byte(text), &rep); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	if rep["overall_score"] != 0.75 {
		t.Errorf("overall_score: got %v, want 0.75", rep["overall_score"])
	}

	if len(fa.reqs) != 1 {
		t.Fatalf("analyzer calls: got %d, want 1", len(fa.reqs))
	}
	req := fa.reqs[0]
	if req.Page != 1 || req.Level != tajweed.LevelFundamental || req.UserID != "u1" || req.AudioPath != path {
		t.Errorf("request: got %+v", req)
	}
	if string(req.Audio.Data) != "webm" || req.Audio.Filename != "page1.webm" {
		t.Errorf("audio: got %q (%s)", req.Audio.Data, req.Audio.Filename)
	}
}

func TestAnalyzeRecitation_Errors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rec.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    map[string]any
		err     error
		wantMsg string
	}{
		{name: "missing file", args: map[string]any{"page": 1, "audio_path": filepath.Join(t.TempDir(), "none.wav")}, wantMsg: "read recording"},
		{name: "no path", args: map[string]any{"page": 1, "audio_path": ""}, wantMsg: "audio_path"},
		{name: "bad level", args: map[string]any{"page": 1, "level": 4, "audio_path": path}, wantMsg: "level"},
		{name: "reference missing", args: map[string]any{"page": 700, "audio_path": path}, err: analysis.ErrReferenceNotFound, wantMsg: "reference text not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cs := connect(t, &fakeAnalyzer{err: tt.err})
			text, isErr := call(t, cs, "analyze_recitation", tt.args)
			if !isErr {
				t.Fatalf("expected tool error, got %s", text)
			}
			if !strings.Contains(text, tt.wantMsg) {
				t.Errorf("error text %q does not mention %q", text, tt.wantMsg)
			}
		})
	}
}


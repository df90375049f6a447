package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/KarimEG45/CoranBuilding/internal/analysis"
	"github.com/KarimEG45/CoranBuilding/internal/tajweed"
	"github.com/KarimEG45/CoranBuilding/pkg/provider/stt"
)

// RulesArgs is the input of the "tajweed_rules" tool.
type RulesArgs struct {
	Text  string `json:"text" jsonschema:"diacritized Arabic text"`
	Level int    `json:"level,omitempty" jsonschema:"difficulty level 1 to 3; Madd is only reported at level 3 (default 3)"`
}

// AnalyzeArgs is the input of the "analyze_recitation" tool.
type AnalyzeArgs struct {
	Page      int    `json:"page" jsonschema:"Mushaf page number, 1 to 604"`
	Level     int    `json:"level,omitempty" jsonschema:"difficulty level 1 to 3 (default: server setting)"`
	AudioPath string `json:"audio_path" jsonschema:"path of the recording on the server (WAV, WebM, Ogg or MP3)"`
	UserID    string `json:"user_id,omitempty" jsonschema:"owner of the history entry (default: guest)"`
}

// handleRules implements the "tajweed_rules" tool.
func (s *Server) handleRules(_ context.Context, _ *sdk.CallToolRequest, args RulesArgs) (*sdk.CallToolResult, any, error) {
	if args.Text == "" {
		return nil, nil, fmt.Errorf("tajweed_rules: text must not be empty")
	}
	level := tajweed.LevelExcellence
	if args.Level != 0 {
		level = tajweed.Level(args.Level)
		if !level.Valid() {
			return nil, nil, fmt.Errorf("tajweed_rules: level %d out of range 1..3", args.Level)
		}
	}
	return textResult(analysis.Rules(args.Text, level))
}

// handleAnalyze implements the "analyze_recitation" tool.
func (s *Server) handleAnalyze(ctx context.Context, _ *sdk.CallToolRequest, args AnalyzeArgs) (*sdk.CallToolResult, any, error) {
	level := tajweed.Level(args.Level)
	if args.Level != 0 && !level.Valid() {
		return nil, nil, fmt.Errorf("analyze_recitation: level %d out of range 1..3", args.Level)
	}
	if args.AudioPath == "" {
		return nil, nil, fmt.Errorf("analyze_recitation: audio_path must not be empty")
	}
	data, err := os.ReadFile(args.AudioPath)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze_recitation: read recording: %w", err)
	}

	rep, err := s.analyzer.Analyze(ctx, analysis.Request{
		Page:      args.Page,
		Level:     level,
		UserID:    args.UserID,
		Audio:     stt.Audio{Data: data, Filename: filepath.Base(args.AudioPath)},
		AudioPath: args.AudioPath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("analyze_recitation: %w", err)
	}
	return textResult(rep)
}

func textResult(v any) (*sdk.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: string(data)}},
	}, nil, nil
}

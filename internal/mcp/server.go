// Package mcp exposes the recitation analyzer as Model Context Protocol
// tools, served over stdio with the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// Two tools are registered:
//   - "tajweed_rules": the Tajweed rules of every word of a text.
//   - "analyze_recitation": a full analysis of a recording on disk.
//
// Tool results are JSON documents carried as text content. Failures are
// reported as tool errors, never as protocol errors.
package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/KarimEG45/CoranBuilding/internal/analysis"
)

// ServerName identifies the server to MCP clients.
const ServerName = "coranbuilding"

// Analyzer runs analyses. *analysis.Analyzer satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error)
}

// Server wraps an SDK server with the analyzer tools registered.
type Server struct {
	analyzer Analyzer
	server   *sdk.Server
}

// NewServer creates a Server. version is reported to clients.
func NewServer(a Analyzer, version string) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("mcp: analyzer is required")
	}
	s := &Server{
		analyzer: a,
		server: sdk.NewServer(&sdk.Implementation{
			Name:    ServerName,
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves one client over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Connect serves one client over t. The session ends when the client
// disconnects.
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tajweed_rules",
		Description: "List the Tajweed rules (Qalqalah, Noon/Meem Sakinah, Tanween, Ghunnah, Madd) carried by each word of a diacritized Arabic text.",
	}, s.handleRules)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "analyze_recitation",
		Description: "Transcribe a recorded recitation of a Mushaf page and score it word by word against the page text and its Tajweed rules.",
	}, s.handleAnalyze)
}

// Package mcpserver exposes the minutes pipeline as MCP tools so editor agents
// can render flowcharts, refine minutes and plan chunked uploads.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	"github.com/johnquangdev/meeting-minutes/pkg/audio"
	"github.com/johnquangdev/meeting-minutes/pkg/flowchart"
)

// Refiner applies an edit instruction to existing minutes
type Refiner interface {
	RefineMinutes(ctx context.Context, existing *entities.Minutes, instruction, language, apiKey string) (*entities.Minutes, error)
}

// Server wraps an MCP server bound to the pipeline
type Server struct {
	mcp           *server.MCPServer
	refiner       Refiner
	defaultAPIKey string
	chunkSize     int64
	logger        *zap.Logger
}

// New registers the tools. chunkSize is the default for split_plan.
func New(refiner Refiner, defaultAPIKey string, chunkSize int64, logger *zap.Logger) *Server {
	if chunkSize <= 0 {
		chunkSize = audio.DefaultChunkSize
	}
	s := &Server{
		mcp:           server.NewMCPServer("Meeting Minutes", "1.0.0", server.WithToolCapabilities(false)),
		refiner:       refiner,
		defaultAPIKey: defaultAPIKey,
		chunkSize:     chunkSize,
		logger:        logger,
	}
	s.registerTools()
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("render_flowchart",
		mcp.WithDescription("Render a {nodes, edges} process graph as a Mermaid flowchart"),
		mcp.WithString("graph", mcp.Required(), mcp.Description(`Graph JSON, e.g. {"nodes":[{"id":"a","label":"Start"}],"edges":[]}`)),
	), s.handleRenderFlowchart)

	s.mcp.AddTool(mcp.NewTool("refine_minutes",
		mcp.WithDescription("Apply a natural-language edit to existing meeting minutes"),
		mcp.WithString("minutes", mcp.Required(), mcp.Description("Minutes JSON as produced by the pipeline")),
		mcp.WithString("instruction", mcp.Required(), mcp.Description("What to change")),
		mcp.WithString("language", mcp.Description("Output language code, default en")),
		mcp.WithString("api_key", mcp.Description("Model API key; the server key is used when omitted")),
	), s.handleRefineMinutes)

	s.mcp.AddTool(mcp.NewTool("split_plan",
		mcp.WithDescription("Show how a recording of the given size would be chunked"),
		mcp.WithNumber("size", mcp.Required(), mcp.Description("Recording size in bytes")),
		mcp.WithNumber("chunk_size", mcp.Description("Maximum chunk size in bytes")),
	), s.handleSplitPlan)
}

func (s *Server) handleRenderFlowchart(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("graph")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var g flowchart.Graph
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid graph: %v", err)), nil
	}
	return mcp.NewToolResultText(flowchart.Render(g)), nil
}

func (s *Server) handleRefineMinutes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("minutes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	instruction, err := req.RequireString("instruction")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(instruction) == "" {
		return mcp.NewToolResultError("instruction is empty"), nil
	}
	language := req.GetString("language", "en")
	apiKey := req.GetString("api_key", s.defaultAPIKey)
	if apiKey == "" {
		return mcp.NewToolResultError("no api key configured"), nil
	}

	var existing entities.Minutes
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid minutes: %v", err)), nil
	}

	refined, err := s.refiner.RefineMinutes(ctx, &existing, instruction, language, apiKey)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("⚠️ MCP refine failed", zap.Error(err))
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := json.MarshalIndent(refined, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) handleSplitPlan(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	size, err := req.RequireFloat("size")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chunkSize := int64(req.GetFloat("chunk_size", float64(s.chunkSize)))

	chunks, err := audio.Split(int64(size), chunkSize)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d chunk(s) of at most %d bytes\n", len(chunks), chunkSize)
	for i, c := range chunks {
		fmt.Fprintf(&b, "%d: [%d, %d) %d bytes\n", i+1, c.Start, c.End, c.Len())
	}
	return mcp.NewToolResultText(b.String()), nil
}

package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
)

type stubRefiner struct {
	gotKey         string
	gotLanguage    string
	gotInstruction string
	err            error
}

func (r *stubRefiner) RefineMinutes(_ context.Context, existing *entities.Minutes, instruction, language, apiKey string) (*entities.Minutes, error) {
	r.gotKey, r.gotLanguage, r.gotInstruction = apiKey, language, instruction
	if r.err != nil {
		return nil, r.err
	}
	out := *existing
	out.ExecutiveSummary = existing.ExecutiveSummary + " (refined)"
	return &out, nil
}

func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var (
		r   *mcp.CallToolResult
		err error
	)
	switch name {
	case "render_flowchart":
		r, err = s.handleRenderFlowchart(context.Background(), req)
	case "refine_minutes":
		r, err = s.handleRefineMinutes(context.Background(), req)
	case "split_plan":
		r, err = s.handleSplitPlan(context.Background(), req)
	default:
		t.Fatalf("unknown tool %s", name)
	}
	if err != nil {
		t.Fatalf("%s returned error: %v", name, err)
	}
	return r
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty result")
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", r.Content[0])
	}
	return tc.Text
}

func TestRenderFlowchart(t *testing.T) {
	s := New(&stubRefiner{}, "", 0, nil)

	r := callTool(t, s, "render_flowchart", map[string]interface{}{
		"graph": `{"nodes":[{"id":"a","label":"Start"},{"id":"b","label":"Ship it?"}],"edges":[{"from":"a","to":"b"}]}`,
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, r))
	}
	text := resultText(t, r)
	if !strings.HasPrefix(text, "graph TD") || !strings.Contains(text, "a --> b") {
		t.Fatalf("unexpected diagram:\n%s", text)
	}

	r = callTool(t, s, "render_flowchart", map[string]interface{}{"graph": "not json"})
	if !r.IsError {
		t.Fatal("expected error for malformed graph")
	}

	r = callTool(t, s, "render_flowchart", map[string]interface{}{})
	if !r.IsError {
		t.Fatal("expected error for missing graph")
	}
}

func TestRefineMinutes(t *testing.T) {
	ref := &stubRefiner{}
	s := New(ref, "server-key", 0, nil)

	minutes, _ := json.Marshal(entities.Minutes{ExecutiveSummary: "We met"})
	r := callTool(t, s, "refine_minutes", map[string]interface{}{
		"minutes":     string(minutes),
		"instruction": "shorter",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, r))
	}
	if ref.gotKey != "server-key" || ref.gotLanguage != "en" || ref.gotInstruction != "shorter" {
		t.Fatalf("unexpected call: key=%q lang=%q instruction=%q", ref.gotKey, ref.gotLanguage, ref.gotInstruction)
	}
	var out entities.Minutes
	if err := json.Unmarshal([]byte(resultText(t, r)), &out); err != nil {
		t.Fatalf("result is not minutes JSON: %v", err)
	}
	if out.ExecutiveSummary != "We met (refined)" {
		t.Fatalf("unexpected summary %q", out.ExecutiveSummary)
	}

	r = callTool(t, s, "refine_minutes", map[string]interface{}{
		"minutes":     string(minutes),
		"instruction": "translate",
		"language":    "vi",
		"api_key":     "user-key",
	})
	if r.IsError || ref.gotKey != "user-key" || ref.gotLanguage != "vi" {
		t.Fatalf("request key and language should win: key=%q lang=%q", ref.gotKey, ref.gotLanguage)
	}
}

func TestRefineMinutes_Errors(t *testing.T) {
	minutes, _ := json.Marshal(entities.Minutes{ExecutiveSummary: "We met"})

	tests := []struct {
		name    string
		refiner *stubRefiner
		key     string
		args    map[string]interface{}
	}{
		{"missing minutes", &stubRefiner{}, "k", map[string]interface{}{"instruction": "x"}},
		{"blank instruction", &stubRefiner{}, "k", map[string]interface{}{"minutes": string(minutes), "instruction": "  "}},
		{"no key", &stubRefiner{}, "", map[string]interface{}{"minutes": string(minutes), "instruction": "x"}},
		{"bad minutes", &stubRefiner{}, "k", map[string]interface{}{"minutes": "[", "instruction": "x"}},
		{"remote failure", &stubRefiner{err: errors.New("quota")}, "k", map[string]interface{}{"minutes": string(minutes), "instruction": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.refiner, tt.key, 0, nil)
			if r := callTool(t, s, "refine_minutes", tt.args); !r.IsError {
				t.Fatalf("expected error result, got %s", resultText(t, r))
			}
		})
	}
}

func TestSplitPlan(t *testing.T) {
	s := New(&stubRefiner{}, "", 10, nil)

	r := callTool(t, s, "split_plan", map[string]interface{}{"size": float64(25)})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, r))
	}
	text := resultText(t, r)
	if !strings.HasPrefix(text, "3 chunk(s) of at most 10 bytes") || !strings.Contains(text, "3: [20, 25) 5 bytes") {
		t.Fatalf("unexpected plan:\n%s", text)
	}

	r = callTool(t, s, "split_plan", map[string]interface{}{"size": float64(25), "chunk_size": float64(25)})
	if !strings.HasPrefix(resultText(t, r), "1 chunk(s)") {
		t.Fatalf("unexpected plan:\n%s", resultText(t, r))
	}

	for _, args := range []map[string]interface{}{
		{"size": float64(0)},
		{"size": float64(10), "chunk_size": float64(0)},
		{},
	} {
		if r := callTool(t, s, "split_plan", args); !r.IsError {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestNew_RegistersTools(t *testing.T) {
	s := New(&stubRefiner{}, "", 0, nil)
	if s.MCPServer() == nil {
		t.Fatal("nil MCP server")
	}
	if s.chunkSize <= 0 {
		t.Fatal("default chunk size not applied")
	}
}

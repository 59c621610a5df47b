package minutes

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	ucerrors "github.com/johnquangdev/meeting-minutes/internal/usecase/errors"
)

// Extraction is the decoded reply of a structured extraction call
type Extraction struct {
	ExecutiveSummary  string                   `json:"executiveSummary"`
	Decisions         []entities.Decision      `json:"decisions"`
	ActionItems       []entities.ActionItem    `json:"actionItems"`
	DiscussionSummary string                   `json:"discussionSummary"`
	FullTranscript    string                   `json:"fullTranscript"`
	Flowchart         json.RawMessage          `json:"flowchart"`
	Graph             *entities.FlowchartGraph `json:"-"`
}

// Minutes converts the extraction, leaving Flowchart to the caller
func (e *Extraction) Minutes() *entities.Minutes {
	m := &entities.Minutes{
		ExecutiveSummary:  e.ExecutiveSummary,
		Decisions:         e.Decisions,
		ActionItems:       e.ActionItems,
		DiscussionSummary: e.DiscussionSummary,
		FullTranscript:    e.FullTranscript,
	}
	m.Normalize()
	return m
}

// UnwrapJSON strips markdown fences or surrounding prose from a model reply
// and returns the JSON object inside it
func UnwrapJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		// language tag on the fence line
		if nl := strings.IndexByte(content, '\n'); nl != -1 && !strings.ContainsAny(content[:nl], "{[") {
			content = content[nl+1:]
		}
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	if strings.HasPrefix(content, "{") && strings.HasSuffix(content, "}") {
		return content
	}

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start == -1 || end <= start {
		return content
	}
	return content[start : end+1]
}

// ParseExtraction decodes a minutes reply. Any failure wraps
// ErrMalformedResponse.
func ParseExtraction(raw string) (*Extraction, error) {
	body := UnwrapJSON(raw)

	var ext Extraction
	if err := json.Unmarshal([]byte(body), &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", ucerrors.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(ext.ExecutiveSummary) == "" {
		return nil, fmt.Errorf("%w: missing executiveSummary", ucerrors.ErrMalformedResponse)
	}

	ext.Graph = decodeGraph(ext.Flowchart)
	return &ext, nil
}

// ParseGraph decodes a reply holding only a flowchart
func ParseGraph(raw string) (*entities.FlowchartGraph, error) {
	var wrapper struct {
		Flowchart json.RawMessage `json:"flowchart"`
	}
	if err := json.Unmarshal([]byte(UnwrapJSON(raw)), &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ucerrors.ErrMalformedResponse, err)
	}
	g := decodeGraph(wrapper.Flowchart)
	if g == nil {
		return nil, fmt.Errorf("%w: missing flowchart graph", ucerrors.ErrMalformedResponse)
	}
	return g, nil
}

// decodeGraph accepts a graph object. Anything else, such as a diagram
// string from an older prompt, yields nil and renders as an empty chart.
func decodeGraph(raw json.RawMessage) *entities.FlowchartGraph {
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var g entities.FlowchartGraph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil
	}
	return &g
}

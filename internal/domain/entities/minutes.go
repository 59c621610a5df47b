package entities

import (
	"github.com/johnquangdev/meeting-minutes/pkg/flowchart"
)

// FlowchartGraph is the node/edge form of a process flow as returned by the
// model. It is rendered, never persisted.
type FlowchartGraph = flowchart.Graph

// Decision is one decision taken in the meeting
type Decision struct {
	Decision string `json:"decision"`
}

// ActionItem is one task assigned during the meeting. DueDate is free text as
// spoken ("next Friday").
type ActionItem struct {
	Task    string `json:"task"`
	Owner   string `json:"owner"`
	DueDate string `json:"dueDate"`
}

// Minutes is the structured result of processing a meeting recording
type Minutes struct {
	ExecutiveSummary  string       `json:"executiveSummary"`
	Decisions         []Decision   `json:"decisions"`
	ActionItems       []ActionItem `json:"actionItems"`
	DiscussionSummary string       `json:"discussionSummary"`
	FullTranscript    string       `json:"fullTranscript"`
	Flowchart         string       `json:"flowchart,omitempty"`
}

// Normalize replaces nil slices with empty ones so the JSON shape is stable
func (m *Minutes) Normalize() {
	if m.Decisions == nil {
		m.Decisions = []Decision{}
	}
	if m.ActionItems == nil {
		m.ActionItems = []ActionItem{}
	}
}

// WithoutTranscript returns a copy with FullTranscript cleared
func (m Minutes) WithoutTranscript() Minutes {
	m.FullTranscript = ""
	return m
}

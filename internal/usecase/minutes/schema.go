package minutes

import "github.com/johnquangdev/meeting-minutes/pkg/ai"

func graphSchema() *ai.Schema {
	return &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			"nodes": {
				Type: ai.TypeArray,
				Items: &ai.Schema{
					Type: ai.TypeObject,
					Properties: map[string]*ai.Schema{
						"id":    {Type: ai.TypeString},
						"label": {Type: ai.TypeString},
						"kind":  {Type: ai.TypeString, Enum: []string{"process", "decision"}},
					},
					Required: []string{"id", "label"},
				},
			},
			"edges": {
				Type: ai.TypeArray,
				Items: &ai.Schema{
					Type: ai.TypeObject,
					Properties: map[string]*ai.Schema{
						"from":  {Type: ai.TypeString},
						"to":    {Type: ai.TypeString},
						"label": {Type: ai.TypeString},
					},
					Required: []string{"from", "to"},
				},
			},
		},
		Required: []string{"nodes", "edges"},
	}
}

// summarySchema is the extraction contract without the transcript
func summarySchema() *ai.Schema {
	return &ai.Schema{
		Type: ai.TypeObject,
		Properties: map[string]*ai.Schema{
			"executiveSummary": {Type: ai.TypeString},
			"decisions": {
				Type: ai.TypeArray,
				Items: &ai.Schema{
					Type:       ai.TypeObject,
					Properties: map[string]*ai.Schema{"decision": {Type: ai.TypeString}},
				},
			},
			"actionItems": {
				Type: ai.TypeArray,
				Items: &ai.Schema{
					Type: ai.TypeObject,
					Properties: map[string]*ai.Schema{
						"task":    {Type: ai.TypeString},
						"owner":   {Type: ai.TypeString},
						"dueDate": {Type: ai.TypeString},
					},
				},
			},
			"discussionSummary": {Type: ai.TypeString},
			"flowchart":         graphSchema(),
		},
		Required: []string{"executiveSummary", "decisions", "actionItems", "discussionSummary", "flowchart"},
	}
}

// fullSchema adds fullTranscript for the single-call audio path
func fullSchema() *ai.Schema {
	s := summarySchema()
	s.Properties["fullTranscript"] = &ai.Schema{Type: ai.TypeString}
	s.Required = append([]string{"fullTranscript"}, s.Required...)
	return s
}

func flowchartOnlySchema() *ai.Schema {
	return &ai.Schema{
		Type:       ai.TypeObject,
		Properties: map[string]*ai.Schema{"flowchart": graphSchema()},
		Required:   []string{"flowchart"},
	}
}

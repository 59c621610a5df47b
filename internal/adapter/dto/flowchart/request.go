package flowchart

import "github.com/johnquangdev/meeting-minutes/pkg/flowchart"

// RenderRequest is a graph to convert to diagram text
type RenderRequest struct {
	Nodes []flowchart.Node `json:"nodes"`
	Edges []flowchart.Edge `json:"edges"`
}

// RenderResponse carries the Mermaid text
type RenderResponse struct {
	Mermaid string `json:"mermaid"`
}

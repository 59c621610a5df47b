// Package flowchart turns a model-produced process graph into Mermaid text.
//
// The input is untrusted: nodes whose id sanitizes to nothing are dropped,
// duplicate ids keep the first node, and edges pointing at a missing node are
// skipped. Ids that are Mermaid keywords are renamed. Render never fails.
package flowchart

import (
	"strconv"
	"strings"
	"unicode"
)

// Header opens every rendered diagram
const Header = "graph TD"

// DefaultLabel replaces labels that sanitize to nothing
const DefaultLabel = "Step"

// NodeKind selects the node shape
type NodeKind string

const (
	NodeKindProcess  NodeKind = "process"
	NodeKindDecision NodeKind = "decision"
)

// Node is one step of the process
type Node struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Kind  NodeKind `json:"kind,omitempty"`
}

// Edge links two nodes by id
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Graph is the intermediate node/edge form requested from the model
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// IsEmpty reports whether the graph has nothing to draw
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// mermaid keywords that cannot be used as bare node ids
var reserved = map[string]bool{
	"end":       true,
	"graph":     true,
	"subgraph":  true,
	"flowchart": true,
	"style":     true,
	"class":     true,
	"classdef":  true,
	"click":     true,
	"linkstyle": true,
}

// labelStrip holds characters that terminate or alter Mermaid shapes
const labelStrip = "\"[]{}()<>|;`#"

// Render returns the Mermaid description of g
func Render(g Graph) string {
	var b strings.Builder
	b.WriteString(Header)

	tokens := assignIDs(g.Nodes)
	declared := make(map[string]bool, len(tokens))
	for _, n := range g.Nodes {
		key := SanitizeID(n.ID)
		if key == "" || declared[key] {
			continue
		}
		declared[key] = true

		label := SanitizeLabel(n.Label)
		if label == "" {
			label = DefaultLabel
		}

		b.WriteString("\n    ")
		b.WriteString(tokens[key])
		if isDecision(n, label) {
			b.WriteString("{" + label + "}")
		} else {
			b.WriteString("[" + label + "]")
		}
	}

	for _, e := range g.Edges {
		from, ok := tokens[SanitizeID(e.From)]
		if !ok {
			continue
		}
		to, ok := tokens[SanitizeID(e.To)]
		if !ok {
			continue
		}

		b.WriteString("\n    ")
		b.WriteString(from)
		if label := SanitizeLabel(e.Label); label != "" {
			b.WriteString(" -->|" + label + "| ")
		} else {
			b.WriteString(" --> ")
		}
		b.WriteString(to)
	}

	return b.String()
}

// assignIDs maps each sanitized node id to the token written in the diagram.
// Mermaid keywords are renamed to a token that no other node id uses.
func assignIDs(nodes []Node) map[string]string {
	taken := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if key := SanitizeID(n.ID); key != "" {
			taken[key] = true
		}
	}

	tokens := make(map[string]string, len(taken))
	for _, n := range nodes {
		key := SanitizeID(n.ID)
		if key == "" {
			continue
		}
		if _, ok := tokens[key]; ok {
			continue
		}
		if !reserved[strings.ToLower(key)] {
			tokens[key] = key
			continue
		}

		token := "n" + key
		for i := 2; taken[token]; i++ {
			token = "n" + key + strconv.Itoa(i)
		}
		taken[token] = true
		tokens[key] = token
	}
	return tokens
}

// SanitizeID keeps ASCII letters and digits
func SanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeLabel removes shape-breaking characters and folds whitespace
func SanitizeLabel(label string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(labelStrip, r) {
			return -1
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, label)
	return strings.Join(strings.Fields(cleaned), " ")
}

func isDecision(n Node, label string) bool {
	if strings.EqualFold(string(n.Kind), string(NodeKindDecision)) {
		return true
	}
	return strings.HasSuffix(label, "?")
}

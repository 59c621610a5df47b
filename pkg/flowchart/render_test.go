package flowchart

import (
	"strings"
	"testing"
)

func sampleGraph() Graph {
	return Graph{
		Nodes: []Node{
			{ID: "start", Label: "Kick-off"},
			{ID: "review", Label: "Budget approved?", Kind: NodeKindProcess},
			{ID: "ship", Label: "Ship release"},
			{ID: "hold", Label: "Hold", Kind: NodeKindDecision},
		},
		Edges: []Edge{
			{From: "start", To: "review"},
			{From: "review", To: "ship", Label: "Yes"},
			{From: "review", To: "hold", Label: "No"},
		},
	}
}

func TestRender_Basic(t *testing.T) {
	got := Render(sampleGraph())
	want := strings.Join([]string{
		"graph TD",
		"    start[Kick-off]",
		"    review{Budget approved?}",
		"    ship[Ship release]",
		"    hold{Hold}",
		"    start --> review",
		"    review -->|Yes| ship",
		"    review -->|No| hold",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_Idempotent(t *testing.T) {
	g := sampleGraph()
	first := Render(g)
	second := Render(g)
	if first != second {
		t.Fatalf("render is not deterministic:\n%s\n---\n%s", first, second)
	}
}

func TestRender_DropsDanglingEdges(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
		Edges: []Edge{
			{From: "a", To: "b"},
			{From: "a", To: "ghost"},
			{From: "ghost", To: "b"},
		},
	}
	got := Render(g)
	if strings.Contains(got, "ghost") {
		t.Fatalf("dangling edge rendered:\n%s", got)
	}
	if strings.Count(got, "-->") != 1 {
		t.Fatalf("expected exactly one edge:\n%s", got)
	}
}

func TestRender_QuotesAndDecisionShape(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "q1", Label: `Is "legal" OK?`, Kind: NodeKindDecision},
		},
	}
	got := Render(g)
	if strings.Contains(got, `"`) {
		t.Fatalf("unescaped quote in output:\n%s", got)
	}
	if !strings.Contains(got, "q1{Is legal OK?}") {
		t.Fatalf("expected diamond shape:\n%s", got)
	}
}

func TestRender_DropsUnusableNodes(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "---", Label: "no id"},
			{ID: "a b", Label: "first"},
			{ID: "ab", Label: "duplicate"},
			{ID: "c", Label: "  [ ] "},
		},
		Edges: []Edge{
			{From: "---", To: "ab"},
			{From: "a-b", To: "c", Label: `"go"`},
		},
	}
	got := Render(g)
	want := strings.Join([]string{
		"graph TD",
		"    ab[first]",
		"    c[Step]",
		"    ab -->|go| c",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_ReservedIDs(t *testing.T) {
	g := Graph{
		Nodes: []Node{{ID: "start", Label: "Start"}, {ID: "end", Label: "End"}},
		Edges: []Edge{{From: "start", To: "end"}},
	}
	got := Render(g)
	if !strings.Contains(got, "nend[End]") || !strings.Contains(got, "start --> nend") {
		t.Fatalf("reserved id not renamed:\n%s", got)
	}
}

func TestRender_ReservedIDDoesNotCaptureRealID(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "end", Label: "Close"},
			{ID: "nend", Label: "Follow up"},
			{ID: "a", Label: "Open"},
		},
		Edges: []Edge{{From: "a", To: "nend"}, {From: "a", To: "end"}},
	}
	want := strings.Join([]string{
		Header,
		"    nend2[Close]",
		"    nend[Follow up]",
		"    a[Open]",
		"    a --> nend",
		"    a --> nend2",
	}, "\n")
	if got := Render(g); got != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_EmptyGraph(t *testing.T) {
	if got := Render(Graph{}); got != Header {
		t.Fatalf("expected bare header, got %q", got)
	}
}

func TestSanitizeLabel(t *testing.T) {
	cases := map[string]string{
		"Plain":                  "Plain",
		"  padded\n\tlabel  ":    "padded label",
		`say "hi" (now) {x} |y|`: "say hi now x y",
		"":                       "",
	}
	for in, want := range cases {
		if got := SanitizeLabel(in); got != want {
			t.Errorf("SanitizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

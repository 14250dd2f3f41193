// Package visualize renders a compiled graph and a live run as text, the
// cannoli analogue of the teacher's graph.Exporter (graph/visualization.go)
// and graph.Tracer (graph/tracing.go): DOT/Mermaid export for a static
// VerifiedGraph, plus a span-collecting Tracer that listens to a running
// objects.Graph's status changes instead of the teacher's hand-rolled
// node-by-node Invoke loop.
package visualize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/objects"
)

// DrawDOT renders a compiled graph's nodes, groups and edges as Graphviz
// DOT, the same "digraph G {...}" shape as the teacher's Exporter.DrawDOT,
// generalized from a single linear node list to cannoli's nodes/edges/
// groups triple.
func DrawDOT(vg *compiler.VerifiedGraph) string {
	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=box];\n")

	for _, id := range sortedKeys(vg.Groups) {
		g := vg.Groups[id]
		label := string(g.Subtype)
		if g.Subtype == compiler.GroupRepeat {
			label = fmt.Sprintf("repeat x%d", g.MaxLoops)
		}
		sb.WriteString(fmt.Sprintf("    subgraph cluster_%s {\n", sanitize(id)))
		sb.WriteString(fmt.Sprintf("        label=%q;\n", label))
		for _, m := range g.Members {
			sb.WriteString(fmt.Sprintf("        %s;\n", sanitize(m)))
		}
		sb.WriteString("    }\n")
	}

	for _, id := range sortedKeys(vg.Nodes) {
		n := vg.Nodes[id]
		sb.WriteString(fmt.Sprintf("    %s [label=%q];\n", sanitize(id), nodeLabel(n)))
	}

	for _, id := range vg.Order {
		e, ok := vg.Edges[id]
		if !ok {
			continue
		}
		label := string(e.Subtype)
		if e.Label != "" {
			label = e.Label
		}
		sb.WriteString(fmt.Sprintf("    %s -> %s [label=%q];\n", sanitize(e.Source), sanitize(e.Target), label))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// DrawMermaid renders the same structure as a Mermaid flowchart, mirroring
// the teacher's Exporter.DrawMermaid output shape.
func DrawMermaid(vg *compiler.VerifiedGraph) string {
	var sb strings.Builder
	sb.WriteString("flowchart LR\n")
	for _, id := range sortedKeys(vg.Nodes) {
		n := vg.Nodes[id]
		sb.WriteString(fmt.Sprintf("    %s[%q]\n", sanitize(id), nodeLabel(n)))
	}
	for _, id := range vg.Order {
		e, ok := vg.Edges[id]
		if !ok {
			continue
		}
		if e.Label != "" {
			sb.WriteString(fmt.Sprintf("    %s -->|%s| %s\n", sanitize(e.Source), e.Label, sanitize(e.Target)))
		} else {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitize(e.Source), sanitize(e.Target)))
		}
	}
	return sb.String()
}

func nodeLabel(n *compiler.Node) string {
	if n.Name != "" {
		return n.Name
	}
	if len(n.Text) > 40 {
		return n.Text[:37] + "..."
	}
	return n.Text
}

func sanitize(id string) string {
	return strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(id)
}

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SpanEvent is a single status transition observed during a live run, the
// cannoli analogue of the teacher's TraceSpan (graph/tracing.go) — one
// event per node/edge/group status change rather than one span per
// node-enter/node-exit pair, since the scheduler's status model already
// distinguishes Executing from terminal states.
type SpanEvent struct {
	ID       string
	ObjectID string
	Status   objects.Status
	At       time.Time
}

// Tracer collects every status change a running objects.Graph emits.
// Attach it with Listen before the scheduler runs; GetSpans/Clear mirror
// the teacher's Tracer method names.
type Tracer struct {
	spans []SpanEvent
}

func NewTracer() *Tracer {
	return &Tracer{}
}

// Listen registers the tracer against every node, edge and group in g so
// it observes the whole run.
func (t *Tracer) Listen(g *objects.Graph) {
	l := objects.ListenerFunc(func(ctx context.Context, id string, status objects.Status) {
		t.spans = append(t.spans, SpanEvent{ID: uuid.NewString(), ObjectID: id, Status: status, At: time.Now()})
	})
	for _, n := range g.Nodes {
		n.AddListener(l)
	}
	for _, e := range g.Edges {
		e.AddListener(l)
	}
	for _, grp := range g.Groups {
		grp.AddListener(l)
	}
}

// GetSpans returns every event observed so far, in the order it arrived.
func (t *Tracer) GetSpans() []SpanEvent {
	return append([]SpanEvent(nil), t.spans...)
}

func (t *Tracer) Clear() {
	t.spans = nil
}

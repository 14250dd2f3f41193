package compiler

import (
	"strconv"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/canvas"
)

// Compile implements C2, the Factory: the single pure function that turns
// a raw canvas into a VerifiedGraph, running steps A-G in order and then
// the non-fatal validation pass (spec.md §4.2).
func Compile(data canvas.Data, cfg Config) *VerifiedGraph {
	vg := newVerifiedGraph()

	var groupOrder, plainOrder []string
	groupNodes := make(map[string]canvas.Node)
	plainNodes := make(map[string]canvas.Node)
	for _, n := range data.Nodes {
		if n.Type == canvas.NodeTypeGroup {
			groupNodes[n.ID] = n
			groupOrder = append(groupOrder, n.ID)
		} else {
			plainNodes[n.ID] = n
			plainOrder = append(plainOrder, n.ID)
		}
	}

	// Step A: multi-label edge expansion. A newline inside an edge's label
	// produces one independent edge per line, every one sharing the parent
	// edge's endpoints (spec.md §4.2 step A).
	type rawEdge struct {
		id  string
		raw canvas.Edge
		lbl string
	}
	var rawEdges []rawEdge
	for _, e := range data.Edges {
		lines := splitLabelLines(e.Label)
		if len(lines) <= 1 {
			rawEdges = append(rawEdges, rawEdge{id: e.ID, raw: e, lbl: e.Label})
			continue
		}
		for i, line := range lines {
			rawEdges = append(rawEdges, rawEdge{id: e.ID + "#" + strconv.Itoa(i), raw: e, lbl: line})
		}
	}

	hasIncoming := make(map[string]bool)
	hasOutgoing := make(map[string]bool)
	incident := make(map[string]bool)
	for _, re := range rawEdges {
		hasOutgoing[re.raw.FromNode] = true
		hasIncoming[re.raw.ToNode] = true
		incident[re.raw.FromNode] = true
		incident[re.raw.ToNode] = true
	}

	// Step B, broad pass: every plain node's call/content/floating kind,
	// resolved before edge classification since step C needs each
	// endpoint's broad kind. Call nodes get a placeholder subtype, refined
	// below once their outgoing edges are known.
	broadOf := make(map[string]BroadKind, len(plainNodes))
	for _, id := range plainOrder {
		n := plainNodes[id]
		subtype, name := classifyNodeBroad(n, incident[id], hasIncoming[id], hasOutgoing[id], cfg)
		vg.Nodes[id] = &Node{ID: id, Subtype: subtype, Text: n.Text, Name: name, Rect: n.RectOf()}
		switch {
		case subtype.IsFloating():
			broadOf[id] = BroadFloating
		case subtype.IsCall():
			broadOf[id] = BroadCall
		default:
			broadOf[id] = BroadContent
		}
	}

	// Groups get their subtype/loop-count resolved up front; membership
	// and crossing-group computation (steps D/E) need every group present
	// first.
	for _, id := range groupOrder {
		n := groupNodes[id]
		subtype, loops := classifyGroupSubtype(n)
		vg.Groups[id] = &Group{ID: id, Subtype: subtype, MaxLoops: loops, Rect: n.RectOf()}
	}

	// Step C: edge classification.
	for _, re := range rawEdges {
		body, addMessages, modifier := stripLabelDecoration(re.lbl)
		_, srcIsGroup := groupNodes[re.raw.FromNode]
		_, tgtIsGroup := groupNodes[re.raw.ToNode]
		subtype := classifyEdgeSubtype(re.raw, body, broadOf[re.raw.FromNode], broadOf[re.raw.ToNode], srcIsGroup, tgtIsGroup)
		storedLabel := body
		if len(body) > 0 {
			if _, ok := labelPrefix[body[0]]; ok {
				storedLabel = strings.TrimSpace(body[1:])
			}
		}
		vg.Edges[re.id] = &Edge{
			ID:          re.id,
			Subtype:     subtype,
			Source:      re.raw.FromNode,
			Target:      re.raw.ToNode,
			Label:       storedLabel,
			AddMessages: addMessages,
			Modifier:    modifier,
			Reflexive:   re.raw.FromNode == re.raw.ToNode,
		}
		vg.Order = append(vg.Order, re.id)
	}

	// Refine call nodes into standard/choose/form now that their outgoing
	// edges are classified (spec.md §4.2 step B refinement).
	for _, id := range plainOrder {
		n := vg.Nodes[id]
		if n.Subtype.IsCall() {
			n.Subtype = refineCallSubtype(n, vg.OutgoingEdges(id))
		}
		vg.Order = append(vg.Order, id)
	}
	for _, id := range groupOrder {
		vg.Order = append(vg.Order, id)
	}

	// Steps D & E: containment and crossing-group sets.
	enclosing := computeGroupMembership(vg)
	for _, id := range vg.Order {
		e, ok := vg.Edges[id]
		if !ok {
			continue
		}
		_, srcIsGroup := vg.Groups[e.Source]
		_, tgtIsGroup := vg.Groups[e.Target]
		srcContainsTgt := srcIsGroup && containsStr(enclosing[e.Target], e.Source)
		tgtContainsSrc := tgtIsGroup && containsStr(enclosing[e.Source], e.Target)
		e.CrossingOut, e.CrossingIn = computeCrossingGroups(enclosing[e.Source], enclosing[e.Target], srcContainsTgt, tgtContainsSrc)
	}

	// Step F: for-each expansion.
	expandForEach(vg, enclosing)

	// Step G: dependency-set computation.
	computeDependencies(vg)

	runValidations(vg)

	return vg
}

// classifyGroupSubtype resolves a canvas group's runtime behavior from its
// label: a bare loop count (or k/N progress label) makes it a repeat
// group; a dedicated for-each color (pinned to "6") instead marks it
// for-each-signified: step F expands it into as many parallel copies as
// its label's count (one when the label carries no count), each copy fed
// one item of its incoming list edge.
func classifyGroupSubtype(n canvas.Node) (GroupSubtype, int) {
	loops, hasLoops := maxLoopsFromLabel(n.Label)
	if n.Color == "6" {
		if !hasLoops {
			loops = 1
		}
		return GroupForEachSignified, loops
	}
	if hasLoops {
		return GroupRepeat, loops
	}
	return GroupBasic, 0
}

// splitLabelLines implements step A's multi-label rule: one edge label
// per newline-separated line, trimmed and with blank lines dropped.
func splitLabelLines(label string) []string {
	if label == "" {
		return []string{""}
	}
	var out []string
	for _, line := range strings.Split(label, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

// computeDependencies implements step G: every node's Dependencies is the
// set of objects it cannot become ready without — its incoming edges and
// their sources; every edge depends on its source plus every group it
// crosses out of (spec.md §8 invariant 3: "dependencies(e) = {source(e)} ∪
// crossingOut(e)"), so an edge leaving a repeat or for-each group waits for
// the group to finish looping instead of firing after its source's first
// iteration; every group depends on every one of its members (spec.md §3
// invariant 6).
func computeDependencies(vg *VerifiedGraph) {
	for id, n := range vg.Nodes {
		var deps []string
		for _, e := range vg.IncomingEdges(id) {
			deps = append(deps, e.ID, e.Source)
		}
		n.Dependencies = deps
	}
	for _, e := range vg.Edges {
		deps := []string{e.Source}
		deps = append(deps, e.CrossingOut...)
		e.Dependencies = deps
	}
	for _, g := range vg.Groups {
		g.Dependencies = append([]string{}, g.Members...)
	}
}

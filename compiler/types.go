// Package compiler implements C2, the Factory: a single pure function that
// turns a raw canvas (package canvas) into a VerifiedGraph — a typed,
// dependency-complete graph ready for hydration into runtime objects
// (package objects). See spec.md §4.2 for the step-by-step algorithm this
// package follows (steps A-G plus validation).
package compiler

import "github.com/DeabLabs/cannoli-sub001/canvas"

// NodeSubtype is the resolved kind of a node after classification (spec.md
// §3 Node.subtype, §4.2 step B).
type NodeSubtype string

const (
	NodeCallStandard     NodeSubtype = "call:standard"
	NodeCallChoose       NodeSubtype = "call:choose"
	NodeCallForm         NodeSubtype = "call:form"
	NodeContentStandard  NodeSubtype = "content:standard"
	NodeContentInput     NodeSubtype = "content:input"
	NodeContentOutput    NodeSubtype = "content:output"
	NodeContentReference NodeSubtype = "content:reference"
	NodeContentFormatter NodeSubtype = "content:formatter"
	NodeContentHTTP      NodeSubtype = "content:http"
	NodeContentSearch    NodeSubtype = "content:search"
	NodeContentSubCan    NodeSubtype = "content:subcannoli"
	NodeFloatingVariable NodeSubtype = "floating:variable"
)

// IsCall/IsContent/IsFloating classify a resolved subtype into the three
// coarse kinds used by edge classification (spec.md §4.2 step C).
func (s NodeSubtype) IsCall() bool {
	return s == NodeCallStandard || s == NodeCallChoose || s == NodeCallForm
}

func (s NodeSubtype) IsContent() bool {
	switch s {
	case NodeContentStandard, NodeContentInput, NodeContentOutput, NodeContentReference,
		NodeContentFormatter, NodeContentHTTP, NodeContentSearch, NodeContentSubCan:
		return true
	}
	return false
}

func (s NodeSubtype) IsFloating() bool { return s == NodeFloatingVariable }

// EdgeSubtype is the resolved kind of an edge after classification (spec.md
// §3 Edge.subtype, §4.2 step C).
type EdgeSubtype string

const (
	EdgeChat          EdgeSubtype = "chat"
	EdgeChatConverter EdgeSubtype = "chat-converter"
	EdgeChatResponse  EdgeSubtype = "chat-response"
	EdgeSystemMessage EdgeSubtype = "system-message"
	EdgeWrite         EdgeSubtype = "write"
	EdgeVariable      EdgeSubtype = "variable"
	EdgeField         EdgeSubtype = "field"
	EdgeList          EdgeSubtype = "list"
	EdgeItem          EdgeSubtype = "item"
	EdgeChoice        EdgeSubtype = "choice"
	EdgeConfig        EdgeSubtype = "config"
	EdgeLogging       EdgeSubtype = "logging"
)

// CarriesMessages reports whether an edge of this subtype is a candidate
// source of prepended chat history (spec.md §4.5 Standard call node).
func (s EdgeSubtype) CarriesMessages() bool {
	switch s {
	case EdgeChat, EdgeChatConverter, EdgeChatResponse, EdgeSystemMessage:
		return true
	}
	return false
}

// IsValueEdge reports whether an edge participates in variable resolution /
// readiness redundancy (spec.md §4.4 readiness rule, §4.5 variable
// resolution) — i.e. everything except logging, write and config edges.
func (s EdgeSubtype) IsValueEdge() bool {
	return s != EdgeLogging && s != EdgeWrite && s != EdgeConfig
}

// GroupSubtype is the resolved kind of a group (spec.md §3 Group.subtype).
type GroupSubtype string

const (
	GroupBasic           GroupSubtype = "basic"
	GroupRepeat          GroupSubtype = "repeat"
	GroupForEachSignified GroupSubtype = "for-each-signified"
)

// Modifier is the edge-label modifier grammar (spec.md §3 Edge.modifier,
// §4.2 step C "leading [ / : sets modifier").
type Modifier string

const (
	ModifierNone     Modifier = ""
	ModifierNote     Modifier = "note"
	ModifierFolder   Modifier = "folder"
	ModifierProperty Modifier = "property"
	ModifierList     Modifier = "list"
	ModifierHeaders  Modifier = "headers"
	ModifierTable    Modifier = "table"
)

// Node is a compiled, typed node: the C2 output for one canvas node.
type Node struct {
	ID         string
	Subtype    NodeSubtype
	Text       string
	Name       string // parsed leading [name] line, for input/output/floating
	Groups     []string
	Rect       canvas.Rect
	Dependencies []string
}

// Edge is a compiled, typed edge: the C2 output for one canvas edge (after
// multi-label expansion, step A).
type Edge struct {
	ID           string
	Subtype      EdgeSubtype
	Source       string
	Target       string
	Label        string
	CrossingIn   []string
	CrossingOut  []string
	AddMessages  bool
	Reflexive    bool
	Modifier     Modifier
	Dependencies []string

	// Versions holds the for-each iteration indices stamped on this edge
	// during step F, outermost nesting level first (spec.md §4.2 step F.3,
	// §4.5 message-merge "ordered outermost version first"). Nil for edges
	// never produced by for-each duplication.
	Versions []int
}

// Group is a compiled, typed group: the C2 output for one canvas group node,
// after for-each expansion (step F) has replaced every for-each-signified
// group with N basic copies.
type Group struct {
	ID             string
	Subtype        GroupSubtype
	Members        []string
	MaxLoops       int
	FromForEach    bool
	ForEachIndex   int // 1-based iteration index, set when FromForEach
	OriginalObject string
	Rect           canvas.Rect
	Dependencies   []string
}

// VerifiedGraph is the complete C2 output: every node, edge and group keyed
// by id, plus any non-fatal validation errors attached to offending objects
// (spec.md §7: "compilation still produces a graph for the valid subset").
type VerifiedGraph struct {
	Nodes  map[string]*Node
	Edges  map[string]*Edge
	Groups map[string]*Group

	// Order lists every node/edge/group id in the order the factory
	// produced them, for deterministic iteration.
	Order []string

	Errors []CompileError
}

func newVerifiedGraph() *VerifiedGraph {
	return &VerifiedGraph{
		Nodes:  make(map[string]*Node),
		Edges:  make(map[string]*Edge),
		Groups: make(map[string]*Group),
	}
}

// IncomingEdges returns every edge targeting id, in compile order.
func (g *VerifiedGraph) IncomingEdges(id string) []*Edge {
	var out []*Edge
	for _, eid := range g.Order {
		if e, ok := g.Edges[eid]; ok && e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// OutgoingEdges returns every edge sourced at id, in compile order.
func (g *VerifiedGraph) OutgoingEdges(id string) []*Edge {
	var out []*Edge
	for _, eid := range g.Order {
		if e, ok := g.Edges[eid]; ok && e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

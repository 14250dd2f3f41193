// Package canvas defines the raw, geometry-only schema that a Cannoli graph
// is authored in. It is the input to the compiler (package compiler) and is
// never consulted again once a graph has been compiled — geometry, color and
// label only matter at compile time (spec.md §3, §4.1).
package canvas

import "encoding/json"

// NodeType is the canvas-level (not compiler-level) shape of a node.
type NodeType string

const (
	NodeTypeText  NodeType = "text"
	NodeTypeFile  NodeType = "file"
	NodeTypeLink  NodeType = "link"
	NodeTypeGroup NodeType = "group"
)

// Rect is the geometric rectangle shared by nodes and groups.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Encloses reports whether r strictly encloses other (compiler invariant 2).
func (r Rect) Encloses(other Rect) bool {
	return r.X < other.X && r.Y < other.Y &&
		r.X+r.W > other.X+other.W && r.Y+r.H > other.Y+other.H
}

// Area is used to sort enclosing groups innermost-first.
func (r Rect) Area() float64 { return r.W * r.H }

// Overlaps reports whether two rectangles intersect without one strictly
// enclosing the other — this is the "rectangular overlap without enclosure"
// validation error from spec.md §4.2.
func (r Rect) Overlaps(other Rect) bool {
	intersects := r.X < other.X+other.W && r.X+r.W > other.X &&
		r.Y < other.Y+other.H && r.Y+r.H > other.Y
	if !intersects {
		return false
	}
	return !r.Encloses(other) && !other.Encloses(r)
}

// Node is a raw canvas node: a text block, a file reference, a web link, or
// a group rectangle. Only the fields the engine reads (per spec.md §4.1) are
// modeled.
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Rect  Rect     `json:"-"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	W     float64  `json:"width"`
	H     float64  `json:"height"`
	Color string   `json:"color,omitempty"`
	Text  string   `json:"text,omitempty"`
	File  string   `json:"file,omitempty"`
	URL   string   `json:"url,omitempty"`
	Label string   `json:"label,omitempty"`

	// Extra is a caller-owned map for keys the engine does not model. It is
	// excluded from JSON: ParseJSON does not fill it, so unknown keys in a
	// canvas file are dropped on decode.
	Extra map[string]any `json:"-"`
}

// EdgeEnd describes which side of a node an edge attaches to and whether
// that end carries an arrowhead.
type EdgeEnd struct {
	Side string `json:"side,omitempty"` // top|right|bottom|left
	End  string `json:"end,omitempty"`  // none|arrow
}

// Edge is a raw canvas edge connecting two nodes.
type Edge struct {
	ID       string  `json:"id"`
	FromNode string  `json:"fromNode"`
	FromSide string  `json:"fromSide,omitempty"`
	FromEnd  string  `json:"fromEnd,omitempty"`
	ToNode   string  `json:"toNode"`
	ToSide   string  `json:"toSide,omitempty"`
	ToEnd    string  `json:"toEnd,omitempty"`
	Color    string  `json:"color,omitempty"`
	Label    string  `json:"label,omitempty"`

	Extra map[string]any `json:"-"`
}

// Data is a full raw canvas: nodes, edges, and the surrounding run metadata
// named in spec.md §6 ("canvas metadata settings, args").
type Data struct {
	Nodes    []Node         `json:"nodes"`
	Edges    []Edge         `json:"edges"`
	Settings map[string]any `json:"settings,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
}

// RectOf returns the node's geometry as a Rect, preferring the explicit Rect
// field when the caller already populated it (e.g. a synthesized for-each
// duplicate) and falling back to the flat X/Y/W/H JSON fields otherwise.
func (n Node) RectOf() Rect {
	if n.Rect != (Rect{}) {
		return n.Rect
	}
	return Rect{X: n.X, Y: n.Y, W: n.W, H: n.H}
}

// ParseJSON decodes a .canvas file's JSON body into Data.
func ParseJSON(raw []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, err
	}
	return d, nil
}

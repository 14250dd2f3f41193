package compiler

import (
	"strings"

	"github.com/DeabLabs/cannoli-sub001/canvas"
)

// BroadKind is the coarse call/content/floating split a node's color maps
// to before any text-based refinement (spec.md §4.2 step B).
type BroadKind string

const (
	BroadCall     BroadKind = "call"
	BroadContent  BroadKind = "content"
	BroadFloating BroadKind = "floating"
)

// Config holds the compiler's configurable classification knobs: the
// canvas-color-to-broad-kind map and the colorless-node default (spec.md
// §4.2 step B: "A configuration flag contentIsColorless swaps the default
// for uncolored nodes").
type Config struct {
	ColorMap           map[string]BroadKind
	ContentIsColorless bool
}

// DefaultConfig returns the compiler's default color scheme. Color "2" is
// pinned to content (it is further refined to the http subtype below
// regardless of this map, per spec.md's explicit rule); colors "4" and "5"
// map to call; any other color falls back to content unless the caller
// assigns it via ColorMap — uncolored nodes fall back to content (or call,
// if ContentIsColorless is set).
func DefaultConfig() Config {
	return Config{
		ColorMap: map[string]BroadKind{
			"2": BroadContent,
			"4": BroadCall,
			"5": BroadCall,
		},
	}
}

func (c Config) broadKindFor(color string) BroadKind {
	if color == "" {
		if c.ContentIsColorless {
			return BroadCall
		}
		return BroadContent
	}
	if k, ok := c.ColorMap[color]; ok {
		return k
	}
	return BroadContent
}

// firstLineName parses a leading "[name]" line, used by floating variables
// and named input/output nodes (spec.md §4.2 step B, §4.5).
func firstLineName(text string) (string, bool) {
	first := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		first = text[:idx]
	}
	first = strings.TrimSpace(first)
	if len(first) < 2 || first[0] != '[' || first[len(first)-1] != ']' {
		return "", false
	}
	return strings.TrimSpace(first[1 : len(first)-1]), true
}

var reservedNames = map[string]bool{
	"NOTE": true, "SELECTION": true, "INPUT": true, "OUTPUT": true,
}

// IsReservedName reports whether name collides with a built-in special
// variable (spec.md §4.5 "reserved keywords are rejected").
func IsReservedName(name string) bool {
	return reservedNames[strings.ToUpper(name)]
}

// isFormatterText reports whether text is wrapped in the formatter node's
// outer quote markers (spec.md §4.2 step B, §4.5: `text is ""..."" `).
func isFormatterText(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, `""`) && strings.HasSuffix(t, `""`) && len(t) >= 4
}

// classifyNodeBroad resolves step B for a single canvas node: floating
// detection, file/link => reference, then color-driven call/content,
// refined by text shape for content nodes. hasIncoming/hasOutgoing report
// whether the node has any incident edge of that direction (used for the
// input/output/standard split); incident reports whether it has any
// incident edge at all (used for floating detection).
func classifyNodeBroad(n canvas.Node, incident, hasIncoming, hasOutgoing bool, cfg Config) (NodeSubtype, string) {
	if !incident {
		if name, ok := firstLineName(n.Text); ok {
			return NodeFloatingVariable, name
		}
	}

	if n.Type == canvas.NodeTypeFile || n.Type == canvas.NodeTypeLink {
		return NodeContentReference, ""
	}

	broad := cfg.broadKindFor(n.Color)

	switch broad {
	case BroadFloating:
		name, _ := firstLineName(n.Text)
		return NodeFloatingVariable, name
	case BroadCall:
		// Refined into standard/choose/form once outgoing edges are
		// classified; placeholder here.
		return NodeCallStandard, ""
	default:
		return classifyContentText(n, hasIncoming, hasOutgoing)
	}
}

func classifyContentText(n canvas.Node, hasIncoming, hasOutgoing bool) (NodeSubtype, string) {
	if n.Color == "2" {
		return NodeContentHTTP, ""
	}
	if isFormatterText(n.Text) {
		return NodeContentFormatter, ""
	}
	if _, ok := soleReference(n.Text); ok {
		return NodeContentReference, ""
	}

	name, isNamed := firstLineName(n.Text)
	switch {
	case !hasIncoming:
		return NodeContentInput, pick(isNamed, name)
	case !hasOutgoing:
		return NodeContentOutput, pick(isNamed, name)
	default:
		return NodeContentStandard, ""
	}
}

func pick(ok bool, v string) string {
	if ok {
		return v
	}
	return ""
}

// refineCallSubtype applies spec.md §4.2 step B's call-subtype rule: any
// outgoing field edge => form; else any outgoing choice edge => choose;
// else standard.
func refineCallSubtype(n *Node, outgoing []*Edge) NodeSubtype {
	hasField, hasChoice := false, false
	for _, e := range outgoing {
		switch e.Subtype {
		case EdgeField:
			hasField = true
		case EdgeChoice:
			hasChoice = true
		}
	}
	switch {
	case hasField:
		return NodeCallForm
	case hasChoice:
		return NodeCallChoose
	default:
		return NodeCallStandard
	}
}

// labelPrefix maps the single-character edge-label sigils from spec.md
// §4.2 step C ("label-prefix map (*,?,@,<,=)") to an edge subtype. This
// reifies the otherwise-undocumented prefix meanings as one named table,
// per the design note in spec.md §9 ("should be reified as named parsers
// rather than scattered regexes"); see DESIGN.md for the rationale behind
// each assignment.
var labelPrefix = map[byte]EdgeSubtype{
	'@': EdgeVariable,
	'?': EdgeChoice,
	'*': EdgeList,
	'<': EdgeField,
	'=': EdgeConfig,
}

// stripLabelDecoration parses the label-suffix/prefix grammar (spec.md
// §4.2 step C: trailing `|`/`~` sets addMessages; leading `[`/`:` sets
// modifier note/folder/property) and returns the remaining body label.
func stripLabelDecoration(label string) (body string, addMessages bool, modifier Modifier) {
	body = label
	if strings.HasSuffix(body, "|") {
		addMessages = true
		body = strings.TrimSuffix(body, "|")
	} else if strings.HasSuffix(body, "~") {
		addMessages = true
		body = strings.TrimSuffix(body, "~")
	}
	switch {
	case strings.HasPrefix(body, "["):
		modifier = ModifierFolder
		body = strings.TrimPrefix(body, "[")
	case strings.HasPrefix(body, ":"):
		modifier = ModifierProperty
		body = strings.TrimPrefix(body, ":")
	}
	// Explicit render-mode annotations for versioned message-merge
	// destinations (spec.md §4.5 "Render modes driven by the destination
	// edge's modifier"). Written as a trailing (mode) tag.
	for _, mode := range []struct {
		tag string
		mod Modifier
	}{{"(table)", ModifierTable}, {"(list)", ModifierList}, {"(headers)", ModifierHeaders}} {
		if strings.HasSuffix(body, mode.tag) {
			modifier = mode.mod
			body = strings.TrimSuffix(body, mode.tag)
		}
	}
	return strings.TrimSpace(body), addMessages, modifier
}

// classifyEdgeSubtype resolves step C for one edge: color map, then
// label-prefix map, then source/target heuristics.
func classifyEdgeSubtype(e canvas.Edge, label string, sourceBroad, targetBroad BroadKind, sourceIsGroup, targetIsGroup bool) EdgeSubtype {
	if e.Color == "3" {
		// A chat-converter edge landing on a content node delivers a
		// streaming model reply rather than converted chat history, so it
		// becomes chat-response instead (spec.md §4.2 step C: "chat-converter
		// with a content target becomes chat-response").
		if targetBroad == BroadContent {
			return EdgeChatResponse
		}
		return EdgeChatConverter
	}
	if len(label) > 0 {
		if sub, ok := labelPrefix[label[0]]; ok {
			return sub
		}
	}
	if sourceIsGroup || targetIsGroup {
		return EdgeChat
	}
	switch {
	case sourceBroad == BroadContent && targetBroad == BroadContent:
		return EdgeWrite
	case sourceBroad == BroadContent && targetBroad == BroadCall:
		return EdgeSystemMessage
	case sourceBroad == BroadCall && targetBroad == BroadContent:
		return EdgeWrite
	default:
		return EdgeChat
	}
}

func soleReference(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.Contains(trimmed, "\n") {
		return "", false
	}
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}
	inner := trimmed[2 : len(trimmed)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}
	return inner, true
}

// Package edges implements C6: the behaviors that fire once an edge's
// source vertex completes, carrying content (and, for the message-bearing
// subtypes, chat history) onto the edge's target. Every behavior is
// invoked through Behavior.Execute, which satisfies scheduler.Executor for
// edge ids.
package edges

import (
	"context"
	"fmt"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/objects"
	"github.com/DeabLabs/cannoli-sub001/tokenbudget"
)

// Behavior executes edge vertices. Graph resolves an item edge's target
// to its for-each iteration index (spec.md §4.2 step F); Budget truncates
// chat-converter history to fit the provider's context window.
type Behavior struct {
	Graph  *compiler.VerifiedGraph
	Budget *tokenbudget.Budget
}

func New(g *compiler.VerifiedGraph, budget *tokenbudget.Budget) *Behavior {
	return &Behavior{Graph: g, Budget: budget}
}

// Execute loads content from an edge's source node and, depending on the
// edge's subtype, either copies it forward as plain content (generic
// load, spec.md §4.6 generic edge) or appends it to the target node's
// message history with the role the subtype implies.
func (b *Behavior) Execute(ctx context.Context, g *objects.Graph, id string) (objects.Status, error) {
	e, ok := g.Edges[id]
	if !ok {
		return objects.StatusError, fmt.Errorf("edges: %s is not an edge", id)
	}

	if e.Subtype == compiler.EdgeChoice {
		if src, ok := g.Nodes[e.Source]; ok && src.GetChoice() != e.Label {
			return objects.StatusRejected, nil
		}
	}

	content := b.sourceContent(g, e.Source)
	if e.Subtype == compiler.EdgeField {
		if src, ok := g.Nodes[e.Source]; ok {
			if v, found := src.GetField(e.Label); found {
				content = v
			}
		}
	}
	if e.Subtype == compiler.EdgeItem {
		if idx, ok := b.forEachIndex(e.Target); ok {
			content = listItem(content, idx)
		}
	}
	e.SetContent(content)

	target, hasTarget := g.Nodes[e.Target]
	if !hasTarget {
		return objects.StatusComplete, nil
	}

	if target.Subtype == compiler.NodeContentReference {
		target.SetIncomingValue(content, e.Subtype == compiler.EdgeChatResponse)
		return objects.StatusComplete, nil
	}

	// A for-each-duplicated edge (compiler.Edge.Versions non-empty, spec.md
	// §4.2 step F) stamps its content as one iteration's version instead of
	// writing through the normal per-subtype path; the target content node's
	// own Execute merges every recorded version back into one block (spec.md
	// §4.5 "message-merge", scenario S4) once all of them have arrived.
	if len(e.Versions) > 0 {
		target.AddVersion(objects.Version{
			Index:     e.Versions[0],
			SubHeader: fmt.Sprintf("%d", e.Versions[0]),
			Header:    e.Label,
			Content:   content,
		}, e.Modifier)
		return objects.StatusComplete, nil
	}

	switch e.Subtype {
	case compiler.EdgeSystemMessage:
		target.AppendMessage(objects.Message{Role: "system", Content: content})
	case compiler.EdgeChatResponse:
		formatted := formatMessage("assistant", content)
		e.SetContent(formatted)
		target.AppendMessage(objects.Message{Role: "assistant", Content: content})
	case compiler.EdgeChat:
		target.AppendMessage(objects.Message{Role: "user", Content: content})
	case compiler.EdgeChatConverter:
		for _, m := range parseTranscript(content) {
			target.AppendMessage(m)
		}
		b.truncate(target)
	case compiler.EdgeItem:
		target.AppendMessage(objects.Message{Role: "user", Content: content})
	case compiler.EdgeLogging:
		// Logging edges are a sink: content is recorded on the edge
		// itself (above) but never forwarded to the target.
		return objects.StatusComplete, nil
	default:
		if e.AddMessages {
			target.AppendMessage(objects.Message{Role: "user", Content: content})
		}
	}

	return objects.StatusComplete, nil
}

// forEachIndex reports the 1-based for-each iteration a compiled node
// belongs to, if any of its enclosing groups was produced by for-each
// expansion (compiler.Group.FromForEach, spec.md §4.2 step F).
func (b *Behavior) forEachIndex(id string) (int, bool) {
	if b.Graph == nil {
		return 0, false
	}
	cn, ok := b.Graph.Nodes[id]
	if !ok {
		return 0, false
	}
	for _, gid := range cn.Groups {
		if grp, ok := b.Graph.Groups[gid]; ok && grp.FromForEach {
			return grp.ForEachIndex, true
		}
	}
	return 0, false
}

// listItem picks the 1-based index-th item out of a bullet list (lines
// prefixed with "-" or "*"), so a for-each group's item edge hands each
// iteration its own element instead of the whole list (spec.md §4.2 step
// F's incoming list edge, scenario S4). Out-of-range selects the last
// item, keeping the group's own loop count (from its label) authoritative
// over however many lines the list actually has.
func listItem(list string, index int) string {
	var items []string
	for _, line := range strings.Split(list, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "-")
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)
		if line != "" {
			items = append(items, line)
		}
	}
	if len(items) == 0 {
		return list
	}
	if index < 1 {
		index = 1
	}
	if index > len(items) {
		index = len(items)
	}
	return items[index-1]
}

// roleHeader is the per-message block marker chat-converter/chat-response
// share (spec.md §4.6: default format template
// `"---\n# <u>{role}</u>\n\n{content}"`). Every formatted message starts a
// fresh block with its own header, so parseTranscript can split purely on
// this marker without needing to know how many messages came before it.
const roleHeaderPrefix = "# <u>"
const roleHeaderSuffix = "</u>"

// formatMessage renders one message through the default format template,
// the textual shape a chat-response edge accumulates on its target and a
// chat-converter edge later parses back (spec.md §8 invariant 7: "the
// chat-converter inverse of chat-response recovers the original message
// list from the default format template").
func formatMessage(role, content string) string {
	return fmt.Sprintf("---\n%s%s%s\n\n%s", roleHeaderPrefix, role, roleHeaderSuffix, content)
}

// parseTranscript is formatMessage's inverse: split a rendered transcript
// back into its typed message list. Text that never went through
// formatMessage (no role header found) is treated as a single user
// message, so a chat-converter edge sourced from a plain content node still
// behaves the way it always has.
func parseTranscript(text string) []objects.Message {
	blocks := strings.Split(text, "---\n"+roleHeaderPrefix)
	if len(blocks) <= 1 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []objects.Message{{Role: "user", Content: trimmed}}
	}

	var out []objects.Message
	for _, block := range blocks[1:] {
		end := strings.Index(block, roleHeaderSuffix)
		if end < 0 {
			continue
		}
		role := block[:end]
		rest := strings.TrimPrefix(block[end+len(roleHeaderSuffix):], "\n\n")
		rest = strings.TrimRight(rest, "\n")
		out = append(out, objects.Message{Role: role, Content: rest})
	}
	return out
}

func (b *Behavior) sourceContent(g *objects.Graph, source string) string {
	if n, ok := g.Nodes[source]; ok {
		return n.GetContent()
	}
	// A group source has no content of its own; callers that need a
	// for-each group's merged output go through package render directly
	// against its members' stamped versions instead of through an edge.
	return ""
}

// truncate re-applies the configured token budget to a node's full
// message history after a chat-converter edge appends to it, dropping the
// oldest messages first (spec.md §4.5).
func (b *Behavior) truncate(n *objects.Node) {
	if b.Budget == nil {
		return
	}
	msgs := n.GetMessages()
	converted := make([]tokenbudget.Message, len(msgs))
	for i, m := range msgs {
		converted[i] = tokenbudget.Message{Role: m.Role, Content: m.Content}
	}
	kept := b.Budget.Truncate(converted)

	out := make([]objects.Message, len(kept))
	for i, m := range kept {
		out[i] = objects.Message{Role: m.Role, Content: m.Content}
	}
	n.ReplaceMessages(out)
}

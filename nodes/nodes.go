// Package nodes implements C5: the behaviors that run once a node's
// dependencies are satisfied — content nodes resolve references and
// substitute variables; call nodes invoke an LLM and, for call:choose,
// pick a branch. Every collaborator a node needs (vault lookups, HTTP
// fetch, web search, sub-cannoli invocation, MCP tools) is expressed as a
// small interface here and adapted by its owning package, the same
// adapter-over-interface shape the teacher uses for vector stores and
// document loaders (rag/adapters.go).
package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yosida95/uritemplate/v3"

	"github.com/DeabLabs/cannoli-sub001/action"
	"github.com/DeabLabs/cannoli-sub001/cannref"
	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/llmprovider"
	"github.com/DeabLabs/cannoli-sub001/objects"
	"github.com/DeabLabs/cannoli-sub001/render"
)

// VariableStore resolves a named reference to its current value — a
// floating variable, a named input/output node, or a vault note/property
// (package vault implements the note/property half).
type VariableStore interface {
	Resolve(name string) (string, bool)
	Create(name, value string)
}

// Fetcher retrieves a URL's content as markdown (package fetcher).
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)

	// FetchWithOptions is the richer entry point an http node resolves its
	// {url, method, headers, timeout} config schema into (spec.md §4.5 HTTP
	// node). opts.Method/Headers/Timeout default to GET/nil/the fetcher's
	// own default when left zero.
	FetchWithOptions(ctx context.Context, url string, opts FetchOptions) (string, error)
}

// FetchOptions carries an http node's resolved per-request config onto its
// fetcher call.
type FetchOptions struct {
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

// Searcher runs a web search and returns a text summary of results
// (package search).
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// TemplateCatalog resolves a template name to its raw RFC 6570 template
// string, the http node's mode (e): node text of the form
// `template: <name>` instead of a literal URL or JSON request object
// (spec.md §4.5 HTTP node). The vault implementation holds only templates
// added with RegisterTemplate; floating canvas nodes are not read as
// templates.
type TemplateCatalog interface {
	Lookup(name string) (template string, ok bool)
}

// SubRunner invokes another cannoli graph by name and returns its output
// (package run, injected rather than imported directly to avoid a cycle
// between nodes and the top-level runner).
type SubRunner interface {
	RunSub(ctx context.Context, name string, args map[string]string) (string, error)
}

// ToolCaller invokes an MCP tool by name (package mcpbridge).
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// FileManager is the "file interface" a content:reference node's
// write-mode execution goes through (spec.md §4.5 Reference nodes,
// scenario S6), kept distinct from VariableStore since a note write
// carries an explicit append flag a plain variable Create doesn't have
// (package vault implements it).
type FileManager interface {
	EditNote(name, content string, append bool) error
}

// Behavior executes node vertices. Every collaborator is optional; a
// graph that never uses http/search/sub-cannoli/MCP nodes can leave the
// corresponding field nil.
type Behavior struct {
	Provider  llmprovider.Provider
	Variables VariableStore
	Fetcher   Fetcher
	Searcher  Searcher
	SubRunner SubRunner
	Tools     ToolCaller
	Actions   *action.Registry
	Files     FileManager
	Templates TemplateCatalog

	Graph *compiler.VerifiedGraph
}

func New(g *compiler.VerifiedGraph) *Behavior {
	return &Behavior{Graph: g}
}

// Execute dispatches to the behavior for n's resolved subtype (spec.md
// §4.5).
func (b *Behavior) Execute(ctx context.Context, g *objects.Graph, id string) (objects.Status, error) {
	n, ok := g.Nodes[id]
	if !ok {
		return objects.StatusError, fmt.Errorf("nodes: %s is not a node", id)
	}

	switch n.Subtype {
	case compiler.NodeContentInput, compiler.NodeContentStandard, compiler.NodeContentOutput:
		return b.runContent(ctx, g, n)
	case compiler.NodeContentFormatter:
		return b.runFormatter(ctx, g, n)
	case compiler.NodeContentReference:
		return b.runReference(ctx, n)
	case compiler.NodeContentHTTP:
		return b.runHTTP(ctx, g, n)
	case compiler.NodeContentSearch:
		return b.runSearch(ctx, n)
	case compiler.NodeContentSubCan:
		return b.runSubCannoli(ctx, n)
	case compiler.NodeFloatingVariable:
		return b.runFloating(n)
	case compiler.NodeCallStandard:
		return b.runCallStandard(ctx, n)
	case compiler.NodeCallChoose:
		return b.runCallChoose(ctx, n)
	case compiler.NodeCallForm:
		return b.runCallForm(ctx, n)
	default:
		return objects.StatusError, fmt.Errorf("nodes: unresolved subtype for %s", id)
	}
}

// substitute resolves every {{...}} reference in text against the node's
// accumulated dependency content and the shared variable store (spec.md
// §9 reference grammar).
func (b *Behavior) substitute(text string, local map[string]string) string {
	return cannref.Substitute(text, func(ref cannref.Reference) (string, bool) {
		if local != nil {
			if v, ok := local[ref.Name]; ok {
				return v, true
			}
		}
		if b.Variables != nil {
			return b.Variables.Resolve(ref.Name)
		}
		return "", false
	})
}

// runContent resolves a plain content node, following spec.md §4.5's
// priority order: a node that received one or more for-each-duplicated
// edges (edges.Behavior.Execute's version path) renders its merged content
// first (scenario S4); otherwise logging-edge aggregation, then a single
// qualifying write/chat-response/unlabeled edge, then a variable-value
// fan-in, and only once none of those apply does the node fall back to its
// own text after reference substitution.
func (b *Behavior) runContent(ctx context.Context, g *objects.Graph, n *objects.Node) (objects.Status, error) {
	if versions := n.GetVersions(); len(versions) > 0 {
		n.SetContent(render.Merge(versions, n.GetMergeModifier()))
		return objects.StatusComplete, nil
	}
	if content, ok := b.contentFromEdges(g, n.ID); ok {
		n.SetContent(content)
	} else {
		n.SetContent(b.substitute(n.Content, nil))
	}
	if n.Name != "" && b.Variables != nil {
		b.Variables.Create(n.Name, n.GetContent())
	}
	return objects.StatusComplete, nil
}

// qualifyingEdge pairs a node's compile-time edge (for subtype/modifier/
// reflexivity) with its runtime counterpart (for status/content).
type qualifyingEdge struct {
	ce *compiler.Edge
	re *objects.Edge
}

// completedIncoming returns every incoming edge of id that has finished
// executing, paired compile-time-plus-runtime, in source order.
func (b *Behavior) completedIncoming(g *objects.Graph, id string) []qualifyingEdge {
	if b.Graph == nil {
		return nil
	}
	var out []qualifyingEdge
	for _, ce := range b.Graph.IncomingEdges(id) {
		re, ok := g.Edges[ce.ID]
		if !ok || re.CurrentStatus() != objects.StatusComplete {
			continue
		}
		out = append(out, qualifyingEdge{ce: ce, re: re})
	}
	return out
}

// contentFromEdges implements spec.md §4.5 Content nodes' edge-driven
// priority: (1) concatenate every completed logging edge's content in
// source order; (2) a single completed write/chat-response/unlabeled edge
// (excluding folder/property-modified edges); (3) a variable-value fan-in,
// preferring a reflexive edge with non-empty content, then any reflexive
// edge, then the first edge (a simplified reading of the full a-d
// preference order in spec.md §4.5 Variable resolution, which also ranks
// "special variables lacking an edgeId" above reflexive edges — those are
// resolved through VariableStore.Resolve by package cannref instead of
// through this edge-priority path, so there is no edgeId-less edge here to
// rank). Returns ok=false when none apply, so the caller falls back to the
// node's own text.
func (b *Behavior) contentFromEdges(g *objects.Graph, id string) (string, bool) {
	edges := b.completedIncoming(g, id)

	var logParts []string
	for _, qe := range edges {
		if qe.ce.Subtype == compiler.EdgeLogging {
			logParts = append(logParts, qe.re.GetContent())
		}
	}
	if len(logParts) > 0 {
		return strings.Join(logParts, "\n"), true
	}

	var qualifying []qualifyingEdge
	for _, qe := range edges {
		if qe.ce.Modifier == compiler.ModifierFolder || qe.ce.Modifier == compiler.ModifierProperty {
			continue
		}
		switch qe.ce.Subtype {
		case compiler.EdgeWrite, compiler.EdgeChatResponse:
			qualifying = append(qualifying, qe)
		default:
			if qe.ce.Label == "" {
				qualifying = append(qualifying, qe)
			}
		}
	}
	if len(qualifying) == 1 {
		return qualifying[0].re.GetContent(), true
	}

	var firstReflexiveWithContent, firstReflexive, first *qualifyingEdge
	for i, qe := range edges {
		if qe.ce.Subtype != compiler.EdgeVariable {
			continue
		}
		if first == nil {
			first = &edges[i]
		}
		if qe.ce.Reflexive {
			if firstReflexive == nil {
				firstReflexive = &edges[i]
			}
			if firstReflexiveWithContent == nil && qe.re.GetContent() != "" {
				firstReflexiveWithContent = &edges[i]
			}
		}
	}
	switch {
	case firstReflexiveWithContent != nil:
		return firstReflexiveWithContent.re.GetContent(), true
	case firstReflexive != nil:
		return firstReflexive.re.GetContent(), true
	case first != nil:
		return first.re.GetContent(), true
	}

	return "", false
}

func (b *Behavior) runFormatter(ctx context.Context, g *objects.Graph, n *objects.Node) (objects.Status, error) {
	text := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(n.Content), `""`), `""`)
	n.SetContent(b.substitute(text, nil))
	return objects.StatusComplete, nil
}

// runReference resolves a content:reference node. With no incoming value it
// reads the referenced note/variable/floating node (spec.md §4.5 Reference
// nodes). With an incoming value (set by edges.Behavior when an edge
// targets a reference node) it writes instead: a note-link reference goes
// through the file interface with the edge's append flag (scenario S6);
// any other reference kind is a run-scoped variable Create.
func (b *Behavior) runReference(ctx context.Context, n *objects.Node) (objects.Status, error) {
	ref, ok := cannref.IsSoleContent(n.Content)
	if !ok {
		n.SetContent(b.substitute(n.Content, nil))
		return objects.StatusComplete, nil
	}

	if incoming := n.GetIncomingValue(); incoming != nil {
		if ref.Kind == cannref.KindNoteLink {
			if b.Files == nil {
				return objects.StatusWarning, nil
			}
			if err := b.Files.EditNote(ref.Name, incoming.Content, incoming.Append); err != nil {
				return objects.StatusError, err
			}
		} else if b.Variables != nil {
			b.Variables.Create(ref.Name, incoming.Content)
		}
		n.SetContent(incoming.Content)
		return objects.StatusComplete, nil
	}

	if b.Variables == nil {
		return objects.StatusWarning, nil
	}
	val, found := b.Variables.Resolve(ref.Name)
	if !found {
		return objects.StatusWarning, nil
	}
	n.SetContent(val)
	return objects.StatusComplete, nil
}

// runHTTP resolves the node's config schema (httpconfig.go), determines the
// request mode from the node's substituted text — a registered action
// lookup (mode a), a named URI template (mode e), a JSON request object
// (mode d), or an inline URL literal (mode c) — and executes it. An error
// becomes node status error when catch=true (the default); otherwise the
// error message is passed downstream as the node's own output and the node
// still completes (spec.md §4.5 HTTP node, scenario S5). The `"""mcp"""`
// delegation (mode b) is not implemented: it needs a goal-agent callback
// collaborator this package doesn't yet have a home for.
func (b *Behavior) runHTTP(ctx context.Context, g *objects.Graph, n *objects.Node) (objects.Status, error) {
	cfg := b.resolveHTTPConfig(g, n.ID)
	text := strings.TrimSpace(b.substitute(n.Content, nil))

	if actionName, argsJSON, ok := b.matchAction(text); ok {
		result, err := b.Actions.Call(ctx, actionName, argsJSON)
		if err != nil {
			if cfg.Catch {
				return objects.StatusError, err
			}
			n.SetContent(err.Error())
			return objects.StatusComplete, nil
		}
		n.SetContent(result)
		return objects.StatusComplete, nil
	}

	if b.Fetcher == nil {
		return objects.StatusError, fmt.Errorf("nodes: no fetcher configured for %s", n.ID)
	}

	url := cfg.URL
	opts := FetchOptions{Method: cfg.Method, Headers: cfg.Headers, Timeout: cfg.Timeout}

	if tmplName, ok := strings.CutPrefix(text, "template:"); ok && b.Templates != nil {
		expanded, err := b.expandTemplate(strings.TrimSpace(tmplName))
		if err != nil {
			if cfg.Catch {
				return objects.StatusError, err
			}
			n.SetContent(err.Error())
			return objects.StatusComplete, nil
		}
		url = expanded
		text = ""
	}

	if strings.HasPrefix(text, "{") {
		var req struct {
			URL     string            `json:"url"`
			Method  string            `json:"method"`
			Headers map[string]string `json:"headers"`
			Body    string            `json:"body"`
		}
		if err := json.Unmarshal([]byte(text), &req); err == nil {
			if req.URL != "" {
				url = req.URL
			}
			if req.Method != "" {
				opts.Method = strings.ToUpper(req.Method)
			}
			if len(req.Headers) > 0 {
				if opts.Headers == nil {
					opts.Headers = make(map[string]string, len(req.Headers))
				}
				for k, v := range req.Headers {
					opts.Headers[k] = v
				}
			}
			opts.Body = req.Body
		}
	} else if text != "" {
		url = text
	}

	result, err := b.Fetcher.FetchWithOptions(ctx, url, opts)
	if err != nil {
		if cfg.Catch {
			return objects.StatusError, err
		}
		n.SetContent(err.Error())
		return objects.StatusComplete, nil
	}
	n.SetContent(result)
	return objects.StatusComplete, nil
}

// expandTemplate resolves an RFC 6570 URI template registered under name
// against the run's variable store, filling every variable the template
// references from VariableStore.Resolve (spec.md §4.5 HTTP node mode e).
// A variable the store can't resolve expands as empty, the same lenient
// behavior cannref.Substitute gives an unresolved `{{var}}` reference.
func (b *Behavior) expandTemplate(name string) (string, error) {
	raw, ok := b.Templates.Lookup(name)
	if !ok {
		return "", fmt.Errorf("nodes: no registered template named %q", name)
	}
	tmpl, err := uritemplate.New(raw)
	if err != nil {
		return "", fmt.Errorf("nodes: invalid template %q: %w", name, err)
	}

	values := uritemplate.Values{}
	for _, v := range tmpl.Varnames() {
		varName := v.String()
		if b.Variables == nil {
			continue
		}
		if val, found := b.Variables.Resolve(varName); found {
			values.Set(varName, uritemplate.String(val))
		}
	}

	expanded, err := tmpl.Expand(values)
	if err != nil {
		return "", fmt.Errorf("nodes: expand template %q: %w", name, err)
	}
	return expanded, nil
}

// matchAction reads an http node's text as "<first line>\n<rest>" and
// reports whether the first line names a registered action (spec.md §4.5
// HTTP node mode a), returning the action's name and its argument JSON (the
// remainder of text, or "{}" if the node is single-line).
func (b *Behavior) matchAction(text string) (name, argsJSON string, ok bool) {
	if b.Actions == nil || text == "" {
		return "", "", false
	}
	first, rest, _ := strings.Cut(text, "\n")
	first = strings.TrimSpace(first)
	if !b.Actions.Has(first) {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		rest = "{}"
	}
	return first, rest, true
}

func (b *Behavior) runSearch(ctx context.Context, n *objects.Node) (objects.Status, error) {
	if b.Searcher == nil {
		return objects.StatusError, fmt.Errorf("nodes: no searcher configured for %s", n.ID)
	}
	query := strings.TrimSpace(b.substitute(n.Content, nil))
	text, err := b.Searcher.Search(ctx, query)
	if err != nil {
		return objects.StatusError, err
	}
	n.SetContent(text)
	return objects.StatusComplete, nil
}

func (b *Behavior) runSubCannoli(ctx context.Context, n *objects.Node) (objects.Status, error) {
	if b.SubRunner == nil {
		return objects.StatusError, fmt.Errorf("nodes: no sub-runner configured for %s", n.ID)
	}
	name := strings.TrimSpace(n.Content)
	out, err := b.SubRunner.RunSub(ctx, name, nil)
	if err != nil {
		return objects.StatusError, err
	}
	n.SetContent(out)
	return objects.StatusComplete, nil
}

func (b *Behavior) runFloating(n *objects.Node) (objects.Status, error) {
	if n.Name != "" && b.Variables != nil {
		b.Variables.Create(n.Name, n.GetContent())
	}
	return objects.StatusComplete, nil
}

func (b *Behavior) runCallStandard(ctx context.Context, n *objects.Node) (objects.Status, error) {
	if b.Provider == nil {
		return objects.StatusError, fmt.Errorf("nodes: no LLM provider configured for %s", n.ID)
	}
	messages := n.GetMessages()
	if len(messages) == 0 {
		messages = []objects.Message{{Role: "user", Content: n.GetContent()}}
	}
	reply, err := b.Provider.Complete(ctx, messages)
	if err != nil {
		return objects.StatusError, err
	}
	n.SetContent(reply)
	n.AppendMessage(objects.Message{Role: "assistant", Content: reply})
	return objects.StatusComplete, nil
}

func (b *Behavior) runCallChoose(ctx context.Context, n *objects.Node) (objects.Status, error) {
	if b.Provider == nil {
		return objects.StatusError, fmt.Errorf("nodes: no LLM provider configured for %s", n.ID)
	}
	options := b.choiceOptions(n.ID)
	messages := n.GetMessages()
	prompt := n.GetContent()
	if len(options) > 0 {
		prompt += "\n\nReply with exactly one of: " + strings.Join(options, ", ")
	}
	messages = append(messages, objects.Message{Role: "user", Content: prompt})

	reply, err := b.Provider.Complete(ctx, messages)
	if err != nil {
		return objects.StatusError, err
	}
	n.SetContent(reply)
	n.SetChoice(matchOption(reply, options))
	return objects.StatusComplete, nil
}

// choiceOptions lists the labels of a call:choose node's outgoing choice
// edges, in compile order.
func (b *Behavior) choiceOptions(id string) []string {
	if b.Graph == nil {
		return nil
	}
	var out []string
	for _, e := range b.Graph.OutgoingEdges(id) {
		if e.Subtype == compiler.EdgeChoice {
			out = append(out, e.Label)
		}
	}
	return out
}

func matchOption(reply string, options []string) string {
	reply = strings.TrimSpace(reply)
	for _, o := range options {
		if strings.EqualFold(reply, o) {
			return o
		}
	}
	for _, o := range options {
		if strings.Contains(strings.ToLower(reply), strings.ToLower(o)) {
			return o
		}
	}
	return reply
}

// runCallForm parses the model's reply as "name: value" lines, one per
// outgoing field edge, and stores each field under its edge's label so
// the field edges' own Execute can forward per-field content (spec.md
// §4.5 Form call node).
func (b *Behavior) runCallForm(ctx context.Context, n *objects.Node) (objects.Status, error) {
	if b.Provider == nil {
		return objects.StatusError, fmt.Errorf("nodes: no LLM provider configured for %s", n.ID)
	}
	fields := b.fieldLabels(n.ID)
	messages := n.GetMessages()
	prompt := n.GetContent()
	if len(fields) > 0 {
		prompt += "\n\nReply with one line per field, formatted as name: value, for fields: " + strings.Join(fields, ", ")
	}
	messages = append(messages, objects.Message{Role: "user", Content: prompt})

	reply, err := b.Provider.Complete(ctx, messages)
	if err != nil {
		return objects.StatusError, err
	}
	n.SetContent(reply)
	n.SetFields(parseFields(reply, fields))
	return objects.StatusComplete, nil
}

// parseFields reads "name: value" lines out of a call:form reply, one per
// known field label; a field with no matching line is left unset so its
// edge can fall back to the raw reply (spec.md §4.5 Form call node).
func parseFields(reply string, fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, line := range strings.Split(reply, "\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		for _, f := range fields {
			if strings.EqualFold(name, f) {
				out[f] = strings.TrimSpace(value)
				break
			}
		}
	}
	return out
}

func (b *Behavior) fieldLabels(id string) []string {
	if b.Graph == nil {
		return nil
	}
	var out []string
	for _, e := range b.Graph.OutgoingEdges(id) {
		if e.Subtype == compiler.EdgeField {
			out = append(out, e.Label)
		}
	}
	return out
}

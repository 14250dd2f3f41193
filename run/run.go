// Package run wires C1-C6 together into one entry point: parse a canvas,
// compile it, hydrate it, and drive it to completion, the same
// parse-then-compile-then-execute shape the teacher's
// graph.NewStateGraph().Compile().Invoke() chain follows, reinterpreted for
// cannoli's event-driven scheduler instead of the teacher's lock-step one.
package run

import (
	"context"
	"fmt"
	"sync"

	"github.com/DeabLabs/cannoli-sub001/action"
	"github.com/DeabLabs/cannoli-sub001/cannlog"
	"github.com/DeabLabs/cannoli-sub001/canvas"
	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/edges"
	"github.com/DeabLabs/cannoli-sub001/fetcher"
	"github.com/DeabLabs/cannoli-sub001/llmprovider"
	"github.com/DeabLabs/cannoli-sub001/nodes"
	"github.com/DeabLabs/cannoli-sub001/objects"
	"github.com/DeabLabs/cannoli-sub001/persistor"
	"github.com/DeabLabs/cannoli-sub001/scheduler"
	"github.com/DeabLabs/cannoli-sub001/search"
	"github.com/DeabLabs/cannoli-sub001/tokenbudget"
	"github.com/DeabLabs/cannoli-sub001/vault"
)

// Stoppage describes why a run ended, the cannoli analogue of the
// teacher's NodeInterrupt/GraphCancelled typed-error reporting (graph/errors.go)
// surfaced as a value instead of only an error, since "completed with
// warnings" isn't itself an error.
type Stoppage struct {
	Reason string // "complete", "error", "cancelled"
	Err    error
}

// Collaborators bundles every optional dependency a graph's nodes might
// invoke. A nil field does not always make its node subtype error: a
// reference node with no Variables or Files ends with a warning, an http
// template with no Templates is fetched as a plain URL, a nil Logger is
// replaced by the default logger, and a nil Persistor or Budget turns
// checkpointing or truncation off.
type Collaborators struct {
	Provider  llmprovider.Provider
	Variables nodes.VariableStore
	Fetcher   nodes.Fetcher
	Searcher  nodes.Searcher
	Tools     nodes.ToolCaller
	Actions   *action.Registry
	Files     nodes.FileManager
	Templates nodes.TemplateCatalog
	Budget    *tokenbudget.Budget
	Persistor persistor.Persistor
	Logger    cannlog.Logger

	// CheckpointEvery autosaves a checkpoint after this many vertices
	// reach a terminal status; zero disables autosave.
	CheckpointEvery int
}

// Runner compiles and executes cannoli graphs, and resolves sub-cannoli
// invocations by name against a registry of named canvas sources — this is
// what lets a content:sub-cannoli node call back into Runner without nodes
// importing run directly (nodes.SubRunner is satisfied by *Runner).
type Runner struct {
	collab Collaborators
	logger cannlog.Logger

	mu   sync.RWMutex
	subs map[string]canvas.Data
}

func NewRunner(collab Collaborators) *Runner {
	logger := collab.Logger
	if logger == nil {
		logger = cannlog.NewDefaultLogger(cannlog.LevelInfo)
	}
	return &Runner{collab: collab, logger: logger, subs: make(map[string]canvas.Data)}
}

// RegisterSub makes a named canvas available to content:sub-cannoli nodes
// invoking it by that name.
func (r *Runner) RegisterSub(name string, data canvas.Data) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[name] = data
}

// RunSub implements nodes.SubRunner: run a previously-registered canvas to
// completion and return its designated output (the content of its last
// named content:output node, or its final non-empty node content as a
// fallback).
func (r *Runner) RunSub(ctx context.Context, name string, args map[string]string) (string, error) {
	r.mu.RLock()
	data, ok := r.subs[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("run: no registered sub-cannoli named %q", name)
	}

	result, err := r.Run(ctx, data)
	if err != nil {
		return "", err
	}
	return result.Output(), nil
}

// Result is a finished run's observable outcome: every vertex's final
// status/content plus how the run stopped.
type Result struct {
	Graph    *objects.Graph
	Stoppage Stoppage
}

// Output returns the last named content:output node's content, falling
// back to the last node in compile order with non-empty content.
func (res *Result) Output() string {
	var lastNamed, lastAny string
	for _, id := range res.Graph.Order {
		n, ok := res.Graph.Nodes[id]
		if !ok {
			continue
		}
		content := n.GetContent()
		if content == "" {
			continue
		}
		lastAny = content
		if n.Subtype == compiler.NodeContentOutput && n.Name != "" {
			lastNamed = content
		}
	}
	if lastNamed != "" {
		return lastNamed
	}
	return lastAny
}

// Run compiles data and drives it to completion (spec.md §4: C2 -> C3 ->
// C4 in sequence).
func (r *Runner) Run(ctx context.Context, data canvas.Data) (*Result, error) {
	vg := compiler.Compile(data, compiler.DefaultConfig())
	if len(vg.Errors) > 0 {
		r.logger.Warn("compile produced %d non-fatal error(s); continuing", len(vg.Errors))
	}

	g := objects.Hydrate(vg)

	nodeBehavior := nodes.New(vg)
	nodeBehavior.Provider = r.collab.Provider
	nodeBehavior.Variables = r.collab.Variables
	nodeBehavior.Fetcher = r.collab.Fetcher
	nodeBehavior.Searcher = r.collab.Searcher
	nodeBehavior.SubRunner = r
	nodeBehavior.Tools = r.collab.Tools
	nodeBehavior.Actions = r.collab.Actions
	nodeBehavior.Files = r.collab.Files
	nodeBehavior.Templates = r.collab.Templates

	edgeBehavior := edges.New(vg, r.collab.Budget)

	sched := scheduler.New(g, dispatcher{nodes: nodeBehavior, edges: edgeBehavior})

	if r.collab.Persistor != nil && r.collab.CheckpointEvery > 0 {
		attachCheckpointing(ctx, g, r.collab.Persistor, r.collab.CheckpointEvery)
	}

	err := sched.Run(ctx)

	stoppage := Stoppage{Reason: "complete"}
	switch {
	case ctx.Err() != nil:
		stoppage = Stoppage{Reason: "cancelled", Err: ctx.Err()}
	case err != nil:
		stoppage = Stoppage{Reason: "error", Err: err}
	}

	return &Result{Graph: g, Stoppage: stoppage}, err
}

// dispatcher routes a vertex id to the node or edge behavior that owns it,
// satisfying scheduler.Executor without either behavior package needing to
// know about the other.
type dispatcher struct {
	nodes *nodes.Behavior
	edges *edges.Behavior
}

func (d dispatcher) Execute(ctx context.Context, g *objects.Graph, id string) (objects.Status, error) {
	if _, ok := g.Nodes[id]; ok {
		return d.nodes.Execute(ctx, g, id)
	}
	if _, ok := g.Edges[id]; ok {
		return d.edges.Execute(ctx, g, id)
	}
	return objects.StatusError, fmt.Errorf("run: %s is neither a node nor an edge", id)
}

// DefaultCollaborators builds a Collaborators wired to cannoli's own
// fetcher/search/vault packages from a minimal set of inputs, sparing a
// caller from assembling every field by hand for the common case.
func DefaultCollaborators(apiKey, model, vaultPath string, maxContextTokens int, searchEndpoint string) (Collaborators, error) {
	provider, err := llmprovider.NewOpenAI(apiKey, model)
	if err != nil {
		return Collaborators{}, fmt.Errorf("run: build provider: %w", err)
	}
	budget, err := tokenbudget.New(model, maxContextTokens)
	if err != nil {
		return Collaborators{}, fmt.Errorf("run: build token budget: %w", err)
	}

	vlt := vault.New(vaultPath)
	collab := Collaborators{
		Provider:  provider,
		Variables: vlt,
		Fetcher:   fetcher.New(),
		Files:     vlt,
		Templates: vlt,
		Budget:    budget,
	}
	if searchEndpoint != "" {
		collab.Searcher = search.New(searchEndpoint)
	}
	return collab, nil
}

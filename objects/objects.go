// Package objects implements C3: the runtime object model hydrated from a
// compiler.VerifiedGraph. Where a compiler.Node/Edge/Group is immutable
// compile-time data, a Node/Edge/Group here carries the mutable status,
// content and message state the scheduler (package scheduler) advances as
// the graph executes.
package objects

import (
	"context"
	"sync"

	"github.com/DeabLabs/cannoli-sub001/compiler"
)

// Status is a vertex's position in the status lattice (spec.md §3):
// pending -> executing -> {complete, rejected, error, warning}. Repeat
// groups additionally cycle through versionComplete between loops.
type Status string

const (
	StatusPending         Status = "pending"
	StatusExecuting       Status = "executing"
	StatusComplete        Status = "complete"
	StatusRejected        Status = "rejected"
	StatusError           Status = "error"
	StatusWarning         Status = "warning"
	StatusVersionComplete Status = "version-complete"
)

// Terminal reports whether a status is a fixed point the scheduler will
// never advance past on its own (a repeat/for-each loop resets explicitly
// via Reset, which is not "advancing").
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusRejected, StatusError, StatusWarning:
		return true
	}
	return false
}

// Message is one chat-format message accumulated on a node or edge as
// messages flow along chat/chat-converter/chat-response/system-message
// edges (spec.md §4.5).
type Message struct {
	Role    string
	Content string
}

// Version tags one piece of content with the for-each iteration index (and,
// once rendered, the header/sub-header) it was produced at, so the
// message-merge renderer can order and group duplicate vertices back
// together (spec.md §4.5 message-merge).
type Version struct {
	Index     int
	Header    string
	SubHeader string
	Content   string
}

// Listener is notified every time an object's status changes. Modeled on
// the teacher's NodeListener pub-sub (graph/listeners.go): callbacks run
// off the calling goroutine so a slow or panicking listener can't corrupt
// scheduler state.
type Listener interface {
	OnStatusChange(ctx context.Context, objectID string, status Status)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(ctx context.Context, objectID string, status Status)

func (f ListenerFunc) OnStatusChange(ctx context.Context, objectID string, status Status) {
	f(ctx, objectID, status)
}

// Base is embedded by Node, Edge and Group: the id, current status, and
// the notifier every vertex needs regardless of kind.
type Base struct {
	ID     string
	Status Status

	mu        sync.RWMutex
	listeners []Listener
}

// AddListener registers l to be notified of every future status change.
func (b *Base) AddListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// SetStatus updates the status and notifies listeners. Notification runs
// in its own goroutine per listener, with panic recovery, so a panicking
// listener cannot crash the scheduler (spec.md §7: scheduler failures
// must not cascade from observer code). SetStatus waits for every
// listener to return before it returns, so a slow listener delays it.
func (b *Base) SetStatus(ctx context.Context, s Status) {
	b.mu.Lock()
	b.Status = s
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, l := range listeners {
		wg.Add(1)
		go func(l Listener) {
			defer wg.Done()
			defer func() { recover() }()
			l.OnStatusChange(ctx, b.ID, s)
		}(l)
	}
	wg.Wait()
}

func (b *Base) CurrentStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Status
}

// Node is the runtime object for a compiled node: its compile-time shape
// plus mutable content, accumulated messages and loop position.
type Node struct {
	Base
	Subtype compiler.NodeSubtype
	Name    string

	mu          sync.RWMutex
	Content     string
	Messages    []Message
	CurrentLoop int
	Choice      string            // selected branch label, for call:choose nodes
	Fields      map[string]string // parsed per-field values, for call:form nodes
	Incoming    *IncomingValue    // set by an incoming edge targeting a content:reference node

	versions      []Version
	mergeModifier compiler.Modifier
}

// IncomingValue is the value an edge delivers to a content:reference node,
// distinguishing write-mode from read-mode execution (spec.md §4.5
// Reference nodes: "read ... or write ... depending on whether an
// incoming value is present"). Append mirrors a chat-response edge's
// streaming-append semantics; any other edge subtype overwrites.
type IncomingValue struct {
	Content string
	Append  bool
}

func (n *Node) SetContent(content string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Content = content
}

func (n *Node) SetChoice(choice string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Choice = choice
}

func (n *Node) GetChoice() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.Choice
}

// SetFields stores a call:form node's parsed per-field reply values, read
// back by each outgoing field edge's own Execute.
func (n *Node) SetFields(fields map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Fields = fields
}

// GetField returns a named field's parsed value, if the node has run and
// produced one.
func (n *Node) GetField(name string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.Fields[name]
	return v, ok
}

func (n *Node) GetContent() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.Content
}

func (n *Node) AppendMessage(m Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, m)
}

func (n *Node) GetMessages() []Message {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Message, len(n.Messages))
	copy(out, n.Messages)
	return out
}

// ReplaceMessages overwrites a node's full message history, used by the
// chat-converter edge behavior after truncating to fit a token budget.
func (n *Node) ReplaceMessages(msgs []Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = msgs
}

// SetIncomingValue records a write-mode value for a content:reference
// node, delivered by an edge instead of the node's own text.
func (n *Node) SetIncomingValue(content string, append bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Incoming = &IncomingValue{Content: content, Append: append}
}

// GetIncomingValue returns the value set by SetIncomingValue, if any.
func (n *Node) GetIncomingValue() *IncomingValue {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.Incoming
}

// AddVersion records one for-each iteration's content arriving on a
// duplicated outgoing edge (compiler.Edge.Versions, spec.md §4.2 step F),
// along with the destination edge's merge modifier (table/list/headers),
// shared identically across every duplicate since it's cloned unchanged
// per iteration.
func (n *Node) AddVersion(v Version, modifier compiler.Modifier) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.versions = append(n.versions, v)
	n.mergeModifier = modifier
}

// GetVersions returns every version recorded by AddVersion so far.
func (n *Node) GetVersions() []Version {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Version, len(n.versions))
	copy(out, n.versions)
	return out
}

// GetMergeModifier returns the modifier last passed to AddVersion.
func (n *Node) GetMergeModifier() compiler.Modifier {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mergeModifier
}

// Edge is the runtime object for a compiled edge: whether it has fired,
// the content it carries, and (for for-each-duplicated edges) the version
// tag stamped on it at compile time.
type Edge struct {
	Base
	Subtype     compiler.EdgeSubtype
	Source      string
	Target      string
	Label       string
	AddMessages bool
	Modifier    compiler.Modifier
	Versions    []int

	mu      sync.RWMutex
	Content string
}

func (e *Edge) SetContent(content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Content = content
}

func (e *Edge) GetContent() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Content
}

// Group is the runtime object for a compiled group: its members and, for
// repeat groups, the current/max loop count.
type Group struct {
	Base
	Subtype      compiler.GroupSubtype
	Members      []string
	MaxLoops     int
	ForEachIndex int

	mu          sync.Mutex
	CurrentLoop int
}

func (g *Group) IncrementLoop() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CurrentLoop++
	return g.CurrentLoop
}

func (g *Group) LoopCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.CurrentLoop
}

// Graph is the hydrated runtime object graph: one Node/Edge/Group per
// compiler.VerifiedGraph entry, all StatusPending, ready for the
// scheduler to drive to completion.
type Graph struct {
	Nodes  map[string]*Node
	Edges  map[string]*Edge
	Groups map[string]*Group
	Order  []string

	Source *compiler.VerifiedGraph
}

// Hydrate builds the runtime Graph for a compiled graph (spec.md §4.3:
// "C3 hydrates a VerifiedGraph into mutable runtime objects").
func Hydrate(vg *compiler.VerifiedGraph) *Graph {
	g := &Graph{
		Nodes:  make(map[string]*Node, len(vg.Nodes)),
		Edges:  make(map[string]*Edge, len(vg.Edges)),
		Groups: make(map[string]*Group, len(vg.Groups)),
		Order:  append([]string(nil), vg.Order...),
		Source: vg,
	}
	for id, n := range vg.Nodes {
		g.Nodes[id] = &Node{
			Base:    Base{ID: id, Status: StatusPending},
			Subtype: n.Subtype,
			Name:    n.Name,
			Content: n.Text,
		}
	}
	for id, e := range vg.Edges {
		g.Edges[id] = &Edge{
			Base:        Base{ID: id, Status: StatusPending},
			Subtype:     e.Subtype,
			Source:      e.Source,
			Target:      e.Target,
			Label:       e.Label,
			AddMessages: e.AddMessages,
			Modifier:    e.Modifier,
			Versions:    append([]int(nil), e.Versions...),
		}
	}
	for id, grp := range vg.Groups {
		g.Groups[id] = &Group{
			Base:         Base{ID: id, Status: StatusPending},
			Subtype:      grp.Subtype,
			Members:      append([]string(nil), grp.Members...),
			MaxLoops:     grp.MaxLoops,
			ForEachIndex: grp.ForEachIndex,
		}
	}
	return g
}

// Reset returns a node/group to StatusPending and clears its per-loop
// state, used at the top of every repeat-group iteration (spec.md §4.5
// Repeat groups).
func (g *Graph) Reset(ctx context.Context, id string) {
	if n, ok := g.Nodes[id]; ok {
		n.mu.Lock()
		n.Content = ""
		n.Messages = nil
		n.Choice = ""
		n.Fields = nil
		n.mu.Unlock()
		n.SetStatus(ctx, StatusPending)
		return
	}
	if e, ok := g.Edges[id]; ok {
		e.mu.Lock()
		e.Content = ""
		e.mu.Unlock()
		e.SetStatus(ctx, StatusPending)
		return
	}
	if grp, ok := g.Groups[id]; ok {
		grp.SetStatus(ctx, StatusPending)
	}
}

package run

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/DeabLabs/cannoli-sub001/objects"
	"github.com/DeabLabs/cannoli-sub001/persistor"
)

// attachCheckpointing registers a listener on every vertex that saves a
// full-graph snapshot to p every checkpointEvery terminal status changes,
// the cannoli equivalent of the teacher's CheckpointListener.OnGraphStep
// autosave (graph/checkpointing.go) — reworked from "one listener per
// node.Invoke call in a lock-step loop" to "one shared listener counting
// terminal transitions across an event-driven graph."
func attachCheckpointing(ctx context.Context, g *objects.Graph, p persistor.Persistor, checkpointEvery int) {
	cp := &checkpointer{graph: g, store: p, every: checkpointEvery, runID: runIDFor(g)}
	listener := objects.ListenerFunc(cp.onStatusChange)

	for _, n := range g.Nodes {
		n.AddListener(listener)
	}
	for _, e := range g.Edges {
		e.AddListener(listener)
	}
	for _, grp := range g.Groups {
		grp.AddListener(listener)
	}
}

type checkpointer struct {
	graph *objects.Graph
	store persistor.Persistor
	every int
	runID string

	mu      sync.Mutex
	count   int
	version int
}

func (c *checkpointer) onStatusChange(ctx context.Context, objectID string, status objects.Status) {
	if !status.Terminal() {
		return
	}
	c.mu.Lock()
	c.count++
	due := c.count%c.every == 0
	if due {
		c.version++
	}
	version := c.version
	c.mu.Unlock()

	if !due {
		return
	}
	_ = c.store.Save(ctx, c.snapshot(objectID, version))
}

func (c *checkpointer) snapshot(lastObjectID string, version int) *persistor.Checkpoint {
	statuses := make(map[string]string, len(c.graph.Order))
	content := make(map[string]string)
	for id, n := range c.graph.Nodes {
		statuses[id] = string(n.CurrentStatus())
		if text := n.GetContent(); text != "" {
			content[id] = text
		}
	}
	for id, e := range c.graph.Edges {
		statuses[id] = string(e.CurrentStatus())
	}
	for id, grp := range c.graph.Groups {
		statuses[id] = string(grp.CurrentStatus())
	}

	return &persistor.Checkpoint{
		ID:        checkpointID(c.runID, version),
		RunID:     c.runID,
		NodeName:  lastObjectID,
		Statuses:  statuses,
		Content:   content,
		Timestamp: time.Now(),
		Version:   version,
	}
}

func runIDFor(g *objects.Graph) string {
	if len(g.Order) == 0 {
		return "run"
	}
	return "run-" + g.Order[0]
}

func checkpointID(runID string, version int) string {
	return runID + "#" + strconv.Itoa(version)
}

// Package persistor implements run checkpointing: periodically snapshotting
// a graph's per-vertex status/content so a run's progress can be inspected.
// Nothing in this module restores or resumes a run from a checkpoint.
// The interface and Checkpoint shape are grounded directly
// on the teacher's store.CheckpointStore (store/checkpoint.go) and
// graph/checkpointing.go's usage of it; sqlite/postgres/redis backends are
// new, since the teacher only ships memory and file-based stores.
package persistor

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Checkpoint is one saved snapshot of a run, the cannoli analogue of the
// teacher's store.Checkpoint — "State any" becomes the two concrete maps a
// cannoli graph actually needs to resume: per-vertex status and per-vertex
// content/message state (serialized by the caller, typically to JSON,
// before being handed to a non-memory Persistor).
type Checkpoint struct {
	ID        string
	RunID     string
	NodeName  string
	Statuses  map[string]string
	Content   map[string]string
	Metadata  map[string]any
	Timestamp time.Time
	Version   int
}

// Persistor defines checkpoint persistence, matching the teacher's
// CheckpointStore method set (Save/Load/List/Delete/Clear).
type Persistor interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, checkpointID string) (*Checkpoint, error)
	List(ctx context.Context, runID string) ([]*Checkpoint, error)
	Delete(ctx context.Context, checkpointID string) error
	Clear(ctx context.Context, runID string) error
}

// Latest returns the highest-Version checkpoint for runID, or nil if none
// exist — every backend's List order isn't guaranteed, so callers resuming
// a run should go through this rather than assuming List's last element is
// newest (the teacher's own graph/checkpointing.go GetState has this exact
// bug, assumed-sorted instead of actually sorted; fixed here).
func Latest(ctx context.Context, p Persistor, runID string) (*Checkpoint, error) {
	cps, err := p.List(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, nil
	}
	sort.Slice(cps, func(i, j int) bool { return cps[i].Version < cps[j].Version })
	return cps[len(cps)-1], nil
}

// MemoryPersistor is an in-memory Persistor, used for tests and for runs
// that don't need to survive a process restart.
type MemoryPersistor struct {
	mu          sync.Mutex
	checkpoints map[string]*Checkpoint
}

func NewMemoryPersistor() *MemoryPersistor {
	return &MemoryPersistor{checkpoints: make(map[string]*Checkpoint)}
}

func (m *MemoryPersistor) Save(ctx context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *cp
	m.checkpoints[cp.ID] = &cpy
	return nil
}

func (m *MemoryPersistor) Load(ctx context.Context, checkpointID string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[checkpointID]
	if !ok {
		return nil, nil
	}
	cpy := *cp
	return &cpy, nil
}

func (m *MemoryPersistor) List(ctx context.Context, runID string) ([]*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Checkpoint
	for _, cp := range m.checkpoints {
		if cp.RunID == runID {
			cpy := *cp
			out = append(out, &cpy)
		}
	}
	return out, nil
}

func (m *MemoryPersistor) Delete(ctx context.Context, checkpointID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, checkpointID)
	return nil
}

func (m *MemoryPersistor) Clear(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cp := range m.checkpoints {
		if cp.RunID == runID {
			delete(m.checkpoints, id)
		}
	}
	return nil
}

// Package mocks provides small, call-recording fakes for every
// collaborator a run.Runner can be wired to — the same
// configured-response-plus-call-log shape as the teacher's own
// adapter.mockLLM (adapter/llm_adapter_test.go) and rag/store.MockEmbedder,
// reused here across packages instead of redefined per _test.go file so
// the S1-S6 scenario tests in package run share one set of fakes.
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/DeabLabs/cannoli-sub001/nodes"
	"github.com/DeabLabs/cannoli-sub001/objects"
	"github.com/DeabLabs/cannoli-sub001/persistor"
)

// Provider is a scripted llmprovider.Provider: each call to Complete pops
// the next queued reply (or repeats the last one once the queue is
// empty), recording every prompt it was given. Reply, when set, computes
// the response from the incoming messages instead — used by scenarios
// where several concurrent for-each iterations need distinct,
// content-derived replies rather than one fixed queue.
type Provider struct {
	mu      sync.Mutex
	Replies []string
	Reply   func(messages []objects.Message) string
	Err     error
	Calls   [][]objects.Message
}

func (p *Provider) Complete(ctx context.Context, messages []objects.Message) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, messages)
	if p.Err != nil {
		p.mu.Unlock()
		return "", p.Err
	}
	replyFn := p.Reply
	p.mu.Unlock()
	if replyFn != nil {
		return replyFn(messages), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Replies) == 0 {
		return "", nil
	}
	reply := p.Replies[0]
	if len(p.Replies) > 1 {
		p.Replies = p.Replies[1:]
	}
	return reply, nil
}

func (p *Provider) Stream(ctx context.Context, messages []objects.Message, chunk func(string)) (string, error) {
	reply, err := p.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	if chunk != nil && reply != "" {
		chunk(reply)
	}
	return reply, nil
}

// Variables is an in-memory nodes.VariableStore, standing in for
// package vault's memory half without touching disk.
type Variables struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewVariables(seed map[string]string) *Variables {
	v := &Variables{values: make(map[string]string, len(seed))}
	for k, val := range seed {
		v.values[k] = val
	}
	return v
}

func (v *Variables) Resolve(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.values[name]
	return val, ok
}

func (v *Variables) Create(name, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[name] = value
}

// EditNoteCall records one nodes.FileManager.EditNote invocation, the
// exact shape scenario S6 asserts against.
type EditNoteCall struct {
	Name    string
	Content string
	Append  bool
}

// Files is a nodes.FileManager that records every EditNote call instead
// of touching disk.
type Files struct {
	mu    sync.Mutex
	Err   error
	calls []EditNoteCall
}

func (f *Files) EditNote(name, content string, append bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, EditNoteCall{Name: name, Content: content, Append: append})
	return f.Err
}

// Calls returns every EditNote invocation recorded so far, in order.
func (f *Files) Calls() []EditNoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EditNoteCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// Fetcher is a scripted nodes.Fetcher: Err, when set, is returned for
// every url; otherwise Results maps a url to a canned response, and an
// unscripted url gets a not-found error.
type Fetcher struct {
	mu      sync.Mutex
	Results map[string]string
	Err     error
	Calls   []string
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchWithOptions(ctx, url, nodes.FetchOptions{})
}

func (f *Fetcher) FetchWithOptions(ctx context.Context, url string, opts nodes.FetchOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, url)
	if f.Err != nil {
		return "", f.Err
	}
	if result, ok := f.Results[url]; ok {
		return result, nil
	}
	return "", fmt.Errorf("mocks: no scripted fetcher result for %q", url)
}

// Persistor is an in-memory persistor.Persistor, for runs that exercise
// checkpointing without a real database backend.
type Persistor struct {
	mu          sync.Mutex
	checkpoints map[string]*persistor.Checkpoint
}

func NewPersistor() *Persistor {
	return &Persistor{checkpoints: make(map[string]*persistor.Checkpoint)}
}

func (p *Persistor) Save(ctx context.Context, cp *persistor.Checkpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkpoints[cp.ID] = cp
	return nil
}

func (p *Persistor) Load(ctx context.Context, checkpointID string) (*persistor.Checkpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkpoints[checkpointID], nil
}

func (p *Persistor) List(ctx context.Context, runID string) ([]*persistor.Checkpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*persistor.Checkpoint
	for _, cp := range p.checkpoints {
		if cp.RunID == runID {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (p *Persistor) Delete(ctx context.Context, checkpointID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.checkpoints, checkpointID)
	return nil
}

func (p *Persistor) Clear(ctx context.Context, runID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, cp := range p.checkpoints {
		if cp.RunID == runID {
			delete(p.checkpoints, id)
		}
	}
	return nil
}

// Action is a scripted action.Action: it returns Result/Err and records
// every argsJSON it was called with.
type Action struct {
	ActionName string
	Result     string
	Err        error
	Calls      []string
}

func (a *Action) Name() string { return a.ActionName }

func (a *Action) Call(ctx context.Context, argsJSON string) (string, error) {
	a.Calls = append(a.Calls, argsJSON)
	if a.Err != nil {
		return "", a.Err
	}
	return a.Result, nil
}

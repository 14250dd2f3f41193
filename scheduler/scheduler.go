// Package scheduler implements C4: the event-driven executor that drives a
// hydrated objects.Graph to completion. Unlike the teacher's lock-step
// superstep loop (graph.StateRunnable.Invoke, which re-evaluates every
// node on every tick), this scheduler is purely reactive — a vertex is
// evaluated exactly when one of its dependencies changes status, per
// spec.md §4.4's readiness and rejection rules.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/objects"
)

// Executor runs one node or edge's behavior and reports the terminal
// status it finished in. Node and edge behaviors (packages nodes, edges)
// implement this; the scheduler itself never inspects node/edge subtypes.
type Executor interface {
	Execute(ctx context.Context, g *objects.Graph, id string) (objects.Status, error)
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, g *objects.Graph, id string) (objects.Status, error)

func (f ExecutorFunc) Execute(ctx context.Context, g *objects.Graph, id string) (objects.Status, error) {
	return f(ctx, g, id)
}

// Scheduler drives one objects.Graph to completion against a supplied
// Executor.
type Scheduler struct {
	graph *objects.Graph
	exec  Executor

	mu         sync.Mutex
	started    map[string]bool
	dependents map[string][]string

	wg    sync.WaitGroup
	errMu sync.Mutex
	errs  []error
}

// New builds a Scheduler for g. The reverse-dependency index is built
// once up front from the compiled graph's Dependencies fields (spec.md §3
// invariant 6 / §4.2 step G), so every status change only has to look up
// its direct dependents rather than rescan the whole graph.
func New(g *objects.Graph, exec Executor) *Scheduler {
	s := &Scheduler{
		graph:      g,
		exec:       exec,
		started:    make(map[string]bool),
		dependents: make(map[string][]string),
	}
	for _, id := range g.Order {
		for _, dep := range s.depsOf(id) {
			s.dependents[dep] = append(s.dependents[dep], id)
		}
	}
	return s
}

func (s *Scheduler) depsOf(id string) []string {
	if n, ok := s.graph.Source.Nodes[id]; ok {
		return n.Dependencies
	}
	if e, ok := s.graph.Source.Edges[id]; ok {
		return e.Dependencies
	}
	if grp, ok := s.graph.Source.Groups[id]; ok {
		return grp.Dependencies
	}
	return nil
}

func (s *Scheduler) statusOf(id string) objects.Status {
	if n, ok := s.graph.Nodes[id]; ok {
		return n.CurrentStatus()
	}
	if e, ok := s.graph.Edges[id]; ok {
		return e.CurrentStatus()
	}
	if grp, ok := s.graph.Groups[id]; ok {
		return grp.CurrentStatus()
	}
	return objects.StatusPending
}

func (s *Scheduler) isGroup(id string) bool {
	_, ok := s.graph.Groups[id]
	return ok
}

// Run evaluates every vertex with no unmet dependency, then reacts to
// status changes until the whole graph reaches a terminal state or ctx is
// cancelled. It returns the first error any node/edge execution reported
// (spec.md §7: "the first node/edge error is surfaced; the run otherwise
// continues draining in-flight work").
func (s *Scheduler) Run(ctx context.Context) error {
	for _, id := range s.graph.Order {
		s.evaluate(ctx, id)
	}
	s.wg.Wait()

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if len(s.errs) > 0 {
		return s.errs[0]
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// evaluate applies the readiness rule (spec.md §4.4): if every dependency
// of id has reached a terminal status, id is either rejected (propagating
// a rejected/errored dependency) or dispatched for execution. Groups are
// finalized in place rather than dispatched — a group has no behavior of
// its own beyond aggregating its members.
func (s *Scheduler) evaluate(ctx context.Context, id string) {
	if ctx.Err() != nil {
		return
	}
	deps := s.depsOf(id)
	rejected := false
	for _, d := range deps {
		st := s.statusOf(d)
		if !st.Terminal() {
			return
		}
		if st == objects.StatusRejected || st == objects.StatusError {
			rejected = true
		}
	}

	if s.isGroup(id) {
		s.finalizeGroup(ctx, id, rejected)
		return
	}

	s.mu.Lock()
	if s.started[id] {
		s.mu.Unlock()
		return
	}
	s.started[id] = true
	s.mu.Unlock()

	if rejected {
		s.setStatus(ctx, id, objects.StatusRejected)
		s.onTerminal(ctx, id)
		return
	}

	s.dispatch(ctx, id)
}

func (s *Scheduler) dispatch(ctx context.Context, id string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.recordErr(fmt.Errorf("panic executing %s: %v", id, r))
				s.setStatus(ctx, id, objects.StatusError)
				s.onTerminal(ctx, id)
			}
		}()

		s.setStatus(ctx, id, objects.StatusExecuting)
		status, err := s.exec.Execute(ctx, s.graph, id)
		if err != nil {
			s.recordErr(err)
			if status == "" {
				status = objects.StatusError
			}
		}
		if status == "" {
			status = objects.StatusComplete
		}
		s.setStatus(ctx, id, status)
		s.onTerminal(ctx, id)
	}()
}

// finalizeGroup implements repeat-group looping and for-each-derived basic
// groups' plain completion (spec.md §4.5 Repeat groups). A repeat group
// with no rejected/errored member emits StatusVersionComplete after every
// iteration, including its last (spec.md §8 S3: "group emits three
// version-complete events and one complete" for maxLoops=3) — only once
// CurrentLoop reaches MaxLoops does it skip the member reset and reach a
// terminal status instead.
func (s *Scheduler) finalizeGroup(ctx context.Context, id string, anyRejected bool) {
	grp := s.graph.Groups[id]

	errored := false
	for _, m := range grp.Members {
		if s.statusOf(m) == objects.StatusError {
			errored = true
		}
	}

	if grp.Subtype == compiler.GroupRepeat && !anyRejected && !errored {
		loop := grp.IncrementLoop()
		grp.SetStatus(ctx, objects.StatusVersionComplete)
		if grp.MaxLoops <= 0 || loop < grp.MaxLoops {
			s.resetMembers(ctx, grp)
			return
		}
	}

	final := objects.StatusComplete
	switch {
	case errored:
		final = objects.StatusError
	case anyRejected:
		final = objects.StatusRejected
	}
	grp.SetStatus(ctx, final)
	s.onTerminal(ctx, id)
}

func (s *Scheduler) resetMembers(ctx context.Context, grp *objects.Group) {
	s.mu.Lock()
	for _, m := range grp.Members {
		delete(s.started, m)
	}
	s.mu.Unlock()

	for _, m := range grp.Members {
		s.graph.Reset(ctx, m)
	}
	for _, m := range grp.Members {
		s.evaluate(ctx, m)
	}
}

func (s *Scheduler) onTerminal(ctx context.Context, id string) {
	s.mu.Lock()
	dependents := append([]string(nil), s.dependents[id]...)
	s.mu.Unlock()

	for _, dep := range dependents {
		s.evaluate(ctx, dep)
	}
}

func (s *Scheduler) setStatus(ctx context.Context, id string, status objects.Status) {
	if n, ok := s.graph.Nodes[id]; ok {
		n.SetStatus(ctx, status)
		return
	}
	if e, ok := s.graph.Edges[id]; ok {
		e.SetStatus(ctx, status)
		return
	}
	if grp, ok := s.graph.Groups[id]; ok {
		grp.SetStatus(ctx, status)
	}
}

func (s *Scheduler) recordErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.errs = append(s.errs, err)
}

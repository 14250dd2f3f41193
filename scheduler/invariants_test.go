package scheduler

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeabLabs/cannoli-sub001/canvas"
	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/objects"
)

// compileRepeatLoop builds a start->call->done chain with call wrapped in an
// N-iteration repeat group, the same shape as the S3 scenario (spec.md §8
// S3) but left at the scheduler level so the test executor can count
// dispatches directly instead of going through node/edge behaviors.
func compileRepeatLoop(t *testing.T, maxLoops int) *objects.Graph {
	t.Helper()
	data := canvas.Data{
		Nodes: []canvas.Node{
			{ID: "start", Type: canvas.NodeTypeText, Rect: canvas.Rect{W: 10, H: 10}, Text: "go"},
			{ID: "grp", Type: canvas.NodeTypeGroup, Rect: canvas.Rect{X: 15, Y: -10, W: 50, H: 40}, Label: strconv.Itoa(maxLoops)},
			{ID: "call", Type: canvas.NodeTypeText, Rect: canvas.Rect{X: 20, Y: -5, W: 10, H: 10}},
			{ID: "done", Type: canvas.NodeTypeText, Rect: canvas.Rect{X: 70, Y: -5, W: 10, H: 10}},
		},
		Edges: []canvas.Edge{
			{ID: "e1", FromNode: "start", ToNode: "call"},
			{ID: "e2", FromNode: "call", ToNode: "done"},
		},
	}
	vg := compiler.Compile(data, compiler.DefaultConfig())
	require.Empty(t, vg.Errors)
	require.Equal(t, compiler.GroupRepeat, vg.Groups["grp"].Subtype)
	require.Equal(t, maxLoops, vg.Groups["grp"].MaxLoops)
	return objects.Hydrate(vg)
}

// Invariant 5: a repeat group with maxLoops=N performs exactly N body-resets
// (its member executed exactly N times) before completing (spec.md §8).
func TestInvariant_RepeatGroupRunsExactlyMaxLoopsTimes(t *testing.T) {
	const maxLoops = 4
	g := compileRepeatLoop(t, maxLoops)

	var mu sync.Mutex
	callCount := 0
	exec := ExecutorFunc(func(ctx context.Context, g *objects.Graph, id string) (objects.Status, error) {
		if id == "call" {
			mu.Lock()
			callCount++
			mu.Unlock()
		}
		return objects.StatusComplete, nil
	})

	s := New(g, exec)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, objects.StatusComplete, g.Groups["grp"].CurrentStatus())
	assert.Equal(t, maxLoops, g.Groups["grp"].LoopCount())
	assert.Equal(t, maxLoops, callCount)
}

// Invariant 10 (loop form): across a repeat group's full run, each
// (vertex, loop-iteration) pair sees its executor invoked at most once — no
// iteration's call member is ever dispatched twice before the next reset.
func TestInvariant_RepeatGroupNeverDoubleDispatchesWithinAnIteration(t *testing.T) {
	const maxLoops = 3
	g := compileRepeatLoop(t, maxLoops)

	var mu sync.Mutex
	perLoopDispatches := map[int]int{}
	exec := ExecutorFunc(func(ctx context.Context, g *objects.Graph, id string) (objects.Status, error) {
		if id == "call" {
			mu.Lock()
			perLoopDispatches[g.Groups["grp"].LoopCount()]++
			mu.Unlock()
		}
		return objects.StatusComplete, nil
	})

	s := New(g, exec)
	require.NoError(t, s.Run(context.Background()))

	for loop, n := range perLoopDispatches {
		assert.Equalf(t, 1, n, "loop %d: call dispatched %d times, want exactly 1", loop, n)
	}
	assert.Len(t, perLoopDispatches, maxLoops)
}

// Invariant 10 (fan-in form): a vertex with two incoming edges is evaluated
// once per dependency completing, but the started-guard in evaluate/dispatch
// means it is only ever actually executed once (spec.md §8).
func TestInvariant_FanInNodeExecutesAtMostOnce(t *testing.T) {
	data := canvas.Data{
		Nodes: []canvas.Node{
			{ID: "a", Type: canvas.NodeTypeText, Rect: canvas.Rect{W: 10, H: 10}, Text: "a"},
			{ID: "b", Type: canvas.NodeTypeText, Rect: canvas.Rect{X: 20, W: 10, H: 10}, Text: "b"},
			{ID: "d", Type: canvas.NodeTypeText, Rect: canvas.Rect{X: 40, W: 10, H: 10}},
		},
		Edges: []canvas.Edge{
			{ID: "e1", FromNode: "a", ToNode: "d"},
			{ID: "e2", FromNode: "b", ToNode: "d"},
		},
	}
	vg := compiler.Compile(data, compiler.DefaultConfig())
	require.Empty(t, vg.Errors)
	g := objects.Hydrate(vg)

	var mu sync.Mutex
	executions := map[string]int{}
	exec := ExecutorFunc(func(ctx context.Context, g *objects.Graph, id string) (objects.Status, error) {
		mu.Lock()
		executions[id]++
		mu.Unlock()
		return objects.StatusComplete, nil
	})

	s := New(g, exec)
	require.NoError(t, s.Run(context.Background()))

	for id, n := range executions {
		assert.Equalf(t, 1, n, "id %s: executed %d times, want exactly 1", id, n)
	}
}

// Invariant 9: calling a run's stop mechanism twice has the same effect as
// once. Stopping a run is cancelling its context (neither Runner nor
// Scheduler exposes a separate Stop method), and context.CancelFunc is
// documented as idempotent, so a double-cancel must leave the scheduler in
// exactly the state a single cancel would.
func TestInvariant_DoubleCancelSameAsSingleCancel(t *testing.T) {
	g1 := compileRepeatLoop(t, 5)
	ctx1, cancel1 := context.WithCancel(context.Background())
	cancel1()

	s1 := New(g1, ExecutorFunc(func(ctx context.Context, g *objects.Graph, id string) (objects.Status, error) {
		return objects.StatusComplete, nil
	}))
	err1 := s1.Run(ctx1)

	g2 := compileRepeatLoop(t, 5)
	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	cancel2()

	s2 := New(g2, ExecutorFunc(func(ctx context.Context, g *objects.Graph, id string) (objects.Status, error) {
		return objects.StatusComplete, nil
	}))
	err2 := s2.Run(ctx2)

	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, err1, err2)
	assert.Equal(t, context.Canceled, err1)
}

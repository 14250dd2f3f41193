package objects

import (
	"context"
	"sync"
	"testing"

	"github.com/DeabLabs/cannoli-sub001/compiler"
)

func TestStatus_Terminal(t *testing.T) {
	terminal := []Status{StatusComplete, StatusRejected, StatusError, StatusWarning}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}
	nonTerminal := []Status{StatusPending, StatusExecuting, StatusVersionComplete}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("expected %q not to be terminal", s)
		}
	}
}

func TestBase_SetStatusNotifiesListenersSynchronouslyBeforeReturning(t *testing.T) {
	b := &Base{ID: "v1", Status: StatusPending}

	var mu sync.Mutex
	var got Status
	b.AddListener(ListenerFunc(func(ctx context.Context, id string, status Status) {
		mu.Lock()
		got = status
		mu.Unlock()
	}))

	b.SetStatus(context.Background(), StatusComplete)

	mu.Lock()
	defer mu.Unlock()
	if got != StatusComplete {
		t.Errorf("expected listener to observe StatusComplete, got %q", got)
	}
	if b.CurrentStatus() != StatusComplete {
		t.Errorf("expected CurrentStatus to reflect the update, got %q", b.CurrentStatus())
	}
}

func TestBase_SetStatusSurvivesPanickingListener(t *testing.T) {
	b := &Base{ID: "v1", Status: StatusPending}
	b.AddListener(ListenerFunc(func(ctx context.Context, id string, status Status) {
		panic("boom")
	}))

	var mu sync.Mutex
	called := false
	b.AddListener(ListenerFunc(func(ctx context.Context, id string, status Status) {
		mu.Lock()
		called = true
		mu.Unlock()
	}))

	b.SetStatus(context.Background(), StatusError)

	mu.Lock()
	defer mu.Unlock()
	if !called {
		t.Error("expected the non-panicking listener to still be notified")
	}
}

func TestGroup_IncrementLoopAndLoopCount(t *testing.T) {
	g := &Group{Base: Base{ID: "grp", Status: StatusPending}}
	if g.LoopCount() != 0 {
		t.Fatalf("expected initial LoopCount 0, got %d", g.LoopCount())
	}
	for i := 1; i <= 3; i++ {
		if got := g.IncrementLoop(); got != i {
			t.Errorf("expected IncrementLoop to return %d, got %d", i, got)
		}
	}
	if g.LoopCount() != 3 {
		t.Errorf("expected LoopCount 3, got %d", g.LoopCount())
	}
}

func TestHydrate_BuildsOnePendingObjectPerCompiledEntry(t *testing.T) {
	vg := &compiler.VerifiedGraph{
		Nodes: map[string]*compiler.Node{
			"n1": {ID: "n1", Subtype: compiler.NodeContentStandard, Text: "hi"},
		},
		Edges: map[string]*compiler.Edge{
			"e1": {ID: "e1", Subtype: compiler.EdgeChat, Source: "n1", Target: "n2"},
		},
		Groups: map[string]*compiler.Group{
			"g1": {ID: "g1", Subtype: compiler.GroupRepeat, Members: []string{"n1"}, MaxLoops: 5},
		},
		Order: []string{"n1", "e1", "g1"},
	}

	g := Hydrate(vg)

	if n := g.Nodes["n1"]; n == nil || n.CurrentStatus() != StatusPending || n.GetContent() != "hi" {
		t.Fatalf("unexpected hydrated node: %+v", n)
	}
	if e := g.Edges["e1"]; e == nil || e.CurrentStatus() != StatusPending || e.Source != "n1" || e.Target != "n2" {
		t.Fatalf("unexpected hydrated edge: %+v", e)
	}
	if grp := g.Groups["g1"]; grp == nil || grp.CurrentStatus() != StatusPending || grp.MaxLoops != 5 {
		t.Fatalf("unexpected hydrated group: %+v", grp)
	}
	if g.Source != vg {
		t.Error("expected Graph.Source to point back at the compiled graph")
	}
}

func TestGraph_ResetClearsNodeStateBackToPending(t *testing.T) {
	vg := &compiler.VerifiedGraph{
		Nodes:  map[string]*compiler.Node{"n1": {ID: "n1", Subtype: compiler.NodeContentStandard, Text: "hi"}},
		Edges:  map[string]*compiler.Edge{},
		Groups: map[string]*compiler.Group{},
	}
	g := Hydrate(vg)
	ctx := context.Background()

	n := g.Nodes["n1"]
	n.SetContent("ran once")
	n.SetChoice("left")
	n.AppendMessage(Message{Role: "user", Content: "hi"})
	n.SetStatus(ctx, StatusComplete)

	g.Reset(ctx, "n1")

	if n.CurrentStatus() != StatusPending {
		t.Errorf("expected status reset to pending, got %q", n.CurrentStatus())
	}
	if n.GetContent() != "" {
		t.Errorf("expected content cleared, got %q", n.GetContent())
	}
	if n.GetChoice() != "" {
		t.Errorf("expected choice cleared, got %q", n.GetChoice())
	}
	if len(n.GetMessages()) != 0 {
		t.Errorf("expected messages cleared, got %v", n.GetMessages())
	}
}

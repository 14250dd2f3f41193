package persistor_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/DeabLabs/cannoli-sub001/persistor"
)

func TestMemoryPersistor_SaveAndLoad(t *testing.T) {
	t.Parallel()

	p := persistor.NewMemoryPersistor()
	ctx := context.Background()

	cp := &persistor.Checkpoint{
		ID:        "cp1",
		RunID:     "run1",
		NodeName:  "summarize",
		Statuses:  map[string]string{"summarize": "complete"},
		Content:   map[string]string{"summarize": "a summary"},
		Timestamp: time.Now(),
		Version:   1,
	}

	if err := p.Save(ctx, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := p.Load(ctx, "cp1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a checkpoint, got nil")
	}
	if loaded.NodeName != cp.NodeName {
		t.Errorf("expected NodeName %s, got %s", cp.NodeName, loaded.NodeName)
	}
	if loaded.Content["summarize"] != "a summary" {
		t.Errorf("expected content preserved, got %q", loaded.Content["summarize"])
	}
}

func TestMemoryPersistor_LoadNonExistent(t *testing.T) {
	t.Parallel()

	p := persistor.NewMemoryPersistor()
	loaded, err := p.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for a missing checkpoint, got %+v", loaded)
	}
}

func TestLatest_PicksHighestVersion(t *testing.T) {
	t.Parallel()

	p := persistor.NewMemoryPersistor()
	ctx := context.Background()

	for _, v := range []int{3, 1, 2} {
		cp := &persistor.Checkpoint{ID: idFor(v), RunID: "run1", Version: v, Timestamp: time.Now()}
		if err := p.Save(ctx, cp); err != nil {
			t.Fatalf("save v%d: %v", v, err)
		}
	}

	latest, err := persistor.Latest(ctx, p, "run1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.Version != 3 {
		t.Fatalf("expected version 3, got %+v", latest)
	}
}

func TestMemoryPersistor_Clear(t *testing.T) {
	t.Parallel()

	p := persistor.NewMemoryPersistor()
	ctx := context.Background()

	if err := p.Save(ctx, &persistor.Checkpoint{ID: "a", RunID: "run1", Timestamp: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := p.Save(ctx, &persistor.Checkpoint{ID: "b", RunID: "run2", Timestamp: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := p.Clear(ctx, "run1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	cps, err := p.List(ctx, "run1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cps) != 0 {
		t.Errorf("expected run1's checkpoints cleared, got %d", len(cps))
	}
	remaining, err := p.List(ctx, "run2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("expected run2 untouched, got %d", len(remaining))
	}
}

// TestRedisPersistor_SaveLoadClear runs the same checkpoint lifecycle
// against an in-process miniredis server, so the redis backend's key/set
// bookkeeping is exercised without a real Redis instance.
func TestRedisPersistor_SaveLoadClear(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	p := persistor.NewRedis(client)
	ctx := context.Background()

	cp := &persistor.Checkpoint{
		ID:        "cp1",
		RunID:     "run1",
		NodeName:  "summarize",
		Statuses:  map[string]string{"summarize": "complete"},
		Timestamp: time.Now(),
		Version:   1,
	}
	if err := p.Save(ctx, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := p.Load(ctx, "cp1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || loaded.NodeName != "summarize" {
		t.Fatalf("expected loaded checkpoint, got %+v", loaded)
	}

	cps, err := p.List(ctx, "run1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cps) != 1 {
		t.Fatalf("expected 1 checkpoint, got %d", len(cps))
	}

	if err := p.Clear(ctx, "run1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	cps, err = p.List(ctx, "run1")
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(cps) != 0 {
		t.Errorf("expected cleared, got %d", len(cps))
	}
}

func idFor(v int) string {
	return "cp" + string(rune('0'+v))
}

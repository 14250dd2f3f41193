package action

import (
	"context"
	"testing"
)

func TestRegistry_CallDispatchesByName(t *testing.T) {
	r := NewRegistry()
	r.Register(Func{FuncName: "echo", Fn: func(ctx context.Context, argsJSON string) (string, error) {
		return argsJSON, nil
	}})

	if !r.Has("echo") {
		t.Error("expected Has to report the registered action")
	}
	if r.Has("missing") {
		t.Error("expected Has to report false for an unregistered name")
	}

	got, err := r.Call(context.Background(), "echo", `{"n":1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"n":1}` {
		t.Errorf("expected echoed args, got %q", got)
	}
}

func TestRegistry_CallUnknownNameErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Call(context.Background(), "nope", ""); err == nil {
		t.Fatal("expected an error calling an unregistered action")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register(Func{FuncName: "a", Fn: func(context.Context, string) (string, error) { return "", nil }})
	r.Register(Func{FuncName: "b", Fn: func(context.Context, string) (string, error) { return "", nil }})

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}

type argStruct struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseArgsAs_PrimitiveKinds(t *testing.T) {
	s, err := ParseArgsAs[string]("hello")
	if err != nil || s != "hello" {
		t.Errorf("expected (hello, nil), got (%q, %v)", s, err)
	}

	b, err := ParseArgsAs[bool]("true")
	if err != nil || !b {
		t.Errorf("expected (true, nil), got (%v, %v)", b, err)
	}

	n, err := ParseArgsAs[int]("42")
	if err != nil || n != 42 {
		t.Errorf("expected (42, nil), got (%v, %v)", n, err)
	}

	f, err := ParseArgsAs[float64]("3.5")
	if err != nil || f != 3.5 {
		t.Errorf("expected (3.5, nil), got (%v, %v)", f, err)
	}
}

func TestParseArgsAs_StructFromWellFormedJSON(t *testing.T) {
	got, err := ParseArgsAs[argStruct](`{"name":"a","count":3}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "a" || got.Count != 3 {
		t.Errorf("unexpected struct: %+v", got)
	}
}

func TestParseArgsAs_RepairsMalformedJSON(t *testing.T) {
	got, err := ParseArgsAs[argStruct](`{name: 'a', count: 3}`)
	if err != nil {
		t.Fatalf("expected jsonrepair to recover malformed JSON, got error: %v", err)
	}
	if got.Name != "a" || got.Count != 3 {
		t.Errorf("unexpected struct after repair: %+v", got)
	}
}

func TestParseArgsAs_InvalidIntErrors(t *testing.T) {
	if _, err := ParseArgsAs[int]("not-a-number"); err == nil {
		t.Fatal("expected an error parsing a non-numeric int argument")
	}
}

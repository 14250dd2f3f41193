package nodes

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/DeabLabs/cannoli-sub001/action"
	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/objects"
)

type stubFetcher struct {
	err    error
	result string
	got    FetchOptions
	gotURL string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return s.FetchWithOptions(ctx, url, FetchOptions{})
}

func (s *stubFetcher) FetchWithOptions(ctx context.Context, url string, opts FetchOptions) (string, error) {
	s.gotURL = url
	s.got = opts
	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}

// buildHTTPGraph compiles a single http node nested in one group, wired to a
// config edge carrying cfgText into the group, mirroring scenario S5's
// "enclosing group sets catch=false" shape without needing a full canvas.
func buildHTTPGraph(cfgText string) (*compiler.VerifiedGraph, *objects.Graph) {
	vg := &compiler.VerifiedGraph{
		Nodes:  map[string]*compiler.Node{},
		Edges:  map[string]*compiler.Edge{},
		Groups: map[string]*compiler.Group{},
	}
	vg.Nodes["http1"] = &compiler.Node{ID: "http1", Subtype: compiler.NodeContentHTTP, Text: "http://unreachable.invalid", Groups: []string{"g1"}}
	vg.Nodes["cfg1"] = &compiler.Node{ID: "cfg1", Subtype: compiler.NodeContentStandard, Text: cfgText}
	vg.Groups["g1"] = &compiler.Group{ID: "g1", Subtype: compiler.GroupBasic, Members: []string{"http1"}}
	vg.Edges["e1"] = &compiler.Edge{ID: "e1", Subtype: compiler.EdgeConfig, Source: "cfg1", Target: "g1"}
	vg.Order = []string{"cfg1", "http1", "g1", "e1"}

	g := objects.Hydrate(vg)
	g.Nodes["cfg1"].SetContent(cfgText)
	g.Nodes["http1"].SetContent("http://unreachable.invalid")
	return vg, g
}

func TestRunHTTP_CatchTrueDefaultReturnsError(t *testing.T) {
	vg, g := buildHTTPGraph("")
	fetch := &stubFetcher{err: errors.New("dial tcp: connection refused")}
	b := New(vg)
	b.Fetcher = fetch

	status, err := b.runHTTP(context.Background(), g, g.Nodes["http1"])
	if err == nil {
		t.Fatal("expected an error with catch=true (the default)")
	}
	if status != objects.StatusError {
		t.Errorf("expected StatusError, got %v", status)
	}
}

func TestRunHTTP_CatchFalsePassesErrorDownstream(t *testing.T) {
	vg, g := buildHTTPGraph("catch=false")
	fetch := &stubFetcher{err: errors.New("dial tcp: connection refused")}
	b := New(vg)
	b.Fetcher = fetch

	status, err := b.runHTTP(context.Background(), g, g.Nodes["http1"])
	if err != nil {
		t.Fatalf("expected no error with catch=false, got %v", err)
	}
	if status != objects.StatusComplete {
		t.Errorf("expected StatusComplete, got %v", status)
	}
	if got := g.Nodes["http1"].GetContent(); got != "dial tcp: connection refused" {
		t.Errorf("expected the error message as node content, got %q", got)
	}
}

func TestResolveHTTPConfig_GroupOverlayAndJSONRequest(t *testing.T) {
	vg, g := buildHTTPGraph(`{"catch": false, "timeout": 5000, "method": "post"}`)
	b := New(vg)

	cfg := b.resolveHTTPConfig(g, "http1")
	if cfg.Catch {
		t.Error("expected group config edge to override default catch=true")
	}
	if cfg.Method != "POST" {
		t.Errorf("expected method POST, got %q", cfg.Method)
	}
	if cfg.Timeout.Milliseconds() != 5000 {
		t.Errorf("expected 5000ms timeout, got %v", cfg.Timeout)
	}
}

func TestRunHTTP_JSONRequestObjectOverridesURL(t *testing.T) {
	vg, g := buildHTTPGraph("")
	g.Nodes["http1"].SetContent(`{"url": "http://example.invalid/api", "method": "put"}`)
	fetch := &stubFetcher{result: "ok"}
	b := New(vg)
	b.Fetcher = fetch

	status, err := b.runHTTP(context.Background(), g, g.Nodes["http1"])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != objects.StatusComplete {
		t.Errorf("expected StatusComplete, got %v", status)
	}
	if fetch.gotURL != "http://example.invalid/api" {
		t.Errorf("expected JSON request object's url to win, got %q", fetch.gotURL)
	}
	if fetch.got.Method != "PUT" {
		t.Errorf("expected method PUT, got %q", fetch.got.Method)
	}
}

type stubTemplates map[string]string

func (s stubTemplates) Lookup(name string) (string, bool) {
	tmpl, ok := s[name]
	return tmpl, ok
}

type stubVariables map[string]string

func (s stubVariables) Resolve(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

func (s stubVariables) Create(name, value string) {
	s[name] = value
}

func TestRunHTTP_NamedTemplateExpandsWithVariables(t *testing.T) {
	vg, g := buildHTTPGraph("")
	g.Nodes["http1"].SetContent("template: issues")
	fetch := &stubFetcher{result: "ok"}
	b := New(vg)
	b.Fetcher = fetch
	b.Templates = stubTemplates{"issues": "https://api.example.com/repos{/owner}{/repo}/issues{?state}"}
	b.Variables = stubVariables{"owner": "DeabLabs", "repo": "cannoli-sub001", "state": "open"}

	status, err := b.runHTTP(context.Background(), g, g.Nodes["http1"])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != objects.StatusComplete {
		t.Errorf("expected StatusComplete, got %v", status)
	}
	want := "https://api.example.com/repos/DeabLabs/cannoli-sub001/issues?state=open"
	if fetch.gotURL != want {
		t.Errorf("expected expanded template URL %q, got %q", want, fetch.gotURL)
	}
}

func TestRunHTTP_UnregisteredTemplateNameErrors(t *testing.T) {
	vg, g := buildHTTPGraph("")
	g.Nodes["http1"].SetContent("template: missing")
	b := New(vg)
	b.Fetcher = &stubFetcher{err: errors.New("fetch should not run")}
	b.Templates = stubTemplates{}

	status, err := b.runHTTP(context.Background(), g, g.Nodes["http1"])
	if err == nil {
		t.Fatal("expected an error for an unregistered template name")
	}
	if status != objects.StatusError {
		t.Errorf("expected StatusError, got %v", status)
	}
}

func TestRunHTTP_RegisteredActionTakesPriorityOverFetch(t *testing.T) {
	vg, g := buildHTTPGraph("")
	g.Nodes["http1"].SetContent("double\n{\"n\": 21}")

	registry := action.NewRegistry()
	registry.Register(action.Func{FuncName: "double", Fn: func(ctx context.Context, argsJSON string) (string, error) {
		n, err := action.ParseArgsAs[struct {
			N int `json:"n"`
		}](argsJSON)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n.N * 2), nil
	}})

	b := New(vg)
	b.Actions = registry
	b.Fetcher = &stubFetcher{err: errors.New("fetch should not run")}

	status, err := b.runHTTP(context.Background(), g, g.Nodes["http1"])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != objects.StatusComplete {
		t.Errorf("expected StatusComplete, got %v", status)
	}
	if got := g.Nodes["http1"].GetContent(); got != "42" {
		t.Errorf("expected action result %q, got %q", "42", got)
	}
}

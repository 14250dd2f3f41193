package nodes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DeabLabs/cannoli-sub001/compiler"
	"github.com/DeabLabs/cannoli-sub001/objects"
)

// httpConfig is the resolved {url?, method?, headers?, catch=true,
// timeout=30000ms} schema an http node reads before fetching (spec.md §4.5
// HTTP node).
type httpConfig struct {
	URL     string
	Method  string
	Headers map[string]string
	Catch   bool
	Timeout time.Duration
}

func defaultHTTPConfig() httpConfig {
	return httpConfig{Catch: true, Timeout: 30 * time.Second}
}

// resolveHTTPConfig overlays config-edge text onto the default schema,
// outermost enclosing group first and the node's own config edges last, so
// "nearer groups and node-local config override" (spec.md §4.5) holds.
func (b *Behavior) resolveHTTPConfig(g *objects.Graph, id string) httpConfig {
	cfg := defaultHTTPConfig()
	if b.Graph == nil {
		return cfg
	}

	for _, gid := range b.enclosingGroupsOutermostFirst(id) {
		for _, e := range b.Graph.IncomingEdges(gid) {
			if e.Subtype == compiler.EdgeConfig {
				applyConfigText(&cfg, configEdgeContent(g, e))
			}
		}
	}
	for _, e := range b.Graph.IncomingEdges(id) {
		if e.Subtype == compiler.EdgeConfig {
			applyConfigText(&cfg, configEdgeContent(g, e))
		}
	}
	return cfg
}

func configEdgeContent(g *objects.Graph, e *compiler.Edge) string {
	src, ok := g.Nodes[e.Source]
	if !ok {
		return ""
	}
	return src.GetContent()
}

// enclosingGroupsOutermostFirst reads the compiled node's innermost-first
// Groups list and reverses it.
func (b *Behavior) enclosingGroupsOutermostFirst(id string) []string {
	cn, ok := b.Graph.Nodes[id]
	if !ok {
		return nil
	}
	out := make([]string, len(cn.Groups))
	for i, gid := range cn.Groups {
		out[len(cn.Groups)-1-i] = gid
	}
	return out
}

// applyConfigText overlays one config edge's source content onto cfg. The
// content is either a JSON object or newline-separated key=value/key: value
// pairs, matching the loose key-value shape the rest of cannoli's
// reference/field grammar already accepts.
func applyConfigText(cfg *httpConfig, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(text), &m); err == nil {
			for k, v := range m {
				applyConfigField(cfg, k, fmt.Sprintf("%v", v))
			}
			return
		}
	}

	for _, line := range strings.Split(text, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			key, value, found = strings.Cut(line, ":")
		}
		if !found {
			continue
		}
		applyConfigField(cfg, strings.TrimSpace(key), strings.TrimSpace(value))
	}
}

func applyConfigField(cfg *httpConfig, key, value string) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "url":
		cfg.URL = value
	case "method":
		cfg.Method = strings.ToUpper(value)
	case "catch":
		if b, err := strconv.ParseBool(value); err == nil {
			cfg.Catch = b
		}
	case "timeout":
		if ms, err := strconv.Atoi(value); err == nil {
			cfg.Timeout = time.Duration(ms) * time.Millisecond
			return
		}
		if d, err := time.ParseDuration(value); err == nil {
			cfg.Timeout = d
		}
	case "headers":
		var h map[string]string
		if err := json.Unmarshal([]byte(value), &h); err == nil {
			if cfg.Headers == nil {
				cfg.Headers = make(map[string]string, len(h))
			}
			for k, v := range h {
				cfg.Headers[k] = v
			}
		}
	default:
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[key] = value
	}
}

// Package config holds a cannoli run's configuration: which LLM provider
// and model to call, where the vault lives, token budget ceiling, and the
// optional collaborators (search endpoint, MCP server command, checkpoint
// backend). Grounded on the teacher's own examples/*/main.go convention of
// plain os.Getenv/flag wiring with no configuration framework — every
// teacher entry point (examples/react_agent, examples/swarm, etc.) reads
// its OpenAI key and model straight from the environment, so this carries
// that same convention forward rather than introducing a config library
// the pack never reaches for.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is a run's full configuration, assembled once at startup; the
// cmd entry points pass its fields to run.DefaultCollaborators.
type Config struct {
	// OpenAIAPIKey authenticates the default LLM provider.
	OpenAIAPIKey string
	// Model is the chat model name passed to the provider.
	Model string
	// VaultPath is the root directory of markdown notes content:reference
	// and named input/output nodes resolve against. Empty disables disk
	// persistence; in-memory run variables still work.
	VaultPath string
	// MaxContextTokens bounds a call node's accumulated chat history
	// (spec.md §4.5 chat-converter truncation).
	MaxContextTokens int
	// SearchEndpoint is a %s-templated search result page URL for
	// content:search nodes. Empty disables search nodes.
	SearchEndpoint string
	// MCPCommand holds an MCP server command line (argv[0] is the command,
	// the rest are args). Nothing in this module launches it.
	MCPCommand []string
	// RunTimeout bounds one run's total wall-clock time.
	RunTimeout time.Duration
	// CheckpointEvery autosaves a checkpoint after this many vertices
	// reach a terminal status. Zero disables autosave.
	CheckpointEvery int
}

// FromEnv builds a Config from environment variables, applying the same
// defaults a teacher example's main.go hardcodes when a variable is unset.
func FromEnv() (Config, error) {
	cfg := Config{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		Model:            envOr("CANNOLI_MODEL", "gpt-4o-mini"),
		VaultPath:        os.Getenv("CANNOLI_VAULT_PATH"),
		SearchEndpoint:   os.Getenv("CANNOLI_SEARCH_ENDPOINT"),
		MaxContextTokens: 8000,
		RunTimeout:       5 * time.Minute,
		CheckpointEvery:  0,
	}

	if v := os.Getenv("CANNOLI_MAX_CONTEXT_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: CANNOLI_MAX_CONTEXT_TOKENS: %w", err)
		}
		cfg.MaxContextTokens = n
	}
	if v := os.Getenv("CANNOLI_RUN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("config: CANNOLI_RUN_TIMEOUT: %w", err)
		}
		cfg.RunTimeout = d
	}
	if v := os.Getenv("CANNOLI_CHECKPOINT_EVERY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: CANNOLI_CHECKPOINT_EVERY: %w", err)
		}
		cfg.CheckpointEvery = n
	}
	if cmd := os.Getenv("CANNOLI_MCP_COMMAND"); cmd != "" {
		cfg.MCPCommand = []string{cmd}
	}

	if cfg.OpenAIAPIKey == "" {
		return cfg, fmt.Errorf("config: OPENAI_API_KEY is required")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

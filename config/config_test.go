package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "CANNOLI_MODEL", "CANNOLI_VAULT_PATH",
		"CANNOLI_SEARCH_ENDPOINT", "CANNOLI_MAX_CONTEXT_TOKENS",
		"CANNOLI_RUN_TIMEOUT", "CANNOLI_CHECKPOINT_EVERY", "CANNOLI_MCP_COMMAND",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_RequiresAPIKey(t *testing.T) {
	clearEnv(t)
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected an error when OPENAI_API_KEY is unset")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("expected default model gpt-4o-mini, got %q", cfg.Model)
	}
	if cfg.MaxContextTokens != 8000 {
		t.Errorf("expected default MaxContextTokens 8000, got %d", cfg.MaxContextTokens)
	}
	if cfg.CheckpointEvery != 0 {
		t.Errorf("expected default CheckpointEvery 0, got %d", cfg.CheckpointEvery)
	}
	if cfg.MCPCommand != nil {
		t.Errorf("expected nil MCPCommand by default, got %v", cfg.MCPCommand)
	}
}

func TestFromEnv_OverridesFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CANNOLI_MODEL", "gpt-4o")
	t.Setenv("CANNOLI_MAX_CONTEXT_TOKENS", "1234")
	t.Setenv("CANNOLI_RUN_TIMEOUT", "90s")
	t.Setenv("CANNOLI_CHECKPOINT_EVERY", "5")
	t.Setenv("CANNOLI_MCP_COMMAND", "mcp-server")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("expected overridden model gpt-4o, got %q", cfg.Model)
	}
	if cfg.MaxContextTokens != 1234 {
		t.Errorf("expected MaxContextTokens 1234, got %d", cfg.MaxContextTokens)
	}
	if cfg.RunTimeout.Seconds() != 90 {
		t.Errorf("expected RunTimeout 90s, got %v", cfg.RunTimeout)
	}
	if cfg.CheckpointEvery != 5 {
		t.Errorf("expected CheckpointEvery 5, got %d", cfg.CheckpointEvery)
	}
	if len(cfg.MCPCommand) != 1 || cfg.MCPCommand[0] != "mcp-server" {
		t.Errorf("expected MCPCommand [mcp-server], got %v", cfg.MCPCommand)
	}
}

func TestFromEnv_RejectsBadMaxContextTokens(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CANNOLI_MAX_CONTEXT_TOKENS", "not-a-number")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected an error for a non-numeric CANNOLI_MAX_CONTEXT_TOKENS")
	}
}

func TestFromEnv_RejectsBadRunTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CANNOLI_RUN_TIMEOUT", "not-a-duration")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected an error for an unparseable CANNOLI_RUN_TIMEOUT")
	}
}

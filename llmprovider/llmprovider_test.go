package llmprovider

import (
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/DeabLabs/cannoli-sub001/objects"
)

func TestRoleOf(t *testing.T) {
	cases := map[string]llms.ChatMessageType{
		"system":    llms.ChatMessageTypeSystem,
		"assistant": llms.ChatMessageTypeAI,
		"user":      llms.ChatMessageTypeHuman,
		"":          llms.ChatMessageTypeHuman,
	}
	for role, want := range cases {
		if got := roleOf(role); got != want {
			t.Errorf("roleOf(%q) = %v, want %v", role, got, want)
		}
	}
}

func TestToLangchain_PreservesOrderAndContent(t *testing.T) {
	messages := []objects.Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hi"},
	}
	out := toLangchain(messages)
	if len(out) != 2 {
		t.Fatalf("expected 2 converted messages, got %d", len(out))
	}
	if out[0].Role != llms.ChatMessageTypeSystem {
		t.Errorf("expected first message role system, got %v", out[0].Role)
	}
	if out[1].Role != llms.ChatMessageTypeHuman {
		t.Errorf("expected second message role human, got %v", out[1].Role)
	}
}

func TestFirstChoice_EmptyResponseErrors(t *testing.T) {
	if _, err := firstChoice(nil); err == nil {
		t.Error("expected an error for a nil response")
	}
	if _, err := firstChoice(&llms.ContentResponse{}); err == nil {
		t.Error("expected an error for a response with no choices")
	}
}

func TestFirstChoice_ReturnsFirstChoiceContent(t *testing.T) {
	resp := &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "hello"}}}
	got, err := firstChoice(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestToOpenAI_ConvertsRoleAndContent(t *testing.T) {
	messages := []objects.Message{{Role: "user", Content: "hi"}}
	out := toOpenAI(messages)
	if len(out) != 1 || out[0].Role != "user" || out[0].Content != "hi" {
		t.Errorf("unexpected conversion: %+v", out)
	}
}

// Package llmprovider adapts a configured LLM backend to the shape call
// nodes need: a chat-completion call over an ordered message history,
// with an optional streaming callback. It's built on tmc/langchaingo's
// llms.Model interface (grounded on the teacher's ptc/ptc_agent.go
// agentNode, which drives a ReAct loop the same way) so any
// langchaingo-compatible backend works without a cannoli-specific shim;
// sashabaranov/go-openai is wired in directly for the one case
// langchaingo's OpenAI adapter doesn't cover well: raw function/tool-call
// responses a call:choose node needs untouched.
package llmprovider

import (
	"context"
	"fmt"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/DeabLabs/cannoli-sub001/objects"
)

// Provider is what a call node needs from an LLM backend.
type Provider interface {
	// Complete returns the assistant's reply to messages.
	Complete(ctx context.Context, messages []objects.Message) (string, error)
	// Stream is like Complete but invokes chunk with each incremental
	// piece of the reply as it arrives (spec.md §4.5 "streaming call
	// nodes").
	Stream(ctx context.Context, messages []objects.Message, chunk func(string)) (string, error)
}

// LangchainProvider wraps any llms.Model — OpenAI, Anthropic, Ollama,
// whatever the caller constructs — behind Provider.
type LangchainProvider struct {
	Model llms.Model
}

func NewLangchainProvider(model llms.Model) *LangchainProvider {
	return &LangchainProvider{Model: model}
}

func (p *LangchainProvider) Complete(ctx context.Context, messages []objects.Message) (string, error) {
	resp, err := p.Model.GenerateContent(ctx, toLangchain(messages))
	if err != nil {
		return "", fmt.Errorf("llmprovider: generate: %w", err)
	}
	return firstChoice(resp)
}

func (p *LangchainProvider) Stream(ctx context.Context, messages []objects.Message, chunk func(string)) (string, error) {
	resp, err := p.Model.GenerateContent(ctx, toLangchain(messages), llms.WithStreamingFunc(
		func(ctx context.Context, tok []byte) error {
			chunk(string(tok))
			return nil
		},
	))
	if err != nil {
		return "", fmt.Errorf("llmprovider: stream: %w", err)
	}
	return firstChoice(resp)
}

func toLangchain(messages []objects.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, llms.MessageContent{
			Role:  roleOf(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return out
}

func roleOf(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("llmprovider: empty response")
	}
	return resp.Choices[0].Content, nil
}

// NewOpenAI builds a langchaingo OpenAI-backed Provider for the given API
// key and model name (spec.md's default "openai" provider, §6 External
// Interfaces).
func NewOpenAI(apiKey, model string) (Provider, error) {
	m, err := openai.New(openai.WithToken(apiKey), openai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("llmprovider: openai: %w", err)
	}
	return NewLangchainProvider(m), nil
}

// RawOpenAIClient exposes sashabaranov/go-openai directly for call:choose
// nodes that need an untouched function-call response (tool_calls with
// argument strings) rather than langchaingo's flattened text content.
type RawOpenAIClient struct {
	client *go_openai.Client
	model  string
}

func NewRawOpenAIClient(apiKey, model string) *RawOpenAIClient {
	return &RawOpenAIClient{client: go_openai.NewClient(apiKey), model: model}
}

// CompleteWithTools runs a chat completion offering the given tools/
// functions and returns any tool calls the model made, for call:choose
// nodes implementing branch selection as a function call (spec.md §4.5
// Choose call node).
func (c *RawOpenAIClient) CompleteWithTools(ctx context.Context, messages []objects.Message, tools []go_openai.Tool) ([]go_openai.ToolCall, string, error) {
	req := go_openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAI(messages),
		Tools:    tools,
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, "", fmt.Errorf("llmprovider: openai tools: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("llmprovider: empty tool response")
	}
	msg := resp.Choices[0].Message
	return msg.ToolCalls, msg.Content, nil
}

func toOpenAI(messages []objects.Message) []go_openai.ChatCompletionMessage {
	out := make([]go_openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = go_openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

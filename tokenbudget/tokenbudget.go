// Package tokenbudget counts and truncates chat history against a model's
// context window, using pkoukk/tiktoken-go so truncation decisions match
// the tokenizer the LLM provider actually uses rather than a rune/byte
// approximation.
package tokenbudget

import (
	"github.com/pkoukk/tiktoken-go"
)

// Message is the minimal shape tokenbudget needs from a chat message; it
// mirrors objects.Message so callers don't have to convert back and
// forth for every call.
type Message struct {
	Role    string
	Content string
}

// Budget truncates a message list to fit within a model's context window,
// always keeping the most recent messages (spec.md §4.5 chat-converter:
// "oldest messages are dropped first when the history overflows the
// configured budget").
type Budget struct {
	enc      *tiktoken.Tiktoken
	maxTotal int
}

// New builds a Budget for the named model's tokenizer (falling back to
// cl100k_base, the GPT-3.5/4 family encoding, if the model is unknown to
// tiktoken-go) and a total token ceiling.
func New(model string, maxTotal int) (*Budget, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &Budget{enc: enc, maxTotal: maxTotal}, nil
}

// Count returns the token count of a single string.
func (b *Budget) Count(text string) int {
	return len(b.enc.Encode(text, nil, nil))
}

// Truncate drops the oldest messages (and, if the single most recent
// message alone still overflows, truncates its content from the front)
// until the remaining messages fit within maxTotal tokens.
func (b *Budget) Truncate(messages []Message) []Message {
	if b.maxTotal <= 0 {
		return messages
	}

	total := 0
	counts := make([]int, len(messages))
	for i, m := range messages {
		counts[i] = b.Count(m.Content) + 4 // role/formatting overhead, per-message
		total += counts[i]
	}

	start := 0
	for total > b.maxTotal && start < len(messages)-1 {
		total -= counts[start]
		start++
	}
	kept := append([]Message(nil), messages[start:]...)

	if len(kept) == 1 && total > b.maxTotal {
		kept[0].Content = b.truncateToFit(kept[0].Content, b.maxTotal-4)
	}
	return kept
}

func (b *Budget) truncateToFit(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := b.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return b.enc.Decode(tokens[len(tokens)-maxTokens:])
}

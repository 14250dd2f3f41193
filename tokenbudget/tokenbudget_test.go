package tokenbudget

import "testing"

func TestNew_FallsBackToCl100kBaseForUnknownModel(t *testing.T) {
	b, err := New("not-a-real-model", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Count("hello world") == 0 {
		t.Error("expected a nonzero token count from the fallback encoding")
	}
}

func TestBudget_Truncate_KeepsMostRecentMessages(t *testing.T) {
	b, err := New("gpt-4o-mini", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Recompute with a tight budget that only fits the last message or two.
	b.maxTotal = b.Count("oldest message here padding padding padding") + 10

	messages := []Message{
		{Role: "user", Content: "oldest message here padding padding padding"},
		{Role: "assistant", Content: "middle message also fairly long padding"},
		{Role: "user", Content: "newest"},
	}

	kept := b.Truncate(messages)
	if len(kept) == 0 {
		t.Fatal("expected at least one message kept")
	}
	if kept[len(kept)-1].Content != "newest" {
		t.Errorf("expected the most recent message to survive truncation, got %q", kept[len(kept)-1].Content)
	}
	if kept[0] == messages[0] {
		t.Error("expected the oldest message to be dropped first")
	}
}

func TestBudget_Truncate_NoOpWhenBudgetNonPositive(t *testing.T) {
	b, err := New("gpt-4o-mini", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	messages := []Message{{Role: "user", Content: "hello"}}
	kept := b.Truncate(messages)
	if len(kept) != 1 || kept[0].Content != "hello" {
		t.Errorf("expected messages unchanged when maxTotal<=0, got %v", kept)
	}
}

func TestBudget_Truncate_TruncatesSingleOverflowingMessage(t *testing.T) {
	b, err := New("gpt-4o-mini", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	long := ""
	for i := 0; i < 200; i++ {
		long += "word "
	}
	messages := []Message{{Role: "user", Content: long}}

	kept := b.Truncate(messages)
	if len(kept) != 1 {
		t.Fatalf("expected exactly one message kept, got %d", len(kept))
	}
	if b.Count(kept[0].Content) >= b.Count(long) {
		t.Error("expected the single overflowing message's content to be shortened")
	}
}

package cannerr

import (
	"errors"
	"testing"
)

func TestNodeError_WrapsAndUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &NodeError{NodeID: "n1", Subtype: "content:http", Err: inner}

	if got := err.Error(); got != `node n1 (content:http): boom` {
		t.Errorf("unexpected message: %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to see through Unwrap to the inner error")
	}
}

func TestFormInterrupt_Error(t *testing.T) {
	err := &FormInterrupt{NodeID: "form1", Fields: []string{"name", "email"}}
	want := `form form1 awaiting fields [name email]`
	if got := err.Error(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestGraphCancelled_Error(t *testing.T) {
	cases := []struct {
		reason string
		want   string
	}{
		{"", "graph run cancelled"},
		{"user requested stop", "graph run cancelled: user requested stop"},
	}
	for _, c := range cases {
		err := &GraphCancelled{Reason: c.reason}
		if got := err.Error(); got != c.want {
			t.Errorf("reason %q: expected %q, got %q", c.reason, c.want, got)
		}
	}
}

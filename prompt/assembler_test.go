package prompt_test

import (
	"strings"
	"testing"

	"github.com/mnemolabs/mnemo/prompt"
)

func TestBoundHistoryNeverExceedsBudget(t *testing.T) {
	a := prompt.New("", 40)

	lines := []string{
		"Human: line one of the history",
		"AI: line two of the history",
		"Human: line three of the history",
	}
	got := a.BoundHistory(strings.Join(lines, "\n"))

	if len(got) > 40 {
		t.Errorf("bounded history is %d chars, budget is 40", len(got))
	}
	if got != lines[0] {
		t.Errorf("expected only the most relevant line to survive, got %q", got)
	}
}

func TestBoundHistoryDropsWholeLines(t *testing.T) {
	a := prompt.New("", 25)

	got := a.BoundHistory("Human: hello there\nAI: hi, how can I help?")
	for _, line := range strings.Split(got, "\n") {
		if line != "Human: hello there" && line != "AI: hi, how can I help?" {
			t.Errorf("line was truncated mid-line: %q", line)
		}
	}
}

func TestBoundHistoryFitsEntirely(t *testing.T) {
	a := prompt.New("", 0)

	history := "Human: short\nAI: also short"
	if got := a.BoundHistory(history); got != history {
		t.Errorf("history within budget must be untouched, got %q", got)
	}
}

func TestBoundHistoryFirstLineOverBudget(t *testing.T) {
	a := prompt.New("", 5)

	if got := a.BoundHistory("Human: this single line is far over budget"); got != "" {
		t.Errorf("expected empty history when nothing fits, got %q", got)
	}
}

func TestAssembleEmptyHistory(t *testing.T) {
	a := prompt.New("", 0)

	got := a.Assemble("", "Hello")
	if !strings.HasPrefix(got, prompt.DefaultPreamble) {
		t.Errorf("prompt must start with the preamble, got %q", got)
	}
	if !strings.Contains(got, "Conversation history:\n") {
		t.Errorf("prompt must keep the history section header, got %q", got)
	}
	if !strings.HasSuffix(got, "Human: Hello\nAI:") {
		t.Errorf("prompt must end with the new turn and AI cue, got %q", got)
	}
}

func TestAssembleWithHistory(t *testing.T) {
	a := prompt.New("You are terse.", 0)

	got := a.Assemble("Human: earlier question\nAI: earlier answer", "What now?")
	wantOrder := []string{
		"You are terse.",
		"Conversation history:",
		"Human: earlier question",
		"AI: earlier answer",
		"Human: What now?",
		"AI:",
	}
	pos := 0
	for _, part := range wantOrder {
		i := strings.Index(got[pos:], part)
		if i < 0 {
			t.Fatalf("missing %q in prompt:\n%s", part, got)
		}
		pos += i + len(part)
	}
}

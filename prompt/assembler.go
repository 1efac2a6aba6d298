// Package prompt assembles the final completion prompt from an
// instruction preamble, a budget-bounded history block, and the new
// human turn.
package prompt

import "strings"

// DefaultPreamble is the fixed instruction block prepended to every
// prompt.
const DefaultPreamble = "The following is a conversation between a human and an AI assistant. " +
	"The assistant is helpful and concise, and uses the conversation history " +
	"below when it is relevant to the question."

// DefaultBudget is the default character budget for the history block.
const DefaultBudget = 2000

// Assembler builds prompts. The zero value is not usable; construct with
// New.
type Assembler struct {
	preamble string
	budget   int
}

// New creates an assembler. Empty preamble selects DefaultPreamble;
// budget <= 0 selects DefaultBudget.
func New(preamble string, budget int) *Assembler {
	if preamble == "" {
		preamble = DefaultPreamble
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Assembler{preamble: preamble, budget: budget}
}

// BoundHistory truncates the history block to the character budget.
// Input lines are ordered most relevant first; truncation drops whole
// lines from the least-relevant end, never mid-line. The result's length
// never exceeds the budget.
func (a *Assembler) BoundHistory(history string) string {
	history = strings.TrimSpace(history)
	if history == "" {
		return ""
	}

	lines := strings.Split(history, "\n")
	total := 0
	kept := 0
	for _, line := range lines {
		n := len(line)
		if kept > 0 {
			n++ // joining newline
		}
		if total+n > a.budget {
			break
		}
		total += n
		kept++
	}

	return strings.Join(lines[:kept], "\n")
}

// Assemble produces the final prompt: preamble, history section, and the
// new human turn. An empty history yields a valid prompt with an empty
// history section; Assemble never fails.
func (a *Assembler) Assemble(history, userPrompt string) string {
	var b strings.Builder
	b.WriteString(a.preamble)
	b.WriteString("\n\nConversation history:\n")
	if bounded := a.BoundHistory(history); bounded != "" {
		b.WriteString(bounded)
		b.WriteString("\n")
	}
	b.WriteString("\nHuman: ")
	b.WriteString(userPrompt)
	b.WriteString("\nAI:")
	return b.String()
}

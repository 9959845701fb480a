package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/agentforge/internal/domain"
)

// ExpectedOutput is appended to every task so the model answers the
// request directly.
const ExpectedOutput = "A detailed response addressing the user's request."

// BuildSystemPrompt constructs the system prompt that gives the model the
// agent's persona.
func BuildSystemPrompt(a *domain.Agent, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s.\n", a.Role)
	if a.Name != "" {
		fmt.Fprintf(&b, "Your name is %s.\n", a.Name)
	}
	fmt.Fprintf(&b, "Current date: %s\n\n", now.Format("2006-01-02"))

	b.WriteString("Backstory:\n")
	b.WriteString(strings.TrimSpace(a.Backstory))
	b.WriteString("\n\n")

	b.WriteString("Your personal goal is:\n")
	b.WriteString(strings.TrimSpace(a.Goal))
	b.WriteString("\n")

	return b.String()
}

// BuildTaskPrompt wraps the composed prompt with the expected-output line.
func BuildTaskPrompt(prompt string) string {
	var b strings.Builder
	b.WriteString("Current Task: ")
	b.WriteString(prompt)
	b.WriteString("\n\nThis is the expected criteria for your final answer: ")
	b.WriteString(ExpectedOutput)
	b.WriteString("\n")
	return b.String()
}

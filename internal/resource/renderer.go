// Package resource turns an agent's tools, links, and documents into the
// context text that precedes a user's request.
package resource

import (
	"fmt"
	"strings"

	"github.com/soyeahso/agentforge/internal/domain"
)

// previewLimit caps how many characters of a document are included.
const previewLimit = 2000

// Renderer builds resource context for agents.
type Renderer struct {
	docs *Documents
}

// NewRenderer creates a renderer that reads documents from docs.
func NewRenderer(docs *Documents) *Renderer {
	return &Renderer{docs: docs}
}

// Render returns the context block for agent, or "" when it has no resources.
func (r *Renderer) Render(agent *domain.Agent) string {
	if len(agent.Resources) == 0 {
		return ""
	}

	var parts []string

	if tools := agent.ResourcesOf(domain.ResourceTool); len(tools) > 0 {
		parts = append(parts, renderTools(tools), "")
	}

	if links := agent.ResourcesOf(domain.ResourceLink); len(links) > 0 {
		parts = append(parts,
			"=== Available Links ===",
			"You can reference these links for information:",
		)
		for _, l := range links {
			parts = append(parts, fmt.Sprintf("  - %s: %s", l.Name, l.Value))
		}
		parts = append(parts, "")
	}

	if docs := agent.ResourcesOf(domain.ResourceDocument); len(docs) > 0 {
		parts = append(parts,
			"=== Available Documents ===",
			"You have access to the following documents. Use their content to answer questions:",
			"",
		)
		for _, d := range docs {
			parts = append(parts, r.renderDocument(agent.ID, d)...)
			parts = append(parts, "")
		}
	}

	return strings.Join(parts, "\n")
}

func (r *Renderer) renderDocument(agentID string, doc domain.Resource) []string {
	out := []string{"**Document: " + doc.Name + "**"}
	if doc.Value == "" {
		return append(out, "No file path specified")
	}

	ex := r.docs.Extract(agentID, doc.Value)
	if ex.Note != "" || ex.Text == "" {
		out = append(out, "Path: "+doc.Value)
		if ex.Note != "" {
			out = append(out, "Note: ["+ex.Note+"]")
		}
		return out
	}

	text := []rune(ex.Text)
	preview := ex.Text
	if len(text) > previewLimit {
		preview = string(text[:previewLimit]) +
			fmt.Sprintf("\n... [Document continues, %d total characters]", len(text))
	}
	return append(out, "Content:\n"+preview)
}

// ComposePrompt joins rendered context and the user's request. Without
// context the prompt is returned unchanged.
func ComposePrompt(contextText, prompt string) string {
	if contextText == "" {
		return prompt
	}
	return contextText + "\n\n=== User Request ===\n" + prompt
}

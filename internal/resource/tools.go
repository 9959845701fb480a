package resource

import (
	"strings"

	"github.com/soyeahso/agentforge/internal/domain"
)

// ToolInfo describes a built-in tool an agent can be told about.
type ToolInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
}

// Catalog lists the built-in tools in display order.
var Catalog = []ToolInfo{
	{
		Key:         "web_search",
		Name:        "Web Search",
		Description: "Search the web for information. Use this to find current information, research topics, or verify facts.",
		Usage:       "When you need to search for information online, use web_search(query='your search term')",
	},
	{
		Key:         "calculator",
		Name:        "Calculator",
		Description: "Perform mathematical calculations. Use this for arithmetic, algebra, or any numerical computations.",
		Usage:       "For calculations, use calculator(expression='2+2') or calculator(expression='sqrt(16)')",
	},
	{
		Key:         "code_executor",
		Name:        "Code Executor",
		Description: "Execute Python code snippets. Use this to run calculations, process data, or test code.",
		Usage:       `To execute code, use code_executor(code='print("Hello")')`,
	},
	{
		Key:         "file_reader",
		Name:        "File Reader",
		Description: "Read content from files. Use this to access local files or documents.",
		Usage:       "To read a file, use file_reader(filepath='path/to/file.txt')",
	},
	{
		Key:         "data_analyzer",
		Name:        "Data Analyzer",
		Description: "Analyze data structures, JSON, CSV files. Use this to process and understand data.",
		Usage:       "To analyze data, use data_analyzer(data='your data', format='json')",
	},
	{
		Key:         "text_processor",
		Name:        "Text Processor",
		Description: "Process and manipulate text. Use this for text analysis, formatting, or transformation.",
		Usage:       "To process text, use text_processor(text='your text', operation='summarize')",
	},
}

// LookupTool finds a built-in tool by name, ignoring case and treating
// spaces as underscores.
func LookupTool(name string) (ToolInfo, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	for _, t := range Catalog {
		if t.Key == key {
			return t, true
		}
	}
	return ToolInfo{}, false
}

func renderTools(tools []domain.Resource) string {
	if len(tools) == 0 {
		return ""
	}

	parts := []string{
		"\n=== Available Tools ===",
		"You have access to the following tools. Use them when appropriate:",
		"",
	}
	for _, tool := range tools {
		if info, ok := LookupTool(tool.Name); ok {
			parts = append(parts,
				"**"+info.Name+"**",
				"  Description: "+info.Description,
				"  Usage: "+info.Usage,
				"",
			)
			continue
		}
		desc := tool.Description
		if desc == "" {
			desc = tool.Value
		}
		parts = append(parts,
			"**"+tool.Name+"**",
			"  Description: "+desc,
			"  Note: This is a custom tool. Use it as described in your instructions.",
			"",
		)
	}
	parts = append(parts,
		"When using tools, describe what you're doing and why.",
		"If a tool is not available, explain what you would do if it were available.",
	)
	return strings.Join(parts, "\n")
}

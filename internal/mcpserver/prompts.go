package mcpserver

import (
	"context"
	"embed"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

// Prompt text ships inside the binary so the server works from any
// working directory.
//
//go:embed prompts/*.md
var promptFS embed.FS

// registerPrompts adds every embedded prompt file to the server. The file
// name minus .md becomes the prompt name; an optional YAML frontmatter
// block carries the description.
func (s *Server) registerPrompts() {
	entries, err := promptFS.ReadDir("prompts")
	if err != nil {
		return
	}
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".md")
		if !ok || entry.IsDir() {
			continue
		}
		raw, err := promptFS.ReadFile("prompts/" + entry.Name())
		if err != nil {
			continue
		}
		desc, body := splitFrontmatter(string(raw))
		s.server.AddPrompt(&mcp.Prompt{Name: name, Description: desc}, promptHandler(desc, body))
	}
}

// splitFrontmatter separates an optional leading "---" YAML block from the
// prompt body. Malformed frontmatter leaves the content untouched.
func splitFrontmatter(content string) (description, body string) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return "", content
	}
	meta, after, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return "", content
	}
	var fm struct {
		Description string `yaml:"description"`
	}
	if err := yaml.Unmarshal([]byte(meta), &fm); err != nil {
		return "", content
	}
	return fm.Description, strings.TrimPrefix(after, "\n")
}

func promptHandler(description, body string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: description,
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: body}},
			},
		}, nil
	}
}

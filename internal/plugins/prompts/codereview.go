// ABOUTME: code_review prompt asking for a structured review in a given language
// ABOUTME: The language defaults to python and is title-cased in the text

package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/mcp-scaffold/internal/discovery"
	"github.com/2389/mcp-scaffold/internal/registry"
	"github.com/2389/mcp-scaffold/internal/textcase"
)

// CodeReviewSource registers the code_review prompt.
var CodeReviewSource = discovery.NewSource("builtin:prompts/code_review", registry.KindPrompt, func(b *registry.Builder) error {
	return b.Register(&registry.Capability{
		Name:        "code_review",
		Kind:        registry.KindPrompt,
		Description: "Generate a code review prompt for the specified language",
		Source:      "builtin:prompts/code_review",
		Arguments: []registry.PromptArgument{
			{Name: "language", Description: "Programming language (default: python)", Default: "python"},
		},
		Prompt: func(ctx context.Context, args map[string]string) ([]registry.PromptMessage, error) {
			lang := args["language"]
			if strings.TrimSpace(lang) == "" {
				lang = "python"
			}
			return []registry.PromptMessage{{Role: "user", Text: CodeReview(lang)}}, nil
		},
	})
})

// CodeReview builds the review request text.
func CodeReview(language string) string {
	lang := textcase.Title(language)
	return fmt.Sprintf(`You are an expert %[1]s code reviewer. Please review the following code for:

1. **Code Quality**
   - Readability and maintainability
   - Proper naming conventions
   - Code organization

2. **Best Practices**
   - Following %[1]s idioms
   - Error handling
   - Security considerations

3. **Performance**
   - Efficiency issues
   - Potential bottlenecks

4. **Documentation**
   - Comments and docstrings
   - Clear explanations

Please provide specific, actionable feedback with examples where appropriate.
`, lang)
}

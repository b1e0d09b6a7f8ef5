package output

import (
	"fmt"
	"unicode/utf8"
)

// runesPerToken approximates how LLM tokenizers chunk Python source:
// around four characters per token for code-heavy text.
const runesPerToken = 4.0

// EstimateTokens approximates the LLM token count of a bundle or report.
// The point of shaking a tree down to one entrypoint is fitting it into a
// model context, so the estimate rides along with the output. Counts are
// heuristic; exact numbers need the provider's tokenizer.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	return int(float64(runes)/runesPerToken + 0.5)
}

// FormatTokenCount renders a token count for display, collapsing
// thousands to "X.Xk".
func FormatTokenCount(tokens int) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	}
	return fmt.Sprintf("%.1fk", float64(tokens)/1000)
}

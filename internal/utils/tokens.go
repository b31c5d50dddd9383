package utils

// Token estimates use the usual ~4 characters per token heuristic. They only
// size prompts; nothing depends on an exact tokenizer.
const charsPerToken = 4

// CountTokens estimates the tokens in text. Any non-empty text is at least 1.
func CountTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return max(n/charsPerToken, 1)
}

// TruncateToTokenLimit cuts text to roughly limit tokens.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if limit*charsPerToken >= len(runes) {
		return text
	}
	return string(runes[:limit*charsPerToken])
}

// FitLines keeps whole lines, in order, while their running token estimate
// stays within budget. It returns the kept prefix.
func FitLines(lines []string, budget int) []string {
	used := 0
	for i, l := range lines {
		used += CountTokens(l) + 1
		if used > budget {
			return lines[:i]
		}
	}
	return lines
}

// TokenBreakdown estimates tokens per labeled prompt section.
func TokenBreakdown(sections map[string]string) map[string]int {
	out := make(map[string]int, len(sections))
	for k, v := range sections {
		out[k] = CountTokens(v)
	}
	return out
}

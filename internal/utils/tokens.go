package utils

import "strings"

// charsPerToken is the rough ratio used to keep reports inside a model's
// context window.
const charsPerToken = 4

// CountTokens estimates the token count of text. Non-empty text is at least
// one token.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if n := len([]rune(text)) / charsPerToken; n > 0 {
		return n
	}
	return 1
}

// TruncateToTokenLimit shortens text to roughly limit tokens. The cut lands on
// the last line break inside the budget when there is one, so report rows are
// never split.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	max := limit * charsPerToken
	if max >= len(runes) {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i]
	}
	return cut
}

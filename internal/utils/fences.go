package utils

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("```[A-Za-z0-9_+-]*")

// StripCodeFences removes Markdown code-fence markers (with or without a
// language tag) and surrounding whitespace from model output.
func StripCodeFences(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(s, ""))
}

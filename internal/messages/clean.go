package messages

import (
	"regexp"
	"strings"
)

var (
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	extraNewlines     = regexp.MustCompile(`\n{3,}`)
)

// CleanContent strips reasoning tags some local models emit so the
// user never sees the model thinking out loud. An unterminated tag at
// the end of the response is removed together with its tail.
func CleanContent(content string) string {
	cleaned := thinkBlockPattern.ReplaceAllString(content, "")

	if open := strings.LastIndex(cleaned, "<think>"); open != -1 {
		if strings.LastIndex(cleaned, "</think>") < open {
			cleaned = cleaned[:open]
		}
	}

	cleaned = strings.TrimSpace(cleaned)
	if rest, ok := strings.CutPrefix(cleaned, "</think>"); ok {
		cleaned = strings.TrimSpace(rest)
	}

	return extraNewlines.ReplaceAllString(cleaned, "\n\n")
}

package telegram

import (
	"strings"
	"unicode"
)

// ContentType classifies outgoing text so the sender can pick a
// parse mode.
type ContentType int

const (
	// ContentTypePlain is text without formatting.
	ContentTypePlain ContentType = iota
	// ContentTypeMarkdown is text with markdown emphasis or links.
	ContentTypeMarkdown
	// ContentTypeCode is text containing code fences or inline code.
	ContentTypeCode
)

// DetectContentType inspects the text for code fences, inline code
// and markdown emphasis. Escaped markers do not count.
func DetectContentType(text string) ContentType {
	if containsNonEscaped(text, "```") || containsNonEscaped(text, "`") {
		return ContentTypeCode
	}

	for _, pattern := range []string{"**", "__", "~~"} {
		if containsNonEscaped(text, pattern) {
			return ContentTypeMarkdown
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) {
			i++
			continue
		}
		switch r {
		case '*', '_':
			// A doubled marker belongs to the pair patterns above.
			if i+1 < len(runes) && runes[i+1] == r {
				continue
			}
			return ContentTypeMarkdown
		case '[', '~':
			return ContentTypeMarkdown
		}
	}

	return ContentTypePlain
}

func containsNonEscaped(text, pattern string) bool {
	for idx := strings.Index(text, pattern); idx != -1; {
		backslashes := 0
		for i := idx - 1; i >= 0 && text[i] == '\\'; i-- {
			backslashes++
		}
		if backslashes%2 == 0 {
			return true
		}

		next := strings.Index(text[idx+len(pattern):], pattern)
		if next == -1 {
			break
		}
		idx += len(pattern) + next
	}
	return false
}

// MarkdownToHTML converts common markdown to Telegram HTML.
func MarkdownToHTML(markdown string) string {
	return renderMarkdown(markdown, true)
}

// StripFormatting removes markdown formatting, leaving the bare
// text. Used as the last resort when Telegram rejects entities.
func StripFormatting(text string) string {
	return renderMarkdown(text, false)
}

func renderMarkdown(text string, htmlMode bool) string {
	if text == "" {
		return ""
	}

	out := processFences(text, htmlMode)
	out = processInlineCode(out, htmlMode)
	out = processPaired(out, "**", "b", htmlMode)
	out = processPaired(out, "~~", "s", htmlMode)
	out = processPaired(out, "__", "u", htmlMode)
	out = processLinks(out, htmlMode)
	out = processEmphasis(out, htmlMode)
	return out
}

// processFences converts ``` blocks to <pre><code> (or bare text).
func processFences(text string, htmlMode bool) string {
	var b strings.Builder
	runes := []rune(text)
	i := 0

	for i < len(runes) {
		if i+2 >= len(runes) || runes[i] != '`' || runes[i+1] != '`' || runes[i+2] != '`' {
			b.WriteRune(runes[i])
			i++
			continue
		}

		// Skip the language tag and leading whitespace.
		start := i + 3
		for start < len(runes) && !unicode.IsSpace(runes[start]) {
			start++
		}
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}

		end := start
		for end < len(runes)-2 {
			if runes[end] == '`' && runes[end+1] == '`' && runes[end+2] == '`' {
				break
			}
			end++
		}

		code := strings.TrimSuffix(string(runes[start:end]), "\n")
		if htmlMode {
			b.WriteString("<pre><code>")
			b.WriteString(htmlEscape(code))
			b.WriteString("</code></pre>")
		} else {
			b.WriteString(code)
		}
		i = end + 3
	}

	return b.String()
}

func processInlineCode(text string, htmlMode bool) string {
	var b strings.Builder
	inCode := false
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		if runes[i] != '`' {
			b.WriteRune(runes[i])
			continue
		}

		inCode = !inCode
		if htmlMode {
			if inCode {
				b.WriteString("<code>")
			} else {
				b.WriteString("</code>")
			}
		}
	}

	return b.String()
}

// processPaired rewrites delim...delim spans as <tag>...</tag>.
// An unclosed delimiter passes through untouched.
func processPaired(text, delim, tag string, htmlMode bool) string {
	var b strings.Builder
	runes := []rune(text)
	d := []rune(delim)
	i := 0

	matchAt := func(pos int) bool {
		if pos+len(d) > len(runes) {
			return false
		}
		for k, r := range d {
			if runes[pos+k] != r {
				return false
			}
		}
		return true
	}

	for i < len(runes) {
		if !matchAt(i) {
			b.WriteRune(runes[i])
			i++
			continue
		}

		end := i + len(d)
		for end < len(runes) && !matchAt(end) {
			end++
		}
		if end >= len(runes) {
			b.WriteRune(runes[i])
			i++
			continue
		}

		content := string(runes[i+len(d) : end])
		if htmlMode {
			b.WriteString("<" + tag + ">")
			b.WriteString(content)
			b.WriteString("</" + tag + ">")
		} else {
			b.WriteString(content)
		}
		i = end + len(d)
	}

	return b.String()
}

// processEmphasis handles single *text* and _text_ spans.
func processEmphasis(text string, htmlMode bool) string {
	var b strings.Builder
	runes := []rune(text)
	i := 0

	for i < len(runes) {
		r := runes[i]
		if r != '*' && r != '_' {
			b.WriteRune(r)
			i++
			continue
		}

		end := i + 1
		for end < len(runes) && runes[end] != r {
			end++
		}
		if end >= len(runes) || end == i+1 {
			b.WriteRune(r)
			i++
			continue
		}

		content := string(runes[i+1 : end])
		if htmlMode {
			b.WriteString("<i>")
			b.WriteString(content)
			b.WriteString("</i>")
		} else {
			b.WriteString(content)
		}
		i = end + 1
	}

	return b.String()
}

func processLinks(text string, htmlMode bool) string {
	var b strings.Builder
	runes := []rune(text)
	i := 0

	for i < len(runes) {
		if runes[i] != '[' {
			b.WriteRune(runes[i])
			i++
			continue
		}

		end := i + 1
		for end < len(runes) && runes[end] != ']' {
			end++
		}
		if end+1 >= len(runes) || runes[end+1] != '(' {
			b.WriteRune(runes[i])
			i++
			continue
		}

		urlEnd := end + 2
		for urlEnd < len(runes) && runes[urlEnd] != ')' {
			urlEnd++
		}
		if urlEnd >= len(runes) {
			b.WriteRune(runes[i])
			i++
			continue
		}

		label := string(runes[i+1 : end])
		url := string(runes[end+2 : urlEnd])
		if htmlMode {
			b.WriteString(`<a href="` + htmlEscape(url) + `">` + label + `</a>`)
		} else {
			b.WriteString(label)
		}
		i = urlEnd + 1
	}

	return b.String()
}

func htmlEscape(text string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(text)
}

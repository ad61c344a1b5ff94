// Package fetch expands a bare URL in a user message into page
// content the model can read. The page is fetched with a bounded
// size, converted to markdown and appended as context.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/wasilibs/go-re2"

	"github.com/aatumaykin/skillbot/internal/config"
	"github.com/aatumaykin/skillbot/internal/logger"
)

var (
	urlPattern    = re2.MustCompile(`https?://[^\s<>"]+`)
	extraNewlines = re2.MustCompile(`\n{3,}`)
)

// contextLimit caps how much page text reaches the model after
// conversion, independent of the raw response size cap.
const contextLimit = 8000

// Expander fetches a URL found in a message and renders it for the
// model.
type Expander struct {
	cfg    config.FetchConfig
	client *http.Client
	conv   *md.Converter
	logger *logger.Logger
}

func NewExpander(cfg config.FetchConfig, log *logger.Logger) *Expander {
	opts := &md.Options{
		HeadingStyle:    "atx",
		CodeBlockStyle:  "fenced",
		EmDelimiter:     "*",
		StrongDelimiter: "**",
	}

	conv := md.NewConverter("", true, opts)
	conv.AddRules(md.Rule{
		Filter: []string{"nav", "footer", "aside", "script", "style"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			empty := ""
			return &empty
		},
	})

	return &Expander{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		conv:   conv,
		logger: log,
	}
}

// FindURL returns the first http(s) URL in the text, or "".
func FindURL(text string) string {
	return urlPattern.FindString(text)
}

// Expand returns the message with fetched page content appended as a
// context block. Any failure returns the original text unchanged;
// a page the user linked is never worth failing the message over.
func (e *Expander) Expand(ctx context.Context, text string) string {
	if !e.cfg.Enabled {
		return text
	}

	url := FindURL(text)
	if url == "" {
		return text
	}

	content, err := e.fetch(ctx, url)
	if err != nil {
		e.logger.Warn("URL expansion failed",
			logger.Field{Key: "url", Value: url},
			logger.Field{Key: "error", Value: err.Error()})
		return text
	}
	if content == "" {
		return text
	}

	return fmt.Sprintf("%s\n\n[Content from %s]:\n%s", text, url, content)
}

func (e *Expander) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	content := string(body)

	if strings.Contains(contentType, "text/html") {
		content = e.toMarkdown(content)
	}

	content = strings.TrimSpace(content)
	if len(content) > contextLimit {
		content = content[:contextLimit] + "\n... (truncated)"
	}

	return content, nil
}

func (e *Expander) toMarkdown(html string) string {
	markdown, err := e.conv.ConvertString(html)
	if err != nil {
		e.logger.Warn("HTML to markdown conversion failed",
			logger.Field{Key: "error", Value: err.Error()})
		return ""
	}

	markdown = extraNewlines.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown)
}

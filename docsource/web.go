package docsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// maxFetchSize caps fetched pages to prevent memory exhaustion.
const maxFetchSize = 8 * 1024 * 1024 // 8MB

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// Fetcher downloads a guideline page and converts it into an extraction
// source. Article content is isolated with readability, then converted to
// markdown so the extraction backend sees prose instead of page chrome.
type Fetcher struct {
	httpClient *http.Client
	converter  *md.Converter
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherHTTPClient sets a custom HTTP client.
func WithFetcherHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a web guideline fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	f := &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		converter:  converter,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch validates, downloads, and converts a guideline URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return f.Convert(rawURL, body)
}

// Convert turns fetched HTML into a markdown Document.
func (f *Fetcher) Convert(rawURL string, htmlContent []byte) (*Document, error) {
	parsedURL, _ := url.Parse(rawURL)

	title := extractHTMLTitle(htmlContent)
	content := string(htmlContent)

	// Isolate the article body; fall back to the whole page when
	// readability can't find one.
	article, err := readability.FromReader(strings.NewReader(content), parsedURL)
	if err == nil && article.Content != "" {
		content = article.Content
		if title == "" {
			title = article.Title
		}
	} else if err != nil {
		f.logger.Debug("Readability extraction failed, using full page", "url", rawURL, "error", err)
	}

	markdown, err := f.converter.ConvertString(content)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n"))

	return &Document{
		Filename: rawURL,
		Title:    title,
		Text:     markdown,
	}, nil
}

// extractHTMLTitle pulls the <title> element out of a page.
func extractHTMLTitle(content []byte) string {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		return ""
	}

	var title string
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" {
				return
			}
			extract(c)
		}
	}
	extract(doc)
	return title
}

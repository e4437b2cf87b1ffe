// Package summarize derives short poster bullets from an article page.
package summarize

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mackee/go-readability"

	"github.com/scipunch/technews/agent"
)

const (
	defaultTimeout = 20 * time.Second
	maxPageBytes   = 5 << 20
	maxAgentInput  = 12000
	userAgent      = "Mozilla/5.0 (compatible; technews/1.0)"
)

// Strategy turns a raw HTML page into plain article text
type Strategy interface {
	Name() string
	Extract(page string) (string, error)
}

// Readability extracts the main article content like Firefox reader view
type Readability struct{}

func (Readability) Name() string { return "readability" }

func (Readability) Extract(page string) (string, error) {
	article, err := readability.Extract(page, readability.DefaultOptions())
	if err != nil {
		return "", fmt.Errorf("failed to extract article with %w", err)
	}
	if article.Root == nil {
		return "", nil
	}
	return htmlText(readability.ToHTML(article.Root))
}

// BodyText returns all visible text of the page body
type BodyText struct{}

func (BodyText) Name() string { return "body_text" }

func (BodyText) Extract(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse html with %w", err)
	}
	doc.Find("script, style, noscript, template, svg, iframe").Remove()
	return clean(doc.Find("body").Text()), nil
}

func htmlText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse html with %w", err)
	}
	var parts []string
	doc.Find("p, li, h1, h2, h3, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li").Length() > 0 {
			return // nested blocks are visited on their own
		}
		if t := clean(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return clean(doc.Text()), nil
	}
	return strings.Join(parts, " "), nil
}

// Summarizer fetches the article behind url and builds bullets from it.
// The first strategy producing text wins; an optional agent gets the first shot at the bullets.
type Summarizer struct {
	client     *http.Client
	strategies []Strategy
	agent      agent.Agent
	maxChars   int
}

type Option func(*Summarizer)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Summarizer) { s.client = c }
}

func WithStrategies(strategies ...Strategy) Option {
	return func(s *Summarizer) { s.strategies = strategies }
}

// WithAgent lets a language model write the bullets, falling back to extraction on failure
func WithAgent(a agent.Agent) Option {
	return func(s *Summarizer) { s.agent = a }
}

func WithMaxChars(n int) Option {
	return func(s *Summarizer) { s.maxChars = n }
}

func New(opts ...Option) *Summarizer {
	s := &Summarizer{
		client:     &http.Client{Timeout: defaultTimeout},
		strategies: []Strategy{Readability{}, BodyText{}},
		maxChars:   DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize never fails: when the article cannot be read the title is the only bullet
func (s *Summarizer) Summarize(ctx context.Context, title, url string, maxBullets int) []string {
	if maxBullets <= 0 {
		maxBullets = DefaultMaxBullets
	}

	page, err := s.fetch(ctx, url)
	if err != nil {
		slog.Warn("failed to fetch article", "url", url, "with", err)
		return []string{title}
	}

	text := s.extract(page, url)
	if text == "" {
		return []string{title}
	}

	if s.agent != nil {
		if bullets := s.agentBullets(ctx, title, text, maxBullets); len(bullets) > 0 {
			return bullets
		}
	}
	return Bullets(text, title, maxBullets, s.maxChars)
}

func (s *Summarizer) extract(page, url string) string {
	for _, strategy := range s.strategies {
		text, err := strategy.Extract(page)
		if err != nil {
			slog.Debug("extraction strategy failed", "strategy", strategy.Name(), "url", url, "with", err)
			continue
		}
		if text = clean(text); text != "" {
			slog.Debug("extracted article", "strategy", strategy.Name(), "url", url, "chars", len(text))
			return text
		}
	}
	return ""
}

func (s *Summarizer) agentBullets(ctx context.Context, title, text string, maxBullets int) []string {
	if utf8.RuneCountInString(text) > maxAgentInput {
		text = string([]rune(text)[:maxAgentInput])
	}
	out, err := s.agent.Process(ctx, "Title: "+title+"\n\n"+text)
	if err != nil {
		slog.Warn("agent failed, using extractive bullets", "agent", s.agent.Name(), "with", err)
		return nil
	}
	return capChars(parseListing(out, maxBullets), s.maxChars)
}

func (s *Summarizer) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page with %w", err)
	}
	return string(body), nil
}

package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scipunch/technews/fetcher/types"
)

const defaultKeywordEndpoint = "https://newsapi.org/v2/top-headlines"

// KeywordAPIConfig configures the NewsAPI headline source
type KeywordAPIConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// KeywordAPISource queries the NewsAPI technology headlines with a single bounded request
type KeywordAPISource struct {
	cfg    KeywordAPIConfig
	client *http.Client
	now    func() time.Time
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func NewKeywordAPISource(cfg KeywordAPIConfig, opts ...Option) *KeywordAPISource {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultKeywordEndpoint
	}
	o := buildOptions(cfg.Timeout, opts)
	return &KeywordAPISource{cfg: cfg, client: o.client, now: o.now}
}

func (s *KeywordAPISource) Name() string { return "newsapi" }

// Fetch returns no items and no error when no API key is configured
func (s *KeywordAPISource) Fetch(ctx context.Context, maxItems int, lookback time.Duration) ([]types.NewsItem, error) {
	key := strings.TrimSpace(s.cfg.APIKey)
	if key == "" {
		return nil, nil
	}

	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return nil, &SourceError{Source: s.Name(), URL: s.cfg.Endpoint, Err: err}
	}
	q := u.Query()
	q.Set("category", "technology")
	q.Set("pageSize", strconv.Itoa(maxItems))
	q.Set("language", "en")
	u.RawQuery = q.Encode()

	items, err := s.fetch(ctx, u.String(), key, lookback)
	if err != nil {
		return nil, &SourceError{Source: s.Name(), URL: s.cfg.Endpoint, Err: err}
	}
	return items, nil
}

func (s *KeywordAPISource) fetch(ctx context.Context, endpoint, key string, lookback time.Duration) ([]types.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", key)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response with %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data newsAPIResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode response with %w", err)
	}
	if data.Status == "error" {
		return nil, fmt.Errorf("api error %s: %s", data.Code, data.Message)
	}

	now := s.now().UTC()
	items := make([]types.NewsItem, 0, len(data.Articles))
	for _, a := range data.Articles {
		title := strings.TrimSpace(a.Title)
		link := strings.TrimSpace(a.URL)
		if title == "" || link == "" {
			continue
		}
		publishedAt := timestampOr(a.PublishedAt, now)
		if !types.IsFresh(publishedAt, now, lookback) {
			continue
		}
		items = append(items, types.NewsItem{
			Source:      strings.TrimSpace(a.Source.Name),
			Title:       title,
			URL:         link,
			PublishedAt: publishedAt,
		})
	}
	return items, nil
}

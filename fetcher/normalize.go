package fetcher

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultRequestTimeout = 20 * time.Second

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type options struct {
	client *http.Client
	now    func() time.Time
}

// Option customizes a source
type Option func(*options)

// WithHTTPClient replaces the HTTP client used for upstream requests
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithClock replaces the wall clock used for freshness checks and timestamp fallback
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(timeout time.Duration, opts []Option) options {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	o := options{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// parseTimestamp parses the raw timestamp formats seen in feeds and APIs
func parseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	// epoch seconds
	if len(s) >= 10 {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time: %s", s)
}

// timestampOr parses raw, falling back to now when it cannot be parsed
func timestampOr(raw string, now time.Time) time.Time {
	t, err := parseTimestamp(raw)
	if err != nil {
		return now.UTC()
	}
	return t
}

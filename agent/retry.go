package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/scipunch/technews/retry"
)

// RetryConfig controls how an agent call is retried on quota and availability errors
type RetryConfig struct {
	MaxRetries     int           // retries after the first attempt
	InitialBackoff time.Duration // first wait, doubled after each retry
	MaxBackoff     time.Duration // cap for any single wait, including server hints
	Timeout        time.Duration // overall budget of one Process call
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     time.Minute,
		Timeout:        5 * time.Minute,
	}
}

type retryAgent struct {
	inner  Agent
	config RetryConfig
}

// WithRetry wraps agent so retryable failures (quota, rate limit, overload) are retried with backoff
func WithRetry(agent Agent, config RetryConfig) Agent {
	return &retryAgent{inner: agent, config: config}
}

func (r *retryAgent) Name() string {
	return r.inner.Name()
}

func (r *retryAgent) Process(ctx context.Context, content string) (string, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	policy := retry.Policy{
		MaxAttempts: r.config.MaxRetries + 1,
		NewBackOff:  r.newBackOff,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			slog.Warn("agent call failed, retrying", "agent", r.inner.Name(), "attempt", attempt+1, "wait", wait, "with", err)
		},
	}

	out, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (string, error) {
		return r.inner.Process(ctx, content)
	}, r.classify)
	if err == nil {
		return out, nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("agent %s timed out after %v: %w", r.inner.Name(), r.config.Timeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return "", fmt.Errorf("agent %s cancelled: %w", r.inner.Name(), err)
	case isRetryable(err):
		return "", fmt.Errorf("agent %s failed after max retries (%d): %w", r.inner.Name(), r.config.MaxRetries, err)
	default:
		return "", fmt.Errorf("agent %s failed with non-retryable error: %w", r.inner.Name(), err)
	}
}

func (r *retryAgent) classify(_ string, err error) (retry.Verdict, time.Duration) {
	if err == nil {
		return retry.Success, retry.NoHint
	}
	if !isRetryable(err) {
		return retry.Fatal, retry.NoHint
	}
	wait := extractRetryDelay(err)
	if wait <= 0 {
		return retry.Retryable, retry.NoHint
	}
	if r.config.MaxBackoff > 0 && wait > r.config.MaxBackoff {
		wait = r.config.MaxBackoff
	}
	return retry.Retryable, wait
}

func (r *retryAgent) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialBackoff
	b.MaxInterval = r.config.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

var retryablePatterns = []string{
	"resource_exhausted",
	"quota",
	"429",
	"503",
	"unavailable",
	"rate limit",
	"overloaded",
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

var (
	retryInRe    = regexp.MustCompile(`retry in ([0-9]+(?:\.[0-9]+)?)s`)
	retryDelayRe = regexp.MustCompile(`retryDelay"?\s*:\s*"?([0-9]+(?:\.[0-9]+)?)s`)
)

// extractRetryDelay reads server provided delays such as "retry in 12.5s" or "retryDelay:10s"
func extractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	msg := err.Error()
	for _, re := range []*regexp.Regexp{retryInRe, retryDelayRe} {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		secs, perr := strconv.ParseFloat(m[1], 64)
		if perr != nil {
			continue
		}
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

package retry

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPClassifier retries transport errors, 429 and 5xx responses and honours a
// numeric Retry-After header. Every other response is a Success for the retry loop.
func HTTPClassifier(resp *http.Response, err error) (Verdict, time.Duration) {
	if err != nil {
		return Retryable, NoHint
	}
	if IsRetryableStatus(resp.StatusCode) {
		if wait, ok := ParseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return Retryable, wait
		}
		return Retryable, NoHint
	}
	return Success, NoHint
}

func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// ParseRetryAfter reads a Retry-After value given in seconds. HTTP dates are ignored.
func ParseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

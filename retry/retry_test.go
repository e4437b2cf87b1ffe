package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	sleeps []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return nil
}

func response(code int, retryAfter string) *http.Response {
	h := http.Header{}
	if retryAfter != "" {
		h.Set("Retry-After", retryAfter)
	}
	return &http.Response{StatusCode: code, Header: h}
}

func sequence(responses ...*http.Response) (func(context.Context, int) (*http.Response, error), *int) {
	calls := 0
	return func(_ context.Context, attempt int) (*http.Response, error) {
		r := responses[calls]
		calls++
		return r, nil
	}, &calls
}

func TestDo_RecoversAfterServerErrors(t *testing.T) {
	rec := &recorder{}
	op, calls := sequence(response(503, ""), response(503, ""), response(200, ""))

	resp, err := Do(context.Background(), Policy{Sleep: rec.sleep}, op, HTTPClassifier)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, 3, *calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.sleeps)
}

func TestDo_ReturnsLastRetryableResponse(t *testing.T) {
	rec := &recorder{}
	op, calls := sequence(response(503, ""), response(503, ""), response(503, ""))

	resp, err := Do(context.Background(), Policy{Sleep: rec.sleep}, op, HTTPClassifier)
	require.NoError(t, err)
	require.Equal(t, 503, resp.StatusCode)
	require.Equal(t, 3, *calls)
	require.Len(t, rec.sleeps, 2)
}

func TestDo_HonoursRetryAfter(t *testing.T) {
	rec := &recorder{}
	op, _ := sequence(response(429, "5"), response(500, ""), response(201, ""))

	resp, err := Do(context.Background(), Policy{Sleep: rec.sleep}, op, HTTPClassifier)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	// the schedule keeps advancing while a hint overrides it
	require.Equal(t, []time.Duration{5 * time.Second, 2 * time.Second}, rec.sleeps)
}

func TestDo_ZeroRetryAfterRetriesWithoutWaiting(t *testing.T) {
	rec := &recorder{}
	op, calls := sequence(response(429, "0"), response(201, ""))

	resp, err := Do(context.Background(), Policy{Sleep: rec.sleep}, op, HTTPClassifier)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	require.Equal(t, 2, *calls)
	require.Equal(t, []time.Duration{0}, rec.sleeps)
}

func TestHTTPClassifier(t *testing.T) {
	tests := []struct {
		name    string
		resp    *http.Response
		err     error
		verdict Verdict
		wait    time.Duration
	}{
		{"created", response(201, ""), nil, Success, NoHint},
		{"not found", response(404, ""), nil, Success, NoHint},
		{"transport", nil, errors.New("reset"), Retryable, NoHint},
		{"unavailable", response(503, ""), nil, Retryable, NoHint},
		{"retry after zero", response(429, "0"), nil, Retryable, 0},
		{"retry after seconds", response(429, "7"), nil, Retryable, 7 * time.Second},
		{"retry after date", response(503, "Wed, 21 Oct 2015 07:28:00 GMT"), nil, Retryable, NoHint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, wait := HTTPClassifier(tt.resp, tt.err)
			require.Equal(t, tt.verdict, verdict)
			require.Equal(t, tt.wait, wait)
		})
	}
}

func TestDo_NonRetryableStatusReturnsImmediately(t *testing.T) {
	rec := &recorder{}
	op, calls := sequence(response(404, ""), response(200, ""))

	resp, err := Do(context.Background(), Policy{Sleep: rec.sleep}, op, HTTPClassifier)
	require.NoError(t, err)
	require.Equal(t, 404, resp.StatusCode)
	require.Equal(t, 1, *calls)
	require.Empty(t, rec.sleeps)
}

func TestDo_TransportErrorsExhaust(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("connection refused")
	calls := 0
	var retried []int
	p := Policy{
		MaxAttempts: 4,
		Sleep:       rec.sleep,
		OnRetry:     func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) },
	}

	_, err := Do(context.Background(), p, func(context.Context, int) (*http.Response, error) {
		calls++
		return nil, boom
	}, HTTPClassifier)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 4, calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.sleeps)
	require.Equal(t, []int{0, 1, 2}, retried)
}

func TestDo_FatalStops(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Sleep: (&recorder{}).sleep}, func(context.Context, int) (int, error) {
		calls++
		return 0, errors.New("bad input")
	}, func(int, error) (Verdict, time.Duration) { return Fatal, NoHint })
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_CancelledWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op, calls := sequence(response(503, ""), response(200, ""))
	_, err := Do(ctx, Policy{}, op, HTTPClassifier)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, *calls)
}

func TestExponentialSchedule(t *testing.T) {
	b := Exponential()
	for _, want := range []time.Duration{1, 2, 4, 8} {
		require.Equal(t, want*time.Second, b.NextBackOff())
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Duration
		wantOK bool
	}{
		{"5", 5 * time.Second, true},
		{" 12 ", 12 * time.Second, true},
		{"", 0, false},
		{"-1", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseRetryAfter(tt.in)
		require.Equal(t, tt.wantOK, ok, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	s1 = "The new chip doubles inference throughput for large models."
	s2 = "Vendors expect the first servers to ship in the spring."
	s3 = "Analysts say pricing will decide how quickly clouds adopt it."
	s4 = "Power draw stays flat compared to the previous generation."
	s5 = "Open source drivers are promised for the end of the year."
)

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("One. Two!  Three? Four... five.No split")
	require.Equal(t, []string{"One.", "Two!", "Three?", "Four...", "five.No split"}, got)
	require.Empty(t, SplitSentences(""))
}

func TestBullets(t *testing.T) {
	article := strings.Join([]string{"Short.", s1, "Advertisement: buy the best laptop bundles today ok.", s2, s3, s4, s5}, " ")

	got := Bullets(article, "Title", 4, 420)
	require.Equal(t, []string{s1, s2, s3, s4}, got)
}

func TestBullets_SkipsBoilerplateAndLength(t *testing.T) {
	long := strings.Repeat("word ", 40) + "end."
	article := strings.Join([]string{
		"Subscribe to our newsletter for the latest updates today.",
		"Sign in to continue reading this very interesting article.",
		long,
		s1,
	}, " ")

	require.Equal(t, []string{s1}, Bullets(article, "Title", 4, 420))
}

func TestBullets_FallsBackToTitle(t *testing.T) {
	require.Equal(t, []string{"Title"}, Bullets("Too short. Also short.", "Title", 4, 420))
}

func TestBullets_OnlyFirstTwelveSentences(t *testing.T) {
	var parts []string
	for i := 0; i < 12; i++ {
		parts = append(parts, "Tiny.")
	}
	parts = append(parts, s1)
	require.Equal(t, []string{"Title"}, Bullets(strings.Join(parts, " "), "Title", 4, 420))
}

func TestBullets_CharacterCap(t *testing.T) {
	article := strings.Join([]string{s1, s2, s3}, " ")
	capAt := len(s1) + len(s2)

	require.Equal(t, []string{s1, s2}, Bullets(article, "Title", 4, capAt))
	require.Equal(t, []string{s1}, Bullets(article, "Title", 4, capAt-1))
}

func TestParseListing(t *testing.T) {
	out := "Here are the bullets:\n- First point\n* Second point\n\n1. Third point\n2) Fourth point\n• Fifth point"
	require.Equal(t, []string{"Here are the bullets:", "First point", "Second point", "Third point"}, parseListing(out, 4))
}

type fakeAgent struct {
	out   string
	err   error
	input string
}

func (a *fakeAgent) Name() string { return "fake" }

func (a *fakeAgent) Process(_ context.Context, content string) (string, error) {
	a.input = content
	return a.out, a.err
}

func articleServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>T</title><script>var x = "ignored sentence that is long enough to count.";</script></head>
<body>
<article>
<p>%s %s</p>
<p>%s</p>
<p>%s %s</p>
</article>
</body></html>`, s1, s2, s3, s4, s5)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSummarizer_ExtractsFromPage(t *testing.T) {
	srv := articleServer(t)
	s := New(WithStrategies(BodyText{}))

	got := s.Summarize(context.Background(), "Chips", srv.URL+"/article", 3)
	require.Equal(t, []string{s1, s2, s3}, got)
}

func TestSummarizer_FetchFailureReturnsTitle(t *testing.T) {
	srv := articleServer(t)
	s := New()

	require.Equal(t, []string{"Chips"}, s.Summarize(context.Background(), "Chips", srv.URL+"/missing", 4))
}

type emptyStrategy struct{}

func (emptyStrategy) Name() string                   { return "empty" }
func (emptyStrategy) Extract(string) (string, error) { return "  ", nil }

type brokenStrategy struct{}

func (brokenStrategy) Name() string                   { return "broken" }
func (brokenStrategy) Extract(string) (string, error) { return "", errors.New("nope") }

func TestSummarizer_StrategyOrder(t *testing.T) {
	srv := articleServer(t)
	s := New(WithStrategies(brokenStrategy{}, emptyStrategy{}, BodyText{}))

	got := s.Summarize(context.Background(), "Chips", srv.URL+"/article", 1)
	require.Equal(t, []string{s1}, got)
}

func TestSummarizer_AgentBullets(t *testing.T) {
	srv := articleServer(t)
	ag := &fakeAgent{out: "- Agent point one\n- Agent point two\n- Agent point three"}
	s := New(WithStrategies(BodyText{}), WithAgent(ag))

	got := s.Summarize(context.Background(), "Chips", srv.URL+"/article", 2)
	require.Equal(t, []string{"Agent point one", "Agent point two"}, got)
	require.True(t, strings.HasPrefix(ag.input, "Title: Chips\n\n"))
	require.Contains(t, ag.input, s1)
}

func TestSummarizer_AgentFailureFallsBack(t *testing.T) {
	srv := articleServer(t)
	s := New(WithStrategies(BodyText{}), WithAgent(&fakeAgent{err: errors.New("quota")}))

	got := s.Summarize(context.Background(), "Chips", srv.URL+"/article", 2)
	require.Equal(t, []string{s1, s2}, got)
}

func TestBodyText_DropsScripts(t *testing.T) {
	text, err := BodyText{}.Extract(`<html><body><script>alert("x")</script><p>Hello   world</p><style>p{}</style></body></html>`)
	require.NoError(t, err)
	require.Equal(t, "Hello world", text)
}

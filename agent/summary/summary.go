// Package summary holds the Gemini agent that writes poster bullets for an article.
package summary

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/scipunch/technews/config"
)

//go:embed *.prompt
var prompts embed.FS

const (
	agentName  = "summary"
	promptName = "bullets"

	// article text past this many runes is not sent to the model
	maxArticleRunes = 12000
)

// BulletWriter turns article text into "- " prefixed poster bullets
type BulletWriter struct {
	bullets ai.Prompt
}

// New loads the bullets prompt into a dedicated genkit instance bound to creds.Model.
func New(ctx context.Context, creds config.GeminiCredentials) (*BulletWriter, error) {
	if !creds.IsValid() {
		return nil, fmt.Errorf("invalid Gemini credentials: API key and model must be set")
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: creds.APIKey}),
		genkit.WithPromptFS(prompts),
		genkit.WithPromptDir("."),
		genkit.WithDefaultModel("googleai/"+creds.Model),
	)
	bullets := genkit.LookupPrompt(g, promptName)
	if bullets == nil {
		return nil, fmt.Errorf("prompt '%s' not found in embedded files", promptName)
	}
	return &BulletWriter{bullets: bullets}, nil
}

func (w *BulletWriter) Name() string {
	return agentName
}

// Process sends the article to the model and returns its reply with blank lines dropped
func (w *BulletWriter) Process(ctx context.Context, article string) (string, error) {
	article = clipArticle(article)
	if article == "" {
		return "", fmt.Errorf("no article text to write bullets from")
	}
	resp, err := w.bullets.Execute(ctx, ai.WithInput(map[string]any{"content": article}))
	if err != nil {
		return "", fmt.Errorf("failed to execute %s prompt: %w", promptName, err)
	}
	return dropBlankLines(resp.Text()), nil
}

func clipArticle(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxArticleRunes {
		return s
	}
	return string([]rune(s)[:maxArticleRunes])
}

func dropBlankLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

package agent

import "context"

// Agent transforms article text with a language model
type Agent interface {
	// Process takes content and returns the model output as text
	Process(ctx context.Context, content string) (string, error)

	// Name returns the agent identifier (e.g., "summary")
	Name() string
}

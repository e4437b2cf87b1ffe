package agent

import (
	"context"
	"fmt"

	"github.com/scipunch/technews/agent/summary"
	"github.com/scipunch/technews/config"
)

// Summary is the agent type producing poster bullets
const Summary = "summary"

// InitAgents creates agents based on the requested agent types.
// It fails fast if any agent initialization fails (e.g., missing credentials, invalid prompts).
// All agents are wrapped with DefaultRetryConfig.
func InitAgents(ctx context.Context, agentTypes []string, creds config.GeminiCredentials) (map[string]Agent, error) {
	agents := make(map[string]Agent)
	retryConfig := DefaultRetryConfig()

	for _, agentType := range agentTypes {
		var baseAgent Agent
		var err error

		switch agentType {
		case Summary:
			baseAgent, err = summary.New(ctx, creds)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize summary agent: %w", err)
			}
		default:
			return nil, fmt.Errorf("unknown agent type: %s", agentType)
		}

		agents[agentType] = WithRetry(baseAgent, retryConfig)
	}

	return agents, nil
}

package providers

import (
	"context"
	"strings"
)

// ScriptPrompt is one chat completion request for a video script.
type ScriptPrompt struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int64
}

type ScriptGenerator interface {
	GenerateScript(ctx context.Context, userID string, p ScriptPrompt) (string, error)
}

// ScriptRouter sends claude-* models to Anthropic and everything else to OpenAI.
type ScriptRouter struct {
	OpenAI    ScriptGenerator
	Anthropic ScriptGenerator
}

func (r ScriptRouter) GenerateScript(ctx context.Context, userID string, p ScriptPrompt) (string, error) {
	if r.Anthropic != nil && strings.HasPrefix(strings.ToLower(p.Model), "claude") {
		return r.Anthropic.GenerateScript(ctx, userID, p)
	}
	return r.OpenAI.GenerateScript(ctx, userID, p)
}

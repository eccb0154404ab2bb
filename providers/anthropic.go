package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
)

const anthropicName = string(credentials.Anthropic)

type Anthropic struct {
	Keys       credentials.Lookup
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (a *Anthropic) GenerateScript(ctx context.Context, userID string, p ScriptPrompt) (string, error) {
	apiKey, err := a.Keys.Key(ctx, userID, credentials.Anthropic)
	if err != nil {
		return "", err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if a.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(a.BaseURL, "/")+"/"))
	}
	if a.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(a.HTTPClient))
	}
	if a.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(a.Timeout))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(p.Temperature),
		System:      []anthropic.TextBlockParam{{Text: p.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", apperr.Upstream(anthropicName, apiErr.StatusCode, "")
		}
		return "", apperr.Transport(anthropicName, err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(b.String())
	if content == "" {
		return "", apperr.Upstream(anthropicName, http.StatusOK, "Anthropic returned an empty script")
	}
	return content, nil
}

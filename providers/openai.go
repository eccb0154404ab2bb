package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
)

const openAIName = string(credentials.OpenAI)

type OpenAI struct {
	Keys       credentials.Lookup
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (o *OpenAI) client(apiKey string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(o.BaseURL, "/")+"/"))
	}
	if o.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(o.HTTPClient))
	}
	if o.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.Timeout))
	}
	return openai.NewClient(opts...)
}

func (o *OpenAI) GenerateScript(ctx context.Context, userID string, p ScriptPrompt) (string, error) {
	apiKey, err := o.Keys.Key(ctx, userID, credentials.OpenAI)
	if err != nil {
		return "", err
	}
	client := o.client(apiKey)

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		Model:       openai.ChatModel(p.Model),
		Temperature: openai.Float(p.Temperature),
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(p.MaxTokens)
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", openAIError(err)
	}
	if len(completion.Choices) == 0 {
		return "", apperr.Upstream(openAIName, http.StatusOK, "no response from OpenAI")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", apperr.Upstream(openAIName, http.StatusOK, "OpenAI returned an empty script")
	}
	return content, nil
}

// CompleteStructured asks model for JSON matching schema and decodes it into out.
func (o *OpenAI) CompleteStructured(ctx context.Context, userID, model, prompt, name string, schema any, out any) error {
	apiKey, err := o.Keys.Key(ctx, userID, credentials.OpenAI)
	if err != nil {
		return err
	}
	client := o.client(apiKey)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String("Structured data response"),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}
	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})
	if err != nil {
		return openAIError(err)
	}
	if len(completion.Choices) == 0 {
		return apperr.Upstream(openAIName, http.StatusOK, "no response from OpenAI")
	}
	raw := completion.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return apperr.Upstream(openAIName, http.StatusOK, "failed to parse OpenAI JSON response")
	}
	return nil
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apperr.Upstream(openAIName, apiErr.StatusCode, apiErr.Message)
	}
	return apperr.Transport(openAIName, err)
}

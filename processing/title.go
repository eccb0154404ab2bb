package processing

import (
	"context"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/models"
)

// VideoMetadata is the publish-facing copy generated for a video.
type VideoMetadata struct {
	Title       string   `json:"title" jsonschema_description:"A unique, engaging title for the video, under 100 characters"`
	Description string   `json:"description" jsonschema_description:"One or two sentences describing the video"`
	Tags        []string `json:"tags" jsonschema_description:"Up to eight lowercase hashtags without the # sign"`
}

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() interface{} {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

var videoMetadataSchema = GenerateSchema[VideoMetadata]()

// StructuredCompleter is satisfied by providers.OpenAI.
type StructuredCompleter interface {
	CompleteStructured(ctx context.Context, userID, model, prompt, name string, schema any, out any) error
}

// MetadataGenerator asks an LLM for a title, description and tags.
type MetadataGenerator struct {
	LLM   StructuredCompleter
	Model string
}

func (g *MetadataGenerator) Generate(ctx context.Context, userID string, series models.Series, script string, existingTitles []string) (VideoMetadata, error) {
	prompt := fmt.Sprintf(`You are writing the metadata for a new vertical short video in a series.

Series Title: %s
Series Topic: %s

The following titles have already been used in this series:
%s

Script:
%s

Generate a unique, engaging title, a short description and hashtags for this video. The title should:
- Be relevant to the series theme
- Be different from all existing titles
- Be under 100 characters`, series.Title, series.Topic, formatExistingTitles(existingTitles), truncateRunes(script, 4000))

	var meta VideoMetadata
	if err := g.LLM.CompleteStructured(ctx, userID, g.Model, prompt, "video_metadata", videoMetadataSchema, &meta); err != nil {
		return VideoMetadata{}, err
	}

	meta.Title = strings.TrimSpace(meta.Title)
	if meta.Title == "" {
		return VideoMetadata{}, apperr.Upstream("openai", 0, "empty title in metadata response")
	}
	meta.Description = strings.TrimSpace(meta.Description)
	meta.Tags = normalizeTags(meta.Tags)
	return meta, nil
}

// formatExistingTitles formats the list of existing titles for the prompt
func formatExistingTitles(titles []string) string {
	var formatted []string
	for _, title := range titles {
		if title != "" {
			formatted = append(formatted, "- "+title)
		}
	}
	if len(formatted) == 0 {
		return "- None (this is the first video)"
	}
	return strings.Join(formatted, "\n")
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		t = strings.ReplaceAll(t, " ", "")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == 8 {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

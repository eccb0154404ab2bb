package processing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/providers"
)

const scriptSystemPrompt = "You are a professional video script writer specializing in vertical short-form content."

// ScriptSettings are the generation parameters not owned by a series.
type ScriptSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int64
}

func platformLabel(p models.Platform) string {
	switch p {
	case models.PlatformYouTube:
		return "YouTube Shorts"
	case models.PlatformTikTok:
		return "TikTok"
	}
	return "YouTube Shorts and TikTok"
}

// BuildScriptPrompt renders the chat request for one script of series.
// instructions are per-request additions to the series content prompt.
func BuildScriptPrompt(series models.Series, instructions string, settings ScriptSettings) providers.ScriptPrompt {
	var extra strings.Builder
	extra.WriteString(strings.TrimSpace(series.ContentPrompt))
	if s := strings.TrimSpace(instructions); s != "" {
		if extra.Len() > 0 {
			extra.WriteString("\n")
		}
		extra.WriteString(s)
	}
	label := platformLabel(series.Platform)

	user := fmt.Sprintf(`Create a script for a vertical short video about %s for %s.

Additional instructions:
%s

The script should be engaging, concise, and optimized for %s.
Include timestamps and visual directions in [brackets].

Format:
TITLE: [Video Title]

[00:00] [Visual description]
Narration text

[00:05] [Visual description]
Narration text

...and so on.`, series.Topic, label, extra.String(), label)

	return providers.ScriptPrompt{
		System:      scriptSystemPrompt,
		User:        user,
		Model:       settings.Model,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	}
}

var titlePattern = regexp.MustCompile(`(?m)TITLE:[ \t]*(.+?)[ \t]*$`)

// ExtractTitle reads the TITLE: line of a generated script, falling back to
// "<topic> Video".
func ExtractTitle(content, topic string) string {
	if m := titlePattern.FindStringSubmatch(content); m != nil {
		title := strings.Trim(strings.TrimSpace(m[1]), `*"[]`)
		if title != "" {
			return title
		}
	}
	return strings.TrimSpace(topic) + " Video"
}

package processing

import (
	"iter"
	"regexp"
	"strconv"
	"strings"

	"github.com/Ste11an/facelessflow/internal/apperr"
)

// SceneDuration is the fixed on-screen time of every scene, in seconds.
const SceneDuration = 5.0

// Scene is one timed visual and its narration, derived from a script line.
type Scene struct {
	Start     float64 `json:"start"`
	Duration  float64 `json:"duration"`
	Asset     string  `json:"asset"`
	Visual    string  `json:"visual,omitempty"`
	Narration string  `json:"narration,omitempty"`
	// Line is the 1-based script line holding the timestamp.
	Line int `json:"line"`
}

var (
	// timestampPattern accepts anything timestamp-shaped so malformed groups
	// are reported instead of skipped. Longer bracket text like [Visual: x]
	// does not match.
	timestampPattern = regexp.MustCompile(`\[(\w{1,3}):(\w{1,2})\]`)
	bracketPattern   = regexp.MustCompile(`^\[([^\]]*)\]`)
)

// Scenes lazily parses script into scenes, assigning assets round-robin in
// timestamp order. Each range over the result re-scans the script. Iteration
// stops after the first error.
func Scenes(script string, assets []string) iter.Seq2[Scene, error] {
	lines := strings.Split(strings.ReplaceAll(script, "\r\n", "\n"), "\n")
	return func(yield func(Scene, error) bool) {
		if len(assets) == 0 {
			yield(Scene{}, apperr.Validation("at least one media asset is required"))
			return
		}
		index := 0
		for n := 0; n < len(lines); n++ {
			line := strings.TrimSpace(lines[n])
			loc := timestampPattern.FindStringSubmatchIndex(line)
			if loc == nil {
				continue
			}
			start, ok := offset(line[loc[2]:loc[3]], line[loc[4]:loc[5]])
			if !ok {
				yield(Scene{}, apperr.Parse(n+1, "malformed timestamp %q", line[loc[0]:loc[1]]))
				return
			}

			lineNo := n + 1
			visual, narration, inline := splitDirection(line[loc[1]:])
			if !inline {
				if k, text := nextNarration(lines, n+1); k > 0 {
					narration, n = text, k
				}
			}

			scene := Scene{
				Start:     start,
				Duration:  SceneDuration,
				Asset:     assets[index%len(assets)],
				Visual:    visual,
				Narration: narration,
				Line:      lineNo,
			}
			index++
			if !yield(scene, nil) {
				return
			}
		}
	}
}

// CollectScenes drains Scenes into a slice.
func CollectScenes(script string, assets []string) ([]Scene, error) {
	var out []Scene
	for scene, err := range Scenes(script, assets) {
		if err != nil {
			return nil, err
		}
		out = append(out, scene)
	}
	return out, nil
}

// Narration joins every scene's narration in order, for a single voiceover track.
func Narration(scenes []Scene) string {
	parts := make([]string, 0, len(scenes))
	for _, s := range scenes {
		if s.Narration != "" {
			parts = append(parts, s.Narration)
		}
	}
	return strings.Join(parts, " ")
}

func offset(mm, ss string) (float64, bool) {
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 {
		return 0, false
	}
	seconds, err := strconv.Atoi(ss)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}
	return float64(minutes*60 + seconds), true
}

// splitDirection separates "[visual] / narration" found after a timestamp.
func splitDirection(rest string) (visual, narration string, inline bool) {
	rest = strings.TrimLeft(rest, "*_ \t")
	if m := bracketPattern.FindStringSubmatch(rest); m != nil {
		visual = strings.TrimSpace(m[1])
		rest = strings.TrimSpace(rest[len(m[0]):])
	} else if before, after, found := strings.Cut(rest, " / "); found {
		visual, rest = strings.TrimSpace(before), "/ "+after
	} else {
		return strings.Trim(rest, "*_ "), "", false
	}
	if after, ok := strings.CutPrefix(rest, "/"); ok {
		if n := cleanNarration(after); n != "" {
			return visual, n, true
		}
	}
	return visual, "", false
}

// nextNarration returns the first non-empty line at or after from, unless that
// line opens another scene. k is 0 when there is none.
func nextNarration(lines []string, from int) (k int, text string) {
	for i := from; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if timestampPattern.MatchString(line) {
			return 0, ""
		}
		return i, cleanNarration(line)
	}
	return 0, ""
}

func cleanNarration(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Narration:")
	s = strings.TrimSpace(strings.Trim(s, "*_"))
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	return s
}

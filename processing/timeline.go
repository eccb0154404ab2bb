package processing

import (
	"net/url"
	"path"
	"strings"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/providers"
)

// TimelineOptions control the render output and per-clip timing.
type TimelineOptions struct {
	Format      string
	Resolution  string
	AspectRatio string
	// ClipLength overrides SceneDuration when positive.
	ClipLength float64
	// Captions overlays each scene's narration as a title clip.
	Captions bool
	Callback string
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".webm": true, ".m4v": true,
}

// BuildTimeline turns parsed scenes and a voiceover into a render edit. The
// caption track is placed first so it renders above the visuals.
func BuildTimeline(scenes []Scene, voiceoverURL string, opts TimelineOptions) (providers.Edit, error) {
	if len(scenes) == 0 {
		return providers.Edit{}, apperr.Validation("script contains no timestamped scenes")
	}
	if voiceoverURL == "" {
		return providers.Edit{}, apperr.Validation("voiceover url is required")
	}
	length := opts.ClipLength
	if length <= 0 {
		length = SceneDuration
	}

	visuals := make([]providers.Clip, 0, len(scenes))
	var captions []providers.Clip
	for _, s := range scenes {
		visuals = append(visuals, providers.Clip{
			Asset:      providers.Asset{Type: assetType(s.Asset), Src: s.Asset},
			Start:      s.Start,
			Length:     length,
			Transition: &providers.Transition{In: "fade", Out: "fade"},
			Effect:     "zoomIn",
			Fit:        "cover",
		})
		if opts.Captions && s.Narration != "" {
			captions = append(captions, providers.Clip{
				Asset: providers.Asset{
					Type:     "title",
					Text:     s.Narration,
					Style:    "minimal",
					Size:     "medium",
					Position: "bottom",
				},
				Start:  s.Start,
				Length: length,
			})
		}
	}

	tracks := make([]providers.Track, 0, 2)
	if len(captions) > 0 {
		tracks = append(tracks, providers.Track{Clips: captions})
	}
	tracks = append(tracks, providers.Track{Clips: visuals})

	return providers.Edit{
		Timeline: providers.Timeline{
			Soundtrack: &providers.Soundtrack{Src: voiceoverURL, Effect: "fadeIn"},
			Background: "#000000",
			Tracks:     tracks,
		},
		Output: providers.Output{
			Format:      orDefault(opts.Format, "mp4"),
			Resolution:  orDefault(opts.Resolution, "1080"),
			AspectRatio: orDefault(opts.AspectRatio, "9:16"),
		},
		Callback: opts.Callback,
	}, nil
}

func assetType(src string) string {
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	}
	if videoExtensions[strings.ToLower(path.Ext(p))] {
		return "video"
	}
	return "image"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

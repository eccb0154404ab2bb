package processing

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Ste11an/facelessflow/internal/apperr"
)

func TestBuildTimeline(t *testing.T) {
	scenes := []Scene{
		{Start: 0, Duration: 5, Asset: "https://cdn/a.jpg", Narration: "Hello"},
		{Start: 5, Duration: 5, Asset: "https://cdn/b.MP4?token=1"},
	}
	edit, err := BuildTimeline(scenes, "https://cdn/voice.mp3", TimelineOptions{Captions: true, Callback: "https://api/hooks/render"})
	if err != nil {
		t.Fatalf("BuildTimeline err=%v", err)
	}
	tracks := edit.Timeline.Tracks
	if len(tracks) != 2 {
		t.Fatalf("expected caption and visual tracks, got %d", len(tracks))
	}
	if c := tracks[0].Clips; len(c) != 1 || c[0].Asset.Type != "title" || c[0].Asset.Text != "Hello" || c[0].Asset.Position != "bottom" {
		t.Fatalf("unexpected caption track: %+v", c)
	}
	visuals := tracks[1].Clips
	if visuals[0].Asset.Type != "image" || visuals[1].Asset.Type != "video" {
		t.Fatalf("unexpected asset types: %q %q", visuals[0].Asset.Type, visuals[1].Asset.Type)
	}
	if visuals[1].Start != 5 || visuals[1].Length != SceneDuration || visuals[1].Effect != "zoomIn" || visuals[1].Transition.In != "fade" {
		t.Fatalf("unexpected visual clip: %+v", visuals[1])
	}
	if edit.Timeline.Soundtrack.Src != "https://cdn/voice.mp3" || edit.Timeline.Background != "#000000" {
		t.Fatalf("unexpected timeline: %+v", edit.Timeline)
	}
	if edit.Output.Format != "mp4" || edit.Output.Resolution != "1080" || edit.Output.AspectRatio != "9:16" {
		t.Fatalf("unexpected output: %+v", edit.Output)
	}

	raw, _ := json.Marshal(edit)
	for _, want := range []string{`"aspectRatio":"9:16"`, `"callback":"https://api/hooks/render"`, `"effect":"fadeIn"`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("encoded edit missing %s: %s", want, raw)
		}
	}
}

func TestBuildTimelineWithoutCaptions(t *testing.T) {
	edit, err := BuildTimeline([]Scene{{Asset: "a.png", Narration: "x"}}, "v.mp3", TimelineOptions{ClipLength: 3})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(edit.Timeline.Tracks) != 1 || edit.Timeline.Tracks[0].Clips[0].Length != 3 {
		t.Fatalf("unexpected tracks: %+v", edit.Timeline.Tracks)
	}
}

func TestBuildTimelineValidation(t *testing.T) {
	if _, err := BuildTimeline(nil, "v.mp3", TimelineOptions{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := BuildTimeline([]Scene{{Asset: "a.png"}}, "", TimelineOptions{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

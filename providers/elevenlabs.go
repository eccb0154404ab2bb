package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/storage"
)

const elevenLabsName = string(credentials.ElevenLabs)

// Voiceover is synthesized narration stored in the blob store. Key stays with the
// video so the blob can be deleted once its render has finished.
type Voiceover struct {
	Key string
	URL string
}

type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, userID, videoID, text, voiceID string) (Voiceover, error)
}

type Voice struct {
	VoiceID    string `json:"voice_id"`
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
}

type ElevenLabs struct {
	Keys            credentials.Lookup
	Blobs           storage.BlobStore
	Client          *http.Client
	BaseURL         string
	ModelID         string
	DefaultVoiceID  string
	Stability       float64
	SimilarityBoost float64
	KeyPrefix       string
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, userID, videoID, text, voiceID string) (Voiceover, error) {
	if strings.TrimSpace(text) == "" {
		return Voiceover{}, apperr.Validation("narration text is empty")
	}
	apiKey, err := e.Keys.Key(ctx, userID, credentials.ElevenLabs)
	if err != nil {
		return Voiceover{}, err
	}
	if voiceID == "" {
		voiceID = e.DefaultVoiceID
	}

	payload, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: e.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       e.Stability,
			SimilarityBoost: e.SimilarityBoost,
		},
	})
	if err != nil {
		return Voiceover{}, apperr.Transport(elevenLabsName, err)
	}
	endpoint := strings.TrimSuffix(e.BaseURL, "/") + "/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Voiceover{}, apperr.Transport(elevenLabsName, err)
	}
	req.Header.Set("xi-api-key", apiKey)
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")

	audio, err := send(e.Client, req, elevenLabsName)
	if err != nil {
		return Voiceover{}, err
	}
	if len(audio) == 0 {
		return Voiceover{}, apperr.Upstream(elevenLabsName, http.StatusOK, "ElevenLabs returned no audio")
	}

	key := storage.Key(e.KeyPrefix, userID, videoID, "mp3")
	blobURL, err := e.Blobs.Put(ctx, key, "audio/mpeg", audio)
	if err != nil {
		return Voiceover{}, apperr.Transport("storage", err)
	}
	return Voiceover{Key: key, URL: blobURL}, nil
}

func (e *ElevenLabs) Voices(ctx context.Context, userID string) ([]Voice, error) {
	apiKey, err := e.Keys.Key(ctx, userID, credentials.ElevenLabs)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(e.BaseURL, "/")+"/voices", nil)
	if err != nil {
		return nil, apperr.Transport(elevenLabsName, err)
	}
	req.Header.Set("xi-api-key", apiKey)

	var out struct {
		Voices []Voice `json:"voices"`
	}
	if err := sendJSON(e.Client, req, elevenLabsName, &out); err != nil {
		return nil, err
	}
	return out.Voices, nil
}

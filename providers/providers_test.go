package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/storage"
)

type staticKeys map[credentials.Provider]string

func (k staticKeys) Key(_ context.Context, _ string, p credentials.Provider) (string, error) {
	v, ok := k[p]
	if !ok {
		return "", apperr.CredentialMissing(string(p))
	}
	return v, nil
}

func TestShotstackSubmitUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"quota exceeded"}`)
	}))
	defer srv.Close()

	s := &Shotstack{Keys: staticKeys{credentials.Shotstack: "ss"}, Client: srv.Client(), BaseURL: srv.URL}
	_, err := s.Submit(context.Background(), "u", Edit{})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("err=%v want upstream", err)
	}
	if got := apperr.Message(err); got != "quota exceeded" {
		t.Fatalf("message=%q want quota exceeded", got)
	}
}

func TestShotstackSubmitAndStatus(t *testing.T) {
	var gotEdit Edit
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "ss-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/render":
			_ = json.NewDecoder(r.Body).Decode(&gotEdit)
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"success":true,"message":"Created","response":{"id":"job-1","message":"Render Successfully Queued"}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/render/job-1":
			_, _ = io.WriteString(w, `{"success":true,"response":{"id":"job-1","status":"done","url":"https://cdn.example/job-1.mp4"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := &Shotstack{Keys: staticKeys{credentials.Shotstack: "ss-key"}, Client: srv.Client(), BaseURL: srv.URL + "/"}
	edit := Edit{Output: Output{Format: "mp4", Resolution: "1080", AspectRatio: "9:16"}}
	id, err := s.Submit(context.Background(), "u", edit)
	if err != nil || id != "job-1" {
		t.Fatalf("id=%q err=%v", id, err)
	}
	if gotEdit.Output.AspectRatio != "9:16" {
		t.Fatalf("server saw output=%+v", gotEdit.Output)
	}

	st, err := s.Status(context.Background(), "u", id)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Terminal() || st.Status != RenderDone || st.URL != "https://cdn.example/job-1.mp4" {
		t.Fatalf("state=%+v", st)
	}
}

func TestShotstackTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	s := &Shotstack{Keys: staticKeys{credentials.Shotstack: "ss"}, Client: &http.Client{Timeout: time.Second}, BaseURL: base}
	_, err := s.Status(context.Background(), "u", "job")
	if !apperr.Is(err, apperr.KindTransport) {
		t.Fatalf("err=%v want transport", err)
	}
}

func TestAdaptersRequireCredential(t *testing.T) {
	ctx := context.Background()
	none := staticKeys{}
	client := &http.Client{Timeout: time.Second}

	checks := map[string]error{}
	_, checks["shotstack"] = (&Shotstack{Keys: none, Client: client}).Submit(ctx, "u", Edit{})
	_, checks["pexels"] = (&Pexels{Keys: none, Client: client}).Search(ctx, "u", "city", MediaPhoto, 5)
	_, checks["elevenlabs"] = (&ElevenLabs{Keys: none, Client: client}).Synthesize(ctx, "u", "v", "hello", "")
	_, checks["openai"] = (&OpenAI{Keys: none}).GenerateScript(ctx, "u", ScriptPrompt{Model: "gpt-4"})
	_, checks["anthropic"] = (&Anthropic{Keys: none}).GenerateScript(ctx, "u", ScriptPrompt{Model: "claude-sonnet-4-5"})

	for name, err := range checks {
		if !apperr.Is(err, apperr.KindCredentialMissing) {
			t.Fatalf("%s: err=%v want credential_missing", name, err)
		}
	}
}

func TestElevenLabsStoresAudio(t *testing.T) {
	var body ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1" || r.Header.Get("xi-api-key") != "el" || r.Header.Get("Accept") != "audio/mpeg" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	blobs := storage.NewMemoryStore()
	e := &ElevenLabs{
		Keys: staticKeys{credentials.ElevenLabs: "el"}, Blobs: blobs, Client: srv.Client(),
		BaseURL: srv.URL, ModelID: "eleven_monolingual_v1", Stability: 0.5, SimilarityBoost: 0.5,
		KeyPrefix: "voiceovers",
	}
	vo, err := e.Synthesize(context.Background(), "u1", "v1", "Skyline at dawn", "voice-1")
	if err != nil {
		t.Fatal(err)
	}
	if body.Text != "Skyline at dawn" || body.ModelID != "eleven_monolingual_v1" || body.VoiceSettings.Stability != 0.5 {
		t.Fatalf("request=%+v", body)
	}
	if !strings.HasPrefix(vo.Key, "voiceovers/u1/v1/") || vo.URL != "memory://"+vo.Key {
		t.Fatalf("voiceover=%+v", vo)
	}
	if b, ok := blobs.Get(vo.Key); !ok || string(b) != "ID3-audio" {
		t.Fatalf("stored=%q ok=%v", b, ok)
	}
}

func TestElevenLabsErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`)
	}))
	defer srv.Close()

	blobs := storage.NewMemoryStore()
	e := &ElevenLabs{Keys: staticKeys{credentials.ElevenLabs: "bad"}, Blobs: blobs, Client: srv.Client(), BaseURL: srv.URL, DefaultVoiceID: "v"}
	_, err := e.Synthesize(context.Background(), "u", "vid", "text", "")
	if !apperr.Is(err, apperr.KindUpstream) || apperr.Message(err) != "Invalid API key" {
		t.Fatalf("err=%v", err)
	}
	if blobs.Len() != 0 {
		t.Fatal("nothing should be stored on failure")
	}
}

func TestPexelsSearchPhotosAndVideos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "px" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("orientation") != "portrait" || r.URL.Query().Get("query") != "city night" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/v1/search":
			_, _ = io.WriteString(w, `{"photos":[{"id":7,"width":1080,"height":1920,"photographer":"Ann","src":{"original":"https://img/7.jpg","portrait":"https://img/7-p.jpg","medium":"https://img/7-m.jpg"}}]}`)
		case "/videos/search":
			_, _ = io.WriteString(w, `{"videos":[{"id":9,"width":1080,"height":1920,"duration":12,"image":"https://img/9.jpg","user":{"name":"Bo"},"video_files":[
				{"link":"https://v/9-sd.mp4","quality":"sd","file_type":"video/mp4","width":540,"height":960},
				{"link":"https://v/9-land.mp4","quality":"hd","file_type":"video/mp4","width":1920,"height":1080},
				{"link":"https://v/9-hd.mp4","quality":"hd","file_type":"video/mp4","width":1080,"height":1920}]}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := &Pexels{Keys: staticKeys{credentials.Pexels: "px"}, Client: srv.Client(), BaseURL: srv.URL, PerPage: 20}
	photos, err := p.Search(context.Background(), "u", "city night", MediaPhoto, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(photos) != 1 || photos[0].URL != "https://img/7-p.jpg" || photos[0].Author != "Ann" {
		t.Fatalf("photos=%+v", photos)
	}

	videos, err := p.Search(context.Background(), "u", "city night", MediaVideo, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 1 || videos[0].URL != "https://v/9-hd.mp4" || videos[0].Duration != 12 {
		t.Fatalf("videos=%+v", videos)
	}
}

func TestPexelsValidation(t *testing.T) {
	p := &Pexels{Keys: staticKeys{credentials.Pexels: "px"}}
	if _, err := p.Search(context.Background(), "u", "  ", MediaPhoto, 5); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty query err=%v", err)
	}
	if _, err := p.Search(context.Background(), "u", "x", "gif", 5); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("bad type err=%v", err)
	}
}

func TestOpenAIGenerateScript(t *testing.T) {
	var seen struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") || r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&seen)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"TITLE: Night City\n[00:00] [skyline]\nHello"}}]}`)
	}))
	defer srv.Close()

	o := &OpenAI{Keys: staticKeys{credentials.OpenAI: "sk-test"}, BaseURL: srv.URL, HTTPClient: srv.Client()}
	out, err := o.GenerateScript(context.Background(), "u", ScriptPrompt{System: "sys", User: "usr", Model: "gpt-4", Temperature: 0.7, MaxTokens: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "TITLE: Night City") {
		t.Fatalf("content=%q", out)
	}
	if seen.Model != "gpt-4" || seen.Temperature != 0.7 || len(seen.Messages) != 2 || seen.Messages[0].Role != "system" {
		t.Fatalf("request=%+v", seen)
	}
}

func TestOpenAIUpstreamError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","param":null,"code":"insufficient_quota"}}`)
	}))
	defer srv.Close()

	o := &OpenAI{Keys: staticKeys{credentials.OpenAI: "sk"}, BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := o.GenerateScript(context.Background(), "u", ScriptPrompt{Model: "gpt-4"})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("err=%v want upstream", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d want exactly one attempt", calls)
	}
}

func TestScriptRouter(t *testing.T) {
	openai, claude := &recordingGenerator{}, &recordingGenerator{}
	r := ScriptRouter{OpenAI: openai, Anthropic: claude}
	_, _ = r.GenerateScript(context.Background(), "u", ScriptPrompt{Model: "claude-sonnet-4-5"})
	_, _ = r.GenerateScript(context.Background(), "u", ScriptPrompt{Model: "gpt-4"})
	if claude.calls != 1 || openai.calls != 1 {
		t.Fatalf("claude=%d openai=%d", claude.calls, openai.calls)
	}
}

type recordingGenerator struct{ calls int }

func (g *recordingGenerator) GenerateScript(context.Context, string, ScriptPrompt) (string, error) {
	g.calls++
	return "TITLE: x", nil
}

func TestAdaptersClassifyRequestBuildErrors(t *testing.T) {
	ctx := context.Background()
	const badURL = "://no-scheme"
	keys := staticKeys{credentials.Shotstack: "ss", credentials.Pexels: "px", credentials.ElevenLabs: "el"}
	client := &http.Client{Timeout: time.Second}

	checks := map[string]error{}
	_, checks["shotstack submit"] = (&Shotstack{Keys: keys, Client: client, BaseURL: badURL}).Submit(ctx, "u", Edit{})
	_, checks["shotstack status"] = (&Shotstack{Keys: keys, Client: client, BaseURL: badURL}).Status(ctx, "u", "job")
	_, checks["pexels"] = (&Pexels{Keys: keys, Client: client, BaseURL: badURL}).Search(ctx, "u", "city", MediaPhoto, 5)
	_, checks["elevenlabs synthesize"] = (&ElevenLabs{Keys: keys, Client: client, BaseURL: badURL, DefaultVoiceID: "v1"}).Synthesize(ctx, "u", "v", "hello", "")
	_, checks["elevenlabs voices"] = (&ElevenLabs{Keys: keys, Client: client, BaseURL: badURL}).Voices(ctx, "u")

	for name, err := range checks {
		if !apperr.Is(err, apperr.KindTransport) {
			t.Fatalf("%s: err=%v want transport", name, err)
		}
	}
}

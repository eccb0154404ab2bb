package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/db")
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if cfg.DB.DSN != "postgres://example/db" {
		t.Fatalf("dsn=%q want legacy DATABASE_URL value", cfg.DB.DSN)
	}
	if cfg.OpenAI.Model != "gpt-4" || cfg.OpenAI.Temperature != 0.7 || cfg.OpenAI.MaxTokens != 1000 {
		t.Fatalf("openai defaults=%+v", cfg.OpenAI)
	}
	if cfg.ElevenLabs.VoiceID != "21m00Tcm4TlvDq8ikWAM" {
		t.Fatalf("voice=%q", cfg.ElevenLabs.VoiceID)
	}
	if cfg.Shotstack.AspectRatio != "9:16" || cfg.Shotstack.ClipLength != 5 {
		t.Fatalf("shotstack defaults=%+v", cfg.Shotstack)
	}
	if cfg.Storage.PresignTTL != 24*time.Hour {
		t.Fatalf("presign ttl=%v", cfg.Storage.PresignTTL)
	}
}

func TestLoadPrefixedEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "pexels:\n  per_page: 5\npublish:\n  youtube:\n    mode: oauth\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FACELESSFLOW_PEXELS_PER_PAGE", "7")

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if cfg.Pexels.PerPage != 7 {
		t.Fatalf("per_page=%d want 7", cfg.Pexels.PerPage)
	}
	if cfg.Publish.YouTube.Mode != "oauth" {
		t.Fatalf("youtube mode=%q want oauth", cfg.Publish.YouTube.Mode)
	}
}

func TestValidateRejectsUnknownPublisherMode(t *testing.T) {
	t.Setenv("FACELESSFLOW_PUBLISH_TIKTOK_MODE", "oauth")
	_, err := Load("", true)
	if err == nil || !strings.Contains(err.Error(), "tiktok") {
		t.Fatalf("err=%v want tiktok mode error", err)
	}
}

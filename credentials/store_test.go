package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository/memstore"
)

const testKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=" // 32 bytes

func printableSamples() []string {
	var all strings.Builder
	for r := rune(0x20); r < 0x7f; r++ {
		all.WriteRune(r)
	}
	return []string{"", "sk-test", "a", all.String(), "  spaced out  ", "ünïcödé ✓"}
}

func TestBase64CodecRoundTrip(t *testing.T) {
	c := Base64Codec{}
	for _, in := range printableSamples() {
		enc, err := c.Encode("openai", in)
		if err != nil {
			t.Fatalf("Encode(%q) err=%v", in, err)
		}
		got, err := c.Decode("openai", enc)
		if err != nil || got != in {
			t.Fatalf("round trip %q -> %q err=%v", in, got, err)
		}
	}
}

func TestAESCodecRoundTripAndProviderBinding(t *testing.T) {
	c, err := NewAESCodec(testKey)
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range printableSamples() {
		enc, err := c.Encode("pexels", in)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(enc, aesPrefix) {
			t.Fatalf("encoded=%q missing prefix", enc)
		}
		got, err := c.Decode("pexels", enc)
		if err != nil || got != in {
			t.Fatalf("round trip %q -> %q err=%v", in, got, err)
		}
	}

	enc, _ := c.Encode("pexels", "secret")
	if _, err := c.Decode("openai", enc); err == nil {
		t.Fatal("value sealed for pexels opened as openai")
	}
}

func TestAESCodecReadsLegacyAndPreviousKey(t *testing.T) {
	old, err := NewAESCodec("old-key-0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	sealed, _ := old.Encode("shotstack", "ss-key")

	rotated, err := NewAESCodec(testKey, "old-key-0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := rotated.Decode("shotstack", sealed); err != nil || got != "ss-key" {
		t.Fatalf("previous key decode=%q err=%v", got, err)
	}

	legacy := base64.StdEncoding.EncodeToString([]byte("sk-legacy"))
	if got, err := rotated.Decode("openai", legacy); err != nil || got != "sk-legacy" {
		t.Fatalf("legacy decode=%q err=%v", got, err)
	}
}

func TestNewAESCodecRejectsShortKey(t *testing.T) {
	if _, err := NewAESCodec("short"); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestNewAESCodecRejectsOddKeySizes(t *testing.T) {
	odd := []string{
		"0123456789abcdef0",
		"0123456789abcdef0123456789abcde",
		"0123456789abcdef0123456789abcdef012",
		base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123")),
	}
	for _, key := range odd {
		if _, err := NewAESCodec(key); err == nil {
			t.Fatalf("key of %d characters accepted", len(key))
		}
	}
	for _, key := range []string{"0123456789abcdef", "0123456789abcdef01234567", testKey} {
		if _, err := NewAESCodec(key); err != nil {
			t.Fatalf("valid key %q rejected: %v", key, err)
		}
	}
	if _, err := NewAESCodec(testKey, "0123456789abcdef0"); err == nil {
		t.Fatal("odd-sized previous key accepted")
	}
}

func TestSaveFetchIsPerUser(t *testing.T) {
	ctx := context.Background()
	codec, _ := NewAESCodec(testKey)
	store := NewStore(memstore.New(), codec, nil)

	if err := store.Save(ctx, "user-1", map[Provider]string{OpenAI: "sk-test"}); err != nil {
		t.Fatalf("Save err=%v", err)
	}

	got, err := store.Fetch(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[OpenAI] != "sk-test" {
		t.Fatalf("Fetch(user-1)=%v want {openai:sk-test}", got)
	}

	other, err := store.Fetch(ctx, "user-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("Fetch(user-2)=%v want empty", other)
	}
}

func TestSaveOverwritesWholesaleAndSkipsEmpty(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	store := NewStore(repo, nil, nil)

	_ = store.Save(ctx, "u", map[Provider]string{OpenAI: "sk-1", Pexels: "px"})
	if err := store.Save(ctx, "u", map[Provider]string{Shotstack: "ss", ElevenLabs: "  "}); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Fetch(ctx, "u")
	if len(got) != 1 || got[Shotstack] != "ss" {
		t.Fatalf("keys=%v want only shotstack", got)
	}

	set, _ := repo.GetAPIKeys(ctx, "u")
	var stored map[string]string
	_ = json.Unmarshal(set.Keys, &stored)
	if stored["shotstack"] == "ss" {
		t.Fatal("secret stored in plaintext")
	}
}

func TestKeyMissingIsTyped(t *testing.T) {
	store := NewStore(memstore.New(), nil, nil)
	_, err := store.Key(context.Background(), "nobody", Shotstack)
	if !apperr.Is(err, apperr.KindCredentialMissing) {
		t.Fatalf("err=%v want credential_missing", err)
	}
}

func TestSaveRejectsUnknownProvider(t *testing.T) {
	store := NewStore(memstore.New(), nil, nil)
	err := store.Save(context.Background(), "u", map[Provider]string{"myspace": "x"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("err=%v want validation", err)
	}
}

func TestFetchDropsUndecodableValue(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New()
	_ = repo.UpsertAPIKeys(ctx, &models.APIKeySet{UserID: "u", Keys: []byte(`{"openai":"!!notbase64","pexels":"cHg="}`)})
	got, err := NewStore(repo, nil, nil).Fetch(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got[OpenAI]; ok || got[Pexels] != "px" {
		t.Fatalf("keys=%v", got)
	}
}

func TestMasked(t *testing.T) {
	ctx := context.Background()
	store := NewStore(memstore.New(), nil, nil)
	_ = store.Save(ctx, "u", map[Provider]string{OpenAI: "sk-abcdefgh", Pexels: "abc"})
	got, err := store.Masked(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Provider != OpenAI || got[0].Hint != "********efgh" || got[1].Hint != "***" {
		t.Fatalf("masked=%+v", got)
	}
}

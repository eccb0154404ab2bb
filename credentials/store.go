// Package credentials is the single owner of per-user provider secrets.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/internal/logging"
	"github.com/Ste11an/facelessflow/models"
)

type Provider string

const (
	OpenAI     Provider = "openai"
	Anthropic  Provider = "anthropic"
	ElevenLabs Provider = "elevenlabs"
	Pexels     Provider = "pexels"
	Shotstack  Provider = "shotstack"
	// YouTube holds the OAuth refresh token granted through the connect flow.
	YouTube Provider = "youtube"
	TikTok  Provider = "tiktok"
)

// Providers lists every provider a key set may hold, in display order.
var Providers = []Provider{OpenAI, Anthropic, ElevenLabs, Pexels, Shotstack, YouTube, TikTok}

func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// Lookup is what adapters depend on.
type Lookup interface {
	Key(ctx context.Context, userID string, p Provider) (string, error)
}

// KeyRepository is the persistence the store needs.
type KeyRepository interface {
	GetAPIKeys(ctx context.Context, userID string) (*models.APIKeySet, error)
	UpsertAPIKeys(ctx context.Context, set *models.APIKeySet) error
}

type Store struct {
	repo   KeyRepository
	codec  Codec
	logger *zap.Logger
}

func NewStore(repo KeyRepository, codec Codec, logger *zap.Logger) *Store {
	if codec == nil {
		codec = Base64Codec{}
	}
	return &Store{repo: repo, codec: codec, logger: logging.OrNop(logger)}
}

// Save replaces the user's whole key set. Empty values are dropped.
func (s *Store) Save(ctx context.Context, userID string, keys map[Provider]string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Validation("user id is required")
	}
	encoded := make(map[string]string, len(keys))
	for p, v := range keys {
		if !p.Valid() {
			return apperr.Validation("unknown provider %q", p)
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		enc, err := s.codec.Encode(string(p), v)
		if err != nil {
			return fmt.Errorf("encode %s key: %w", p, err)
		}
		encoded[string(p)] = enc
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return err
	}
	return s.repo.UpsertAPIKeys(ctx, &models.APIKeySet{UserID: userID, Keys: datatypes.JSON(raw)})
}

// Fetch returns the user's decoded keys; unknown users get an empty map.
// A value that no longer decodes is left out and logged.
func (s *Store) Fetch(ctx context.Context, userID string) (map[Provider]string, error) {
	set, err := s.repo.GetAPIKeys(ctx, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return map[Provider]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	stored := map[string]string{}
	if len(set.Keys) > 0 {
		if err := json.Unmarshal(set.Keys, &stored); err != nil {
			return nil, fmt.Errorf("api keys for %s: %w", userID, err)
		}
	}
	out := make(map[Provider]string, len(stored))
	for name, enc := range stored {
		plain, err := s.codec.Decode(name, enc)
		if err != nil {
			s.logger.Warn("dropping undecodable api key", zap.String("user_id", userID), zap.String("provider", name), zap.Error(err))
			continue
		}
		out[Provider(name)] = plain
	}
	return out, nil
}

func (s *Store) Key(ctx context.Context, userID string, p Provider) (string, error) {
	keys, err := s.Fetch(ctx, userID)
	if err != nil {
		return "", err
	}
	v, ok := keys[p]
	if !ok || v == "" {
		return "", apperr.CredentialMissing(string(p))
	}
	return v, nil
}

// SetKey updates one provider's secret, keeping the rest of the set.
func (s *Store) SetKey(ctx context.Context, userID string, p Provider, value string) error {
	keys, err := s.Fetch(ctx, userID)
	if err != nil {
		return err
	}
	keys[p] = value
	return s.Save(ctx, userID, keys)
}

type MaskedKey struct {
	Provider Provider `json:"provider"`
	Hint     string   `json:"hint"`
}

// Masked lists configured providers with only the last four characters shown.
func (s *Store) Masked(ctx context.Context, userID string) ([]MaskedKey, error) {
	keys, err := s.Fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]MaskedKey, 0, len(keys))
	for p, v := range keys {
		out = append(out, MaskedKey{Provider: p, Hint: mask(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

func mask(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", 8) + v[len(v)-4:]
}

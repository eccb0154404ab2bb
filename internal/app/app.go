// Package app builds the object graph shared by the api, worker and scheduler
// binaries from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/Ste11an/facelessflow/assembly"
	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/config"
	"github.com/Ste11an/facelessflow/internal/platform"
	"github.com/Ste11an/facelessflow/processing"
	"github.com/Ste11an/facelessflow/providers"
	"github.com/Ste11an/facelessflow/publish"
	"github.com/Ste11an/facelessflow/repository"
	"github.com/Ste11an/facelessflow/repository/gormstore"
	"github.com/Ste11an/facelessflow/repository/memstore"
	"github.com/Ste11an/facelessflow/scheduling"
	"github.com/Ste11an/facelessflow/storage"
	"github.com/Ste11an/facelessflow/tasks"
)

// MemoryDSN runs everything in one process on in-memory stores.
const MemoryDSN = "memory"

type App struct {
	Config config.Config
	Logger *zap.Logger

	DB    *gorm.DB
	Redis *redis.Client

	Repo   repository.Repository
	Queue  tasks.Queue
	Source tasks.Source
	Keys   *credentials.Store
	Blobs  storage.BlobStore

	OpenAI       *providers.OpenAI
	Scripts      providers.ScriptGenerator
	Voice        *providers.ElevenLabs
	Media        *providers.Pexels
	Render       *providers.Shotstack
	YouTubeOAuth *oauth2.Config
	Publishers   publish.Registry

	Orchestrator *assembly.Orchestrator
	Schedules    *scheduling.Service
}

// InProcess reports whether the app runs on in-memory stores, in which case
// the api binary also runs the worker and the cron jobs.
func (a *App) InProcess() bool {
	return a.DB == nil
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}

	codec, err := newCodec(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Keys = credentials.NewStore(a.Repo, codec, logger)

	if err := a.openBlobs(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.wireProviders()
	a.wirePublishers()

	a.Orchestrator = assembly.New(a.Repo, a.Voice, a.Render, a.Publishers, a.Blobs, logger.Named("assembly"), assembly.Options{
		Timeline: processing.TimelineOptions{
			Format:      cfg.Shotstack.Format,
			Resolution:  cfg.Shotstack.Resolution,
			AspectRatio: cfg.Shotstack.AspectRatio,
			ClipLength:  cfg.Shotstack.ClipLength,
			Captions:    cfg.Shotstack.Captions,
			Callback:    callbackURL(cfg),
		},
		VoiceID:    cfg.ElevenLabs.VoiceID,
		StallAfter: cfg.Cron.StallAfter,
	})
	a.Orchestrator.Metadata = &processing.MetadataGenerator{LLM: a.OpenAI, Model: cfg.OpenAI.MetaModel}

	a.Schedules = scheduling.NewService(a.Repo, a.Queue, a.Orchestrator, logger.Named("scheduling"))
	if cfg.Cron.BatchSize > 0 {
		a.Schedules.BatchSize = cfg.Cron.BatchSize
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config
	if cfg.DB.DSN == MemoryDSN {
		if cfg.IsProduction() {
			return errors.New("the in-memory store is not allowed in production")
		}
		a.Logger.Warn("using in-memory store and queue; data is lost on exit")
		a.Repo = memstore.New()
		q := tasks.NewMemoryQueue()
		a.Queue, a.Source = q, q
		return nil
	}

	db, err := platform.NewDBConnection(cfg.DB, a.Logger)
	if err != nil {
		return err
	}
	a.DB = db
	if cfg.DB.AutoMigrate {
		if err := platform.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	a.Repo = gormstore.New(db)

	rdb, err := platform.NewRedisClient(ctx, cfg.Redis, a.Logger)
	if err != nil {
		return err
	}
	a.Redis = rdb
	q := tasks.NewRedisQueue(rdb)
	a.Queue, a.Source = q, q
	return nil
}

func newCodec(cfg config.Config, logger *zap.Logger) (credentials.Codec, error) {
	if cfg.Credentials.Key == "" {
		if cfg.IsProduction() {
			return nil, errors.New("credentials.key is required in production")
		}
		logger.Warn("credentials.key not set; provider keys are stored base64-encoded only")
		return credentials.Base64Codec{}, nil
	}
	var previous []string
	if cfg.Credentials.PreviousKey != "" {
		previous = append(previous, cfg.Credentials.PreviousKey)
	}
	return credentials.NewAESCodec(cfg.Credentials.Key, previous...)
}

func (a *App) openBlobs(ctx context.Context) error {
	switch a.Config.Storage.Driver {
	case "memory":
		a.Blobs = storage.NewMemoryStore()
		return nil
	case "s3", "":
		s, err := storage.NewS3Store(ctx, a.Config.Storage, a.Logger)
		if err != nil {
			return err
		}
		a.Blobs = s
		return nil
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", a.Config.Storage.Driver)
	}
}

func (a *App) wireProviders() {
	cfg := a.Config
	a.OpenAI = &providers.OpenAI{Keys: a.Keys, BaseURL: cfg.OpenAI.BaseURL, Timeout: cfg.OpenAI.Timeout}
	a.Scripts = providers.ScriptRouter{
		OpenAI:    a.OpenAI,
		Anthropic: &providers.Anthropic{Keys: a.Keys, BaseURL: cfg.Anthropic.BaseURL, Timeout: cfg.Anthropic.Timeout},
	}
	a.Voice = &providers.ElevenLabs{
		Keys:            a.Keys,
		Blobs:           a.Blobs,
		Client:          providers.NewHTTPClient(cfg.ElevenLabs.Timeout),
		BaseURL:         cfg.ElevenLabs.BaseURL,
		ModelID:         cfg.ElevenLabs.ModelID,
		DefaultVoiceID:  cfg.ElevenLabs.VoiceID,
		Stability:       cfg.ElevenLabs.Stability,
		SimilarityBoost: cfg.ElevenLabs.SimilarityBoost,
		KeyPrefix:       cfg.Storage.Prefix,
	}
	a.Media = &providers.Pexels{
		Keys:    a.Keys,
		Client:  providers.NewHTTPClient(cfg.Pexels.Timeout),
		BaseURL: cfg.Pexels.BaseURL,
		PerPage: cfg.Pexels.PerPage,
	}
	a.Render = &providers.Shotstack{
		Keys:    a.Keys,
		Client:  providers.NewHTTPClient(cfg.Shotstack.Timeout),
		BaseURL: cfg.Shotstack.BaseURL,
	}
}

func (a *App) wirePublishers() {
	cfg := a.Config.Publish
	a.Publishers = publish.Registry{}

	yt := cfg.YouTube
	if yt.ClientID != "" {
		a.YouTubeOAuth = publish.NewYouTubeOAuthConfig(yt.ClientID, yt.ClientSecret, yt.RedirectURL)
	}
	if yt.Mode == "oauth" && a.YouTubeOAuth != nil {
		a.Publishers[string(credentials.YouTube)] = &publish.YouTube{
			OAuth:    a.YouTubeOAuth,
			Keys:     a.Keys,
			Privacy:  yt.Privacy,
			Download: providers.NewHTTPClient(10 * time.Minute),
		}
	} else {
		if yt.Mode == "oauth" {
			a.Logger.Warn("publish.youtube.mode is oauth but no client id is set; using the simulated publisher")
		}
		a.Publishers[string(credentials.YouTube)] = publish.NewSimulatedYouTube(a.Keys, yt.Delay)
	}
	a.Publishers[string(credentials.TikTok)] = publish.NewSimulatedTikTok(a.Keys, cfg.TikTok.Delay)
	a.Logger.Info("publishers ready", zap.Strings("platforms", a.Publishers.Platforms()))
}

// callbackURL is the render webhook Shotstack should call, or empty when
// callbacks are off and renders are polled instead.
func callbackURL(cfg config.Config) string {
	if !cfg.Shotstack.UseCallback {
		return ""
	}
	u := strings.TrimSuffix(cfg.App.PublicURL, "/") + "/webhooks/render"
	if cfg.Shotstack.CallbackToken != "" {
		u += "?" + url.Values{"token": {cfg.Shotstack.CallbackToken}}.Encode()
	}
	return u
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if err := platform.CloseDB(a.DB); err != nil {
		a.Logger.Warn("database close failed", zap.Error(err))
	}
}

package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/apikeys"
	"github.com/Ste11an/facelessflow/auth"
	"github.com/Ste11an/facelessflow/connections"
	"github.com/Ste11an/facelessflow/internal/app"
	"github.com/Ste11an/facelessflow/media"
	"github.com/Ste11an/facelessflow/processing"
	"github.com/Ste11an/facelessflow/schedules"
	"github.com/Ste11an/facelessflow/scripts"
	"github.com/Ste11an/facelessflow/series"
	"github.com/Ste11an/facelessflow/videos"
	"github.com/Ste11an/facelessflow/webhooks"
)

type Server struct {
	App    *app.App
	Router *gin.Engine
	Logger *zap.Logger
}

func NewServer(a *app.App) *Server {
	if a.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(a.Logger.Named("http")))

	s := &Server{App: a, Router: router, Logger: a.Logger}
	s.setupRoutes()
	return s
}

// Handler wraps the router with CORS for the frontend origin.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{s.App.Config.App.FrontendURL}),
		handlers.AllowCredentials(),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
	)
	return cors(s.Router)
}

func (s *Server) setupRoutes() {
	a := s.App
	cfg := a.Config
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	// A separate key so OAuth state values never pass as session tokens.
	stateSigner := auth.NewVerifier(cfg.Auth.JWTSecret+":oauth-state", cfg.Auth.Issuer)

	authHandler := auth.NewHandler(verifier, !cfg.IsProduction())
	seriesHandler := series.NewHandler(a.Repo, a.Logger.Named("series"))
	scriptHandler := scripts.NewHandler(a.Repo, a.Scripts, processing.ScriptSettings{
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
	}, a.Logger.Named("scripts"))
	videoHandler := videos.NewHandler(a.Repo, a.Queue, a.Orchestrator, a.Logger.Named("videos"))
	scheduleHandler := schedules.NewHandler(a.Repo, a.Schedules)
	mediaHandler := media.NewHandler(a.Media, a.Voice)
	keyHandler := apikeys.NewHandler(a.Keys)
	webhookHandler := webhooks.NewHandler(a.Orchestrator, cfg.Shotstack.CallbackToken, a.Logger.Named("webhooks"))

	var exchanger connections.Exchanger
	if a.YouTubeOAuth != nil {
		exchanger = a.YouTubeOAuth
	}
	connectionHandler := connections.NewHandler(exchanger, stateSigner, a.Keys, cfg.App.FrontendURL, a.Logger.Named("connections"))

	s.Router.GET("/healthz", s.health)
	s.Router.GET("/readyz", s.ready)
	s.Router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "FacelessFlow API v1"})
	})

	// Webhook routes (public, checked by callback token)
	s.Router.POST("/webhooks/render", webhookHandler.HandleRender)

	authRoutes := s.Router.Group("/auth")
	{
		authRoutes.POST("/dev-token", authHandler.IssueDevToken)
		authRoutes.GET("/me", auth.Middleware(verifier), authHandler.GetCurrentUser)
	}

	// The consent screen redirects here without our bearer token.
	s.Router.GET("/connections/youtube/callback", connectionHandler.YouTubeCallback)

	protected := s.Router.Group("")
	protected.Use(auth.Middleware(verifier))
	{
		seriesRoutes := protected.Group("/series")
		{
			seriesRoutes.POST("", seriesHandler.CreateSeries)
			seriesRoutes.GET("", seriesHandler.GetUserSeries)
			seriesRoutes.GET("/:id", seriesHandler.GetSeries)
			seriesRoutes.PATCH("/:id", seriesHandler.UpdateSeries)
			seriesRoutes.POST("/:id/status", seriesHandler.SetStatus)
			seriesRoutes.GET("/:id/videos", seriesHandler.GetSeriesVideos)
			seriesRoutes.POST("/:id/scripts", scriptHandler.Generate)
			seriesRoutes.GET("/:id/scripts", scriptHandler.List)
		}

		scriptRoutes := protected.Group("/scripts")
		{
			scriptRoutes.GET("/:id", scriptHandler.Get)
			scriptRoutes.PATCH("/:id", scriptHandler.Update)
			scriptRoutes.POST("/:id/approve", scriptHandler.Approve)
		}

		videoRoutes := protected.Group("/videos")
		{
			videoRoutes.POST("", videoHandler.CreateVideo)
			videoRoutes.GET("", videoHandler.ListVideos)
			videoRoutes.GET("/:id", videoHandler.GetVideo)
			videoRoutes.POST("/:id/assemble", videoHandler.Assemble)
			videoRoutes.POST("/:id/refresh", videoHandler.Refresh)
			videoRoutes.POST("/:id/publish", videoHandler.Publish)
		}

		scheduleRoutes := protected.Group("/schedules")
		{
			scheduleRoutes.POST("", scheduleHandler.CreateSchedule)
			scheduleRoutes.GET("", scheduleHandler.ListSchedules)
			scheduleRoutes.DELETE("/:id", scheduleHandler.CancelSchedule)
		}

		protected.GET("/analytics", videoHandler.GetAnalytics)
		protected.GET("/media/search", mediaHandler.SearchMedia)
		protected.GET("/voices", mediaHandler.ListVoices)

		keyRoutes := protected.Group("/api-keys")
		{
			keyRoutes.GET("", keyHandler.GetKeys)
			keyRoutes.PUT("", keyHandler.SaveKeys)
			keyRoutes.PUT("/:provider", keyHandler.SetKey)
		}

		protected.POST("/connections/youtube", connectionHandler.ConnectYouTube)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ready(c *gin.Context) {
	if err := s.App.Repo.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("user_id", c.GetString("user_id")))
	}
}

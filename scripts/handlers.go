package scripts

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/internal/httpx"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/processing"
	"github.com/Ste11an/facelessflow/providers"
	"github.com/Ste11an/facelessflow/repository"
)

type Handler struct {
	Repo      repository.Repository
	Generator providers.ScriptGenerator
	Settings  processing.ScriptSettings
	Logger    *zap.Logger
}

func NewHandler(repo repository.Repository, gen providers.ScriptGenerator, settings processing.ScriptSettings, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Repo: repo, Generator: gen, Settings: settings, Logger: logger}
}

type GenerateRequest struct {
	Instructions string `json:"instructions"`
	// Model overrides the configured default; claude-* ids go to Anthropic.
	Model string `json:"model"`
}

type UpdateRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Generate asks the language model for a new draft script in a series.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpx.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	userID := httpx.UserID(c)

	series, err := h.Repo.GetSeries(ctx, userID, c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if series.Status == models.SeriesArchived {
		httpx.Error(c, apperr.Precondition("series is archived"))
		return
	}

	settings := h.Settings
	if m := strings.TrimSpace(req.Model); m != "" {
		settings.Model = m
	}
	prompt := processing.BuildScriptPrompt(*series, req.Instructions, settings)

	content, err := h.Generator.GenerateScript(ctx, userID, prompt)
	if err != nil {
		h.Logger.Warn("script generation failed", zap.String("series_id", series.ID), zap.Error(err))
		httpx.Error(c, err)
		return
	}

	script := models.Script{
		SeriesID:         series.ID,
		OwnerID:          userID,
		Title:            processing.ExtractTitle(content, series.Topic),
		Content:          content,
		Status:           models.ScriptDraft,
		ModelID:          settings.Model,
		GenerationPrompt: prompt.User,
	}
	if err := h.Repo.CreateScript(ctx, &script); err != nil {
		httpx.Error(c, err)
		return
	}

	h.Logger.Info("script generated", zap.String("script_id", script.ID), zap.String("model", script.ModelID))
	c.JSON(http.StatusCreated, script)
}

func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	userID := httpx.UserID(c)
	if _, err := h.Repo.GetSeries(ctx, userID, c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}
	scripts, err := h.Repo.ListScripts(ctx, userID, c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if scripts == nil {
		scripts = []models.Script{}
	}
	c.JSON(http.StatusOK, scripts)
}

func (h *Handler) owned(c *gin.Context) (*models.Script, bool) {
	script, err := h.Repo.GetScript(c.Request.Context(), c.Param("id"))
	if err == nil && script.OwnerID != httpx.UserID(c) {
		err = apperr.NotFound("script")
	}
	if err != nil {
		httpx.Error(c, err)
		return nil, false
	}
	return script, true
}

func (h *Handler) Get(c *gin.Context) {
	if script, ok := h.owned(c); ok {
		c.JSON(http.StatusOK, script)
	}
}

// Update edits a draft. Approved scripts are frozen.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	script, ok := h.owned(c)
	if !ok {
		return
	}
	if script.Status != models.ScriptDraft {
		httpx.Error(c, apperr.Precondition("only draft scripts can be edited"))
		return
	}
	if req.Title != nil {
		script.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		script.Content = *req.Content
	}
	if err := h.Repo.UpdateScript(c.Request.Context(), script); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, script)
}

// Approve marks a draft ready for assembly once it parses into at least one scene.
func (h *Handler) Approve(c *gin.Context) {
	script, ok := h.owned(c)
	if !ok {
		return
	}
	if script.Status == models.ScriptApproved {
		c.JSON(http.StatusOK, script)
		return
	}

	scenes, err := processing.CollectScenes(script.Content, []string{"preview"})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if len(scenes) == 0 {
		httpx.Error(c, apperr.Validation("script contains no timestamped scenes"))
		return
	}

	script.Status = models.ScriptApproved
	if err := h.Repo.UpdateScript(c.Request.Context(), script); err != nil {
		httpx.Error(c, err)
		return
	}
	h.Logger.Info("script approved", zap.String("script_id", script.ID), zap.Int("scenes", len(scenes)))
	c.JSON(http.StatusOK, script)
}

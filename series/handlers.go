package series

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/internal/httpx"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository"
)

type Handler struct {
	Repo   repository.Repository
	Logger *zap.Logger
}

func NewHandler(repo repository.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Repo: repo, Logger: logger}
}

type CreateSeriesRequest struct {
	Title         string          `json:"title" binding:"required"`
	Description   string          `json:"description"`
	Platform      models.Platform `json:"platform" binding:"required"`
	Topic         string          `json:"topic" binding:"required"`
	ContentPrompt string          `json:"content_prompt" binding:"required"`
}

type UpdateSeriesRequest struct {
	Title         *string          `json:"title"`
	Description   *string          `json:"description"`
	Platform      *models.Platform `json:"platform"`
	Topic         *string          `json:"topic"`
	ContentPrompt *string          `json:"content_prompt"`
}

type StatusRequest struct {
	Status models.SeriesStatus `json:"status" binding:"required"`
}

func (h *Handler) CreateSeries(c *gin.Context) {
	var req CreateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	if !req.Platform.Valid() {
		httpx.BadRequest(c, "platform must be youtube, tiktok or both")
		return
	}

	series := models.Series{
		OwnerID:       httpx.UserID(c),
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Platform:      req.Platform,
		Topic:         strings.TrimSpace(req.Topic),
		ContentPrompt: req.ContentPrompt,
		Status:        models.SeriesActive,
	}
	if err := h.Repo.CreateSeries(c.Request.Context(), &series); err != nil {
		h.Logger.Error("failed to create series", zap.Error(err))
		httpx.Error(c, err)
		return
	}

	h.Logger.Info("series created", zap.String("series_id", series.ID), zap.String("owner_id", series.OwnerID))
	c.JSON(http.StatusCreated, series)
}

func (h *Handler) GetUserSeries(c *gin.Context) {
	series, err := h.Repo.ListSeries(c.Request.Context(), httpx.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if series == nil {
		series = []models.Series{}
	}
	c.JSON(http.StatusOK, series)
}

func (h *Handler) GetSeries(c *gin.Context) {
	series, err := h.Repo.GetSeries(c.Request.Context(), httpx.UserID(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *Handler) UpdateSeries(c *gin.Context) {
	var req UpdateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	series, err := h.Repo.GetSeries(ctx, httpx.UserID(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			httpx.BadRequest(c, "title cannot be empty")
			return
		}
		series.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		series.Description = *req.Description
	}
	if req.Platform != nil {
		if !req.Platform.Valid() {
			httpx.BadRequest(c, "platform must be youtube, tiktok or both")
			return
		}
		series.Platform = *req.Platform
	}
	if req.Topic != nil {
		series.Topic = strings.TrimSpace(*req.Topic)
	}
	if req.ContentPrompt != nil {
		series.ContentPrompt = *req.ContentPrompt
	}

	if err := h.Repo.UpdateSeries(ctx, series); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// SetStatus pauses, resumes or archives a series. Archived series are final.
func (h *Handler) SetStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	switch req.Status {
	case models.SeriesActive, models.SeriesPaused, models.SeriesArchived:
	default:
		httpx.BadRequest(c, "status must be active, paused or archived")
		return
	}

	ctx := c.Request.Context()
	series, err := h.Repo.GetSeries(ctx, httpx.UserID(c), c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if series.Status == models.SeriesArchived && req.Status != models.SeriesArchived {
		httpx.Error(c, apperr.Precondition("archived series cannot be reactivated"))
		return
	}
	series.Status = req.Status
	if err := h.Repo.UpdateSeries(ctx, series); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *Handler) GetSeriesVideos(c *gin.Context) {
	ctx := c.Request.Context()
	userID := httpx.UserID(c)

	// First, verify the series belongs to the user
	series, err := h.Repo.GetSeries(ctx, userID, c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}

	videos, err := h.Repo.ListVideos(ctx, userID, series.ID)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}
	c.JSON(http.StatusOK, videos)
}

package videos

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/internal/httpx"
	"github.com/Ste11an/facelessflow/models"
	"github.com/Ste11an/facelessflow/repository"
	"github.com/Ste11an/facelessflow/tasks"
)

// Pipeline is the part of assembly.Orchestrator the handlers call directly.
type Pipeline interface {
	PollRender(ctx context.Context, videoID string) (bool, error)
	Publish(ctx context.Context, videoID string, platforms []string) (models.PublishResults, error)
}

type Handler struct {
	Repo     repository.Repository
	Queue    tasks.Queue
	Pipeline Pipeline
	Logger   *zap.Logger
}

func NewHandler(repo repository.Repository, queue tasks.Queue, pipeline Pipeline, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Repo: repo, Queue: queue, Pipeline: pipeline, Logger: logger}
}

type CreateVideoRequest struct {
	SeriesID    string   `json:"series_id" binding:"required"`
	ScriptID    string   `json:"script_id" binding:"required"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	MediaAssets []string `json:"media_assets"`
	Tags        []string `json:"tags"`
}

type PublishRequest struct {
	Platforms []string `json:"platforms"`
	// Wait publishes inline and returns the per-platform results.
	Wait bool `json:"wait"`
}

// CreateVideo records a pending video for an approved script and queues its assembly.
func (h *Handler) CreateVideo(c *gin.Context) {
	var req CreateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	assets := make([]string, 0, len(req.MediaAssets))
	for _, a := range req.MediaAssets {
		if a = strings.TrimSpace(a); a != "" {
			assets = append(assets, a)
		}
	}
	if len(assets) == 0 {
		httpx.Error(c, apperr.Validation("select at least one media asset"))
		return
	}

	ctx := c.Request.Context()
	userID := httpx.UserID(c)
	series, err := h.Repo.GetSeries(ctx, userID, req.SeriesID)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	script, err := h.Repo.GetScript(ctx, req.ScriptID)
	if err == nil && (script.OwnerID != userID || script.SeriesID != series.ID) {
		err = apperr.NotFound("script")
	}
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if script.Status != models.ScriptApproved {
		httpx.Error(c, apperr.Precondition("script must be approved before creating a video"))
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = script.Title
	}
	video := models.Video{
		SeriesID:    series.ID,
		ScriptID:    script.ID,
		OwnerID:     userID,
		Title:       title,
		Description: req.Description,
		Status:      models.VideoPending,
		Platform:    series.Platform,
		MediaAssets: assets,
		Tags:        req.Tags,
	}
	if err := h.Repo.CreateVideo(ctx, &video); err != nil {
		httpx.Error(c, err)
		return
	}

	if err := h.Queue.Enqueue(ctx, tasks.QueueVideoAssemble, tasks.AssemblePayload{VideoID: video.ID}); err != nil {
		h.Logger.Error("failed to queue assembly", zap.String("video_id", video.ID), zap.Error(err))
		c.JSON(http.StatusAccepted, gin.H{"video": video, "queued": false})
		return
	}
	h.Logger.Info("video queued for assembly", zap.String("video_id", video.ID))
	c.JSON(http.StatusAccepted, gin.H{"video": video, "queued": true})
}

// Assemble re-queues assembly for a video still pending, e.g. after a queue outage.
func (h *Handler) Assemble(c *gin.Context) {
	video, ok := h.owned(c)
	if !ok {
		return
	}
	if video.Status != models.VideoPending {
		httpx.Error(c, apperr.Precondition("video is %s, assembly only starts from pending", video.Status))
		return
	}
	if err := h.Queue.Enqueue(c.Request.Context(), tasks.QueueVideoAssemble, tasks.AssemblePayload{VideoID: video.ID}); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"video": video, "queued": true})
}

func (h *Handler) ListVideos(c *gin.Context) {
	videos, err := h.Repo.ListVideos(c.Request.Context(), httpx.UserID(c), c.Query("series_id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}
	c.JSON(http.StatusOK, videos)
}

func (h *Handler) owned(c *gin.Context) (*models.Video, bool) {
	video, err := h.Repo.GetVideo(c.Request.Context(), c.Param("id"))
	if err == nil && video.OwnerID != httpx.UserID(c) {
		err = apperr.NotFound("video")
	}
	if err != nil {
		httpx.Error(c, err)
		return nil, false
	}
	return video, true
}

func (h *Handler) GetVideo(c *gin.Context) {
	if video, ok := h.owned(c); ok {
		c.JSON(http.StatusOK, video)
	}
}

// Refresh polls the render service for this video now and returns the result.
func (h *Handler) Refresh(c *gin.Context) {
	video, ok := h.owned(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	applied, err := h.Pipeline.PollRender(ctx, video.ID)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if applied {
		if video, err = h.Repo.GetVideo(ctx, video.ID); err != nil {
			httpx.Error(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"video": video, "changed": applied})
}

// Publish uploads a ready video, queued by default.
func (h *Handler) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httpx.BadRequest(c, err.Error())
		return
	}
	video, ok := h.owned(c)
	if !ok {
		return
	}
	if video.Status != models.VideoReady && video.Status != models.VideoPublished {
		httpx.Error(c, apperr.Precondition("video is %s, only ready videos can be published", video.Status))
		return
	}
	ctx := c.Request.Context()

	if req.Wait {
		results, err := h.Pipeline.Publish(ctx, video.ID, req.Platforms)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"video_id": video.ID, "results": results})
		return
	}

	payload := tasks.PublishPayload{VideoID: video.ID, Platforms: req.Platforms}
	if err := h.Queue.Enqueue(ctx, tasks.QueueVideoPublish, payload); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"video_id": video.ID, "queued": true})
}

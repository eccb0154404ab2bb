// Package webhooks receives push notifications from third-party services.
package webhooks

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/internal/httpx"
	"github.com/Ste11an/facelessflow/providers"
)

// RenderApplier is satisfied by assembly.Orchestrator.
type RenderApplier interface {
	ApplyRenderStatus(ctx context.Context, state providers.RenderState) (bool, error)
}

type Handler struct {
	Render RenderApplier
	// Token, when set, must match the token query parameter of the callback URL.
	Token  string
	Logger *zap.Logger
}

func NewHandler(render RenderApplier, token string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Render: render, Token: token, Logger: logger}
}

// renderCallback is the body Shotstack posts to the edit's callback URL.
type renderCallback struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	ID     string `json:"id"`
	Owner  string `json:"owner"`
	Status string `json:"status"`
	URL    string `json:"url"`
	Error  string `json:"error"`
}

// HandleRender applies a render status callback. Repeated deliveries are
// acknowledged without changing anything.
func (h *Handler) HandleRender(c *gin.Context) {
	if h.Token != "" && subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(h.Token)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid callback token"})
		return
	}
	var body renderCallback
	if err := c.ShouldBindJSON(&body); err != nil {
		httpx.BadRequest(c, "invalid request body")
		return
	}
	if body.ID == "" {
		httpx.BadRequest(c, "id is required")
		return
	}

	changed, err := h.Render.ApplyRenderStatus(c.Request.Context(), providers.RenderState{
		ID:     body.ID,
		Status: body.Status,
		URL:    body.URL,
		Error:  body.Error,
	})
	if err != nil {
		h.Logger.Warn("render callback not applied",
			zap.String("render_job_id", body.ID),
			zap.String("status", body.Status),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err))
		httpx.Error(c, err)
		return
	}
	h.Logger.Info("render callback",
		zap.String("render_job_id", body.ID),
		zap.String("status", body.Status),
		zap.Bool("changed", changed))
	c.JSON(http.StatusOK, gin.H{"received": true, "changed": changed})
}

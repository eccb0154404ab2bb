// Package apikeys lets a user manage the provider keys the pipeline runs on.
package apikeys

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/internal/httpx"
)

type Handler struct {
	Store *credentials.Store
}

func NewHandler(store *credentials.Store) *Handler {
	return &Handler{Store: store}
}

// SaveKeys replaces the caller's key set. Secrets never come back in responses.
func (h *Handler) SaveKeys(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	keys := make(map[credentials.Provider]string, len(body))
	for name, v := range body {
		p := credentials.Provider(name)
		if !p.Valid() {
			httpx.Error(c, apperr.Validation("unknown provider %q", name))
			return
		}
		keys[p] = v
	}
	ctx := c.Request.Context()
	userID := httpx.UserID(c)
	if err := h.Store.Save(ctx, userID, keys); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respondMasked(c, userID)
}

// SetKey updates a single provider key, leaving the others in place.
func (h *Handler) SetKey(c *gin.Context) {
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	p := credentials.Provider(c.Param("provider"))
	if !p.Valid() {
		httpx.Error(c, apperr.Validation("unknown provider %q", p))
		return
	}
	userID := httpx.UserID(c)
	if err := h.Store.SetKey(c.Request.Context(), userID, p, req.Value); err != nil {
		httpx.Error(c, err)
		return
	}
	h.respondMasked(c, userID)
}

func (h *Handler) GetKeys(c *gin.Context) {
	h.respondMasked(c, httpx.UserID(c))
}

func (h *Handler) respondMasked(c *gin.Context, userID string) {
	masked, err := h.Store.Masked(c.Request.Context(), userID)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": masked})
}

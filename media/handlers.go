// Package media serves stock media search and voice listings for the editor.
package media

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/internal/httpx"
	"github.com/Ste11an/facelessflow/providers"
)

// VoiceLister is satisfied by providers.ElevenLabs.
type VoiceLister interface {
	Voices(ctx context.Context, userID string) ([]providers.Voice, error)
}

type Handler struct {
	Search providers.MediaSearcher
	Voices VoiceLister
}

func NewHandler(search providers.MediaSearcher, voices VoiceLister) *Handler {
	return &Handler{Search: search, Voices: voices}
}

// SearchMedia handles GET /media/search?q=&type=photo|video&per_page=.
func (h *Handler) SearchMedia(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		httpx.Error(c, apperr.Validation("q is required"))
		return
	}
	mediaType := providers.MediaType(c.DefaultQuery("type", string(providers.MediaPhoto)))
	if mediaType != providers.MediaPhoto && mediaType != providers.MediaVideo {
		httpx.Error(c, apperr.Validation("type must be photo or video"))
		return
	}
	perPage := 0
	if raw := c.Query("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 80 {
			httpx.Error(c, apperr.Validation("per_page must be between 1 and 80"))
			return
		}
		perPage = n
	}

	assets, err := h.Search.Search(c.Request.Context(), httpx.UserID(c), query, mediaType, perPage)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if assets == nil {
		assets = []providers.MediaAsset{}
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "type": mediaType, "results": assets})
}

func (h *Handler) ListVoices(c *gin.Context) {
	voices, err := h.Voices.Voices(c.Request.Context(), httpx.UserID(c))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if voices == nil {
		voices = []providers.Voice{}
	}
	c.JSON(http.StatusOK, voices)
}

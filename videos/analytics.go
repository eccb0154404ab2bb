package videos

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ste11an/facelessflow/internal/httpx"
	"github.com/Ste11an/facelessflow/models"
)

// GetAnalytics returns the caller's metrics rows and their totals, optionally
// narrowed to one video with ?video_id=.
func (h *Handler) GetAnalytics(c *gin.Context) {
	rows, err := h.Repo.ListAnalytics(c.Request.Context(), httpx.UserID(c), c.Query("video_id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if rows == nil {
		rows = []models.Analytics{}
	}
	c.JSON(http.StatusOK, gin.H{"totals": models.Sum(rows), "rows": rows})
}

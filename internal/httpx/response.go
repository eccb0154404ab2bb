package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ste11an/facelessflow/internal/apperr"
)

// Error writes err as {"error": msg, "kind": kind} with the status its kind maps to.
func Error(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"error": apperr.Message(err),
		"kind":  apperr.KindOf(err),
	})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": apperr.KindValidation})
}

// UserID returns the authenticated owner id set by the auth middleware.
func UserID(c *gin.Context) string {
	return c.GetString("user_id")
}

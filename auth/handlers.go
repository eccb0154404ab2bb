package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	Verifier *Verifier
	// DevLogin enables POST /auth/dev-token. Never on in production.
	DevLogin bool
}

func NewHandler(v *Verifier, devLogin bool) *Handler {
	return &Handler{Verifier: v, DevLogin: devLogin}
}

// GetCurrentUser returns the authenticated user's identity
func (h *Handler) GetCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.GetString("user_id"),
		"email":   c.GetString("email"),
	})
}

type devTokenRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// IssueDevToken mints a week-long token for local runs without an identity provider.
func (h *Handler) IssueDevToken(c *gin.Context) {
	if !h.DevLogin {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}

	token, err := h.Verifier.GenerateJWT(req.UserID, req.Email, 7*24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": req.UserID})
}

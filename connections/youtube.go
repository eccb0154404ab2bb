// Package connections runs the OAuth consent flow that lets the pipeline
// upload to a user's YouTube channel.
package connections

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Ste11an/facelessflow/auth"
	"github.com/Ste11an/facelessflow/credentials"
	"github.com/Ste11an/facelessflow/internal/apperr"
	"github.com/Ste11an/facelessflow/internal/httpx"
)

const stateTTL = 10 * time.Minute

// Exchanger is the part of *oauth2.Config the flow uses.
type Exchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

type KeySetter interface {
	SetKey(ctx context.Context, userID string, p credentials.Provider, value string) error
}

type Handler struct {
	OAuth Exchanger
	// State signs the short-lived state parameter. Use a key distinct from
	// the session verifier so a state value is never a valid bearer token.
	State       *auth.Verifier
	Keys        KeySetter
	FrontendURL string
	Logger      *zap.Logger
}

func NewHandler(oauth Exchanger, state *auth.Verifier, keys KeySetter, frontendURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{OAuth: oauth, State: state, Keys: keys, FrontendURL: frontendURL, Logger: logger}
}

// ConnectYouTube returns the consent URL for the authenticated user.
func (h *Handler) ConnectYouTube(c *gin.Context) {
	if h.OAuth == nil {
		httpx.Error(c, apperr.Precondition("youtube oauth is not configured"))
		return
	}
	state, err := h.State.GenerateJWT(httpx.UserID(c), "", stateTTL)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	// Offline access with forced consent so Google always returns a refresh token.
	u := h.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{"url": u})
}

// YouTubeCallback stores the granted refresh token and sends the browser back
// to the frontend with connected=youtube or error=<reason>.
func (h *Handler) YouTubeCallback(c *gin.Context) {
	if h.OAuth == nil {
		httpx.Error(c, apperr.Precondition("youtube oauth is not configured"))
		return
	}
	if reason := c.Query("error"); reason != "" {
		h.redirect(c, "error", reason)
		return
	}
	claims, err := h.State.ValidateJWT(c.Query("state"))
	if err != nil {
		h.Logger.Warn("youtube callback with invalid state", zap.Error(err))
		h.redirect(c, "error", "invalid_state")
		return
	}
	code := c.Query("code")
	if code == "" {
		h.redirect(c, "error", "missing_code")
		return
	}

	ctx := c.Request.Context()
	token, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		h.Logger.Warn("youtube code exchange failed", zap.String("user_id", claims.Subject), zap.Error(err))
		h.redirect(c, "error", "exchange_failed")
		return
	}
	if token.RefreshToken == "" {
		h.redirect(c, "error", "no_refresh_token")
		return
	}
	if err := h.Keys.SetKey(ctx, claims.Subject, credentials.YouTube, token.RefreshToken); err != nil {
		h.Logger.Error("failed to store youtube token", zap.String("user_id", claims.Subject), zap.Error(err))
		h.redirect(c, "error", "store_failed")
		return
	}
	h.Logger.Info("youtube connected", zap.String("user_id", claims.Subject))
	h.redirect(c, "connected", "youtube")
}

func (h *Handler) redirect(c *gin.Context, key, value string) {
	target := h.FrontendURL + "/settings?" + url.Values{key: {value}}.Encode()
	c.Redirect(http.StatusTemporaryRedirect, target)
}

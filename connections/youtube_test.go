package connections

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/Ste11an/facelessflow/auth"
	"github.com/Ste11an/facelessflow/credentials"
)

type fakeOAuth struct {
	token *oauth2.Token
	err   error
	codes []string
}

func (f *fakeOAuth) AuthCodeURL(state string, _ ...oauth2.AuthCodeOption) string {
	return "https://accounts.example.com/auth?" + url.Values{"state": {state}}.Encode()
}

func (f *fakeOAuth) Exchange(_ context.Context, code string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.codes = append(f.codes, code)
	return f.token, f.err
}

type fakeKeys struct {
	saved map[string]string
}

func (f *fakeKeys) SetKey(_ context.Context, userID string, p credentials.Provider, value string) error {
	if f.saved == nil {
		f.saved = map[string]string{}
	}
	f.saved[userID+"/"+string(p)] = value
	return nil
}

func router(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/connections/youtube", func(c *gin.Context) {
		c.Set("user_id", "u1")
		h.ConnectYouTube(c)
	})
	r.GET("/connections/youtube/callback", h.YouTubeCallback)
	return r
}

func get(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestYouTubeConnectFlow(t *testing.T) {
	oauth := &fakeOAuth{token: &oauth2.Token{AccessToken: "at", RefreshToken: "rt-1"}}
	keys := &fakeKeys{}
	signer := auth.NewVerifier("state-key", "")
	r := router(NewHandler(oauth, signer, keys, "https://app.example.com", nil))

	w := get(r, http.MethodPost, "/connections/youtube")
	if w.Code != http.StatusOK {
		t.Fatalf("connect status=%d", w.Code)
	}
	state, err := signer.GenerateJWT("u1", "", time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	w = get(r, http.MethodGet, "/connections/youtube/callback?code=abc&state="+url.QueryEscape(state))
	if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "https://app.example.com/settings?connected=youtube" {
		t.Fatalf("status=%d location=%q", w.Code, w.Header().Get("Location"))
	}
	if keys.saved["u1/youtube"] != "rt-1" || len(oauth.codes) != 1 || oauth.codes[0] != "abc" {
		t.Fatalf("saved=%v codes=%v", keys.saved, oauth.codes)
	}
}

func TestYouTubeCallbackRejects(t *testing.T) {
	signer := auth.NewVerifier("state-key", "")
	state, _ := signer.GenerateJWT("u1", "", time.Minute)
	foreign, _ := auth.NewVerifier("session-key", "").GenerateJWT("u1", "", time.Minute)

	cases := []struct {
		name   string
		oauth  *fakeOAuth
		query  string
		reason string
	}{
		{"denied", &fakeOAuth{}, "error=access_denied", "access_denied"},
		{"foreign state", &fakeOAuth{}, "code=abc&state=" + url.QueryEscape(foreign), "invalid_state"},
		{"missing code", &fakeOAuth{}, "state=" + url.QueryEscape(state), "missing_code"},
		{"exchange", &fakeOAuth{err: errors.New("boom")}, "code=abc&state=" + url.QueryEscape(state), "exchange_failed"},
		{"no refresh token", &fakeOAuth{token: &oauth2.Token{AccessToken: "at"}}, "code=abc&state=" + url.QueryEscape(state), "no_refresh_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keys := &fakeKeys{}
			r := router(NewHandler(tc.oauth, signer, keys, "https://app.example.com", nil))
			w := get(r, http.MethodGet, "/connections/youtube/callback?"+tc.query)
			loc := w.Header().Get("Location")
			if w.Code != http.StatusTemporaryRedirect || !strings.HasSuffix(loc, "error="+tc.reason) {
				t.Fatalf("status=%d location=%q", w.Code, loc)
			}
			if len(keys.saved) != 0 {
				t.Fatalf("saved=%v", keys.saved)
			}
		})
	}
}

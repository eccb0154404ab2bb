package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	v := NewVerifier("secret", "facelessflow")
	token, err := v.GenerateJWT("user-1", "a@b.c", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT err=%v", err)
	}
	claims, err := v.ValidateJWT(token)
	if err != nil || claims.Subject != "user-1" || claims.Email != "a@b.c" {
		t.Fatalf("claims=%+v err=%v", claims, err)
	}

	if _, err := NewVerifier("other", "facelessflow").ValidateJWT(token); err == nil {
		t.Fatalf("token signed with another secret must fail")
	}
	if _, err := NewVerifier("secret", "someone-else").ValidateJWT(token); err == nil {
		t.Fatalf("token from another issuer must fail")
	}

	expired, _ := v.GenerateJWT("user-1", "", -time.Minute)
	if _, err := v.ValidateJWT(expired); err == nil {
		t.Fatalf("expired token must fail")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := NewVerifier("secret", "")
	r := gin.New()
	r.GET("/me", Middleware(v), NewHandler(v, false).GetCurrentUser)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: code=%d", w.Code)
	}

	token, _ := v.GenerateJWT("user-1", "", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"user_id":"user-1"`) {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("cookie token: code=%d", w.Code)
	}
}

func TestDevTokenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/dev-token", NewHandler(NewVerifier("s", ""), false).IssueDevToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/dev-token", strings.NewReader(`{}`)))
	if w.Code != http.StatusNotFound {
		t.Fatalf("code=%d", w.Code)
	}
}

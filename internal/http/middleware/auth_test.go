package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"rideon/internal/modules/account"
)

type fakeUsers struct {
	token string
	user  *account.User
}

func (f *fakeUsers) UserByAccessToken(ctx context.Context, token string) (*account.User, error) {
	if f.user != nil && token == f.token {
		return f.user, nil
	}
	return nil, account.ErrNotFound
}

func appAuthRouter(users UserSource) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AppAuth(users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUser(c).ID})
	})
	return r
}

func TestAppAuthMissingCookie(t *testing.T) {
	r := appAuthRouter(&fakeUsers{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAppAuthInvalidToken(t *testing.T) {
	r := appAuthRouter(&fakeUsers{token: "good", user: &account.User{ID: "u1"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: "bad"})
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAppAuthValidToken(t *testing.T) {
	r := appAuthRouter(&fakeUsers{token: "good", user: &account.User{ID: "u1"}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: "good"})
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
